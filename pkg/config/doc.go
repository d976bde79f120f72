// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
//
//   - LoadEnv reads one or more .env files into the process environment.
//   - Load parses the environment into a struct using field tags and caches
//     the result per type, so each config is parsed once per process.
//   - Parse does the same without the cache.
//   - Configs implementing Validator are checked after parsing; an invalid
//     value is reported as ErrInvalidConfig and never cached.
//
// # Usage
//
//	type StoreConfig struct {
//	    Prefix string        `env:"STORE_PREFIX" envDefault:"tabkit"`
//	    TTL    time.Duration `env:"STORE_TTL" envDefault:"1h"`
//	}
//
//	func (c StoreConfig) Validate() error {
//	    if c.TTL <= 0 {
//	        return errors.New("ttl must be positive")
//	    }
//	    return nil
//	}
//
//	var cfg StoreConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatalf("config: %v", err)
//	}
//
// # Errors
//
//   - ErrParsingConfig: env vars could not be parsed into the struct.
//   - ErrInvalidConfig: Validate rejected the parsed value.
//   - ErrLoadingEnvFile: an explicitly named .env file could not be read.
//   - ErrNilPointer: nil pointer passed to Load, MustLoad or Parse.
//
// Use ResetCache between tests that change the environment.
package config
