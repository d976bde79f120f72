package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by configs that check their own invariants.
// Load calls Validate after parsing and refuses to cache an invalid value.
type Validator interface {
	Validate() error
}

// configCache stores parsed configurations keyed by type name.
type configCache struct {
	mu     sync.RWMutex
	values map[string]any
	onces  map[string]*sync.Once
}

var (
	globalCache = newConfigCache()

	envMu          sync.Mutex
	defaultEnvOnce = new(sync.Once)
)

func newConfigCache() *configCache {
	return &configCache{
		values: make(map[string]any),
		onces:  make(map[string]*sync.Once),
	}
}

// LoadEnv loads one or more .env files into the process environment.
// Variables already set are not overridden; earlier files win over later ones.
// With no paths it loads ./.env and ignores a missing file.
func LoadEnv(paths ...string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if len(paths) == 0 {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// Load parses environment variables into v. Each config type is parsed once
// per process; later calls return the cached copy.
//
// The default .env file is loaded on first use if present. When *T implements
// Validator, an invalid config is returned as ErrInvalidConfig and not cached.
//
// Example:
//
//	type StoreConfig struct {
//		Prefix string        `env:"STORE_PREFIX" envDefault:"tabkit"`
//		TTL    time.Duration `env:"STORE_TTL" envDefault:"1h"`
//	}
//
//	var cfg StoreConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
func Load[T any](v *T) error {
	envMu.Lock()
	once := defaultEnvOnce
	envMu.Unlock()
	once.Do(func() {
		// .env is optional
		_ = LoadEnv()
	})

	if v == nil {
		return ErrNilPointer
	}

	typeName := getTypeName[T]()
	if loadCached(typeName, v) {
		return nil
	}

	globalCache.mu.Lock()
	parseOnce, exists := globalCache.onces[typeName]
	if !exists {
		parseOnce = new(sync.Once)
		globalCache.onces[typeName] = parseOnce
	}
	globalCache.mu.Unlock()

	var err error
	parseOnce.Do(func() {
		if err = parse(v); err != nil {
			// allow a later call to retry after the environment is fixed
			globalCache.mu.Lock()
			delete(globalCache.onces, typeName)
			globalCache.mu.Unlock()
			return
		}
		globalCache.mu.Lock()
		globalCache.values[typeName] = *v
		globalCache.mu.Unlock()
	})
	if err != nil {
		return err
	}

	if loadCached(typeName, v) {
		return nil
	}
	return ErrConfigNotLoaded
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

// Parse parses the environment into v without touching the cache.
// Useful when a caller needs a fresh value, such as in tests.
func Parse[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	return parse(v)
}

// ResetCache drops every cached config and allows the default .env file to
// be loaded again.
func ResetCache() {
	globalCache.mu.Lock()
	globalCache.values = make(map[string]any)
	globalCache.onces = make(map[string]*sync.Once)
	globalCache.mu.Unlock()

	envMu.Lock()
	defaultEnvOnce = new(sync.Once)
	envMu.Unlock()
}

func parse[T any](v *T) error {
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	if val, ok := any(v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}
	return nil
}

func loadCached[T any](typeName string, v *T) bool {
	globalCache.mu.RLock()
	defer globalCache.mu.RUnlock()
	cached, ok := globalCache.values[typeName]
	if !ok {
		return false
	}
	*v = cached.(T)
	return true
}

// getTypeName returns a string identifier for the generic type T
func getTypeName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.PkgPath() + "." + t.String()
}
