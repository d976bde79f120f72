package datastore

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/tabkit/pkg/config"
	"github.com/dmitrymomot/tabkit/pkg/redis"
	"github.com/dmitrymomot/tabkit/pkg/serializer"
)

// Config holds datastore configuration. Redis settings are only used when
// RemoteEnabled is set.
type Config struct {
	// RemoteEnabled selects the Redis backend (default: false)
	RemoteEnabled bool `env:"DATASTORE_REMOTE_ENABLED" envDefault:"false"`
	// FallbackToLocal serves from memory when Redis is unreachable at startup
	// or later fails (default: true)
	FallbackToLocal bool   `env:"DATASTORE_FALLBACK_TO_LOCAL" envDefault:"true"`
	KeyPrefix       string `env:"DATASTORE_KEY_PREFIX" envDefault:"tabkit"`

	SessionTTL time.Duration `env:"DATASTORE_SESSION_TTL" envDefault:"1h"`
	TempTTL    time.Duration `env:"DATASTORE_TEMP_TTL" envDefault:"30m"`

	MaxVersions     int                    `env:"DATASTORE_MAX_VERSIONS" envDefault:"5"`
	MaxPayloadBytes int64                  `env:"DATASTORE_MAX_PAYLOAD_BYTES" envDefault:"524288000"`
	Codec           serializer.Method      `env:"DATASTORE_CODEC" envDefault:"arrow"`
	Compression     serializer.Compression `env:"DATASTORE_COMPRESSION" envDefault:"zstd"`

	// CleanupInterval drives the local sweep goroutine (0 to disable)
	CleanupInterval time.Duration `env:"DATASTORE_CLEANUP_INTERVAL" envDefault:"5m"`
	// TouchOnRead makes GetDataFrame refresh the session TTL
	TouchOnRead bool `env:"DATASTORE_TOUCH_ON_READ" envDefault:"false"`

	LockTTL           time.Duration `env:"DATASTORE_LOCK_TTL" envDefault:"10s"`
	LockRetryAttempts int           `env:"DATASTORE_LOCK_RETRY_ATTEMPTS" envDefault:"3"`
	LockRetryDelay    time.Duration `env:"DATASTORE_LOCK_RETRY_DELAY" envDefault:"100ms"`

	Redis redis.Config
}

// DefaultConfig returns default datastore configuration
func DefaultConfig() Config {
	return Config{
		RemoteEnabled:     false,
		FallbackToLocal:   true,
		KeyPrefix:         "tabkit",
		SessionTTL:        time.Hour,
		TempTTL:           30 * time.Minute,
		MaxVersions:       5,
		MaxPayloadBytes:   serializer.DefaultMaxPayloadSize,
		Codec:             serializer.MethodArrow,
		Compression:       serializer.CompressionZstd,
		CleanupInterval:   5 * time.Minute,
		LockTTL:           10 * time.Second,
		LockRetryAttempts: 3,
		LockRetryDelay:    100 * time.Millisecond,
		Redis:             redis.DefaultConfig(),
	}
}

// Validate checks the settings every backend relies on.
func (c Config) Validate() error {
	var errs []error
	if c.KeyPrefix == "" {
		errs = append(errs, errors.New("key prefix is empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session ttl %s must be positive", c.SessionTTL))
	}
	if c.TempTTL <= 0 {
		errs = append(errs, fmt.Errorf("temp ttl %s must be positive", c.TempTTL))
	}
	if c.MaxVersions < 1 {
		errs = append(errs, fmt.Errorf("max versions %d must be at least 1", c.MaxVersions))
	}
	if c.LockTTL <= 0 {
		errs = append(errs, fmt.Errorf("lock ttl %s must be positive", c.LockTTL))
	}
	if c.LockRetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("lock retry attempts %d must be at least 1", c.LockRetryAttempts))
	}
	if c.LockRetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("lock retry delay %s must be positive", c.LockRetryDelay))
	}
	switch c.Codec {
	case serializer.MethodArrow, serializer.MethodCBOR:
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q", c.Codec))
	}
	switch c.Compression {
	case serializer.CompressionZstd, serializer.CompressionLZ4, serializer.CompressionNone:
	default:
		errs = append(errs, fmt.Errorf("unknown compression %q", c.Compression))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// LoadConfig reads Config from the environment (and .env when present).
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) sessionTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return c.SessionTTL
}

func (c Config) tempTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return c.TempTTL
}

func (c Config) newSerializer(opts options) (*serializer.Serializer, error) {
	return serializer.New(
		serializer.WithMethod(c.Codec),
		serializer.WithCompression(c.Compression),
		serializer.WithMaxPayloadSize(c.MaxPayloadBytes),
		serializer.WithLogger(opts.logger),
	)
}
