package datastore

import (
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type options struct {
	logger *slog.Logger
	now    func() time.Time
	client goredis.UniversalClient
}

// Option configures backends, Open and New.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces the time source of the local backend. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRedisClient makes Open use an existing client instead of dialing
// Config.Redis. Open does not close a client it did not create.
func WithRedisClient(client goredis.UniversalClient) Option {
	return func(o *options) {
		o.client = client
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
