package datastore

import (
	"context"
	"errors"
	"io"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tabkit/pkg/logger"
	"github.com/dmitrymomot/tabkit/pkg/redis"
)

// Open builds the backend described by cfg.
//
// With RemoteEnabled unset it returns a MemoryBackend. Otherwise it connects
// to Redis (or uses the client given with WithRedisClient) and checks it.
// When Redis is unreachable Open returns a local backend if FallbackToLocal
// is set and ErrBackendUnavailable if not. With FallbackToLocal set, the
// Redis backend is wrapped in a FallbackBackend.
//
// The returned io.Closer releases everything Open created.
func Open(ctx context.Context, cfg Config, opts ...Option) (Backend, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	o := newOptions(opts)
	log := o.logger.With(logger.Component("datastore"))

	if !cfg.RemoteEnabled {
		local := NewMemoryBackend(cfg, opts...)
		log.InfoContext(ctx, "datastore ready", logger.Backend(string(BackendLocal)))
		return local, local, nil
	}

	client, owned, err := connectRedis(ctx, cfg, o)
	if err != nil {
		if !cfg.FallbackToLocal {
			return nil, nil, errors.Join(ErrBackendUnavailable, err)
		}
		log.WarnContext(ctx, "redis unavailable, using local backend", logger.Error(err))
		fb := newSwitchedFallback(NewMemoryBackend(cfg, opts...), err, opts...)
		return fb, fb, nil
	}

	clientCloser := closerFunc(func() error {
		if owned {
			return client.Close()
		}
		return nil
	})

	remote, err := NewRedisBackend(client, cfg, opts...)
	if err != nil {
		_ = clientCloser.Close()
		return nil, nil, err
	}
	log.InfoContext(ctx, "datastore ready", logger.Backend(string(BackendRemote)))

	if !cfg.FallbackToLocal {
		return remote, clientCloser, nil
	}
	fb := NewFallbackBackend(remote, NewMemoryBackend(cfg, opts...), opts...)
	return fb, closers{fb, clientCloser}, nil
}

func connectRedis(ctx context.Context, cfg Config, o options) (goredis.UniversalClient, bool, error) {
	if o.client != nil {
		if err := redis.Healthcheck(o.client)(ctx); err != nil {
			return nil, false, err
		}
		return o.client, false, nil
	}
	client, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return nil, false, err
	}
	return client, true, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
