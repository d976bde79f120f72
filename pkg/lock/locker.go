package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/tabkit/pkg/logger"
)

const (
	DefaultTTL           = 10 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 100 * time.Millisecond
)

var errContended = errors.New("lock.contended")

// Locker acquires a Mutex with exponential backoff and hands out leases
// carrying a random owner token.
type Locker struct {
	mutex    Mutex
	ttl      time.Duration
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithTTL sets how long an unreleased lock survives.
func WithTTL(ttl time.Duration) LockerOption {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryAttempts sets the total number of acquisition attempts.
func WithRetryAttempts(n int) LockerOption {
	return func(l *Locker) {
		if n > 0 {
			l.attempts = n
		}
	}
}

// WithRetryDelay sets the first backoff delay; each retry doubles it.
func WithRetryDelay(d time.Duration) LockerOption {
	return func(l *Locker) {
		if d > 0 {
			l.delay = d
		}
	}
}

func WithLogger(log *slog.Logger) LockerOption {
	return func(l *Locker) {
		if log != nil {
			l.logger = log
		}
	}
}

func NewLocker(m Mutex, opts ...LockerOption) *Locker {
	l := &Locker{
		mutex:    m,
		ttl:      DefaultTTL,
		attempts: DefaultRetryAttempts,
		delay:    DefaultRetryDelay,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(logger.Component("lock"))
	return l
}

// Lock acquires key, retrying with exponential backoff. It returns
// ErrLockTimeout once the attempts are exhausted.
func (l *Locker) Lock(ctx context.Context, key string) (*Lease, error) {
	owner := uuid.NewString()
	attempts := 0

	backoff := retry.WithMaxRetries(uint64(l.attempts-1), retry.NewExponential(l.delay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		ok, err := l.mutex.Acquire(ctx, key, owner, l.ttl)
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errContended)
		}
		return nil
	})

	switch {
	case err == nil:
		l.logger.DebugContext(ctx, "lock acquired", slog.String("key", key), logger.RetryCount(attempts-1))
		return &Lease{mutex: l.mutex, key: key, owner: owner}, nil
	case errors.Is(err, errContended):
		l.logger.WarnContext(ctx, "lock acquisition timed out", slog.String("key", key), logger.RetryCount(attempts-1))
		return nil, errors.Join(ErrLockTimeout, fmt.Errorf("key %q after %d attempts", key, attempts))
	default:
		return nil, err
	}
}

// WithLock runs fn while holding key. The lock is released when fn returns,
// whether or not it failed and even if ctx was cancelled meanwhile.
func (l *Locker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lease, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	// records logged inside fn carry the lock they ran under
	ctx = logger.ContextWith(ctx, slog.String("lock_key", key), slog.String("lock_owner", lease.owner))
	defer func() {
		if err := lease.Unlock(context.WithoutCancel(ctx)); err != nil {
			l.logger.WarnContext(ctx, "lock release failed", slog.String("key", key), logger.Error(err))
		}
	}()
	return fn(ctx)
}

// Lease is a held lock.
type Lease struct {
	mutex Mutex
	key   string
	owner string
}

func (l *Lease) Key() string   { return l.key }
func (l *Lease) Owner() string { return l.owner }

// Unlock releases the lease. It returns ErrNotHeld if the lock expired
// before release.
func (l *Lease) Unlock(ctx context.Context) error {
	ok, err := l.mutex.Release(ctx, l.key, l.owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotHeld
	}
	return nil
}
