package lock

import (
	"context"
	"time"
)

// Mutex is a lock primitive keyed by name with owner-checked release.
//
// Acquire succeeds only when the key is unset and stores owner with the given
// TTL; the lock disappears after ttl even if never released. Release removes
// the key only if it still holds owner, so a slow holder cannot release a
// lock that expired and was taken by someone else.
type Mutex interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) (bool, error)
}
