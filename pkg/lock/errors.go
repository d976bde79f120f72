package lock

import "errors"

var (
	// ErrLockTimeout is returned when a lock could not be acquired within the
	// configured retry budget. Callers may retry the whole operation.
	ErrLockTimeout = errors.New("lock.timeout")

	// ErrNotHeld is returned by Lease.Unlock when the lease expired and the
	// key is now owned by someone else or nobody.
	ErrNotHeld = errors.New("lock.not_held")

	ErrEmptyKey = errors.New("lock.empty_key")
)
