// Package lock provides a keyed mutex with owner-checked release and a
// Locker that acquires it with bounded exponential backoff.
//
// Two Mutex implementations are included: RedisMutex for cross-process
// exclusion (SET NX PX plus a compare-and-delete script) and MemoryMutex for a
// single process. Both expire locks after their TTL so a crashed holder never
// blocks a key forever.
//
//	locker := lock.NewLocker(lock.NewRedisMutex(client),
//	    lock.WithTTL(10*time.Second),
//	    lock.WithRetryAttempts(3),
//	    lock.WithRetryDelay(100*time.Millisecond),
//	)
//	err := locker.WithLock(ctx, "tabkit:session-1:lock", func(ctx context.Context) error {
//	    // critical section
//	    return nil
//	})
//	if errors.Is(err, lock.ErrLockTimeout) {
//	    // contended; retry the whole operation later
//	}
package lock
