package lock

import (
	"context"
	"sync"
	"time"
)

type memoryLock struct {
	owner     string
	expiresAt time.Time
}

// MemoryMutex implements Mutex inside one process.
// Expired locks are reclaimed lazily on the next Acquire.
type MemoryMutex struct {
	mu    sync.Mutex
	locks map[string]memoryLock
	now   func() time.Time
}

func NewMemoryMutex() *MemoryMutex {
	return &MemoryMutex{
		locks: make(map[string]memoryLock),
		now:   time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (m *MemoryMutex) WithClock(now func() time.Time) *MemoryMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryMutex) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if l, ok := m.locks[key]; ok && now.Before(l.expiresAt) {
		return false, nil
	}
	m.locks[key] = memoryLock{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *MemoryMutex) Release(ctx context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok || l.owner != owner || !m.now().Before(l.expiresAt) {
		return false, nil
	}
	delete(m.locks, key)
	return true, nil
}

// Len returns the number of tracked locks, expired ones included.
func (m *MemoryMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
