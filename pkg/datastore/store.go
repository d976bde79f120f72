package datastore

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tabkit/pkg/frame"
)

// Store is the entry point for callers. It owns the backend chosen by Open
// and delegates every Backend call to it without caching anything.
type Store struct {
	backend Backend
	closer  io.Closer

	closeOnce sync.Once
	closeErr  error
}

// New opens the backend described by cfg. Call Close when done.
func New(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	b, c, err := Open(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{backend: b, closer: c}, nil
}

// NewWithBackend wraps an existing backend. Close closes it when it
// implements io.Closer.
func NewWithBackend(b Backend) *Store {
	s := &Store{backend: b}
	if c, ok := b.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// NewSessionID returns a fresh random session id.
func (s *Store) NewSessionID() string { return uuid.NewString() }

// BackendType reports which backend currently serves calls.
func (s *Store) BackendType() BackendType { return s.backend.Type() }

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

func (s *Store) Type() BackendType { return s.backend.Type() }

func (s *Store) CreateSession(ctx context.Context, id string, data *frame.Frame, filename string, ttl time.Duration) error {
	return s.backend.CreateSession(ctx, id, data, filename, ttl)
}

func (s *Store) GetDataFrame(ctx context.Context, id string) (*frame.Frame, error) {
	return s.backend.GetDataFrame(ctx, id)
}

func (s *Store) UpdateDataFrame(ctx context.Context, id string, data *frame.Frame) error {
	return s.backend.UpdateDataFrame(ctx, id, data)
}

func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	return s.backend.DeleteSession(ctx, id)
}

func (s *Store) SessionExists(ctx context.Context, id string) (bool, error) {
	return s.backend.SessionExists(ctx, id)
}

func (s *Store) TouchSession(ctx context.Context, id string, ttl time.Duration) error {
	return s.backend.TouchSession(ctx, id, ttl)
}

func (s *Store) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	return s.backend.GetMetadata(ctx, id)
}

func (s *Store) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) error {
	return s.backend.UpdateMetadata(ctx, id, patch)
}

func (s *Store) CreateVersion(ctx context.Context, id string, data *frame.Frame, summary string) (int, error) {
	return s.backend.CreateVersion(ctx, id, data, summary)
}

func (s *Store) UndoLastChange(ctx context.Context, id string) (*frame.Frame, error) {
	return s.backend.UndoLastChange(ctx, id)
}

func (s *Store) GetHistory(ctx context.Context, id string) ([]VersionRecord, error) {
	return s.backend.GetHistory(ctx, id)
}

func (s *Store) GetIntentionalMissing(ctx context.Context, id string) (map[string][]int, error) {
	return s.backend.GetIntentionalMissing(ctx, id)
}

func (s *Store) SetIntentionalMissing(ctx context.Context, id, column string, rows []int) error {
	return s.backend.SetIntentionalMissing(ctx, id, column, rows)
}

func (s *Store) SetIntentionalMissingBatch(ctx context.Context, id string, columns map[string][]int) error {
	return s.backend.SetIntentionalMissingBatch(ctx, id, columns)
}

func (s *Store) AddAuditEntry(ctx context.Context, id, entry string) error {
	return s.backend.AddAuditEntry(ctx, id, entry)
}

func (s *Store) GetAuditLog(ctx context.Context, id string) ([]string, error) {
	return s.backend.GetAuditLog(ctx, id)
}

func (s *Store) GetInitialRowCount(ctx context.Context, id string) (int, bool, error) {
	return s.backend.GetInitialRowCount(ctx, id)
}

func (s *Store) CreateTempStorage(ctx context.Context, data TempData, ttl time.Duration) (string, error) {
	return s.backend.CreateTempStorage(ctx, data, ttl)
}

func (s *Store) GetTempStorage(ctx context.Context, id string) (*TempRecord, error) {
	return s.backend.GetTempStorage(ctx, id)
}

func (s *Store) DeleteTempStorage(ctx context.Context, id string) (bool, error) {
	return s.backend.DeleteTempStorage(ctx, id)
}

func (s *Store) CleanupExpiredSessions(ctx context.Context) (int, error) {
	return s.backend.CleanupExpiredSessions(ctx)
}

func (s *Store) CleanupExpiredTempStorage(ctx context.Context) (int, error) {
	return s.backend.CleanupExpiredTempStorage(ctx)
}

func (s *Store) ActiveSessionsCount(ctx context.Context) (int, error) {
	return s.backend.ActiveSessionsCount(ctx)
}

func (s *Store) HealthCheck(ctx context.Context) Health {
	return s.backend.HealthCheck(ctx)
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*RedisBackend)(nil)
	_ Backend = (*FallbackBackend)(nil)
)
