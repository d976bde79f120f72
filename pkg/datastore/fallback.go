package datastore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/tabkit/pkg/frame"
	"github.com/dmitrymomot/tabkit/pkg/logger"
)

// FallbackBackend serves from a primary backend until a call fails with
// ErrBackendUnavailable, then switches to a local backend for the rest of
// the process lifetime and retries that call there. Data held by the
// primary is not migrated.
type FallbackBackend struct {
	primary Backend
	local   *MemoryBackend
	logger  *slog.Logger

	mu       sync.RWMutex
	switched bool
	reason   string
}

func NewFallbackBackend(primary Backend, local *MemoryBackend, opts ...Option) *FallbackBackend {
	o := newOptions(opts)
	return &FallbackBackend{
		primary: primary,
		local:   local,
		logger:  o.logger.With(logger.Component("datastore")),
	}
}

// newSwitchedFallback starts already on the local backend, used when the
// primary was unreachable at startup.
func newSwitchedFallback(local *MemoryBackend, reason error, opts ...Option) *FallbackBackend {
	f := NewFallbackBackend(nil, local, opts...)
	f.switched = true
	f.reason = reason.Error()
	return f
}

// Fallback reports whether calls are being served by the local backend.
func (f *FallbackBackend) Fallback() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.switched
}

func (f *FallbackBackend) current() (Backend, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.switched {
		return f.local, true
	}
	return f.primary, false
}

func (f *FallbackBackend) switchToLocal(ctx context.Context, op string, cause error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.switched {
		return
	}
	f.switched = true
	f.reason = cause.Error()
	f.logger.WarnContext(ctx, "primary backend unavailable, switching to local backend",
		slog.String("operation", op),
		logger.Backend(string(f.primary.Type())),
		logger.Error(cause),
	)
}

func call[T any](ctx context.Context, f *FallbackBackend, op string, fn func(Backend) (T, error)) (T, error) {
	b, switched := f.current()
	v, err := fn(b)
	if err == nil || switched || !errors.Is(err, ErrBackendUnavailable) {
		return v, err
	}
	f.switchToLocal(ctx, op, err)
	return fn(f.local)
}

func call0(ctx context.Context, f *FallbackBackend, op string, fn func(Backend) error) error {
	_, err := call(ctx, f, op, func(b Backend) (struct{}, error) {
		return struct{}{}, fn(b)
	})
	return err
}

func (f *FallbackBackend) Type() BackendType {
	b, _ := f.current()
	return b.Type()
}

func (f *FallbackBackend) CreateSession(ctx context.Context, id string, data *frame.Frame, filename string, ttl time.Duration) error {
	return call0(ctx, f, "CreateSession", func(b Backend) error {
		return b.CreateSession(ctx, id, data, filename, ttl)
	})
}

func (f *FallbackBackend) GetDataFrame(ctx context.Context, id string) (*frame.Frame, error) {
	return call(ctx, f, "GetDataFrame", func(b Backend) (*frame.Frame, error) {
		return b.GetDataFrame(ctx, id)
	})
}

func (f *FallbackBackend) UpdateDataFrame(ctx context.Context, id string, data *frame.Frame) error {
	return call0(ctx, f, "UpdateDataFrame", func(b Backend) error {
		return b.UpdateDataFrame(ctx, id, data)
	})
}

func (f *FallbackBackend) DeleteSession(ctx context.Context, id string) (bool, error) {
	return call(ctx, f, "DeleteSession", func(b Backend) (bool, error) {
		return b.DeleteSession(ctx, id)
	})
}

func (f *FallbackBackend) SessionExists(ctx context.Context, id string) (bool, error) {
	return call(ctx, f, "SessionExists", func(b Backend) (bool, error) {
		return b.SessionExists(ctx, id)
	})
}

func (f *FallbackBackend) TouchSession(ctx context.Context, id string, ttl time.Duration) error {
	return call0(ctx, f, "TouchSession", func(b Backend) error {
		return b.TouchSession(ctx, id, ttl)
	})
}

func (f *FallbackBackend) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	return call(ctx, f, "GetMetadata", func(b Backend) (*Metadata, error) {
		return b.GetMetadata(ctx, id)
	})
}

func (f *FallbackBackend) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) error {
	return call0(ctx, f, "UpdateMetadata", func(b Backend) error {
		return b.UpdateMetadata(ctx, id, patch)
	})
}

func (f *FallbackBackend) CreateVersion(ctx context.Context, id string, data *frame.Frame, summary string) (int, error) {
	return call(ctx, f, "CreateVersion", func(b Backend) (int, error) {
		return b.CreateVersion(ctx, id, data, summary)
	})
}

func (f *FallbackBackend) UndoLastChange(ctx context.Context, id string) (*frame.Frame, error) {
	return call(ctx, f, "UndoLastChange", func(b Backend) (*frame.Frame, error) {
		return b.UndoLastChange(ctx, id)
	})
}

func (f *FallbackBackend) GetHistory(ctx context.Context, id string) ([]VersionRecord, error) {
	return call(ctx, f, "GetHistory", func(b Backend) ([]VersionRecord, error) {
		return b.GetHistory(ctx, id)
	})
}

func (f *FallbackBackend) GetIntentionalMissing(ctx context.Context, id string) (map[string][]int, error) {
	return call(ctx, f, "GetIntentionalMissing", func(b Backend) (map[string][]int, error) {
		return b.GetIntentionalMissing(ctx, id)
	})
}

func (f *FallbackBackend) SetIntentionalMissing(ctx context.Context, id, column string, rows []int) error {
	return call0(ctx, f, "SetIntentionalMissing", func(b Backend) error {
		return b.SetIntentionalMissing(ctx, id, column, rows)
	})
}

func (f *FallbackBackend) SetIntentionalMissingBatch(ctx context.Context, id string, columns map[string][]int) error {
	return call0(ctx, f, "SetIntentionalMissingBatch", func(b Backend) error {
		return b.SetIntentionalMissingBatch(ctx, id, columns)
	})
}

func (f *FallbackBackend) AddAuditEntry(ctx context.Context, id, entry string) error {
	return call0(ctx, f, "AddAuditEntry", func(b Backend) error {
		return b.AddAuditEntry(ctx, id, entry)
	})
}

func (f *FallbackBackend) GetAuditLog(ctx context.Context, id string) ([]string, error) {
	return call(ctx, f, "GetAuditLog", func(b Backend) ([]string, error) {
		return b.GetAuditLog(ctx, id)
	})
}

func (f *FallbackBackend) GetInitialRowCount(ctx context.Context, id string) (int, bool, error) {
	type result struct {
		n  int
		ok bool
	}
	r, err := call(ctx, f, "GetInitialRowCount", func(b Backend) (result, error) {
		n, ok, err := b.GetInitialRowCount(ctx, id)
		return result{n, ok}, err
	})
	return r.n, r.ok, err
}

func (f *FallbackBackend) CreateTempStorage(ctx context.Context, data TempData, ttl time.Duration) (string, error) {
	return call(ctx, f, "CreateTempStorage", func(b Backend) (string, error) {
		return b.CreateTempStorage(ctx, data, ttl)
	})
}

func (f *FallbackBackend) GetTempStorage(ctx context.Context, id string) (*TempRecord, error) {
	return call(ctx, f, "GetTempStorage", func(b Backend) (*TempRecord, error) {
		return b.GetTempStorage(ctx, id)
	})
}

func (f *FallbackBackend) DeleteTempStorage(ctx context.Context, id string) (bool, error) {
	return call(ctx, f, "DeleteTempStorage", func(b Backend) (bool, error) {
		return b.DeleteTempStorage(ctx, id)
	})
}

func (f *FallbackBackend) CleanupExpiredSessions(ctx context.Context) (int, error) {
	return call(ctx, f, "CleanupExpiredSessions", func(b Backend) (int, error) {
		return b.CleanupExpiredSessions(ctx)
	})
}

func (f *FallbackBackend) CleanupExpiredTempStorage(ctx context.Context) (int, error) {
	return call(ctx, f, "CleanupExpiredTempStorage", func(b Backend) (int, error) {
		return b.CleanupExpiredTempStorage(ctx)
	})
}

func (f *FallbackBackend) ActiveSessionsCount(ctx context.Context) (int, error) {
	return call(ctx, f, "ActiveSessionsCount", func(b Backend) (int, error) {
		return b.ActiveSessionsCount(ctx)
	})
}

// HealthCheck reports the active backend. After a switch the last primary
// failure is carried in Health.Error.
func (f *FallbackBackend) HealthCheck(ctx context.Context) Health {
	b, switched := f.current()
	h := b.HealthCheck(ctx)
	h.Fallback = switched
	if switched && h.Error == "" {
		f.mu.RLock()
		h.Error = f.reason
		f.mu.RUnlock()
	}
	return h
}

// Close stops the local backend and closes the primary when it can be closed.
func (f *FallbackBackend) Close() error {
	var errs []error
	if c, ok := f.primary.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, f.local.Close())
	return errors.Join(errs...)
}
