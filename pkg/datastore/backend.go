package datastore

import (
	"context"
	"time"

	"github.com/dmitrymomot/tabkit/pkg/frame"
)

// Backend is the storage contract shared by the local and remote stores.
//
// Every method honors ctx. Frames passed in are never retained by reference
// and frames returned are the caller's to mutate. Missing or expired
// sessions yield ErrSessionNotFound. On create, a non-positive ttl selects
// the configured default. Every successful write counts as access and
// re-arms the session expiry.
type Backend interface {
	// Type reports which backend currently serves calls.
	Type() BackendType

	// CreateSession stores data under id with an empty history, an empty
	// missing-value registry and the initial audit entry.
	CreateSession(ctx context.Context, id string, data *frame.Frame, filename string, ttl time.Duration) error
	GetDataFrame(ctx context.Context, id string) (*frame.Frame, error)
	// UpdateDataFrame replaces the current snapshot without creating a
	// version and refreshes the session TTL.
	UpdateDataFrame(ctx context.Context, id string, data *frame.Frame) error
	// DeleteSession removes the session and everything it owns. It reports
	// whether anything was removed and never fails for a missing session.
	DeleteSession(ctx context.Context, id string) (bool, error)
	SessionExists(ctx context.Context, id string) (bool, error)
	// TouchSession re-arms the session expiry. A positive ttl also replaces
	// the TTL stored with the session.
	TouchSession(ctx context.Context, id string, ttl time.Duration) error

	GetMetadata(ctx context.Context, id string) (*Metadata, error)
	UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) error

	// CreateVersion records data as an undoable snapshot, evicting the oldest
	// beyond the configured depth, and returns the new version id. It holds
	// the per-session mutex.
	CreateVersion(ctx context.Context, id string, data *frame.Frame, summary string) (int, error)
	// UndoLastChange pops the newest snapshot, makes it current and returns
	// it. It holds the per-session mutex and fails with ErrNoHistory when
	// there is nothing to undo.
	UndoLastChange(ctx context.Context, id string) (*frame.Frame, error)
	// GetHistory returns version records oldest first.
	GetHistory(ctx context.Context, id string) ([]VersionRecord, error)

	GetIntentionalMissing(ctx context.Context, id string) (map[string][]int, error)
	SetIntentionalMissing(ctx context.Context, id, column string, rows []int) error
	SetIntentionalMissingBatch(ctx context.Context, id string, columns map[string][]int) error

	AddAuditEntry(ctx context.Context, id, entry string) error
	GetAuditLog(ctx context.Context, id string) ([]string, error)
	// GetInitialRowCount parses the row count recorded at creation. The bool
	// is false when the audit log has no creation entry.
	GetInitialRowCount(ctx context.Context, id string) (int, bool, error)

	// CreateTempStorage stores sheets under a generated id.
	CreateTempStorage(ctx context.Context, data TempData, ttl time.Duration) (string, error)
	GetTempStorage(ctx context.Context, id string) (*TempRecord, error)
	DeleteTempStorage(ctx context.Context, id string) (bool, error)

	// CleanupExpiredSessions and CleanupExpiredTempStorage remove lapsed
	// entries and return how many were removed. Backends with native expiry
	// return 0.
	CleanupExpiredSessions(ctx context.Context) (int, error)
	CleanupExpiredTempStorage(ctx context.Context) (int, error)

	ActiveSessionsCount(ctx context.Context) (int, error)
	// HealthCheck never fails; problems are reported in Health.Error.
	HealthCheck(ctx context.Context) Health
}
