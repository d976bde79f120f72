package datastore

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tabkit/pkg/frame"
	"github.com/dmitrymomot/tabkit/pkg/lock"
	"github.com/dmitrymomot/tabkit/pkg/logger"
	"github.com/dmitrymomot/tabkit/pkg/serializer"
)

type memorySession struct {
	meta       Metadata
	data       *frame.Frame
	versions   []memoryVersion
	versionSeq int
	missing    map[string][]int
	audit      []string
}

func (s *memorySession) expired(now time.Time) bool {
	return !now.Before(s.meta.ExpiresAt())
}

type memoryVersion struct {
	record VersionRecord
	data   *frame.Frame
}

// MemoryBackend implements Backend inside the process. Frames are cloned on
// the way in and out. Expired entries are dropped when touched and by an
// optional periodic sweep.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	temps    map[string]*TempRecord

	cfg    Config
	locker *lock.Locker
	now    func() time.Time
	logger *slog.Logger

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryBackend creates the local backend. A positive
// Config.CleanupInterval starts a sweep goroutine that Close stops.
func NewMemoryBackend(cfg Config, opts ...Option) *MemoryBackend {
	o := newOptions(opts)
	m := &MemoryBackend{
		sessions: make(map[string]*memorySession),
		temps:    make(map[string]*TempRecord),
		cfg:      cfg,
		locker: lock.NewLocker(
			lock.NewMemoryMutex().WithClock(o.now),
			lock.WithTTL(cfg.LockTTL),
			lock.WithRetryAttempts(cfg.LockRetryAttempts),
			lock.WithRetryDelay(cfg.LockRetryDelay),
			lock.WithLogger(o.logger),
		),
		now:    o.now,
		logger: o.logger.With(logger.Component("datastore"), logger.Backend(string(BackendLocal))),
		done:   make(chan struct{}),
	}

	if cfg.CleanupInterval > 0 {
		m.ticker = time.NewTicker(cfg.CleanupInterval)
		go m.cleanupLoop()
	}
	return m
}

func (m *MemoryBackend) Type() BackendType { return BackendLocal }

func (m *MemoryBackend) CreateSession(ctx context.Context, id string, data *frame.Frame, filename string, ttl time.Duration) error {
	if err := validateSessionWrite(id, data); err != nil {
		return err
	}
	if err := serializer.CheckSize(data, m.cfg.MaxPayloadBytes); err != nil {
		return err
	}

	now := m.now()
	meta := Metadata{
		SessionID:    id,
		Filename:     filename,
		CreatedAt:    now,
		LastAccessed: now,
		TTL:          m.cfg.sessionTTL(ttl),
	}
	meta.setShape(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && !s.expired(now) {
		return ErrSessionExists
	}
	m.sessions[id] = &memorySession{
		meta:    meta,
		data:    data.Clone(),
		missing: make(map[string][]int),
		audit:   []string{FormatAuditEntry(now, initialAuditText(filename, data.NumRows()))},
	}

	m.logger.DebugContext(ctx, "session created", logger.SessionID(id), logger.Shape(data.Shape()))
	return nil
}

func (m *MemoryBackend) GetDataFrame(ctx context.Context, id string) (*frame.Frame, error) {
	var out *frame.Frame
	read := func(s *memorySession, _ time.Time) error {
		out = s.data.Clone()
		return nil
	}
	var err error
	if m.cfg.TouchOnRead {
		err = m.update(id, read)
	} else {
		err = m.view(id, read)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MemoryBackend) UpdateDataFrame(ctx context.Context, id string, data *frame.Frame) error {
	if err := validateSessionWrite(id, data); err != nil {
		return err
	}
	if err := serializer.CheckSize(data, m.cfg.MaxPayloadBytes); err != nil {
		return err
	}
	return m.update(id, func(s *memorySession, _ time.Time) error {
		s.data = data.Clone()
		s.meta.setShape(data)
		return nil
	})
}

func (m *MemoryBackend) DeleteSession(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	delete(m.sessions, id)
	return !s.expired(m.now()), nil
}

func (m *MemoryBackend) SessionExists(ctx context.Context, id string) (bool, error) {
	err := m.view(id, func(*memorySession, time.Time) error { return nil })
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TouchSession re-arms the session expiry. A positive ttl also replaces the
// session's TTL.
func (m *MemoryBackend) TouchSession(ctx context.Context, id string, ttl time.Duration) error {
	return m.update(id, func(s *memorySession, _ time.Time) error {
		if ttl > 0 {
			s.meta.TTL = ttl
		}
		return nil
	})
}

func (m *MemoryBackend) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	var meta Metadata
	err := m.view(id, func(s *memorySession, _ time.Time) error {
		meta = s.meta.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (m *MemoryBackend) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) error {
	return m.update(id, func(s *memorySession, _ time.Time) error {
		patch.apply(&s.meta)
		return nil
	})
}

func (m *MemoryBackend) CreateVersion(ctx context.Context, id string, data *frame.Frame, summary string) (int, error) {
	if err := validateSessionWrite(id, data); err != nil {
		return 0, err
	}
	if err := serializer.CheckSize(data, m.cfg.MaxPayloadBytes); err != nil {
		return 0, err
	}

	var versionID int
	err := m.locker.WithLock(ctx, sessionLockKey(m.cfg.KeyPrefix, id), func(ctx context.Context) error {
		return m.update(id, func(s *memorySession, now time.Time) error {
			s.versionSeq++
			rec := VersionRecord{
				VersionID:     s.versionSeq,
				Timestamp:     now,
				ActionSummary: summary,
				RowsBefore:    s.data.NumRows(),
				RowsAfter:     data.NumRows(),
			}
			s.versions = append(s.versions, memoryVersion{record: rec, data: data.Clone()})
			if over := len(s.versions) - max(m.cfg.MaxVersions, 1); over > 0 {
				s.versions = slices.Clone(s.versions[over:])
			}
			s.meta.CurrentVersion++
			versionID = rec.VersionID
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	m.logger.DebugContext(ctx, "version created", logger.SessionID(id), logger.VersionID(versionID))
	return versionID, nil
}

func (m *MemoryBackend) UndoLastChange(ctx context.Context, id string) (*frame.Frame, error) {
	if id == "" {
		return nil, invalidInput("session id is empty")
	}

	var restored *frame.Frame
	var versionID int
	err := m.locker.WithLock(ctx, sessionLockKey(m.cfg.KeyPrefix, id), func(ctx context.Context) error {
		return m.update(id, func(s *memorySession, _ time.Time) error {
			if len(s.versions) == 0 {
				return ErrNoHistory
			}
			last := s.versions[len(s.versions)-1]
			s.versions = s.versions[:len(s.versions)-1]
			s.data = last.data
			s.meta.setShape(last.data)
			s.meta.CurrentVersion--
			restored = last.data.Clone()
			versionID = last.record.VersionID
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.DebugContext(ctx, "version restored", logger.SessionID(id), logger.VersionID(versionID))
	return restored, nil
}

func (m *MemoryBackend) GetHistory(ctx context.Context, id string) ([]VersionRecord, error) {
	var out []VersionRecord
	err := m.view(id, func(s *memorySession, _ time.Time) error {
		out = make([]VersionRecord, len(s.versions))
		for i, v := range s.versions {
			out[i] = v.record
		}
		return nil
	})
	return out, err
}

func (m *MemoryBackend) GetIntentionalMissing(ctx context.Context, id string) (map[string][]int, error) {
	var out map[string][]int
	err := m.view(id, func(s *memorySession, _ time.Time) error {
		out = cloneMissing(s.missing)
		return nil
	})
	return out, err
}

func (m *MemoryBackend) SetIntentionalMissing(ctx context.Context, id, column string, rows []int) error {
	norm, err := normalizeRows(column, rows)
	if err != nil {
		return err
	}
	return m.SetIntentionalMissingBatch(ctx, id, map[string][]int{column: norm})
}

func (m *MemoryBackend) SetIntentionalMissingBatch(ctx context.Context, id string, columns map[string][]int) error {
	norm, err := normalizeBatch(columns)
	if err != nil {
		return err
	}
	return m.update(id, func(s *memorySession, _ time.Time) error {
		for column, rows := range norm {
			if len(rows) == 0 {
				delete(s.missing, column)
				continue
			}
			s.missing[column] = rows
		}
		return nil
	})
}

func (m *MemoryBackend) AddAuditEntry(ctx context.Context, id, entry string) error {
	if entry == "" {
		return invalidInput("audit entry is empty")
	}
	return m.update(id, func(s *memorySession, now time.Time) error {
		s.audit = append(s.audit, FormatAuditEntry(now, entry))
		return nil
	})
}

func (m *MemoryBackend) GetAuditLog(ctx context.Context, id string) ([]string, error) {
	var out []string
	err := m.view(id, func(s *memorySession, _ time.Time) error {
		out = slices.Clone(s.audit)
		return nil
	})
	return out, err
}

func (m *MemoryBackend) GetInitialRowCount(ctx context.Context, id string) (int, bool, error) {
	var (
		n  int
		ok bool
	)
	err := m.view(id, func(s *memorySession, _ time.Time) error {
		n, ok = ParseInitialRowCount(s.audit)
		return nil
	})
	return n, ok, err
}

func (m *MemoryBackend) CreateTempStorage(ctx context.Context, data TempData, ttl time.Duration) (string, error) {
	if err := data.validate(); err != nil {
		return "", err
	}
	for _, f := range data.Sheets {
		if err := serializer.CheckSize(f, m.cfg.MaxPayloadBytes); err != nil {
			return "", err
		}
	}

	now := m.now()
	rec := &TempRecord{
		ID:         uuid.NewString(),
		Filename:   data.Filename,
		Sheets:     make(map[string]*frame.Frame, len(data.Sheets)),
		SheetOrder: data.order(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.cfg.tempTTL(ttl)),
	}
	for name, f := range data.Sheets {
		rec.Sheets[name] = f.Clone()
	}

	m.mu.Lock()
	m.temps[rec.ID] = rec
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "temp storage created", logger.TempID(rec.ID), slog.Int("sheets", len(rec.Sheets)))
	return rec.ID, nil
}

func (m *MemoryBackend) GetTempStorage(ctx context.Context, id string) (*TempRecord, error) {
	now := m.now()

	m.mu.RLock()
	rec, ok := m.temps[id]
	if ok && now.Before(rec.ExpiresAt) {
		out := rec.clone()
		m.mu.RUnlock()
		return out, nil
	}
	m.mu.RUnlock()

	if ok {
		m.mu.Lock()
		if rec, ok := m.temps[id]; ok && !now.Before(rec.ExpiresAt) {
			delete(m.temps, id)
		}
		m.mu.Unlock()
	}
	return nil, ErrTempNotFound
}

func (m *MemoryBackend) DeleteTempStorage(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.temps[id]
	if !ok {
		return false, nil
	}
	delete(m.temps, id)
	return m.now().Before(rec.ExpiresAt), nil
}

func (m *MemoryBackend) CleanupExpiredSessions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if s.expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.DebugContext(ctx, "expired sessions removed", slog.Int("count", removed))
	}
	return removed, nil
}

func (m *MemoryBackend) CleanupExpiredTempStorage(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, rec := range m.temps {
		if !now.Before(rec.ExpiresAt) {
			delete(m.temps, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.DebugContext(ctx, "expired temp storage removed", slog.Int("count", removed))
	}
	return removed, nil
}

func (m *MemoryBackend) ActiveSessionsCount(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	n := 0
	for _, s := range m.sessions {
		if !s.expired(now) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryBackend) HealthCheck(ctx context.Context) Health {
	start := time.Now()
	n, _ := m.ActiveSessionsCount(ctx)
	return Health{
		Backend:        BackendLocal,
		Reachable:      true,
		Latency:        time.Since(start),
		ActiveSessions: n,
	}
}

// Close stops the cleanup goroutine
func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() {
		if m.ticker != nil {
			m.ticker.Stop()
			close(m.done)
		}
	})
	return nil
}

// cleanupLoop runs periodic cleanup of expired sessions and temp storage
func (m *MemoryBackend) cleanupLoop() {
	for {
		select {
		case <-m.ticker.C:
			_, _ = m.CleanupExpiredSessions(context.Background())
			_, _ = m.CleanupExpiredTempStorage(context.Background())
		case <-m.done:
			return
		}
	}
}

// view runs fn against a live session under the read lock. An expired
// session is dropped and reported as missing.
func (m *MemoryBackend) view(id string, fn func(s *memorySession, now time.Time) error) error {
	if id == "" {
		return invalidInput("session id is empty")
	}
	now := m.now()

	m.mu.RLock()
	s, ok := m.sessions[id]
	if ok && !s.expired(now) {
		err := fn(s, now)
		m.mu.RUnlock()
		return err
	}
	m.mu.RUnlock()

	if ok {
		m.dropExpired(id, now)
	}
	return ErrSessionNotFound
}

// update runs fn against a live session under the write lock and, when fn
// succeeds, marks the session as accessed.
func (m *MemoryBackend) update(id string, fn func(s *memorySession, now time.Time) error) error {
	if id == "" {
		return invalidInput("session id is empty")
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.expired(now) {
		delete(m.sessions, id)
		return ErrSessionNotFound
	}
	if err := fn(s, now); err != nil {
		return err
	}
	s.meta.LastAccessed = now
	return nil
}

func (m *MemoryBackend) dropExpired(id string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.expired(now) {
		delete(m.sessions, id)
	}
}

func validateSessionWrite(id string, data *frame.Frame) error {
	if id == "" {
		return invalidInput("session id is empty")
	}
	if data == nil {
		return invalidInput("frame is nil")
	}
	return nil
}

func sessionLockKey(prefix, id string) string {
	return prefix + ":" + id + ":lock"
}
