package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tabkit/pkg/frame"
	"github.com/dmitrymomot/tabkit/pkg/lock"
	"github.com/dmitrymomot/tabkit/pkg/logger"
	"github.com/dmitrymomot/tabkit/pkg/redis"
	"github.com/dmitrymomot/tabkit/pkg/serializer"
)

// Session key resources.
const (
	keyMeta     = "meta"
	keyData     = "data"
	keyVersions = "versions"
	keyMissing  = "missing"
	keyAudit    = "audit"
	keyLock     = "lock"
)

// Meta hash fields.
const (
	fieldSessionID      = "session_id"
	fieldFilename       = "filename"
	fieldCreatedAt      = "created_at"
	fieldLastAccessed   = "last_accessed"
	fieldTTL            = "ttl_ms"
	fieldCurrentVersion = "current_version"
	fieldVersionSeq     = "version_seq"
	fieldRows           = "rows"
	fieldCols           = "cols"
	fieldColumns        = "columns"
	fieldColumnTypes    = "column_types"
	fieldSerialization  = "serialization"
	attrFieldPrefix     = "attr."
)

// Temp hash fields. Sheets are stored as sheetFieldPrefix+name.
const (
	tempFieldFilename  = "filename"
	tempFieldCreatedAt = "created_at"
	tempFieldExpiresAt = "expires_at"
	tempFieldOrder     = "sheet_order"
	sheetFieldPrefix   = "sheet:"
)

// RedisBackend implements Backend on Redis. Each session is a family of keys
// under {prefix}:{id}: that share the session's TTL; every write re-arms all
// of them.
type RedisBackend struct {
	client goredis.UniversalClient
	cfg    Config
	ser    *serializer.Serializer
	locker *lock.Locker
	now    func() time.Time
	logger *slog.Logger
}

// NewRedisBackend creates the remote backend. The caller owns client.
func NewRedisBackend(client goredis.UniversalClient, cfg Config, opts ...Option) (*RedisBackend, error) {
	if client == nil {
		return nil, invalidInput("redis client is nil")
	}
	o := newOptions(opts)
	ser, err := cfg.newSerializer(o)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &RedisBackend{
		client: client,
		cfg:    cfg,
		ser:    ser,
		locker: lock.NewLocker(
			lock.NewRedisMutex(client),
			lock.WithTTL(cfg.LockTTL),
			lock.WithRetryAttempts(cfg.LockRetryAttempts),
			lock.WithRetryDelay(cfg.LockRetryDelay),
			lock.WithLogger(o.logger),
		),
		now:    o.now,
		logger: o.logger.With(logger.Component("datastore"), logger.Backend(string(BackendRemote))),
	}, nil
}

func (r *RedisBackend) Type() BackendType { return BackendRemote }

// Close is a no-op; the client belongs to whoever created it.
func (r *RedisBackend) Close() error { return nil }

func (r *RedisBackend) CreateSession(ctx context.Context, id string, data *frame.Frame, filename string, ttl time.Duration) error {
	if err := validateSessionWrite(id, data); err != nil {
		return err
	}
	payload, stats, err := r.ser.Serialize(data)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	ttl = r.cfg.sessionTTL(ttl)
	shape, err := shapeFields(data)
	if err != nil {
		return err
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	args := []any{
		ttl.Milliseconds(),
		payload,
		FormatAuditEntry(now, initialAuditText(filename, data.NumRows())),
		fieldSessionID, id,
		fieldFilename, filename,
		fieldCreatedAt, formatTime(now),
		fieldLastAccessed, formatTime(now),
		fieldTTL, ttl.Milliseconds(),
		fieldCurrentVersion, 0,
		fieldVersionSeq, 0,
		fieldSerialization, statsJSON,
	}
	args = append(args, shape...)

	keys := []string{r.key(id, keyMeta), r.key(id, keyData), r.key(id, keyVersions), r.key(id, keyMissing), r.key(id, keyAudit)}
	created, err := createScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return r.wrap(err)
	}
	if created == 0 {
		return ErrSessionExists
	}

	r.logger.DebugContext(ctx, "session created",
		logger.SessionID(id),
		logger.Shape(data.Shape()),
		slog.Int64("encoded_bytes", stats.EncodedSize),
		slog.String("method", string(stats.Method)),
	)
	return nil
}

func (r *RedisBackend) GetDataFrame(ctx context.Context, id string) (*frame.Frame, error) {
	if id == "" {
		return nil, invalidInput("session id is empty")
	}
	payload, err := r.client.Get(ctx, r.key(id, keyData)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, r.wrap(err)
	}

	f, _, err := r.ser.Deserialize(payload)
	if err != nil {
		r.logger.ErrorContext(ctx, "stored frame is corrupt", logger.SessionID(id), logger.Error(err))
		return nil, err
	}

	if r.cfg.TouchOnRead {
		if err := r.refresh(ctx, id, 0); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (r *RedisBackend) UpdateDataFrame(ctx context.Context, id string, data *frame.Frame) error {
	if err := validateSessionWrite(id, data); err != nil {
		return err
	}
	payload, stats, err := r.ser.Serialize(data)
	if err != nil {
		return err
	}
	shape, err := shapeFields(data)
	if err != nil {
		return err
	}
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	args := append([]any{payload, fieldSerialization, statsJSON}, shape...)
	ok, err := updateScript.Run(ctx, r.client, []string{r.key(id, keyMeta), r.key(id, keyData)}, args...).Int()
	if err != nil {
		return r.wrap(err)
	}
	if ok == 0 {
		return ErrSessionNotFound
	}
	return r.refresh(ctx, id, 0)
}

func (r *RedisBackend) DeleteSession(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, invalidInput("session id is empty")
	}
	keys, err := r.sessionKeys(ctx, id, true)
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return false, r.wrap(err)
	}

	existed := slices.Contains(keys, r.key(id, keyMeta))
	if existed {
		r.logger.DebugContext(ctx, "session deleted", logger.SessionID(id), slog.Int("keys", len(keys)))
	}
	return existed, nil
}

func (r *RedisBackend) SessionExists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, invalidInput("session id is empty")
	}
	n, err := r.client.Exists(ctx, r.key(id, keyMeta)).Result()
	if err != nil {
		return false, r.wrap(err)
	}
	return n == 1, nil
}

func (r *RedisBackend) TouchSession(ctx context.Context, id string, ttl time.Duration) error {
	if id == "" {
		return invalidInput("session id is empty")
	}
	return r.refresh(ctx, id, ttl)
}

func (r *RedisBackend) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	if id == "" {
		return nil, invalidInput("session id is empty")
	}
	fields, err := r.client.HGetAll(ctx, r.key(id, keyMeta)).Result()
	if err != nil {
		return nil, r.wrap(err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	meta, err := decodeMeta(fields)
	if err != nil {
		r.logger.ErrorContext(ctx, "stored metadata is corrupt", logger.SessionID(id), logger.Error(err))
		return nil, errors.Join(ErrSerialization, err)
	}
	return meta, nil
}

func (r *RedisBackend) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) error {
	if id == "" {
		return invalidInput("session id is empty")
	}
	var del []string
	var set []any
	if patch.Filename != nil {
		set = append(set, fieldFilename, *patch.Filename)
	}
	for k, v := range patch.Attributes {
		if v == "" {
			del = append(del, attrFieldPrefix+k)
			continue
		}
		set = append(set, attrFieldPrefix+k, v)
	}
	if err := r.patchHash(ctx, id, r.key(id, keyMeta), del, set); err != nil {
		return err
	}
	return r.refresh(ctx, id, 0)
}

func (r *RedisBackend) CreateVersion(ctx context.Context, id string, data *frame.Frame, summary string) (int, error) {
	if err := validateSessionWrite(id, data); err != nil {
		return 0, err
	}
	// encode before locking to keep the critical section short
	payload, _, err := r.ser.Serialize(data)
	if err != nil {
		return 0, err
	}

	var versionID int
	err = r.locker.WithLock(ctx, r.key(id, keyLock), func(ctx context.Context) error {
		metaKey := r.key(id, keyMeta)
		res, err := allocVersionScript.Run(ctx, r.client, []string{metaKey}).Slice()
		if errors.Is(err, goredis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return r.wrap(err)
		}
		seq, rowsBefore, err := parseAlloc(res)
		if err != nil {
			return errors.Join(ErrSerialization, err)
		}

		rec := VersionRecord{
			VersionID:     seq,
			Timestamp:     r.now().UTC(),
			ActionSummary: summary,
			RowsBefore:    rowsBefore,
			RowsAfter:     data.NumRows(),
		}
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		evicted, err := r.evictedSnapshots(ctx, id)
		if err != nil {
			return err
		}

		keys := append([]string{metaKey, r.key(id, keyVersions), r.versionKey(id, seq)}, evicted...)
		ok, err := commitVersionScript.Run(ctx, r.client, keys, payload, recJSON, r.maxVersions()).Int()
		if err != nil {
			return r.wrap(err)
		}
		if ok == 0 {
			return ErrSessionNotFound
		}
		versionID = seq
		return r.refresh(ctx, id, 0)
	})
	if err != nil {
		// lock acquisition talks to Redis too
		return 0, r.wrap(err)
	}

	r.logger.DebugContext(ctx, "version created", logger.SessionID(id), logger.VersionID(versionID))
	return versionID, nil
}

// evictedSnapshots lists snapshot keys that fall out of the window once one
// more version is pushed. Callers hold the session lock.
func (r *RedisBackend) evictedSnapshots(ctx context.Context, id string) ([]string, error) {
	versionsKey := r.key(id, keyVersions)
	n, err := r.client.LLen(ctx, versionsKey).Result()
	if err != nil {
		return nil, r.wrap(err)
	}
	over := n + 1 - int64(r.maxVersions())
	if over <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, versionsKey, 0, over-1).Result()
	if err != nil {
		return nil, r.wrap(err)
	}
	keys := make([]string, 0, len(raw))
	for _, item := range raw {
		var rec VersionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			r.logger.WarnContext(ctx, "skipping unreadable version record", logger.SessionID(id), logger.Error(err))
			continue
		}
		keys = append(keys, r.versionKey(id, rec.VersionID))
	}
	return keys, nil
}

func (r *RedisBackend) UndoLastChange(ctx context.Context, id string) (*frame.Frame, error) {
	if id == "" {
		return nil, invalidInput("session id is empty")
	}

	var restored *frame.Frame
	var versionID int
	err := r.locker.WithLock(ctx, r.key(id, keyLock), func(ctx context.Context) error {
		versionsKey := r.key(id, keyVersions)
		raw, err := r.client.LIndex(ctx, versionsKey, -1).Result()
		if errors.Is(err, goredis.Nil) {
			exists, err := r.SessionExists(ctx, id)
			if err != nil {
				return err
			}
			if !exists {
				return ErrSessionNotFound
			}
			return ErrNoHistory
		}
		if err != nil {
			return r.wrap(err)
		}

		var rec VersionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			r.logger.ErrorContext(ctx, "version record is corrupt", logger.SessionID(id), logger.Error(err))
			return errors.Join(ErrSerialization, err)
		}

		snapshotKey := r.versionKey(id, rec.VersionID)
		payload, err := r.client.Get(ctx, snapshotKey).Bytes()
		if errors.Is(err, goredis.Nil) {
			// drop the dangling record so later undos can reach older versions
			r.logger.ErrorContext(ctx, "version snapshot missing", logger.SessionID(id), logger.VersionID(rec.VersionID))
			_ = r.client.RPop(ctx, versionsKey).Err()
			return fmt.Errorf("%w: snapshot %d missing", ErrNoHistory, rec.VersionID)
		}
		if err != nil {
			return r.wrap(err)
		}

		f, _, err := r.ser.Deserialize(payload)
		if err != nil {
			r.logger.ErrorContext(ctx, "version snapshot is corrupt", logger.SessionID(id), logger.VersionID(rec.VersionID), logger.Error(err))
			return err
		}
		shape, err := shapeFields(f)
		if err != nil {
			return err
		}

		keys := []string{r.key(id, keyMeta), r.key(id, keyData), versionsKey, snapshotKey}
		ok, err := undoScript.Run(ctx, r.client, keys, append([]any{payload}, shape...)...).Int()
		if err != nil {
			return r.wrap(err)
		}
		if ok == 0 {
			return ErrSessionNotFound
		}
		restored = f
		versionID = rec.VersionID
		return r.refresh(ctx, id, 0)
	})
	if err != nil {
		return nil, r.wrap(err)
	}

	r.logger.DebugContext(ctx, "version restored", logger.SessionID(id), logger.VersionID(versionID))
	return restored, nil
}

func (r *RedisBackend) GetHistory(ctx context.Context, id string) ([]VersionRecord, error) {
	raw, err := r.readList(ctx, id, keyVersions)
	if err != nil {
		return nil, err
	}
	out := make([]VersionRecord, 0, len(raw))
	for _, item := range raw {
		var rec VersionRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			r.logger.ErrorContext(ctx, "version record is corrupt", logger.SessionID(id), logger.Error(err))
			return nil, errors.Join(ErrSerialization, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisBackend) GetIntentionalMissing(ctx context.Context, id string) (map[string][]int, error) {
	if id == "" {
		return nil, invalidInput("session id is empty")
	}
	var (
		exists *goredis.IntCmd
		fields *goredis.MapStringStringCmd
	)
	_, err := r.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		exists = p.Exists(ctx, r.key(id, keyMeta))
		fields = p.HGetAll(ctx, r.key(id, keyMissing))
		return nil
	})
	if err != nil {
		return nil, r.wrap(err)
	}
	if exists.Val() == 0 {
		return nil, ErrSessionNotFound
	}

	out := make(map[string][]int, len(fields.Val()))
	for column, raw := range fields.Val() {
		var rows []int
		if err := json.Unmarshal([]byte(raw), &rows); err != nil {
			return nil, errors.Join(ErrSerialization, fmt.Errorf("missing registry column %q: %w", column, err))
		}
		out[column] = rows
	}
	return out, nil
}

func (r *RedisBackend) SetIntentionalMissing(ctx context.Context, id, column string, rows []int) error {
	return r.SetIntentionalMissingBatch(ctx, id, map[string][]int{column: rows})
}

func (r *RedisBackend) SetIntentionalMissingBatch(ctx context.Context, id string, columns map[string][]int) error {
	if id == "" {
		return invalidInput("session id is empty")
	}
	norm, err := normalizeBatch(columns)
	if err != nil {
		return err
	}

	var del []string
	var set []any
	for column, rows := range norm {
		if len(rows) == 0 {
			del = append(del, column)
			continue
		}
		raw, err := json.Marshal(rows)
		if err != nil {
			return err
		}
		set = append(set, column, raw)
	}
	if err := r.patchHash(ctx, id, r.key(id, keyMissing), del, set); err != nil {
		return err
	}
	return r.refresh(ctx, id, 0)
}

func (r *RedisBackend) AddAuditEntry(ctx context.Context, id, entry string) error {
	if id == "" {
		return invalidInput("session id is empty")
	}
	if entry == "" {
		return invalidInput("audit entry is empty")
	}
	keys := []string{r.key(id, keyMeta), r.key(id, keyAudit)}
	ok, err := appendScript.Run(ctx, r.client, keys, FormatAuditEntry(r.now().UTC(), entry)).Int()
	if err != nil {
		return r.wrap(err)
	}
	if ok == 0 {
		return ErrSessionNotFound
	}
	return r.refresh(ctx, id, 0)
}

func (r *RedisBackend) GetAuditLog(ctx context.Context, id string) ([]string, error) {
	return r.readList(ctx, id, keyAudit)
}

func (r *RedisBackend) GetInitialRowCount(ctx context.Context, id string) (int, bool, error) {
	entries, err := r.GetAuditLog(ctx, id)
	if err != nil {
		return 0, false, err
	}
	n, ok := ParseInitialRowCount(entries)
	return n, ok, nil
}

func (r *RedisBackend) CreateTempStorage(ctx context.Context, data TempData, ttl time.Duration) (string, error) {
	if err := data.validate(); err != nil {
		return "", err
	}

	order := data.order()
	payloads := make([][]byte, len(order))
	g, _ := errgroup.WithContext(ctx)
	for i, name := range order {
		g.Go(func() error {
			payload, _, err := r.ser.Serialize(data.Sheets[name])
			if err != nil {
				return fmt.Errorf("sheet %q: %w", name, err)
			}
			payloads[i] = payload
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	orderJSON, err := json.Marshal(order)
	if err != nil {
		return "", err
	}
	now := r.now().UTC()
	ttl = r.cfg.tempTTL(ttl)
	id := uuid.NewString()

	fields := []any{
		tempFieldFilename, data.Filename,
		tempFieldCreatedAt, formatTime(now),
		tempFieldExpiresAt, formatTime(now.Add(ttl)),
		tempFieldOrder, orderJSON,
	}
	for i, name := range order {
		fields = append(fields, sheetFieldPrefix+name, payloads[i])
	}

	key := r.tempKey(id)
	_, err = r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, key, fields...)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return "", r.wrap(err)
	}

	r.logger.DebugContext(ctx, "temp storage created", logger.TempID(id), slog.Int("sheets", len(order)))
	return id, nil
}

func (r *RedisBackend) GetTempStorage(ctx context.Context, id string) (*TempRecord, error) {
	if id == "" {
		return nil, invalidInput("temp id is empty")
	}
	fields, err := r.client.HGetAll(ctx, r.tempKey(id)).Result()
	if err != nil {
		return nil, r.wrap(err)
	}
	if len(fields) == 0 {
		return nil, ErrTempNotFound
	}

	rec := &TempRecord{ID: id, Filename: fields[tempFieldFilename]}
	if rec.CreatedAt, err = parseTime(fields[tempFieldCreatedAt]); err != nil {
		return nil, errors.Join(ErrSerialization, err)
	}
	if rec.ExpiresAt, err = parseTime(fields[tempFieldExpiresAt]); err != nil {
		return nil, errors.Join(ErrSerialization, err)
	}
	if err := json.Unmarshal([]byte(fields[tempFieldOrder]), &rec.SheetOrder); err != nil {
		return nil, errors.Join(ErrSerialization, err)
	}

	frames := make([]*frame.Frame, len(rec.SheetOrder))
	g, _ := errgroup.WithContext(ctx)
	for i, name := range rec.SheetOrder {
		g.Go(func() error {
			raw, ok := fields[sheetFieldPrefix+name]
			if !ok {
				return errors.Join(ErrSerialization, fmt.Errorf("sheet %q missing", name))
			}
			f, _, err := r.ser.Deserialize([]byte(raw))
			if err != nil {
				return fmt.Errorf("sheet %q: %w", name, err)
			}
			frames[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.ErrorContext(ctx, "temp storage is corrupt", logger.TempID(id), logger.Error(err))
		return nil, err
	}

	rec.Sheets = make(map[string]*frame.Frame, len(frames))
	for i, name := range rec.SheetOrder {
		rec.Sheets[name] = frames[i]
	}
	return rec, nil
}

func (r *RedisBackend) DeleteTempStorage(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, invalidInput("temp id is empty")
	}
	n, err := r.client.Del(ctx, r.tempKey(id)).Result()
	if err != nil {
		return false, r.wrap(err)
	}
	return n > 0, nil
}

// CleanupExpiredSessions returns 0; Redis expires keys natively.
func (r *RedisBackend) CleanupExpiredSessions(ctx context.Context) (int, error) { return 0, nil }

// CleanupExpiredTempStorage returns 0; Redis expires keys natively.
func (r *RedisBackend) CleanupExpiredTempStorage(ctx context.Context) (int, error) { return 0, nil }

func (r *RedisBackend) ActiveSessionsCount(ctx context.Context) (int, error) {
	pattern := redis.EscapePattern(r.cfg.KeyPrefix+":") + "*:" + keyMeta
	n := 0
	err := redis.ScanEach(ctx, r.client, pattern, r.cfg.Redis.ScanBatchSize, func(keys []string) error {
		n += len(keys)
		return nil
	})
	if err != nil {
		return 0, r.wrap(err)
	}
	return n, nil
}

func (r *RedisBackend) HealthCheck(ctx context.Context) Health {
	h := Health{Backend: BackendRemote}

	start := time.Now()
	err := redis.Healthcheck(r.client)(ctx)
	h.Latency = time.Since(start)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Reachable = true

	if n, err := r.ActiveSessionsCount(ctx); err == nil {
		h.ActiveSessions = n
	} else {
		h.Error = err.Error()
	}
	if info, err := redis.Info(ctx, r.client); err == nil {
		h.ServerVersion = info.Version
		h.UsedMemory = info.UsedMemory
	}
	return h
}

// refresh marks the session accessed, optionally replaces its TTL and
// re-arms expiry on every key the session owns except the lock.
func (r *RedisBackend) refresh(ctx context.Context, id string, ttl time.Duration) error {
	ttlMS, err := touchScript.Run(ctx, r.client, []string{r.key(id, keyMeta)},
		formatTime(r.now().UTC()), max(ttl.Milliseconds(), 0)).Int64()
	if err != nil {
		return r.wrap(err)
	}
	if ttlMS <= 0 {
		return ErrSessionNotFound
	}

	keys, err := r.sessionKeys(ctx, id, false)
	if err != nil {
		return err
	}
	expiry := time.Duration(ttlMS) * time.Millisecond
	_, err = r.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		for _, k := range keys {
			p.PExpire(ctx, k, expiry)
		}
		return nil
	})
	return r.wrap(err)
}

// sessionKeys lists the keys currently stored for a session. Ids may contain
// the separator, so the scan also returns keys of sessions whose id extends
// this one; those are filtered out by resource name.
func (r *RedisBackend) sessionKeys(ctx context.Context, id string, withLock bool) ([]string, error) {
	base := r.key(id, "")
	keys, err := redis.ScanKeys(ctx, r.client, redis.EscapePattern(base)+"*", r.cfg.Redis.ScanBatchSize)
	if err != nil {
		return nil, r.wrap(err)
	}
	return slices.DeleteFunc(keys, func(k string) bool {
		resource := strings.TrimPrefix(k, base)
		if resource == keyLock {
			return !withLock
		}
		return !isSessionResource(resource)
	}), nil
}

// isSessionResource reports whether resource is one of the names key and
// versionKey produce.
func isSessionResource(resource string) bool {
	switch resource {
	case keyMeta, keyData, keyVersions, keyMissing, keyAudit, keyLock:
		return true
	}
	n, ok := strings.CutPrefix(resource, "version:")
	if !ok || n == "" {
		return false
	}
	for _, c := range n {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (r *RedisBackend) patchHash(ctx context.Context, id, target string, del []string, set []any) error {
	if len(del) == 0 && len(set) == 0 {
		exists, err := r.SessionExists(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return ErrSessionNotFound
		}
		return nil
	}
	args := make([]any, 0, 1+len(del)+len(set))
	args = append(args, len(del))
	for _, f := range del {
		args = append(args, f)
	}
	args = append(args, set...)

	ok, err := hashPatchScript.Run(ctx, r.client, []string{r.key(id, keyMeta), target}, args...).Int()
	if err != nil {
		return r.wrap(err)
	}
	if ok == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisBackend) readList(ctx context.Context, id, resource string) ([]string, error) {
	if id == "" {
		return nil, invalidInput("session id is empty")
	}
	var (
		exists *goredis.IntCmd
		items  *goredis.StringSliceCmd
	)
	_, err := r.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
		exists = p.Exists(ctx, r.key(id, keyMeta))
		items = p.LRange(ctx, r.key(id, resource), 0, -1)
		return nil
	})
	if err != nil {
		return nil, r.wrap(err)
	}
	if exists.Val() == 0 {
		return nil, ErrSessionNotFound
	}
	return items.Val(), nil
}

func (r *RedisBackend) key(id, resource string) string {
	return r.cfg.KeyPrefix + ":" + id + ":" + resource
}

func (r *RedisBackend) versionKey(id string, version int) string {
	return r.key(id, "version:"+strconv.Itoa(version))
}

func (r *RedisBackend) tempKey(id string) string {
	return r.cfg.KeyPrefix + "-temp:" + id
}

func (r *RedisBackend) maxVersions() int {
	return max(r.cfg.MaxVersions, 1)
}

// wrap marks connectivity failures as ErrBackendUnavailable.
func (r *RedisBackend) wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	if isConnectivityError(err) {
		return errors.Join(ErrBackendUnavailable, err)
	}
	return err
}

func isConnectivityError(err error) bool {
	if errors.Is(err, goredis.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func shapeFields(f *frame.Frame) ([]any, error) {
	names, err := json.Marshal(f.ColumnNames())
	if err != nil {
		return nil, err
	}
	types, err := json.Marshal(f.ColumnTypes())
	if err != nil {
		return nil, err
	}
	return []any{
		fieldRows, f.NumRows(),
		fieldCols, f.NumCols(),
		fieldColumns, names,
		fieldColumnTypes, types,
	}, nil
}

func decodeMeta(fields map[string]string) (*Metadata, error) {
	var err error
	m := &Metadata{
		SessionID: fields[fieldSessionID],
		Filename:  fields[fieldFilename],
	}
	if m.CreatedAt, err = parseTime(fields[fieldCreatedAt]); err != nil {
		return nil, err
	}
	if m.LastAccessed, err = parseTime(fields[fieldLastAccessed]); err != nil {
		return nil, err
	}

	ints := map[string]*int{
		fieldCurrentVersion: &m.CurrentVersion,
		fieldRows:           &m.Rows,
		fieldCols:           &m.Cols,
	}
	for name, dst := range ints {
		if *dst, err = atoiField(fields, name); err != nil {
			return nil, err
		}
	}
	ttlMS, err := atoiField(fields, fieldTTL)
	if err != nil {
		return nil, err
	}
	m.TTL = time.Duration(ttlMS) * time.Millisecond

	if err := unmarshalField(fields, fieldColumns, &m.ColumnNames); err != nil {
		return nil, err
	}
	if err := unmarshalField(fields, fieldColumnTypes, &m.ColumnTypes); err != nil {
		return nil, err
	}
	if raw, ok := fields[fieldSerialization]; ok && raw != "" {
		var stats serializer.Stats
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			return nil, fmt.Errorf("field %s: %w", fieldSerialization, err)
		}
		m.Serialization = &stats
	}

	for k, v := range fields {
		if name, ok := strings.CutPrefix(k, attrFieldPrefix); ok {
			if m.Attributes == nil {
				m.Attributes = make(map[string]string)
			}
			m.Attributes[name] = v
		}
	}
	return m, nil
}

func atoiField(fields map[string]string, name string) (int, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", name, err)
	}
	return n, nil
}

func unmarshalField(fields map[string]string, name string, dst any) error {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	return nil
}

func parseAlloc(res []any) (int, int, error) {
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected version allocation reply %v", res)
	}
	seq, ok := res[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected version sequence %v", res[0])
	}
	rows := 0
	if s, ok := res[1].(string); ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("rows field: %w", err)
		}
		rows = n
	}
	return int(seq), rows, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
