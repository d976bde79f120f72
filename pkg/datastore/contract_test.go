package datastore_test

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tabkit/pkg/datastore"
	"github.com/dmitrymomot/tabkit/pkg/frame"
	"github.com/dmitrymomot/tabkit/pkg/serializer"
)

func TestBackendContract(t *testing.T) {
	t.Parallel()

	factories := map[string]harnessFactory{
		"memory":         newMemoryHarness,
		"redis/arrow":    redisHarness(serializer.MethodArrow, serializer.CompressionZstd),
		"redis/arrowlz4": redisHarness(serializer.MethodArrow, serializer.CompressionLZ4),
		"redis/cbor":     redisHarness(serializer.MethodCBOR, serializer.CompressionZstd),
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			runContract(t, factory)
		})
	}
}

func runContract(t *testing.T, newHarness harnessFactory) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		data := sampleFrame(t)

		require.NoError(t, h.backend.CreateSession(ctx, "s1", data, "data.csv", time.Minute))

		got, err := h.backend.GetDataFrame(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, data.Equal(got), "stored frame must equal the input")
	})

	t.Run("returned frames are copies", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		data := rowsFrame(t, 3)
		require.NoError(t, h.backend.CreateSession(ctx, "s1", data, "f.csv", 0))

		// mutating the input after create must not leak into the store
		data.Columns()[0].Ints[0] = 100

		got, err := h.backend.GetDataFrame(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.Columns()[0].Ints[0])

		got.Columns()[0].Ints[1] = 100
		again, err := h.backend.GetDataFrame(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), again.Columns()[0].Ints[1])
	})

	t.Run("create rejects duplicates and bad input", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		data := rowsFrame(t, 2)

		require.NoError(t, h.backend.CreateSession(ctx, "s1", data, "f.csv", 0))
		assert.ErrorIs(t, h.backend.CreateSession(ctx, "s1", data, "f.csv", 0), datastore.ErrSessionExists)
		assert.ErrorIs(t, h.backend.CreateSession(ctx, "", data, "f.csv", 0), datastore.ErrInvalidInput)
		assert.ErrorIs(t, h.backend.CreateSession(ctx, "s2", nil, "f.csv", 0), datastore.ErrInvalidInput)
	})

	t.Run("missing session", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())

		_, err := h.backend.GetDataFrame(ctx, "nope")
		assert.ErrorIs(t, err, datastore.ErrSessionNotFound)
		assert.ErrorIs(t, h.backend.UpdateDataFrame(ctx, "nope", rowsFrame(t, 1)), datastore.ErrSessionNotFound)
		_, err = h.backend.GetMetadata(ctx, "nope")
		assert.ErrorIs(t, err, datastore.ErrSessionNotFound)
		_, err = h.backend.CreateVersion(ctx, "nope", rowsFrame(t, 1), "x")
		assert.ErrorIs(t, err, datastore.ErrSessionNotFound)
		_, err = h.backend.UndoLastChange(ctx, "nope")
		assert.ErrorIs(t, err, datastore.ErrSessionNotFound)
		_, err = h.backend.GetHistory(ctx, "nope")
		assert.ErrorIs(t, err, datastore.ErrSessionNotFound)
		_, err = h.backend.GetAuditLog(ctx, "nope")
		assert.ErrorIs(t, err, datastore.ErrSessionNotFound)
		assert.ErrorIs(t, h.backend.AddAuditEntry(ctx, "nope", "x"), datastore.ErrSessionNotFound)
		assert.ErrorIs(t, h.backend.SetIntentionalMissing(ctx, "nope", "c", []int{1}), datastore.ErrSessionNotFound)
		assert.ErrorIs(t, h.backend.TouchSession(ctx, "nope", 0), datastore.ErrSessionNotFound)

		exists, err := h.backend.SessionExists(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("update replaces data without versioning", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 10), "f.csv", 0))

		next := sampleFrame(t)
		require.NoError(t, h.backend.UpdateDataFrame(ctx, "s1", next))

		got, err := h.backend.GetDataFrame(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, next.Equal(got))

		history, err := h.backend.GetHistory(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, history)

		meta, err := h.backend.GetMetadata(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 4, meta.Rows)
		assert.Equal(t, 6, meta.Cols)
		assert.Equal(t, next.ColumnNames(), meta.ColumnNames)
		assert.Equal(t, "category", meta.ColumnTypes["group"])
		assert.Equal(t, 0, meta.CurrentVersion)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 2), "f.csv", 0))
		_, err := h.backend.CreateVersion(ctx, "s1", rowsFrame(t, 2), "v")
		require.NoError(t, err)

		removed, err := h.backend.DeleteSession(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = h.backend.DeleteSession(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = h.backend.GetDataFrame(ctx, "s1")
		assert.ErrorIs(t, err, datastore.ErrSessionNotFound)

		// the id is free again with a clean history
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1), "g.csv", 0))
		history, err := h.backend.GetHistory(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("drop nulls then undo", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		original := rowsFrame(t, 100)
		require.NoError(t, h.backend.CreateSession(ctx, "s1", original, "survey.csv", time.Minute))

		current, err := h.backend.GetDataFrame(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, 100, current.NumRows())

		versionID, err := h.backend.CreateVersion(ctx, "s1", current, "drop nulls")
		require.NoError(t, err)
		assert.Equal(t, 1, versionID)

		cleaned, err := current.Take(makeRange(90))
		require.NoError(t, err)
		require.NoError(t, h.backend.UpdateDataFrame(ctx, "s1", cleaned))

		meta, err := h.backend.GetMetadata(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 90, meta.Rows)
		assert.Equal(t, 1, meta.CurrentVersion)

		restored, err := h.backend.UndoLastChange(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 100, restored.NumRows())
		assert.True(t, original.Equal(restored))

		history, err := h.backend.GetHistory(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, history)

		got, err := h.backend.GetDataFrame(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, original.Equal(got))

		meta, err = h.backend.GetMetadata(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 100, meta.Rows)
		assert.Equal(t, 0, meta.CurrentVersion)

		_, err = h.backend.UndoLastChange(ctx, "s1")
		assert.ErrorIs(t, err, datastore.ErrNoHistory)
	})

	t.Run("version records", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 50), "f.csv", 0))

		_, err := h.backend.CreateVersion(ctx, "s1", rowsFrame(t, 40), "trim outliers")
		require.NoError(t, err)

		history, err := h.backend.GetHistory(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, history, 1)
		rec := history[0]
		assert.Equal(t, 1, rec.VersionID)
		assert.Equal(t, "trim outliers", rec.ActionSummary)
		assert.Equal(t, 50, rec.RowsBefore)
		assert.Equal(t, 40, rec.RowsAfter)
		assert.False(t, rec.Timestamp.IsZero())
	})

	t.Run("history is bounded and undo pops newest", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.MaxVersions = 3
		h := newHarness(t, cfg)
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1), "f.csv", 0))

		for i := 1; i <= 5; i++ {
			id, err := h.backend.CreateVersion(ctx, "s1", rowsFrame(t, i), "step")
			require.NoError(t, err)
			assert.Equal(t, i, id)
		}

		history, err := h.backend.GetHistory(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, []int{3, 4, 5}, versionIDs(history))

		for _, want := range []int{5, 4, 3} {
			restored, err := h.backend.UndoLastChange(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, want, restored.NumRows(), "undo must restore the newest remaining snapshot")
		}
		_, err = h.backend.UndoLastChange(ctx, "s1")
		assert.ErrorIs(t, err, datastore.ErrNoHistory)
	})

	t.Run("version ids are never reused", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1), "f.csv", 0))

		id, err := h.backend.CreateVersion(ctx, "s1", rowsFrame(t, 1), "a")
		require.NoError(t, err)
		assert.Equal(t, 1, id)
		_, err = h.backend.UndoLastChange(ctx, "s1")
		require.NoError(t, err)

		id, err = h.backend.CreateVersion(ctx, "s1", rowsFrame(t, 1), "b")
		require.NoError(t, err)
		assert.Equal(t, 2, id)
	})

	t.Run("concurrent versions", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1), "f.csv", 0))

		const workers = 8
		ids := make([]int, workers)
		errs := make([]error, workers)
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ids[i], errs[i] = h.backend.CreateVersion(ctx, "s1", rowsFrame(t, i+1), "parallel")
			}()
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		sort.Ints(ids)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, ids)

		history, err := h.backend.GetHistory(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []int{4, 5, 6, 7, 8}, versionIDs(history))

		meta, err := h.backend.GetMetadata(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, workers, meta.CurrentVersion)
	})

	t.Run("racing undos", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1), "f.csv", 0))
		_, err := h.backend.CreateVersion(ctx, "s1", rowsFrame(t, 2), "only")
		require.NoError(t, err)

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = h.backend.UndoLastChange(ctx, "s1")
			}()
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, datastore.ErrNoHistory)
		}
		assert.Equal(t, 1, succeeded)

		meta, err := h.backend.GetMetadata(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 0, meta.CurrentVersion)
	})

	t.Run("ids sharing a prefix are independent", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "a", rowsFrame(t, 1), "a.csv", 0))
		require.NoError(t, h.backend.CreateSession(ctx, "a:b", rowsFrame(t, 2), "ab.csv", 0))
		_, err := h.backend.CreateVersion(ctx, "a:b", rowsFrame(t, 3), "edit")
		require.NoError(t, err)

		removed, err := h.backend.DeleteSession(ctx, "a")
		require.NoError(t, err)
		assert.True(t, removed)

		exists, err := h.backend.SessionExists(ctx, "a:b")
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := h.backend.GetDataFrame(ctx, "a:b")
		require.NoError(t, err)
		assert.Equal(t, 2, got.NumRows())

		restored, err := h.backend.UndoLastChange(ctx, "a:b")
		require.NoError(t, err)
		assert.Equal(t, 3, restored.NumRows())
	})

	t.Run("sessions expire", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1), "f.csv", 2*time.Second))

		h.advance(3 * time.Second)

		_, err := h.backend.GetDataFrame(ctx, "s1")
		assert.ErrorIs(t, err, datastore.ErrSessionNotFound)
		exists, err := h.backend.SessionExists(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, exists)

		// an expired id can be reused
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1), "f.csv", 0))
	})

	t.Run("touch extends lifetime", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1), "f.csv", 2*time.Second))

		h.advance(time.Second)
		require.NoError(t, h.backend.TouchSession(ctx, "s1", 0))
		h.advance(1500 * time.Millisecond)

		exists, err := h.backend.SessionExists(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, exists)

		h.advance(time.Second)
		exists, err = h.backend.SessionExists(ctx, "s1")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("touch with ttl replaces it", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1), "f.csv", 2*time.Second))
		require.NoError(t, h.backend.TouchSession(ctx, "s1", time.Minute))

		meta, err := h.backend.GetMetadata(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, time.Minute, meta.TTL)

		h.advance(30 * time.Second)
		_, err = h.backend.GetDataFrame(ctx, "s1")
		assert.NoError(t, err)
	})

	t.Run("writes refresh lifetime", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 3), "f.csv", 2*time.Second))
		_, err := h.backend.CreateVersion(ctx, "s1", rowsFrame(t, 3), "v1")
		require.NoError(t, err)

		h.advance(1500 * time.Millisecond)
		require.NoError(t, h.backend.UpdateDataFrame(ctx, "s1", rowsFrame(t, 2)))
		h.advance(1500 * time.Millisecond)

		got, err := h.backend.GetDataFrame(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 2, got.NumRows())

		// history survives with the session
		restored, err := h.backend.UndoLastChange(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 3, restored.NumRows())
	})

	t.Run("metadata", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", sampleFrame(t), "data.xlsx", 90*time.Second))

		meta, err := h.backend.GetMetadata(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", meta.SessionID)
		assert.Equal(t, "data.xlsx", meta.Filename)
		assert.Equal(t, 90*time.Second, meta.TTL)
		assert.False(t, meta.CreatedAt.IsZero())
		assert.Equal(t, []string{"id", "score", "name", "active", "seen", "group"}, meta.ColumnNames)
		assert.Equal(t, map[string]string{
			"id": "int64", "score": "float64", "name": "string",
			"active": "bool", "seen": "datetime", "group": "category",
		}, meta.ColumnTypes)

		renamed := "clean.xlsx"
		require.NoError(t, h.backend.UpdateMetadata(ctx, "s1", datastore.MetadataPatch{
			Filename:   &renamed,
			Attributes: map[string]string{"sheet": "Sheet1", "owner": "lab"},
		}))
		require.NoError(t, h.backend.UpdateMetadata(ctx, "s1", datastore.MetadataPatch{
			Attributes: map[string]string{"owner": ""},
		}))

		meta, err = h.backend.GetMetadata(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "clean.xlsx", meta.Filename)
		assert.Equal(t, map[string]string{"sheet": "Sheet1"}, meta.Attributes)

		assert.ErrorIs(t, h.backend.UpdateMetadata(ctx, "nope", datastore.MetadataPatch{Filename: &renamed}), datastore.ErrSessionNotFound)
	})

	t.Run("intentional missing registry", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 10), "f.csv", 0))

		missing, err := h.backend.GetIntentionalMissing(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, missing)

		require.NoError(t, h.backend.SetIntentionalMissing(ctx, "s1", "age", []int{7, 3, 3, 1}))
		require.NoError(t, h.backend.SetIntentionalMissingBatch(ctx, "s1", map[string][]int{
			"income": {2},
			"zip":    {5, 4},
		}))

		missing, err = h.backend.GetIntentionalMissing(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, map[string][]int{"age": {1, 3, 7}, "income": {2}, "zip": {4, 5}}, missing)

		require.NoError(t, h.backend.SetIntentionalMissing(ctx, "s1", "income", nil))
		missing, err = h.backend.GetIntentionalMissing(ctx, "s1")
		require.NoError(t, err)
		assert.NotContains(t, missing, "income")

		assert.ErrorIs(t, h.backend.SetIntentionalMissing(ctx, "s1", "age", []int{-1}), datastore.ErrInvalidInput)
		assert.ErrorIs(t, h.backend.SetIntentionalMissing(ctx, "s1", "", []int{1}), datastore.ErrInvalidInput)
	})

	t.Run("audit log", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		require.NoError(t, h.backend.CreateSession(ctx, "s1", rowsFrame(t, 100), "survey.csv", 0))
		require.NoError(t, h.backend.AddAuditEntry(ctx, "s1", "Removed 10 rows with nulls"))

		entries, err := h.backend.GetAuditLog(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Regexp(t, regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] Session created\. Original file: 'survey\.csv'\. Initial rows: 100$`), entries[0])
		assert.Regexp(t, regexp.MustCompile(`^\[[^\]]+\] Removed 10 rows with nulls$`), entries[1])

		n, ok, err := h.backend.GetInitialRowCount(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 100, n)

		assert.ErrorIs(t, h.backend.AddAuditEntry(ctx, "s1", ""), datastore.ErrInvalidInput)
	})

	t.Run("temp storage", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		sheets := map[string]*frame.Frame{
			"Summary": rowsFrame(t, 3),
			"Raw":     sampleFrame(t),
		}

		id, err := h.backend.CreateTempStorage(ctx, datastore.TempData{
			Filename:   "book.xlsx",
			Sheets:     sheets,
			SheetOrder: []string{"Raw", "Summary"},
		}, time.Minute)
		require.NoError(t, err)
		require.NotEmpty(t, id)

		rec, err := h.backend.GetTempStorage(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, "book.xlsx", rec.Filename)
		assert.Equal(t, []string{"Raw", "Summary"}, rec.SheetOrder)
		require.Len(t, rec.Sheets, 2)
		assert.True(t, sheets["Raw"].Equal(rec.Sheets["Raw"]))
		assert.True(t, sheets["Summary"].Equal(rec.Sheets["Summary"]))
		assert.Equal(t, time.Minute, rec.ExpiresAt.Sub(rec.CreatedAt))

		removed, err := h.backend.DeleteTempStorage(ctx, id)
		require.NoError(t, err)
		assert.True(t, removed)
		removed, err = h.backend.DeleteTempStorage(ctx, id)
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = h.backend.GetTempStorage(ctx, id)
		assert.ErrorIs(t, err, datastore.ErrTempNotFound)
	})

	t.Run("temp storage expires", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		id, err := h.backend.CreateTempStorage(ctx, datastore.TempData{
			Sheets: map[string]*frame.Frame{"b": rowsFrame(t, 1), "a": rowsFrame(t, 2)},
		}, time.Second)
		require.NoError(t, err)

		rec, err := h.backend.GetTempStorage(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, rec.SheetOrder)

		h.advance(2 * time.Second)
		_, err = h.backend.GetTempStorage(ctx, id)
		assert.ErrorIs(t, err, datastore.ErrTempNotFound)
	})

	t.Run("temp storage validates input", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())

		_, err := h.backend.CreateTempStorage(ctx, datastore.TempData{}, 0)
		assert.ErrorIs(t, err, datastore.ErrInvalidInput)

		_, err = h.backend.CreateTempStorage(ctx, datastore.TempData{
			Sheets:     map[string]*frame.Frame{"a": rowsFrame(t, 1)},
			SheetOrder: []string{"missing"},
		}, 0)
		assert.ErrorIs(t, err, datastore.ErrInvalidInput)
	})

	t.Run("payload guard", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.MaxPayloadBytes = 256
		h := newHarness(t, cfg)

		err := h.backend.CreateSession(ctx, "s1", rowsFrame(t, 1000), "big.csv", 0)
		assert.ErrorIs(t, err, datastore.ErrPayloadTooLarge)

		require.NoError(t, h.backend.CreateSession(ctx, "s2", rowsFrame(t, 2), "small.csv", 0))
		assert.ErrorIs(t, h.backend.UpdateDataFrame(ctx, "s2", rowsFrame(t, 1000)), datastore.ErrPayloadTooLarge)
		_, err = h.backend.CreateVersion(ctx, "s2", rowsFrame(t, 1000), "big")
		assert.ErrorIs(t, err, datastore.ErrPayloadTooLarge)
	})

	t.Run("active sessions and health", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, testConfig())
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, h.backend.CreateSession(ctx, id, rowsFrame(t, 1), "f.csv", 0))
		}
		_, err := h.backend.DeleteSession(ctx, "b")
		require.NoError(t, err)

		n, err := h.backend.ActiveSessionsCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		health := h.backend.HealthCheck(ctx)
		assert.True(t, health.Reachable)
		assert.Equal(t, h.backend.Type(), health.Backend)
		assert.Equal(t, 2, health.ActiveSessions)
		assert.Empty(t, health.Error)
		assert.False(t, health.Fallback)
	})
}

func versionIDs(records []datastore.VersionRecord) []int {
	ids := make([]int, len(records))
	for i, r := range records {
		ids[i] = r.VersionID
	}
	return ids
}

func makeRange(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
