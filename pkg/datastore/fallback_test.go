package datastore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tabkit/pkg/datastore"
)

func newFallback(t *testing.T) (*datastore.FallbackBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	remote, err := datastore.NewRedisBackend(client, cfg, datastore.WithLogger(discardLogger()))
	require.NoError(t, err)
	local := datastore.NewMemoryBackend(cfg, datastore.WithLogger(discardLogger()))

	fb := datastore.NewFallbackBackend(remote, local, datastore.WithLogger(discardLogger()))
	t.Cleanup(func() { _ = fb.Close() })
	return fb, mr
}

func TestFallbackBackend_ServesPrimary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fb, mr := newFallback(t)

	require.NoError(t, fb.CreateSession(ctx, "s1", rowsFrame(t, 2), "f.csv", 0))
	assert.True(t, mr.Exists("tabkit:s1:meta"))
	assert.Equal(t, datastore.BackendRemote, fb.Type())
	assert.False(t, fb.Fallback())

	// domain errors never trigger a switch
	_, err := fb.GetDataFrame(ctx, "missing")
	require.ErrorIs(t, err, datastore.ErrSessionNotFound)
	assert.False(t, fb.Fallback())

	health := fb.HealthCheck(ctx)
	assert.True(t, health.Reachable)
	assert.False(t, health.Fallback)
}

func TestFallbackBackend_SwitchesWhenUnavailable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fb, mr := newFallback(t)

	mr.Close()

	// the failing call is retried on the local backend
	require.NoError(t, fb.CreateSession(ctx, "s1", rowsFrame(t, 3), "f.csv", 0))
	assert.True(t, fb.Fallback())
	assert.Equal(t, datastore.BackendLocal, fb.Type())

	got, err := fb.GetDataFrame(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.NumRows())

	health := fb.HealthCheck(ctx)
	assert.True(t, health.Reachable)
	assert.True(t, health.Fallback)
	assert.Equal(t, datastore.BackendLocal, health.Backend)
	assert.NotEmpty(t, health.Error)
}

func TestFallbackBackend_SwitchesOnLockedOperations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create version", func(t *testing.T) {
		t.Parallel()
		fb, mr := newFallback(t)
		require.NoError(t, fb.CreateSession(ctx, "s1", rowsFrame(t, 2), "f.csv", 0))
		mr.Close()

		// remote data is not migrated, so the local retry finds no session
		_, err := fb.CreateVersion(ctx, "s1", rowsFrame(t, 3), "edit")
		require.ErrorIs(t, err, datastore.ErrSessionNotFound)
		assert.True(t, fb.Fallback())
		assert.Equal(t, datastore.BackendLocal, fb.Type())
	})

	t.Run("undo", func(t *testing.T) {
		t.Parallel()
		fb, mr := newFallback(t)
		require.NoError(t, fb.CreateSession(ctx, "s1", rowsFrame(t, 2), "f.csv", 0))
		_, err := fb.CreateVersion(ctx, "s1", rowsFrame(t, 2), "edit")
		require.NoError(t, err)
		mr.Close()

		_, err = fb.UndoLastChange(ctx, "s1")
		require.ErrorIs(t, err, datastore.ErrSessionNotFound)
		assert.True(t, fb.Fallback())
		assert.Equal(t, datastore.BackendLocal, fb.Type())
	})
}
