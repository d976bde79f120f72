package datastore_test

import (
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tabkit/pkg/datastore"
	"github.com/dmitrymomot/tabkit/pkg/frame"
	"github.com/dmitrymomot/tabkit/pkg/serializer"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness pairs a backend with a way to move its notion of time forward.
type harness struct {
	backend datastore.Backend
	advance func(time.Duration)
	redis   *miniredis.Miniredis
}

type harnessFactory func(t *testing.T, cfg datastore.Config) harness

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() datastore.Config {
	cfg := datastore.DefaultConfig()
	cfg.CleanupInterval = 0
	cfg.LockRetryAttempts = 50
	cfg.LockRetryDelay = time.Millisecond
	return cfg
}

func newMemoryHarness(t *testing.T, cfg datastore.Config) harness {
	t.Helper()
	clock := newFakeClock()
	b := datastore.NewMemoryBackend(cfg, datastore.WithClock(clock.Now), datastore.WithLogger(discardLogger()))
	t.Cleanup(func() { _ = b.Close() })
	return harness{backend: b, advance: clock.Advance}
}

func redisHarness(method serializer.Method, compression serializer.Compression) harnessFactory {
	return func(t *testing.T, cfg datastore.Config) harness {
		t.Helper()
		mr := miniredis.RunT(t)
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		cfg.Codec = method
		cfg.Compression = compression
		b, err := datastore.NewRedisBackend(client, cfg, datastore.WithLogger(discardLogger()))
		require.NoError(t, err)
		return harness{backend: b, advance: mr.FastForward, redis: mr}
	}
}

func newRedisHarness(t *testing.T, cfg datastore.Config) harness {
	return redisHarness(serializer.MethodArrow, serializer.CompressionZstd)(t, cfg)
}

// sampleFrame covers every column kind, nulls and NaN.
func sampleFrame(t *testing.T) *frame.Frame {
	t.Helper()
	base := time.Date(2023, 5, 17, 8, 30, 0, 123, time.UTC)
	f, err := frame.New(
		frame.Ints("id", 1, 2, 3, 4),
		frame.Floats("score", 1.5, math.NaN(), -2.25, 0).WithNulls(3),
		frame.Strings("name", "ann", "bob", "", "dan").WithNulls(2),
		frame.Bools("active", true, false, true, false),
		frame.Times("seen", base, base.Add(time.Hour), base.Add(-24*time.Hour), base).WithNulls(1),
		frame.Categories("group", "a", "b", "a", "c"),
	)
	require.NoError(t, err)
	return f
}

// rowsFrame builds a single-column frame with n rows.
func rowsFrame(t *testing.T, n int) *frame.Frame {
	t.Helper()
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(i)
	}
	f, err := frame.New(frame.Ints("value", values...))
	require.NoError(t, err)
	return f
}
