package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	r, err := NewRedis(context.Background(), RedisConfig{Addr: mr.Addr()}, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestCaches(t *testing.T) {
	impls := map[string]func(t *testing.T, clock *time.Time) Cache{
		"file": func(t *testing.T, clock *time.Time) Cache {
			f := NewFile(t.TempDir(), time.Hour)
			f.now = func() time.Time { return *clock }
			return f
		},
		"redis": func(t *testing.T, clock *time.Time) Cache {
			r, _ := setupTestRedis(t)
			r.now = func() time.Time { return *clock }
			return r
		},
	}
	for name, mk := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			c := mk(t, &clock)

			_, ok := c.Read(ctx, DashboardKey, true)
			assert.False(t, ok)
			assert.Nil(t, c.CachedAt(ctx, DashboardKey))

			require.NoError(t, c.Write(ctx, DashboardKey, map[string]interface{}{"total_products": 3}))
			m, ok := c.Read(ctx, DashboardKey, false)
			require.True(t, ok)
			assert.Equal(t, float64(3), m["total_products"])
			assert.Equal(t, "2024-05-01T10:00:00Z", m[stampKey])

			at := c.CachedAt(ctx, DashboardKey)
			require.NotNil(t, at)
			assert.True(t, at.Equal(clock))

			clock = clock.Add(2 * time.Hour)
			_, ok = c.Read(ctx, DashboardKey, false)
			assert.False(t, ok, "entry past max age is a miss")
			_, ok = c.Read(ctx, DashboardKey, true)
			assert.True(t, ok, "stale read still allowed")

			require.NoError(t, c.Delete(ctx, DashboardKey))
			_, ok = c.Read(ctx, DashboardKey, true)
			assert.False(t, ok)
			require.NoError(t, c.Delete(ctx, DashboardKey))
		})
	}
}

func TestFileIgnoresUnstampedPayload(t *testing.T) {
	dir := t.TempDir()
	f := NewFile(dir, 0)
	assert.Equal(t, DefaultMaxAge, f.maxAge)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard_cache.json"), []byte(`{"a":1}`), 0600))
	_, ok := f.Read(context.Background(), DashboardKey, true)
	assert.False(t, ok)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dashboard_cache.json"), []byte(`not json`), 0600))
	_, ok = f.Read(context.Background(), DashboardKey, true)
	assert.False(t, ok)
}

func TestFileSanitizesKey(t *testing.T) {
	f := NewFile("/tmp/x", time.Hour)
	assert.Equal(t, filepath.Join("/tmp/x", "______etc_cache.json"), f.path("../../etc"))
}

func TestNewRedisFailsWithoutServer(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedis(context.Background(), RedisConfig{Addr: addr}, time.Hour)
	assert.Error(t, err)
}

func TestRedisKeysArePrefixed(t *testing.T) {
	r, mr := setupTestRedis(t)
	require.NoError(t, r.Write(context.Background(), "dashboard", map[string]interface{}{}))
	assert.True(t, mr.Exists(keyPrefix+"dashboard"))
}
