package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bighogz/Kirana-Predict/internal/cache"
	"github.com/bighogz/Kirana-Predict/internal/config"
	"github.com/bighogz/Kirana-Predict/internal/logging"
	"github.com/bighogz/Kirana-Predict/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DataDir:     dir,
		DBPath:      filepath.Join(dir, "kirana.db"),
		CacheMaxAge: time.Hour,
	}
}

func TestOpenStoreDefaultsToSQLite(t *testing.T) {
	t.Setenv(config.KeyRemoteURL, "")
	t.Setenv(config.KeyRemoteKey, "")
	cfg := testConfig(t)

	st, name, err := OpenStore(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, "sqlite", name)
	assert.IsType(t, &store.SQLite{}, st)
	assert.FileExists(t, cfg.DBPath)
}

func TestOpenStoreFallsBackWhenRemoteUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.SecretsDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SecretsDir, config.KeyRemoteURL), []byte("https://127.0.0.1:1\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SecretsDir, config.KeyRemoteKey), []byte("key"), 0600))

	st, name, err := OpenStore(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, "sqlite", name)
}

func TestOpenCache(t *testing.T) {
	cfg := testConfig(t)
	assert.IsType(t, &cache.File{}, OpenCache(context.Background(), cfg, logging.Discard()))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	cfg.RedisAddr = mr.Addr()
	c := OpenCache(context.Background(), cfg, logging.Discard())
	require.IsType(t, &cache.Redis{}, c)
	c.(*cache.Redis).Close()

	mr.Close()
	assert.IsType(t, &cache.File{}, OpenCache(context.Background(), cfg, logging.Discard()))
}
