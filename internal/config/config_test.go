package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "KIRANA_DATA_DIR", "KIRANA_DB_PATH", "DEFAULT_LOOKBACK_DAYS", "FORECAST_HORIZON_DAYS", "CACHE_MAX_AGE_HOURS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, filepath.Join("data", "kirana.db"), cfg.DBPath)
	assert.Equal(t, 30, cfg.DefaultLookbackDays)
	assert.Equal(t, 7, cfg.HorizonDays)
	assert.Equal(t, 24*time.Hour, cfg.CacheMaxAge)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KIRANA_DATA_DIR", "/tmp/k")
	t.Setenv("KIRANA_DB_PATH", "")
	t.Setenv("DEFAULT_LOOKBACK_DAYS", "365")
	t.Setenv("FORECAST_HORIZON_DAYS", "0")
	t.Setenv("TRACE_STDOUT", "yes")
	cfg := Load()
	assert.Equal(t, filepath.Join("/tmp/k", "kirana.db"), cfg.DBPath)
	assert.Equal(t, MaxLookbackDays, cfg.DefaultLookbackDays)
	assert.Equal(t, 7, cfg.HorizonDays)
	assert.True(t, cfg.TraceStdout)
}

func TestLoadRejectsHorizonPastCap(t *testing.T) {
	t.Setenv("FORECAST_HORIZON_DAYS", "91")
	assert.Equal(t, 7, Load().HorizonDays)
	t.Setenv("FORECAST_HORIZON_DAYS", "90")
	assert.Equal(t, MaxHorizonDays, Load().HorizonDays)
}

func TestClampLookback(t *testing.T) {
	assert.Equal(t, 7, ClampLookback(1))
	assert.Equal(t, 30, ClampLookback(30))
	assert.Equal(t, 90, ClampLookback(91))
}

func TestResolveCredentialsFromEnv(t *testing.T) {
	t.Setenv(KeyRemoteURL, "https://abc.supabase.co/")
	t.Setenv(KeyRemoteKey, "anon")
	c, err := ResolveCredentials(EnvSource{})
	require.NoError(t, err)
	assert.Equal(t, "https://abc.supabase.co", c.URL)
	assert.Equal(t, "anon", c.Key)
}

func TestResolveCredentialsFromSecretsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyRemoteURL), []byte("https://x.supabase.co\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, KeyRemoteKey), []byte("secret"), 0600))

	src := NewCredentialSource(&Config{SecretsDir: dir})
	assert.Equal(t, "secrets:"+dir, src.Name())
	c, err := ResolveCredentials(src)
	require.NoError(t, err)
	assert.Equal(t, "https://x.supabase.co", c.URL)
}

func TestResolveCredentialsErrors(t *testing.T) {
	_, err := ResolveCredentials(SecretsDirSource{Dir: t.TempDir()})
	assert.True(t, errors.Is(err, ErrNoCredentials))

	t.Setenv(KeyRemoteURL, "http://insecure.example")
	t.Setenv(KeyRemoteKey, "k")
	_, err = ResolveCredentials(EnvSource{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoCredentials))

	t.Setenv(KeyRemoteKey, "")
	_, err = ResolveCredentials(EnvSource{})
	assert.Error(t, err)
}

func TestMaskURL(t *testing.T) {
	assert.Equal(t, "None", MaskURL(""))
	assert.Equal(t, "https://short.io", MaskURL("https://short.io"))
	long := "https://abcdefghijklmnopqrstuvwxyz.supabase.co/rest"
	assert.Equal(t, long[:30]+"..."+long[len(long)-10:], MaskURL(long))
}
