package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentuity/go-cachespace/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "cachespace.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(body), 0o644))
	return fn
}

func TestLoadEmpty(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, c.Path)
	assert.Zero(t, c.MemoryExpires)
	assert.True(t, c.DiskQuotaBytes.IsZero())
}

func TestLoadFile(t *testing.T) {
	fn := writeConfig(t, `
path: /tmp/cs
log_level: debug
memory_expires: 10m
disk_expires: 1d12h
expiry_check: 30s
query_timeout: 2s
shards: 8
disk_quota: 512Mi
redis:
  url: redis://localhost:6379/2
  prefix: app
  max_failures: 3
  open_for: 1m
`)
	c, err := Load(fn)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cs", c.Path)
	assert.Equal(t, logger.LevelDebug, c.Level())
	assert.Equal(t, Duration(10*time.Minute), c.MemoryExpires)
	assert.Equal(t, Duration(36*time.Hour), c.DiskExpires)
	assert.Equal(t, Duration(30*time.Second), c.ExpiryCheck)
	assert.Equal(t, Duration(2*time.Second), c.QueryTimeout)
	assert.Equal(t, 8, c.Shards)
	assert.Equal(t, int64(512*1024*1024), c.DiskQuotaBytes.Value())
	assert.Equal(t, "redis://localhost:6379/2", c.Redis.URL)
	assert.Equal(t, "app", c.Redis.Prefix)
	assert.Equal(t, 3, c.Redis.MaxFailures)
	assert.Equal(t, Duration(time.Minute), c.Redis.OpenFor)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	fn := writeConfig(t, "path: /from/file\nmemory_expires: 1m\n")
	t.Setenv(EnvPath, "/from/env")
	t.Setenv(EnvMemoryTTL, "1w")
	t.Setenv(EnvShards, "4")
	t.Setenv(EnvRedisPrefix, "env")
	t.Setenv(logger.EnvLevel, "warn")

	c, err := Load(fn)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", c.Path)
	assert.Equal(t, Duration(7*24*time.Hour), c.MemoryExpires)
	assert.Equal(t, 4, c.Shards)
	assert.Equal(t, "env", c.Redis.Prefix)
	assert.Equal(t, logger.LevelWarn, c.Level())
}

func TestInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"duration":  "disk_expires: soon\n",
		"level":     "log_level: loud\n",
		"shards":    "shards: -1\n",
		"quota":     "disk_quota: lots\n",
		"neg quota": "disk_quota: -1Gi\n",
		"redis":     "redis:\n  url: http://nope\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), err.Error())
		})
	}
}

func TestInvalidEnv(t *testing.T) {
	t.Setenv(EnvQueryTimeout, "-5s")
	_, err := Load("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	t.Setenv(EnvQueryTimeout, "")
	t.Setenv(EnvShards, "many")
	_, err = Load("")
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestSaveRoundTrip(t *testing.T) {
	c := &Config{
		Path:        "/var/cache/app",
		DiskExpires: Duration(48 * time.Hour),
		Shards:      2,
		Redis:       Redis{Prefix: "p"},
	}
	fn := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, c.Save(fn))

	buf, err := os.ReadFile(fn)
	require.NoError(t, err)
	assert.Contains(t, string(buf), "disk_expires: 2d")
	assert.NotContains(t, string(buf), "memory_expires")

	got, err := Load(fn)
	require.NoError(t, err)
	assert.Equal(t, c.Path, got.Path)
	assert.Equal(t, c.DiskExpires, got.DiskExpires)
	assert.Equal(t, c.Redis, got.Redis)
}

func TestEngineOptions(t *testing.T) {
	c := &Config{Shards: 4, QueryTimeout: Duration(time.Second)}
	opts, client, err := c.EngineOptions(logger.NewTestLogger())
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.Len(t, opts, 5)

	mr := miniredis.RunT(t)
	c.Redis.URL = "redis://" + mr.Addr() + "/0"
	opts, client, err = c.EngineOptions(nil)
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()
	assert.Len(t, opts, 5)
	assert.Equal(t, mr.Addr(), client.Options().Addr)

	c.Redis.MaxFailures = 2
	c.Redis.OpenFor = Duration(time.Minute)
	opts, client2, err := c.EngineOptions(nil)
	require.NoError(t, err)
	defer client2.Close()
	assert.Len(t, opts, 6)
}
