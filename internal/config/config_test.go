package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// isolate runs the test from an empty directory with an empty $HOME so no stray
// config.yaml or .env is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("ZUNO_GEMINI_API_KEY", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Empty(t, cfg.Gemini.APIKey)
	assert.Zero(t, cfg.Pipeline.RequestTimeout)
	assert.Zero(t, cfg.Pipeline.MaxRetries)
	assert.Zero(t, cfg.Pipeline.RateLimitRPS)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, filepath.Join(dir, ".zuno"), cfg.Store.Dir)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "Local", cfg.Export.Timezone)
}

func TestLoadFromYAML(t *testing.T) {
	dir := isolate(t)

	yaml := `
gemini:
  model: gemini-2.5-pro
pipeline:
  request_timeout: 45s
  max_retries: 2
store:
  driver: sqlite
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.RequestTimeout)
	assert.Equal(t, 2, cfg.Pipeline.MaxRetries)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadExplicitFile(t *testing.T) {
	dir := isolate(t)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: 127.0.0.1:9999\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store:\n  driver: sqlite\n"), 0o644))

	t.Setenv("ZUNO_STORE_DRIVER", "redis")
	t.Setenv("ZUNO_PIPELINE_RATE_LIMIT_RPS", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store.Driver)
	assert.InDelta(t, 0.5, cfg.Pipeline.RateLimitRPS, 0.001)
}

func TestLoadEnvOnlyKeys(t *testing.T) {
	isolate(t)
	t.Setenv("ZUNO_GEMINI_BASE_URL", "http://127.0.0.1:8090")
	t.Setenv("ZUNO_STORE_SQLITE_PATH", "/var/lib/zuno/zuno.db")
	t.Setenv("ZUNO_STORE_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("ZUNO_STORE_REDIS_PASSWORD", "hunter2")
	t.Setenv("ZUNO_STORE_REDIS_DB", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8090", cfg.Gemini.BaseURL)
	assert.Equal(t, "/var/lib/zuno/zuno.db", cfg.Store.SQLitePath)
	assert.Equal(t, "redis.internal:6379", cfg.Store.RedisAddr)
	assert.Equal(t, "hunter2", cfg.Store.RedisPassword)
	assert.Equal(t, 3, cfg.Store.RedisDB)
}

func TestLoadAPIKey(t *testing.T) {
	t.Run("plain GEMINI_API_KEY", func(t *testing.T) {
		isolate(t)
		t.Setenv("GEMINI_API_KEY", "from-env")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	})

	t.Run("prefixed wins", func(t *testing.T) {
		isolate(t)
		t.Setenv("GEMINI_API_KEY", "plain")
		t.Setenv("ZUNO_GEMINI_API_KEY", "prefixed")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "prefixed", cfg.Gemini.APIKey)
	})

	t.Run("dotenv file", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0o644))
		t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "from-dotenv", cfg.Gemini.APIKey)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:  StoreConfig{Driver: "file"},
			Log:    LogConfig{Level: "info", Format: "json"},
			Export: ExportConfig{Timezone: "UTC"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"format", func(c *Config) { c.Log.Format = "xml" }},
		{"retries", func(c *Config) { c.Pipeline.MaxRetries = -1 }},
		{"timeout", func(c *Config) { c.Pipeline.RequestTimeout = -time.Second }},
		{"timezone", func(c *Config) { c.Export.Timezone = "Mars/Olympus" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestExportLocation(t *testing.T) {
	loc, err := ExportConfig{Timezone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = ExportConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestWorkerOptions(t *testing.T) {
	opts := PipelineConfig{RequestTimeout: time.Minute, MaxRetries: 3, RateLimitRPS: 2}.WorkerOptions()
	assert.Equal(t, time.Minute, opts.RequestTimeout)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.InDelta(t, 2.0, opts.RateLimitRPS, 0.001)
}

func TestBlobConfig(t *testing.T) {
	bc := StoreConfig{Driver: "redis", RedisAddr: "localhost:6379", RedisPrefix: "z:"}.BlobConfig()
	assert.Equal(t, "redis", bc.Driver)
	assert.Equal(t, "localhost:6379", bc.RedisAddr)
	assert.Equal(t, "z:", bc.RedisPrefix)
}

func TestInitLogger(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	logger, err := InitLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Same(t, logger, zap.L())
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = InitLogger(LogConfig{Level: "loud", Format: "console"})
	assert.Error(t, err)
}
