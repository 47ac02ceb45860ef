package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile points Load at a file that does not exist.
func noEnvFile(t *testing.T) {
	t.Helper()
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	noEnvFile(t)
	for _, key := range []string{"PORT", "STORE_DRIVER", "STORE_PAGE_SIZE", "REDIS_ENABLED", "CORS_ALLOWED_ORIGINS", "REQUEST_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Empty(t, cfg.Server.AllowedOrigins)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 1000, cfg.Store.PageSize)
	assert.Equal(t, 500, cfg.Store.BatchSize)
	assert.Equal(t, 1000, cfg.Store.MemoryPageLimit)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10, cfg.Export.RateLimitPerSecond)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FromEnvironment(t *testing.T) {
	noEnvFile(t)
	t.Setenv("PORT", "9090")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/adperf")
	t.Setenv("STORE_PAGE_SIZE", "250")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("RATE_LIMIT_PER_SECOND", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 250, cfg.Store.PageSize)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Export.RateLimitPerSecond, "unparsable values fall back to the default")
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ADPERF_TEST_PORT_SOURCE=file\nSINK_SECRET=from-file\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("SINK_SECRET", "")
	os.Unsetenv("SINK_SECRET")
	t.Cleanup(func() {
		os.Unsetenv("SINK_SECRET")
		os.Unsetenv("ADPERF_TEST_PORT_SOURCE")
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Export.SinkSecret)
	assert.Equal(t, "file", os.Getenv("ADPERF_TEST_PORT_SOURCE"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:  StoreConfig{Driver: "memory", PageSize: 10, BatchSize: 10},
			Export: ExportConfig{RateLimitPerSecond: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "DATABASE_URL"},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "sqlite" }, wantErr: "STORE_DRIVER"},
		{name: "page size", mutate: func(c *Config) { c.Store.PageSize = 0 }, wantErr: "STORE_PAGE_SIZE"},
		{name: "batch size", mutate: func(c *Config) { c.Store.BatchSize = -1 }, wantErr: "STORE_BATCH_SIZE"},
		{name: "redis with memory store", mutate: func(c *Config) { c.Redis.Enabled = true }, wantErr: "REDIS_ENABLED"},
		{name: "redis with postgres", mutate: func(c *Config) {
			c.Redis.Enabled = true
			c.Store.Driver = "postgres"
			c.Store.PostgresDSN = "postgres://localhost/adperf"
		}},
		{name: "rate limit", mutate: func(c *Config) { c.Export.RateLimitPerSecond = 0 }, wantErr: "RATE_LIMIT_PER_SECOND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
