package config

import (
	"testing"
	"time"

	"fractalscan/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HOST", "PORT", "GIN_MODE", "MAX_BODY_BYTES", "READ_TIMEOUT", "WRITE_TIMEOUT", "SSE_KEEPALIVE", "ADMIN_ENABLED", "ADMIN_PORT",
		"LOG_LEVEL", "LOG_FORMAT", "BATCH_CONCURRENCY", "MAX_BATCH_SIZE",
		"LEDGER_DRIVER", "LEDGER_CAPACITY", "DATABASE_URL", "SQLITE_PATH", "REDIS_URL", "LEDGER_TTL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, int64(4<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.StreamKeepAlive)
	assert.True(t, cfg.Admin.Enabled)
	assert.Equal(t, "6060", cfg.Admin.Port)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Scan.BatchConcurrency)
	assert.Equal(t, LedgerMemory, cfg.Ledger.Driver)
	assert.Equal(t, 1000, cfg.Ledger.Capacity)
	assert.Equal(t, 7*24*time.Hour, cfg.Ledger.TTL)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9000")
	t.Setenv("ADMIN_ENABLED", "false")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("BATCH_CONCURRENCY", "not-a-number")
	t.Setenv("LEDGER_TTL", "90m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.False(t, cfg.Admin.Enabled)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Scan.BatchConcurrency, "unparsable values fall back to defaults")
	assert.Equal(t, 90*time.Minute, cfg.Ledger.TTL)
}

func TestLoad_LedgerDriverInference(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/fractal?sslmode=disable")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LedgerPostgres, cfg.Ledger.Driver)

	clearEnv(t)
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, LedgerRedis, cfg.Ledger.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"LEDGER_DRIVER": "mongo"}},
		{"postgres without url", map[string]string{"LEDGER_DRIVER": "postgres"}},
		{"redis without url", map[string]string{"LEDGER_DRIVER": "redis"}},
		{"zero concurrency", map[string]string{"BATCH_CONCURRENCY": "0"}},
		{"negative body limit", map[string]string{"MAX_BODY_BYTES": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
