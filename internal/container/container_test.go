package container

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"fractalscan/app"
	"fractalscan/internal"
	"fractalscan/internal/api"
	"fractalscan/internal/config"
	"fractalscan/internal/errors"
	"fractalscan/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{MaxBodyBytes: 1 << 20},
		Scan:   config.ScanConfig{BatchConcurrency: 2, MaxBatchSize: 10},
		Ledger: config.LedgerConfig{Driver: driver, Capacity: 10},
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestInit_Drivers(t *testing.T) {
	logger := internal.NewLogger(internal.LogLevelError, io.Discard)

	tests := []struct {
		driver string
		want   string
	}{
		{config.LedgerNone, "none"},
		{config.LedgerMemory, "memory"},
		{config.LedgerSQLite, "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			cfg := testConfig(tt.driver)
			cfg.Ledger.SQLitePath = filepath.Join(t.TempDir(), "scans.db")

			c, err := New(cfg, logger)
			require.NoError(t, err)
			require.NoError(t, c.Init(context.Background()))
			defer c.Shutdown(context.Background())

			assert.Equal(t, tt.want, c.ScanService.LedgerDriver())
			assert.Equal(t, 2, c.BatchScanner.Limit())
			assert.NotNil(t, c.APIServer().Handler())
			if tt.driver == config.LedgerNone {
				assert.Empty(t, c.HealthChecks())
			} else {
				assert.Len(t, c.HealthChecks(), 1)
			}
		})
	}
}

func TestInit_StreamsEachScanOnce(t *testing.T) {
	c, err := New(testConfig(config.LedgerNone), internal.NewLogger(internal.LogLevelError, io.Discard))
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))
	defer c.Shutdown(context.Background())

	c.APIServer()
	c.APIServer()

	events, unsubscribe := c.SSEHub.Subscribe(api.AllConversations)
	defer unsubscribe()

	rec, err := c.ScanService.Scan(context.Background(), app.ScanRequest{Messages: testkit.LeadershipTiers().Messages})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, rec.ID.String(), ev.ScanID)
	case <-time.After(2 * time.Second):
		t.Fatal("scan was not streamed")
	}
	select {
	case ev := <-events:
		t.Fatalf("scan %s streamed twice", ev.ScanID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOpenLedger_Unknown(t *testing.T) {
	_, err := OpenLedger(context.Background(), config.LedgerConfig{Driver: "cassandra"})
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestOpenLedger_BadRedisURL(t *testing.T) {
	_, err := OpenLedger(context.Background(), config.LedgerConfig{Driver: config.LedgerRedis, RedisURL: "://nope"})
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
