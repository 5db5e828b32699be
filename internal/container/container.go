package container

import (
	"context"
	"fmt"

	"fractalscan/adapters/ledger"
	"fractalscan/app"
	"fractalscan/internal"
	"fractalscan/internal/api"
	"fractalscan/internal/config"
	"fractalscan/internal/errors"
	scanning "fractalscan/internal/fractal"
	"fractalscan/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	Ledger ports.ScanLedger // nil when LEDGER_DRIVER=none

	// Scanning
	Scanner      *scanning.Scanner
	BatchScanner *scanning.BatchScanner
	ScanService  *app.ScanService

	// HTTP
	SSEHub *api.SSEHub
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	return &Container{Config: cfg, Logger: logger}, nil
}

// Init opens the ledger and builds the scan pipeline
func (c *Container) Init(ctx context.Context) error {
	l, err := OpenLedger(ctx, c.Config.Ledger)
	if err != nil {
		return errors.Wrap(err, "failed to open scan ledger")
	}
	c.Ledger = l

	c.Scanner = scanning.NewScanner()
	c.BatchScanner = scanning.NewBatchScanner(c.Scanner, c.Config.Scan.BatchConcurrency)
	c.ScanService = app.NewScanService(c.Scanner, c.BatchScanner, c.Ledger, c.Logger)
	c.SSEHub = api.NewSSEHub(c.Config.Server.StreamKeepAlive)
	c.ScanService.OnRecord(c.SSEHub.Publish)

	c.Logger.Info("container initialized: ledger=%s batch_concurrency=%d", c.ScanService.LedgerDriver(), c.BatchScanner.Limit())
	return nil
}

// OpenLedger builds the configured ledger. LedgerNone returns a nil ledger.
func OpenLedger(ctx context.Context, cfg config.LedgerConfig) (ports.ScanLedger, error) {
	switch cfg.Driver {
	case config.LedgerNone:
		return nil, nil
	case config.LedgerMemory:
		return ledger.NewMemoryLedger(cfg.Capacity), nil
	case config.LedgerPostgres:
		return ledger.OpenSQL(ctx, ledger.DriverPostgres, cfg.DatabaseURL)
	case config.LedgerSQLite:
		return ledger.OpenSQL(ctx, ledger.DriverSQLite, cfg.SQLitePath)
	case config.LedgerRedis:
		return ledger.OpenRedis(ctx, cfg.RedisURL, cfg.TTL)
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown ledger driver %q", cfg.Driver))
	}
}

// APIServer builds the public gin server
func (c *Container) APIServer() *api.Server {
	return api.NewServer(c.ScanService, c.SSEHub, c.Logger, api.Options{
		MaxBodyBytes: c.Config.Server.MaxBodyBytes,
		MaxBatchSize: c.Config.Scan.MaxBatchSize,
	})
}

// HealthChecks returns the dependency probes for /healthz
func (c *Container) HealthChecks() map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{}
	if c.Ledger != nil {
		checks["ledger_"+c.Ledger.Driver()] = c.Ledger.Ping
	}
	return checks
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}
	if c.Ledger != nil {
		return c.Ledger.Close()
	}
	return nil
}
