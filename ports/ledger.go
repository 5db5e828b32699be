package ports

import (
	"context"

	"fractalscan/domain/core"
	"fractalscan/domain/fractal"
)

// ScanLedgerWriter provides append-only write access to scan records
type ScanLedgerWriter interface {
	Append(ctx context.Context, record *fractal.Record) error
}

// ScanLedgerReader provides read-only access to stored scan records
type ScanLedgerReader interface {
	// Get returns the record or an errors.CodeNotFound error
	Get(ctx context.Context, id core.ScanID) (*fractal.Record, error)
	// List returns at most limit records, newest first
	List(ctx context.Context, limit int) ([]*fractal.Record, error)
}

// ScanLedger combines read and write access with lifecycle management
type ScanLedger interface {
	ScanLedgerWriter
	ScanLedgerReader

	// Driver names the backend for logs and metrics
	Driver() string
	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
	Close() error
}
