package migration

import (
	"context"
	"time"

	"fractalscan/internal/errors"

	"github.com/jmoiron/sqlx"
)

// MigrationRunner handles the scan ledger schema
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all migrations in order. Statements are plain SQL accepted by
// both postgres and sqlite.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createScansTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create scans table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	if err := r.recordVersion(ctx, db); err != nil {
		return errors.DatabaseError("failed to record schema version", err)
	}

	return nil
}

func (r *MigrationRunner) createScansTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scans (
			id VARCHAR(36) PRIMARY KEY,
			conversation_id VARCHAR(255) NOT NULL DEFAULT '',
			fingerprint VARCHAR(64) NOT NULL,
			branching_mode VARCHAR(16) NOT NULL,
			message_count INTEGER NOT NULL,
			influence_score DOUBLE PRECISION NOT NULL,
			alert BOOLEAN NOT NULL DEFAULT FALSE,
			payload TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_fingerprint ON scans(fingerprint)`,
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) recordVersion(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_versions (
			version VARCHAR(32) PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)
	`); err != nil {
		return err
	}

	var count int
	if err := db.GetContext(ctx, &count, db.Rebind(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`), r.version); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)`), r.version, time.Now().UnixMilli())
	return err
}
