package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"fractalscan/domain/core"
	"fractalscan/domain/fractal"
	"fractalscan/internal/errors"
	"fractalscan/internal/migration"
	"fractalscan/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQL driver names as registered with database/sql
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers "sqlite", which sqlx does not know by default
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// scanRow is the flat column layout of the scans table
type scanRow struct {
	ID             string  `db:"id"`
	ConversationID string  `db:"conversation_id"`
	Fingerprint    string  `db:"fingerprint"`
	Mode           string  `db:"branching_mode"`
	MessageCount   int     `db:"message_count"`
	InfluenceScore float64 `db:"influence_score"`
	Alert          bool    `db:"alert"`
	Payload        string  `db:"payload"`
	CreatedAt      int64   `db:"created_at"`
}

// SQLLedger stores records in the scans table. Queries are written with ?
// placeholders and rebound for the connected driver.
type SQLLedger struct {
	db     *sqlx.DB
	driver string
}

var _ ports.ScanLedger = (*SQLLedger)(nil)

// OpenSQL connects, pings and migrates the ledger database
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLLedger, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported SQL ledger driver %q", driver))
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to ledger database", err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ledger migration failed")
	}

	return NewSQLLedger(db), nil
}

// NewSQLLedger wraps an already migrated connection
func NewSQLLedger(db *sqlx.DB) *SQLLedger {
	return &SQLLedger{db: db, driver: db.DriverName()}
}

// Append inserts the record; re-appending an ID is a no-op
func (l *SQLLedger) Append(ctx context.Context, record *fractal.Record) error {
	if record == nil || record.ID.String() == "" {
		return errors.ValidationError("record must have an ID")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal scan record")
	}

	row := scanRow{
		ID:             record.ID.String(),
		ConversationID: record.ConversationID.String(),
		Fingerprint:    record.Fingerprint.String(),
		Mode:           record.Mode.String(),
		MessageCount:   record.Summary.MessageCount,
		InfluenceScore: record.InfluenceScore,
		Alert:          record.Summary.Alert,
		Payload:        string(payload),
		CreatedAt:      record.CreatedAt,
	}

	_, err = l.db.NamedExecContext(ctx, `
		INSERT INTO scans (
			id, conversation_id, fingerprint, branching_mode, message_count,
			influence_score, alert, payload, created_at
		) VALUES (
			:id, :conversation_id, :fingerprint, :branching_mode, :message_count,
			:influence_score, :alert, :payload, :created_at
		) ON CONFLICT (id) DO NOTHING
	`, row)
	if err != nil {
		return errors.DatabaseError("failed to insert scan", err)
	}
	return nil
}

// Get loads one record by ID
func (l *SQLLedger) Get(ctx context.Context, id core.ScanID) (*fractal.Record, error) {
	var row scanRow
	err := l.db.GetContext(ctx, &row, l.db.Rebind(`
		SELECT id, conversation_id, fingerprint, branching_mode, message_count,
		       influence_score, alert, payload, created_at
		FROM scans
		WHERE id = ?
	`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("scan " + id.String())
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to load scan", err)
	}
	return decodeRow(row)
}

// List returns the newest records first
func (l *SQLLedger) List(ctx context.Context, limit int) ([]*fractal.Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var rows []scanRow
	err := l.db.SelectContext(ctx, &rows, l.db.Rebind(`
		SELECT id, conversation_id, fingerprint, branching_mode, message_count,
		       influence_score, alert, payload, created_at
		FROM scans
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, errors.DatabaseError("failed to list scans", err)
	}

	out := make([]*fractal.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (l *SQLLedger) Driver() string { return l.driver }

func (l *SQLLedger) Ping(ctx context.Context) error { return l.db.PingContext(ctx) }

func (l *SQLLedger) Close() error { return l.db.Close() }

func decodeRow(row scanRow) (*fractal.Record, error) {
	var rec fractal.Record
	if err := json.Unmarshal([]byte(row.Payload), &rec); err != nil {
		return nil, errors.Wrapf(err, "corrupt payload for scan %s", row.ID)
	}
	return &rec, nil
}
