package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/yeti47/framesight/server/core/ccc/db"
)

// Ledger records the lifecycle of every session so that leftovers of crashed
// requests can be found and swept later
type Ledger interface {
	// Add stores a newly allocated session in the given state
	Add(ctx context.Context, session *Session, state string) error

	// UpdateState moves a session to a new state, optionally with an error message
	UpdateState(ctx context.Context, id, state, errMsg string) error

	// GetByID retrieves a record by session id, nil if unknown
	GetByID(ctx context.Context, id string) (*Record, error)

	// ListStale returns non-terminal sessions last updated before cutoff
	ListStale(ctx context.Context, cutoff time.Time) ([]*Record, error)
}

// SQLiteLedger implements Ledger using SQLite
type SQLiteLedger struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteLedger creates a new SQLite-based Ledger
func NewSQLiteLedger(database *sql.DB) (*SQLiteLedger, error) {
	ledger := &SQLiteLedger{db: database, now: time.Now}
	if err := ledger.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return ledger, nil
}

func (l *SQLiteLedger) createTables() error {
	createSessionsTable := `
	CREATE TABLE IF NOT EXISTS extraction_sessions (
		id TEXT PRIMARY KEY,
		working_dir TEXT NOT NULL,
		source_path TEXT NOT NULL,
		state TEXT NOT NULL,
		error TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_extraction_sessions_state_updated
		ON extraction_sessions (state, updated_at);`

	_, err := l.db.Exec(createSessionsTable)
	return err
}

func (l *SQLiteLedger) Add(ctx context.Context, session *Session, state string) error {
	now := db.TimeToString(l.now())
	createdAt := now
	if !session.CreatedAt.IsZero() {
		createdAt = db.TimeToString(session.CreatedAt)
	}

	_, err := l.db.ExecContext(ctx, `
	INSERT INTO extraction_sessions (id, working_dir, source_path, state, error, created_at, updated_at)
	VALUES (?, ?, ?, ?, NULL, ?, ?)`,
		session.ID, session.WorkingDir, session.SourcePath, state, createdAt, now)
	if err != nil {
		return fmt.Errorf("failed to add session %s: %w", session.ID, err)
	}

	return nil
}

func (l *SQLiteLedger) UpdateState(ctx context.Context, id, state, errMsg string) error {
	result, err := l.db.ExecContext(ctx, `
	UPDATE extraction_sessions SET state = ?, error = ?, updated_at = ? WHERE id = ?`,
		state, db.NullableString(errMsg), db.TimeToString(l.now()), id)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("session not found: %s", id)
	}

	return nil
}

func (l *SQLiteLedger) GetByID(ctx context.Context, id string) (*Record, error) {
	row := l.db.QueryRowContext(ctx, `
	SELECT id, working_dir, source_path, state, error, created_at, updated_at
	FROM extraction_sessions WHERE id = ?`, id)

	record, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session by ID: %w", err)
	}

	return record, nil
}

func (l *SQLiteLedger) ListStale(ctx context.Context, cutoff time.Time) ([]*Record, error) {
	rows, err := l.db.QueryContext(ctx, `
	SELECT id, working_dir, source_path, state, error, created_at, updated_at
	FROM extraction_sessions
	WHERE state NOT IN (?, ?, ?) AND updated_at < ?
	ORDER BY updated_at`,
		StateDone, StateFailed, StateSwept, db.TimeToString(cutoff))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale sessions: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	record := &Record{}
	var errMsg sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&record.ID, &record.WorkingDir, &record.SourcePath, &record.State, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if record.CreatedAt, err = db.StringToTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if record.UpdatedAt, err = db.StringToTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	record.Error = errMsg.String

	return record, nil
}

type nopLedger struct{}

// NopLedger discards all records. Used when no database is configured.
var NopLedger Ledger = &nopLedger{}

func (n *nopLedger) Add(ctx context.Context, session *Session, state string) error { return nil }
func (n *nopLedger) UpdateState(ctx context.Context, id, state, errMsg string) error {
	return nil
}
func (n *nopLedger) GetByID(ctx context.Context, id string) (*Record, error) { return nil, nil }
func (n *nopLedger) ListStale(ctx context.Context, cutoff time.Time) ([]*Record, error) {
	return nil, nil
}
