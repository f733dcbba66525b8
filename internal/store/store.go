// Package store provides SQLite-backed persistence for the audit ledger.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/supportaudit/internal/models"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no audit exists for a source name.
var ErrNotFound = errors.New("audit not found")

const defaultBusyTimeout = 5 * time.Second

// Store provides access to the audit SQLite database.
type Store struct {
	db          *sql.DB
	path        string
	busyTimeout time.Duration
	maxOpen     int
}

// Option configures a Store.
type Option func(*Store)

// WithBusyTimeout sets how long a connection waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d >= 0 {
			s.busyTimeout = d
		}
	}
}

// WithMaxOpenConns caps concurrent connections.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpen = n
		}
	}
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	s := &Store{
		path:        dbPath,
		busyTimeout: defaultBusyTimeout,
		maxOpen:     4,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas are applied per connection. IMMEDIATE transactions take the
	// write lock up front so a replace never has to upgrade mid-flight.
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		dbPath, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Each call acquires its own connection and gives it back closed.
	db.SetMaxOpenConns(s.maxOpen)
	db.SetMaxIdleConns(0)

	s.db = db
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations. Column names match ledgers
// written by earlier tooling so existing files open unchanged.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT,
		file_name TEXT,
		audit_type TEXT, -- 'audio' or 'chat'
		score INTEGER,
		violations TEXT, -- JSON array
		summary TEXT,
		status TEXT -- 'Flagged' or 'Solved'
	);

	CREATE INDEX IF NOT EXISTS idx_audits_file_name ON audits(file_name);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const auditColumns = `id, timestamp, file_name, audit_type, score, violations, summary, status`

// ReplaceAudit removes every audit stored under rec.SourceName and inserts
// rec in a single transaction. On success rec.ID holds the new row id.
func (s *Store) ReplaceAudit(ctx context.Context, rec *models.AuditRecord) error {
	violations := rec.Violations
	if violations == nil {
		violations = []string{}
	}
	violationsJSON, err := json.Marshal(violations)
	if err != nil {
		return fmt.Errorf("encode violations: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM audits WHERE file_name = ?`, rec.SourceName); err != nil {
		return fmt.Errorf("delete previous audit: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO audits (timestamp, file_name, audit_type, score, violations, summary, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(models.TimestampLayout), rec.SourceName, rec.AuditType, rec.Score, string(violationsJSON), rec.Summary, string(rec.Status),
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read audit id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	rec.ID = id
	rec.Violations = violations
	return nil
}

// ListAudits returns every audit, newest write first.
func (s *Store) ListAudits(ctx context.Context) ([]models.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+auditColumns+` FROM audits ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query audits: %w", err)
	}
	defer rows.Close()

	audits := []models.AuditRecord{}
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audits: %w", err)
	}
	return audits, nil
}

// GetAudit returns the audit stored for sourceName, or ErrNotFound.
func (s *Store) GetAudit(ctx context.Context, sourceName string) (*models.AuditRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE file_name = ? ORDER BY id DESC LIMIT 1`,
		sourceName,
	)
	rec, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteAllAudits removes every audit and returns how many rows went.
func (s *Store) DeleteAllAudits(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audits`)
	if err != nil {
		return 0, fmt.Errorf("delete audits: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check rows affected: %w", err)
	}
	return n, nil
}

// CountByStatus returns the number of audits per stored status.
func (s *Store) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(status, ''), COUNT(*) FROM audits GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count audits: %w", err)
	}
	defer rows.Close()

	counts := map[models.Status]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

// scanAudit tolerates NULL columns and unparseable violations, which rows
// written by other tools may contain.
func scanAudit(row scanner) (*models.AuditRecord, error) {
	var rec models.AuditRecord
	var timestamp, sourceName, auditType, violations, summary, status sql.NullString
	var score sql.NullInt64

	if err := row.Scan(&rec.ID, &timestamp, &sourceName, &auditType, &score, &violations, &summary, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan audit: %w", err)
	}

	if timestamp.Valid {
		if ts, err := time.ParseInLocation(models.TimestampLayout, timestamp.String, time.Local); err == nil {
			rec.Timestamp = ts
		}
	}
	rec.SourceName = sourceName.String
	rec.AuditType = auditType.String
	rec.Score = int(score.Int64)
	rec.Summary = summary.String
	rec.Status = models.Status(status.String)

	rec.Violations = []string{}
	if violations.Valid && violations.String != "" {
		var v []string
		if err := json.Unmarshal([]byte(violations.String), &v); err == nil && v != nil {
			rec.Violations = v
		}
	}
	return &rec, nil
}
