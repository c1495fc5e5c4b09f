/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements schedule.TxStore (workers, task types, tasks, leave requests)
  plus roster seeding and audit-run persistence using SQLite.

INTERFACES IMPLEMENTED:
  schedule.WorkerDirectory: workers and task types (read-only to the engine)
  schedule.TaskStore:       tasks and task_workers associations
  schedule.LeaveStore:      leave_requests
  schedule.TxStore:         WithTx over a single *sql.Tx

KEY TABLES:
  workers, task_types, task_type_workers: roster (seeded from YAML)
  tasks, task_workers:                    schedule
  leave_requests:                         absences and their review state
  audit_runs:                             schedule audit history

TIME STORAGE:
  Instants are stored as fixed-width UTC text (2006-01-02T15:04:05.000Z) so
  that string comparison in SQL matches chronological order. Leave dates
  are stored as YYYY-MM-DD.

CONCURRENCY:
  The pool is limited to one connection. Every statement, inside or
  outside a transaction, is serialized by database/sql, and ":memory:"
  databases stay a single database instead of one per pooled connection.
  Inside WithTx every read and write goes through the *sql.Tx.

WAL MODE:
  File databases are opened with WAL and foreign keys enabled.

USAGE:
  store, err := sqlite.New("./data/shifts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - schedule/store.go: Interface definitions
  - schedule/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/shift-engine/schedule"
)

// timeLayout is fixed width so lexical order equals time order.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements schedule.Store over any querier.
type conn struct {
	q querier
}

// Store implements all storage interfaces using SQLite.
type Store struct {
	conn
	db *sql.DB
}

var _ schedule.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{conn: conn{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Qualification list: workers eligible for a task type
	CREATE TABLE IF NOT EXISTS task_type_workers (
		task_type_id TEXT NOT NULL REFERENCES task_types(id) ON DELETE CASCADE,
		worker_id TEXT NOT NULL REFERENCES workers(id) ON DELETE CASCADE,
		PRIMARY KEY (task_type_id, worker_id)
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type_id TEXT NOT NULL REFERENCES task_types(id),
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		observation TEXT NOT NULL DEFAULT '',
		series_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_at > start_at)
	);

	-- Overlap queries: start_at <= candidate_end AND end_at >= candidate_start
	CREATE INDEX IF NOT EXISTS idx_tasks_start_end
		ON tasks(start_at, end_at);
	CREATE INDEX IF NOT EXISTS idx_tasks_series
		ON tasks(series_id) WHERE series_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS task_workers (
		task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		PRIMARY KEY (task_id, worker_id)
	);

	CREATE INDEX IF NOT EXISTS idx_task_workers_worker
		ON task_workers(worker_id);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		reviewed_by TEXT,
		reviewed_at TEXT,
		review_note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (end_date >= start_date),
		CHECK (status IN ('pending', 'approved', 'rejected'))
	);

	CREATE INDEX IF NOT EXISTS idx_leave_worker_dates
		ON leave_requests(worker_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_leave_status
		ON leave_requests(status);

	CREATE TABLE IF NOT EXISTS audit_runs (
		id TEXT PRIMARY KEY,
		window_start TEXT NOT NULL,
		window_end TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		findings INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_runs_started
		ON audit_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (schedule.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store schedule.Store) error) error {
	return s.withTx(ctx, func(c *conn) error { return fn(c) })
}

func (s *Store) withTx(ctx context.Context, fn func(c *conn) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&conn{q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Reset deletes every schedule record, keeping the roster.
func (s *Store) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(c *conn) error {
		for _, table := range []string{"task_workers", "tasks", "leave_requests", "audit_runs"} {
			if _, err := c.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		return nil
	})
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored instant %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(schedule.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(schedule.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored date %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
