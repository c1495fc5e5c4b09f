package sqlite

import (
	"context"
	"database/sql"
	"time"
)

// =============================================================================
// AUDIT RUNS
// =============================================================================

// Audit run statuses.
const (
	AuditRunning   = "running"
	AuditCompleted = "completed"
	AuditFailed    = "failed"
)

// AuditRun records one schedule audit.
type AuditRun struct {
	ID          string
	WindowStart time.Time
	WindowEnd   time.Time
	Status      string // running, completed, failed
	Findings    int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// SaveAuditRun inserts or updates an audit run.
func (s *Store) SaveAuditRun(ctx context.Context, r AuditRun) error {
	query := `
		INSERT INTO audit_runs (id, window_start, window_end, status, findings, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			findings = excluded.findings,
			error = excluded.error,
			completed_at = excluded.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, formatTime(r.WindowStart), formatTime(r.WindowEnd),
		r.Status, r.Findings, nullString(r.Error),
		formatTime(r.StartedAt), nullTime(r.CompletedAt),
	)
	return err
}

// ListAuditRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListAuditRuns(ctx context.Context, limit int) ([]AuditRun, error) {
	query := `
		SELECT id, window_start, window_end, status, findings, error, started_at, completed_at
		FROM audit_runs
		ORDER BY started_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []AuditRun
	for rows.Next() {
		var r AuditRun
		var windowStart, windowEnd, startedAt string
		var runErr, completedAt sql.NullString
		if err := rows.Scan(&r.ID, &windowStart, &windowEnd, &r.Status, &r.Findings,
			&runErr, &startedAt, &completedAt); err != nil {
			return nil, err
		}

		r.WindowStart, _ = parseTime(windowStart)
		r.WindowEnd, _ = parseTime(windowEnd)
		r.StartedAt, _ = parseTime(startedAt)
		r.Error = runErr.String
		if completedAt.Valid {
			t, _ := parseTime(completedAt.String)
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
