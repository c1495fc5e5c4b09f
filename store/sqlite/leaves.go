package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// LEAVE STORE (schedule.LeaveStore interface)
// =============================================================================

const leaveColumns = `
	SELECT id, worker_id, type, start_date, end_date, reason, status,
	       reviewed_by, reviewed_at, review_note, created_at, updated_at
	FROM leave_requests
`

func (c *conn) GetLeave(ctx context.Context, id schedule.LeaveID) (*schedule.LeaveRequest, error) {
	leaves, err := c.queryLeaves(ctx, leaveColumns+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(leaves) == 0 {
		return nil, schedule.ErrLeaveNotFound
	}
	return &leaves[0], nil
}

func (c *conn) ListLeaves(ctx context.Context, f schedule.LeaveFilter) ([]schedule.LeaveRequest, error) {
	var where []string
	var args []any

	if len(f.WorkerIDs) > 0 {
		where = append(where, fmt.Sprintf("worker_id IN (%s)", placeholders(len(f.WorkerIDs))))
		for _, w := range f.WorkerIDs {
			args = append(args, w)
		}
	}
	if len(f.Statuses) > 0 {
		where = append(where, fmt.Sprintf("status IN (%s)", placeholders(len(f.Statuses))))
		for _, s := range f.Statuses {
			args = append(args, s)
		}
	}
	if f.Window != nil {
		// day-granularity closed overlap
		where = append(where, "start_date <= ? AND end_date >= ?")
		args = append(args, formatDate(f.Window.End), formatDate(f.Window.Start))
	}
	if f.Exclude != "" {
		where = append(where, "id <> ?")
		args = append(args, f.Exclude)
	}

	query := leaveColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date ASC, id ASC"

	return c.queryLeaves(ctx, query, args...)
}

func (c *conn) CreateLeave(ctx context.Context, l schedule.LeaveRequest) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO leave_requests (id, worker_id, type, start_date, end_date, reason, status,
			reviewed_by, reviewed_at, review_note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		l.ID, l.WorkerID, l.Type, formatDate(l.StartDate), formatDate(l.EndDate), l.Reason, l.Status,
		nullString(l.ReviewedBy), nullTime(l.ReviewedAt), nullString(l.ReviewNote),
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("leave request %s already exists", l.ID)
		}
		return fmt.Errorf("failed to create leave request: %w", err)
	}
	return nil
}

func (c *conn) UpdateLeave(ctx context.Context, l schedule.LeaveRequest) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE leave_requests
		SET type = ?, start_date = ?, end_date = ?, reason = ?, status = ?,
			reviewed_by = ?, reviewed_at = ?, review_note = ?, updated_at = ?
		WHERE id = ?
	`,
		l.Type, formatDate(l.StartDate), formatDate(l.EndDate), l.Reason, l.Status,
		nullString(l.ReviewedBy), nullTime(l.ReviewedAt), nullString(l.ReviewNote),
		formatTime(l.UpdatedAt), l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update leave request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrLeaveNotFound
	}
	return nil
}

func (c *conn) DeleteLeave(ctx context.Context, id schedule.LeaveID) error {
	res, err := c.q.ExecContext(ctx, "DELETE FROM leave_requests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete leave request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrLeaveNotFound
	}
	return nil
}

func (c *conn) queryLeaves(ctx context.Context, query string, args ...any) ([]schedule.LeaveRequest, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave requests: %w", err)
	}
	defer rows.Close()

	var leaves []schedule.LeaveRequest
	for rows.Next() {
		var l schedule.LeaveRequest
		var start, end, created, updated string
		var reviewedBy, reviewedAt, note sql.NullString
		if err := rows.Scan(&l.ID, &l.WorkerID, &l.Type, &start, &end, &l.Reason, &l.Status,
			&reviewedBy, &reviewedAt, &note, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}

		if l.StartDate, err = parseDate(start); err != nil {
			return nil, err
		}
		if l.EndDate, err = parseDate(end); err != nil {
			return nil, err
		}
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if l.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		l.ReviewedBy = reviewedBy.String
		l.ReviewNote = note.String
		if reviewedAt.Valid {
			t, err := parseTime(reviewedAt.String)
			if err != nil {
				return nil, err
			}
			l.ReviewedAt = &t
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}
