package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// TASK STORE (schedule.TaskStore interface)
// =============================================================================

const taskColumns = `
	SELECT t.id, t.name, t.type_id, tt.name, t.start_at, t.end_at,
	       t.observation, t.series_id, t.created_at, t.updated_at
	FROM tasks t
	JOIN task_types tt ON tt.id = t.type_id
`

func (c *conn) GetTask(ctx context.Context, id schedule.TaskID) (*schedule.Task, error) {
	tasks, err := c.queryTasks(ctx, taskColumns+" WHERE t.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, schedule.ErrTaskNotFound
	}
	return &tasks[0], nil
}

func (c *conn) ListTasks(ctx context.Context, f schedule.TaskFilter) ([]schedule.Task, error) {
	var where []string
	var args []any

	if f.Window != nil {
		// closed-interval overlap
		where = append(where, "t.start_at <= ? AND t.end_at >= ?")
		args = append(args, formatTime(f.Window.End), formatTime(f.Window.Start))
	}
	if f.Exclude != "" {
		where = append(where, "t.id <> ?")
		args = append(args, f.Exclude)
	}
	if len(f.WorkerIDs) > 0 {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM task_workers tw WHERE tw.task_id = t.id AND tw.worker_id IN (%s))",
			placeholders(len(f.WorkerIDs))))
		for _, w := range f.WorkerIDs {
			args = append(args, w)
		}
	}

	query := taskColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY t.start_at ASC, t.id ASC"

	return c.queryTasks(ctx, query, args...)
}

func (c *conn) CreateTask(ctx context.Context, t schedule.Task) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO tasks (id, name, type_id, start_at, end_at, observation, series_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.Name, t.TypeID,
		formatTime(t.Start), formatTime(t.End),
		t.Observation, nullString(string(t.SeriesID)),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("task %s already exists", t.ID)
		}
		return fmt.Errorf("failed to create task: %w", err)
	}
	return c.insertTaskWorkers(ctx, t.ID, t.Workers)
}

func (c *conn) UpdateTask(ctx context.Context, t schedule.Task) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE tasks
		SET name = ?, type_id = ?, start_at = ?, end_at = ?, observation = ?, series_id = ?, updated_at = ?
		WHERE id = ?
	`,
		t.Name, t.TypeID, formatTime(t.Start), formatTime(t.End),
		t.Observation, nullString(string(t.SeriesID)), formatTime(t.UpdatedAt), t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schedule.ErrTaskNotFound
	}

	if _, err := c.q.ExecContext(ctx, "DELETE FROM task_workers WHERE task_id = ?", t.ID); err != nil {
		return err
	}
	return c.insertTaskWorkers(ctx, t.ID, t.Workers)
}

func (c *conn) IsAssigned(ctx context.Context, taskID schedule.TaskID, workerID schedule.WorkerID) (bool, error) {
	var one int
	err := c.q.QueryRowContext(ctx,
		"SELECT 1 FROM task_workers WHERE task_id = ? AND worker_id = ?", taskID, workerID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (c *conn) Unassign(ctx context.Context, taskID schedule.TaskID, workerID schedule.WorkerID) error {
	_, err := c.q.ExecContext(ctx,
		"DELETE FROM task_workers WHERE task_id = ? AND worker_id = ?", taskID, workerID)
	if err != nil {
		return fmt.Errorf("failed to unassign: %w", err)
	}
	return nil
}

func (c *conn) insertTaskWorkers(ctx context.Context, id schedule.TaskID, workers []schedule.WorkerID) error {
	for _, w := range workers {
		if _, err := c.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO task_workers (task_id, worker_id) VALUES (?, ?)", id, w,
		); err != nil {
			return fmt.Errorf("failed to assign %s to %s: %w", w, id, err)
		}
	}
	return nil
}

// queryTasks reads every matching row first, then loads the worker sets in
// one query. Rows are never left open across statements.
func (c *conn) queryTasks(ctx context.Context, query string, args ...any) ([]schedule.Task, error) {
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	var tasks []schedule.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tasks = append(tasks, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	ids := make([]any, len(tasks))
	index := make(map[schedule.TaskID]int, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		index[t.ID] = i
	}
	wrows, err := c.q.QueryContext(ctx, fmt.Sprintf(
		"SELECT task_id, worker_id FROM task_workers WHERE task_id IN (%s) ORDER BY task_id, rowid",
		placeholders(len(ids))), ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to query task workers: %w", err)
	}
	defer wrows.Close()
	for wrows.Next() {
		var taskID schedule.TaskID
		var workerID schedule.WorkerID
		if err := wrows.Scan(&taskID, &workerID); err != nil {
			return nil, err
		}
		i := index[taskID]
		tasks[i].Workers = append(tasks[i].Workers, workerID)
	}
	return tasks, wrows.Err()
}

func scanTask(rows *sql.Rows) (schedule.Task, error) {
	var t schedule.Task
	var start, end, created, updated string
	var series sql.NullString

	if err := rows.Scan(&t.ID, &t.Name, &t.TypeID, &t.TypeName, &start, &end,
		&t.Observation, &series, &created, &updated); err != nil {
		return t, fmt.Errorf("failed to scan task: %w", err)
	}

	var err error
	if t.Start, err = parseTime(start); err != nil {
		return t, err
	}
	if t.End, err = parseTime(end); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return t, err
	}
	t.SeriesID = schedule.SeriesID(series.String)
	return t, nil
}
