package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// ROSTER FILE
// =============================================================================

// Roster is the administrative worker directory, loaded from YAML:
//
//	workers:
//	  - id: w-ana
//	    name: Ana
//	task_types:
//	  - id: tt-desk
//	    name: Front desk
//	    color: "#3366ff"
//	    qualified: [w-ana]
type Roster struct {
	Workers   []RosterWorker   `yaml:"workers"`
	TaskTypes []RosterTaskType `yaml:"task_types"`
}

type RosterWorker struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type RosterTaskType struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Color     string   `yaml:"color"`
	Qualified []string `yaml:"qualified"`
}

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes roster YAML and checks references.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	known := make(map[string]bool, len(r.Workers))
	for i, w := range r.Workers {
		if w.ID == "" || w.Name == "" {
			return nil, fmt.Errorf("roster worker #%d: id and name are required", i+1)
		}
		if known[w.ID] {
			return nil, fmt.Errorf("roster worker %s: duplicate id", w.ID)
		}
		known[w.ID] = true
	}
	for i, tt := range r.TaskTypes {
		if tt.ID == "" || tt.Name == "" {
			return nil, fmt.Errorf("roster task type #%d: id and name are required", i+1)
		}
		for _, w := range tt.Qualified {
			if !known[w] {
				return nil, fmt.Errorf("roster task type %s: unknown worker %s", tt.ID, w)
			}
		}
	}
	return &r, nil
}

// SeedRoster upserts every worker and task type in one transaction.
// Records missing from the roster are left in place.
func (s *Store) SeedRoster(ctx context.Context, r *Roster) error {
	return s.withTx(ctx, func(c *conn) error {
		for _, w := range r.Workers {
			if err := c.saveWorker(ctx, schedule.Worker{ID: schedule.WorkerID(w.ID), Name: w.Name}); err != nil {
				return err
			}
		}
		for _, tt := range r.TaskTypes {
			t := schedule.TaskType{ID: schedule.TaskTypeID(tt.ID), Name: tt.Name, Color: tt.Color}
			for _, w := range tt.Qualified {
				t.Qualified = append(t.Qualified, schedule.WorkerID(w))
			}
			if err := c.saveTaskType(ctx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// =============================================================================
// WORKER DIRECTORY (schedule.WorkerDirectory interface)
// =============================================================================

// SaveWorker inserts or renames a worker.
func (s *Store) SaveWorker(ctx context.Context, w schedule.Worker) error {
	return s.saveWorker(ctx, w)
}

func (c *conn) saveWorker(ctx context.Context, w schedule.Worker) error {
	now := formatTime(time.Now())
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO workers (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			updated_at = excluded.updated_at
	`, w.ID, w.Name, now, now)
	if err != nil {
		return fmt.Errorf("failed to save worker %s: %w", w.ID, err)
	}
	return nil
}

// SaveTaskType inserts or replaces a task type and its qualification list.
func (s *Store) SaveTaskType(ctx context.Context, tt schedule.TaskType) error {
	return s.withTx(ctx, func(c *conn) error { return c.saveTaskType(ctx, tt) })
}

func (c *conn) saveTaskType(ctx context.Context, tt schedule.TaskType) error {
	now := formatTime(time.Now())
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO task_types (id, name, color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			color = excluded.color,
			updated_at = excluded.updated_at
	`, tt.ID, tt.Name, tt.Color, now, now)
	if err != nil {
		return fmt.Errorf("failed to save task type %s: %w", tt.ID, err)
	}

	if _, err := c.q.ExecContext(ctx, "DELETE FROM task_type_workers WHERE task_type_id = ?", tt.ID); err != nil {
		return err
	}
	for _, w := range tt.Qualified {
		if _, err := c.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO task_type_workers (task_type_id, worker_id) VALUES (?, ?)", tt.ID, w,
		); err != nil {
			return fmt.Errorf("failed to qualify %s for %s: %w", w, tt.ID, err)
		}
	}
	return nil
}

func (c *conn) GetWorker(ctx context.Context, id schedule.WorkerID) (*schedule.Worker, error) {
	var w schedule.Worker
	err := c.q.QueryRowContext(ctx, "SELECT id, name FROM workers WHERE id = ?", id).Scan(&w.ID, &w.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *conn) ListWorkers(ctx context.Context) ([]schedule.Worker, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT id, name FROM workers ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []schedule.Worker
	for rows.Next() {
		var w schedule.Worker
		if err := rows.Scan(&w.ID, &w.Name); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (c *conn) GetTaskType(ctx context.Context, id schedule.TaskTypeID) (*schedule.TaskType, error) {
	var tt schedule.TaskType
	err := c.q.QueryRowContext(ctx, "SELECT id, name, color FROM task_types WHERE id = ?", id).
		Scan(&tt.ID, &tt.Name, &tt.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrTaskTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	quals, err := c.qualifications(ctx)
	if err != nil {
		return nil, err
	}
	tt.Qualified = quals[tt.ID]
	return &tt, nil
}

func (c *conn) ListTaskTypes(ctx context.Context) ([]schedule.TaskType, error) {
	rows, err := c.q.QueryContext(ctx, "SELECT id, name, color FROM task_types ORDER BY id")
	if err != nil {
		return nil, err
	}
	var types []schedule.TaskType
	for rows.Next() {
		var tt schedule.TaskType
		if err := rows.Scan(&tt.ID, &tt.Name, &tt.Color); err != nil {
			rows.Close()
			return nil, err
		}
		types = append(types, tt)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	quals, err := c.qualifications(ctx)
	if err != nil {
		return nil, err
	}
	for i := range types {
		types[i].Qualified = quals[types[i].ID]
	}
	return types, nil
}

func (c *conn) qualifications(ctx context.Context) (map[schedule.TaskTypeID][]schedule.WorkerID, error) {
	rows, err := c.q.QueryContext(ctx,
		"SELECT task_type_id, worker_id FROM task_type_workers ORDER BY task_type_id, worker_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[schedule.TaskTypeID][]schedule.WorkerID)
	for rows.Next() {
		var tt schedule.TaskTypeID
		var w schedule.WorkerID
		if err := rows.Scan(&tt, &w); err != nil {
			return nil, err
		}
		out[tt] = append(out[tt], w)
	}
	return out, rows.Err()
}
