/*
Package tasks creates and edits tasks through the Transactional Mutator.

CREATE:
  A create request names a task type, a day, a clock range and either an
  explicit worker list or "all qualified" (the type's qualification list).
  Without a recurrence it produces one occurrence; with one, the Occurrence
  Expander produces the batch and every task in it shares a SeriesID.

  The whole batch is ONE transaction: every occurrence is checked, and on
  commit every task (plus any unassignment) is written together or not at
  all. A conflict reports each problematic occurrence separately.

EDIT:
  Edits replace the fields given and re-check conflicts for the resulting
  interval and worker set, excluding the task itself.

SEE ALSO:
  - schedule/recurrence.go: Expander
  - schedule/mutator.go: Commit
*/
package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// COMMANDS
// =============================================================================

// CreateCommand is a validated request to create one or more occurrences.
type CreateCommand struct {
	Name         string
	TypeID       schedule.TaskTypeID
	Date         time.Time // base date
	StartTime    schedule.Clock
	EndTime      schedule.Clock
	Observation  string
	WorkerIDs    []schedule.WorkerID
	AllQualified bool
	Recurrence   *schedule.Recurrence
	Override     schedule.Override
}

// Validate checks the command's fields.
func (c CreateCommand) Validate() error {
	if c.Name == "" {
		return schedule.Invalid("name", "is required")
	}
	if c.TypeID == "" {
		return schedule.Invalid("type_id", "is required")
	}
	if c.Date.IsZero() {
		return schedule.Invalid("date", "is required")
	}
	if !c.StartTime.Before(c.EndTime) {
		return schedule.Invalid("end_time", "must be after start_time")
	}
	if len(c.WorkerIDs) == 0 && !c.AllQualified {
		return schedule.Invalid("worker_ids", "at least one worker or all_qualified is required")
	}
	if c.Recurrence != nil {
		if err := c.Recurrence.Validate(); err != nil {
			return err
		}
	}
	return c.Override.Validate()
}

// EditCommand changes an existing task. Zero fields keep their value.
type EditCommand struct {
	ID          schedule.TaskID
	Name        string
	TypeID      schedule.TaskTypeID
	Start       time.Time
	End         time.Time
	Observation *string
	WorkerIDs   []schedule.WorkerID
	Override    schedule.Override
}

// Outcome is the result of a successful create or edit.
type Outcome struct {
	Tasks      []schedule.Task
	Forced     bool
	Unassigned int
	Conflicts  []schedule.OccurrenceConflicts
	// Truncated is set when the recurrence hit the occurrence ceiling.
	Truncated bool
}

// =============================================================================
// SERVICE
// =============================================================================

// Service creates and edits tasks.
type Service struct {
	Store    schedule.TxStore
	Mutator  *schedule.Mutator
	Expander schedule.Expander
	Now      schedule.NowFunc
	Log      logrus.FieldLogger
}

// NewService wires a Service over store. maxOccurrences caps recurrence
// expansion; zero uses schedule.DefaultMaxOccurrences.
func NewService(store schedule.TxStore, maxOccurrences int, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		Store:    store,
		Mutator:  schedule.NewMutator(store, log),
		Expander: schedule.Expander{MaxOccurrences: maxOccurrences},
		Now:      time.Now,
		Log:      log,
	}
}

// Create builds every occurrence and commits them in one transaction.
//
// Errors: *schedule.ValidationError, schedule.ErrTaskTypeNotFound,
// schedule.ErrWorkerNotFound, *schedule.ConflictError (one entry per
// conflicting occurrence).
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	tt, err := s.Store.GetTaskType(ctx, cmd.TypeID)
	if err != nil {
		return nil, err
	}
	workers, err := s.resolveWorkers(ctx, tt, cmd.WorkerIDs, cmd.AllQualified)
	if err != nil {
		return nil, err
	}

	var (
		occurrences []schedule.Occurrence
		series      schedule.SeriesID
		truncated   bool
	)
	if cmd.Recurrence == nil {
		occurrences = []schedule.Occurrence{{Start: cmd.StartTime.On(cmd.Date), End: cmd.EndTime.On(cmd.Date)}}
	} else {
		exp, err := s.Expander.Expand(cmd.Date, cmd.StartTime, cmd.EndTime, *cmd.Recurrence)
		if err != nil {
			return nil, err
		}
		if len(exp.Occurrences) == 0 {
			return nil, schedule.Invalid("recurrence", "produces no occurrences")
		}
		occurrences = exp.Occurrences
		truncated = exp.Truncated
		series = schedule.SeriesID(uuid.NewString())
	}

	now := s.Now().UTC()
	created := make([]schedule.Task, 0, len(occurrences))
	plans := make([]schedule.Plan, 0, len(occurrences))
	for _, occ := range occurrences {
		task := schedule.Task{
			ID:          schedule.TaskID(uuid.NewString()),
			Name:        cmd.Name,
			TypeID:      tt.ID,
			TypeName:    tt.Name,
			Start:       occ.Start,
			End:         occ.End,
			Observation: cmd.Observation,
			SeriesID:    series,
			Workers:     workers,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		created = append(created, task)
		plans = append(plans, schedule.Plan{
			Scope: &schedule.Query{WorkerIDs: workers, Start: occ.Start, End: occ.End},
			Apply: func(ctx context.Context, tx schedule.Store) error {
				return tx.CreateTask(ctx, task)
			},
		})
	}

	res, err := s.Mutator.Commit(ctx, cmd.Override, plans...)
	if err != nil {
		return nil, err
	}

	entry := s.Log.WithFields(logrus.Fields{
		"type_id":     tt.ID,
		"occurrences": len(created),
		"workers":     len(workers),
	})
	if series != "" {
		entry = entry.WithField("series_id", series)
	}
	if truncated {
		entry.Warn("recurrence truncated at occurrence ceiling")
	}
	entry.Info("tasks created")

	return &Outcome{
		Tasks:      created,
		Forced:     res.Forced,
		Unassigned: res.Unassigned,
		Conflicts:  res.Conflicts,
		Truncated:  truncated,
	}, nil
}

// Edit updates a task, re-checking conflicts against everything but itself.
func (s *Service) Edit(ctx context.Context, cmd EditCommand) (*Outcome, error) {
	if err := cmd.Override.Validate(); err != nil {
		return nil, err
	}
	current, err := s.Store.GetTask(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}

	updated := *current
	if cmd.Name != "" {
		updated.Name = cmd.Name
	}
	if cmd.TypeID != "" && cmd.TypeID != current.TypeID {
		tt, err := s.Store.GetTaskType(ctx, cmd.TypeID)
		if err != nil {
			return nil, err
		}
		updated.TypeID, updated.TypeName = tt.ID, tt.Name
	}
	if !cmd.Start.IsZero() {
		updated.Start = cmd.Start.UTC()
	}
	if !cmd.End.IsZero() {
		updated.End = cmd.End.UTC()
	}
	if !updated.End.After(updated.Start) {
		return nil, schedule.Invalid("end", "must be after start")
	}
	if cmd.Observation != nil {
		updated.Observation = *cmd.Observation
	}
	if cmd.WorkerIDs != nil {
		if len(cmd.WorkerIDs) == 0 {
			return nil, schedule.Invalid("worker_ids", "a task needs at least one worker")
		}
		workers, err := s.resolveWorkers(ctx, nil, cmd.WorkerIDs, false)
		if err != nil {
			return nil, err
		}
		updated.Workers = workers
	}
	updated.UpdatedAt = s.Now().UTC()

	plan := schedule.Plan{
		Scope: &schedule.Query{
			WorkerIDs:     updated.Workers,
			Start:         updated.Start,
			End:           updated.End,
			ExcludeTaskID: updated.ID,
		},
		Guard: func(ctx context.Context, tx schedule.Store) error {
			_, err := tx.GetTask(ctx, updated.ID)
			return err
		},
		Apply: func(ctx context.Context, tx schedule.Store) error {
			return tx.UpdateTask(ctx, updated)
		},
	}
	res, err := s.Mutator.Commit(ctx, cmd.Override, plan)
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{"task_id": updated.ID, "forced": res.Forced}).Info("task updated")
	return &Outcome{
		Tasks:      []schedule.Task{updated},
		Forced:     res.Forced,
		Unassigned: res.Unassigned,
		Conflicts:  res.Conflicts,
	}, nil
}

// resolveWorkers returns the de-duplicated worker set for a task. With
// allQualified the type's qualification list is used; otherwise every id
// must exist in the directory.
func (s *Service) resolveWorkers(ctx context.Context, tt *schedule.TaskType, ids []schedule.WorkerID, allQualified bool) ([]schedule.WorkerID, error) {
	if allQualified {
		ids = tt.Qualified
	}
	seen := make(map[schedule.WorkerID]bool, len(ids))
	out := make([]schedule.WorkerID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.Store.GetWorker(ctx, id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, schedule.Invalid("worker_ids", "no workers to assign")
	}
	return out, nil
}
