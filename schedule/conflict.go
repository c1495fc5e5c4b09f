/*
conflict.go - Conflict Detector

PURPOSE:
  Given a set of workers and a candidate interval, find every task and every
  approved leave that overlaps it, grouped per worker.

OVERLAP RULES:
  Task:  task.Start <= candidate.End AND task.End >= candidate.Start
         (closed intervals; back-to-back tasks conflict)
  Leave: status == approved AND the leave's day window overlaps the
         candidate's day window under the same closed rule

OUTPUT CONTRACT:
  Conflicts maps worker -> Bundle and only contains workers with at least one
  conflicting task or leave. No conflicts means an empty map. Bundles are
  sorted (tasks by start then id, leaves by start date then id), so the same
  store state always yields the same result. Checking never writes.

SEE ALSO:
  - mutator.go: re-runs the detector inside the write transaction
  - recurrence.go: occurrences checked by CheckOccurrences
*/
package schedule

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"
)

// =============================================================================
// CONFLICT BUNDLES
// =============================================================================

// Bundle is one worker's set of conflicting tasks and leaves.
type Bundle struct {
	WorkerID   WorkerID
	WorkerName string
	Tasks      []TaskSummary
	Leaves     []LeaveSummary
}

// Empty reports whether the bundle holds nothing.
func (b *Bundle) Empty() bool { return len(b.Tasks) == 0 && len(b.Leaves) == 0 }

func (b *Bundle) addTask(t TaskSummary) {
	for _, existing := range b.Tasks {
		if existing.ID == t.ID {
			return
		}
	}
	b.Tasks = append(b.Tasks, t)
}

func (b *Bundle) addLeave(l LeaveSummary) {
	for _, existing := range b.Leaves {
		if existing.ID == l.ID {
			return
		}
	}
	b.Leaves = append(b.Leaves, l)
}

func (b *Bundle) sort() {
	sort.Slice(b.Tasks, func(i, j int) bool {
		if !b.Tasks[i].Start.Equal(b.Tasks[j].Start) {
			return b.Tasks[i].Start.Before(b.Tasks[j].Start)
		}
		return b.Tasks[i].ID < b.Tasks[j].ID
	})
	sort.Slice(b.Leaves, func(i, j int) bool {
		if !b.Leaves[i].StartDate.Equal(b.Leaves[j].StartDate) {
			return b.Leaves[i].StartDate.Before(b.Leaves[j].StartDate)
		}
		return b.Leaves[i].ID < b.Leaves[j].ID
	})
}

// Conflicts maps each conflicting worker to its bundle.
type Conflicts map[WorkerID]*Bundle

func (c Conflicts) bundle(id WorkerID) *Bundle {
	b, ok := c[id]
	if !ok {
		b = &Bundle{WorkerID: id}
		c[id] = b
	}
	return b
}

// Merge folds other into c, de-duplicating by record id.
func (c Conflicts) Merge(other Conflicts) {
	for id, ob := range other {
		b := c.bundle(id)
		if b.WorkerName == "" {
			b.WorkerName = ob.WorkerName
		}
		for _, t := range ob.Tasks {
			b.addTask(t)
		}
		for _, l := range ob.Leaves {
			b.addLeave(l)
		}
		b.sort()
	}
}

// WorkerIDs returns the conflicting workers in ascending order.
func (c Conflicts) WorkerIDs() []WorkerID {
	ids := make([]WorkerID, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// TaskCount returns the number of worker-task pairs in conflict.
func (c Conflicts) TaskCount() int {
	n := 0
	for _, b := range c {
		n += len(b.Tasks)
	}
	return n
}

// =============================================================================
// QUERY
// =============================================================================

// Query is a conflict check request.
type Query struct {
	WorkerIDs []WorkerID
	Start     time.Time
	End       time.Time
	// ExcludeTaskID drops a task from the comparison set (editing that task).
	ExcludeTaskID TaskID
}

// Interval returns the candidate's closed interval.
func (q Query) Interval() Interval { return Interval{Start: q.Start, End: q.End} }

// Validate rejects malformed intervals.
func (q Query) Validate() error {
	if q.Start.IsZero() {
		return Invalid("start", "is required")
	}
	if q.End.IsZero() {
		return Invalid("end", "is required")
	}
	if !q.End.After(q.Start) {
		return Invalid("end", "must be after start")
	}
	return nil
}

// =============================================================================
// DETECTOR
// =============================================================================

// Detector finds overlapping tasks and approved leaves.
type Detector struct {
	Store Store
}

// NewDetector creates a detector reading from store.
func NewDetector(store Store) *Detector {
	return &Detector{Store: store}
}

// Check returns the conflicts for one candidate interval.
func (d *Detector) Check(ctx context.Context, q Query) (Conflicts, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	result := make(Conflicts)
	workers := uniqueWorkers(q.WorkerIDs)
	if len(workers) == 0 {
		return result, nil
	}
	inScope := make(map[WorkerID]bool, len(workers))
	for _, id := range workers {
		inScope[id] = true
	}

	candidate := q.Interval()
	tasks, err := d.Store.ListTasks(ctx, TaskFilter{
		WorkerIDs: workers,
		Window:    &candidate,
		Exclude:   q.ExcludeTaskID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load overlapping tasks: %w", err)
	}
	for _, t := range tasks {
		if t.ID == q.ExcludeTaskID || !t.Interval().Overlaps(candidate) {
			continue
		}
		for _, w := range t.Workers {
			if inScope[w] {
				result.bundle(w).addTask(t.Summary())
			}
		}
	}

	days := candidate.Days()
	leaves, err := d.Store.ListLeaves(ctx, LeaveFilter{
		WorkerIDs: workers,
		Statuses:  []LeaveStatus{LeaveApproved},
		Window:    &days,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load overlapping leaves: %w", err)
	}
	for _, l := range leaves {
		if l.Status != LeaveApproved || !inScope[l.WorkerID] || !l.Window().Overlaps(days) {
			continue
		}
		result.bundle(l.WorkerID).addLeave(l.Summary())
	}

	for id, b := range result {
		b.sort()
		w, err := d.Store.GetWorker(ctx, id)
		switch {
		case err == nil:
			b.WorkerName = w.Name
		case !errors.Is(err, ErrWorkerNotFound):
			return nil, fmt.Errorf("failed to load worker %s: %w", id, err)
		}
	}
	return result, nil
}

// CheckOccurrences runs Check once per occurrence and returns only the
// occurrences that conflict, in the order given.
func (d *Detector) CheckOccurrences(ctx context.Context, workerIDs []WorkerID, exclude TaskID, occurrences []Occurrence) ([]OccurrenceConflicts, error) {
	var out []OccurrenceConflicts
	for _, occ := range occurrences {
		c, err := d.Check(ctx, Query{WorkerIDs: workerIDs, Start: occ.Start, End: occ.End, ExcludeTaskID: exclude})
		if err != nil {
			return nil, err
		}
		if len(c) > 0 {
			out = append(out, OccurrenceConflicts{Occurrence: occ, Conflicts: c})
		}
	}
	return out, nil
}

func uniqueWorkers(ids []WorkerID) []WorkerID {
	out := slices.Clone(ids)
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	return out
}
