/*
mutator.go - Transactional Mutator

PURPOSE:
  Performs a conflict-aware write as a single atomic unit. Callers describe
  the write as one or more Plans; the Mutator runs them inside one
  transaction together with conflict detection and, when requested, the
  severing of conflicting worker-task associations.

COMMIT SEQUENCE (all inside TxStore.WithTx):
  1. Guards      every Plan.Guard runs first (unconditional checks such as
                 "leave still pending" or leave-vs-leave overlap)
  2. Detection   every Plan.Scope is checked against the transactional view
  3. Gate        conflicts without Force -> *ConflictError, nothing written
  4. Writes      every Plan.Apply runs in order
  5. Unassign    with Force+Unassign, each conflicting (task, worker) pair
                 is re-verified with IsAssigned before it is severed

  Any error rolls back steps 4 and 5 together.

OVERRIDES:
  Force            write despite conflicts, assignments untouched
  Force+Unassign   write and detach the worker from every conflicting task
  Unassign alone   rejected as a validation error

SEE ALSO:
  - conflict.go: Detector
  - leave/service.go, tasks/service.go: Plan builders
*/
package schedule

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Override carries the caller's confirmation flags.
type Override struct {
	Force    bool
	Unassign bool
}

// Validate rejects Unassign without Force.
func (o Override) Validate() error {
	if o.Unassign && !o.Force {
		return Invalid("unassign", "requires force")
	}
	return nil
}

// Plan is one step of a conflict-aware write.
type Plan struct {
	// Scope is checked for conflicts before any write. Nil skips detection.
	Scope *Query

	// Guard runs before detection and aborts the whole commit on error.
	Guard func(ctx context.Context, tx Store) error

	// Apply performs the primary write.
	Apply func(ctx context.Context, tx Store) error
}

// Result reports what a committed write did.
type Result struct {
	// Conflicts found at commit time. Non-empty only for forced writes.
	Conflicts []OccurrenceConflicts
	Forced    bool

	// Unassigned is the number of worker-task associations actually severed.
	Unassigned int
}

// Mutator commits Plans atomically.
type Mutator struct {
	Store TxStore
	Log   logrus.FieldLogger
}

// NewMutator creates a mutator. A nil logger uses the logrus standard logger.
func NewMutator(store TxStore, log logrus.FieldLogger) *Mutator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Mutator{Store: store, Log: log}
}

// Commit runs plans in one transaction. On a *ConflictError nothing has
// been written.
func (m *Mutator) Commit(ctx context.Context, ov Override, plans ...Plan) (*Result, error) {
	if err := ov.Validate(); err != nil {
		return nil, err
	}

	var result *Result
	err := m.Store.WithTx(ctx, func(tx Store) error {
		for _, p := range plans {
			if p.Guard == nil {
				continue
			}
			if err := p.Guard(ctx, tx); err != nil {
				return err
			}
		}

		detector := NewDetector(tx)
		var found []OccurrenceConflicts
		for _, p := range plans {
			if p.Scope == nil {
				continue
			}
			c, err := detector.Check(ctx, *p.Scope)
			if err != nil {
				return err
			}
			if len(c) > 0 {
				found = append(found, OccurrenceConflicts{
					Occurrence: Occurrence{Start: p.Scope.Start, End: p.Scope.End},
					Conflicts:  c,
				})
			}
		}
		if len(found) > 0 && !ov.Force {
			return &ConflictError{Occurrences: found}
		}

		for _, p := range plans {
			if p.Apply == nil {
				continue
			}
			if err := p.Apply(ctx, tx); err != nil {
				return err
			}
		}

		r := &Result{Conflicts: found, Forced: ov.Force && len(found) > 0}
		if ov.Unassign && len(found) > 0 {
			n, err := m.unassign(ctx, tx, found)
			if err != nil {
				return err
			}
			r.Unassigned = n
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Forced {
		m.Log.WithFields(logrus.Fields{
			"forced":      true,
			"occurrences": len(result.Conflicts),
			"unassigned":  result.Unassigned,
		}).Info("write committed over conflicts")
	}
	return result, nil
}

type assignment struct {
	task   TaskID
	worker WorkerID
}

// unassign severs every conflicting (task, worker) pair that is still
// associated. Pairs reported by several occurrences are counted once.
func (m *Mutator) unassign(ctx context.Context, tx Store, found []OccurrenceConflicts) (int, error) {
	seen := make(map[assignment]bool)
	touched := make(map[TaskID]bool)
	n := 0

	for _, oc := range found {
		for _, workerID := range oc.Conflicts.WorkerIDs() {
			for _, t := range oc.Conflicts[workerID].Tasks {
				a := assignment{task: t.ID, worker: workerID}
				if seen[a] {
					continue
				}
				seen[a] = true

				assigned, err := tx.IsAssigned(ctx, t.ID, workerID)
				if err != nil {
					return 0, fmt.Errorf("failed to verify assignment of %s to %s: %w", workerID, t.ID, err)
				}
				if !assigned {
					continue
				}
				if err := tx.Unassign(ctx, t.ID, workerID); err != nil {
					return 0, fmt.Errorf("failed to unassign %s from %s: %w", workerID, t.ID, err)
				}
				touched[t.ID] = true
				n++
			}
		}
	}

	for id := range touched {
		task, err := tx.GetTask(ctx, id)
		if err != nil {
			return 0, err
		}
		if len(task.Workers) == 0 {
			m.Log.WithFields(logrus.Fields{"task_id": id, "task": task.Name}).
				Warn("task left without workers after unassignment")
		}
	}
	return n, nil
}
