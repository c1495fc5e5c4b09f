/*
audit.go - Schedule consistency scan

PURPOSE:
  Forced writes are allowed to leave the schedule inconsistent (a worker on
  approved leave still assigned to a task, a worker on two overlapping
  tasks, a task with nobody on it). Audit finds those inconsistencies in a
  window so an operator can resolve them. It never modifies anything.

SEE ALSO:
  - api/scheduler.go: runs Audit on a cron schedule
*/
package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// FindingKind classifies an audit finding.
type FindingKind string

const (
	FindingLeaveOverlap  FindingKind = "leave_overlap"
	FindingDoubleBooking FindingKind = "double_booking"
	FindingUnstaffed     FindingKind = "unstaffed"
)

// Finding is one inconsistency.
type Finding struct {
	Kind        FindingKind
	WorkerID    WorkerID
	TaskID      TaskID
	OtherTaskID TaskID  // double_booking only
	LeaveID     LeaveID // leave_overlap only
	At          time.Time
	Message     string
}

// Audit scans tasks overlapping window and returns every finding ordered
// by time, then kind.
func Audit(ctx context.Context, store Store, window Interval) ([]Finding, error) {
	tasks, err := store.ListTasks(ctx, TaskFilter{Window: &window})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	days := window.Days()
	leaves, err := store.ListLeaves(ctx, LeaveFilter{Statuses: []LeaveStatus{LeaveApproved}, Window: &days})
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}

	var findings []Finding
	byWorker := make(map[WorkerID][]Task)
	for _, t := range tasks {
		if len(t.Workers) == 0 {
			findings = append(findings, Finding{
				Kind:    FindingUnstaffed,
				TaskID:  t.ID,
				At:      t.Start,
				Message: fmt.Sprintf("task %q has no workers", t.Name),
			})
		}
		for _, w := range t.Workers {
			byWorker[w] = append(byWorker[w], t)
		}
	}

	for w, list := range byWorker {
		// list is ordered by start, so only later tasks can overlap an earlier one
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list) && !list[j].Start.After(list[i].End); j++ {
				findings = append(findings, Finding{
					Kind:        FindingDoubleBooking,
					WorkerID:    w,
					TaskID:      list[i].ID,
					OtherTaskID: list[j].ID,
					At:          list[j].Start,
					Message:     fmt.Sprintf("worker %s is on %q and %q at once", w, list[i].Name, list[j].Name),
				})
			}
		}
	}

	for _, l := range leaves {
		for _, t := range byWorker[l.WorkerID] {
			if !t.Interval().Overlaps(l.Window()) {
				continue
			}
			findings = append(findings, Finding{
				Kind:     FindingLeaveOverlap,
				WorkerID: l.WorkerID,
				TaskID:   t.ID,
				LeaveID:  l.ID,
				At:       t.Start,
				Message:  fmt.Sprintf("worker %s is assigned to %q during approved %s", l.WorkerID, t.Name, l.Type),
			})
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if !findings[i].At.Equal(findings[j].At) {
			return findings[i].At.Before(findings[j].At)
		}
		if findings[i].Kind != findings[j].Kind {
			return findings[i].Kind < findings[j].Kind
		}
		if findings[i].WorkerID != findings[j].WorkerID {
			return findings[i].WorkerID < findings[j].WorkerID
		}
		return findings[i].TaskID < findings[j].TaskID
	})
	return findings, nil
}
