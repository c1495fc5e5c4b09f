package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORKLOAD - Per-worker totals inside a window
// =============================================================================

// WorkerLoad summarizes one worker's schedule inside a window.
type WorkerLoad struct {
	WorkerID   WorkerID
	WorkerName string
	Tasks      int
	// Hours is scheduled task time clipped to the window, rounded to 2 places.
	Hours     decimal.Decimal
	LeaveDays int // approved leave days inside the window
}

// Workload is the report for one window, one entry per known worker.
type Workload struct {
	Window  Interval
	Workers []WorkerLoad
}

var minutesPerHour = decimal.NewFromInt(60)

// ComputeWorkload totals tasks, hours and approved leave days per worker.
// Tasks and leaves straddling the window edges only count their inside part.
func ComputeWorkload(ctx context.Context, store Store, window Interval) (*Workload, error) {
	workers, err := store.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	tasks, err := store.ListTasks(ctx, TaskFilter{Window: &window})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	days := window.Days()
	leaves, err := store.ListLeaves(ctx, LeaveFilter{Statuses: []LeaveStatus{LeaveApproved}, Window: &days})
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}

	index := make(map[WorkerID]int, len(workers))
	report := &Workload{Window: window, Workers: make([]WorkerLoad, len(workers))}
	for i, w := range workers {
		index[w.ID] = i
		report.Workers[i] = WorkerLoad{WorkerID: w.ID, WorkerName: w.Name, Hours: decimal.Zero}
	}

	for _, t := range tasks {
		minutes := decimal.NewFromInt(int64(clip(t.Interval(), window) / time.Minute))
		for _, w := range t.Workers {
			i, ok := index[w]
			if !ok {
				continue
			}
			report.Workers[i].Tasks++
			report.Workers[i].Hours = report.Workers[i].Hours.Add(minutes)
		}
	}
	for i := range report.Workers {
		report.Workers[i].Hours = report.Workers[i].Hours.Div(minutesPerHour).Round(2)
	}

	for _, l := range leaves {
		i, ok := index[l.WorkerID]
		if !ok {
			continue
		}
		from, to := l.StartDate, l.EndDate
		if from.Before(days.Start) {
			from = days.Start
		}
		if to.After(days.End) {
			to = days.End
		}
		if to.Before(from) {
			continue
		}
		report.Workers[i].LeaveDays += DaysBetween(from, to) + 1
	}
	return report, nil
}

// clip returns the length of iv that lies inside window.
func clip(iv, window Interval) time.Duration {
	start, end := iv.Start, iv.End
	if start.Before(window.Start) {
		start = window.Start
	}
	if end.After(window.End) {
		end = window.End
	}
	if !end.After(start) {
		return 0
	}
	return end.Sub(start)
}
