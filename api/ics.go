package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/warp/shift-engine/schedule"
)

const icsProductID = "-//warp//shift-engine//EN"

// workerCalendar builds a VCALENDAR with the worker's tasks (timed events)
// and approved leaves (all-day events, DTEND exclusive) inside window.
func workerCalendar(ctx context.Context, store schedule.Store, worker schedule.Worker, window schedule.Interval, stamp time.Time) (*ics.Calendar, error) {
	ids := []schedule.WorkerID{worker.ID}
	tasks, err := store.ListTasks(ctx, schedule.TaskFilter{WorkerIDs: ids, Window: &window})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	days := window.Days()
	leaves, err := store.ListLeaves(ctx, schedule.LeaveFilter{
		WorkerIDs: ids,
		Statuses:  []schedule.LeaveStatus{schedule.LeaveApproved},
		Window:    &days,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list leaves: %w", err)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(worker.Name)

	for _, t := range tasks {
		ev := cal.AddEvent("task-" + string(t.ID) + "@shift-engine")
		ev.SetDtStampTime(stamp)
		ev.SetModifiedAt(t.UpdatedAt)
		ev.SetStartAt(t.Start)
		ev.SetEndAt(t.End)
		ev.SetSummary(t.Name)
		desc := t.TypeName
		if t.Observation != "" {
			desc += "\n" + t.Observation
		}
		ev.SetDescription(desc)
		if t.SeriesID != "" {
			ev.AddProperty(ics.ComponentPropertyCategories, "series-"+string(t.SeriesID))
		}
	}

	for _, l := range leaves {
		ev := cal.AddEvent("leave-" + string(l.ID) + "@shift-engine")
		ev.SetDtStampTime(stamp)
		ev.SetModifiedAt(l.UpdatedAt)
		ev.SetAllDayStartAt(l.StartDate)
		ev.SetAllDayEndAt(l.EndDate.AddDate(0, 0, 1))
		ev.SetSummary(leaveTitle(l.Type))
		if l.Reason != "" {
			ev.SetDescription(l.Reason)
		}
	}

	return cal, nil
}

func leaveTitle(t schedule.LeaveType) string {
	switch t {
	case schedule.LeaveSick:
		return "Sick leave"
	case schedule.LeaveVacation:
		return "Vacation"
	case schedule.LeavePermit:
		return "Permit"
	}
	return strings.ReplaceAll(string(t), "_", " ")
}
