package leave

import (
	"errors"
	"fmt"

	"github.com/warp/shift-engine/schedule"
)

var (
	// ErrOverlappingLeave is wrapped by OverlapError. Never overridable.
	ErrOverlappingLeave = errors.New("overlapping leave request")

	// ErrInvalidTransition is wrapped by TransitionError.
	ErrInvalidTransition = errors.New("invalid leave status transition")
)

// OverlapError is returned when a worker already has a pending or approved
// leave request covering one of the requested days.
type OverlapError struct {
	WorkerID schedule.WorkerID
	Existing []schedule.LeaveSummary
}

func (e *OverlapError) Error() string {
	if len(e.Existing) == 0 {
		return fmt.Sprintf("worker %s already has leave in this period", e.WorkerID)
	}
	first := e.Existing[0]
	return fmt.Sprintf("worker %s already has leave %s from %s to %s",
		e.WorkerID, first.ID, first.StartDate.Format(schedule.DateLayout), first.EndDate.Format(schedule.DateLayout))
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingLeave }

// TransitionError is returned when deciding a request that is not pending.
type TransitionError struct {
	ID   schedule.LeaveID
	From schedule.LeaveStatus
	To   schedule.LeaveStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("leave %s is %s and cannot become %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
