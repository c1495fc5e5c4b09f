/*
Package schedule provides the conflict-aware scheduling engine.

PURPOSE:
  Workers are assigned to time-boxed tasks and take leave (sick leave,
  vacation, permits). This package decides whether a proposed interval
  collides with existing tasks or approved leave for a set of workers, and
  performs conflict-aware writes as single atomic units.

KEY CONCEPTS IN THIS FILE (types.go):
  - Worker:       identity owned by an administrative collaborator
  - TaskType:     category with a qualification list and a display color
  - Task:         [Start, End] unit of work with one or more workers
  - LeaveRequest: day-granularity absence with a pending/approved/rejected status
  - Summaries:    the slim views carried inside conflict bundles

INVARIANTS:
  - Task.End is strictly after Task.Start
  - LeaveRequest.EndDate is on or after LeaveRequest.StartDate
  - All instants are UTC; leave dates are UTC midnights

SEE ALSO:
  - time.go: day/month windows and clock parsing
  - conflict.go: Detector
  - mutator.go: Mutator
*/
package schedule

import (
	"slices"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	WorkerID   string
	TaskID     string
	TaskTypeID string
	LeaveID    string
	SeriesID   string
)

// =============================================================================
// WORKER DIRECTORY TYPES
// =============================================================================

// Worker is a schedulable person. The engine only reads workers.
type Worker struct {
	ID   WorkerID
	Name string
}

// TaskType categorizes tasks and lists the workers qualified for them.
type TaskType struct {
	ID        TaskTypeID
	Name      string
	Color     string
	Qualified []WorkerID
}

// IsQualified reports whether the worker appears in the qualification list.
func (tt TaskType) IsQualified(id WorkerID) bool {
	return slices.Contains(tt.Qualified, id)
}

// =============================================================================
// TASK
// =============================================================================

// Task is a scheduled unit of work.
type Task struct {
	ID          TaskID
	Name        string
	TypeID      TaskTypeID
	TypeName    string // filled on reads
	Start       time.Time
	End         time.Time
	Observation string
	SeriesID    SeriesID // set when created from a recurrence
	Workers     []WorkerID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Interval returns the task's closed [Start, End] interval.
func (t Task) Interval() Interval {
	return Interval{Start: t.Start, End: t.End}
}

// HasWorker reports whether the worker is assigned to the task.
func (t Task) HasWorker(id WorkerID) bool {
	return slices.Contains(t.Workers, id)
}

// Summary returns the view of the task carried in conflict bundles.
func (t Task) Summary() TaskSummary {
	return TaskSummary{ID: t.ID, Name: t.Name, TypeName: t.TypeName, Start: t.Start, End: t.End}
}

// TaskSummary is a conflicting task as reported to callers.
type TaskSummary struct {
	ID       TaskID
	Name     string
	TypeName string
	Start    time.Time
	End      time.Time
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// LeaveType is a closed enumeration of absence kinds.
type LeaveType string

const (
	LeaveSick     LeaveType = "sick_leave"
	LeaveVacation LeaveType = "vacation"
	LeavePermit   LeaveType = "permit"
)

// LeaveTypes lists every accepted LeaveType.
var LeaveTypes = []LeaveType{LeaveSick, LeaveVacation, LeavePermit}

// Valid reports whether the type belongs to the enumeration.
func (lt LeaveType) Valid() bool {
	return slices.Contains(LeaveTypes, lt)
}

// LeaveStatus is the state of a leave request.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// Valid reports whether the status belongs to the enumeration.
func (s LeaveStatus) Valid() bool {
	return s == LeavePending || s == LeaveApproved || s == LeaveRejected
}

// Blocking reports whether a leave in this status occupies its dates
// against other leave requests of the same worker.
func (s LeaveStatus) Blocking() bool {
	return s == LeavePending || s == LeaveApproved
}

// LeaveRequest is a worker's absence over an inclusive range of days.
type LeaveRequest struct {
	ID         LeaveID
	WorkerID   WorkerID
	Type       LeaveType
	StartDate  time.Time // UTC midnight
	EndDate    time.Time // UTC midnight, inclusive
	Reason     string
	Status     LeaveStatus
	ReviewedBy string
	ReviewedAt *time.Time
	ReviewNote string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Window returns the leave's day window: StartDate 00:00:00.000 to
// EndDate 23:59:59.999.
func (l LeaveRequest) Window() Interval {
	return SpanDays(l.StartDate, l.EndDate)
}

// Days returns the number of calendar days covered by the leave.
func (l LeaveRequest) Days() int {
	return DaysBetween(l.StartDate, l.EndDate) + 1
}

// Summary returns the view of the leave carried in conflict bundles.
func (l LeaveRequest) Summary() LeaveSummary {
	return LeaveSummary{ID: l.ID, Type: l.Type, StartDate: l.StartDate, EndDate: l.EndDate}
}

// LeaveSummary is a conflicting leave as reported to callers.
type LeaveSummary struct {
	ID        LeaveID
	Type      LeaveType
	StartDate time.Time
	EndDate   time.Time
}
