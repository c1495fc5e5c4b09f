/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  The engine never holds a global store handle. Every component receives a
  Store (or TxStore) explicitly, which keeps it testable against the
  in-memory implementation and lets the Mutator hand a transactional view
  to the same code that runs outside a transaction.

KEY INTERFACES:
  WorkerDirectory: read-only workers and task types
  TaskStore:       tasks and worker-task associations
  LeaveStore:      leave requests
  Store:           all three
  TxStore:         Store + WithTx for atomic multi-step writes

QUERY CONTRACT:
  Overlap queries use the closed-interval rule (touching endpoints count).
  Implementations may return a superset; the Detector re-applies the rule.
  Results are snapshots: nothing is cached across requests.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - schedule/store/memory.go: in-memory for tests

SEE ALSO:
  - conflict.go: main reader
  - mutator.go: main writer
*/
package schedule

import (
	"context"
	"time"
)

// WorkerDirectory exposes the externally owned worker roster.
type WorkerDirectory interface {
	// GetWorker returns ErrWorkerNotFound if the worker does not exist.
	GetWorker(ctx context.Context, id WorkerID) (*Worker, error)

	ListWorkers(ctx context.Context) ([]Worker, error)

	// GetTaskType returns ErrTaskTypeNotFound if the type does not exist.
	GetTaskType(ctx context.Context, id TaskTypeID) (*TaskType, error)

	ListTaskTypes(ctx context.Context) ([]TaskType, error)
}

// TaskFilter narrows ListTasks. Zero values mean "any".
type TaskFilter struct {
	WorkerIDs []WorkerID
	Window    *Interval // closed overlap with [Start, End]
	Exclude   TaskID
}

// TaskStore persists tasks and their worker associations.
type TaskStore interface {
	// GetTask returns ErrTaskNotFound if the task does not exist.
	GetTask(ctx context.Context, id TaskID) (*Task, error)

	// ListTasks returns tasks matching the filter ordered by Start, then ID.
	// With WorkerIDs set, only tasks assigned to at least one of them.
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)

	CreateTask(ctx context.Context, task Task) error

	// UpdateTask replaces every field and the worker set of an existing task.
	UpdateTask(ctx context.Context, task Task) error

	// IsAssigned reports whether the worker is currently associated with the task.
	IsAssigned(ctx context.Context, taskID TaskID, workerID WorkerID) (bool, error)

	// Unassign severs one worker-task association.
	Unassign(ctx context.Context, taskID TaskID, workerID WorkerID) error
}

// LeaveFilter narrows ListLeaves. Zero values mean "any".
type LeaveFilter struct {
	WorkerIDs []WorkerID
	Statuses  []LeaveStatus
	Window    *Interval // day-window overlap with [Start, End]
	Exclude   LeaveID
}

// LeaveStore persists leave requests.
type LeaveStore interface {
	// GetLeave returns ErrLeaveNotFound if the request does not exist.
	GetLeave(ctx context.Context, id LeaveID) (*LeaveRequest, error)

	// ListLeaves returns requests matching the filter ordered by StartDate, then ID.
	ListLeaves(ctx context.Context, filter LeaveFilter) ([]LeaveRequest, error)

	CreateLeave(ctx context.Context, leave LeaveRequest) error
	UpdateLeave(ctx context.Context, leave LeaveRequest) error
	DeleteLeave(ctx context.Context, id LeaveID) error
}

// Store is everything the engine reads and writes.
type Store interface {
	WorkerDirectory
	TaskStore
	LeaveStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the passed Store is
	// rolled back. If fn returns nil, they are committed together.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// NowFunc returns the current instant. Services default to time.Now.
type NowFunc func() time.Time
