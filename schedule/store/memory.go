// Package store provides in-memory schedule.Store implementations.
package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	state
}

type state struct {
	workers   map[schedule.WorkerID]schedule.Worker
	taskTypes map[schedule.TaskTypeID]schedule.TaskType
	tasks     map[schedule.TaskID]schedule.Task
	leaves    map[schedule.LeaveID]schedule.LeaveRequest
}

func NewMemory() *Memory {
	return &Memory{state: state{
		workers:   make(map[schedule.WorkerID]schedule.Worker),
		taskTypes: make(map[schedule.TaskTypeID]schedule.TaskType),
		tasks:     make(map[schedule.TaskID]schedule.Task),
		leaves:    make(map[schedule.LeaveID]schedule.LeaveRequest),
	}}
}

// PutWorker inserts or replaces a worker.
func (m *Memory) PutWorker(w schedule.Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.ID] = w
}

// PutTaskType inserts or replaces a task type.
func (m *Memory) PutTaskType(tt schedule.TaskType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tt.Qualified = slices.Clone(tt.Qualified)
	m.taskTypes[tt.ID] = tt
}

func (m *Memory) GetWorker(ctx context.Context, id schedule.WorkerID) (*schedule.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetWorker(ctx, id)
}

func (m *Memory) ListWorkers(ctx context.Context) ([]schedule.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListWorkers(ctx)
}

func (m *Memory) GetTaskType(ctx context.Context, id schedule.TaskTypeID) (*schedule.TaskType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetTaskType(ctx, id)
}

func (m *Memory) ListTaskTypes(ctx context.Context) ([]schedule.TaskType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListTaskTypes(ctx)
}

func (m *Memory) GetTask(ctx context.Context, id schedule.TaskID) (*schedule.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetTask(ctx, id)
}

func (m *Memory) ListTasks(ctx context.Context, f schedule.TaskFilter) ([]schedule.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListTasks(ctx, f)
}

func (m *Memory) CreateTask(ctx context.Context, t schedule.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateTask(ctx, t)
}

func (m *Memory) UpdateTask(ctx context.Context, t schedule.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateTask(ctx, t)
}

func (m *Memory) IsAssigned(ctx context.Context, taskID schedule.TaskID, workerID schedule.WorkerID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.IsAssigned(ctx, taskID, workerID)
}

func (m *Memory) Unassign(ctx context.Context, taskID schedule.TaskID, workerID schedule.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Unassign(ctx, taskID, workerID)
}

func (m *Memory) GetLeave(ctx context.Context, id schedule.LeaveID) (*schedule.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.GetLeave(ctx, id)
}

func (m *Memory) ListLeaves(ctx context.Context, f schedule.LeaveFilter) ([]schedule.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ListLeaves(ctx, f)
}

func (m *Memory) CreateLeave(ctx context.Context, l schedule.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateLeave(ctx, l)
}

func (m *Memory) UpdateLeave(ctx context.Context, l schedule.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateLeave(ctx, l)
}

func (m *Memory) DeleteLeave(ctx context.Context, id schedule.LeaveID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteLeave(ctx, id)
}

// =============================================================================
// UNLOCKED STATE - shared by Memory and the transactional view
// =============================================================================

func (s *state) GetWorker(_ context.Context, id schedule.WorkerID) (*schedule.Worker, error) {
	w, ok := s.workers[id]
	if !ok {
		return nil, schedule.ErrWorkerNotFound
	}
	return &w, nil
}

func (s *state) ListWorkers(_ context.Context) ([]schedule.Worker, error) {
	out := make([]schedule.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) GetTaskType(_ context.Context, id schedule.TaskTypeID) (*schedule.TaskType, error) {
	tt, ok := s.taskTypes[id]
	if !ok {
		return nil, schedule.ErrTaskTypeNotFound
	}
	tt.Qualified = slices.Clone(tt.Qualified)
	return &tt, nil
}

func (s *state) ListTaskTypes(_ context.Context) ([]schedule.TaskType, error) {
	out := make([]schedule.TaskType, 0, len(s.taskTypes))
	for _, tt := range s.taskTypes {
		tt.Qualified = slices.Clone(tt.Qualified)
		out = append(out, tt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) readTask(t schedule.Task) schedule.Task {
	t.Workers = slices.Clone(t.Workers)
	if tt, ok := s.taskTypes[t.TypeID]; ok {
		t.TypeName = tt.Name
	}
	return t
}

func (s *state) GetTask(_ context.Context, id schedule.TaskID) (*schedule.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, schedule.ErrTaskNotFound
	}
	t = s.readTask(t)
	return &t, nil
}

func (s *state) ListTasks(_ context.Context, f schedule.TaskFilter) ([]schedule.Task, error) {
	var out []schedule.Task
	for _, t := range s.tasks {
		if f.Exclude != "" && t.ID == f.Exclude {
			continue
		}
		if f.Window != nil && !t.Interval().Overlaps(*f.Window) {
			continue
		}
		if len(f.WorkerIDs) > 0 && !slices.ContainsFunc(t.Workers, func(w schedule.WorkerID) bool {
			return slices.Contains(f.WorkerIDs, w)
		}) {
			continue
		}
		out = append(out, s.readTask(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) CreateTask(_ context.Context, t schedule.Task) error {
	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	t.Workers = slices.Clone(t.Workers)
	s.tasks[t.ID] = t
	return nil
}

func (s *state) UpdateTask(_ context.Context, t schedule.Task) error {
	if _, exists := s.tasks[t.ID]; !exists {
		return schedule.ErrTaskNotFound
	}
	t.Workers = slices.Clone(t.Workers)
	s.tasks[t.ID] = t
	return nil
}

func (s *state) IsAssigned(_ context.Context, taskID schedule.TaskID, workerID schedule.WorkerID) (bool, error) {
	t, ok := s.tasks[taskID]
	if !ok {
		return false, nil
	}
	return t.HasWorker(workerID), nil
}

func (s *state) Unassign(_ context.Context, taskID schedule.TaskID, workerID schedule.WorkerID) error {
	t, ok := s.tasks[taskID]
	if !ok {
		return schedule.ErrTaskNotFound
	}
	t.Workers = slices.DeleteFunc(slices.Clone(t.Workers), func(w schedule.WorkerID) bool { return w == workerID })
	s.tasks[taskID] = t
	return nil
}

func (s *state) GetLeave(_ context.Context, id schedule.LeaveID) (*schedule.LeaveRequest, error) {
	l, ok := s.leaves[id]
	if !ok {
		return nil, schedule.ErrLeaveNotFound
	}
	return &l, nil
}

func (s *state) ListLeaves(_ context.Context, f schedule.LeaveFilter) ([]schedule.LeaveRequest, error) {
	var out []schedule.LeaveRequest
	for _, l := range s.leaves {
		if f.Exclude != "" && l.ID == f.Exclude {
			continue
		}
		if len(f.WorkerIDs) > 0 && !slices.Contains(f.WorkerIDs, l.WorkerID) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, l.Status) {
			continue
		}
		if f.Window != nil && !l.Window().Overlaps(*f.Window) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *state) CreateLeave(_ context.Context, l schedule.LeaveRequest) error {
	if _, exists := s.leaves[l.ID]; exists {
		return fmt.Errorf("leave request %s already exists", l.ID)
	}
	s.leaves[l.ID] = l
	return nil
}

func (s *state) UpdateLeave(_ context.Context, l schedule.LeaveRequest) error {
	if _, exists := s.leaves[l.ID]; !exists {
		return schedule.ErrLeaveNotFound
	}
	s.leaves[l.ID] = l
	return nil
}

func (s *state) DeleteLeave(_ context.Context, id schedule.LeaveID) error {
	if _, exists := s.leaves[id]; !exists {
		return schedule.ErrLeaveNotFound
	}
	delete(s.leaves, id)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory

	// FailCommit, when set, is returned after fn succeeds and the writes
	// are rolled back. Tests use it to simulate a failing commit.
	FailCommit error
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(schedule.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&tm.state); err != nil {
		tm.restore(snapshot)
		return err
	}
	if tm.FailCommit != nil {
		tm.restore(snapshot)
		return tm.FailCommit
	}
	return nil
}

func (tm *TxMemory) snapshot() state {
	s := state{
		workers:   make(map[schedule.WorkerID]schedule.Worker, len(tm.workers)),
		taskTypes: make(map[schedule.TaskTypeID]schedule.TaskType, len(tm.taskTypes)),
		tasks:     make(map[schedule.TaskID]schedule.Task, len(tm.tasks)),
		leaves:    make(map[schedule.LeaveID]schedule.LeaveRequest, len(tm.leaves)),
	}
	for k, v := range tm.workers {
		s.workers[k] = v
	}
	for k, v := range tm.taskTypes {
		s.taskTypes[k] = v
	}
	for k, v := range tm.tasks {
		v.Workers = slices.Clone(v.Workers)
		s.tasks[k] = v
	}
	for k, v := range tm.leaves {
		s.leaves[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s state) {
	tm.state = s
}
