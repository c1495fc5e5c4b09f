package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/schedule/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	ana = schedule.WorkerID("w-ana")
	ben = schedule.WorkerID("w-ben")
	cai = schedule.WorkerID("w-cai")
)

func newTestStore(t *testing.T) *store.TxMemory {
	t.Helper()
	s := store.NewTxMemory()
	s.PutWorker(schedule.Worker{ID: ana, Name: "Ana"})
	s.PutWorker(schedule.Worker{ID: ben, Name: "Ben"})
	s.PutWorker(schedule.Worker{ID: cai, Name: "Cai"})
	s.PutTaskType(schedule.TaskType{ID: "tt-desk", Name: "Front desk", Color: "#3366ff", Qualified: []schedule.WorkerID{ana, ben, cai}})
	return s
}

// at returns June <day> 2024 at hh:mm UTC.
func at(day, hh, mm int) time.Time {
	return time.Date(2024, time.June, day, hh, mm, 0, 0, time.UTC)
}

func addTask(t *testing.T, s schedule.Store, id string, start, end time.Time, workers ...schedule.WorkerID) {
	t.Helper()
	require.NoError(t, s.CreateTask(context.Background(), schedule.Task{
		ID:      schedule.TaskID(id),
		Name:    "shift " + id,
		TypeID:  "tt-desk",
		Start:   start,
		End:     end,
		Workers: workers,
	}))
}

func addLeave(t *testing.T, s schedule.Store, id string, worker schedule.WorkerID, from, to time.Time, status schedule.LeaveStatus) {
	t.Helper()
	require.NoError(t, s.CreateLeave(context.Background(), schedule.LeaveRequest{
		ID:        schedule.LeaveID(id),
		WorkerID:  worker,
		Type:      schedule.LeaveVacation,
		StartDate: schedule.StartOfDay(from),
		EndDate:   schedule.StartOfDay(to),
		Status:    status,
	}))
}

func check(t *testing.T, s schedule.Store, q schedule.Query) schedule.Conflicts {
	t.Helper()
	c, err := schedule.NewDetector(s).Check(context.Background(), q)
	require.NoError(t, err)
	return c
}

// =============================================================================
// TASK OVERLAP
// =============================================================================

func TestCheck_TouchingEndpointsConflict(t *testing.T) {
	// GIVEN: Ana works 08:00-10:00
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana)

	// WHEN: Checking a candidate starting exactly at 10:00
	c := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 10, 0), End: at(10, 12, 0)})

	// THEN: The back-to-back task is reported
	require.Contains(t, c, ana)
	require.Len(t, c[ana].Tasks, 1)
	assert.Equal(t, schedule.TaskID("t1"), c[ana].Tasks[0].ID)
	assert.Equal(t, "Front desk", c[ana].Tasks[0].TypeName)
	assert.Equal(t, "Ana", c[ana].WorkerName)
}

func TestCheck_OverlapIsSymmetric(t *testing.T) {
	// For every pair of intervals, A conflicts with B's window iff B conflicts with A's
	pairs := []struct {
		a, b schedule.Interval
	}{
		{schedule.Interval{Start: at(10, 8, 0), End: at(10, 10, 0)}, schedule.Interval{Start: at(10, 9, 0), End: at(10, 11, 0)}},
		{schedule.Interval{Start: at(10, 8, 0), End: at(10, 10, 0)}, schedule.Interval{Start: at(10, 10, 0), End: at(10, 11, 0)}},
		{schedule.Interval{Start: at(10, 8, 0), End: at(10, 10, 0)}, schedule.Interval{Start: at(10, 10, 1), End: at(10, 11, 0)}},
		{schedule.Interval{Start: at(10, 8, 0), End: at(12, 10, 0)}, schedule.Interval{Start: at(11, 1, 0), End: at(11, 2, 0)}},
	}
	for _, p := range pairs {
		s := newTestStore(t)
		addTask(t, s, "a", p.a.Start, p.a.End, ana)
		addTask(t, s, "b", p.b.Start, p.b.End, ana)

		fromA := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: p.a.Start, End: p.a.End, ExcludeTaskID: "a"})
		fromB := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: p.b.Start, End: p.b.End, ExcludeTaskID: "b"})

		want := p.a.Overlaps(p.b)
		assert.Equal(t, want, len(fromA) > 0, "A window, pair %v %v", p.a, p.b)
		assert.Equal(t, want, len(fromB) > 0, "B window, pair %v %v", p.a, p.b)
	}
}

func TestCheck_OmitsWorkersWithoutConflicts(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana)
	addTask(t, s, "t2", at(10, 14, 0), at(10, 16, 0), ben)

	c := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana, ben, cai}, Start: at(10, 9, 0), End: at(10, 11, 0)})

	assert.Equal(t, []schedule.WorkerID{ana}, c.WorkerIDs())
}

func TestCheck_NoConflicts_EmptyMapping(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana)

	c := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 10, 1), End: at(10, 11, 0)})

	assert.NotNil(t, c)
	assert.Empty(t, c)
}

func TestCheck_OnlyRequestedWorkersAreReported(t *testing.T) {
	// GIVEN: A task shared by Ana and Ben
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana, ben)

	// WHEN: Checking only Ben
	c := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ben}, Start: at(10, 9, 0), End: at(10, 9, 30)})

	// THEN: Ana is not in the result
	assert.Equal(t, []schedule.WorkerID{ben}, c.WorkerIDs())
}

func TestCheck_ExcludesTaskBeingEdited(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana)

	c := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 8, 30), End: at(10, 10, 30), ExcludeTaskID: "t1"})
	assert.Empty(t, c)
}

func TestCheck_TasksSortedByStart(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "late", at(10, 14, 0), at(10, 16, 0), ana)
	addTask(t, s, "early", at(10, 8, 0), at(10, 10, 0), ana)

	c := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 0, 0), End: at(10, 23, 0)})

	require.Len(t, c[ana].Tasks, 2)
	assert.Equal(t, schedule.TaskID("early"), c[ana].Tasks[0].ID)
	assert.Equal(t, schedule.TaskID("late"), c[ana].Tasks[1].ID)
}

// =============================================================================
// LEAVE OVERLAP
// =============================================================================

func TestCheck_ApprovedLeave_DayGranularity(t *testing.T) {
	// GIVEN: Ana is on approved leave June 10-14
	s := newTestStore(t)
	addLeave(t, s, "l1", ana, at(10, 0, 0), at(14, 0, 0), schedule.LeaveApproved)

	// WHEN/THEN: A late-evening slot on the 14th conflicts
	c := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(14, 22, 0), End: at(14, 23, 0)})
	require.Contains(t, c, ana)
	require.Len(t, c[ana].Leaves, 1)
	assert.Equal(t, schedule.LeaveID("l1"), c[ana].Leaves[0].ID)
	assert.Empty(t, c[ana].Tasks)

	// WHEN/THEN: An early slot on the 15th does not
	c = check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(15, 0, 30), End: at(15, 2, 0)})
	assert.Empty(t, c)
}

func TestCheck_PendingAndRejectedLeavesIgnored(t *testing.T) {
	s := newTestStore(t)
	addLeave(t, s, "l1", ana, at(10, 0, 0), at(14, 0, 0), schedule.LeavePending)
	addLeave(t, s, "l2", ben, at(10, 0, 0), at(14, 0, 0), schedule.LeaveRejected)

	c := check(t, s, schedule.Query{WorkerIDs: []schedule.WorkerID{ana, ben}, Start: at(12, 8, 0), End: at(12, 10, 0)})
	assert.Empty(t, c)
}

// =============================================================================
// CONTRACT
// =============================================================================

func TestCheck_Idempotent(t *testing.T) {
	// GIVEN: A mix of tasks and leaves
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana, ben)
	addTask(t, s, "t2", at(10, 9, 0), at(10, 12, 0), ben)
	addLeave(t, s, "l1", cai, at(9, 0, 0), at(11, 0, 0), schedule.LeaveApproved)
	q := schedule.Query{WorkerIDs: []schedule.WorkerID{cai, ben, ana}, Start: at(10, 9, 30), End: at(10, 11, 0)}

	// WHEN: Checking twice
	first := check(t, s, q)
	second := check(t, s, q)

	// THEN: Identical results and untouched assignments
	assert.Equal(t, first, second)
	task, err := s.GetTask(context.Background(), "t1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []schedule.WorkerID{ana, ben}, task.Workers)
}

func TestCheck_MalformedInterval(t *testing.T) {
	s := newTestStore(t)
	d := schedule.NewDetector(s)

	_, err := d.Check(context.Background(), schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 10, 0), End: at(10, 10, 0)})
	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end", verr.Field)

	_, err = d.Check(context.Background(), schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, End: at(10, 10, 0)})
	assert.ErrorIs(t, err, schedule.ErrValidation)
}

func TestCheckOccurrences_ReportsOnlyProblemDates(t *testing.T) {
	// GIVEN: Ana is busy on the 12th only
	s := newTestStore(t)
	addTask(t, s, "t1", at(12, 9, 0), at(12, 11, 0), ana)
	occs := []schedule.Occurrence{
		{Start: at(10, 9, 0), End: at(10, 10, 0)},
		{Start: at(12, 9, 0), End: at(12, 10, 0)},
		{Start: at(14, 9, 0), End: at(14, 10, 0)},
	}

	// WHEN: Checking the batch
	out, err := schedule.NewDetector(s).CheckOccurrences(context.Background(), []schedule.WorkerID{ana}, "", occs)
	require.NoError(t, err)

	// THEN: Only the 12th is reported
	require.Len(t, out, 1)
	assert.Equal(t, at(12, 0, 0), out[0].Occurrence.Date())
	assert.Equal(t, []schedule.WorkerID{ana}, out[0].Conflicts.WorkerIDs())
}

func TestConflicts_Merge_DeduplicatesByID(t *testing.T) {
	a := schedule.Conflicts{ana: {WorkerID: ana, Tasks: []schedule.TaskSummary{{ID: "t1", Start: at(10, 8, 0)}}}}
	b := schedule.Conflicts{
		ana: {WorkerID: ana, WorkerName: "Ana", Tasks: []schedule.TaskSummary{{ID: "t1", Start: at(10, 8, 0)}, {ID: "t0", Start: at(9, 8, 0)}}},
		ben: {WorkerID: ben, Leaves: []schedule.LeaveSummary{{ID: "l1"}}},
	}

	a.Merge(b)

	assert.Equal(t, []schedule.WorkerID{ana, ben}, a.WorkerIDs())
	assert.Equal(t, "Ana", a[ana].WorkerName)
	require.Len(t, a[ana].Tasks, 2)
	assert.Equal(t, schedule.TaskID("t0"), a[ana].Tasks[0].ID)
	assert.Equal(t, 2, a.TaskCount())
}
