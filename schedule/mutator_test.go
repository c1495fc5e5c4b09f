package schedule_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/schedule"
)

// createPlan is a Plan that creates one task for workers over [start, end].
func createPlan(id string, workers []schedule.WorkerID, q schedule.Query) schedule.Plan {
	return schedule.Plan{
		Scope: &q,
		Apply: func(ctx context.Context, tx schedule.Store) error {
			return tx.CreateTask(ctx, schedule.Task{
				ID: schedule.TaskID(id), Name: id, TypeID: "tt-desk",
				Start: q.Start, End: q.End, Workers: workers,
			})
		},
	}
}

func workersOf(t *testing.T, s schedule.Store, id string) []schedule.WorkerID {
	t.Helper()
	task, err := s.GetTask(context.Background(), schedule.TaskID(id))
	require.NoError(t, err)
	return task.Workers
}

func newTestMutator(s schedule.TxStore) (*schedule.Mutator, *test.Hook) {
	log, hook := test.NewNullLogger()
	return schedule.NewMutator(s, log), hook
}

func TestCommit_ConflictWithoutForce_WritesNothing(t *testing.T) {
	// GIVEN: Ana works 08:00-10:00
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana)
	m, _ := newTestMutator(s)

	// WHEN: Creating an overlapping task without force
	q := schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 9, 0), End: at(10, 11, 0)}
	_, err := m.Commit(context.Background(), schedule.Override{}, createPlan("t2", q.WorkerIDs, q))

	// THEN: A ConflictError with the bundle, and no new task
	var conflict *schedule.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Occurrences, 1)
	assert.Equal(t, schedule.TaskID("t1"), conflict.Occurrences[0].Conflicts[ana].Tasks[0].ID)
	assert.True(t, schedule.IsConflict(err))

	_, err = s.GetTask(context.Background(), "t2")
	assert.ErrorIs(t, err, schedule.ErrTaskNotFound)
}

func TestCommit_ForceWithoutUnassign_LeavesAssignments(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana)
	m, hook := newTestMutator(s)

	q := schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 9, 0), End: at(10, 11, 0)}
	res, err := m.Commit(context.Background(), schedule.Override{Force: true}, createPlan("t2", q.WorkerIDs, q))
	require.NoError(t, err)

	assert.True(t, res.Forced)
	assert.Zero(t, res.Unassigned)
	assert.Len(t, res.Conflicts, 1)
	assert.Equal(t, []schedule.WorkerID{ana}, workersOf(t, s, "t1"))
	assert.Equal(t, []schedule.WorkerID{ana}, workersOf(t, s, "t2"))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, true, hook.LastEntry().Data["forced"])
}

func TestCommit_ForceAndUnassign_SeversOnlyConflicting(t *testing.T) {
	// GIVEN: Ana on t1 (conflicting, shared with Ben) and t3 (later, not conflicting)
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana, ben)
	addTask(t, s, "t3", at(10, 15, 0), at(10, 16, 0), ana)
	m, _ := newTestMutator(s)

	// WHEN: Force-creating t2 for Ana with unassign
	q := schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 9, 0), End: at(10, 11, 0)}
	res, err := m.Commit(context.Background(), schedule.Override{Force: true, Unassign: true}, createPlan("t2", q.WorkerIDs, q))
	require.NoError(t, err)

	// THEN: Ana leaves t1 only; Ben stays; t3 untouched
	assert.Equal(t, 1, res.Unassigned)
	assert.Equal(t, []schedule.WorkerID{ben}, workersOf(t, s, "t1"))
	assert.Equal(t, []schedule.WorkerID{ana}, workersOf(t, s, "t2"))
	assert.Equal(t, []schedule.WorkerID{ana}, workersOf(t, s, "t3"))
}

func TestCommit_Unassign_CountsPairsOnce(t *testing.T) {
	// GIVEN: One long task overlapping two occurrences of a batch
	s := newTestStore(t)
	addTask(t, s, "long", at(10, 0, 0), at(11, 23, 0), ana)
	m, hook := newTestMutator(s)

	q1 := schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 9, 0), End: at(10, 10, 0)}
	q2 := schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(11, 9, 0), End: at(11, 10, 0)}

	res, err := m.Commit(context.Background(), schedule.Override{Force: true, Unassign: true},
		createPlan("o1", q1.WorkerIDs, q1), createPlan("o2", q2.WorkerIDs, q2))
	require.NoError(t, err)

	// THEN: Both occurrences reported, one association severed
	assert.Len(t, res.Conflicts, 2)
	assert.Equal(t, 1, res.Unassigned)
	assert.Empty(t, workersOf(t, s, "long"))

	// and the operator is warned about the empty task
	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["task_id"] == schedule.TaskID("long") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestCommit_UnassignWithoutForce_Rejected(t *testing.T) {
	s := newTestStore(t)
	m, _ := newTestMutator(s)

	_, err := m.Commit(context.Background(), schedule.Override{Unassign: true})

	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unassign", verr.Field)
}

func TestCommit_FailedWrite_RollsBackEverything(t *testing.T) {
	// GIVEN: A forced, unassigning batch whose second write fails
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana)
	m, _ := newTestMutator(s)

	boom := errors.New("disk full")
	q := schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 9, 0), End: at(10, 11, 0)}
	failing := schedule.Plan{Apply: func(context.Context, schedule.Store) error { return boom }}

	// WHEN: Committing
	_, err := m.Commit(context.Background(), schedule.Override{Force: true, Unassign: true}, createPlan("t2", q.WorkerIDs, q), failing)

	// THEN: Neither the new task nor the unassignment survived
	assert.ErrorIs(t, err, boom)
	_, err = s.GetTask(context.Background(), "t2")
	assert.ErrorIs(t, err, schedule.ErrTaskNotFound)
	assert.Equal(t, []schedule.WorkerID{ana}, workersOf(t, s, "t1"))
}

func TestCommit_FailedCommit_KeepsAssociations(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana)
	s.FailCommit = errors.New("database is locked")
	m, _ := newTestMutator(s)

	q := schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 9, 0), End: at(10, 11, 0)}
	_, err := m.Commit(context.Background(), schedule.Override{Force: true, Unassign: true}, createPlan("t2", q.WorkerIDs, q))

	require.Error(t, err)
	assert.Equal(t, []schedule.WorkerID{ana}, workersOf(t, s, "t1"))
}

func TestCommit_GuardRunsBeforeDetection(t *testing.T) {
	s := newTestStore(t)
	addTask(t, s, "t1", at(10, 8, 0), at(10, 10, 0), ana)
	m, _ := newTestMutator(s)

	refused := errors.New("refused")
	q := schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 9, 0), End: at(10, 11, 0)}
	plan := createPlan("t2", q.WorkerIDs, q)
	plan.Guard = func(context.Context, schedule.Store) error { return refused }

	_, err := m.Commit(context.Background(), schedule.Override{}, plan)

	// the guard wins over the conflict
	assert.ErrorIs(t, err, refused)
	assert.False(t, schedule.IsConflict(err))
}

func TestCommit_NoConflicts_PlainWrite(t *testing.T) {
	s := newTestStore(t)
	m, hook := newTestMutator(s)

	q := schedule.Query{WorkerIDs: []schedule.WorkerID{ana}, Start: at(10, 9, 0), End: at(10, 11, 0)}
	res, err := m.Commit(context.Background(), schedule.Override{Force: true, Unassign: true}, createPlan("t2", q.WorkerIDs, q))
	require.NoError(t, err)

	assert.False(t, res.Forced)
	assert.Zero(t, res.Unassigned)
	assert.Empty(t, res.Conflicts)
	assert.Empty(t, hook.AllEntries())
}
