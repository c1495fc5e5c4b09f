package tasks_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/schedule/store"
	"github.com/warp/shift-engine/tasks"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	nora = schedule.WorkerID("w-nora")
	omar = schedule.WorkerID("w-omar")
	pia  = schedule.WorkerID("w-pia")
)

func newTestService(t *testing.T) (*tasks.Service, *store.TxMemory) {
	t.Helper()
	s := store.NewTxMemory()
	s.PutWorker(schedule.Worker{ID: nora, Name: "Nora"})
	s.PutWorker(schedule.Worker{ID: omar, Name: "Omar"})
	s.PutWorker(schedule.Worker{ID: pia, Name: "Pia"})
	s.PutTaskType(schedule.TaskType{ID: "tt-ward", Name: "Ward round", Color: "#aa0000", Qualified: []schedule.WorkerID{nora, omar}})

	log, _ := test.NewNullLogger()
	svc := tasks.NewService(s, 0, log)
	svc.Now = func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) }
	return svc, s
}

func day(d int) time.Time { return time.Date(2024, time.June, d, 0, 0, 0, 0, time.UTC) }

func at(d, h, m int) time.Time { return time.Date(2024, time.June, d, h, m, 0, 0, time.UTC) }

func clock(h, m int) schedule.Clock { return schedule.Clock{Hour: h, Minute: m} }

func baseCommand() tasks.CreateCommand {
	return tasks.CreateCommand{
		Name:      "Morning round",
		TypeID:    "tt-ward",
		Date:      day(10),
		StartTime: clock(8, 0),
		EndTime:   clock(10, 0),
		WorkerIDs: []schedule.WorkerID{nora},
	}
}

func allTasks(t *testing.T, s schedule.Store) []schedule.Task {
	t.Helper()
	list, err := s.ListTasks(context.Background(), schedule.TaskFilter{})
	require.NoError(t, err)
	return list
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_SingleOccurrence(t *testing.T) {
	svc, s := newTestService(t)

	out, err := svc.Create(context.Background(), baseCommand())
	require.NoError(t, err)

	require.Len(t, out.Tasks, 1)
	task := out.Tasks[0]
	assert.Equal(t, at(10, 8, 0), task.Start)
	assert.Equal(t, at(10, 10, 0), task.End)
	assert.Equal(t, "Ward round", task.TypeName)
	assert.Empty(t, task.SeriesID)
	assert.Equal(t, []schedule.WorkerID{nora}, task.Workers)
	assert.Len(t, allTasks(t, s), 1)
}

func TestCreate_AllQualified(t *testing.T) {
	svc, _ := newTestService(t)
	cmd := baseCommand()
	cmd.WorkerIDs = nil
	cmd.AllQualified = true

	out, err := svc.Create(context.Background(), cmd)
	require.NoError(t, err)

	assert.ElementsMatch(t, []schedule.WorkerID{nora, omar}, out.Tasks[0].Workers)
}

func TestCreate_Recurring_SharesSeries(t *testing.T) {
	// GIVEN: Mon/Wed/Fri from Sunday June 9, count 6
	svc, s := newTestService(t)
	cmd := baseCommand()
	cmd.Date = day(9)
	cmd.Recurrence = &schedule.Recurrence{
		Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		Interval: 1,
		Count:    6,
	}

	// WHEN: Creating
	out, err := svc.Create(context.Background(), cmd)
	require.NoError(t, err)

	// THEN: Six tasks in one series
	require.Len(t, out.Tasks, 6)
	series := out.Tasks[0].SeriesID
	assert.NotEmpty(t, series)
	for _, task := range out.Tasks {
		assert.Equal(t, series, task.SeriesID)
	}
	assert.Equal(t, at(10, 8, 0), out.Tasks[0].Start)
	assert.Equal(t, at(21, 8, 0), out.Tasks[5].Start)
	assert.Len(t, allTasks(t, s), 6)
}

func TestCreate_Recurring_ConflictReportsOnlyBadDates_AndWritesNothing(t *testing.T) {
	// GIVEN: Nora already works on Wednesday June 12
	svc, s := newTestService(t)
	require.NoError(t, s.CreateTask(context.Background(), schedule.Task{
		ID: "existing", Name: "Clinic", TypeID: "tt-ward", Start: at(12, 9, 0), End: at(12, 11, 0), Workers: []schedule.WorkerID{nora},
	}))
	cmd := baseCommand()
	cmd.Recurrence = &schedule.Recurrence{
		Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		Interval: 1,
		Count:    3,
	}

	// WHEN: Creating without force
	_, err := svc.Create(context.Background(), cmd)

	// THEN: One problematic occurrence, and the batch is not written at all
	var conflict *schedule.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Occurrences, 1)
	assert.Equal(t, day(12), conflict.Occurrences[0].Occurrence.Date())
	assert.Len(t, allTasks(t, s), 1)
}

func TestCreate_Recurring_ForceUnassign(t *testing.T) {
	svc, s := newTestService(t)
	require.NoError(t, s.CreateTask(context.Background(), schedule.Task{
		ID: "existing", Name: "Clinic", TypeID: "tt-ward", Start: at(12, 9, 0), End: at(12, 11, 0), Workers: []schedule.WorkerID{nora, omar},
	}))
	cmd := baseCommand()
	cmd.Recurrence = &schedule.Recurrence{Weekdays: []time.Weekday{time.Wednesday}, Interval: 1, Count: 2}
	cmd.Override = schedule.Override{Force: true, Unassign: true}

	out, err := svc.Create(context.Background(), cmd)
	require.NoError(t, err)

	assert.Len(t, out.Tasks, 2)
	assert.True(t, out.Forced)
	assert.Equal(t, 1, out.Unassigned)
	existing, err := s.GetTask(context.Background(), "existing")
	require.NoError(t, err)
	assert.Equal(t, []schedule.WorkerID{omar}, existing.Workers)
}

func TestCreate_Truncated(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Expander.MaxOccurrences = 4
	cmd := baseCommand()
	cmd.Recurrence = &schedule.Recurrence{Weekdays: []time.Weekday{1, 2, 3, 4, 5}, Interval: 1, Until: day(30)}

	out, err := svc.Create(context.Background(), cmd)
	require.NoError(t, err)

	assert.Len(t, out.Tasks, 4)
	assert.True(t, out.Truncated)
}

func TestCreate_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("missing type", func(t *testing.T) {
		cmd := baseCommand()
		cmd.TypeID = "tt-nope"
		_, err := svc.Create(ctx, cmd)
		assert.ErrorIs(t, err, schedule.ErrTaskTypeNotFound)
	})

	t.Run("unknown worker", func(t *testing.T) {
		cmd := baseCommand()
		cmd.WorkerIDs = []schedule.WorkerID{"w-ghost"}
		_, err := svc.Create(ctx, cmd)
		assert.ErrorIs(t, err, schedule.ErrWorkerNotFound)
	})

	t.Run("empty weekday set", func(t *testing.T) {
		cmd := baseCommand()
		cmd.Recurrence = &schedule.Recurrence{Interval: 1, Count: 3}
		_, err := svc.Create(ctx, cmd)
		var verr *schedule.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "recurrence.weekdays", verr.Field)
	})

	t.Run("end before start", func(t *testing.T) {
		cmd := baseCommand()
		cmd.EndTime = clock(7, 0)
		_, err := svc.Create(ctx, cmd)
		var verr *schedule.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "end_time", verr.Field)
	})

	t.Run("no workers", func(t *testing.T) {
		cmd := baseCommand()
		cmd.WorkerIDs = nil
		_, err := svc.Create(ctx, cmd)
		assert.ErrorIs(t, err, schedule.ErrValidation)
	})

	t.Run("until before base", func(t *testing.T) {
		cmd := baseCommand()
		cmd.Recurrence = &schedule.Recurrence{Weekdays: []time.Weekday{1}, Interval: 1, Until: day(1)}
		_, err := svc.Create(ctx, cmd)
		var verr *schedule.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "recurrence", verr.Field)
	})
}

// =============================================================================
// EDIT
// =============================================================================

func TestEdit_ExcludesItself(t *testing.T) {
	// GIVEN: An existing task
	svc, _ := newTestService(t)
	out, err := svc.Create(context.Background(), baseCommand())
	require.NoError(t, err)
	id := out.Tasks[0].ID

	// WHEN: Extending it by an hour (overlaps its own old interval)
	edited, err := svc.Edit(context.Background(), tasks.EditCommand{ID: id, End: at(10, 11, 0)})

	// THEN: No self-conflict
	require.NoError(t, err)
	assert.Equal(t, at(10, 11, 0), edited.Tasks[0].End)
	assert.Equal(t, "Morning round", edited.Tasks[0].Name)
}

func TestEdit_ConflictWithOtherTask(t *testing.T) {
	svc, s := newTestService(t)
	first, err := svc.Create(context.Background(), baseCommand())
	require.NoError(t, err)
	other := baseCommand()
	other.StartTime, other.EndTime = clock(12, 0), clock(14, 0)
	second, err := svc.Create(context.Background(), other)
	require.NoError(t, err)

	// Moving the second onto the first
	_, err = svc.Edit(context.Background(), tasks.EditCommand{ID: second.Tasks[0].ID, Start: at(10, 9, 0), End: at(10, 11, 0)})

	var conflict *schedule.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.Tasks[0].ID, conflict.Merged()[nora].Tasks[0].ID)

	unchanged, err := s.GetTask(context.Background(), second.Tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, at(10, 12, 0), unchanged.Start)
}

func TestEdit_ReassignWorkers(t *testing.T) {
	svc, _ := newTestService(t)
	out, err := svc.Create(context.Background(), baseCommand())
	require.NoError(t, err)
	note := "bring keys"

	edited, err := svc.Edit(context.Background(), tasks.EditCommand{
		ID: out.Tasks[0].ID, WorkerIDs: []schedule.WorkerID{pia, pia, omar}, Observation: &note,
	})
	require.NoError(t, err)

	assert.Equal(t, []schedule.WorkerID{pia, omar}, edited.Tasks[0].Workers)
	assert.Equal(t, "bring keys", edited.Tasks[0].Observation)
}

func TestEdit_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Edit(context.Background(), tasks.EditCommand{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, schedule.ErrTaskNotFound)
}

func TestEdit_InvalidInterval(t *testing.T) {
	svc, _ := newTestService(t)
	out, err := svc.Create(context.Background(), baseCommand())
	require.NoError(t, err)

	_, err = svc.Edit(context.Background(), tasks.EditCommand{ID: out.Tasks[0].ID, End: at(10, 7, 0)})
	assert.ErrorIs(t, err, schedule.ErrValidation)
}
