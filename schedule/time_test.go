package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/schedule"
)

func TestDayWindow_FloorsAndCeilsInUTC(t *testing.T) {
	// GIVEN: An instant late in the evening at UTC+02:00 (still the same UTC day)
	loc := time.FixedZone("CEST", 2*60*60)
	instant := time.Date(2024, time.June, 10, 23, 30, 0, 0, loc)

	// WHEN: Taking its day window
	w := schedule.DayWindow(instant)

	// THEN: Boundaries are 00:00:00.000 and 23:59:59.999 UTC of June 10
	assert.Equal(t, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, time.June, 10, 23, 59, 59, int(999*time.Millisecond), time.UTC), w.End)
}

func TestDayWindow_ConvertsBeforeFlooring(t *testing.T) {
	// 00:30 at UTC+02:00 is still the previous UTC day
	loc := time.FixedZone("CEST", 2*60*60)
	instant := time.Date(2024, time.June, 11, 0, 30, 0, 0, loc)

	w := schedule.DayWindow(instant)

	assert.Equal(t, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), w.Start)
}

func TestMonthWindow(t *testing.T) {
	now := time.Date(2024, time.February, 14, 12, 0, 0, 0, time.UTC)

	t.Run("explicit month", func(t *testing.T) {
		w, err := schedule.MonthWindow("2024-06", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), w.Start)
		assert.Equal(t, time.Date(2024, time.June, 30, 23, 59, 59, int(999*time.Millisecond), time.UTC), w.End)
	})

	t.Run("defaults to current month", func(t *testing.T) {
		w, err := schedule.MonthWindow("", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), w.Start)
		// leap year
		assert.Equal(t, 29, w.End.Day())
	})

	t.Run("malformed month", func(t *testing.T) {
		_, err := schedule.MonthWindow("June 2024", now)
		var verr *schedule.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "month", verr.Field)
	})
}

func TestInterval_Overlaps_ClosedRule(t *testing.T) {
	ten := time.Date(2024, time.June, 10, 10, 0, 0, 0, time.UTC)
	a := schedule.Interval{Start: ten.Add(-2 * time.Hour), End: ten}

	tests := []struct {
		name string
		b    schedule.Interval
		want bool
	}{
		{"touching end to start", schedule.Interval{Start: ten, End: ten.Add(time.Hour)}, true},
		{"touching start to end", schedule.Interval{Start: ten.Add(-3 * time.Hour), End: ten.Add(-2 * time.Hour)}, true},
		{"contained", schedule.Interval{Start: ten.Add(-time.Hour), End: ten.Add(-30 * time.Minute)}, true},
		{"one millisecond after", schedule.Interval{Start: ten.Add(time.Millisecond), End: ten.Add(time.Hour)}, false},
		{"entirely before", schedule.Interval{Start: ten.Add(-5 * time.Hour), End: ten.Add(-4 * time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(a), "overlap must be symmetric")
		})
	}
}

func TestSpanDays_And_DaysBetween(t *testing.T) {
	from := time.Date(2024, time.June, 10, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.June, 14, 1, 0, 0, 0, time.UTC)

	w := schedule.SpanDays(from, to)
	assert.Equal(t, schedule.StartOfDay(from), w.Start)
	assert.Equal(t, schedule.EndOfDay(to), w.End)
	assert.Equal(t, 4, schedule.DaysBetween(from, to))
}

func TestParseInstant(t *testing.T) {
	got, err := schedule.ParseInstant("2024-06-10T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	got, err = schedule.ParseInstant("2024-06-10T08:00:00.250Z")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, time.Duration(got.Nanosecond()))

	got, err = schedule.ParseInstant("2024-06-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC), got)

	_, err = schedule.ParseInstant("10/06/2024")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	c, err := schedule.ParseClock("07:45")
	require.NoError(t, err)
	assert.Equal(t, schedule.Clock{Hour: 7, Minute: 45}, c)
	assert.Equal(t, "07:45", c.String())

	day := time.Date(2024, time.June, 10, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.June, 10, 7, 45, 0, 0, time.UTC), c.On(day))

	_, err = schedule.ParseClock("25:00")
	assert.Error(t, err)
	_, err = schedule.ParseClock("7h45")
	assert.Error(t, err)
}
