package schedule

import (
	"fmt"
	"time"
)

// =============================================================================
// CALENDAR REFERENCE
// =============================================================================

// All day boundaries are computed in UTC. Instants arriving in another zone
// are converted first, so the same instant always lands on the same day.

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
	ClockLayout = "15:04"

	// lastMilli is the offset from 00:00:00.000 to 23:59:59.999.
	lastMilli = 24*time.Hour - time.Millisecond
)

// =============================================================================
// INTERVAL - Closed [Start, End] span
// =============================================================================

// Interval is a closed time span. Both endpoints belong to the interval, so
// two intervals that merely touch overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps applies the closed-interval rule: a.Start <= b.End && a.End >= b.Start.
func (iv Interval) Overlaps(other Interval) bool {
	return !iv.Start.After(other.End) && !iv.End.Before(other.Start)
}

// Contains reports whether t lies within [Start, End].
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && !t.After(iv.End)
}

// Valid reports whether End is strictly after Start and neither is zero.
func (iv Interval) Valid() bool {
	return !iv.Start.IsZero() && !iv.End.IsZero() && iv.End.After(iv.Start)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Days widens the interval to whole days: the start of Start's day through
// the end of End's day.
func (iv Interval) Days() Interval {
	return SpanDays(iv.Start, iv.End)
}

func (iv Interval) String() string {
	return "[" + iv.Start.Format(time.RFC3339) + ", " + iv.End.Format(time.RFC3339) + "]"
}

// =============================================================================
// DAY AND MONTH WINDOWS
// =============================================================================

// StartOfDay returns 00:00:00.000 UTC of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns 23:59:59.999 UTC of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(lastMilli)
}

// DayWindow floors and ceils an instant to its UTC calendar day.
func DayWindow(t time.Time) Interval {
	return Interval{Start: StartOfDay(t), End: EndOfDay(t)}
}

// SpanDays returns the day window running from the start of from's day to
// the end of to's day.
func SpanDays(from, to time.Time) Interval {
	return Interval{Start: StartOfDay(from), End: EndOfDay(to)}
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// MonthWindow returns the first and last instants of the month named by
// month ("YYYY-MM"). An empty month means the month containing now.
func MonthWindow(month string, now time.Time) (Interval, error) {
	var first time.Time
	if month == "" {
		u := now.UTC()
		first = time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
	} else {
		t, err := time.Parse(MonthLayout, month)
		if err != nil {
			return Interval{}, &ValidationError{Field: "month", Message: "must be YYYY-MM"}
		}
		first = t
	}
	last := first.AddDate(0, 1, 0).Add(-time.Millisecond)
	return Interval{Start: first, End: last}, nil
}

// =============================================================================
// PARSING
// =============================================================================

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// ParseInstant parses an ISO-8601 instant (RFC 3339, fractional seconds
// allowed) or a bare calendar date, returning it in UTC.
func ParseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 instant: %q", s)
}

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:mm".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return Clock{}, fmt.Errorf("not an HH:mm clock time: %q", s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On returns the instant at this clock time on date's UTC calendar day.
func (c Clock) On(date time.Time) time.Time {
	return StartOfDay(date).Add(time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute)
}

// Before reports whether c is earlier in the day than other.
func (c Clock) Before(other Clock) bool {
	return c.minutes() < other.minutes()
}

func (c Clock) minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
