package schedule

import (
	"slices"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences caps a single expansion when no limit is configured.
const DefaultMaxOccurrences = 2000

// Occurrence is one concrete instance produced by expanding a recurrence.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Interval returns the occurrence's closed interval.
func (o Occurrence) Interval() Interval { return Interval{Start: o.Start, End: o.End} }

// Date returns the occurrence's calendar day.
func (o Occurrence) Date() time.Time { return StartOfDay(o.Start) }

// Recurrence describes a weekly repeating pattern.
//
// Weekdays use time.Weekday numbering (0=Sunday .. 6=Saturday). Cycles are
// Monday-anchored weeks: the first cycle is the Monday-to-Sunday week that
// contains the base date, then every Interval weeks after it. Occurrences
// earlier than the base date and start time are never produced, so a Sunday
// base date begins emitting in the following week.
type Recurrence struct {
	Weekdays []time.Weekday
	Interval int       // whole weeks, >= 1
	Until    time.Time // inclusive calendar date; zero means none
	Count    int       // maximum occurrences; 0 means none
}

// Validate checks the recurrence before expansion.
func (r Recurrence) Validate() error {
	if len(r.Weekdays) == 0 {
		return Invalid("recurrence.weekdays", "at least one weekday is required")
	}
	for _, wd := range r.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return Invalid("recurrence.weekdays", "weekday %d out of range 0..6", int(wd))
		}
	}
	if r.Interval < 1 {
		return Invalid("recurrence.interval", "must be at least 1 week")
	}
	if r.Count < 0 {
		return Invalid("recurrence.count", "must not be negative")
	}
	if r.Until.IsZero() && r.Count == 0 {
		return Invalid("recurrence", "an until date or a count is required")
	}
	return nil
}

// Expansion is the bounded, chronologically ordered result of Expand.
type Expansion struct {
	Occurrences []Occurrence
	// Truncated is set when the safety ceiling stopped the expansion before
	// the until date or count was reached.
	Truncated bool
}

// Expander turns recurrences into concrete occurrences.
type Expander struct {
	// MaxOccurrences is the safety ceiling. Zero uses DefaultMaxOccurrences.
	MaxOccurrences int
}

// Expand produces the occurrences of rec starting from base, each running
// from `from` to `to` on its day. An empty weekday set yields an empty
// result; callers validate with Recurrence.Validate first.
func (e Expander) Expand(base time.Time, from, to Clock, rec Recurrence) (Expansion, error) {
	if !from.Before(to) {
		return Expansion{}, Invalid("end_time", "must be after start_time")
	}
	if len(rec.Weekdays) == 0 {
		return Expansion{}, nil
	}
	if err := rec.Validate(); err != nil {
		return Expansion{}, err
	}

	limit := e.MaxOccurrences
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}

	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  rec.Interval,
		Wkst:      rrule.MO,
		Byweekday: toRRuleWeekdays(rec.Weekdays),
		Dtstart:   from.On(base),
		Count:     rec.Count,
	}
	if !rec.Until.IsZero() {
		opt.Until = EndOfDay(rec.Until)
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return Expansion{}, Invalid("recurrence", "%v", err)
	}

	length := to.On(base).Sub(from.On(base))
	var out Expansion
	next := rule.Iterator()
	for {
		start, ok := next()
		if !ok {
			break
		}
		if len(out.Occurrences) == limit {
			out.Truncated = true
			break
		}
		start = start.UTC()
		out.Occurrences = append(out.Occurrences, Occurrence{Start: start, End: start.Add(length)})
	}
	return out, nil
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

func toRRuleWeekdays(days []time.Weekday) []rrule.Weekday {
	uniq := slices.Clone(days)
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)

	out := make([]rrule.Weekday, 0, len(uniq))
	for _, d := range uniq {
		out = append(out, rruleWeekdays[d])
	}
	return out
}
