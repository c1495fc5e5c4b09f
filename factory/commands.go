/*
Package factory converts JSON request bodies into typed engine commands.

PURPOSE:
  Every operation has exactly one request schema. The factory decodes it
  strictly (unknown fields are rejected), parses dates and clock times,
  and returns a fully typed command. The engine never sees raw JSON.

SCHEMAS:
  Check conflicts:
    {"worker_ids": ["w-1"], "start": "2024-06-10T08:00:00Z",
     "end": "2024-06-10T10:00:00Z", "exclude_id": "task-9"}

  Create task:
    {"name": "Morning round", "type_id": "tt-ward", "date": "2024-06-10",
     "start_time": "08:00", "end_time": "10:00", "worker_ids": ["w-1"],
     "all_qualified": false, "observation": "",
     "recurrence": {"weekdays": [1,3,5], "interval": 1,
                    "until": "2024-07-31", "count": 0},
     "force": false, "unassign": false}

  Edit task:
    {"name": "...", "type_id": "...", "start": "...", "end": "...",
     "observation": "...", "worker_ids": [...], "force": false, "unassign": false}

  Create leave:
    {"worker_id": "w-1", "type": "vacation", "start_date": "2024-06-10",
     "end_date": "2024-06-14", "reason": "", "status": "pending",
     "reviewed_by": "", "force": false, "unassign": false}

  Review leave:
    {"decision": "approve", "reviewed_by": "manager", "note": "",
     "force": false, "unassign": false}

  Load scenario:
    {"scenario_id": "clinic-week"}

FORMATS:
  Instants are ISO-8601 (RFC 3339, converted to UTC). Dates are YYYY-MM-DD.
  Clock times are HH:mm. Weekdays are 0=Sunday .. 6=Saturday.

SEE ALSO:
  - api/handlers.go: the only caller
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/warp/shift-engine/leave"
	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/tasks"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CheckConflictsJSON is the conflict check request.
type CheckConflictsJSON struct {
	WorkerIDs []string `json:"worker_ids"`
	Start     string   `json:"start"`
	End       string   `json:"end"`
	ExcludeID string   `json:"exclude_id,omitempty"`
}

// RecurrenceJSON is a weekly recurrence.
type RecurrenceJSON struct {
	Weekdays []int  `json:"weekdays"`
	Interval int    `json:"interval,omitempty"` // weeks, default 1
	Until    string `json:"until,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// OverrideJSON carries the confirmation flags shared by write requests.
type OverrideJSON struct {
	Force    bool `json:"force,omitempty"`
	Unassign bool `json:"unassign,omitempty"`
}

// CreateTaskJSON is the task creation request.
type CreateTaskJSON struct {
	Name         string          `json:"name"`
	TypeID       string          `json:"type_id"`
	Date         string          `json:"date"`
	StartTime    string          `json:"start_time"`
	EndTime      string          `json:"end_time"`
	Observation  string          `json:"observation,omitempty"`
	WorkerIDs    []string        `json:"worker_ids,omitempty"`
	AllQualified bool            `json:"all_qualified,omitempty"`
	Recurrence   *RecurrenceJSON `json:"recurrence,omitempty"`
	OverrideJSON
}

// EditTaskJSON is the task edit request. Absent fields keep their value.
type EditTaskJSON struct {
	Name        string   `json:"name,omitempty"`
	TypeID      string   `json:"type_id,omitempty"`
	Start       string   `json:"start,omitempty"`
	End         string   `json:"end,omitempty"`
	Observation *string  `json:"observation,omitempty"`
	WorkerIDs   []string `json:"worker_ids,omitempty"`
	OverrideJSON
}

// CreateLeaveJSON is the leave creation request.
type CreateLeaveJSON struct {
	WorkerID   string `json:"worker_id"`
	Type       string `json:"type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Reason     string `json:"reason,omitempty"`
	Status     string `json:"status,omitempty"`
	ReviewedBy string `json:"reviewed_by,omitempty"`
	OverrideJSON
}

// ReviewLeaveJSON is the approve/reject request.
type ReviewLeaveJSON struct {
	Decision   string `json:"decision"`
	ReviewedBy string `json:"reviewed_by,omitempty"`
	Note       string `json:"note,omitempty"`
	OverrideJSON
}

// LoadScenarioJSON selects a demo scenario.
type LoadScenarioJSON struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// PARSERS
// =============================================================================

// ParseCheckConflicts decodes a conflict check request.
func ParseCheckConflicts(r io.Reader) (schedule.Query, error) {
	var in CheckConflictsJSON
	if err := decode(r, &in); err != nil {
		return schedule.Query{}, err
	}
	start, err := instant("start", in.Start)
	if err != nil {
		return schedule.Query{}, err
	}
	end, err := instant("end", in.End)
	if err != nil {
		return schedule.Query{}, err
	}
	q := schedule.Query{
		WorkerIDs:     workerIDs(in.WorkerIDs),
		Start:         start,
		End:           end,
		ExcludeTaskID: schedule.TaskID(in.ExcludeID),
	}
	return q, q.Validate()
}

// ParseCreateTask decodes a task creation request.
func ParseCreateTask(r io.Reader) (tasks.CreateCommand, error) {
	var in CreateTaskJSON
	if err := decode(r, &in); err != nil {
		return tasks.CreateCommand{}, err
	}
	date, err := calendarDate("date", in.Date)
	if err != nil {
		return tasks.CreateCommand{}, err
	}
	from, err := clockTime("start_time", in.StartTime)
	if err != nil {
		return tasks.CreateCommand{}, err
	}
	to, err := clockTime("end_time", in.EndTime)
	if err != nil {
		return tasks.CreateCommand{}, err
	}

	cmd := tasks.CreateCommand{
		Name:         in.Name,
		TypeID:       schedule.TaskTypeID(in.TypeID),
		Date:         date,
		StartTime:    from,
		EndTime:      to,
		Observation:  in.Observation,
		WorkerIDs:    workerIDs(in.WorkerIDs),
		AllQualified: in.AllQualified,
		Override:     in.override(),
	}
	if in.Recurrence != nil {
		rec, err := in.Recurrence.parse()
		if err != nil {
			return tasks.CreateCommand{}, err
		}
		cmd.Recurrence = &rec
	}
	return cmd, cmd.Validate()
}

// ParseEditTask decodes a task edit request for id.
func ParseEditTask(id string, r io.Reader) (tasks.EditCommand, error) {
	var in EditTaskJSON
	if err := decode(r, &in); err != nil {
		return tasks.EditCommand{}, err
	}
	cmd := tasks.EditCommand{
		ID:          schedule.TaskID(id),
		Name:        in.Name,
		TypeID:      schedule.TaskTypeID(in.TypeID),
		Observation: in.Observation,
		Override:    in.override(),
	}
	if in.WorkerIDs != nil {
		cmd.WorkerIDs = workerIDs(in.WorkerIDs)
	}
	var err error
	if in.Start != "" {
		if cmd.Start, err = instant("start", in.Start); err != nil {
			return tasks.EditCommand{}, err
		}
	}
	if in.End != "" {
		if cmd.End, err = instant("end", in.End); err != nil {
			return tasks.EditCommand{}, err
		}
	}
	return cmd, cmd.Override.Validate()
}

// ParseCreateLeave decodes a leave creation request.
func ParseCreateLeave(r io.Reader) (leave.CreateCommand, error) {
	var in CreateLeaveJSON
	if err := decode(r, &in); err != nil {
		return leave.CreateCommand{}, err
	}
	start, err := calendarDate("start_date", in.StartDate)
	if err != nil {
		return leave.CreateCommand{}, err
	}
	end, err := calendarDate("end_date", in.EndDate)
	if err != nil {
		return leave.CreateCommand{}, err
	}
	cmd := leave.CreateCommand{
		WorkerID:   schedule.WorkerID(in.WorkerID),
		Type:       schedule.LeaveType(in.Type),
		StartDate:  start,
		EndDate:    end,
		Reason:     in.Reason,
		Status:     schedule.LeaveStatus(in.Status),
		ReviewedBy: in.ReviewedBy,
		Override:   in.override(),
	}
	return cmd, cmd.Validate()
}

// ParseReviewLeave decodes an approve/reject request for id.
func ParseReviewLeave(id string, r io.Reader) (leave.ReviewCommand, error) {
	var in ReviewLeaveJSON
	if err := decode(r, &in); err != nil {
		return leave.ReviewCommand{}, err
	}
	cmd := leave.ReviewCommand{
		ID:         schedule.LeaveID(id),
		Decision:   leave.Decision(in.Decision),
		ReviewedBy: in.ReviewedBy,
		Note:       in.Note,
		Override:   in.override(),
	}
	return cmd, cmd.Validate()
}

// ParseLoadScenario decodes a scenario load request.
func ParseLoadScenario(r io.Reader) (string, error) {
	var in LoadScenarioJSON
	if err := decode(r, &in); err != nil {
		return "", err
	}
	if in.ScenarioID == "" {
		return "", schedule.Invalid("scenario_id", "is required")
	}
	return in.ScenarioID, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (o OverrideJSON) override() schedule.Override {
	return schedule.Override{Force: o.Force, Unassign: o.Unassign}
}

func (rj RecurrenceJSON) parse() (schedule.Recurrence, error) {
	rec := schedule.Recurrence{Interval: rj.Interval, Count: rj.Count}
	if rec.Interval == 0 {
		rec.Interval = 1
	}
	for _, d := range rj.Weekdays {
		rec.Weekdays = append(rec.Weekdays, time.Weekday(d))
	}
	if rj.Until != "" {
		until, err := calendarDate("recurrence.until", rj.Until)
		if err != nil {
			return schedule.Recurrence{}, err
		}
		rec.Until = until
	}
	return rec, nil
}

func decode(r io.Reader, v any) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return schedule.Invalid("body", "unreadable: %v", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return schedule.Invalid("body", "is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return schedule.Invalid(typeErr.Field, "must be a %s", typeErr.Type)
		}
		return schedule.Invalid("body", "%v", err)
	}
	return nil
}

func instant(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, schedule.Invalid(field, "is required")
	}
	t, err := schedule.ParseInstant(s)
	if err != nil {
		return time.Time{}, schedule.Invalid(field, "must be an ISO-8601 instant")
	}
	return t, nil
}

// calendarDate accepts YYYY-MM-DD or a full instant and keeps only the day.
func calendarDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, schedule.Invalid(field, "is required")
	}
	t, err := schedule.ParseInstant(s)
	if err != nil {
		return time.Time{}, schedule.Invalid(field, "must be a YYYY-MM-DD date")
	}
	return schedule.StartOfDay(t), nil
}

func clockTime(field, s string) (schedule.Clock, error) {
	if s == "" {
		return schedule.Clock{}, schedule.Invalid(field, "is required")
	}
	c, err := schedule.ParseClock(s)
	if err != nil {
		return schedule.Clock{}, schedule.Invalid(field, "must be HH:mm")
	}
	return c, nil
}

func workerIDs(in []string) []schedule.WorkerID {
	out := make([]schedule.WorkerID, 0, len(in))
	for _, id := range in {
		if id != "" {
			out = append(out, schedule.WorkerID(id))
		}
	}
	return out
}
