/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures returned to clients. Request bodies are
  owned by factory/commands.go; this file only shapes responses, so the
  engine types never leak field names onto the wire.

NAMING CONVENTION:
  - *DTO:      Response types returned to clients
  - *Response: Wrappers that combine a record with write outcome data

FORMATS:
  Instants are RFC 3339 in UTC. Leave dates are YYYY-MM-DD.

CONFLICT PAYLOAD:
  Keyed by worker id:
    {"w-1": {"worker_id": "w-1", "worker_name": "Ana",
             "tasks":  [{"id", "name", "type_name", "start", "end"}],
             "leaves": [{"id", "type", "start_date", "end_date"}]}}
  Task creation reports one entry per problematic occurrence:
    [{"date": "2024-06-10", "start": "...", "end": "...", "conflicts": {...}}]

SEE ALSO:
  - handlers.go: Uses these types
  - factory/commands.go: Request schemas
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/store/sqlite"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	Field       string `json:"field,omitempty"`
	Details     string `json:"details,omitempty"`
	Overridable *bool  `json:"overridable,omitempty"`

	// Conflicts is a ConflictMapDTO or []OccurrenceConflictDTO.
	Conflicts any `json:"conflicts,omitempty"`
	// Existing lists the leave requests blocking a new one.
	Existing []ConflictLeaveDTO `json:"existing,omitempty"`
}

// =============================================================================
// CONFLICTS
// =============================================================================

type ConflictTaskDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	TypeName string `json:"type_name"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

type ConflictLeaveDTO struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// BundleDTO is one worker's conflicts.
type BundleDTO struct {
	WorkerID   string             `json:"worker_id"`
	WorkerName string             `json:"worker_name,omitempty"`
	Tasks      []ConflictTaskDTO  `json:"tasks"`
	Leaves     []ConflictLeaveDTO `json:"leaves"`
}

// ConflictMapDTO maps worker id to bundle.
type ConflictMapDTO map[string]BundleDTO

// OccurrenceConflictDTO is the conflict set of one occurrence.
type OccurrenceConflictDTO struct {
	Date      string         `json:"date"`
	Start     string         `json:"start"`
	End       string         `json:"end"`
	Conflicts ConflictMapDTO `json:"conflicts"`
}

// CheckConflictsResponse answers POST /api/conflicts/check.
type CheckConflictsResponse struct {
	HasConflicts bool           `json:"has_conflicts"`
	Conflicts    ConflictMapDTO `json:"conflicts"`
}

// =============================================================================
// RECORDS
// =============================================================================

type WorkerDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TaskTypeDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Color     string   `json:"color,omitempty"`
	Qualified []string `json:"qualified"`
}

type TaskDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	TypeID      string   `json:"type_id"`
	TypeName    string   `json:"type_name"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Observation string   `json:"observation,omitempty"`
	SeriesID    string   `json:"series_id,omitempty"`
	WorkerIDs   []string `json:"worker_ids"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type LeaveDTO struct {
	ID         string  `json:"id"`
	WorkerID   string  `json:"worker_id"`
	Type       string  `json:"type"`
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	Days       int     `json:"days"`
	Reason     string  `json:"reason,omitempty"`
	Status     string  `json:"status"`
	ReviewedBy string  `json:"reviewed_by,omitempty"`
	ReviewedAt *string `json:"reviewed_at,omitempty"`
	ReviewNote string  `json:"review_note,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// TaskWriteResponse answers task create and edit.
type TaskWriteResponse struct {
	Tasks      []TaskDTO               `json:"tasks"`
	Forced     bool                    `json:"forced"`
	Unassigned int                     `json:"unassigned"`
	Truncated  bool                    `json:"truncated,omitempty"`
	Conflicts  []OccurrenceConflictDTO `json:"conflicts,omitempty"`
}

// LeaveWriteResponse answers leave create and review.
type LeaveWriteResponse struct {
	Leave      LeaveDTO                `json:"leave"`
	Forced     bool                    `json:"forced"`
	Unassigned int                     `json:"unassigned"`
	Conflicts  []OccurrenceConflictDTO `json:"conflicts,omitempty"`
}

type WorkerLoadDTO struct {
	WorkerID   string          `json:"worker_id"`
	WorkerName string          `json:"worker_name"`
	Tasks      int             `json:"tasks"`
	Hours      decimal.Decimal `json:"hours"`
	LeaveDays  int             `json:"leave_days"`
}

type WorkloadDTO struct {
	Month   string          `json:"month"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Workers []WorkerLoadDTO `json:"workers"`
}

type FindingDTO struct {
	Kind        string `json:"kind"`
	WorkerID    string `json:"worker_id,omitempty"`
	TaskID      string `json:"task_id"`
	OtherTaskID string `json:"other_task_id,omitempty"`
	LeaveID     string `json:"leave_id,omitempty"`
	At          string `json:"at"`
	Message     string `json:"message"`
}

type AuditRunDTO struct {
	ID          string       `json:"id"`
	WindowStart string       `json:"window_start"`
	WindowEnd   string       `json:"window_end"`
	Status      string       `json:"status"`
	Findings    int          `json:"findings"`
	Error       string       `json:"error,omitempty"`
	StartedAt   string       `json:"started_at"`
	CompletedAt *string      `json:"completed_at,omitempty"`
	Details     []FindingDTO `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func instantString(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func dateString(t time.Time) string { return t.UTC().Format(schedule.DateLayout) }

func optionalInstant(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := instantString(*t)
	return &s
}

func toConflictMapDTO(c schedule.Conflicts) ConflictMapDTO {
	out := make(ConflictMapDTO, len(c))
	for _, id := range c.WorkerIDs() {
		b := c[id]
		dto := BundleDTO{
			WorkerID:   string(b.WorkerID),
			WorkerName: b.WorkerName,
			Tasks:      make([]ConflictTaskDTO, len(b.Tasks)),
			Leaves:     make([]ConflictLeaveDTO, len(b.Leaves)),
		}
		for i, t := range b.Tasks {
			dto.Tasks[i] = ConflictTaskDTO{
				ID:       string(t.ID),
				Name:     t.Name,
				TypeName: t.TypeName,
				Start:    instantString(t.Start),
				End:      instantString(t.End),
			}
		}
		for i, l := range b.Leaves {
			dto.Leaves[i] = toConflictLeaveDTO(l)
		}
		out[string(id)] = dto
	}
	return out
}

func toConflictLeaveDTO(l schedule.LeaveSummary) ConflictLeaveDTO {
	return ConflictLeaveDTO{
		ID:        string(l.ID),
		Type:      string(l.Type),
		StartDate: dateString(l.StartDate),
		EndDate:   dateString(l.EndDate),
	}
}

func toOccurrenceDTOs(found []schedule.OccurrenceConflicts) []OccurrenceConflictDTO {
	if len(found) == 0 {
		return nil
	}
	out := make([]OccurrenceConflictDTO, len(found))
	for i, oc := range found {
		out[i] = OccurrenceConflictDTO{
			Date:      dateString(oc.Occurrence.Date()),
			Start:     instantString(oc.Occurrence.Start),
			End:       instantString(oc.Occurrence.End),
			Conflicts: toConflictMapDTO(oc.Conflicts),
		}
	}
	return out
}

func toTaskDTO(t schedule.Task) TaskDTO {
	workers := make([]string, len(t.Workers))
	for i, w := range t.Workers {
		workers[i] = string(w)
	}
	return TaskDTO{
		ID:          string(t.ID),
		Name:        t.Name,
		TypeID:      string(t.TypeID),
		TypeName:    t.TypeName,
		Start:       instantString(t.Start),
		End:         instantString(t.End),
		Observation: t.Observation,
		SeriesID:    string(t.SeriesID),
		WorkerIDs:   workers,
		CreatedAt:   instantString(t.CreatedAt),
		UpdatedAt:   instantString(t.UpdatedAt),
	}
}

func toTaskDTOs(tasks []schedule.Task) []TaskDTO {
	out := make([]TaskDTO, len(tasks))
	for i, t := range tasks {
		out[i] = toTaskDTO(t)
	}
	return out
}

func toLeaveDTO(l schedule.LeaveRequest) LeaveDTO {
	return LeaveDTO{
		ID:         string(l.ID),
		WorkerID:   string(l.WorkerID),
		Type:       string(l.Type),
		StartDate:  dateString(l.StartDate),
		EndDate:    dateString(l.EndDate),
		Days:       l.Days(),
		Reason:     l.Reason,
		Status:     string(l.Status),
		ReviewedBy: l.ReviewedBy,
		ReviewedAt: optionalInstant(l.ReviewedAt),
		ReviewNote: l.ReviewNote,
		CreatedAt:  instantString(l.CreatedAt),
	}
}

func toFindingDTOs(findings []schedule.Finding) []FindingDTO {
	out := make([]FindingDTO, len(findings))
	for i, f := range findings {
		out[i] = FindingDTO{
			Kind:        string(f.Kind),
			WorkerID:    string(f.WorkerID),
			TaskID:      string(f.TaskID),
			OtherTaskID: string(f.OtherTaskID),
			LeaveID:     string(f.LeaveID),
			At:          instantString(f.At),
			Message:     f.Message,
		}
	}
	return out
}

func toAuditRunDTO(r sqlite.AuditRun) AuditRunDTO {
	return AuditRunDTO{
		ID:          r.ID,
		WindowStart: instantString(r.WindowStart),
		WindowEnd:   instantString(r.WindowEnd),
		Status:      r.Status,
		Findings:    r.Findings,
		Error:       r.Error,
		StartedAt:   instantString(r.StartedAt),
		CompletedAt: optionalInstant(r.CompletedAt),
	}
}
