/*
handlers.go - HTTP API handlers for the shift engine

PURPOSE:
  Exposes the scheduling engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Conflicts:
    POST   /api/conflicts/check            Check a candidate interval

  Tasks:
    GET    /api/tasks?from=&to=&month=&worker_id=  List tasks in a window
    POST   /api/tasks                      Create task occurrence(s)
    GET    /api/tasks/{id}                 Get task
    PUT    /api/tasks/{id}                 Edit task

  Leaves:
    GET    /api/leaves?status=&worker_id=  List leave requests
    POST   /api/leaves                     Create leave request
    POST   /api/leaves/{id}/review         Approve or reject
    DELETE /api/leaves/{id}                Delete leave request

  Roster (read-only):
    GET    /api/workers                    List workers
    GET    /api/workers/{id}/calendar.ics  Worker calendar feed
    GET    /api/task-types                 List task types

  Reports:
    GET    /api/workload?month=YYYY-MM     Hours and leave per worker
    GET    /api/audit/runs                 Recent audit runs
    POST   /api/audit/run                  Run the audit now

  Scenarios:
    GET    /api/scenarios                  List demo scenarios
    GET    /api/scenarios/current          Loaded scenario
    POST   /api/scenarios/load             Reset and load a scenario

REQUEST FLOW:
  1. factory parses and validates the body into a typed command
  2. tasks / leave services run it through the Mutator
  3. Result is shaped by dto.go

ERROR HANDLING:
  Errors are returned as JSON {"error", "code", "field"?, "details"?}:
  - 400 validation_error:   malformed input (field set)
  - 404 not_found:          referenced record does not exist
  - 409 schedule_conflict:  overridable; carries the conflict payload
  - 409 invalid_transition: leave already decided
  - 422 leave_overlap:      never overridable; carries the blocking leaves
  - 500 internal:           store or transaction failure

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Response data structures
  - factory/commands.go: Request schemas
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/leave"
	"github.com/warp/shift-engine/notify"
	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/store/sqlite"
	"github.com/warp/shift-engine/tasks"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options tune the services behind the handler.
type Options struct {
	MaxOccurrences   int
	AuditHorizonDays int
	Notifier         notify.Notifier
	Log              logrus.FieldLogger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Detector *schedule.Detector
	Tasks    *tasks.Service
	Leaves   *leave.Service
	Audit    *AuditScheduler
	Now      schedule.NowFunc
	Log      logrus.FieldLogger

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler wires every service over store.
func NewHandler(store *sqlite.Store, opts Options) *Handler {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store:    store,
		Detector: schedule.NewDetector(store),
		Tasks:    tasks.NewService(store, opts.MaxOccurrences, log),
		Leaves:   leave.NewService(store, log),
		Audit:    NewAuditScheduler(store, opts.Notifier, opts.AuditHorizonDays, log),
		Now:      time.Now,
		Log:      log,
	}
}

// =============================================================================
// CONFLICT CHECK
// =============================================================================

// CheckConflicts reports conflicts for a candidate interval. Read-only.
// POST /api/conflicts/check
func (h *Handler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	q, err := factory.ParseCheckConflicts(r.Body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	found, err := h.Detector.Check(r.Context(), q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CheckConflictsResponse{
		HasConflicts: len(found) > 0,
		Conflicts:    toConflictMapDTO(found),
	})
}

// =============================================================================
// TASK HANDLERS
// =============================================================================

// ListTasks returns tasks overlapping a window, the current month by default.
// GET /api/tasks?from=&to=&month=&worker_id=
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	window, err := h.queryWindow(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	filter := schedule.TaskFilter{Window: &window}
	if id := r.URL.Query().Get("worker_id"); id != "" {
		filter.WorkerIDs = []schedule.WorkerID{schedule.WorkerID(id)}
	}
	list, err := h.Store.ListTasks(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskDTOs(list))
}

// GetTask returns a single task.
// GET /api/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTask(r.Context(), schedule.TaskID(chi.URLParam(r, "id")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskDTO(*t))
}

// CreateTasks creates one occurrence or a recurring series.
// POST /api/tasks
func (h *Handler) CreateTasks(w http.ResponseWriter, r *http.Request) {
	cmd, err := factory.ParseCreateTask(r.Body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out, err := h.Tasks.Create(r.Context(), cmd)
	if err != nil {
		var conflict *schedule.ConflictError
		if errors.As(err, &conflict) {
			writeConflict(w, toOccurrenceDTOs(conflict.Occurrences))
			return
		}
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, TaskWriteResponse{
		Tasks:      toTaskDTOs(out.Tasks),
		Forced:     out.Forced,
		Unassigned: out.Unassigned,
		Truncated:  out.Truncated,
		Conflicts:  toOccurrenceDTOs(out.Conflicts),
	})
}

// EditTask updates a task and re-checks its conflicts.
// PUT /api/tasks/{id}
func (h *Handler) EditTask(w http.ResponseWriter, r *http.Request) {
	cmd, err := factory.ParseEditTask(chi.URLParam(r, "id"), r.Body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out, err := h.Tasks.Edit(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TaskWriteResponse{
		Tasks:      toTaskDTOs(out.Tasks),
		Forced:     out.Forced,
		Unassigned: out.Unassigned,
		Conflicts:  toOccurrenceDTOs(out.Conflicts),
	})
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ListLeaves returns leave requests, optionally filtered.
// GET /api/leaves?status=&worker_id=
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	var filter schedule.LeaveFilter
	if s := r.URL.Query().Get("status"); s != "" {
		status := schedule.LeaveStatus(s)
		if !status.Valid() {
			h.respondError(w, r, schedule.Invalid("status", "must be pending, approved or rejected"))
			return
		}
		filter.Statuses = []schedule.LeaveStatus{status}
	}
	if id := r.URL.Query().Get("worker_id"); id != "" {
		filter.WorkerIDs = []schedule.WorkerID{schedule.WorkerID(id)}
	}

	list, err := h.Store.ListLeaves(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	dtos := make([]LeaveDTO, len(list))
	for i, l := range list {
		dtos[i] = toLeaveDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLeave records a leave request.
// POST /api/leaves
func (h *Handler) CreateLeave(w http.ResponseWriter, r *http.Request) {
	cmd, err := factory.ParseCreateLeave(r.Body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out, err := h.Leaves.Create(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLeaveWriteResponse(out))
}

// ReviewLeave approves or rejects a pending request.
// POST /api/leaves/{id}/review
func (h *Handler) ReviewLeave(w http.ResponseWriter, r *http.Request) {
	cmd, err := factory.ParseReviewLeave(chi.URLParam(r, "id"), r.Body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out, err := h.Leaves.Review(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toLeaveWriteResponse(out))
}

// DeleteLeave removes a request in any status.
// DELETE /api/leaves/{id}
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	if err := h.Leaves.Delete(r.Context(), schedule.LeaveID(chi.URLParam(r, "id"))); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toLeaveWriteResponse(out *leave.Outcome) LeaveWriteResponse {
	return LeaveWriteResponse{
		Leave:      toLeaveDTO(*out.Leave),
		Forced:     out.Forced,
		Unassigned: out.Unassigned,
		Conflicts:  toOccurrenceDTOs(out.Conflicts),
	}
}

// =============================================================================
// ROSTER HANDLERS
// =============================================================================

// ListWorkers returns the roster.
// GET /api/workers
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = WorkerDTO{ID: string(wk.ID), Name: wk.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListTaskTypes returns task types with their qualification lists.
// GET /api/task-types
func (h *Handler) ListTaskTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Store.ListTaskTypes(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	dtos := make([]TaskTypeDTO, len(types))
	for i, tt := range types {
		qualified := make([]string, len(tt.Qualified))
		for j, q := range tt.Qualified {
			qualified[j] = string(q)
		}
		dtos[i] = TaskTypeDTO{ID: string(tt.ID), Name: tt.Name, Color: tt.Color, Qualified: qualified}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// WorkerCalendar serves the worker's month as an iCalendar feed.
// GET /api/workers/{id}/calendar.ics?month=YYYY-MM
func (h *Handler) WorkerCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	worker, err := h.Store.GetWorker(ctx, schedule.WorkerID(chi.URLParam(r, "id")))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	window, err := schedule.MonthWindow(r.URL.Query().Get("month"), h.Now())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	cal, err := workerCalendar(ctx, h.Store, *worker, window, h.Now())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(cal.Serialize()))
}

// =============================================================================
// REPORTS
// =============================================================================

// GetWorkload returns hours and leave days per worker for a month.
// GET /api/workload?month=YYYY-MM
func (h *Handler) GetWorkload(w http.ResponseWriter, r *http.Request) {
	window, err := schedule.MonthWindow(r.URL.Query().Get("month"), h.Now())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	report, err := schedule.ComputeWorkload(r.Context(), h.Store, window)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	dto := WorkloadDTO{
		Month:   window.Start.Format(schedule.MonthLayout),
		From:    dateString(window.Start),
		To:      dateString(window.End),
		Workers: make([]WorkerLoadDTO, len(report.Workers)),
	}
	for i, wl := range report.Workers {
		dto.Workers[i] = WorkerLoadDTO{
			WorkerID:   string(wl.WorkerID),
			WorkerName: wl.WorkerName,
			Tasks:      wl.Tasks,
			Hours:      wl.Hours,
			LeaveDays:  wl.LeaveDays,
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListAuditRuns returns recent audit runs, newest first.
// GET /api/audit/runs?limit=20
func (h *Handler) ListAuditRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.respondError(w, r, schedule.Invalid("limit", "must be a positive integer"))
			return
		}
		limit = n
	}

	runs, err := h.Store.ListAuditRuns(r.Context(), limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	dtos := make([]AuditRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toAuditRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunAudit runs the schedule audit immediately and returns its findings.
// POST /api/audit/run
func (h *Handler) RunAudit(w http.ResponseWriter, r *http.Request) {
	run, findings, err := h.Audit.RunOnce(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	dto := toAuditRunDTO(*run)
	dto.Details = toFindingDTOs(findings)
	writeJSON(w, http.StatusOK, dto)
}

// Health reports whether the database answers.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "Database unreachable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// queryWindow reads from/to (instants or dates) or month from the query
// string. Bare dates in "to" cover the whole day.
func (h *Handler) queryWindow(r *http.Request) (schedule.Interval, error) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" && to == "" {
		return schedule.MonthWindow(q.Get("month"), h.Now())
	}
	if from == "" || to == "" {
		return schedule.Interval{}, schedule.Invalid("from", "from and to must be given together")
	}
	start, err := schedule.ParseInstant(from)
	if err != nil {
		return schedule.Interval{}, schedule.Invalid("from", "must be an ISO-8601 instant or date")
	}
	end, err := schedule.ParseInstant(to)
	if err != nil {
		return schedule.Interval{}, schedule.Invalid("to", "must be an ISO-8601 instant or date")
	}
	if _, err := schedule.ParseDate(to); err == nil {
		end = schedule.EndOfDay(end)
	}
	window := schedule.Interval{Start: start, End: end}
	if !window.Valid() {
		return schedule.Interval{}, schedule.Invalid("to", "must not be before from")
	}
	return window, nil
}

// respondError maps engine errors to HTTP responses.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *schedule.ValidationError
		conflict   *schedule.ConflictError
		overlap    *leave.OverlapError
		transition *leave.TransitionError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: validation.Error(),
			Code:  "validation_error",
			Field: validation.Field,
		})
	case schedule.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.As(err, &conflict):
		writeConflict(w, toConflictMapDTO(conflict.Merged()))
	case errors.As(err, &overlap):
		existing := make([]ConflictLeaveDTO, len(overlap.Existing))
		for i, l := range overlap.Existing {
			existing[i] = toConflictLeaveDTO(l)
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:       overlap.Error(),
			Code:        "leave_overlap",
			Overridable: boolPtr(false),
			Existing:    existing,
		})
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "invalid_transition", transition.Error(), nil)
	default:
		h.Log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "Internal error", err)
	}
}

func writeConflict(w http.ResponseWriter, conflicts any) {
	writeJSON(w, http.StatusConflict, ErrorResponse{
		Error:       "Scheduling conflict; resubmit with force to proceed",
		Code:        "schedule_conflict",
		Overridable: boolPtr(true),
		Conflicts:   conflicts,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func boolPtr(b bool) *bool { return &b }
