/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with a realistic
	roster and schedule. Every write goes through the task and leave
	services, so scenarios exercise the same conflict rules as the API.

AVAILABLE SCENARIOS:

	clinic-week:    Recurring ward rounds and a front desk rota for two weeks
	leave-season:   Pending and approved leave across the team
	double-booked:  Forced writes that leave findings for the schedule audit

HOW SCENARIOS WORK:
 1. Reset the schedule (tasks, leave, audit runs; the roster stays)
 2. Upsert the demo roster
 3. Create tasks and leave relative to the Monday after "now"

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "clinic-week"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, monday)
 3. Add case to loadScenario

NOTE:

	Scenarios reset the schedule. Only use in development/demo environments.

SEE ALSO:
  - store/sqlite/roster.go: Roster YAML format
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/shift-engine/factory"
	"github.com/warp/shift-engine/leave"
	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/store/sqlite"
	"github.com/warp/shift-engine/tasks"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "clinic-week",
		Name:        "Clinic Week",
		Description: "Recurring ward rounds (Mon/Wed/Fri) and a daily front desk rota",
	},
	{
		ID:          "leave-season",
		Name:        "Leave Season",
		Description: "Pending and approved leave, one request waiting on a conflicting shift",
	},
	{
		ID:          "double-booked",
		Name:        "Double Booked",
		Description: "Forced writes: a double booking and a shift during approved leave",
	},
}

const demoRoster = `
workers:
  - id: w-ana
    name: Ana Ruiz
  - id: w-ben
    name: Ben Okafor
  - id: w-cai
    name: Cai Lin
  - id: w-dev
    name: Dev Patel
task_types:
  - id: tt-ward
    name: Ward round
    color: "#2e7d32"
    qualified: [w-ana, w-ben, w-cai]
  - id: tt-desk
    name: Front desk
    color: "#1565c0"
    qualified: [w-ben, w-cai, w-dev]
  - id: tt-lab
    name: Lab
    color: "#6a1b9a"
    qualified: [w-ana, w-dev]
`

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the schedule and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	id, err := factory.ParseLoadScenario(r.Body)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.loadScenario(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.Log.WithField("scenario", id).Info("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": id})
}

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var load func(context.Context, time.Time) error
	switch id {
	case "clinic-week":
		load = h.loadClinicWeekScenario
	case "leave-season":
		load = h.loadLeaveSeasonScenario
	case "double-booked":
		load = h.loadDoubleBookedScenario
	default:
		return schedule.Invalid("scenario_id", "unknown scenario %q", id)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset schedule: %w", err)
	}
	roster, err := sqlite.ParseRoster([]byte(demoRoster))
	if err != nil {
		return err
	}
	if err := h.Store.SeedRoster(ctx, roster); err != nil {
		return err
	}

	if err := load(ctx, nextMonday(h.Now())); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.currentScenario = id
	return nil
}

// nextMonday returns the UTC midnight of the first Monday after now.
func nextMonday(now time.Time) time.Time {
	d := schedule.StartOfDay(now.UTC()).AddDate(0, 0, 1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func clock(h, m int) schedule.Clock { return schedule.Clock{Hour: h, Minute: m} }

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadClinicWeekScenario(ctx context.Context, monday time.Time) error {
	// Ward rounds Mon/Wed/Fri for two weeks, everyone qualified
	if _, err := h.Tasks.Create(ctx, tasks.CreateCommand{
		Name:         "Morning ward round",
		TypeID:       "tt-ward",
		Date:         monday,
		StartTime:    clock(7, 30),
		EndTime:      clock(9, 0),
		AllQualified: true,
		Recurrence: &schedule.Recurrence{
			Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			Interval: 1,
			Count:    6,
		},
	}); err != nil {
		return err
	}

	// Front desk rota, one person per weekday
	rota := []schedule.WorkerID{"w-ben", "w-cai", "w-dev", "w-ben", "w-cai"}
	for i, worker := range rota {
		if _, err := h.Tasks.Create(ctx, tasks.CreateCommand{
			Name:      "Front desk",
			TypeID:    "tt-desk",
			Date:      monday.AddDate(0, 0, i),
			StartTime: clock(9, 30),
			EndTime:   clock(17, 0),
			WorkerIDs: []schedule.WorkerID{worker},
		}); err != nil {
			return err
		}
	}

	// Lab every Tuesday and Thursday afternoon
	_, err := h.Tasks.Create(ctx, tasks.CreateCommand{
		Name:      "Sample processing",
		TypeID:    "tt-lab",
		Date:      monday,
		StartTime: clock(13, 0),
		EndTime:   clock(16, 0),
		WorkerIDs: []schedule.WorkerID{"w-dev"},
		Recurrence: &schedule.Recurrence{
			Weekdays: []time.Weekday{time.Tuesday, time.Thursday},
			Interval: 1,
			Until:    monday.AddDate(0, 0, 13),
		},
	})
	return err
}

func (h *Handler) loadLeaveSeasonScenario(ctx context.Context, monday time.Time) error {
	if err := h.loadClinicWeekScenario(ctx, monday); err != nil {
		return err
	}

	// Cai already had vacation approved in the second week
	if _, err := h.Leaves.Create(ctx, leave.CreateCommand{
		WorkerID:   "w-cai",
		Type:       schedule.LeaveVacation,
		StartDate:  monday.AddDate(0, 0, 7),
		EndDate:    monday.AddDate(0, 0, 11),
		Reason:     "Family trip",
		Status:     schedule.LeaveApproved,
		ReviewedBy: "scheduler",
		Override:   schedule.Override{Force: true, Unassign: true},
	}); err != nil {
		return err
	}

	// Ana asks for Wednesday off; approval will collide with her ward round
	if _, err := h.Leaves.Create(ctx, leave.CreateCommand{
		WorkerID:  "w-ana",
		Type:      schedule.LeavePermit,
		StartDate: monday.AddDate(0, 0, 2),
		EndDate:   monday.AddDate(0, 0, 2),
		Reason:    "Appointment",
	}); err != nil {
		return err
	}

	// Dev called in sick on a day without shifts
	_, err := h.Leaves.Create(ctx, leave.CreateCommand{
		WorkerID:   "w-dev",
		Type:       schedule.LeaveSick,
		StartDate:  monday.AddDate(0, 0, 5),
		EndDate:    monday.AddDate(0, 0, 6),
		Status:     schedule.LeaveApproved,
		ReviewedBy: "scheduler",
	})
	return err
}

func (h *Handler) loadDoubleBookedScenario(ctx context.Context, monday time.Time) error {
	if _, err := h.Tasks.Create(ctx, tasks.CreateCommand{
		Name:      "Inventory",
		TypeID:    "tt-lab",
		Date:      monday,
		StartTime: clock(9, 0),
		EndTime:   clock(11, 0),
		WorkerIDs: []schedule.WorkerID{"w-ana"},
	}); err != nil {
		return err
	}

	// Overlaps Inventory for Ana, written anyway
	if _, err := h.Tasks.Create(ctx, tasks.CreateCommand{
		Name:      "Ward round",
		TypeID:    "tt-ward",
		Date:      monday,
		StartTime: clock(10, 0),
		EndTime:   clock(12, 0),
		WorkerIDs: []schedule.WorkerID{"w-ana", "w-ben"},
		Override:  schedule.Override{Force: true},
	}); err != nil {
		return err
	}

	if _, err := h.Tasks.Create(ctx, tasks.CreateCommand{
		Name:      "Front desk",
		TypeID:    "tt-desk",
		Date:      monday.AddDate(0, 0, 1),
		StartTime: clock(9, 0),
		EndTime:   clock(17, 0),
		WorkerIDs: []schedule.WorkerID{"w-dev"},
	}); err != nil {
		return err
	}

	// Approved over Dev's desk shift without unassigning
	_, err := h.Leaves.Create(ctx, leave.CreateCommand{
		WorkerID:   "w-dev",
		Type:       schedule.LeaveSick,
		StartDate:  monday.AddDate(0, 0, 1),
		EndDate:    monday.AddDate(0, 0, 1),
		Status:     schedule.LeaveApproved,
		ReviewedBy: "scheduler",
		Override:   schedule.Override{Force: true},
	})
	return err
}
