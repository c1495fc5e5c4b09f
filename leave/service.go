/*
Package leave implements the leave request lifecycle.

LIFECYCLE:
  ┌─────────┐  approve (conflict-gated)   ┌──────────┐
  │ pending │ ──────────────────────────▶ │ approved │
  └─────────┘                             └──────────┘
       │          reject (never gated)    ┌──────────┐
       └────────────────────────────────▶ │ rejected │
                                          └──────────┘
  Decided requests are final. Re-opening goes through Delete + Create.

CREATION GATE:
  A worker may not hold two pending/approved requests with overlapping
  dates. The check is unconditional: force does not bypass it, only task
  conflicts are overridable. It runs again inside the write transaction.

  A request created directly as approved is also gated by the Conflict
  Detector over its day window, exactly like an approval.

SEE ALSO:
  - schedule/mutator.go: every write goes through Mutator.Commit
  - state.go: Transition
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/shift-engine/schedule"
)

// =============================================================================
// COMMANDS
// =============================================================================

// CreateCommand is a validated request to create leave.
type CreateCommand struct {
	WorkerID   schedule.WorkerID
	Type       schedule.LeaveType
	StartDate  time.Time
	EndDate    time.Time
	Reason     string
	Status     schedule.LeaveStatus // pending (default) or approved
	ReviewedBy string               // stamped when created as approved
	Override   schedule.Override
}

// Validate checks the command's fields.
func (c CreateCommand) Validate() error {
	if c.WorkerID == "" {
		return schedule.Invalid("worker_id", "is required")
	}
	if !c.Type.Valid() {
		return schedule.Invalid("type", "must be one of %v", schedule.LeaveTypes)
	}
	if c.StartDate.IsZero() {
		return schedule.Invalid("start_date", "is required")
	}
	if c.EndDate.IsZero() {
		return schedule.Invalid("end_date", "is required")
	}
	if schedule.StartOfDay(c.EndDate).Before(schedule.StartOfDay(c.StartDate)) {
		return schedule.Invalid("end_date", "must be on or after start_date")
	}
	switch c.Status {
	case "", schedule.LeavePending, schedule.LeaveApproved:
	default:
		return schedule.Invalid("status", "new requests must be pending or approved")
	}
	return c.Override.Validate()
}

// ReviewCommand decides a pending request.
type ReviewCommand struct {
	ID         schedule.LeaveID
	Decision   Decision
	ReviewedBy string
	Note       string
	Override   schedule.Override // approve only
}

// Validate checks the command's fields.
func (c ReviewCommand) Validate() error {
	if c.ID == "" {
		return schedule.Invalid("id", "is required")
	}
	if !c.Decision.Valid() {
		return schedule.Invalid("decision", "must be %q or %q", DecisionApprove, DecisionReject)
	}
	return c.Override.Validate()
}

// Outcome is the result of a successful create or review.
type Outcome struct {
	Leave      *schedule.LeaveRequest
	Forced     bool
	Unassigned int
	Conflicts  []schedule.OccurrenceConflicts
}

// =============================================================================
// SERVICE
// =============================================================================

// Service orchestrates leave creation and review.
type Service struct {
	Store   schedule.TxStore
	Mutator *schedule.Mutator
	Now     schedule.NowFunc
	Log     logrus.FieldLogger
}

// NewService wires a Service over store. A nil logger uses the logrus
// standard logger.
func NewService(store schedule.TxStore, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		Store:   store,
		Mutator: schedule.NewMutator(store, log),
		Now:     time.Now,
		Log:     log,
	}
}

// Create records a new leave request.
//
// Errors: *schedule.ValidationError, schedule.ErrWorkerNotFound,
// *OverlapError (never overridable), *schedule.ConflictError (approved
// creation without force).
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	worker, err := s.Store.GetWorker(ctx, cmd.WorkerID)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	l := schedule.LeaveRequest{
		ID:        schedule.LeaveID(uuid.NewString()),
		WorkerID:  worker.ID,
		Type:      cmd.Type,
		StartDate: schedule.StartOfDay(cmd.StartDate),
		EndDate:   schedule.StartOfDay(cmd.EndDate),
		Reason:    cmd.Reason,
		Status:    schedule.LeavePending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Cheap pre-check so the common rejection does not open a transaction.
	if err := overlapGuard(l)(ctx, s.Store); err != nil {
		return nil, err
	}

	plan := schedule.Plan{
		Guard: overlapGuard(l),
		Apply: func(ctx context.Context, tx schedule.Store) error {
			return tx.CreateLeave(ctx, l)
		},
	}
	if cmd.Status == schedule.LeaveApproved {
		l.Status = schedule.LeaveApproved
		l.ReviewedBy = cmd.ReviewedBy
		l.ReviewedAt = &now
		plan.Scope = dayScope(l)
	}

	res, err := s.Mutator.Commit(ctx, cmd.Override, plan)
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"leave_id":  l.ID,
		"worker_id": l.WorkerID,
		"status":    l.Status,
		"days":      l.Days(),
	}).Info("leave request created")
	return &Outcome{Leave: &l, Forced: res.Forced, Unassigned: res.Unassigned, Conflicts: res.Conflicts}, nil
}

// Review applies a reviewer's decision to a pending request.
//
// Rejection never runs conflict detection or unassignment. Approval is
// gated by the Conflict Detector over the leave's day window.
func (s *Service) Review(ctx context.Context, cmd ReviewCommand) (*Outcome, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	current, err := s.Store.GetLeave(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	to, err := Transition(current.ID, current.Status, cmd.Decision)
	if err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	decided := *current
	decided.Status = to
	decided.ReviewedBy = cmd.ReviewedBy
	decided.ReviewedAt = &now
	decided.ReviewNote = cmd.Note
	decided.UpdatedAt = now

	plan := schedule.Plan{
		Guard: stillPending(cmd.ID, cmd.Decision),
		Apply: func(ctx context.Context, tx schedule.Store) error {
			return tx.UpdateLeave(ctx, decided)
		},
	}
	override := schedule.Override{}
	if cmd.Decision == DecisionApprove {
		plan.Scope = dayScope(decided)
		override = cmd.Override
	}

	res, err := s.Mutator.Commit(ctx, override, plan)
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"leave_id":    decided.ID,
		"worker_id":   decided.WorkerID,
		"status":      decided.Status,
		"reviewed_by": decided.ReviewedBy,
		"unassigned":  res.Unassigned,
	}).Info("leave request reviewed")
	return &Outcome{Leave: &decided, Forced: res.Forced, Unassigned: res.Unassigned, Conflicts: res.Conflicts}, nil
}

// Approve is Review with DecisionApprove.
func (s *Service) Approve(ctx context.Context, id schedule.LeaveID, reviewer string, ov schedule.Override) (*Outcome, error) {
	return s.Review(ctx, ReviewCommand{ID: id, Decision: DecisionApprove, ReviewedBy: reviewer, Override: ov})
}

// Reject is Review with DecisionReject.
func (s *Service) Reject(ctx context.Context, id schedule.LeaveID, reviewer, note string) (*Outcome, error) {
	return s.Review(ctx, ReviewCommand{ID: id, Decision: DecisionReject, ReviewedBy: reviewer, Note: note})
}

// Delete removes a request in any status.
func (s *Service) Delete(ctx context.Context, id schedule.LeaveID) error {
	return s.Store.WithTx(ctx, func(tx schedule.Store) error {
		if err := tx.DeleteLeave(ctx, id); err != nil {
			return err
		}
		s.Log.WithField("leave_id", id).Info("leave request deleted")
		return nil
	})
}

// =============================================================================
// GUARDS
// =============================================================================

// overlapGuard rejects l when its worker already holds a pending or
// approved request on any of the same days.
func overlapGuard(l schedule.LeaveRequest) func(context.Context, schedule.Store) error {
	return func(ctx context.Context, st schedule.Store) error {
		window := l.Window()
		existing, err := st.ListLeaves(ctx, schedule.LeaveFilter{
			WorkerIDs: []schedule.WorkerID{l.WorkerID},
			Statuses:  []schedule.LeaveStatus{schedule.LeavePending, schedule.LeaveApproved},
			Window:    &window,
			Exclude:   l.ID,
		})
		if err != nil {
			return fmt.Errorf("failed to load existing leave: %w", err)
		}
		var clash []schedule.LeaveSummary
		for _, e := range existing {
			if e.Status.Blocking() && e.Window().Overlaps(window) {
				clash = append(clash, e.Summary())
			}
		}
		if len(clash) > 0 {
			return &OverlapError{WorkerID: l.WorkerID, Existing: clash}
		}
		return nil
	}
}

// stillPending re-reads the request inside the transaction so a concurrent
// decision is reported instead of overwritten.
func stillPending(id schedule.LeaveID, d Decision) func(context.Context, schedule.Store) error {
	return func(ctx context.Context, tx schedule.Store) error {
		l, err := tx.GetLeave(ctx, id)
		if err != nil {
			return err
		}
		_, err = Transition(l.ID, l.Status, d)
		return err
	}
}

func dayScope(l schedule.LeaveRequest) *schedule.Query {
	w := l.Window()
	return &schedule.Query{
		WorkerIDs: []schedule.WorkerID{l.WorkerID},
		Start:     w.Start,
		End:       w.End,
	}
}
