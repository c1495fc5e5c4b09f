/*
scheduler.go - Automated schedule audit

PURPOSE:
  Forced writes are allowed to leave the schedule inconsistent (a worker
  on approved leave still assigned, a double booking, a task with nobody
  left on it). The audit scheduler periodically scans the upcoming window
  for those findings, records each run, and notifies an operator.

DESIGN:
  - robfig/cron drives the runs (expression from config, default "@hourly")
  - Each run covers [today 00:00, today + HorizonDays 23:59:59.999]
  - Runs are recorded in audit_runs (running -> completed | failed)
  - The notifier is only called when a run has findings
  - RunOnce is also exposed through POST /api/audit/run

USAGE:
  scheduler := NewAuditScheduler(store, notifier, 14, log)
  if err := scheduler.Start("@hourly"); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - schedule/audit.go: Audit
  - notify/notify.go: Telegram and log notifiers
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/warp/shift-engine/notify"
	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/store/sqlite"
)

// AuditScheduler runs the schedule audit on a cron spec.
type AuditScheduler struct {
	Store       *sqlite.Store
	Notifier    notify.Notifier
	HorizonDays int
	Now         schedule.NowFunc
	Log         logrus.FieldLogger

	cron *cron.Cron
	mu   sync.Mutex // one run at a time
}

// NewAuditScheduler creates a stopped scheduler. A nil notifier logs
// findings instead.
func NewAuditScheduler(store *sqlite.Store, notifier notify.Notifier, horizonDays int, log logrus.FieldLogger) *AuditScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if notifier == nil {
		notifier = notify.Log{Logger: log}
	}
	if horizonDays <= 0 {
		horizonDays = 14
	}
	return &AuditScheduler{
		Store:       store,
		Notifier:    notifier,
		HorizonDays: horizonDays,
		Now:         time.Now,
		Log:         log.WithField("component", "audit"),
	}
}

// Start schedules RunOnce on expr.
func (s *AuditScheduler) Start(expr string) error {
	c := cron.New()
	if _, err := c.AddFunc(expr, func() {
		if _, _, err := s.RunOnce(context.Background()); err != nil {
			s.Log.WithError(err).Error("scheduled audit failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid audit cron expression %q: %w", expr, err)
	}
	s.cron = c
	c.Start()
	s.Log.WithField("cron", expr).Info("audit scheduler started")
	return nil
}

// Stop waits for a running audit to finish.
func (s *AuditScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.Log.Info("audit scheduler stopped")
}

// Window returns the range the next run will scan.
func (s *AuditScheduler) Window() schedule.Interval {
	today := schedule.StartOfDay(s.Now().UTC())
	return schedule.SpanDays(today, today.AddDate(0, 0, s.HorizonDays))
}

// RunOnce audits the window, records the run and notifies on findings.
// A notification failure is logged and does not fail the run.
func (s *AuditScheduler) RunOnce(ctx context.Context) (*sqlite.AuditRun, []schedule.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.Window()
	run := sqlite.AuditRun{
		ID:          uuid.NewString(),
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Status:      sqlite.AuditRunning,
		StartedAt:   s.Now().UTC(),
	}
	if err := s.Store.SaveAuditRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("failed to record audit run: %w", err)
	}

	findings, auditErr := schedule.Audit(ctx, s.Store, window)

	completed := s.Now().UTC()
	run.CompletedAt = &completed
	run.Findings = len(findings)
	run.Status = sqlite.AuditCompleted
	if auditErr != nil {
		run.Status = sqlite.AuditFailed
		run.Error = auditErr.Error()
	}
	if err := s.Store.SaveAuditRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("failed to record audit run: %w", err)
	}
	if auditErr != nil {
		return &run, nil, auditErr
	}

	log := s.Log.WithFields(logrus.Fields{"run_id": run.ID, "findings": len(findings)})
	if len(findings) > 0 {
		report := notify.Report{RunID: run.ID, Window: window, Findings: findings}
		if err := s.Notifier.Notify(ctx, report); err != nil {
			log.WithError(err).Warn("failed to notify audit findings")
		}
	}
	log.Info("audit completed")

	return &run, findings, nil
}
