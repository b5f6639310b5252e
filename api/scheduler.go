/*
scheduler.go - Daily alert sweep scheduler

PURPOSE:
  Once a day, classifies every owner's portfolio and records the outcome in
  alert_runs so the dashboard can show when alerts were last computed and
  how many tenancies were overdue or coming due.

DESIGN:
  - robfig/cron drives the sweep (ALERT_SWEEP_CRON, default "0 8 * * *")
  - Owners already swept for the day are skipped
  - Each owner gets a run record: running -> completed | failed
  - One owner's failure does not stop the sweep

USAGE:
  scheduler := NewAlertScheduler(store, svc, log, "0 8 * * *")
  if err := scheduler.Start(); err != nil { ... }
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - dashboard/service.go: Report
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
	"github.com/warp/rent-engine/dashboard"
	"github.com/warp/rent-engine/rent"
	"github.com/warp/rent-engine/store/sqlite"
)

// Run statuses stored in alert_runs.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// AlertScheduler runs the daily alert sweep.
type AlertScheduler struct {
	Store     *sqlite.Store
	Dashboard *dashboard.Service
	Log       logrus.FieldLogger
	CronSpec  string

	// Now returns the sweep date; replaced in tests.
	Now func() rent.Date

	cron *cron.Cron
	mu   sync.Mutex
}

// SweepResult counts owners by outcome.
type SweepResult struct {
	Processed int
	Skipped   int
	Failed    int
}

// NewAlertScheduler creates a scheduler. It does nothing until Start.
func NewAlertScheduler(store *sqlite.Store, svc *dashboard.Service, log logrus.FieldLogger, spec string) *AlertScheduler {
	if log == nil {
		log = svc.Log
	}
	return &AlertScheduler{
		Store:     store,
		Dashboard: svc,
		Log:       log.WithField("component", "alert_scheduler"),
		CronSpec:  spec,
		Now:       rent.Today,
	}
}

// Start registers the sweep job and starts the cron engine.
func (s *AlertScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(time.Local))
	_, err := c.AddFunc(s.CronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.RunOnce(ctx, s.Now()); err != nil {
			s.Log.WithError(err).Error("alert sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.CronSpec, err)
	}

	c.Start()
	s.cron = c
	s.Log.WithField("cron", s.CronSpec).Info("alert scheduler started")
	return nil
}

// Stop halts the cron engine and waits for a running sweep to finish.
func (s *AlertScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.Log.Info("alert scheduler stopped")
}

// NextRun returns when the sweep fires next, or zero when not started.
func (s *AlertScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce sweeps every owner for the given day. It only returns an error
// when the owner list itself cannot be read.
func (s *AlertScheduler) RunOnce(ctx context.Context, day rent.Date) (SweepResult, error) {
	var result SweepResult

	owners, err := s.Store.ListOwners(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list owners: %w", err)
	}

	for _, o := range owners {
		log := s.Log.WithFields(logrus.Fields{"owner_id": o.ID, "date": day.String()})

		done, err := s.Store.IsAlertRunComplete(ctx, o.ID, day)
		if err != nil {
			log.WithError(err).Error("failed to check alert run status")
			result.Failed++
			continue
		}
		if done {
			result.Skipped++
			continue
		}

		if err := s.sweepOwner(ctx, o.ID, day, log); err != nil {
			log.WithError(err).Error("alert sweep failed for owner")
			result.Failed++
			continue
		}
		result.Processed++
	}

	if result.Processed > 0 || result.Failed > 0 {
		s.Log.WithFields(logrus.Fields{
			"processed": result.Processed,
			"skipped":   result.Skipped,
			"failed":    result.Failed,
		}).Info("alert sweep completed")
	}
	return result, nil
}

func (s *AlertScheduler) sweepOwner(ctx context.Context, ownerID string, day rent.Date, log logrus.FieldLogger) error {
	started := time.Now()
	run := sqlite.AlertRun{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		RunDate:   day,
		Status:    RunRunning,
		StartedAt: &started,
		CreatedAt: started,
	}
	if err := s.Store.SaveAlertRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run record: %w", err)
	}

	report, err := s.Dashboard.Report(ctx, rent.OwnerID(ownerID), day)
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
		if saveErr := s.Store.SaveAlertRun(ctx, run); saveErr != nil {
			log.WithError(saveErr).Error("failed to record failed alert run")
		}
		return err
	}

	for _, a := range report.Alerts {
		switch a.Kind {
		case rent.KindOverdue:
			run.OverdueCount++
		case rent.KindUpcoming:
			run.UpcomingCount++
		}
	}
	completed := time.Now()
	run.Status = RunCompleted
	run.SkippedCount = len(report.Skipped)
	run.CompletedAt = &completed

	if err := s.Store.SaveAlertRun(ctx, run); err != nil {
		return fmt.Errorf("failed to update run record: %w", err)
	}

	log.WithFields(logrus.Fields{
		"overdue":  run.OverdueCount,
		"upcoming": run.UpcomingCount,
		"skipped":  run.SkippedCount,
	}).Info("alert sweep recorded")
	return nil
}
