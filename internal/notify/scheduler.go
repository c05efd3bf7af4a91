package notify

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/shelfwise/shelfwise-core/internal/circulation"
	"github.com/shelfwise/shelfwise-core/internal/infrastructure/logging"
)

// Scheduler runs the overdue scan on a cron schedule and hands the
// results to a Notifier.
type Scheduler struct {
	cron   *cron.Cron
	engine *circulation.Engine
	notify *Notifier
	log    *logging.Logger
}

// NewScheduler creates a scheduler that runs the overdue scan on the
// given cron expression (standard five-field syntax, e.g. "0 8 * * *").
func NewScheduler(engine *circulation.Engine, notifier *Notifier, schedule string, log *logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		engine: engine,
		notify: notifier,
		log:    log.With("component", "notify_scheduler"),
	}

	if _, err := s.cron.AddFunc(schedule, s.runScan); err != nil {
		return nil, fmt.Errorf("parsing notify schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running scans in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("overdue scan scheduled")
}

// Stop halts the schedule and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("overdue scan stopped")
}

// RunOnce performs a single overdue scan immediately. The scheduled scans
// call this too. The scan itself soft-fails to an empty result, so a
// storage problem never takes the scheduler down.
func (s *Scheduler) RunOnce(ctx context.Context) {
	loans := s.engine.OverdueLoans(ctx)
	if len(loans) == 0 {
		s.log.Debug("overdue scan found nothing")
		return
	}

	s.log.Info("overdue scan complete", "overdue_loans", len(loans))
	s.notify.NotifyOverdue(ctx, loans)
}

func (s *Scheduler) runScan() {
	s.RunOnce(context.Background())
}
