// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/bank-import/internal/queue"
)

// Scheduler runs periodic queue maintenance.
type Scheduler struct {
	cron     *cron.Cron
	q        queue.Queue
	schedule string
	logger   *slog.Logger
}

// NewScheduler creates a scheduler sweeping the queue on the given cron
// expression (standard 5-field format).
func NewScheduler(q queue.Queue, schedule string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		q:        q,
		schedule: schedule,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.sweepExpiredLeases)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("sweep_schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.sweepExpiredLeases()
}

// sweepExpiredLeases releases messages whose workers went away without
// acking, so they redeliver promptly instead of sitting locked.
func (s *Scheduler) sweepExpiredLeases() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	requeued, err := s.q.RequeueExpired(ctx)
	if err != nil {
		s.logger.Error("queue sweep failed", slog.Any("error", err))
		return
	}
	if requeued > 0 {
		s.logger.Warn("requeued expired messages", slog.Int("count", requeued))
	}
}
