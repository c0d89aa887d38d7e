// Package scheduler runs the reminder sweep on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"lendloop/internal/services"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper performs one reminder sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (services.ReminderStats, error)
}

// Scheduler triggers a Sweeper on a cron expression. A run that is still in
// progress when the next one is due causes that next run to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a Scheduler for the standard five-field cron spec. timeout
// bounds each sweep; zero means no bound.
func New(spec string, sweeper Sweeper, timeout time.Duration, log *zap.Logger) (*Scheduler, error) {
	log = log.Named("scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sweeper: sweeper,
		timeout: timeout,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger), cron.Recover(cron.DiscardLogger)),
	)
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.log.Info("reminder scheduler started", zap.Int("entries", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop cancels any running sweep and waits for it to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.log.Info("reminder scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the scheduler and blocks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

func (s *Scheduler) runOnce() {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	stats, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error("reminder sweep failed", zap.Error(err))
		return
	}
	s.log.Debug("reminder sweep completed", zap.Int("reminded", stats.Total()))
}
