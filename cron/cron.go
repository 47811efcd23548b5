// Package cron runs periodic jobs such as manifest validation on a cron
// schedule.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs a job every six hours.
const DefaultSchedule = "@every 6h"

// Task is a unit of periodic work.
type Task func(ctx context.Context) error

// Scheduler runs tasks on cron schedules. Runs of the same task never
// overlap; a run due while the previous one is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	// Timeout bounds each run. Zero means no limit.
	Timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler returns a stopped Scheduler. Schedules use the standard
// five-field cron syntax or descriptors such as "@every 1h".
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		Timeout: time.Hour,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers task under name to run on schedule.
// Returns EINVALID if schedule cannot be parsed.
func (s *Scheduler) Add(schedule, name string, task Task) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	_, err := s.cron.AddFunc(schedule, func() { s.run(name, task) })
	if err != nil {
		return idedocs.Errorf(idedocs.EINVALID, "invalid schedule %q: %v", schedule, err)
	}
	s.logger.Info("task scheduled", "task", name, "schedule", schedule)
	return nil
}

// RunNow runs task once in the calling goroutine.
func (s *Scheduler) RunNow(name string, task Task) {
	s.run(name, task)
}

func (s *Scheduler) run(name string, task Task) {
	ctx := s.ctx
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	begin := time.Now()
	err := task(ctx)
	if err != nil {
		s.logger.Error("task failed", "task", name, "duration", time.Since(begin), "err", err)
		return
	}
	s.logger.Info("task finished", "task", name, "duration", time.Since(begin))
}

// Start starts the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running tasks and waits for them to
// return or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}
