// Package scheduler runs the resumption sweep on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/journeys/pkg/engine"
	"github.com/robfig/cron/v3"
)

// DefaultSchedule sweeps once a minute.
const DefaultSchedule = "@every 1m"

// maxRounds bounds how many full batches one tick drains.
const maxRounds = 10

// Sweeper processes due continuations.
type Sweeper interface {
	ProcessDueTasks(ctx context.Context, limit int) (*engine.SweepResult, error)
}

// Scheduler triggers Sweeper on a cron expression. A tick that finds a full
// batch sweeps again, up to maxRounds, so a backlog drains within one tick.
type Scheduler struct {
	sweeper   Sweeper
	schedule  string
	batchSize int
	cron      *cron.Cron
	logger    *slog.Logger
}

// New validates schedule and builds a stopped scheduler.
func New(sweeper Sweeper, schedule string, batchSize int, logger *slog.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	if batchSize <= 0 {
		batchSize = engine.DefaultSweepLimit
	}

	logger = logger.With("module", "scheduler", "schedule", schedule)
	cronLogger := &cronLogger{logger: logger}

	return &Scheduler{
		sweeper:   sweeper,
		schedule:  schedule,
		batchSize: batchSize,
		cron: cron.New(cron.WithLogger(cronLogger), cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		)),
		logger: logger,
	}, nil
}

// Start registers the sweep job and starts the cron loop. ctx bounds every sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.ErrorContext(ctx, "Sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add sweep job: %w", err)
	}

	s.logger.InfoContext(ctx, "Starting scheduler", "batch_size", s.batchSize)
	s.cron.Start()

	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping scheduler")

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce sweeps until a batch comes back short or maxRounds is reached.
func (s *Scheduler) RunOnce(ctx context.Context) (*engine.SweepResult, error) {
	total := &engine.SweepResult{}

	for round := range maxRounds {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		result, err := s.sweeper.ProcessDueTasks(ctx, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("sweep round %d: %w", round+1, err)
		}

		total.Merge(result)

		if result == nil || len(result.Tasks) < s.batchSize {
			break
		}
	}

	if total.Processed > 0 {
		s.logger.InfoContext(ctx, "Sweep tick finished",
			"processed", total.Processed,
			"completed", total.Completed,
			"failed", total.Failed,
			"skipped", total.Skipped,
		)
	}

	return total, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
