// Package scheduler runs the current workflow definition on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/workflow"
	"github.com/robfig/cron/v3"
)

var ErrEmptySchedule = errors.New("schedule cron expression is required")

// Runner runs the current workflow definition.
type Runner interface {
	Run(ctx context.Context) (*workflow.Result, error)
}

// Scheduler triggers a workflow run on every tick of a standard 5-field cron expression.
// A tick is skipped while the previous run is still going.
type Scheduler struct {
	expr   string
	runner Runner
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func New(logger *slog.Logger, expr string, runner Runner) (*Scheduler, error) {
	if err := Validate(expr); err != nil {
		return nil, err
	}

	return &Scheduler{
		expr:   expr,
		runner: runner,
		logger: logger.With("module", "scheduler", "cron", expr),
	}, nil
}

// Validate checks expr is a standard cron expression.
func Validate(expr string) error {
	if expr == "" {
		return ErrEmptySchedule
	}

	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting scheduler")

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := s.cron.AddFunc(s.expr, s.Tick); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()

	return nil
}

// Tick runs the workflow once.
func (s *Scheduler) Tick() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.InfoContext(ctx, "Scheduled workflow run triggered")

	result, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled workflow run failed", "error", err)

		return
	}

	s.logger.InfoContext(ctx, "Scheduled workflow run completed", "run_id", result.RunID, "visited", result.Visited)
}

// Stop stops the schedule and waits for a running tick to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping scheduler")

	if s.cron == nil {
		return nil
	}

	done := s.cron.Stop()

	s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
