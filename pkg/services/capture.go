package services

import (
	"context"
	"log/slog"

	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/workflow"
)

// WorkflowRunner runs the current workflow definition.
type WorkflowRunner interface {
	Run(ctx context.Context) (*workflow.Result, error)
}

// CaptureRunner runs the workflow whenever a lead is captured.
type CaptureRunner struct {
	runner WorkflowRunner
	logger *slog.Logger
}

func NewCaptureRunner(logger *slog.Logger, runner WorkflowRunner) *CaptureRunner {
	return &CaptureRunner{runner: runner, logger: logger.With("module", "capture_runner")}
}

// Handle is an eventbus.EventHandler for lead.created events. Run failures are logged and
// acknowledged so a broken workflow does not redeliver the event forever.
func (c *CaptureRunner) Handle(ctx context.Context, event any) error {
	created, ok := event.(*events.LeadCreated)
	if !ok {
		c.logger.WarnContext(ctx, "Ignoring unexpected event", "event", event)

		return nil
	}

	result, err := c.runner.Run(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "Workflow run on lead capture failed", "lead_id", created.LeadID, "error", err)

		return nil
	}

	c.logger.InfoContext(ctx, "Workflow ran on lead capture", "lead_id", created.LeadID, "run_id", result.RunID)

	return nil
}
