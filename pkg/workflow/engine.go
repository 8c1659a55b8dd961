// Package workflow defines, validates and runs the lead workflow graph: a chain of steps
// that starts from the most recent lead and notifies it.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxHops bounds the number of steps a single run may execute.
const DefaultMaxHops = 64

// Result is the outcome of a successful run.
type Result struct {
	RunID     string        `json:"run_id"`
	Version   int64         `json:"version"`
	State     State         `json:"state"`
	Visited   []string      `json:"visited"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Engine defines and runs workflows.
type Engine struct {
	registry  *Registry
	store     DefinitionStore
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	maxHops   int
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxHops overrides DefaultMaxHops.
func WithMaxHops(maxHops int) Option {
	return func(e *Engine) {
		if maxHops > 0 {
			e.maxHops = maxHops
		}
	}
}

// WithPublisher publishes definition and run events.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) {
		e.publisher = publisher
	}
}

// WithTracer traces runs and steps.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

func NewEngine(logger *slog.Logger, registry *Registry, store DefinitionStore, opts ...Option) *Engine {
	engine := &Engine{
		registry: registry,
		store:    store,
		tracer:   otelhelper.NewNoopTracer(),
		maxHops:  DefaultMaxHops,
		logger:   logger.With("module", "workflow_engine"),
	}

	for _, opt := range opts {
		opt(engine)
	}

	return engine
}

// Validate normalizes and compiles def without saving it. A path longer than the
// engine's hop limit is rejected here so that it never fails mid-run.
func (e *Engine) Validate(def Definition) (*Graph, error) {
	normalized, err := Normalize(e.logger, def)
	if err != nil {
		return nil, err
	}

	graph, err := Compile(e.registry, normalized)
	if err != nil {
		return nil, err
	}

	if len(graph.path) > e.maxHops {
		return nil, compileError(graph.path[e.maxHops],
			fmt.Errorf("%w: path visits %d steps, limit is %d", ErrHopLimitExceeded, len(graph.path), e.maxHops))
	}

	return graph, nil
}

// Define replaces the current definition. Every structural error is reported here,
// so a saved definition always compiles.
func (e *Engine) Define(ctx context.Context, def Definition) (Definition, error) {
	graph, err := e.Validate(def)
	if err != nil {
		return Definition{}, err
	}

	saved, err := e.store.Save(ctx, graph.Definition())
	if err != nil {
		return Definition{}, err
	}

	e.logger.InfoContext(ctx, "Workflow defined",
		"version", saved.Version,
		"steps", saved.StepIDs(),
		"unreachable", graph.Unreachable(),
	)

	e.publish(ctx, "workflow", events.WorkflowDefined{
		BaseEvent: events.NewBaseEvent(events.WorkflowDefinedEvent),
		Version:   saved.Version,
		Steps:     len(saved.Steps),
		Edges:     len(saved.Edges),
	})

	return saved, nil
}

// Current returns the current definition.
func (e *Engine) Current(ctx context.Context) (Definition, error) {
	return e.store.Current(ctx)
}

// Run executes the current definition.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	def, err := e.store.Current(ctx)
	if err != nil {
		return nil, err
	}

	return e.RunDefinition(ctx, def)
}

// RunDefinition executes def with a fresh state. It fails with a GraphCompilationError when
// def is invalid and with a GraphExecutionError when a step fails, the context ends or the
// hop limit is reached.
func (e *Engine) RunDefinition(ctx context.Context, def Definition) (*Result, error) {
	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	logger := e.logger.With("run_id", runID, "version", def.Version)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.Int64(otelhelper.WorkflowVersionKey, def.Version),
	)
	defer span.End()

	graph, err := e.Validate(def)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Workflow does not compile", "error", err)
		e.publishFailed(ctx, runID, def.Version, "", err, time.Since(startedAt))

		return nil, err
	}

	e.publish(ctx, runID, events.WorkflowRunStarted{
		BaseEvent: events.NewBaseEvent(events.WorkflowRunStartedEvent),
		RunID:     runID,
		Version:   def.Version,
	})

	logger.InfoContext(ctx, "Starting workflow run", "path", graph.Path())

	state, visited, err := e.execute(ctx, graph, runID)
	duration := time.Since(startedAt)

	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Workflow run failed", "error", err, "visited", visited)

		var execErr *GraphExecutionError
		step := ""
		if errors.As(err, &execErr) {
			step = execErr.Step
		}

		e.publishFailed(ctx, runID, def.Version, step, err, duration)

		return nil, err
	}

	logger.InfoContext(ctx, "Workflow run completed", "visited", visited, "step_errors", len(state.Errors), "duration", duration)

	e.publish(ctx, runID, events.WorkflowRunCompleted{
		BaseEvent:  events.NewBaseEvent(events.WorkflowRunCompletedEvent),
		RunID:      runID,
		Version:    def.Version,
		Visited:    visited,
		Email:      state.Email,
		WhatsApp:   state.WhatsApp,
		StepErrors: len(state.Errors),
		Duration:   duration,
	})

	return &Result{
		RunID:     runID,
		Version:   def.Version,
		State:     state,
		Visited:   visited,
		StartedAt: startedAt,
		Duration:  duration,
	}, nil
}

func (e *Engine) execute(ctx context.Context, graph *Graph, runID string) (State, []string, error) {
	state := State{}
	visited := make([]string, 0, len(graph.path))

	for current, hops := graph.Entry(), 0; current != End; hops++ {
		if hops >= e.maxHops {
			return state, visited, &GraphExecutionError{RunID: runID, Step: current, Err: ErrHopLimitExceeded}
		}

		if err := ctx.Err(); err != nil {
			return state, visited, &GraphExecutionError{RunID: runID, Step: current, Err: err}
		}

		step := graph.steps[current]

		stepCtx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
			attribute.String(otelhelper.RunIDKey, runID),
			attribute.String(otelhelper.StepIDKey, step.ID()),
			attribute.String(otelhelper.StepKindKey, string(step.Kind())),
		)

		update, err := step.Execute(stepCtx, state)
		if err != nil {
			otelhelper.SetError(span, err)
			span.End()

			return state, visited, &GraphExecutionError{RunID: runID, Step: current, Err: err}
		}

		span.End()

		state = state.Merge(update)
		visited = append(visited, current)
		current = graph.next[current]
	}

	return state, visited, nil
}

func (e *Engine) publishFailed(ctx context.Context, runID string, version int64, step string, err error, duration time.Duration) {
	e.publish(ctx, runID, events.WorkflowRunFailed{
		BaseEvent: events.NewBaseEvent(events.WorkflowRunFailedEvent),
		RunID:     runID,
		Version:   version,
		Step:      step,
		Error:     err.Error(),
		Duration:  duration,
	})
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "type", event.GetType(), "error", err)
	}
}
