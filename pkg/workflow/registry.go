package workflow

import (
	"context"
	"fmt"
	"log/slog"
)

// Step is an executable unit of a workflow. Execute returns an update that is merged
// over the run state.
type Step interface {
	ID() string
	Kind() Kind
	Execute(ctx context.Context, state State) (State, error)
}

// StepFactory creates steps of one kind.
type StepFactory interface {
	Kind() Kind
	Create(id string) (Step, error)
}

// Registry maps step kinds to their factories.
type Registry struct {
	logger    *slog.Logger
	factories map[Kind]StepFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[Kind]StepFactory),
	}
}

func (r *Registry) Register(factory StepFactory) {
	r.factories[factory.Kind()] = factory
}

func (r *Registry) Create(kind Kind, id string) (Step, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrUnknownKind, kind)
	}

	return factory.Create(id)
}
