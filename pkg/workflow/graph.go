package workflow

import (
	"fmt"
	"slices"
)

// Graph is a compiled definition: every reachable step has exactly one successor and
// following successors from the entry reaches End.
type Graph struct {
	definition  Definition
	steps       map[string]Step
	next        map[string]string
	path        []string
	unreachable []string
}

// Compile builds an executable graph from def, creating each step through registry.
func Compile(registry *Registry, def Definition) (*Graph, error) {
	entry := def.Entry
	if entry == "" {
		entry = LeadStepID
	}

	graph := &Graph{
		definition: def,
		steps:      make(map[string]Step, len(def.Steps)),
		next:       make(map[string]string, len(def.Steps)),
	}

	for _, spec := range def.Steps {
		if spec.ID == "" {
			return nil, compileError("", ErrEmptyStepID)
		}

		if _, exists := graph.steps[spec.ID]; exists {
			return nil, compileError(spec.ID, ErrDuplicateStep)
		}

		step, err := registry.Create(spec.Kind, spec.ID)
		if err != nil {
			return nil, compileError(spec.ID, err)
		}

		graph.steps[spec.ID] = step
	}

	if _, ok := graph.steps[entry]; !ok {
		return nil, compileError(entry, ErrUnknownEntry)
	}

	successors := make(map[string][]string, len(def.Steps))

	for _, edge := range def.Edges {
		if _, ok := graph.steps[edge.From]; !ok {
			return nil, compileError(edge.From, fmt.Errorf("%w: %s -> %s", ErrUnknownStep, edge.From, edge.To))
		}

		if _, ok := graph.steps[edge.To]; !ok && edge.To != End {
			return nil, compileError(edge.To, fmt.Errorf("%w: %s -> %s", ErrUnknownStep, edge.From, edge.To))
		}

		if !slices.Contains(successors[edge.From], edge.To) {
			successors[edge.From] = append(successors[edge.From], edge.To)
		}
	}

	onPath := make(map[string]bool, len(def.Steps))

	for current := entry; current != End; {
		graph.path = append(graph.path, current)
		onPath[current] = true

		targets := successors[current]

		switch {
		case len(targets) == 0:
			return nil, compileError(current, ErrNoTransition)
		case len(targets) > 1:
			return nil, compileError(current, fmt.Errorf("%w: %v", ErrAmbiguousTransition, targets))
		case onPath[targets[0]]:
			return nil, compileError(current, fmt.Errorf("%w: %s -> %s closes a cycle", ErrNoTerminalPath, current, targets[0]))
		}

		graph.next[current] = targets[0]
		current = targets[0]
	}

	for _, spec := range def.Steps {
		if !onPath[spec.ID] {
			graph.unreachable = append(graph.unreachable, spec.ID)
		}
	}

	return graph, nil
}

// Entry returns the id of the first step.
func (g *Graph) Entry() string {
	return g.path[0]
}

// Path returns the step ids a run visits, in order.
func (g *Graph) Path() []string {
	return slices.Clone(g.path)
}

// Unreachable returns the declared steps no run will ever execute.
func (g *Graph) Unreachable() []string {
	return slices.Clone(g.unreachable)
}

// Definition returns the definition the graph was compiled from.
func (g *Graph) Definition() Definition {
	return g.definition
}
