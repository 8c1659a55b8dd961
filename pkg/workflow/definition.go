package workflow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// StepSpec declares a step in a definition.
type StepSpec struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
}

// Edge is a transition from one step to another step or to End.
type Edge struct {
	From string
	To   string
}

// MarshalJSON encodes the edge as a [from, to] pair.
func (e Edge) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.From, e.To})
}

// UnmarshalJSON decodes a [from, to] pair.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var pair []string

	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("edge must be a [from, to] pair: %w", err)
	}

	if len(pair) != 2 {
		return fmt.Errorf("edge must be a [from, to] pair, got %d elements", len(pair))
	}

	e.From, e.To = pair[0], pair[1]

	return nil
}

// Definition is an explicit, versioned workflow graph.
type Definition struct {
	Version   int64      `json:"version"`
	Steps     []StepSpec `json:"steps"`
	Edges     []Edge     `json:"edges"`
	Entry     string     `json:"entry"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DefaultDefinition is used until a definition is saved: the lead step alone.
func DefaultDefinition() Definition {
	return Definition{
		Steps: []StepSpec{{ID: LeadStepID, Kind: KindLeadSource}},
		Edges: []Edge{{From: LeadStepID, To: End}},
		Entry: LeadStepID,
	}
}

// Normalize prepares a caller definition for storage. The canonical lead-source step is
// always present under the id "lead" and first; a caller step with that id but another kind
// is replaced. It rejects unknown kinds, empty or duplicate ids, other lead-source steps,
// edges with unknown endpoints and an unknown entry, each as a GraphCompilationError.
// The returned definition has no version yet.
func Normalize(logger *slog.Logger, def Definition) (Definition, error) {
	normalized := Definition{
		Steps: []StepSpec{{ID: LeadStepID, Kind: KindLeadSource}},
		Edges: append([]Edge(nil), def.Edges...),
		Entry: def.Entry,
	}

	if normalized.Entry == "" {
		normalized.Entry = LeadStepID
	}

	seen := map[string]bool{LeadStepID: true}

	for _, step := range def.Steps {
		switch {
		case step.ID == "":
			return Definition{}, compileError("", ErrEmptyStepID)
		case step.ID == End:
			return Definition{}, compileError(step.ID, fmt.Errorf("%w: %s is reserved", ErrDuplicateStep, End))
		case !step.Kind.Valid():
			return Definition{}, compileError(step.ID, fmt.Errorf("%w: %q", ErrUnknownKind, step.Kind))
		case step.ID == LeadStepID:
			if step.Kind != KindLeadSource {
				logger.Warn("Replacing caller step with the canonical lead-source step", "step_id", step.ID, "kind", step.Kind)
			}

			continue
		case step.Kind == KindLeadSource:
			return Definition{}, compileError(step.ID, ErrDuplicateLeadSource)
		case seen[step.ID]:
			return Definition{}, compileError(step.ID, ErrDuplicateStep)
		}

		seen[step.ID] = true
		normalized.Steps = append(normalized.Steps, step)
	}

	for _, edge := range normalized.Edges {
		if !seen[edge.From] {
			return Definition{}, compileError(edge.From, fmt.Errorf("%w: %s -> %s", ErrUnknownStep, edge.From, edge.To))
		}

		if edge.To != End && !seen[edge.To] {
			return Definition{}, compileError(edge.To, fmt.Errorf("%w: %s -> %s", ErrUnknownStep, edge.From, edge.To))
		}
	}

	if !seen[normalized.Entry] {
		return Definition{}, compileError(normalized.Entry, ErrUnknownEntry)
	}

	return normalized, nil
}

// StepIDs returns the step ids in declaration order.
func (d Definition) StepIDs() []string {
	ids := make([]string, 0, len(d.Steps))
	for _, step := range d.Steps {
		ids = append(ids, step.ID)
	}

	return ids
}
