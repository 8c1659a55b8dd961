package workflow_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dukex/leadflow/pkg/workflow"
	"pgregory.net/rapid"
)

func TestNormalize_AlwaysOneLeadStep(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(0, 6).Draw(t, "count")

		def := workflow.Definition{}
		for i := range count {
			kind := rapid.SampledFrom([]workflow.Kind{workflow.KindEmailNotifier, workflow.KindMessagingNotifier}).Draw(t, "kind")
			def.Steps = append(def.Steps, workflow.StepSpec{ID: fmt.Sprintf("step-%d", i), Kind: kind})
		}

		if rapid.Bool().Draw(t, "callerLead") {
			def.Steps = append(def.Steps, workflow.StepSpec{ID: "lead", Kind: workflow.KindEmailNotifier})
		}

		normalized, err := workflow.Normalize(slog.Default(), def)
		if err != nil {
			t.Fatalf("valid definition rejected: %v", err)
		}

		leadSources := 0
		for _, step := range normalized.Steps {
			if step.Kind == workflow.KindLeadSource {
				leadSources++
			}
		}

		if leadSources != 1 || normalized.Steps[0].ID != "lead" || normalized.Steps[0].Kind != workflow.KindLeadSource {
			t.Fatalf("expected a single leading lead step, got %v", normalized.Steps)
		}
	})
}

func TestEngine_ChainVisitsEveryStepOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		length := rapid.IntRange(0, 10).Draw(t, "length")

		emails := newCountingFactory(workflow.KindEmailNotifier)
		registry := workflow.NewRegistry(slog.Default())
		registry.Register(newCountingFactory(workflow.KindLeadSource))
		registry.Register(emails)

		engine := workflow.NewEngine(slog.Default(), registry, workflow.NewMemoryDefinitionStore())

		def := workflow.Definition{}
		previous := "lead"

		for i := range length {
			id := fmt.Sprintf("email-%d", i)
			def.Steps = append(def.Steps, workflow.StepSpec{ID: id, Kind: workflow.KindEmailNotifier})
			def.Edges = append(def.Edges, workflow.Edge{From: previous, To: id})
			previous = id
		}

		def.Edges = append(def.Edges, workflow.Edge{From: previous, To: workflow.End})

		result, err := engine.RunDefinition(context.Background(), def)
		if err != nil {
			t.Fatalf("chain of %d failed: %v", length, err)
		}

		if len(result.Visited) != length+1 {
			t.Fatalf("visited %v, want %d steps", result.Visited, length+1)
		}

		for i := range length {
			if got := emails.count(fmt.Sprintf("email-%d", i)); got != 1 {
				t.Fatalf("email-%d ran %d times", i, got)
			}
		}
	})
}
