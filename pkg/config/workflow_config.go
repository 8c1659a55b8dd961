// Package config loads workflow definitions from YAML or JSON files.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/dukex/leadflow/pkg/workflow"
	"gopkg.in/yaml.v3"
)

var ErrInvalidWorkflowFile = errors.New("invalid workflow file")

// WorkflowFile is the on-disk shape of a workflow definition. It matches the
// POST /workflow body, so a JSON request body is also a valid file.
type WorkflowFile struct {
	Nodes []NodeConfig `yaml:"nodes"`
	Edges [][]string   `yaml:"edges"`
	Entry string       `yaml:"entry"`
}

// NodeConfig represents a step in the workflow file.
type NodeConfig struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
}

// LoadWorkflowFile reads and parses a workflow file.
func LoadWorkflowFile(filepath string) (workflow.Definition, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return workflow.Definition{}, fmt.Errorf("failed to read workflow file %s: %w", filepath, err)
	}

	return ParseWorkflow(data)
}

// ParseWorkflow parses a YAML (or JSON) workflow document into a definition.
// Step kinds and edge shapes are checked here; graph structure is left to the engine.
func ParseWorkflow(data []byte) (workflow.Definition, error) {
	var file WorkflowFile

	if err := yaml.Unmarshal(data, &file); err != nil {
		return workflow.Definition{}, fmt.Errorf("%w: %w", ErrInvalidWorkflowFile, err)
	}

	return file.Definition()
}

// Definition converts the file into a workflow definition.
func (f WorkflowFile) Definition() (workflow.Definition, error) {
	def := workflow.Definition{
		Steps: make([]workflow.StepSpec, 0, len(f.Nodes)),
		Edges: make([]workflow.Edge, 0, len(f.Edges)),
		Entry: f.Entry,
	}

	for i, node := range f.Nodes {
		if node.ID == "" {
			return workflow.Definition{}, fmt.Errorf("%w: nodes[%d]: id is required", ErrInvalidWorkflowFile, i)
		}

		kind, err := workflow.ParseKind(node.Type)
		if err != nil {
			return workflow.Definition{}, fmt.Errorf("nodes[%d]: %w", i, err)
		}

		def.Steps = append(def.Steps, workflow.StepSpec{ID: node.ID, Kind: kind})
	}

	for i, edge := range f.Edges {
		if len(edge) != 2 {
			return workflow.Definition{}, fmt.Errorf("%w: edges[%d]: edge must be a [from, to] pair, got %d elements",
				ErrInvalidWorkflowFile, i, len(edge))
		}

		def.Edges = append(def.Edges, workflow.Edge{From: edge[0], To: edge[1]})
	}

	return def, nil
}
