// Package web provides HTTP request and response types for the lead API.
package web

import (
	"fmt"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/workflow"
)

// WorkflowNodeRequest declares one step. Type accepts a step kind or one of its aliases.
type WorkflowNodeRequest struct {
	ID   string `json:"id"   validate:"required"`
	Type string `json:"type" validate:"required"`
}

// DefineWorkflowRequest represents the request body for replacing the workflow definition.
type DefineWorkflowRequest struct {
	Nodes []WorkflowNodeRequest `json:"nodes" validate:"dive"`
	Edges []workflow.Edge       `json:"edges"`
	Entry string                `json:"entry"`
}

// Definition converts the request into a workflow definition, resolving kind aliases.
func (r DefineWorkflowRequest) Definition() (workflow.Definition, error) {
	def := workflow.Definition{
		Steps: make([]workflow.StepSpec, 0, len(r.Nodes)),
		Edges: r.Edges,
		Entry: r.Entry,
	}

	for _, node := range r.Nodes {
		kind, err := workflow.ParseKind(node.Type)
		if err != nil {
			return workflow.Definition{}, fmt.Errorf("node %q: %w", node.ID, err)
		}

		def.Steps = append(def.Steps, workflow.StepSpec{ID: node.ID, Kind: kind})
	}

	return def, nil
}

// RunWorkflowResponse represents a completed workflow run.
type RunWorkflowResponse struct {
	Status  string         `json:"status"`
	Output  workflow.State `json:"output"`
	RunID   string         `json:"run_id"`
	Version int64          `json:"version"`
	Visited []string       `json:"visited"`
}

// RunWorkflowError is the payload of a failed run.
type RunWorkflowError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AskRequest represents a question about the leads.
type AskRequest struct {
	UserInput string         `json:"user_input" validate:"required"`
	LeadData  map[string]any `json:"lead_data,omitempty"`
}

// CreateLeadRequest represents the request body for creating a lead by hand.
type CreateLeadRequest struct {
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

// SaveLeadRequest represents a lead captured from an uploaded document.
type SaveLeadRequest struct {
	Name   string `json:"name"   validate:"required"`
	Email  string `json:"email"  validate:"required,email"`
	Phone  string `json:"phone"`
	Source string `json:"source"`
}

// UpdateLeadStatusRequest represents the request body for moving a lead through the pipeline.
type UpdateLeadStatusRequest struct {
	Status models.LeadStatus `json:"status" validate:"required,oneof=New Contacted Qualified Lost"`
}

// ErrorResponse is the payload of the capture endpoints on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
