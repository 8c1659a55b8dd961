// Package query implements the lead query tool offered to the conversational model.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/leadflow/pkg/leads"
	"github.com/dukex/leadflow/pkg/llm"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const (
	// ToolName is the function name the model calls.
	ToolName = "query_leads"

	// DefaultLimit caps the number of records returned by a single query.
	DefaultLimit = 50
)

// ErrMalformedQuery is returned for filters that are not mappings or strings encoding one.
var ErrMalformedQuery = leads.ErrMalformedQuery

const toolDescription = `Find leads using a MongoDB-style query dictionary. Example: {"name": {"$regex": "ada", "$options": "i"}}. Use the fields:
- name (string)
- email (string)
- phone (string)
- status (string: New, Contacted, Qualified, Lost)
- source (string: Manual, document/image, chat)
- createdAt (ISO datetime string)`

var argumentsSchema = map[string]any{
	"type":     "object",
	"required": []any{"query"},
	"properties": map[string]any{
		"query": map[string]any{
			"type":        []any{"object", "string"},
			"description": "MongoDB query dictionary to match leads.",
		},
	},
}

// Result is the outcome of a lead query.
type Result struct {
	Leads     []map[string]any `json:"leads"`
	Truncated bool             `json:"truncated"`
	Limit     int              `json:"limit"`
}

// Tool runs lead queries against a shared store.
type Tool struct {
	store  leads.Store
	limit  int
	logger *slog.Logger
}

// NewTool creates a query tool. A non-positive limit selects DefaultLimit.
func NewTool(logger *slog.Logger, store leads.Store, limit int) *Tool {
	if limit <= 0 {
		limit = DefaultLimit
	}

	return &Tool{
		store:  store,
		limit:  limit,
		logger: logger.With("module", "query"),
	}
}

// Definition returns the function tool schema offered to the model.
func (t *Tool) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ToolName,
		Description: toolDescription,
		Parameters:  argumentsSchema,
	}
}

// Run parses filter, queries the store newest first and returns at most the configured
// number of records, without their internal identifier.
func (t *Tool) Run(ctx context.Context, filter any) (*Result, error) {
	parsed, err := leads.ParseFilter(filter)
	if err != nil {
		return nil, err
	}

	found, err := t.store.Find(ctx, parsed, leads.FindOptions{
		SortField: models.LeadFieldCreatedAt,
		SortOrder: leads.SortDesc,
		Limit:     t.limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}

	result := &Result{
		Leads: make([]map[string]any, 0, min(len(found), t.limit)),
		Limit: t.limit,
	}

	if len(found) > t.limit {
		result.Truncated = true
		found = found[:t.limit]
	}

	for _, lead := range found {
		doc := lead.Document()
		delete(doc, models.LeadFieldID)

		result.Leads = append(result.Leads, doc)
	}

	t.logger.DebugContext(ctx, "Lead query executed", "matched", len(result.Leads), "truncated", result.Truncated)

	return result, nil
}

// Call executes a model tool call. arguments is the raw JSON the model produced.
func (t *Tool) Call(ctx context.Context, arguments string) (*Result, error) {
	var args map[string]any

	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return nil, fmt.Errorf("%w: tool arguments are not a JSON object: %v", ErrMalformedQuery, err)
	}

	if err := validateArguments(args); err != nil {
		return nil, err
	}

	return t.Run(ctx, args["query"])
}

func validateArguments(args map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(argumentsSchema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedQuery, err)
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrMalformedQuery, strings.Join(errors, "; "))
	}

	return nil
}
