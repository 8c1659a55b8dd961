// Package assistant answers natural-language questions about leads using a
// tool-calling language model.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/leadflow/pkg/llm"
	"github.com/dukex/leadflow/pkg/query"
)

var greetings = []string{"hi", "hello", "hey", "greetings"}

// ErrEmptyInput is returned when the question is blank.
var ErrEmptyInput = errors.New("user input is required")

// QueryTool runs lead queries requested by the model.
type QueryTool interface {
	Definition() llm.ToolDefinition
	Call(ctx context.Context, arguments string) (*query.Result, error)
}

// Answer is the assistant's reply.
type Answer struct {
	Message string `json:"message"`
}

// Service runs the ask/tool/summarize conversation.
type Service struct {
	client llm.Client
	tool   QueryTool
	logger *slog.Logger
}

// NewService creates a new assistant service.
func NewService(logger *slog.Logger, client llm.Client, tool QueryTool) *Service {
	return &Service{
		client: client,
		tool:   tool,
		logger: logger.With("module", "assistant"),
	}
}

// Ask answers input, optionally in the context of a selected lead.
func (s *Service) Ask(ctx context.Context, input string, leadData map[string]any) (*Answer, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}

	if slices.Contains(greetings, strings.ToLower(input)) {
		return &Answer{Message: greetingReply}, nil
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}

	if len(leadData) > 0 {
		data, err := json.Marshal(leadData)
		if err != nil {
			return nil, fmt.Errorf("failed to encode lead context: %w", err)
		}

		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: fmt.Sprintf(leadContextPrompt, data)})
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	resp, err := s.client.Chat(ctx, llm.ChatRequest{
		Messages: messages,
		Tools:    []llm.ToolDefinition{s.tool.Definition()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ask model: %w", err)
	}

	if len(resp.Message.ToolCalls) == 0 {
		if resp.Message.Content == "" {
			return &Answer{Message: noResponseReply}, nil
		}

		return &Answer{Message: resp.Message.Content}, nil
	}

	messages = append(messages, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Message.Content,
		ToolCalls: resp.Message.ToolCalls,
	})

	outputs := make([]string, 0, len(resp.Message.ToolCalls))

	for _, call := range resp.Message.ToolCalls {
		output := s.runTool(ctx, call)
		outputs = append(outputs, output)

		messages = append(messages, llm.Message{
			Role:       llm.RoleTool,
			Content:    output,
			ToolCallID: call.ID,
		})
	}

	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf(summaryPrompt, strings.Join(outputs, "\n")),
	})

	final, err := s.client.Chat(ctx, llm.ChatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("failed to summarize tool output: %w", err)
	}

	if final.Message.Content == "" {
		return &Answer{Message: noToolOutputReply}, nil
	}

	return &Answer{Message: final.Message.Content}, nil
}

// runTool executes one tool call and returns its output as text; failures become
// an {"error": ...} document so the model can report them.
func (s *Service) runTool(ctx context.Context, call llm.ToolCall) string {
	if call.Name != query.ToolName {
		s.logger.WarnContext(ctx, "Model requested unknown tool", "tool", call.Name)

		return errorOutput(fmt.Errorf("unknown tool %q", call.Name))
	}

	result, err := s.tool.Call(ctx, call.Arguments)
	if err != nil {
		s.logger.WarnContext(ctx, "Lead query failed", "error", err, "arguments", call.Arguments)

		return errorOutput(err)
	}

	data, err := json.Marshal(result.Leads)
	if err != nil {
		return errorOutput(err)
	}

	return string(data)
}

func errorOutput(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})

	return string(data)
}
