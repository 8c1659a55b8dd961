package assistant_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/assistant"
	"github.com/dukex/leadflow/pkg/leads/file"
	"github.com/dukex/leadflow/pkg/llm"
	"github.com/dukex/leadflow/pkg/mocks"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTool(t *testing.T) *query.Tool {
	t.Helper()

	store := file.NewStore(t.TempDir())
	require.NoError(t, store.Insert(context.Background(), &models.Lead{
		Name: "John Doe", Email: "john@example.com", Status: models.LeadStatusNew,
		CreatedAt: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}))

	return query.NewTool(slog.Default(), store, 0)
}

func TestService_AskGreeting(t *testing.T) {
	client := &mocks.MockLLMClient{}
	service := assistant.NewService(slog.Default(), client, newTool(t))

	for _, greeting := range []string{"hi", "Hello", " HEY ", "greetings"} {
		answer, err := service.Ask(context.Background(), greeting, nil)
		require.NoError(t, err)
		assert.Equal(t, "Hello! How can I help you with your leads today?", answer.Message)
	}

	client.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestService_AskEmptyInput(t *testing.T) {
	service := assistant.NewService(slog.Default(), &mocks.MockLLMClient{}, newTool(t))

	_, err := service.Ask(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, assistant.ErrEmptyInput)
}

func TestService_AskDirectAnswer(t *testing.T) {
	client := &mocks.MockLLMClient{}
	client.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		return len(req.Tools) == 1 && req.Tools[0].Name == query.ToolName
	})).Return(&llm.ChatResponse{Message: llm.Message{Role: llm.RoleAssistant, Content: "I can only help with leads."}}, nil).Once()

	service := assistant.NewService(slog.Default(), client, newTool(t))

	answer, err := service.Ask(context.Background(), "what is the weather?", nil)
	require.NoError(t, err)
	assert.Equal(t, "I can only help with leads.", answer.Message)

	client.AssertExpectations(t)
}

func TestService_AskEmptyModelReply(t *testing.T) {
	client := &mocks.MockLLMClient{}
	client.On("Chat", mock.Anything, mock.Anything).Return(&llm.ChatResponse{}, nil).Once()

	service := assistant.NewService(slog.Default(), client, newTool(t))

	answer, err := service.Ask(context.Background(), "anything new?", nil)
	require.NoError(t, err)
	assert.Equal(t, "No tool call triggered and no direct response from AI.", answer.Message)
}

func TestService_AskWithToolCall(t *testing.T) {
	client := &mocks.MockLLMClient{}

	client.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		return len(req.Tools) == 1
	})).Return(&llm.ChatResponse{Message: llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID: "call_1", Name: query.ToolName, Arguments: `{"query": {"status": "New"}}`,
		}},
	}}, nil).Once()

	client.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		if len(req.Tools) != 0 {
			return false
		}

		var tool *llm.Message
		for i := range req.Messages {
			if req.Messages[i].Role == llm.RoleTool {
				tool = &req.Messages[i]
			}
		}

		return tool != nil && tool.ToolCallID == "call_1" &&
			strings.Contains(tool.Content, "john@example.com") &&
			!strings.Contains(tool.Content, `"id"`)
	})).Return(&llm.ChatResponse{Message: llm.Message{Content: "The new users are John Doe."}}, nil).Once()

	service := assistant.NewService(slog.Default(), client, newTool(t))

	answer, err := service.Ask(context.Background(), "Who are the new users?", map[string]any{"name": "John Doe"})
	require.NoError(t, err)
	assert.Equal(t, "The new users are John Doe.", answer.Message)

	client.AssertExpectations(t)
}

func TestService_AskToolErrorIsEmbedded(t *testing.T) {
	client := &mocks.MockLLMClient{}

	client.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		return len(req.Tools) == 1
	})).Return(&llm.ChatResponse{Message: llm.Message{
		ToolCalls: []llm.ToolCall{{ID: "call_1", Name: query.ToolName, Arguments: `{"query": "status is new"}`}},
	}}, nil).Once()

	client.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		for _, msg := range req.Messages {
			if msg.Role == llm.RoleTool {
				return strings.HasPrefix(msg.Content, `{"error":`) && strings.Contains(msg.Content, "malformed query")
			}
		}

		return false
	})).Return(&llm.ChatResponse{}, nil).Once()

	service := assistant.NewService(slog.Default(), client, newTool(t))

	answer, err := service.Ask(context.Background(), "show new leads", nil)
	require.NoError(t, err)
	assert.Equal(t, "Could not process the tool output.", answer.Message)

	client.AssertExpectations(t)
}

func TestService_AskModelFailure(t *testing.T) {
	client := &mocks.MockLLMClient{}
	client.On("Chat", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	service := assistant.NewService(slog.Default(), client, newTool(t))

	_, err := service.Ask(context.Background(), "list leads", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
