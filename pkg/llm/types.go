// Package llm provides a chat client for OpenAI-compatible model servers (Ollama, OpenAI).
package llm

import (
	"context"
	"errors"
)

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ErrEmptyResponse is returned when the model answers with no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Image is an inline image attached to a user message.
type Image struct {
	MimeType string
	Data     []byte
}

// ToolCall is a request from the model to invoke a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// Message represents a single message in a conversation.
type Message struct {
	Role       Role
	Content    string
	Images     []Image
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolDefinition describes a function tool offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ChatRequest contains the parameters for a chat completion.
type ChatRequest struct {
	Model    string
	Messages []Message
	Tools    []ToolDefinition
	JSONMode bool
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Message      Message
	Model        string
	FinishReason string
}

// Client sends chat completions to a model server.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
