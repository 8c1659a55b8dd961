package mocks

import (
	"context"

	"github.com/dukex/leadflow/pkg/llm"
	"github.com/stretchr/testify/mock"
)

// MockLLMClient is a mock implementation of llm.Client interface.
type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*llm.ChatResponse), args.Error(1)
}
