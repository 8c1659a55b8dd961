package extraction_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/dukex/leadflow/pkg/extraction"
	"github.com/dukex/leadflow/pkg/llm"
	"github.com/dukex/leadflow/pkg/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestParseContact(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    *extraction.Contact
		wantErr bool
	}{
		{
			name:  "plain json",
			reply: `{"name": "John Doe", "email": "john.doe@example.com", "phone": "+1234567890"}`,
			want:  &extraction.Contact{Name: "John Doe", Email: "john.doe@example.com", Phone: "+1234567890"},
		},
		{
			name:  "fenced with language tag",
			reply: "```json\n{\"name\": \"Ada\", \"email\": \"ada@example.com\", \"phone\": null}\n```",
			want:  &extraction.Contact{Name: "Ada", Email: "ada@example.com"},
		},
		{
			name:  "fenced without language tag",
			reply: "```{\"name\": \"Ada\"}```",
			want:  &extraction.Contact{Name: "Ada"},
		},
		{
			name:    "prose",
			reply:   "I could not read the image.",
			wantErr: true,
		},
		{
			name:    "wrong field type",
			reply:   `{"name": 42}`,
			wantErr: true,
		},
		{
			name:    "empty object",
			reply:   `{}`,
			wantErr: true,
		},
		{
			name:    "array",
			reply:   `[{"name": "Ada"}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extraction.ParseContact(tt.reply)

			if tt.wantErr {
				assert.ErrorIs(t, err, extraction.ErrInvalidExtraction)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, extraction.Validate("image/png", 10))
	assert.NoError(t, extraction.Validate("IMAGE/JPEG; charset=binary", 10))
	assert.NoError(t, extraction.Validate("application/pdf", extraction.MaxFileSize))
	assert.ErrorIs(t, extraction.Validate("image/webp", 10), extraction.ErrUnsupportedMediaType)
	assert.ErrorIs(t, extraction.Validate("image/png", extraction.MaxFileSize+1), extraction.ErrFileTooLarge)
	assert.ErrorIs(t, extraction.Validate("image/png", 0), extraction.ErrEmptyFile)
	assert.True(t, extraction.IsInputError(extraction.Validate("text/plain", 1)))
}

func TestService_ExtractCachesIdenticalUploads(t *testing.T) {
	client := &mocks.MockLLMClient{}
	client.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		return req.Model == "llava" && len(req.Messages) == 1 && len(req.Messages[0].Images) == 1 &&
			req.Messages[0].Images[0].MimeType == "image/png"
	})).Return(&llm.ChatResponse{Message: llm.Message{
		Content: "```json\n{\"name\": \"Ada\", \"email\": \"ada@example.com\", \"phone\": \"+44123\"}\n```",
	}}, nil).Once()

	service := extraction.NewService(slog.Default(), client, "llava", 0)

	for range 2 {
		contact, err := service.Extract(context.Background(), "image/png", []byte("card"))
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", contact.Email)
	}

	client.AssertNumberOfCalls(t, "Chat", 1)
}

func TestService_ExtractRejectsBeforeCallingModel(t *testing.T) {
	client := &mocks.MockLLMClient{}
	service := extraction.NewService(slog.Default(), client, "llava", 0)

	_, err := service.Extract(context.Background(), "text/csv", []byte("a,b"))
	assert.ErrorIs(t, err, extraction.ErrUnsupportedMediaType)

	client.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestService_ExtractModelFailure(t *testing.T) {
	client := &mocks.MockLLMClient{}
	client.On("Chat", mock.Anything, mock.Anything).Return(nil, errors.New("model offline"))

	service := extraction.NewService(slog.Default(), client, "llava", 0)

	_, err := service.Extract(context.Background(), "image/gif", []byte("gif"))
	require.Error(t, err)
	assert.False(t, extraction.IsInputError(err))
}
