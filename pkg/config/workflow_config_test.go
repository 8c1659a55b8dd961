package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/leadflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWorkflow(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      workflow.Definition
		wantErrIs error
	}{
		{
			name: "yaml",
			input: `
nodes:
  - id: email
    type: email
  - id: chat
    type: whatsapp
edges:
  - [lead, email]
  - [email, chat]
  - [chat, __end__]
`,
			want: workflow.Definition{
				Steps: []workflow.StepSpec{
					{ID: "email", Kind: workflow.KindEmailNotifier},
					{ID: "chat", Kind: workflow.KindMessagingNotifier},
				},
				Edges: []workflow.Edge{
					{From: "lead", To: "email"},
					{From: "email", To: "chat"},
					{From: "chat", To: workflow.End},
				},
			},
		},
		{
			name:  "json request body",
			input: `{"nodes": [{"id": "email", "type": "email-notifier"}], "edges": [["lead", "email"], ["email", "__end__"]], "entry": "lead"}`,
			want: workflow.Definition{
				Steps: []workflow.StepSpec{{ID: "email", Kind: workflow.KindEmailNotifier}},
				Edges: []workflow.Edge{{From: "lead", To: "email"}, {From: "email", To: workflow.End}},
				Entry: "lead",
			},
		},
		{
			name:  "empty document",
			input: ``,
			want:  workflow.Definition{Steps: []workflow.StepSpec{}, Edges: []workflow.Edge{}},
		},
		{
			name:      "missing node id",
			input:     `{"nodes": [{"type": "email"}]}`,
			wantErrIs: ErrInvalidWorkflowFile,
		},
		{
			name:      "unknown kind",
			input:     `{"nodes": [{"id": "sms", "type": "sms"}]}`,
			wantErrIs: workflow.ErrUnknownKind,
		},
		{
			name:      "edge with three elements",
			input:     `{"edges": [["lead", "email", "chat"]]}`,
			wantErrIs: ErrInvalidWorkflowFile,
		},
		{
			name:      "not a mapping",
			input:     `[1, 2]`,
			wantErrIs: ErrInvalidWorkflowFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWorkflow([]byte(tt.input))
			if tt.wantErrIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErrIs)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadWorkflowFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("edges:\n  - [lead, __end__]\n"), 0o600))

	def, err := LoadWorkflowFile(path)
	require.NoError(t, err)
	assert.Equal(t, []workflow.Edge{{From: "lead", To: workflow.End}}, def.Edges)

	_, err = LoadWorkflowFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
