package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/leads/file"
	"github.com/dukex/leadflow/pkg/mocks"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/notify"
	"github.com/dukex/leadflow/pkg/services"
	"github.com/dukex/leadflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var emailFlow = workflow.Definition{
	Steps: []workflow.StepSpec{{ID: "email", Kind: workflow.KindEmailNotifier}},
	Edges: []workflow.Edge{{From: "lead", To: "email"}, {From: "email", To: workflow.End}},
}

func insertLead(t *testing.T, f *fixture, lead *models.Lead) {
	t.Helper()

	require.NoError(t, f.store.Insert(context.Background(), lead))
}

func TestEngine_RunDefaultWithoutLeads(t *testing.T) {
	f := newFixture(t)

	result, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, result.State.Email)
	assert.Nil(t, result.State.WhatsApp)
	assert.Empty(t, result.State.Errors)
	assert.Equal(t, []string{"lead"}, result.Visited)
	assert.Equal(t, int64(0), result.Version)
	assert.Equal(t, []events.EventType{events.WorkflowRunStartedEvent, events.WorkflowRunCompletedEvent}, f.publisher.events)
}

func TestEngine_EmailFlowNotifiesLatestLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	insertLead(t, f, &models.Lead{Name: "Old", Email: "old@x.com", CreatedAt: base})
	insertLead(t, f, &models.Lead{Name: "A", Email: "a@x.com", Phone: "555", CreatedAt: base.Add(time.Hour)})

	saved, err := f.engine.Define(ctx, emailFlow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)
	assert.Equal(t, "lead", saved.Steps[0].ID)

	result, err := f.engine.Run(ctx)
	require.NoError(t, err)

	require.NotNil(t, result.State.Email)
	require.NotNil(t, result.State.WhatsApp)
	assert.Equal(t, "a@x.com", *result.State.Email)
	assert.Equal(t, "555", *result.State.WhatsApp)
	assert.Empty(t, result.State.Errors)
	assert.Equal(t, []string{"lead", "email"}, result.Visited)
	assert.Equal(t, int64(1), result.Version)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, notify.LeadEmail("a@x.com"), f.mailer.sent[0])
	assert.Empty(t, f.messenger.sent)
}

func TestEngine_NotifierFailuresAreRecorded(t *testing.T) {
	t.Run("no recipients", func(t *testing.T) {
		f := newFixture(t)

		def := workflow.Definition{
			Steps: []workflow.StepSpec{
				{ID: "email", Kind: workflow.KindEmailNotifier},
				{ID: "whatsapp", Kind: workflow.KindMessagingNotifier},
			},
			Edges: []workflow.Edge{
				{From: "lead", To: "email"}, {From: "email", To: "whatsapp"}, {From: "whatsapp", To: workflow.End},
			},
		}

		result, err := f.engine.RunDefinition(context.Background(), def)
		require.NoError(t, err)

		assert.Equal(t, []workflow.StepError{
			{Step: "email", Kind: workflow.KindEmailNotifier, Message: "no email recipient"},
			{Step: "whatsapp", Kind: workflow.KindMessagingNotifier, Message: "no messaging recipient"},
		}, result.State.Errors)
		assert.Empty(t, f.mailer.sent)
	})

	t.Run("transport failure", func(t *testing.T) {
		f := newFixture(t)
		f.mailer.err = notify.ErrTransport
		insertLead(t, f, &models.Lead{Name: "A", Email: "a@x.com"})

		result, err := f.engine.RunDefinition(context.Background(), emailFlow)
		require.NoError(t, err)

		require.Len(t, result.State.Errors, 1)
		assert.Equal(t, "email", result.State.Errors[0].Step)
		assert.Contains(t, result.State.Errors[0].Message, notify.ErrTransport.Error())
		assert.Equal(t, "a@x.com", *result.State.Email)
	})

	t.Run("messaging without phone", func(t *testing.T) {
		f := newFixture(t)
		insertLead(t, f, &models.Lead{Name: "A", Email: "a@x.com"})

		def := workflow.Definition{
			Steps: []workflow.StepSpec{{ID: "whatsapp", Kind: workflow.KindMessagingNotifier}},
			Edges: []workflow.Edge{{From: "lead", To: "whatsapp"}, {From: "whatsapp", To: workflow.End}},
		}

		result, err := f.engine.RunDefinition(context.Background(), def)
		require.NoError(t, err)

		require.NotNil(t, result.State.WhatsApp)
		assert.Empty(t, *result.State.WhatsApp)
		require.Len(t, result.State.Errors, 1)
		assert.Equal(t, "no messaging recipient", result.State.Errors[0].Message)
	})
}

func TestEngine_DefineRejectsInvalidGraphs(t *testing.T) {
	tests := []struct {
		name    string
		def     workflow.Definition
		wantErr error
	}{
		{
			name:    "edge to unknown step",
			def:     workflow.Definition{Edges: []workflow.Edge{{From: "lead", To: "ghost"}}},
			wantErr: workflow.ErrUnknownStep,
		},
		{
			name:    "unknown entry",
			def:     workflow.Definition{Edges: []workflow.Edge{{From: "lead", To: workflow.End}}, Entry: "ghost"},
			wantErr: workflow.ErrUnknownEntry,
		},
		{
			name:    "lead without transition",
			def:     workflow.Definition{},
			wantErr: workflow.ErrNoTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.engine.Define(ctx, tt.def)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, workflow.IsGraphCompilationError(err))

			current, err := f.engine.Current(ctx)
			require.NoError(t, err)
			assert.Equal(t, workflow.DefaultDefinition(), current)
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestEngine_RunDefinitionCompilationFailure(t *testing.T) {
	f := newFixture(t)

	result, err := f.engine.RunDefinition(context.Background(), workflow.Definition{Entry: "ghost"})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, workflow.IsGraphCompilationError(err))
	assert.Equal(t, []events.EventType{events.WorkflowRunFailedEvent}, f.publisher.events)
}

func TestEngine_UnreachableStepsNeverRun(t *testing.T) {
	emails := newCountingFactory(workflow.KindEmailNotifier)

	registry := workflow.NewRegistry(slog.Default())
	registry.Register(newCountingFactory(workflow.KindLeadSource))
	registry.Register(emails)

	engine := workflow.NewEngine(slog.Default(), registry, workflow.NewMemoryDefinitionStore())

	def := workflow.Definition{
		Steps: steps("email", "orphan"),
		Edges: []workflow.Edge{{From: "lead", To: "email"}, {From: "email", To: workflow.End}, {From: "orphan", To: workflow.End}},
	}

	result, err := engine.RunDefinition(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, []string{"lead", "email"}, result.Visited)
	assert.Equal(t, 1, emails.count("email"))
	assert.Equal(t, 0, emails.count("orphan"))
}

func TestEngine_ExecutionFailures(t *testing.T) {
	t.Run("step error", func(t *testing.T) {
		emails := newCountingFactory(workflow.KindEmailNotifier)
		emails.fail["email"] = errStepBoom

		registry := workflow.NewRegistry(slog.Default())
		registry.Register(newCountingFactory(workflow.KindLeadSource))
		registry.Register(emails)

		publisher := &recordingPublisher{}
		engine := workflow.NewEngine(slog.Default(), registry, workflow.NewMemoryDefinitionStore(), workflow.WithPublisher(publisher))

		result, err := engine.RunDefinition(context.Background(), emailFlow)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, errStepBoom)

		var execErr *workflow.GraphExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "email", execErr.Step)
		assert.NotEmpty(t, execErr.RunID)
		assert.Equal(t, []events.EventType{events.WorkflowRunStartedEvent, events.WorkflowRunFailedEvent}, publisher.events)
	})

	t.Run("path longer than hop limit", func(t *testing.T) {
		f := newFixture(t, workflow.WithMaxHops(1))

		_, err := f.engine.RunDefinition(context.Background(), emailFlow)
		require.Error(t, err)
		assert.ErrorIs(t, err, workflow.ErrHopLimitExceeded)
		assert.True(t, workflow.IsGraphCompilationError(err))
		assert.Empty(t, f.mailer.sent)
	})

	t.Run("cancelled context", func(t *testing.T) {
		f := newFixture(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.engine.RunDefinition(ctx, emailFlow)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.True(t, workflow.IsGraphExecutionError(err))
	})
}

func TestEngine_DefineBumpsVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Define(ctx, emailFlow)
	require.NoError(t, err)

	second, err := f.engine.Define(ctx, workflow.DefaultDefinition())
	require.NoError(t, err)

	assert.Equal(t, first.Version+1, second.Version)

	current, err := f.engine.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Version, current.Version)
	assert.Equal(t, []string{"lead"}, current.StepIDs())
	assert.Equal(t, []events.EventType{events.WorkflowDefinedEvent, events.WorkflowDefinedEvent}, f.publisher.events)
}

func TestEngine_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := trace.NewTracerProvider(trace.WithSpanProcessor(recorder))

	f := newFixture(t, workflow.WithTracer(provider.Tracer("test")))
	insertLead(t, f, &models.Lead{Name: "A", Email: "a@x.com"})

	_, err := f.engine.RunDefinition(context.Background(), emailFlow)
	require.NoError(t, err)

	names := make([]string, 0)
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}

	assert.ElementsMatch(t, []string{"workflow.step", "workflow.step", "workflow.run"}, names)
}

func TestEngine_LeadStoreFailureFailsRun(t *testing.T) {
	errDown := errors.New("connection refused")

	store := &mocks.MockLeadStore{}
	store.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, errDown)

	logger := slog.Default()
	mailer := &recordingMailer{}
	registry := workflow.NewDefaultRegistry(logger, store, mailer, notify.NewLogMessenger(logger), nil)
	engine := workflow.NewEngine(logger, registry, workflow.NewMemoryDefinitionStore())

	_, err := engine.RunDefinition(context.Background(), emailFlow)
	require.Error(t, err)
	assert.True(t, workflow.IsGraphExecutionError(err))
	assert.ErrorIs(t, err, errDown)

	var execErr *workflow.GraphExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, workflow.LeadStepID, execErr.Step)
	assert.Empty(t, mailer.sent)
}

// messagingChain builds lead -> m0 -> ... -> m(n-1) -> __end__, a path of n+1 steps.
func messagingChain(n int) workflow.Definition {
	def := workflow.Definition{}
	from := workflow.LeadStepID

	for i := range n {
		id := fmt.Sprintf("m%d", i)
		def.Steps = append(def.Steps, workflow.StepSpec{ID: id, Kind: workflow.KindMessagingNotifier})
		def.Edges = append(def.Edges, workflow.Edge{From: from, To: id})
		from = id
	}

	def.Edges = append(def.Edges, workflow.Edge{From: from, To: workflow.End})

	return def
}

func TestEngine_HopLimitBoundary(t *testing.T) {
	tests := []struct {
		name    string
		steps   int
		wantErr bool
	}{
		{name: "path at the limit", steps: workflow.DefaultMaxHops - 1},
		{name: "path one over the limit", steps: workflow.DefaultMaxHops, wantErr: true},
		{name: "long chain", steps: 70, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			insertLead(t, f, &models.Lead{Name: "A", Email: "a@x.com", Phone: "+15550100"})

			def := messagingChain(tt.steps)

			_, err := f.engine.Define(context.Background(), def)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, workflow.ErrHopLimitExceeded)
				assert.True(t, workflow.IsGraphCompilationError(err))

				current, err := f.engine.Current(context.Background())
				require.NoError(t, err)
				assert.Equal(t, []string{workflow.LeadStepID}, current.StepIDs())

				return
			}

			require.NoError(t, err)

			result, err := f.engine.Run(context.Background())
			require.NoError(t, err)
			assert.Len(t, result.Visited, workflow.DefaultMaxHops)
			assert.Len(t, f.messenger.sent, tt.steps)
		})
	}
}

var contactFlow = workflow.Definition{
	Steps: []workflow.StepSpec{
		{ID: "email", Kind: workflow.KindEmailNotifier},
		{ID: "status", Kind: workflow.KindStatusUpdater},
	},
	Edges: []workflow.Edge{
		{From: "lead", To: "email"}, {From: "email", To: "status"}, {From: "status", To: workflow.End},
	},
}

func TestEngine_StatusUpdaterMarksLeadContacted(t *testing.T) {
	logger := slog.Default()
	store := file.NewStore(t.TempDir())
	mailer := &recordingMailer{}

	registry := workflow.NewDefaultRegistry(logger, store, mailer, notify.NewLogMessenger(logger),
		services.NewLead(logger, store, nil))
	engine := workflow.NewEngine(logger, registry, workflow.NewMemoryDefinitionStore())

	lead := &models.Lead{Name: "A", Email: "a@x.com"}
	require.NoError(t, store.Insert(context.Background(), lead))

	result, err := engine.RunDefinition(context.Background(), contactFlow)
	require.NoError(t, err)
	assert.Empty(t, result.State.Errors)
	require.NotNil(t, result.State.LeadID)
	assert.Equal(t, lead.ID, *result.State.LeadID)
	assert.Len(t, mailer.sent, 1)

	got, err := store.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusContacted, got.Status)
	assert.NotNil(t, got.DateContacted)
}

func TestEngine_StatusUpdaterFailuresAreRecorded(t *testing.T) {
	t.Run("no lead", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.engine.RunDefinition(context.Background(), contactFlow)
		require.NoError(t, err)

		assert.Contains(t, result.State.Errors,
			workflow.StepError{Step: "status", Kind: workflow.KindStatusUpdater, Message: "no lead to update"})
	})

	t.Run("no updater configured", func(t *testing.T) {
		f := newFixture(t)
		insertLead(t, f, &models.Lead{Name: "A", Email: "a@x.com"})

		result, err := f.engine.RunDefinition(context.Background(), contactFlow)
		require.NoError(t, err)

		assert.Equal(t, []workflow.StepError{
			{Step: "status", Kind: workflow.KindStatusUpdater, Message: "status updates are not configured"},
		}, result.State.Errors)
	})
}
