package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/leads"
	"github.com/dukex/leadflow/pkg/leads/file"
	"github.com/dukex/leadflow/pkg/notify"
	"github.com/dukex/leadflow/pkg/workflow"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Email
	err  error
}

func (m *recordingMailer) Send(_ context.Context, email notify.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, email)

	return m.err
}

type recordingMessenger struct {
	sent []notify.Message
}

func (m *recordingMessenger) Send(_ context.Context, message notify.Message) error {
	m.sent = append(m.sent, message)

	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.EventType
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event.GetType())

	return nil
}

// countingFactory creates steps of kind that count their invocations and optionally fail.
type countingFactory struct {
	kind  workflow.Kind
	calls map[string]int
	fail  map[string]error
	mu    sync.Mutex
}

func newCountingFactory(kind workflow.Kind) *countingFactory {
	return &countingFactory{kind: kind, calls: map[string]int{}, fail: map[string]error{}}
}

func (f *countingFactory) Kind() workflow.Kind { return f.kind }

func (f *countingFactory) Create(id string) (workflow.Step, error) {
	return &countingStep{id: id, factory: f}, nil
}

func (f *countingFactory) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[id]
}

type countingStep struct {
	id      string
	factory *countingFactory
}

func (s *countingStep) ID() string          { return s.id }
func (s *countingStep) Kind() workflow.Kind { return s.factory.kind }

func (s *countingStep) Execute(_ context.Context, _ workflow.State) (workflow.State, error) {
	s.factory.mu.Lock()
	defer s.factory.mu.Unlock()

	s.factory.calls[s.id]++

	return workflow.State{}, s.factory.fail[s.id]
}

var errStepBoom = errors.New("boom")

type fixture struct {
	store     leads.Store
	mailer    *recordingMailer
	messenger *recordingMessenger
	publisher *recordingPublisher
	engine    *workflow.Engine
}

func newFixture(t *testing.T, opts ...workflow.Option) *fixture {
	t.Helper()

	f := &fixture{
		store:     file.NewStore(t.TempDir()),
		mailer:    &recordingMailer{},
		messenger: &recordingMessenger{},
		publisher: &recordingPublisher{},
	}

	registry := workflow.NewDefaultRegistry(slog.Default(), f.store, f.mailer, f.messenger, nil)

	opts = append([]workflow.Option{workflow.WithPublisher(f.publisher)}, opts...)
	f.engine = workflow.NewEngine(slog.Default(), registry, workflow.NewMemoryDefinitionStore(), opts...)

	return f
}
