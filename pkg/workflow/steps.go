package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/leads"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/notify"
)

// NewDefaultRegistry registers a factory for every kind. updater may be nil, in which
// case status-updater steps record a step error instead of changing the lead.
func NewDefaultRegistry(
	logger *slog.Logger,
	store leads.Store,
	mailer notify.Mailer,
	messenger notify.Messenger,
	updater StatusUpdater,
) *Registry {
	registry := NewRegistry(logger)
	registry.Register(NewLeadSourceFactory(store))
	registry.Register(NewEmailNotifierFactory(logger, mailer))
	registry.Register(NewMessagingNotifierFactory(logger, messenger))
	registry.Register(NewStatusUpdaterFactory(logger, updater, models.LeadStatusContacted))

	return registry
}

// LeadSourceFactory creates steps that seed the state from the most recent lead.
type LeadSourceFactory struct {
	store leads.Store
}

func NewLeadSourceFactory(store leads.Store) *LeadSourceFactory {
	return &LeadSourceFactory{store: store}
}

func (f *LeadSourceFactory) Kind() Kind { return KindLeadSource }

func (f *LeadSourceFactory) Create(id string) (Step, error) {
	return &leadSourceStep{id: id, store: f.store}, nil
}

type leadSourceStep struct {
	id    string
	store leads.Store
}

func (s *leadSourceStep) ID() string { return s.id }
func (s *leadSourceStep) Kind() Kind { return KindLeadSource }

func (s *leadSourceStep) Execute(ctx context.Context, _ State) (State, error) {
	lead, err := leads.Latest(ctx, s.store)
	if err != nil {
		return State{}, fmt.Errorf("failed to load latest lead: %w", err)
	}

	if lead == nil {
		return State{}, nil
	}

	// nil is reserved for "no lead"; a lead without a phone yields "".
	return State{
		LeadID:   stringPtr(lead.ID),
		Email:    stringPtr(lead.Email),
		WhatsApp: stringPtr(lead.Phone),
	}, nil
}

// EmailNotifierFactory creates steps that email the lead in state.
type EmailNotifierFactory struct {
	mailer notify.Mailer
	logger *slog.Logger
}

func NewEmailNotifierFactory(logger *slog.Logger, mailer notify.Mailer) *EmailNotifierFactory {
	return &EmailNotifierFactory{mailer: mailer, logger: logger}
}

func (f *EmailNotifierFactory) Kind() Kind { return KindEmailNotifier }

func (f *EmailNotifierFactory) Create(id string) (Step, error) {
	return &emailNotifierStep{id: id, mailer: f.mailer, logger: f.logger.With("step_id", id)}, nil
}

type emailNotifierStep struct {
	id     string
	mailer notify.Mailer
	logger *slog.Logger
}

func (s *emailNotifierStep) ID() string { return s.id }
func (s *emailNotifierStep) Kind() Kind { return KindEmailNotifier }

// Execute never fails the run: delivery problems are recorded in the state.
func (s *emailNotifierStep) Execute(ctx context.Context, state State) (State, error) {
	if state.Email == nil || *state.Email == "" {
		s.logger.WarnContext(ctx, "No email recipient in state")

		return s.failed("no email recipient"), nil
	}

	err := s.mailer.Send(ctx, notify.LeadEmail(*state.Email))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to send email", "to", *state.Email, "error", err)

		return s.failed(err.Error()), nil
	}

	return State{}, nil
}

func (s *emailNotifierStep) failed(message string) State {
	return State{Errors: []StepError{{Step: s.id, Kind: KindEmailNotifier, Message: message}}}
}

// MessagingNotifierFactory creates steps that message the lead's phone in state.
type MessagingNotifierFactory struct {
	messenger notify.Messenger
	logger    *slog.Logger
}

func NewMessagingNotifierFactory(logger *slog.Logger, messenger notify.Messenger) *MessagingNotifierFactory {
	return &MessagingNotifierFactory{messenger: messenger, logger: logger}
}

func (f *MessagingNotifierFactory) Kind() Kind { return KindMessagingNotifier }

func (f *MessagingNotifierFactory) Create(id string) (Step, error) {
	return &messagingNotifierStep{id: id, messenger: f.messenger, logger: f.logger.With("step_id", id)}, nil
}

type messagingNotifierStep struct {
	id        string
	messenger notify.Messenger
	logger    *slog.Logger
}

func (s *messagingNotifierStep) ID() string { return s.id }
func (s *messagingNotifierStep) Kind() Kind { return KindMessagingNotifier }

func (s *messagingNotifierStep) Execute(ctx context.Context, state State) (State, error) {
	if state.WhatsApp == nil || *state.WhatsApp == "" {
		s.logger.WarnContext(ctx, "No messaging recipient in state")

		return s.failed("no messaging recipient"), nil
	}

	err := s.messenger.Send(ctx, notify.LeadMessage(*state.WhatsApp))
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to send message", "to", *state.WhatsApp, "error", err)

		return s.failed(err.Error()), nil
	}

	return State{}, nil
}

func (s *messagingNotifierStep) failed(message string) State {
	return State{Errors: []StepError{{Step: s.id, Kind: KindMessagingNotifier, Message: message}}}
}

// StatusUpdater changes a lead's pipeline status.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status models.LeadStatus) (*models.Lead, error)
}

// StatusUpdaterFactory creates steps that move the lead in state to a fixed status.
type StatusUpdaterFactory struct {
	updater StatusUpdater
	status  models.LeadStatus
	logger  *slog.Logger
}

func NewStatusUpdaterFactory(logger *slog.Logger, updater StatusUpdater, status models.LeadStatus) *StatusUpdaterFactory {
	return &StatusUpdaterFactory{updater: updater, status: status, logger: logger}
}

func (f *StatusUpdaterFactory) Kind() Kind { return KindStatusUpdater }

func (f *StatusUpdaterFactory) Create(id string) (Step, error) {
	return &statusUpdaterStep{
		id:      id,
		updater: f.updater,
		status:  f.status,
		logger:  f.logger.With("step_id", id),
	}, nil
}

type statusUpdaterStep struct {
	id      string
	updater StatusUpdater
	status  models.LeadStatus
	logger  *slog.Logger
}

func (s *statusUpdaterStep) ID() string { return s.id }
func (s *statusUpdaterStep) Kind() Kind { return KindStatusUpdater }

// Execute records failures in the state like the notifiers do.
func (s *statusUpdaterStep) Execute(ctx context.Context, state State) (State, error) {
	if state.LeadID == nil || *state.LeadID == "" {
		s.logger.WarnContext(ctx, "No lead in state to update")

		return s.failed("no lead to update"), nil
	}

	if s.updater == nil {
		return s.failed("status updates are not configured"), nil
	}

	if _, err := s.updater.UpdateStatus(ctx, *state.LeadID, s.status); err != nil {
		s.logger.ErrorContext(ctx, "Failed to update lead status", "lead_id", *state.LeadID, "error", err)

		return s.failed(err.Error()), nil
	}

	return State{}, nil
}

func (s *statusUpdaterStep) failed(message string) State {
	return State{Errors: []StepError{{Step: s.id, Kind: KindStatusUpdater, Message: message}}}
}
