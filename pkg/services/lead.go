package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/leads"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	// FilterAll lists leads of every status.
	FilterAll = "all"
)

// LeadStatuses lists the statuses a lead may be moved to.
var LeadStatuses = []models.LeadStatus{
	models.LeadStatusNew,
	models.LeadStatusContacted,
	models.LeadStatusQualified,
	models.LeadStatusLost,
}

type Lead struct {
	store     leads.Store
	publisher eventbus.EventPublisher
	validator *validator.Validate
	logger    *slog.Logger
}

// NewLead creates a new lead service. publisher may be nil.
func NewLead(logger *slog.Logger, store leads.Store, publisher eventbus.EventPublisher) *Lead {
	return &Lead{
		store:     store,
		publisher: publisher,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("module", "lead_service"),
	}
}

// HealthCheck checks the health of the lead store.
func (l *Lead) HealthCheck(ctx context.Context) (string, bool) {
	if l.store == nil {
		return "Lead store not initialized", false
	}

	err := l.store.HealthCheck(ctx)
	if err != nil {
		return "Lead store is unhealthy: " + err.Error(), false
	}

	return "Lead store is healthy", true
}

// Create validates and stores a new lead.
func (l *Lead) Create(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	lead.Name = strings.TrimSpace(lead.Name)
	lead.Email = strings.TrimSpace(lead.Email)
	lead.Phone = strings.TrimSpace(lead.Phone)

	if err := l.validator.Struct(lead); err != nil {
		return nil, NewValidationError("Create", "INVALID_LEAD", err.Error(), fmt.Errorf("%w: %w", ErrInvalidRequest, err))
	}

	if lead.Status != "" && !slices.Contains(LeadStatuses, lead.Status) {
		return nil, invalidStatus("Create", lead.Status)
	}

	lead.ID = ""

	if err := l.store.Insert(ctx, lead); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "Lead created", "lead_id", lead.ID, "source", lead.Source)

	l.publish(ctx, lead.ID, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(events.LeadCreatedEvent),
		LeadID:    lead.ID,
		Email:     lead.Email,
		Source:    lead.Source,
	})

	return lead, nil
}

// SaveExtracted stores a lead captured from an uploaded document.
func (l *Lead) SaveExtracted(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	if lead.Source == "" {
		lead.Source = models.LeadSourceDocument
	}

	return l.Create(ctx, lead)
}

// ListLeadsRequest contains options for listing leads.
type ListLeadsRequest struct {
	Page      int
	Limit     int
	Filter    string
	SortField string
	SortOrder string
}

// ListLeadsResponse contains a page of leads.
type ListLeadsResponse struct {
	Leads []*models.Lead `json:"leads"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// List returns a page of leads filtered by status.
func (l *Lead) List(ctx context.Context, req ListLeadsRequest) (*ListLeadsResponse, error) {
	if err := l.validateListLeadsRequest(&req); err != nil {
		return nil, err
	}

	filter := leads.Filter{}
	if req.Filter != FilterAll {
		filter[models.LeadFieldStatus] = req.Filter
	}

	found, err := l.store.Find(ctx, filter, leads.FindOptions{
		SortField: req.SortField,
		SortOrder: req.SortOrder,
		Skip:      (req.Page - 1) * req.Limit,
		Limit:     req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	total, err := l.store.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}

	return &ListLeadsResponse{
		Leads: found,
		Total: total,
		Page:  req.Page,
		Pages: int((total + int64(req.Limit) - 1) / int64(req.Limit)),
	}, nil
}

// validateListLeadsRequest validates and sets defaults for the request.
func (l *Lead) validateListLeadsRequest(req *ListLeadsRequest) error {
	if req.Page == 0 {
		req.Page = 1
	}

	if req.Page < 0 {
		return NewValidationError("validateListLeadsRequest", "INVALID_PAGE",
			fmt.Sprintf("invalid page %d", req.Page), ErrInvalidPage)
	}

	if req.Limit <= 0 {
		req.Limit = DefaultPageLimit
	}

	if req.Limit > MaxPageLimit {
		req.Limit = MaxPageLimit
	}

	if req.Filter == "" {
		req.Filter = FilterAll
	}

	if req.SortField == "" {
		req.SortField = models.LeadFieldCreatedAt
	}

	if req.SortOrder == "" {
		req.SortOrder = leads.SortDesc
	}

	if !slices.Contains(leads.SortFields, req.SortField) {
		return NewValidationError(
			"validateListLeadsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortField, strings.Join(leads.SortFields, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != leads.SortAsc && req.SortOrder != leads.SortDesc {
		return NewValidationError(
			"validateListLeadsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.Filter != FilterAll && !slices.Contains(LeadStatuses, models.LeadStatus(req.Filter)) {
		return invalidStatus("validateListLeadsRequest", models.LeadStatus(req.Filter))
	}

	return nil
}

// FetchByID retrieves a lead by its ID.
func (l *Lead) FetchByID(ctx context.Context, id string) (*models.Lead, error) {
	return l.store.GetByID(ctx, id)
}

// UpdateStatus moves a lead to status. Moving to Contacted stamps the contact date.
func (l *Lead) UpdateStatus(ctx context.Context, id string, status models.LeadStatus) (*models.Lead, error) {
	if !slices.Contains(LeadStatuses, status) {
		return nil, invalidStatus("UpdateStatus", status)
	}

	lead, err := l.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	lead.SetStatus(status, time.Now())

	if err := l.store.Update(ctx, lead); err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "Lead status updated", "lead_id", id, "status", status)

	l.publish(ctx, id, events.LeadStatusChanged{
		BaseEvent: events.NewBaseEvent(events.LeadStatusChangedEvent),
		LeadID:    id,
		Status:    string(status),
	})

	return lead, nil
}

// Delete removes a lead.
func (l *Lead) Delete(ctx context.Context, id string) error {
	if err := l.store.Delete(ctx, id); err != nil {
		return err
	}

	l.logger.InfoContext(ctx, "Lead deleted", "lead_id", id)

	l.publish(ctx, id, events.LeadDeleted{
		BaseEvent: events.NewBaseEvent(events.LeadDeletedEvent),
		LeadID:    id,
	})

	return nil
}

func (l *Lead) publish(ctx context.Context, key string, event eventbus.Event) {
	if l.publisher == nil {
		return
	}

	if err := l.publisher.Publish(ctx, key, event); err != nil {
		l.logger.WarnContext(ctx, "Failed to publish event", "type", event.GetType(), "error", err)
	}
}

func invalidStatus(op string, status models.LeadStatus) *ServiceError {
	allowed := make([]string, 0, len(LeadStatuses))
	for _, s := range LeadStatuses {
		allowed = append(allowed, string(s))
	}

	return NewValidationError(op, "INVALID_STATUS",
		fmt.Sprintf("invalid status '%s', allowed: %s", status, strings.Join(allowed, ", ")),
		ErrInvalidStatus)
}
