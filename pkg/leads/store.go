// Package leads provides the lead document store abstraction and its filter language.
package leads

import (
	"context"
	"slices"

	"github.com/dukex/leadflow/pkg/models"
)

// Sort orders.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// SortFields lists the lead fields a store can sort on.
var SortFields = []string{
	models.LeadFieldCreatedAt,
	models.LeadFieldName,
	models.LeadFieldEmail,
	models.LeadFieldStatus,
	models.LeadFieldSource,
}

// FindOptions controls ordering and windowing of Find results.
type FindOptions struct {
	SortField string
	SortOrder string
	Skip      int
	Limit     int // 0 means no limit
}

// Normalize applies defaults and validates the sort parameters.
func (o FindOptions) Normalize() (FindOptions, error) {
	if o.SortField == "" {
		o.SortField = models.LeadFieldCreatedAt
	}

	if o.SortOrder == "" {
		o.SortOrder = SortDesc
	}

	if !slices.Contains(SortFields, o.SortField) {
		return o, NewLeadError("Find", "", ErrInvalidSortField)
	}

	if o.SortOrder != SortAsc && o.SortOrder != SortDesc {
		return o, NewLeadError("Find", "", ErrInvalidSortOrder)
	}

	if o.Skip < 0 {
		o.Skip = 0
	}

	if o.Limit < 0 {
		o.Limit = 0
	}

	return o, nil
}

// Store persists lead documents.
type Store interface {
	Insert(ctx context.Context, lead *models.Lead) error
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]*models.Lead, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	GetByID(ctx context.Context, id string) (*models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
	Delete(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// Latest returns the most recently created lead, or nil when the store is empty.
func Latest(ctx context.Context, store Store) (*models.Lead, error) {
	found, err := store.Find(ctx, Filter{}, FindOptions{
		SortField: models.LeadFieldCreatedAt,
		SortOrder: SortDesc,
		Limit:     1,
	})
	if err != nil {
		return nil, err
	}

	if len(found) == 0 {
		return nil, nil
	}

	return found[0], nil
}
