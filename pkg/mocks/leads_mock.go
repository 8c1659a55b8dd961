package mocks

import (
	"context"

	"github.com/dukex/leadflow/pkg/leads"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockLeadStore is a mock implementation of leads.Store interface.
type MockLeadStore struct {
	mock.Mock
}

func (m *MockLeadStore) Insert(ctx context.Context, lead *models.Lead) error {
	args := m.Called(ctx, lead)

	return args.Error(0)
}

func (m *MockLeadStore) Find(ctx context.Context, filter leads.Filter, opts leads.FindOptions) ([]*models.Lead, error) {
	args := m.Called(ctx, filter, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Lead), args.Error(1)
}

func (m *MockLeadStore) Count(ctx context.Context, filter leads.Filter) (int64, error) {
	args := m.Called(ctx, filter)

	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLeadStore) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Lead), args.Error(1)
}

func (m *MockLeadStore) Update(ctx context.Context, lead *models.Lead) error {
	args := m.Called(ctx, lead)

	return args.Error(0)
}

func (m *MockLeadStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockLeadStore) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockLeadStore) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
