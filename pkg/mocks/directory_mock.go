package mocks

import (
	"context"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockDirectory is a mock implementation of identity.Directory interface.
type MockDirectory struct {
	mock.Mock
}

func (m *MockDirectory) UserByID(ctx context.Context, id string) (*models.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Identity), args.Error(1)
}

func (m *MockDirectory) MembersWithRole(ctx context.Context, organizationID, role string) ([]*models.Identity, error) {
	args := m.Called(ctx, organizationID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Identity), args.Error(1)
}

func (m *MockDirectory) MembersInDepartment(ctx context.Context, organizationID, department string) ([]*models.Identity, error) {
	args := m.Called(ctx, organizationID, department)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Identity), args.Error(1)
}

func (m *MockDirectory) Members(ctx context.Context, organizationID string) ([]*models.Identity, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Identity), args.Error(1)
}
