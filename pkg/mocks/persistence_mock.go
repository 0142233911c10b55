package mocks

import (
	"context"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockDefinitionRepository is a mock implementation of persistence.DefinitionRepository.
type MockDefinitionRepository struct {
	mock.Mock
}

func (m *MockDefinitionRepository) Create(ctx context.Context, definition *models.WorkflowDefinition) error {
	args := m.Called(ctx, definition)

	return args.Error(0)
}

func (m *MockDefinitionRepository) Update(ctx context.Context, definition *models.WorkflowDefinition, expectedVersion int) error {
	args := m.Called(ctx, definition, expectedVersion)

	return args.Error(0)
}

func (m *MockDefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.WorkflowDefinition, error) {
	args := m.Called(ctx, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowDefinition), args.Error(1)
}

func (m *MockDefinitionRepository) ListActiveScheduled(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowDefinition), args.Error(1)
}

// MockRunRepository is a mock implementation of persistence.RunRepository.
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

func (m *MockRunRepository) UpdateRun(ctx context.Context, run *models.WorkflowRun, expectedVersion int) error {
	args := m.Called(ctx, run, expectedVersion)

	return args.Error(0)
}

func (m *MockRunRepository) GetRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowRun), args.Error(1)
}

func (m *MockRunRepository) ListRunsByDefinition(ctx context.Context, definitionID string) ([]*models.WorkflowRun, error) {
	args := m.Called(ctx, definitionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowRun), args.Error(1)
}

func (m *MockRunRepository) ListRunsByStatus(ctx context.Context, status models.RunStatus) ([]*models.WorkflowRun, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowRun), args.Error(1)
}

func (m *MockRunRepository) ListRunsAssignedTo(ctx context.Context, assigneeID string) ([]*models.WorkflowRun, error) {
	args := m.Called(ctx, assigneeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowRun), args.Error(1)
}

// MockDashboardRepository is a mock implementation of persistence.DashboardRepository.
type MockDashboardRepository struct {
	mock.Mock
}

func (m *MockDashboardRepository) ListByOwner(ctx context.Context, owner models.Owner) ([]*models.SavedDashboard, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.SavedDashboard), args.Error(1)
}

func (m *MockDashboardRepository) GetByID(ctx context.Context, id string) (*models.SavedDashboard, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.SavedDashboard), args.Error(1)
}

func (m *MockDashboardRepository) Save(ctx context.Context, dashboard *models.SavedDashboard) error {
	args := m.Called(ctx, dashboard)

	return args.Error(0)
}

func (m *MockDashboardRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockDashboardRepository) SetDefault(ctx context.Context, owner models.Owner, id string) error {
	args := m.Called(ctx, owner, id)

	return args.Error(0)
}

// MockRotationCursor is a mock implementation of persistence.RotationCursor.
type MockRotationCursor struct {
	mock.Mock
}

func (m *MockRotationCursor) Next(ctx context.Context, key string) (int64, error) {
	args := m.Called(ctx, key)

	return args.Get(0).(int64), args.Error(1)
}

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock

	definitionRepo *MockDefinitionRepository
	runRepo        *MockRunRepository
	dashboardRepo  *MockDashboardRepository
	rotationCursor *MockRotationCursor
}

func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		definitionRepo: &MockDefinitionRepository{},
		runRepo:        &MockRunRepository{},
		dashboardRepo:  &MockDashboardRepository{},
		rotationCursor: &MockRotationCursor{},
	}
}

func (m *MockPersistence) GetMockDefinitionRepository() *MockDefinitionRepository {
	return m.definitionRepo
}

func (m *MockPersistence) GetMockRunRepository() *MockRunRepository {
	return m.runRepo
}

func (m *MockPersistence) GetMockDashboardRepository() *MockDashboardRepository {
	return m.dashboardRepo
}

func (m *MockPersistence) GetMockRotationCursor() *MockRotationCursor {
	return m.rotationCursor
}

func (m *MockPersistence) DefinitionRepository() persistence.DefinitionRepository {
	return m.definitionRepo
}

func (m *MockPersistence) RunRepository() persistence.RunRepository {
	return m.runRepo
}

func (m *MockPersistence) DashboardRepository() persistence.DashboardRepository {
	return m.dashboardRepo
}

func (m *MockPersistence) RotationCursor() persistence.RotationCursor {
	return m.rotationCursor
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
