// Package persistence provides the storage abstraction for workflow definitions,
// workflow runs, saved dashboards and round-robin cursors.
package persistence

import (
	"context"

	"github.com/dukex/agencyflow/pkg/models"
)

type Persistence interface {
	DefinitionRepository() DefinitionRepository
	RunRepository() RunRepository
	DashboardRepository() DashboardRepository
	RotationCursor() RotationCursor

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionRepository stores workflow definitions together with their steps.
type DefinitionRepository interface {
	// Create stores a new definition and its steps as given.
	Create(ctx context.Context, definition *models.WorkflowDefinition) error
	// Update replaces a definition and its full step list only if the stored
	// version equals expectedVersion, then sets definition.Version to
	// expectedVersion+1. A mismatch returns ErrStaleDefinition.
	Update(ctx context.Context, definition *models.WorkflowDefinition, expectedVersion int) error
	// GetByID returns ErrDefinitionNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	// ListByOrganization orders by most recently updated first.
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.WorkflowDefinition, error)
	// ListActiveScheduled returns active SCHEDULED definitions of every organization.
	ListActiveScheduled(ctx context.Context) ([]*models.WorkflowDefinition, error)
}

// RunRepository stores workflow runs. Every mutation after creation is a
// compare-and-swap on WorkflowRun.Version.
type RunRepository interface {
	CreateRun(ctx context.Context, run *models.WorkflowRun) error
	// UpdateRun persists run only if the stored version equals expectedVersion,
	// then sets run.Version to expectedVersion+1. A mismatch returns ErrStaleRun.
	UpdateRun(ctx context.Context, run *models.WorkflowRun, expectedVersion int) error
	// GetRun returns ErrRunNotFound when absent.
	GetRun(ctx context.Context, id string) (*models.WorkflowRun, error)
	// ListRunsByDefinition orders by start time, newest first.
	ListRunsByDefinition(ctx context.Context, definitionID string) ([]*models.WorkflowRun, error)
	// ListRunsAssignedTo returns running runs whose in-progress execution is
	// assigned to assigneeID.
	ListRunsAssignedTo(ctx context.Context, assigneeID string) ([]*models.WorkflowRun, error)
	// ListRunsByStatus orders by start time, newest first.
	ListRunsByStatus(ctx context.Context, status models.RunStatus) ([]*models.WorkflowRun, error)
}

// DashboardRepository stores saved dashboards.
type DashboardRepository interface {
	// ListByOwner orders by most recently updated first.
	ListByOwner(ctx context.Context, owner models.Owner) ([]*models.SavedDashboard, error)
	// GetByID returns ErrDashboardNotFound when absent.
	GetByID(ctx context.Context, id string) (*models.SavedDashboard, error)
	// Save creates or updates a dashboard. It never changes the stored default
	// flag; dashboard.IsDefault is overwritten with the stored value.
	Save(ctx context.Context, dashboard *models.SavedDashboard) error
	// Delete returns ErrDashboardNotFound when absent.
	Delete(ctx context.Context, id string) error
	// SetDefault clears IsDefault on every dashboard of owner and sets it on id,
	// atomically. Returns ErrDashboardNotFound when id is not owned by owner.
	SetDefault(ctx context.Context, owner models.Owner, id string) error
}

// RotationCursor is an atomic fetch-and-increment counter keyed by name.
type RotationCursor interface {
	// Next returns the current value for key and advances it by one.
	// The first call for a key returns 0.
	Next(ctx context.Context, key string) (int64, error)
}
