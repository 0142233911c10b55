package file

import (
	"context"
	"slices"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/google/uuid"
)

const dashboardsCollection = "dashboards"

// DashboardRepository handles saved dashboard file operations.
type DashboardRepository struct {
	store *Persistence
}

func (r *DashboardRepository) ListByOwner(_ context.Context, owner models.Owner) ([]*models.SavedDashboard, error) {
	dashboards, err := readAll[models.SavedDashboard](r.store, dashboardsCollection)
	if err != nil {
		return nil, err
	}

	dashboards = slices.DeleteFunc(dashboards, func(d *models.SavedDashboard) bool {
		return !d.OwnedBy(owner)
	})

	slices.SortFunc(dashboards, func(a, b *models.SavedDashboard) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	return dashboards, nil
}

func (r *DashboardRepository) GetByID(_ context.Context, id string) (*models.SavedDashboard, error) {
	var dashboard models.SavedDashboard

	found, err := r.store.read(dashboardsCollection, id, &dashboard)
	if err != nil {
		return nil, persistence.NewDashboardError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewDashboardError("GetByID", id, persistence.ErrDashboardNotFound)
	}

	return &dashboard, nil
}

func (r *DashboardRepository) Save(_ context.Context, dashboard *models.SavedDashboard) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if dashboard.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewDashboardError("Save", "", err)
		}

		dashboard.ID = id.String()
	}

	// The default flag is owned by SetDefault; keep whatever is stored.
	var stored models.SavedDashboard

	found, err := r.store.read(dashboardsCollection, dashboard.ID, &stored)
	if err != nil {
		return persistence.NewDashboardError("Save", dashboard.ID, err)
	}

	dashboard.IsDefault = found && stored.IsDefault

	now := time.Now().UTC()
	if found {
		dashboard.CreatedAt = stored.CreatedAt
	} else if dashboard.CreatedAt.IsZero() {
		dashboard.CreatedAt = now
	}

	dashboard.UpdatedAt = now

	if err := r.store.write(dashboardsCollection, dashboard.ID, dashboard); err != nil {
		return persistence.NewDashboardError("Save", dashboard.ID, err)
	}

	return nil
}

func (r *DashboardRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	found, err := r.store.remove(dashboardsCollection, id)
	if err != nil {
		return persistence.NewDashboardError("Delete", id, err)
	}

	if !found {
		return persistence.NewDashboardError("Delete", id, persistence.ErrDashboardNotFound)
	}

	return nil
}

// SetDefault runs under the store mutex so concurrent callers serialize.
func (r *DashboardRepository) SetDefault(_ context.Context, owner models.Owner, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	dashboards, err := readAll[models.SavedDashboard](r.store, dashboardsCollection)
	if err != nil {
		return persistence.NewDashboardError("SetDefault", id, err)
	}

	target := slices.IndexFunc(dashboards, func(d *models.SavedDashboard) bool {
		return d.ID == id && d.OwnedBy(owner)
	})
	if target < 0 {
		return persistence.NewDashboardError("SetDefault", id, persistence.ErrDashboardNotFound)
	}

	now := time.Now().UTC()

	for _, dashboard := range dashboards {
		if !dashboard.OwnedBy(owner) {
			continue
		}

		isTarget := dashboard.ID == id
		if dashboard.IsDefault == isTarget {
			continue
		}

		dashboard.IsDefault = isTarget
		dashboard.UpdatedAt = now

		if err := r.store.write(dashboardsCollection, dashboard.ID, dashboard); err != nil {
			return persistence.NewDashboardError("SetDefault", id, err)
		}
	}

	return nil
}
