// Package dashboard persists named widget layouts per owner and keeps at most
// one of them marked as the owner's default.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/agencyflow/pkg/layout"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/google/uuid"
)

// CopySuffix is appended to the dashboard and layout names of a duplicate.
const CopySuffix = " (Copy)"

var (
	// ErrNotFound is returned for dashboards that do not exist or belong to someone else.
	ErrNotFound = persistence.ErrDashboardNotFound

	// ErrNameRequired is returned when neither the dashboard nor its layout is named.
	ErrNameRequired = errors.New("dashboard name is required")
)

// Store is the owner-scoped access path to saved dashboards.
type Store struct {
	repository persistence.DashboardRepository
	registry   *layout.Registry
	logger     *slog.Logger
}

func NewStore(repository persistence.DashboardRepository, registry *layout.Registry, logger *slog.Logger) *Store {
	return &Store{
		repository: repository,
		registry:   registry,
		logger:     logger.With("module", "dashboard_store"),
	}
}

// List returns the owner's dashboards, most recently updated first.
func (s *Store) List(ctx context.Context, owner models.Owner) ([]*models.SavedDashboard, error) {
	dashboards, err := s.repository.ListByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}

	return dashboards, nil
}

// Get returns the dashboard when it exists and is owned by owner.
func (s *Store) Get(ctx context.Context, owner models.Owner, id string) (*models.SavedDashboard, error) {
	dashboard, err := s.repository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !dashboard.OwnedBy(owner) {
		return nil, persistence.NewDashboardError("Get", id, ErrNotFound)
	}

	return dashboard, nil
}

// Save validates config and persists it. When existingID names a dashboard of
// owner it is updated in place, otherwise a new dashboard is created. Nothing is
// written when any widget is invalid.
func (s *Store) Save(
	ctx context.Context,
	owner models.Owner,
	name string,
	config *models.LayoutConfig,
	existingID string,
) (*models.SavedDashboard, error) {
	normalized, err := s.normalize(config)
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(normalized.Name)
	}

	if name == "" {
		return nil, ErrNameRequired
	}

	dashboard := &models.SavedDashboard{Owner: owner}

	if existingID != "" {
		existing, err := s.Get(ctx, owner, existingID)

		switch {
		case err == nil:
			dashboard = existing
		case persistence.IsDashboardNotFound(err):
			s.logger.InfoContext(ctx, "dashboard not owned by caller, creating a new one",
				"dashboard_id", existingID,
				"user_id", owner.UserID)
		default:
			return nil, err
		}
	}

	if dashboard.ID == "" {
		dashboard.ID = uuid.Must(uuid.NewV7()).String()
	}

	dashboard.Name = name
	dashboard.Layout = normalized

	if err := s.repository.Save(ctx, dashboard); err != nil {
		return nil, fmt.Errorf("failed to save dashboard: %w", err)
	}

	s.logger.InfoContext(ctx, "saved dashboard",
		"dashboard_id", dashboard.ID,
		"user_id", owner.UserID,
		"widgets", len(normalized.Widgets))

	return dashboard, nil
}

func (s *Store) Delete(ctx context.Context, owner models.Owner, id string) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}

	if err := s.repository.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "deleted dashboard", "dashboard_id", id, "user_id", owner.UserID)

	return nil
}

// SetDefault marks id as the owner's only default dashboard.
func (s *Store) SetDefault(ctx context.Context, owner models.Owner, id string) error {
	if err := s.repository.SetDefault(ctx, owner, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "set default dashboard", "dashboard_id", id, "user_id", owner.UserID)

	return nil
}

// Duplicate copies a dashboard with fresh widget ids. The copy is never the default.
func (s *Store) Duplicate(ctx context.Context, owner models.Owner, id string) (*models.SavedDashboard, error) {
	source, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	copied := &models.LayoutConfig{Version: models.CurrentLayoutVersion, Columns: models.DefaultColumns}
	if source.Layout != nil {
		copied = source.Layout.Clone()
	}

	if copied.Name != "" {
		copied.Name += CopySuffix
	}

	for _, widget := range copied.Widgets {
		widget.ID = newWidgetID()
	}

	duplicate := &models.SavedDashboard{
		ID:     uuid.Must(uuid.NewV7()).String(),
		Owner:  owner,
		Name:   source.Name + CopySuffix,
		Layout: copied,
	}

	if err := s.repository.Save(ctx, duplicate); err != nil {
		return nil, fmt.Errorf("failed to save dashboard copy: %w", err)
	}

	s.logger.InfoContext(ctx, "duplicated dashboard", "source_id", id, "dashboard_id", duplicate.ID)

	return duplicate, nil
}

// normalize fills defaults on a copy of config and validates it. Widget ids are
// only assigned once the whole layout is known to be valid.
func (s *Store) normalize(config *models.LayoutConfig) (*models.LayoutConfig, error) {
	if config == nil {
		return nil, s.registry.ValidateLayout(nil)
	}

	normalized := config.Clone()

	if normalized.Version == 0 {
		normalized.Version = models.CurrentLayoutVersion
	}

	if normalized.Version > models.CurrentLayoutVersion {
		return nil, &layout.LayoutError{Problems: []error{
			fmt.Errorf("layout version %d is newer than supported version %d", normalized.Version, models.CurrentLayoutVersion),
		}}
	}

	if normalized.Columns == 0 {
		normalized.Columns = models.DefaultColumns
	}

	for _, widget := range normalized.Widgets {
		if widget == nil || widget.Position.W != 0 || widget.Position.H != 0 {
			continue
		}

		size, err := s.registry.DefaultPositionFor(widget.Type)
		if err != nil {
			continue
		}

		widget.Position.W, widget.Position.H = size.W, size.H
	}

	if err := s.registry.ValidateLayout(normalized); err != nil {
		return nil, err
	}

	for _, widget := range normalized.Widgets {
		if widget.ID == "" {
			widget.ID = newWidgetID()
		}
	}

	return normalized, nil
}

func newWidgetID() string {
	return "widget-" + uuid.Must(uuid.NewV7()).String()
}
