package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/google/uuid"
)

// DashboardRepository handles saved dashboard database operations.
type DashboardRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDashboardRepository creates a new dashboard repository.
func NewDashboardRepository(db *sql.DB, logger *slog.Logger) *DashboardRepository {
	return &DashboardRepository{db: db, logger: logger}
}

const dashboardColumns = `
	id
  , user_id
  , organization_id
  , name
  , is_default
  , layout
  , created_at
  , updated_at
`

func (r *DashboardRepository) ListByOwner(ctx context.Context, owner models.Owner) ([]*models.SavedDashboard, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+dashboardColumns+` FROM dashboards
		WHERE user_id = $1 AND organization_id = $2
		ORDER BY updated_at DESC
	`, owner.UserID, owner.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dashboards: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	dashboards := make([]*models.SavedDashboard, 0)

	for rows.Next() {
		dashboard, err := r.scanDashboard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dashboard: %w", err)
		}

		dashboards = append(dashboards, dashboard)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dashboards: %w", err)
	}

	return dashboards, nil
}

func (r *DashboardRepository) GetByID(ctx context.Context, id string) (*models.SavedDashboard, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+dashboardColumns+" FROM dashboards WHERE id = $1", id)

	dashboard, err := r.scanDashboard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDashboardError("GetByID", id, persistence.ErrDashboardNotFound)
		}

		return nil, persistence.NewDashboardError("GetByID", id, err)
	}

	return dashboard, nil
}

func (r *DashboardRepository) Save(ctx context.Context, dashboard *models.SavedDashboard) error {
	if dashboard.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewDashboardError("Save", "", err)
		}

		dashboard.ID = id.String()
	}

	now := time.Now().UTC()
	if dashboard.CreatedAt.IsZero() {
		dashboard.CreatedAt = now
	}

	dashboard.UpdatedAt = now

	layout, err := jsonColumn(dashboard.Layout)
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	// is_default is only written by SetDefault.
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO dashboards (`+dashboardColumns+`)
		VALUES ($1, $2, $3, $4, false, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			layout = EXCLUDED.layout,
			updated_at = EXCLUDED.updated_at
		RETURNING is_default, created_at
	`,
		dashboard.ID,
		dashboard.Owner.UserID,
		dashboard.Owner.OrganizationID,
		dashboard.Name,
		layout,
		dashboard.CreatedAt,
		dashboard.UpdatedAt,
	)

	if err := row.Scan(&dashboard.IsDefault, &dashboard.CreatedAt); err != nil {
		return persistence.NewDashboardError("Save", dashboard.ID, err)
	}

	return nil
}

func (r *DashboardRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM dashboards WHERE id = $1", id)
	if err != nil {
		return persistence.NewDashboardError("Delete", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewDashboardError("Delete", id, err)
	}

	if affected == 0 {
		return persistence.NewDashboardError("Delete", id, persistence.ErrDashboardNotFound)
	}

	return nil
}

// SetDefault locks every dashboard of the owner, so concurrent calls for the
// same owner serialize, then clears and sets the default in two statements.
func (r *DashboardRepository) SetDefault(ctx context.Context, owner models.Owner, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM dashboards
		WHERE user_id = $1 AND organization_id = $2
		ORDER BY id
		FOR UPDATE
	`, owner.UserID, owner.OrganizationID)
	if err != nil {
		return persistence.NewDashboardError("SetDefault", id, err)
	}

	var owned []string

	for rows.Next() {
		var dashboardID string
		if err = rows.Scan(&dashboardID); err != nil {
			closeRows(ctx, r.logger, rows)

			return persistence.NewDashboardError("SetDefault", id, err)
		}

		owned = append(owned, dashboardID)
	}

	closeRows(ctx, r.logger, rows)

	if err = rows.Err(); err != nil {
		return persistence.NewDashboardError("SetDefault", id, err)
	}

	if !slices.Contains(owned, id) {
		return persistence.NewDashboardError("SetDefault", id, persistence.ErrDashboardNotFound)
	}

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE dashboards SET is_default = false, updated_at = $3
		WHERE user_id = $1 AND organization_id = $2 AND is_default AND id <> $4
	`, owner.UserID, owner.OrganizationID, now, id)
	if err != nil {
		return persistence.NewDashboardError("SetDefault", id, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE dashboards SET is_default = true, updated_at = $2
		WHERE id = $1 AND NOT is_default
	`, id, now)
	if err != nil {
		return persistence.NewDashboardError("SetDefault", id, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *DashboardRepository) scanDashboard(row scanner) (*models.SavedDashboard, error) {
	var (
		dashboard models.SavedDashboard
		layout    []byte
	)

	err := row.Scan(
		&dashboard.ID,
		&dashboard.Owner.UserID,
		&dashboard.Owner.OrganizationID,
		&dashboard.Name,
		&dashboard.IsDefault,
		&layout,
		&dashboard.CreatedAt,
		&dashboard.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	dashboard.Layout = &models.LayoutConfig{}
	if err := decodeJSON(layout, dashboard.Layout); err != nil {
		return nil, fmt.Errorf("failed to unmarshal layout: %w", err)
	}

	return &dashboard, nil
}
