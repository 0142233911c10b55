package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DefinitionRepository handles workflow definition database operations.
type DefinitionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDefinitionRepository creates a new definition repository.
func NewDefinitionRepository(db *sql.DB, logger *slog.Logger) *DefinitionRepository {
	return &DefinitionRepository{db: db, logger: logger}
}

const definitionColumns = `
	id
  , organization_id
  , name
  , description
  , color
  , is_active
  , trigger_type
  , trigger_entity
  , trigger_config
  , default_sla_hours
  , version
  , created_by
  , created_at
  , updated_at
`

// Create inserts the definition and its steps in one transaction.
func (r *DefinitionRepository) Create(ctx context.Context, definition *models.WorkflowDefinition) (err error) {
	if definition.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewDefinitionError("Create", "", err)
		}

		definition.ID = id.String()
	}

	now := time.Now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	triggerConfig, err := jsonColumn(definition.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_definitions (`+definitionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		definition.ID,
		definition.OrganizationID,
		definition.Name,
		definition.Description,
		definition.Color,
		definition.IsActive,
		definition.TriggerType,
		definition.TriggerEntity,
		triggerConfig,
		definition.DefaultSLAHours,
		definition.Version,
		definition.CreatedBy,
		definition.CreatedAt,
		definition.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewDefinitionError("Create", definition.ID, persistence.ErrDefinitionAlreadyExists)
		}

		return persistence.NewDefinitionError("Create", definition.ID, err)
	}

	if err = r.insertSteps(ctx, tx, definition); err != nil {
		return persistence.NewDefinitionError("Create", definition.ID, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update writes the definition only when the stored version still equals
// expectedVersion. The guarded UPDATE holds the row lock until the step list
// has been replaced, so a concurrent Update waits and then fails the check.
func (r *DefinitionRepository) Update(
	ctx context.Context,
	definition *models.WorkflowDefinition,
	expectedVersion int,
) (err error) {
	triggerConfig, err := jsonColumn(definition.TriggerConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger config: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	updatedAt := time.Now().UTC()

	result, err := tx.ExecContext(ctx, `
		UPDATE workflow_definitions SET
			name = $3,
			description = $4,
			color = $5,
			is_active = $6,
			trigger_type = $7,
			trigger_entity = $8,
			trigger_config = $9,
			default_sla_hours = $10,
			version = version + 1,
			updated_at = $11
		WHERE id = $1 AND version = $2
	`,
		definition.ID,
		expectedVersion,
		definition.Name,
		definition.Description,
		definition.Color,
		definition.IsActive,
		definition.TriggerType,
		definition.TriggerEntity,
		triggerConfig,
		definition.DefaultSLAHours,
		updatedAt,
	)
	if err != nil {
		return persistence.NewDefinitionError("Update", definition.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewDefinitionError("Update", definition.ID, err)
	}

	if affected == 0 {
		var stored int

		err = tx.QueryRowContext(ctx, "SELECT version FROM workflow_definitions WHERE id = $1", definition.ID).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewDefinitionError("Update", definition.ID, persistence.ErrDefinitionNotFound)
		}

		if err != nil {
			return persistence.NewDefinitionError("Update", definition.ID, err)
		}

		return persistence.NewStaleDefinitionError("Update", definition.ID, expectedVersion, stored)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_steps WHERE definition_id = $1", definition.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing steps: %w", err)
	}

	if err = r.insertSteps(ctx, tx, definition); err != nil {
		return persistence.NewDefinitionError("Update", definition.ID, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	definition.Version = expectedVersion + 1
	definition.UpdatedAt = updatedAt

	return nil
}

func (r *DefinitionRepository) insertSteps(ctx context.Context, tx *sql.Tx, definition *models.WorkflowDefinition) error {
	for _, step := range definition.Steps {
		step.DefinitionID = definition.ID

		if err := r.insertStep(ctx, tx, step); err != nil {
			return err
		}
	}

	return nil
}

func (r *DefinitionRepository) insertStep(ctx context.Context, tx *sql.Tx, step *models.WorkflowStep) error {
	var condition any

	if step.Condition != nil {
		encoded, err := jsonColumn(step.Condition)
		if err != nil {
			return fmt.Errorf("failed to marshal condition of step %s: %w", step.ID, err)
		}

		condition = encoded
	}

	formSchema, err := jsonColumn(step.FormSchema)
	if err != nil {
		return fmt.Errorf("failed to marshal form schema of step %s: %w", step.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_steps (id, definition_id, name, description, step_type, assignee_type,
			assignee_value, sla_hours, step_order, max_revisions, condition, form_schema)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		step.ID,
		step.DefinitionID,
		step.Name,
		step.Description,
		step.StepType,
		step.AssigneeType,
		step.AssigneeValue,
		step.SLAHours,
		step.Order,
		step.MaxRevisions,
		condition,
		formSchema,
	)
	if err != nil {
		return fmt.Errorf("failed to insert step %s: %w", step.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+definitionColumns+" FROM workflow_definitions WHERE id = $1", id)

	definition, err := r.scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDefinitionError("GetByID", id, persistence.ErrDefinitionNotFound)
		}

		return nil, persistence.NewDefinitionError("GetByID", id, err)
	}

	if err := r.loadSteps(ctx, definition); err != nil {
		return nil, persistence.NewDefinitionError("GetByID", id, err)
	}

	return definition, nil
}

func (r *DefinitionRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.WorkflowDefinition, error) {
	return r.list(ctx, `
		SELECT `+definitionColumns+` FROM workflow_definitions
		WHERE organization_id = $1
		ORDER BY updated_at DESC
	`, organizationID)
}

func (r *DefinitionRepository) ListActiveScheduled(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return r.list(ctx, `
		SELECT `+definitionColumns+` FROM workflow_definitions
		WHERE is_active AND trigger_type = $1
		ORDER BY id
	`, models.TriggerTypeScheduled)
}

func (r *DefinitionRepository) list(ctx context.Context, query string, args ...any) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow definitions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	definitions := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		definition, err := r.scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}

		definitions = append(definitions, definition)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow definitions: %w", err)
	}

	for _, definition := range definitions {
		if err := r.loadSteps(ctx, definition); err != nil {
			return nil, err
		}
	}

	return definitions, nil
}

func (r *DefinitionRepository) scanDefinition(row scanner) (*models.WorkflowDefinition, error) {
	var (
		definition    models.WorkflowDefinition
		triggerConfig []byte
		slaHours      sql.NullInt64
	)

	err := row.Scan(
		&definition.ID,
		&definition.OrganizationID,
		&definition.Name,
		&definition.Description,
		&definition.Color,
		&definition.IsActive,
		&definition.TriggerType,
		&definition.TriggerEntity,
		&triggerConfig,
		&slaHours,
		&definition.Version,
		&definition.CreatedBy,
		&definition.CreatedAt,
		&definition.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeJSON(triggerConfig, &definition.TriggerConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger config: %w", err)
	}

	definition.DefaultSLAHours = nullableInt(slaHours)

	return &definition, nil
}

func (r *DefinitionRepository) loadSteps(ctx context.Context, definition *models.WorkflowDefinition) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, definition_id, name, description, step_type, assignee_type, assignee_value,
			sla_hours, step_order, max_revisions, condition, form_schema
		FROM workflow_steps
		WHERE definition_id = $1
		ORDER BY step_order
	`, definition.ID)
	if err != nil {
		return fmt.Errorf("failed to query steps of %s: %w", definition.ID, err)
	}

	defer closeRows(ctx, r.logger, rows)

	definition.Steps = make([]*models.WorkflowStep, 0)

	for rows.Next() {
		var (
			step         models.WorkflowStep
			slaHours     sql.NullInt64
			maxRevisions sql.NullInt64
			condition    []byte
			formSchema   []byte
		)

		err := rows.Scan(
			&step.ID,
			&step.DefinitionID,
			&step.Name,
			&step.Description,
			&step.StepType,
			&step.AssigneeType,
			&step.AssigneeValue,
			&slaHours,
			&step.Order,
			&maxRevisions,
			&condition,
			&formSchema,
		)
		if err != nil {
			return fmt.Errorf("failed to scan step: %w", err)
		}

		step.SLAHours = nullableInt(slaHours)
		step.MaxRevisions = nullableInt(maxRevisions)

		if len(condition) > 0 {
			step.Condition = &models.StepCondition{}
			if err := decodeJSON(condition, step.Condition); err != nil {
				return fmt.Errorf("failed to unmarshal condition of step %s: %w", step.ID, err)
			}
		}

		if err := decodeJSON(formSchema, &step.FormSchema); err != nil {
			return fmt.Errorf("failed to unmarshal form schema of step %s: %w", step.ID, err)
		}

		definition.Steps = append(definition.Steps, &step)
	}

	return rows.Err()
}
