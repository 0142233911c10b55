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
	"github.com/lib/pq"
)

// RunRepository handles workflow run database operations. Steps, executions,
// context and history are stored as JSONB on the run row.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

const runColumns = `
	id
  , definition_id
  , organization_id
  , status
  , current_step_index
  , current_assignee_id
  , steps
  , executions
  , context
  , history
  , triggered_by_id
  , started_at
  , completed_at
  , failure_reason
  , cancel_reason
  , version
  , updated_at
`

const uniqueViolation = "23505"

type runDocuments struct {
	steps      any
	executions any
	context    any
	history    any
	assignee   sql.NullString
}

func encodeRun(run *models.WorkflowRun) (*runDocuments, error) {
	var (
		documents runDocuments
		err       error
	)

	if documents.steps, err = jsonColumn(run.Steps); err != nil {
		return nil, fmt.Errorf("failed to marshal steps: %w", err)
	}

	if documents.executions, err = jsonColumn(run.Executions); err != nil {
		return nil, fmt.Errorf("failed to marshal executions: %w", err)
	}

	if documents.context, err = jsonColumn(run.Context); err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}

	if documents.history, err = jsonColumn(run.History); err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}

	if execution := run.CurrentExecution(); execution != nil && run.Status == models.RunStatusRunning {
		documents.assignee = sql.NullString{String: execution.ResolvedAssigneeID, Valid: true}
	}

	return &documents, nil
}

func (r *RunRepository) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	run.Version = 1
	run.UpdatedAt = time.Now().UTC()

	documents, err := encodeRun(run)
	if err != nil {
		return persistence.NewRunError("CreateRun", run.ID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (`+runColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		run.ID,
		run.DefinitionID,
		run.OrganizationID,
		run.Status,
		run.CurrentStepIndex,
		documents.assignee,
		documents.steps,
		documents.executions,
		documents.context,
		documents.history,
		run.TriggeredByID,
		run.StartedAt,
		run.CompletedAt,
		run.FailureReason,
		run.CancelReason,
		run.Version,
		run.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewRunError("CreateRun", run.ID, persistence.ErrRunAlreadyExists)
		}

		return persistence.NewRunError("CreateRun", run.ID, err)
	}

	return nil
}

// UpdateRun writes the run only when the stored version still equals
// expectedVersion. The version check and the write are one statement.
func (r *RunRepository) UpdateRun(ctx context.Context, run *models.WorkflowRun, expectedVersion int) error {
	documents, err := encodeRun(run)
	if err != nil {
		return persistence.NewRunError("UpdateRun", run.ID, err)
	}

	updatedAt := time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE workflow_runs SET
			status = $3,
			current_step_index = $4,
			current_assignee_id = $5,
			steps = $6,
			executions = $7,
			context = $8,
			history = $9,
			completed_at = $10,
			failure_reason = $11,
			cancel_reason = $12,
			version = version + 1,
			updated_at = $13
		WHERE id = $1 AND version = $2
	`,
		run.ID,
		expectedVersion,
		run.Status,
		run.CurrentStepIndex,
		documents.assignee,
		documents.steps,
		documents.executions,
		documents.context,
		documents.history,
		run.CompletedAt,
		run.FailureReason,
		run.CancelReason,
		updatedAt,
	)
	if err != nil {
		return persistence.NewRunError("UpdateRun", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRunError("UpdateRun", run.ID, err)
	}

	if affected == 0 {
		var stored int

		err := r.db.QueryRowContext(ctx, "SELECT version FROM workflow_runs WHERE id = $1", run.ID).Scan(&stored)
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewRunError("UpdateRun", run.ID, persistence.ErrRunNotFound)
		}

		if err != nil {
			return persistence.NewRunError("UpdateRun", run.ID, err)
		}

		return persistence.NewStaleRunError("UpdateRun", run.ID, expectedVersion, stored)
	}

	run.Version = expectedVersion + 1
	run.UpdatedAt = updatedAt

	return nil
}

func (r *RunRepository) GetRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM workflow_runs WHERE id = $1", id)

	run, err := r.scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetRun", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetRun", id, err)
	}

	return run, nil
}

func (r *RunRepository) ListRunsByDefinition(ctx context.Context, definitionID string) ([]*models.WorkflowRun, error) {
	return r.list(ctx, `
		SELECT `+runColumns+` FROM workflow_runs
		WHERE definition_id = $1
		ORDER BY started_at DESC
	`, definitionID)
}

func (r *RunRepository) ListRunsAssignedTo(ctx context.Context, assigneeID string) ([]*models.WorkflowRun, error) {
	return r.list(ctx, `
		SELECT `+runColumns+` FROM workflow_runs
		WHERE status = $1 AND current_assignee_id = $2
		ORDER BY started_at DESC
	`, models.RunStatusRunning, assigneeID)
}

func (r *RunRepository) ListRunsByStatus(ctx context.Context, status models.RunStatus) ([]*models.WorkflowRun, error) {
	return r.list(ctx, `
		SELECT `+runColumns+` FROM workflow_runs
		WHERE status = $1
		ORDER BY started_at DESC
	`, status)
}

func (r *RunRepository) list(ctx context.Context, query string, args ...any) ([]*models.WorkflowRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow runs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	runs := make([]*models.WorkflowRun, 0)

	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow runs: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) scanRun(row scanner) (*models.WorkflowRun, error) {
	var (
		run                                    models.WorkflowRun
		assignee                               sql.NullString
		steps, executions, runContext, history []byte
		completedAt                            sql.NullTime
	)

	err := row.Scan(
		&run.ID,
		&run.DefinitionID,
		&run.OrganizationID,
		&run.Status,
		&run.CurrentStepIndex,
		&assignee,
		&steps,
		&executions,
		&runContext,
		&history,
		&run.TriggeredByID,
		&run.StartedAt,
		&completedAt,
		&run.FailureReason,
		&run.CancelReason,
		&run.Version,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		completed := completedAt.Time
		run.CompletedAt = &completed
	}

	for _, document := range []struct {
		raw    []byte
		target any
		name   string
	}{
		{steps, &run.Steps, "steps"},
		{executions, &run.Executions, "executions"},
		{runContext, &run.Context, "context"},
		{history, &run.History, "history"},
	} {
		if err := decodeJSON(document.raw, document.target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", document.name, err)
		}
	}

	return &run, nil
}
