package file

import (
	"context"
	"slices"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
)

const runsCollection = "runs"

// RunRepository handles workflow run file operations.
type RunRepository struct {
	store *Persistence
}

func (r *RunRepository) CreateRun(_ context.Context, run *models.WorkflowRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var existing models.WorkflowRun

	found, err := r.store.read(runsCollection, run.ID, &existing)
	if err != nil {
		return persistence.NewRunError("CreateRun", run.ID, err)
	}

	if found {
		return persistence.NewRunError("CreateRun", run.ID, persistence.ErrRunAlreadyExists)
	}

	run.Version = 1
	run.UpdatedAt = time.Now().UTC()

	if err := r.store.write(runsCollection, run.ID, run); err != nil {
		return persistence.NewRunError("CreateRun", run.ID, err)
	}

	return nil
}

func (r *RunRepository) UpdateRun(_ context.Context, run *models.WorkflowRun, expectedVersion int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var stored models.WorkflowRun

	found, err := r.store.read(runsCollection, run.ID, &stored)
	if err != nil {
		return persistence.NewRunError("UpdateRun", run.ID, err)
	}

	if !found {
		return persistence.NewRunError("UpdateRun", run.ID, persistence.ErrRunNotFound)
	}

	if stored.Version != expectedVersion {
		return persistence.NewStaleRunError("UpdateRun", run.ID, expectedVersion, stored.Version)
	}

	next := run.Clone()
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now().UTC()

	if err := r.store.write(runsCollection, run.ID, next); err != nil {
		return persistence.NewRunError("UpdateRun", run.ID, err)
	}

	run.Version = next.Version
	run.UpdatedAt = next.UpdatedAt

	return nil
}

func (r *RunRepository) GetRun(_ context.Context, id string) (*models.WorkflowRun, error) {
	var run models.WorkflowRun

	found, err := r.store.read(runsCollection, id, &run)
	if err != nil {
		return nil, persistence.NewRunError("GetRun", id, err)
	}

	if !found {
		return nil, persistence.NewRunError("GetRun", id, persistence.ErrRunNotFound)
	}

	return &run, nil
}

func (r *RunRepository) ListRunsByDefinition(_ context.Context, definitionID string) ([]*models.WorkflowRun, error) {
	runs, err := readAll[models.WorkflowRun](r.store, runsCollection)
	if err != nil {
		return nil, err
	}

	runs = slices.DeleteFunc(runs, func(run *models.WorkflowRun) bool {
		return run.DefinitionID != definitionID
	})

	sortRunsNewestFirst(runs)

	return runs, nil
}

func (r *RunRepository) ListRunsAssignedTo(_ context.Context, assigneeID string) ([]*models.WorkflowRun, error) {
	runs, err := readAll[models.WorkflowRun](r.store, runsCollection)
	if err != nil {
		return nil, err
	}

	runs = slices.DeleteFunc(runs, func(run *models.WorkflowRun) bool {
		if run.Status != models.RunStatusRunning {
			return true
		}

		execution := run.CurrentExecution()

		return execution == nil || execution.ResolvedAssigneeID != assigneeID
	})

	sortRunsNewestFirst(runs)

	return runs, nil
}

func (r *RunRepository) ListRunsByStatus(_ context.Context, status models.RunStatus) ([]*models.WorkflowRun, error) {
	runs, err := readAll[models.WorkflowRun](r.store, runsCollection)
	if err != nil {
		return nil, err
	}

	runs = slices.DeleteFunc(runs, func(run *models.WorkflowRun) bool {
		return run.Status != status
	})

	sortRunsNewestFirst(runs)

	return runs, nil
}

func sortRunsNewestFirst(runs []*models.WorkflowRun) {
	slices.SortFunc(runs, func(a, b *models.WorkflowRun) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
}
