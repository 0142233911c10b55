package file

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/google/uuid"
)

const definitionsCollection = "definitions"

// DefinitionRepository handles workflow definition file operations.
type DefinitionRepository struct {
	store *Persistence
}

func (r *DefinitionRepository) Create(_ context.Context, definition *models.WorkflowDefinition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if definition.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewDefinitionError("Create", "", err)
		}

		definition.ID = id.String()
	}

	var stored models.WorkflowDefinition

	found, err := r.store.read(definitionsCollection, definition.ID, &stored)
	if err != nil {
		return persistence.NewDefinitionError("Create", definition.ID, err)
	}

	if found {
		return persistence.NewDefinitionError("Create", definition.ID, persistence.ErrDefinitionAlreadyExists)
	}

	now := time.Now().UTC()
	if definition.CreatedAt.IsZero() {
		definition.CreatedAt = now
	}

	definition.UpdatedAt = now

	return r.write("Create", definition)
}

// Update compares and writes under the store mutex.
func (r *DefinitionRepository) Update(_ context.Context, definition *models.WorkflowDefinition, expectedVersion int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var stored models.WorkflowDefinition

	found, err := r.store.read(definitionsCollection, definition.ID, &stored)
	if err != nil {
		return persistence.NewDefinitionError("Update", definition.ID, err)
	}

	if !found {
		return persistence.NewDefinitionError("Update", definition.ID, persistence.ErrDefinitionNotFound)
	}

	if stored.Version != expectedVersion {
		return persistence.NewStaleDefinitionError("Update", definition.ID, expectedVersion, stored.Version)
	}

	definition.Version = expectedVersion + 1
	definition.CreatedAt = stored.CreatedAt
	definition.UpdatedAt = time.Now().UTC()

	return r.write("Update", definition)
}

func (r *DefinitionRepository) write(op string, definition *models.WorkflowDefinition) error {
	for _, step := range definition.Steps {
		step.DefinitionID = definition.ID
	}

	if err := r.store.write(definitionsCollection, definition.ID, definition); err != nil {
		return persistence.NewDefinitionError(op, definition.ID, err)
	}

	return nil
}

func (r *DefinitionRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	var definition models.WorkflowDefinition

	found, err := r.store.read(definitionsCollection, id, &definition)
	if err != nil {
		return nil, persistence.NewDefinitionError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewDefinitionError("GetByID", id, persistence.ErrDefinitionNotFound)
	}

	return &definition, nil
}

func (r *DefinitionRepository) ListByOrganization(_ context.Context, organizationID string) ([]*models.WorkflowDefinition, error) {
	definitions, err := readAll[models.WorkflowDefinition](r.store, definitionsCollection)
	if err != nil {
		return nil, err
	}

	definitions = slices.DeleteFunc(definitions, func(d *models.WorkflowDefinition) bool {
		return d.OrganizationID != organizationID
	})

	slices.SortFunc(definitions, func(a, b *models.WorkflowDefinition) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	return definitions, nil
}

func (r *DefinitionRepository) ListActiveScheduled(_ context.Context) ([]*models.WorkflowDefinition, error) {
	definitions, err := readAll[models.WorkflowDefinition](r.store, definitionsCollection)
	if err != nil {
		return nil, err
	}

	definitions = slices.DeleteFunc(definitions, func(d *models.WorkflowDefinition) bool {
		return !d.IsActive || d.TriggerType != models.TriggerTypeScheduled
	})

	slices.SortFunc(definitions, func(a, b *models.WorkflowDefinition) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return definitions, nil
}
