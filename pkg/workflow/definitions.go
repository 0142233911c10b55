// Package workflow holds the workflow definition model and the run engine.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/dukex/agencyflow/pkg/template"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Definitions performs structural CRUD on workflow definitions and their steps.
// It never executes anything.
type Definitions struct {
	persistence persistence.Persistence
	validator   *validator.Validate
	logger      *slog.Logger
	now         func() time.Time

	// serializes read-modify-write of definitions within this process; writes
	// across processes are guarded by the definition version
	mu sync.Mutex
}

const maxModifyAttempts = 3

func NewDefinitions(persistence persistence.Persistence, logger *slog.Logger) *Definitions {
	return &Definitions{
		persistence: persistence,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "workflow_definitions"),
		now:         time.Now,
	}
}

type CreateDefinitionInput struct {
	OrganizationID  string             `validate:"required"`
	Name            string             `validate:"required,min=3"`
	Description     string
	Color           string
	TriggerType     models.TriggerType `validate:"required"`
	TriggerEntity   string
	TriggerConfig   map[string]any
	DefaultSLAHours *int `validate:"omitempty,min=1"`
	CreatedBy       string
}

// CreateDefinition creates an inactive definition with no steps.
func (d *Definitions) CreateDefinition(ctx context.Context, input CreateDefinitionInput) (*models.WorkflowDefinition, error) {
	if err := d.validator.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	now := d.now().UTC()
	definition := &models.WorkflowDefinition{
		ID:              id.String(),
		OrganizationID:  input.OrganizationID,
		Name:            input.Name,
		Description:     input.Description,
		Color:           input.Color,
		TriggerType:     input.TriggerType,
		TriggerEntity:   input.TriggerEntity,
		TriggerConfig:   input.TriggerConfig,
		DefaultSLAHours: input.DefaultSLAHours,
		Version:         1,
		Steps:           []*models.WorkflowStep{},
		CreatedBy:       input.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := d.validateDefinition(definition); err != nil {
		return nil, err
	}

	if err := d.persistence.DefinitionRepository().Create(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save workflow definition: %w", err)
	}

	d.logger.InfoContext(ctx, "created workflow definition",
		"definition_id", definition.ID,
		"organization_id", definition.OrganizationID,
		"trigger_type", definition.TriggerType)

	return definition, nil
}

// GetDefinition returns the definition with its steps sorted by order.
func (d *Definitions) GetDefinition(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	definition, err := d.persistence.DefinitionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	definition.Steps = definition.SortedSteps()

	return definition, nil
}

// ListDefinitions returns an organization's definitions, most recently updated first.
func (d *Definitions) ListDefinitions(ctx context.Context, organizationID string) ([]*models.WorkflowDefinition, error) {
	definitions, err := d.persistence.DefinitionRepository().ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow definitions: %w", err)
	}

	for _, definition := range definitions {
		definition.Steps = definition.SortedSteps()
	}

	return definitions, nil
}

type CreateStepInput struct {
	DefinitionID  string `validate:"required"`
	Name          string `validate:"required,min=1"`
	Description   string
	StepType      models.StepType     `validate:"required"`
	AssigneeType  models.AssigneeType `validate:"required"`
	AssigneeValue string
	SLAHours      *int `validate:"omitempty,min=1"`
	MaxRevisions  *int `validate:"omitempty,min=0"`
	Condition     *models.StepCondition
	FormSchema    map[string]any
}

// CreateStep appends a step with order = max(existing orders) + 1.
func (d *Definitions) CreateStep(ctx context.Context, input CreateStepInput) (*models.WorkflowStep, error) {
	if err := d.validator.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStep, err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}

	step := &models.WorkflowStep{
		ID:            id.String(),
		DefinitionID:  input.DefinitionID,
		Name:          input.Name,
		Description:   input.Description,
		StepType:      input.StepType,
		AssigneeType:  input.AssigneeType,
		AssigneeValue: input.AssigneeValue,
		SLAHours:      input.SLAHours,
		MaxRevisions:  input.MaxRevisions,
		Condition:     input.Condition,
		FormSchema:    input.FormSchema,
	}

	if err := d.validateStep(step); err != nil {
		return nil, err
	}

	definition, err := d.modify(ctx, input.DefinitionID, func(definition *models.WorkflowDefinition) error {
		step.Order = definition.NextStepOrder()
		definition.Steps = append(definition.Steps, step)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow step: %w", err)
	}

	d.logger.InfoContext(ctx, "created workflow step",
		"definition_id", definition.ID,
		"step_id", step.ID,
		"step_type", step.StepType,
		"order", step.Order)

	return step, nil
}

// UpdateDefinitionInput is a partial update; nil fields are left unchanged.
type UpdateDefinitionInput struct {
	Name            *string `validate:"omitempty,min=3"`
	Description     *string
	Color           *string
	IsActive        *bool
	TriggerType     *models.TriggerType
	TriggerEntity   *string
	TriggerConfig   map[string]any
	DefaultSLAHours *int `validate:"omitempty,min=1"`
}

// UpdateDefinition applies a partial update and increments Version. Activating a
// definition without steps fails with ErrNoStepsDefined.
func (d *Definitions) UpdateDefinition(ctx context.Context, id string, patch UpdateDefinitionInput) (*models.WorkflowDefinition, error) {
	if err := d.validator.Struct(patch); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}

	definition, err := d.modify(ctx, id, func(definition *models.WorkflowDefinition) error {
		return d.apply(definition, patch)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow definition: %w", err)
	}

	definition.Steps = definition.SortedSteps()

	d.logger.InfoContext(ctx, "updated workflow definition",
		"definition_id", definition.ID,
		"version", definition.Version,
		"is_active", definition.IsActive)

	return definition, nil
}

func (d *Definitions) apply(definition *models.WorkflowDefinition, patch UpdateDefinitionInput) error {
	if patch.Name != nil {
		definition.Name = *patch.Name
	}

	if patch.Description != nil {
		definition.Description = *patch.Description
	}

	if patch.Color != nil {
		definition.Color = *patch.Color
	}

	if patch.TriggerType != nil {
		definition.TriggerType = *patch.TriggerType
	}

	if patch.TriggerEntity != nil {
		definition.TriggerEntity = *patch.TriggerEntity
	}

	if patch.TriggerConfig != nil {
		definition.TriggerConfig = patch.TriggerConfig
	}

	if patch.DefaultSLAHours != nil {
		definition.DefaultSLAHours = patch.DefaultSLAHours
	}

	if patch.IsActive != nil {
		if *patch.IsActive && len(definition.Steps) == 0 {
			return fmt.Errorf("cannot activate workflow definition %s: %w", definition.ID, ErrNoStepsDefined)
		}

		definition.IsActive = *patch.IsActive
	}

	return d.validateDefinition(definition)
}

// modify re-reads the definition, applies change and writes it back guarded by
// the version that was read. A write that loses to another instance is retried
// from a fresh read, up to maxModifyAttempts times.
func (d *Definitions) modify(
	ctx context.Context,
	id string,
	change func(*models.WorkflowDefinition) error,
) (*models.WorkflowDefinition, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	repository := d.persistence.DefinitionRepository()

	for attempt := 1; ; attempt++ {
		definition, err := repository.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		expected := definition.Version

		if err := change(definition); err != nil {
			return nil, err
		}

		err = repository.Update(ctx, definition, expected)
		if err == nil {
			return definition, nil
		}

		if !persistence.IsStaleDefinition(err) {
			return nil, err
		}

		if attempt == maxModifyAttempts {
			return nil, fmt.Errorf("%w: %w", ErrStaleDefinition, err)
		}

		d.logger.WarnContext(ctx, "workflow definition changed concurrently, retrying",
			"definition_id", id,
			"expected_version", expected,
			"attempt", attempt)
	}
}

func (d *Definitions) validateDefinition(definition *models.WorkflowDefinition) error {
	if !definition.TriggerType.Valid() {
		return fmt.Errorf("%w: unknown trigger type %q", ErrInvalidDefinition, definition.TriggerType)
	}

	if schedule, ok := definition.Schedule(); ok {
		if err := schedule.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
		}
	}

	return nil
}

func (d *Definitions) validateStep(step *models.WorkflowStep) error {
	if !step.StepType.Valid() {
		return fmt.Errorf("%w: unknown step type %q", ErrInvalidStep, step.StepType)
	}

	if !step.AssigneeType.Valid() {
		return fmt.Errorf("%w: unknown assignee type %q", ErrInvalidStep, step.AssigneeType)
	}

	if step.AssigneeType.RequiresValue() && step.AssigneeValue == "" {
		return fmt.Errorf("%w: assignee type %s requires an assignee value", ErrInvalidStep, step.AssigneeType)
	}

	switch step.StepType {
	case models.StepTypeCondition:
		if step.Condition == nil {
			return fmt.Errorf("%w: CONDITION steps require a condition", ErrInvalidStep)
		}

		if err := d.validator.Struct(step.Condition); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidStep, err)
		}

		if err := template.Parse(step.Condition.Expression); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidStep, err)
		}
	case models.StepTypeTask, models.StepTypeApproval, models.StepTypeFormInput,
		models.StepTypeNotification, models.StepTypeWebhook, models.StepTypeDelay:
		if step.Condition != nil {
			return fmt.Errorf("%w: only CONDITION steps carry a condition", ErrInvalidStep)
		}
	}

	if step.FormSchema != nil && step.StepType != models.StepTypeFormInput {
		return fmt.Errorf("%w: only FORM_INPUT steps carry a form schema", ErrInvalidStep)
	}

	if step.FormSchema != nil {
		if err := models.CompileSchema(step.FormSchema); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidStep, err)
		}
	}

	return nil
}
