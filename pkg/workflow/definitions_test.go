package workflow

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitions_CreateDefinition(t *testing.T) {
	f := newFixture(t)

	definition, err := f.definitions.CreateDefinition(t.Context(), CreateDefinitionInput{
		OrganizationID:  "org-1",
		Name:            "Client onboarding",
		TriggerType:     models.TriggerTypeEntityCreated,
		TriggerEntity:   "client",
		DefaultSLAHours: ptr(48),
		CreatedBy:       "alice",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, definition.ID)
	assert.False(t, definition.IsActive)
	assert.Equal(t, 1, definition.Version)
	assert.Empty(t, definition.Steps)

	fetched, err := f.definitions.GetDefinition(t.Context(), definition.ID)
	require.NoError(t, err)
	assert.Equal(t, "client", fetched.TriggerEntity)
	assert.Equal(t, 48, *fetched.DefaultSLAHours)
}

func TestDefinitions_CreateDefinition_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		input CreateDefinitionInput
	}{
		{"missing organization", CreateDefinitionInput{Name: "Onboarding", TriggerType: models.TriggerTypeManual}},
		{"short name", CreateDefinitionInput{OrganizationID: "org-1", Name: "ab", TriggerType: models.TriggerTypeManual}},
		{"unknown trigger", CreateDefinitionInput{OrganizationID: "org-1", Name: "Onboarding", TriggerType: "ON_FULL_MOON"}},
		{"scheduled without cron", CreateDefinitionInput{OrganizationID: "org-1", Name: "Weekly report", TriggerType: models.TriggerTypeScheduled}},
		{"scheduled with bad cron", CreateDefinitionInput{
			OrganizationID: "org-1",
			Name:           "Weekly report",
			TriggerType:    models.TriggerTypeScheduled,
			TriggerConfig:  map[string]any{models.TriggerConfigCron: "every monday"},
		}},
		{"non positive default sla", CreateDefinitionInput{OrganizationID: "org-1", Name: "Onboarding", TriggerType: models.TriggerTypeManual, DefaultSLAHours: ptr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.definitions.CreateDefinition(t.Context(), tt.input)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestDefinitions_CreateStep_AppendsOrder(t *testing.T) {
	f := newFixture(t)
	definition := f.workflow(t)

	for i, name := range []string{"Brief", "Design", "Review"} {
		step, err := f.definitions.CreateStep(t.Context(), CreateStepInput{
			DefinitionID:  definition.ID,
			Name:          name,
			StepType:      models.StepTypeTask,
			AssigneeType:  models.AssigneeSpecificUser,
			AssigneeValue: "alice",
		})
		require.NoError(t, err)
		assert.Equal(t, i, step.Order)
		assert.Equal(t, definition.ID, step.DefinitionID)
	}

	fetched, err := f.definitions.GetDefinition(t.Context(), definition.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Steps, 3)
	assert.Equal(t, "Review", fetched.Steps[2].Name)
	assert.Equal(t, 4, fetched.Version)
}

func TestDefinitions_CreateStep_Errors(t *testing.T) {
	f := newFixture(t)
	definition := f.workflow(t)

	_, err := f.definitions.CreateStep(t.Context(), task("Brief", "alice").withDefinition("missing"))
	require.ErrorIs(t, err, ErrDefinitionNotFound)

	tests := []struct {
		name  string
		input CreateStepInput
	}{
		{"role without value", CreateStepInput{Name: "Design", StepType: models.StepTypeTask, AssigneeType: models.AssigneeByRole}},
		{"unknown step type", CreateStepInput{Name: "Design", StepType: "PARALLEL", AssigneeType: models.AssigneeFromTrigger}},
		{"unknown assignee type", CreateStepInput{Name: "Design", StepType: models.StepTypeTask, AssigneeType: "RANDOM"}},
		{"condition without condition", CreateStepInput{Name: "Check", StepType: models.StepTypeCondition, AssigneeType: models.AssigneeFromTrigger}},
		{"condition with broken expression", condition("{{ if }", 0, 1)},
		{"condition on task", CreateStepInput{
			Name:         "Design",
			StepType:     models.StepTypeTask,
			AssigneeType: models.AssigneeFromTrigger,
			Condition:    &models.StepCondition{Expression: "true"},
		}},
		{"form schema on approval", CreateStepInput{
			Name:          "Sign off",
			StepType:      models.StepTypeApproval,
			AssigneeType:  models.AssigneeSpecificUser,
			AssigneeValue: "alice",
			FormSchema:    map[string]any{"type": "object"},
		}},
		{"malformed form schema", CreateStepInput{
			Name:         "Brief",
			StepType:     models.StepTypeFormInput,
			AssigneeType: models.AssigneeFromTrigger,
			FormSchema:   map[string]any{"type": 42},
		}},
		{"form schema with invalid keyword value", CreateStepInput{
			Name:         "Brief",
			StepType:     models.StepTypeFormInput,
			AssigneeType: models.AssigneeFromTrigger,
			FormSchema:   map[string]any{"type": "object", "required": "title"},
		}},
		{"zero sla", CreateStepInput{Name: "Design", StepType: models.StepTypeTask, AssigneeType: models.AssigneeFromTrigger, SLAHours: ptr(0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.definitions.CreateStep(t.Context(), tt.input.withDefinition(definition.ID))
			assert.ErrorIs(t, err, ErrInvalidStep)
		})
	}
}

func (in CreateStepInput) withDefinition(id string) CreateStepInput {
	in.DefinitionID = id

	return in
}

func TestDefinitions_UpdateDefinition(t *testing.T) {
	f := newFixture(t)
	definition := f.workflow(t)

	_, err := f.definitions.UpdateDefinition(t.Context(), definition.ID, UpdateDefinitionInput{IsActive: ptr(true)})
	require.ErrorIs(t, err, ErrNoStepsDefined)

	_, err = f.definitions.CreateStep(t.Context(), task("Brief", "alice").withDefinition(definition.ID))
	require.NoError(t, err)

	updated, err := f.definitions.UpdateDefinition(t.Context(), definition.ID, UpdateDefinitionInput{
		Name:     ptr("Campaign launch v2"),
		IsActive: ptr(true),
	})
	require.NoError(t, err)

	assert.Equal(t, "Campaign launch v2", updated.Name)
	assert.True(t, updated.IsActive)
	assert.Equal(t, models.TriggerTypeManual, updated.TriggerType)
	assert.Equal(t, 3, updated.Version)

	_, err = f.definitions.UpdateDefinition(t.Context(), definition.ID, UpdateDefinitionInput{Name: ptr("x")})
	require.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = f.definitions.UpdateDefinition(t.Context(), "missing", UpdateDefinitionInput{Name: ptr("Anything")})
	require.ErrorIs(t, err, ErrDefinitionNotFound)
}

// racingPersistence runs afterGet once, right after the first definition read,
// standing in for another instance editing the same definition.
type racingPersistence struct {
	persistence.Persistence

	repository *racingDefinitions
}

func (p *racingPersistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.repository
}

type racingDefinitions struct {
	persistence.DefinitionRepository

	once     sync.Once
	afterGet func()
	updates  int
}

func (r *racingDefinitions) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	definition, err := r.DefinitionRepository.GetByID(ctx, id)
	r.once.Do(r.afterGet)

	return definition, err
}

func (r *racingDefinitions) Update(ctx context.Context, definition *models.WorkflowDefinition, expectedVersion int) error {
	r.updates++

	return r.DefinitionRepository.Update(ctx, definition, expectedVersion)
}

func TestDefinitions_CreateStep_ConcurrentInstances(t *testing.T) {
	f := newFixture(t)
	definition := f.workflow(t)

	other := NewDefinitions(f.persistence, slog.New(slog.DiscardHandler))

	racing := &racingPersistence{
		Persistence: f.persistence,
		repository:  &racingDefinitions{DefinitionRepository: f.persistence.DefinitionRepository()},
	}
	racing.repository.afterGet = func() {
		_, err := other.CreateStep(t.Context(), task("Brief", "alice").withDefinition(definition.ID))
		assert.NoError(t, err)
	}

	step, err := NewDefinitions(racing, slog.New(slog.DiscardHandler)).
		CreateStep(t.Context(), task("Review", "bob").withDefinition(definition.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, racing.repository.updates, "the first write loses and is retried")

	stored, err := f.definitions.GetDefinition(t.Context(), definition.ID)
	require.NoError(t, err)
	require.Len(t, stored.Steps, 2)
	assert.Equal(t, "Brief", stored.Steps[0].Name)
	assert.Equal(t, "Review", stored.Steps[1].Name)
	assert.Equal(t, step.Order, stored.Steps[1].Order)
	assert.Equal(t, 3, stored.Version)
}

// staleDefinitions rejects every update as if another instance always won.
type staleDefinitions struct {
	persistence.DefinitionRepository

	updates int
}

func (r *staleDefinitions) Update(_ context.Context, definition *models.WorkflowDefinition, expectedVersion int) error {
	r.updates++

	return persistence.NewStaleDefinitionError("Update", definition.ID, expectedVersion, expectedVersion+1)
}

type stalePersistence struct {
	persistence.Persistence

	repository *staleDefinitions
}

func (p *stalePersistence) DefinitionRepository() persistence.DefinitionRepository {
	return p.repository
}

func TestDefinitions_UpdateDefinition_GivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t)
	definition := f.workflow(t)

	stale := &staleDefinitions{DefinitionRepository: f.persistence.DefinitionRepository()}
	editor := NewDefinitions(&stalePersistence{Persistence: f.persistence, repository: stale}, slog.New(slog.DiscardHandler))

	_, err := editor.UpdateDefinition(t.Context(), definition.ID, UpdateDefinitionInput{Description: ptr("touched")})
	require.ErrorIs(t, err, ErrStaleDefinition)
	assert.Equal(t, maxModifyAttempts, stale.updates)
}

func TestDefinitions_ListDefinitions(t *testing.T) {
	f := newFixture(t)
	first := f.workflow(t)
	second := f.workflow(t)

	time.Sleep(time.Millisecond)

	_, err := f.definitions.UpdateDefinition(t.Context(), first.ID, UpdateDefinitionInput{Description: ptr("touched")})
	require.NoError(t, err)

	definitions, err := f.definitions.ListDefinitions(t.Context(), "org-1")
	require.NoError(t, err)
	require.Len(t, definitions, 2)
	assert.Equal(t, first.ID, definitions[0].ID)
	assert.Equal(t, second.ID, definitions[1].ID)

	definitions, err = f.definitions.ListDefinitions(t.Context(), "org-2")
	require.NoError(t, err)
	assert.Empty(t, definitions)
}
