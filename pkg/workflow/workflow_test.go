package workflow

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/agencyflow/pkg/identity"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/dukex/agencyflow/pkg/persistence/file"
	"github.com/stretchr/testify/require"
)

// monday is 2025-01-06 09:00 UTC, a working day under the UAE weekend.
var monday = time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

type fixture struct {
	persistence persistence.Persistence
	definitions *Definitions
	engine      *Engine
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.DiscardHandler)
	opts = append([]Option{WithClock(func() time.Time { return monday })}, opts...)

	return &fixture{
		persistence: p,
		definitions: NewDefinitions(p, logger),
		engine:      NewEngine(p, newDirectory(), logger, opts...),
	}
}

func newDirectory() *identity.StaticDirectory {
	return identity.NewStaticDirectory(
		&models.Identity{ID: "alice", OrganizationID: "org-1", Name: "Alice", Role: "account_manager", Department: "client_services", IsActive: true},
		&models.Identity{ID: "bob", OrganizationID: "org-1", Name: "Bob", Role: "designer", Department: "creative", IsActive: true},
		&models.Identity{ID: "carol", OrganizationID: "org-1", Name: "Carol", Role: "designer", Department: "creative", IsActive: true},
		&models.Identity{ID: "dave", OrganizationID: "org-1", Name: "Dave", Role: "designer", Department: "creative", IsActive: true},
		&models.Identity{ID: "erin", OrganizationID: "org-2", Name: "Erin", Role: "designer", Department: "creative", IsActive: true},
	)
}

// workflow creates a definition with steps, active when it has at least one step.
func (f *fixture) workflow(t *testing.T, steps ...CreateStepInput) *models.WorkflowDefinition {
	t.Helper()

	ctx := t.Context()

	definition, err := f.definitions.CreateDefinition(ctx, CreateDefinitionInput{
		OrganizationID: "org-1",
		Name:           "Campaign launch",
		TriggerType:    models.TriggerTypeManual,
		CreatedBy:      "alice",
	})
	require.NoError(t, err)

	if len(steps) == 0 {
		return definition
	}

	for _, step := range steps {
		step.DefinitionID = definition.ID
		_, err := f.definitions.CreateStep(ctx, step)
		require.NoError(t, err)
	}

	definition, err = f.definitions.UpdateDefinition(ctx, definition.ID, UpdateDefinitionInput{IsActive: ptr(true)})
	require.NoError(t, err)

	return definition
}

func (f *fixture) complete(t *testing.T, runID, actorID string) *models.WorkflowRun {
	t.Helper()

	run, err := f.engine.CompleteStep(t.Context(), CompleteStepInput{RunID: runID, ActorID: actorID})
	require.NoError(t, err)

	return run
}

func task(name, userID string) CreateStepInput {
	return CreateStepInput{
		Name:          name,
		StepType:      models.StepTypeTask,
		AssigneeType:  models.AssigneeSpecificUser,
		AssigneeValue: userID,
	}
}

func approval(name, userID string) CreateStepInput {
	step := task(name, userID)
	step.StepType = models.StepTypeApproval

	return step
}

func condition(expression string, trueOrder, falseOrder int) CreateStepInput {
	return CreateStepInput{
		Name:         "Budget check",
		StepType:     models.StepTypeCondition,
		AssigneeType: models.AssigneeFromTrigger,
		Condition: &models.StepCondition{
			Expression: expression,
			TrueOrder:  trueOrder,
			FalseOrder: falseOrder,
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}

func decision(d models.Decision) *models.Decision {
	return &d
}

func historyActions(run *models.WorkflowRun) []string {
	actions := make([]string, len(run.History))
	for i, entry := range run.History {
		actions[i] = entry.Action
	}

	return actions
}
