// Package persistencetest holds behavioural tests shared by every persistence backend.
package persistencetest

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty persistence instance owned by t.
type Factory func(t *testing.T) persistence.Persistence

// Run executes the whole suite against the backend built by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("definitions", func(t *testing.T) { testDefinitions(t, factory(t)) })
	t.Run("definitions compare and swap", func(t *testing.T) { testDefinitionUpdates(t, factory(t)) })
	t.Run("runs compare and swap", func(t *testing.T) { testRuns(t, factory(t)) })
	t.Run("assigned runs", func(t *testing.T) { testAssignedRuns(t, factory(t)) })
	t.Run("dashboards", func(t *testing.T) { testDashboards(t, factory(t)) })
	t.Run("concurrent set default", func(t *testing.T) { testConcurrentSetDefault(t, factory(t)) })
	t.Run("save keeps default flag", func(t *testing.T) { testSaveKeepsDefault(t, factory(t)) })
	t.Run("rotation cursor", func(t *testing.T) { testRotationCursor(t, factory(t)) })
}

func newID(t *testing.T) string {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	return id.String()
}

// NewDefinition builds an active MANUAL definition with n TASK steps.
func NewDefinition(t *testing.T, organizationID string, n int) *models.WorkflowDefinition {
	t.Helper()

	definition := &models.WorkflowDefinition{
		ID:             newID(t),
		OrganizationID: organizationID,
		Name:           "Campaign approval",
		IsActive:       true,
		TriggerType:    models.TriggerTypeManual,
		Version:        1,
		CreatedBy:      "user-1",
	}

	for i := range n {
		definition.Steps = append(definition.Steps, &models.WorkflowStep{
			ID:            newID(t),
			DefinitionID:  definition.ID,
			Name:          fmt.Sprintf("Step %d", i+1),
			StepType:      models.StepTypeTask,
			AssigneeType:  models.AssigneeSpecificUser,
			AssigneeValue: "user-1",
			Order:         i,
		})
	}

	return definition
}

func testDefinitions(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.DefinitionRepository()

	_, err := repo.GetByID(ctx, newID(t))
	assert.True(t, persistence.IsDefinitionNotFound(err))

	first := NewDefinition(t, "org-1", 2)
	require.NoError(t, repo.Create(ctx, first))
	assert.True(t, errors.Is(repo.Create(ctx, first), persistence.ErrDefinitionAlreadyExists))

	second := NewDefinition(t, "org-1", 0)
	second.TriggerType = models.TriggerTypeScheduled
	second.TriggerConfig = map[string]any{models.TriggerConfigCron: "0 9 * * *"}
	require.NoError(t, repo.Create(ctx, second))

	other := NewDefinition(t, "org-2", 1)
	require.NoError(t, repo.Create(ctx, other))

	loaded, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Name, loaded.Name)
	require.Len(t, loaded.Steps, 2)
	assert.Equal(t, first.Steps[1].ID, loaded.SortedSteps()[1].ID)

	time.Sleep(5 * time.Millisecond)

	first.Description = "updated"
	first.Steps = first.Steps[:1]
	require.NoError(t, repo.Update(ctx, first, 1))
	assert.Equal(t, 2, first.Version)

	list, err := repo.ListByOrganization(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID, "most recently updated first")
	assert.Len(t, list[0].Steps, 1)

	scheduled, err := repo.ListActiveScheduled(ctx)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "0 9 * * *", scheduled[0].TriggerConfig[models.TriggerConfigCron])
}

// testDefinitionUpdates replays two editors that both read version 1: the
// second write must fail instead of dropping the first editor's step.
func testDefinitionUpdates(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.DefinitionRepository()

	definition := NewDefinition(t, "org-1", 1)
	require.NoError(t, repo.Create(ctx, definition))

	first, err := repo.GetByID(ctx, definition.ID)
	require.NoError(t, err)

	second, err := repo.GetByID(ctx, definition.ID)
	require.NoError(t, err)

	first.Steps = append(first.Steps, &models.WorkflowStep{
		ID: newID(t), Name: "Review", StepType: models.StepTypeTask,
		AssigneeType: models.AssigneeFromTrigger, Order: 1,
	})
	require.NoError(t, repo.Update(ctx, first, 1))

	second.Steps = append(second.Steps, &models.WorkflowStep{
		ID: newID(t), Name: "Publish", StepType: models.StepTypeTask,
		AssigneeType: models.AssigneeFromTrigger, Order: 1,
	})
	err = repo.Update(ctx, second, 1)
	require.Error(t, err)
	assert.True(t, persistence.IsStaleDefinition(err))

	stored, err := repo.GetByID(ctx, definition.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	require.Len(t, stored.Steps, 2)
	assert.Equal(t, "Review", stored.SortedSteps()[1].Name)

	err = repo.Update(ctx, NewDefinition(t, "org-1", 0), 1)
	assert.True(t, persistence.IsDefinitionNotFound(err))
}

func newRun(t *testing.T, definition *models.WorkflowDefinition, assignee string) *models.WorkflowRun {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Millisecond)

	return &models.WorkflowRun{
		ID:             newID(t),
		DefinitionID:   definition.ID,
		OrganizationID: definition.OrganizationID,
		Status:         models.RunStatusRunning,
		Steps:          definition.SortedSteps(),
		Executions: []*models.StepExecution{{
			ID:                 newID(t),
			StepID:             definition.Steps[0].ID,
			Attempt:            1,
			Status:             models.StepExecutionInProgress,
			ResolvedAssigneeID: assignee,
			StartedAt:          &now,
		}},
		Context:       map[string]any{"ownerId": assignee},
		TriggeredByID: "user-1",
		StartedAt:     now,
	}
}

func testRuns(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.RunRepository()

	definition := NewDefinition(t, "org-1", 2)
	require.NoError(t, p.DefinitionRepository().Create(ctx, definition))

	run := newRun(t, definition, "user-2")
	require.NoError(t, repo.CreateRun(ctx, run))
	assert.Equal(t, 1, run.Version)

	err := repo.CreateRun(ctx, run)
	assert.ErrorIs(t, err, persistence.ErrRunAlreadyExists)

	loaded, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version)
	assert.Equal(t, "user-2", loaded.Context["ownerId"])
	require.Len(t, loaded.Executions, 1)

	loaded.CurrentStepIndex = 1
	require.NoError(t, repo.UpdateRun(ctx, loaded, 1))
	assert.Equal(t, 2, loaded.Version)

	run.Status = models.RunStatusCancelled
	err = repo.UpdateRun(ctx, run, 1)
	assert.True(t, persistence.IsStaleRun(err))

	stored, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, stored.Status)
	assert.Equal(t, 1, stored.CurrentStepIndex)

	_, err = repo.GetRun(ctx, newID(t))
	assert.True(t, persistence.IsRunNotFound(err))

	missing := newRun(t, definition, "user-2")
	assert.True(t, persistence.IsRunNotFound(repo.UpdateRun(ctx, missing, 1)))

	runs, err := repo.ListRunsByDefinition(ctx, definition.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func testAssignedRuns(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.RunRepository()

	definition := NewDefinition(t, "org-1", 1)
	require.NoError(t, p.DefinitionRepository().Create(ctx, definition))

	mine := newRun(t, definition, "alice")
	theirs := newRun(t, definition, "bob")
	done := newRun(t, definition, "alice")

	for _, run := range []*models.WorkflowRun{mine, theirs, done} {
		require.NoError(t, repo.CreateRun(ctx, run))
	}

	done.Status = models.RunStatusCompleted
	done.Executions[0].Status = models.StepExecutionCompleted
	require.NoError(t, repo.UpdateRun(ctx, done, done.Version))

	running, err := repo.ListRunsByStatus(ctx, models.RunStatusRunning)
	require.NoError(t, err)
	assert.Len(t, running, 2)

	completed, err := repo.ListRunsByStatus(ctx, models.RunStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ID)

	runs, err := repo.ListRunsAssignedTo(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, mine.ID, runs[0].ID)
}

func newDashboard(owner models.Owner, name string) *models.SavedDashboard {
	return &models.SavedDashboard{
		Owner: owner,
		Name:  name,
		Layout: &models.LayoutConfig{
			Version: models.CurrentLayoutVersion,
			Name:    name,
			Columns: models.DefaultColumns,
			Widgets: []*models.WidgetConfig{
				{ID: "w-" + name, Type: "my_tasks", Position: models.Position{W: 4, H: 3}, Settings: map[string]any{"limit": float64(5)}},
			},
		},
	}
}

func countDefaults(t *testing.T, p persistence.Persistence, owner models.Owner) int {
	t.Helper()

	dashboards, err := p.DashboardRepository().ListByOwner(t.Context(), owner)
	require.NoError(t, err)

	count := 0

	for _, dashboard := range dashboards {
		if dashboard.IsDefault {
			count++
		}
	}

	return count
}

func testDashboards(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.DashboardRepository()
	owner := models.Owner{UserID: "user-1", OrganizationID: "org-1"}
	stranger := models.Owner{UserID: "user-2", OrganizationID: "org-1"}

	first := newDashboard(owner, "first")
	require.NoError(t, repo.Save(ctx, first))
	require.NotEmpty(t, first.ID)

	time.Sleep(5 * time.Millisecond)

	second := newDashboard(owner, "second")
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, newDashboard(stranger, "theirs")))

	list, err := repo.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	loaded, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, loaded.Owner)
	assert.Equal(t, "w-first", loaded.Layout.Widgets[0].ID)
	assert.InDelta(t, 5, loaded.Layout.Widgets[0].Settings["limit"], 0)

	require.NoError(t, repo.SetDefault(ctx, owner, first.ID))
	require.NoError(t, repo.SetDefault(ctx, owner, second.ID))
	assert.Equal(t, 1, countDefaults(t, p, owner))

	err = repo.SetDefault(ctx, stranger, first.ID)
	assert.True(t, persistence.IsDashboardNotFound(err))

	require.NoError(t, repo.Delete(ctx, first.ID))
	assert.True(t, persistence.IsDashboardNotFound(repo.Delete(ctx, first.ID)))

	_, err = repo.GetByID(ctx, first.ID)
	assert.True(t, persistence.IsDashboardNotFound(err))
}

func testConcurrentSetDefault(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.DashboardRepository()
	owner := models.Owner{UserID: "user-1", OrganizationID: "org-1"}

	ids := make([]string, 6)
	for i := range ids {
		dashboard := newDashboard(owner, fmt.Sprintf("d%d", i))
		require.NoError(t, repo.Save(ctx, dashboard))
		ids[i] = dashboard.ID
	}

	var wg sync.WaitGroup

	for round := range 5 {
		for _, id := range ids {
			wg.Add(1)

			go func(id string) {
				defer wg.Done()

				assert.NoError(t, repo.SetDefault(ctx, owner, id), "round %d", round)
			}(id)
		}

		wg.Wait()
		assert.Equal(t, 1, countDefaults(t, p, owner))
	}
}

func testSaveKeepsDefault(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	repo := p.DashboardRepository()
	owner := models.Owner{UserID: "user-1", OrganizationID: "org-1"}

	first := newDashboard(owner, "first")
	require.NoError(t, repo.Save(ctx, first))

	second := newDashboard(owner, "second")
	require.NoError(t, repo.Save(ctx, second))

	require.NoError(t, repo.SetDefault(ctx, owner, first.ID))

	stale, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, stale.IsDefault)

	require.NoError(t, repo.SetDefault(ctx, owner, second.ID))

	stale.Name = "first renamed"
	require.NoError(t, repo.Save(ctx, stale))
	assert.False(t, stale.IsDefault)
	assert.Equal(t, 1, countDefaults(t, p, owner))

	loaded, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsDefault)

	claimed := newDashboard(owner, "claimed")
	claimed.IsDefault = true
	require.NoError(t, repo.Save(ctx, claimed))
	assert.False(t, claimed.IsDefault)
	assert.Equal(t, 1, countDefaults(t, p, owner))
}

func testRotationCursor(t *testing.T, p persistence.Persistence) {
	ctx := t.Context()
	cursor := p.RotationCursor()

	for want := range int64(3) {
		got, err := cursor.Next(ctx, "step-a")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := cursor.Next(ctx, "step-b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	const workers = 20

	seen := make(chan int64, workers)

	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			value, err := cursor.Next(ctx, "step-c")
			assert.NoError(t, err)

			seen <- value
		}()
	}

	wg.Wait()
	close(seen)

	values := map[int64]bool{}
	for value := range seen {
		values[value] = true
	}

	assert.Len(t, values, workers, "every concurrent Next must return a distinct value")
}
