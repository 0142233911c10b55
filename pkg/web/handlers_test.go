package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/agencyflow/pkg/dashboard"
	"github.com/dukex/agencyflow/pkg/identity"
	"github.com/dukex/agencyflow/pkg/layout"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence/file"
	"github.com/dukex/agencyflow/pkg/services"
	"github.com/dukex/agencyflow/pkg/web"
	"github.com/dukex/agencyflow/pkg/workdays"
	"github.com/dukex/agencyflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	persistence := file.NewPersistence(t.TempDir())
	directory := identity.NewStaticDirectory(
		&models.Identity{ID: "alice", OrganizationID: "org-1", Role: "account_manager", PermissionLevel: models.PermissionManager, IsActive: true},
		&models.Identity{ID: "bob", OrganizationID: "org-1", Role: "designer", PermissionLevel: models.PermissionMember, IsActive: true},
		&models.Identity{ID: "erin", OrganizationID: "org-2", Role: "designer", PermissionLevel: models.PermissionAdmin, IsActive: true},
	)
	widgets := layout.DefaultRegistry()
	blackouts := services.NewStaticBlackouts(&models.BlackoutPeriod{
		ID:             "year-end",
		OrganizationID: "org-1",
		Name:           "Year-end close",
		StartDate:      time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
	})

	handlers := web.NewAPIHandlers(
		workflow.NewDefinitions(persistence, logger),
		workflow.NewEngine(persistence, directory, logger),
		dashboard.NewStore(persistence.DashboardRepository(), widgets, logger),
		widgets,
		services.NewLeave(blackouts, workdays.UAEWeekend),
		services.NewHealth(persistence),
		directory,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	handlers.Routes(app)

	return app
}

func request(t *testing.T, app *fiber.App, method, path, user string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if user != "" {
		req.Header.Set(web.CallerHeader, user)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))

	return out
}

// activeDefinition creates a definition with a task for bob followed by an approval by alice.
func activeDefinition(t *testing.T, app *fiber.App) *models.WorkflowDefinition {
	t.Helper()

	resp, data := request(t, app, http.MethodPost, "/workflows", "alice", web.CreateDefinitionRequest{
		Name:        "Creative review",
		TriggerType: models.TriggerTypeManual,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	definition := decode[models.WorkflowDefinition](t, data)

	steps := []web.CreateStepRequest{
		{Name: "Draft", StepType: models.StepTypeTask, AssigneeType: models.AssigneeSpecificUser, AssigneeValue: "bob"},
		{Name: "Sign-off", StepType: models.StepTypeApproval, AssigneeType: models.AssigneeSpecificUser, AssigneeValue: "alice"},
	}
	for _, step := range steps {
		resp, data := request(t, app, http.MethodPost, "/workflows/"+definition.ID+"/steps", "alice", step)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	}

	active := true
	resp, data = request(t, app, http.MethodPatch, "/workflows/"+definition.ID, "alice", web.UpdateDefinitionRequest{IsActive: &active})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	definition = decode[models.WorkflowDefinition](t, data)

	return &definition
}

func decision(d models.Decision) *models.Decision {
	return &d
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, data := request(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, data)
	assert.Equal(t, "healthy", body["status"])
}

func TestAPIHandlers_Caller(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	tests := []struct {
		name string
		user string
	}{
		{name: "missing header", user: ""},
		{name: "unknown user", user: "mallory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := request(t, app, http.MethodGet, "/workflows", tt.user, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Contains(t, string(data), "unauthorized")
		})
	}
}

func TestAPIHandlers_CreateDefinition(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "valid definition",
			requestBody:    web.CreateDefinitionRequest{Name: "Onboarding", TriggerType: models.TriggerTypeManual},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "name too short",
			requestBody:    web.CreateDefinitionRequest{Name: "ab", TriggerType: models.TriggerTypeManual},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown trigger type",
			requestBody:    web.CreateDefinitionRequest{Name: "Onboarding", TriggerType: "ON_A_WHIM"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "scheduled without cron",
			requestBody: web.CreateDefinitionRequest{
				Name:        "Weekly report",
				TriggerType: models.TriggerTypeScheduled,
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-an-object",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := request(t, app, http.MethodPost, "/workflows", "alice", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(data))

			if tt.expectedStatus == http.StatusCreated {
				created := decode[models.WorkflowDefinition](t, data)
				assert.NotEmpty(t, created.ID)
				assert.Equal(t, "org-1", created.OrganizationID)
				assert.Equal(t, "alice", created.CreatedBy)
				assert.False(t, created.IsActive)
			}
		})
	}
}

func TestAPIHandlers_DefinitionsAreScopedToOrganization(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	definition := activeDefinition(t, app)

	resp, _ := request(t, app, http.MethodGet, "/workflows/"+definition.ID, "erin", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = request(t, app, http.MethodPost, "/workflows/"+definition.ID+"/runs", "erin", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data := request(t, app, http.MethodGet, "/workflows", "erin", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, decode[map[string]any](t, data)["total_count"])

	resp, data = request(t, app, http.MethodGet, "/workflows", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decode[map[string]any](t, data)["total_count"])
}

func TestAPIHandlers_UpdateDefinition(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, data := request(t, app, http.MethodPost, "/workflows", "alice", web.CreateDefinitionRequest{
		Name:        "Empty workflow",
		TriggerType: models.TriggerTypeManual,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	definition := decode[models.WorkflowDefinition](t, data)
	active := true

	resp, data = request(t, app, http.MethodPatch, "/workflows/"+definition.ID, "alice", web.UpdateDefinitionRequest{IsActive: &active})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, string(data))

	name := "Renamed workflow"
	resp, data = request(t, app, http.MethodPatch, "/workflows/"+definition.ID, "alice", web.UpdateDefinitionRequest{Name: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	updated := decode[models.WorkflowDefinition](t, data)
	assert.Equal(t, name, updated.Name)
	assert.Greater(t, updated.Version, definition.Version)

	resp, _ = request(t, app, http.MethodPatch, "/workflows/missing", "alice", web.UpdateDefinitionRequest{Name: &name})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_CreateStep_Invalid(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	definition := activeDefinition(t, app)

	resp, _ := request(t, app, http.MethodPost, "/workflows/"+definition.ID+"/steps", "alice", web.CreateStepRequest{
		Name:         "Route",
		StepType:     models.StepTypeCondition,
		AssigneeType: models.AssigneeFromTrigger,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = request(t, app, http.MethodPost, "/workflows/"+definition.ID+"/steps", "alice", web.CreateStepRequest{
		Name:         "Review",
		StepType:     models.StepTypeApproval,
		AssigneeType: models.AssigneeByRole,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_RunLifecycle(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	definition := activeDefinition(t, app)

	resp, data := request(t, app, http.MethodPost, "/workflows/"+definition.ID+"/runs", "alice", web.StartRunRequest{
		Context: map[string]any{"client": "ACME"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	run := decode[models.WorkflowRun](t, data)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	require.Len(t, run.Executions, 1)
	assert.Equal(t, "bob", run.Executions[0].ResolvedAssigneeID)

	resp, data = request(t, app, http.MethodGet, "/me/steps", "bob", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decode[map[string]any](t, data)["total_count"])

	resp, data = request(t, app, http.MethodPost, "/runs/"+run.ID+"/complete", "bob", web.CompleteStepRequest{
		ExpectedVersion: run.Version,
		Feedback:        "first draft attached",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	run = decode[models.WorkflowRun](t, data)
	assert.Equal(t, 1, run.CurrentStepIndex)

	resp, data = request(t, app, http.MethodPost, "/runs/"+run.ID+"/complete", "alice", web.CompleteStepRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(data))

	resp, data = request(t, app, http.MethodPost, "/runs/"+run.ID+"/complete", "alice", web.CompleteStepRequest{
		ExpectedVersion: run.Version - 1,
		Decision:        decision(models.DecisionApprove),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, string(data))

	resp, data = request(t, app, http.MethodPost, "/runs/"+run.ID+"/complete", "alice", web.CompleteStepRequest{
		ExpectedVersion: run.Version,
		Decision:        decision(models.DecisionApprove),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	run = decode[models.WorkflowRun](t, data)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	resp, _ = request(t, app, http.MethodPost, "/runs/"+run.ID+"/cancel", "alice", web.CancelRunRequest{Reason: "too late"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, data = request(t, app, http.MethodGet, "/workflows/"+definition.ID+"/runs", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, decode[map[string]any](t, data)["total_count"])

	resp, _ = request(t, app, http.MethodGet, "/runs/"+run.ID, "erin", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_CancelRun(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)
	definition := activeDefinition(t, app)

	resp, data := request(t, app, http.MethodPost, "/workflows/"+definition.ID+"/runs", "alice", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	run := decode[models.WorkflowRun](t, data)

	resp, data = request(t, app, http.MethodPost, "/runs/"+run.ID+"/cancel", "alice", web.CancelRunRequest{Reason: "client paused"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	cancelled := decode[models.WorkflowRun](t, data)
	assert.Equal(t, models.RunStatusCancelled, cancelled.Status)
	assert.Equal(t, "client paused", cancelled.CancelReason)
	assert.Equal(t, models.StepExecutionSkipped, cancelled.Executions[0].Status)

	resp, _ = request(t, app, http.MethodGet, "/runs/missing", "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_StartRun_Inactive(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, data := request(t, app, http.MethodPost, "/workflows", "alice", web.CreateDefinitionRequest{
		Name:        "Not yet",
		TriggerType: models.TriggerTypeManual,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	definition := decode[models.WorkflowDefinition](t, data)

	resp, _ = request(t, app, http.MethodPost, "/workflows/"+definition.ID+"/runs", "alice", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func sampleLayout(widgetType string) *models.LayoutConfig {
	return &models.LayoutConfig{
		Version: models.CurrentLayoutVersion,
		Columns: 12,
		Widgets: []*models.WidgetConfig{
			{Type: "my_tasks", Position: models.Position{X: 0, Y: 0, W: 4, H: 3}},
			{Type: widgetType, Position: models.Position{X: 4, Y: 0, W: 6, H: 3}},
		},
	}
}

func TestAPIHandlers_Dashboards(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	resp, data := request(t, app, http.MethodPost, "/dashboards", "alice", web.SaveDashboardRequest{
		Name:   "Morning view",
		Layout: sampleLayout("pipeline_summary"),
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	saved := decode[models.SavedDashboard](t, data)
	assert.NotEmpty(t, saved.ID)
	for _, widget := range saved.Layout.Widgets {
		assert.NotEmpty(t, widget.ID)
	}

	resp, _ = request(t, app, http.MethodGet, "/dashboards/"+saved.ID, "bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, data = request(t, app, http.MethodPut, "/dashboards/"+saved.ID, "alice", web.SaveDashboardRequest{
		Name:   "Morning view v2",
		Layout: saved.Layout,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "Morning view v2", decode[models.SavedDashboard](t, data).Name)

	resp, data = request(t, app, http.MethodPost, "/dashboards/"+saved.ID+"/duplicate", "alice", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	duplicate := decode[models.SavedDashboard](t, data)
	assert.Equal(t, "Morning view v2"+dashboard.CopySuffix, duplicate.Name)
	assert.False(t, duplicate.IsDefault)

	resp, _ = request(t, app, http.MethodPost, "/dashboards/"+duplicate.ID+"/default", "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = request(t, app, http.MethodGet, "/dashboards", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[struct {
		Dashboards []*models.SavedDashboard `json:"dashboards"`
	}](t, data)
	require.Len(t, list.Dashboards, 2)

	for _, d := range list.Dashboards {
		assert.Equal(t, d.ID == duplicate.ID, d.IsDefault)
	}

	resp, _ = request(t, app, http.MethodDelete, "/dashboards/"+saved.ID, "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = request(t, app, http.MethodDelete, "/dashboards/"+saved.ID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_SaveDashboard_Rejected(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	tests := []struct {
		name           string
		user           string
		layout         *models.LayoutConfig
		expectedStatus int
	}{
		{
			name:           "widget above caller permission",
			user:           "bob",
			layout:         sampleLayout("pipeline_summary"),
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "unknown widget type",
			user:           "alice",
			layout:         sampleLayout("weather"),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "widget past the grid edge",
			user: "alice",
			layout: &models.LayoutConfig{
				Version: models.CurrentLayoutVersion,
				Columns: 12,
				Widgets: []*models.WidgetConfig{
					{Type: "my_tasks", Position: models.Position{X: 10, Y: 0, W: 4, H: 3}},
				},
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing layout",
			user:           "alice",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := request(t, app, http.MethodPost, "/dashboards", tt.user, web.SaveDashboardRequest{
				Name:   "Rejected",
				Layout: tt.layout,
			})
			assert.Equal(t, tt.expectedStatus, resp.StatusCode, string(data))
		})
	}

	resp, data := request(t, app, http.MethodGet, "/dashboards", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, decode[map[string]any](t, data)["total_count"])
}

func TestAPIHandlers_ListWidgets(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	count := func(user string) int {
		resp, data := request(t, app, http.MethodGet, "/widgets", user, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[struct {
			Widgets []*layout.WidgetDefinition `json:"widgets"`
		}](t, data)

		return len(body.Widgets)
	}

	assert.Less(t, count("bob"), count("alice"))
	assert.Equal(t, len(layout.DefaultRegistry().List()), count("alice"))
}

func TestAPIHandlers_WorkingDays(t *testing.T) {
	t.Parallel()

	app := setupTestApp(t)

	tests := []struct {
		name           string
		user           string
		request        web.WorkingDaysRequest
		expectedStatus int
		expectedDays   decimal.Decimal
		allowed        bool
	}{
		{
			name: "full week",
			user: "erin",
			request: web.WorkingDaysRequest{
				StartDate: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC),
			},
			expectedStatus: http.StatusOK,
			expectedDays:   decimal.NewFromInt(5),
			allowed:        true,
		},
		{
			name: "overlaps blackout",
			user: "alice",
			request: web.WorkingDaysRequest{
				StartDate: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC),
			},
			expectedStatus: http.StatusOK,
			expectedDays:   decimal.NewFromInt(4),
			allowed:        false,
		},
		{
			name: "half day",
			user: "alice",
			request: web.WorkingDaysRequest{
				StartDate: time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC),
				HalfDay:   true,
			},
			expectedStatus: http.StatusOK,
			expectedDays:   workdays.HalfDay,
			allowed:        true,
		},
		{
			name: "reversed range",
			user: "alice",
			request: web.WorkingDaysRequest{
				StartDate: time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := request(t, app, http.MethodPost, "/leave/working-days", tt.user, tt.request)
			require.Equal(t, tt.expectedStatus, resp.StatusCode, string(data))

			if tt.expectedStatus != http.StatusOK {
				return
			}

			result := decode[web.WorkingDaysResponse](t, data)
			assert.True(t, tt.expectedDays.Equal(result.Days), "got %s", result.Days)
			assert.Equal(t, tt.allowed, result.Allowed)
			assert.Equal(t, workdays.UAEWeekend.String(), result.Weekend)

			if !tt.allowed {
				require.NotNil(t, result.Blackout)
				assert.Equal(t, "year-end", result.Blackout.ID)
			}
		})
	}
}
