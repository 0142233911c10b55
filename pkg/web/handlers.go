// Package web provides HTTP handlers and REST API endpoints for workflow runs and dashboards.
package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/dukex/agencyflow/pkg/dashboard"
	"github.com/dukex/agencyflow/pkg/identity"
	"github.com/dukex/agencyflow/pkg/layout"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/services"
	"github.com/dukex/agencyflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	definitions *workflow.Definitions
	engine      *workflow.Engine
	dashboards  *dashboard.Store
	widgets     *layout.Registry
	leave       *services.Leave
	health      *services.Health
	directory   identity.Directory
	validator   *validator.Validate
}

func NewAPIHandlers(
	definitions *workflow.Definitions,
	engine *workflow.Engine,
	dashboards *dashboard.Store,
	widgets *layout.Registry,
	leave *services.Leave,
	health *services.Health,
	directory identity.Directory,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		definitions: definitions,
		engine:      engine,
		dashboards:  dashboards,
		widgets:     widgets,
		leave:       leave,
		health:      health,
		directory:   directory,
		validator:   validator,
	}
}

// Routes mounts every API endpoint on router.
func (h *APIHandlers) Routes(router fiber.Router) {
	w := router.Group("/workflows")
	w.Get("/", h.ListDefinitions)
	w.Post("/", h.CreateDefinition)
	w.Get("/:id", h.GetDefinition)
	w.Patch("/:id", h.UpdateDefinition)
	w.Post("/:id/steps", h.CreateStep)
	w.Post("/:id/runs", h.StartRun)
	w.Get("/:id/runs", h.ListRuns)

	r := router.Group("/runs")
	r.Get("/:runId", h.GetRun)
	r.Post("/:runId/complete", h.CompleteStep)
	r.Post("/:runId/cancel", h.CancelRun)

	router.Get("/me/steps", h.ListAssignedSteps)

	d := router.Group("/dashboards")
	d.Get("/", h.ListDashboards)
	d.Post("/", h.CreateDashboard)
	d.Get("/:id", h.GetDashboard)
	d.Put("/:id", h.UpdateDashboard)
	d.Delete("/:id", h.DeleteDashboard)
	d.Post("/:id/default", h.SetDefaultDashboard)
	d.Post("/:id/duplicate", h.DuplicateDashboard)

	router.Get("/widgets", h.ListWidgets)
	router.Post("/leave/working-days", h.WorkingDays)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.health.HealthCheck(c.Context())

	status := "unhealthy"
	message := "agencyflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "agencyflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// caller resolves the X-User-ID header through the directory.
func (h *APIHandlers) caller(c fiber.Ctx) (*models.Identity, error) {
	id := c.Get(CallerHeader)
	if id == "" {
		return nil, services.ErrCallerRequired
	}

	return h.directory.UserByID(c.Context(), id)
}

func callerError(c fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrCallerRequired) || identity.IsUnknownUser(err) {
		return unauthorized(c, err.Error())
	}

	return handleServiceError(c, err)
}

// definitionFor loads a definition visible to the caller's organization.
// Definitions of other organizations are reported as missing.
func (h *APIHandlers) definitionFor(c fiber.Ctx, caller *models.Identity, id string) (*models.WorkflowDefinition, error) {
	definition, err := h.definitions.GetDefinition(c.Context(), id)
	if err != nil {
		return nil, err
	}

	if definition.OrganizationID != caller.OrganizationID {
		return nil, workflow.ErrDefinitionNotFound
	}

	return definition, nil
}

func (h *APIHandlers) runFor(c fiber.Ctx, caller *models.Identity, id string) (*models.WorkflowRun, error) {
	run, err := h.engine.GetRun(c.Context(), id)
	if err != nil {
		return nil, err
	}

	if run.OrganizationID != caller.OrganizationID {
		return nil, workflow.ErrRunNotFound
	}

	return run, nil
}

func (h *APIHandlers) ListDefinitions(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	definitions, err := h.definitions.ListDefinitions(c.Context(), caller.OrganizationID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   definitions,
		"total_count": len(definitions),
	})
}

func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	var req CreateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.definitions.CreateDefinition(c.Context(), workflow.CreateDefinitionInput{
		OrganizationID:  caller.OrganizationID,
		Name:            req.Name,
		Description:     req.Description,
		Color:           req.Color,
		TriggerType:     req.TriggerType,
		TriggerEntity:   req.TriggerEntity,
		TriggerConfig:   req.TriggerConfig,
		DefaultSLAHours: req.DefaultSLAHours,
		CreatedBy:       caller.ID,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	definition, err := h.definitionFor(c, caller, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) UpdateDefinition(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	var req UpdateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	definition, err := h.definitionFor(c, caller, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	updated, err := h.definitions.UpdateDefinition(c.Context(), definition.ID, workflow.UpdateDefinitionInput{
		Name:            req.Name,
		Description:     req.Description,
		Color:           req.Color,
		IsActive:        req.IsActive,
		TriggerType:     req.TriggerType,
		TriggerEntity:   req.TriggerEntity,
		TriggerConfig:   req.TriggerConfig,
		DefaultSLAHours: req.DefaultSLAHours,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) CreateStep(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	var req CreateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	definition, err := h.definitionFor(c, caller, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	step, err := h.definitions.CreateStep(c.Context(), workflow.CreateStepInput{
		DefinitionID:  definition.ID,
		Name:          req.Name,
		Description:   req.Description,
		StepType:      req.StepType,
		AssigneeType:  req.AssigneeType,
		AssigneeValue: req.AssigneeValue,
		SLAHours:      req.SLAHours,
		MaxRevisions:  req.MaxRevisions,
		Condition:     req.Condition,
		FormSchema:    req.FormSchema,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	var req StartRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	definition, err := h.definitionFor(c, caller, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	run, err := h.engine.StartWorkflow(c.Context(), definition.ID, caller.ID, req.Context)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

func (h *APIHandlers) ListRuns(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	definition, err := h.definitionFor(c, caller, c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	runs, err := h.engine.ListRuns(c.Context(), definition.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":        runs,
		"total_count": len(runs),
	})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	run, err := h.runFor(c, caller, c.Params("runId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) CompleteStep(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	var req CompleteStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.runFor(c, caller, c.Params("runId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	updated, err := h.engine.CompleteStep(c.Context(), workflow.CompleteStepInput{
		RunID:           run.ID,
		ExpectedVersion: req.ExpectedVersion,
		ActorID:         caller.ID,
		Decision:        req.Decision,
		Feedback:        req.Feedback,
		FormData:        req.FormData,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	var req CancelRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	run, err := h.runFor(c, caller, c.Params("runId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	cancelled, err := h.engine.CancelWorkflow(c.Context(), run.ID, caller.ID, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(cancelled)
}

func (h *APIHandlers) ListAssignedSteps(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	steps, err := h.engine.ListAssignedSteps(c.Context(), caller.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"steps":       steps,
		"total_count": len(steps),
	})
}

func (h *APIHandlers) ListDashboards(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	dashboards, err := h.dashboards.List(c.Context(), caller.Owner())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"dashboards":  dashboards,
		"total_count": len(dashboards),
	})
}

func (h *APIHandlers) GetDashboard(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	saved, err := h.dashboards.Get(c.Context(), caller.Owner(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) CreateDashboard(c fiber.Ctx) error {
	return h.saveDashboard(c, "")
}

func (h *APIHandlers) UpdateDashboard(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Dashboard ID is required")
	}

	return h.saveDashboard(c, id)
}

func (h *APIHandlers) saveDashboard(c fiber.Ctx, existingID string) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	var req SaveDashboardRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if widget, ok := h.forbiddenWidget(caller, req.Layout); !ok {
		return forbidden(c, "widget type "+widget+" requires a higher permission level")
	}

	saved, err := h.dashboards.Save(c.Context(), caller.Owner(), req.Name, req.Layout, existingID)
	if err != nil {
		return handleServiceError(c, err)
	}

	if saved.ID != existingID {
		return c.Status(fiber.StatusCreated).JSON(saved)
	}

	return c.JSON(saved)
}

// forbiddenWidget reports the first known widget type the caller may not place.
// Unknown types are left to layout validation.
func (h *APIHandlers) forbiddenWidget(caller *models.Identity, config *models.LayoutConfig) (string, bool) {
	for _, widget := range config.Widgets {
		if widget == nil {
			continue
		}

		if _, err := h.widgets.Lookup(widget.Type); err != nil {
			continue
		}

		if !h.widgets.CanUse(widget.Type, caller.PermissionLevel) {
			return widget.Type, false
		}
	}

	return "", true
}

func (h *APIHandlers) DeleteDashboard(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	if err := h.dashboards.Delete(c.Context(), caller.Owner(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SetDefaultDashboard(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	if err := h.dashboards.SetDefault(c.Context(), caller.Owner(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) DuplicateDashboard(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	duplicate, err := h.dashboards.Duplicate(c.Context(), caller.Owner(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(duplicate)
}

// ListWidgets returns the widget types the caller may place.
func (h *APIHandlers) ListWidgets(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	return c.JSON(fiber.Map{
		"widgets": h.widgets.Available(caller.PermissionLevel),
	})
}

func (h *APIHandlers) WorkingDays(c fiber.Ctx) error {
	caller, err := h.caller(c)
	if err != nil {
		return callerError(c, err)
	}

	var req WorkingDaysRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.leave.Check(c.Context(), services.LeaveCheckRequest{
		OrganizationID: caller.OrganizationID,
		Request: models.LeaveRequest{
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			HalfDay:   req.HalfDay,
		},
		Balance: req.Balance,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(WorkingDaysResponse{
		Days:     result.Days,
		Allowed:  result.Allowed,
		Reason:   result.Reason,
		Blackout: result.Blackout,
		Weekend:  h.leave.Weekend().String(),
	})
}
