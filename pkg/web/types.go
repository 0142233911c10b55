// Package web provides HTTP request and response types for the agencyflow API.
package web

import (
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/shopspring/decimal"
)

// CallerHeader carries the id of the user on whose behalf the request is made.
// Authentication happens upstream; the id is only resolved through the directory.
const CallerHeader = "X-User-ID"

// CreateDefinitionRequest represents the request body for creating a workflow definition.
type CreateDefinitionRequest struct {
	Name            string             `json:"name"                        validate:"required,min=3"`
	Description     string             `json:"description"`
	Color           string             `json:"color,omitempty"`
	TriggerType     models.TriggerType `json:"trigger_type"                validate:"required"`
	TriggerEntity   string             `json:"trigger_entity,omitempty"`
	TriggerConfig   map[string]any     `json:"trigger_config,omitempty"`
	DefaultSLAHours *int               `json:"default_sla_hours,omitempty" validate:"omitempty,min=1"`
}

// UpdateDefinitionRequest represents the request body for updating a definition.
// All fields are optional to support partial updates.
type UpdateDefinitionRequest struct {
	Name            *string             `json:"name,omitempty"              validate:"omitempty,min=3"`
	Description     *string             `json:"description,omitempty"`
	Color           *string             `json:"color,omitempty"`
	IsActive        *bool               `json:"is_active,omitempty"`
	TriggerType     *models.TriggerType `json:"trigger_type,omitempty"`
	TriggerEntity   *string             `json:"trigger_entity,omitempty"`
	TriggerConfig   map[string]any      `json:"trigger_config,omitempty"`
	DefaultSLAHours *int                `json:"default_sla_hours,omitempty" validate:"omitempty,min=1"`
}

// CreateStepRequest represents the request body for appending a step to a definition.
type CreateStepRequest struct {
	Name          string                `json:"name"                     validate:"required,min=1"`
	Description   string                `json:"description,omitempty"`
	StepType      models.StepType       `json:"step_type"                validate:"required"`
	AssigneeType  models.AssigneeType   `json:"assignee_type"            validate:"required"`
	AssigneeValue string                `json:"assignee_value,omitempty"`
	SLAHours      *int                  `json:"sla_hours,omitempty"      validate:"omitempty,min=1"`
	MaxRevisions  *int                  `json:"max_revisions,omitempty"  validate:"omitempty,min=0"`
	Condition     *models.StepCondition `json:"condition,omitempty"`
	FormSchema    map[string]any        `json:"form_schema,omitempty"`
}

// StartRunRequest represents the request body for starting a run.
type StartRunRequest struct {
	Context map[string]any `json:"context"`
}

// CompleteStepRequest represents the request body for completing the current step.
// ExpectedVersion is the run version the caller last read; zero skips the check.
type CompleteStepRequest struct {
	ExpectedVersion int              `json:"expected_version" validate:"min=0"`
	Decision        *models.Decision `json:"decision,omitempty"`
	Feedback        string           `json:"feedback,omitempty"`
	FormData        map[string]any   `json:"form_data,omitempty"`
}

// CancelRunRequest represents the request body for cancelling a run.
type CancelRunRequest struct {
	Reason string `json:"reason"`
}

// SaveDashboardRequest represents the request body for creating or updating a dashboard.
type SaveDashboardRequest struct {
	Name   string               `json:"name"`
	Layout *models.LayoutConfig `json:"layout" validate:"required"`
}

// WorkingDaysRequest represents the request body for the leave day-count endpoint.
type WorkingDaysRequest struct {
	StartDate time.Time            `json:"start_date" validate:"required"`
	EndDate   time.Time            `json:"end_date"   validate:"required"`
	HalfDay   bool                 `json:"half_day"`
	Balance   *models.LeaveBalance `json:"balance,omitempty"`
}

// WorkingDaysResponse reports the day count and whether the request may go ahead.
type WorkingDaysResponse struct {
	Days     decimal.Decimal        `json:"days"`
	Allowed  bool                   `json:"allowed"`
	Reason   string                 `json:"reason,omitempty"`
	Blackout *models.BlackoutPeriod `json:"blackout,omitempty"`
	Weekend  string                 `json:"weekend"`
}
