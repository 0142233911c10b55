// Package models defines the core domain models for workflow runs and dashboard layouts.
package models

import (
	"slices"
	"time"
)

// TriggerType describes what starts a workflow definition.
type TriggerType string

const (
	TriggerTypeManual        TriggerType = "MANUAL"
	TriggerTypeEntityCreated TriggerType = "ENTITY_CREATED"
	TriggerTypeEntityUpdated TriggerType = "ENTITY_UPDATED"
	TriggerTypeScheduled     TriggerType = "SCHEDULED"
	TriggerTypeWebhook       TriggerType = "WEBHOOK"
	TriggerTypeFormSubmitted TriggerType = "FORM_SUBMITTED"
)

// TriggerTypes lists every supported trigger type.
var TriggerTypes = []TriggerType{
	TriggerTypeManual,
	TriggerTypeEntityCreated,
	TriggerTypeEntityUpdated,
	TriggerTypeScheduled,
	TriggerTypeWebhook,
	TriggerTypeFormSubmitted,
}

func (t TriggerType) Valid() bool {
	return slices.Contains(TriggerTypes, t)
}

// IsEntityTrigger reports whether TriggerEntity is meaningful for this trigger.
func (t TriggerType) IsEntityTrigger() bool {
	return t == TriggerTypeEntityCreated || t == TriggerTypeEntityUpdated
}

// WorkflowDefinition is the reusable template describing a workflow's steps and trigger.
type WorkflowDefinition struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organization_id"            validate:"required"`
	Name            string          `json:"name"                       validate:"required,min=3"`
	Description     string          `json:"description"`
	Color           string          `json:"color,omitempty"`
	IsActive        bool            `json:"is_active"`
	TriggerType     TriggerType     `json:"trigger_type"               validate:"required"`
	TriggerEntity   string          `json:"trigger_entity,omitempty"`
	TriggerConfig   map[string]any  `json:"trigger_config,omitempty"`
	DefaultSLAHours *int            `json:"default_sla_hours,omitempty" validate:"omitempty,min=1"`
	Version         int             `json:"version"`
	Steps           []*WorkflowStep `json:"steps"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SortedSteps returns the definition's steps ordered by Order ascending.
// The definition itself is left untouched.
func (d *WorkflowDefinition) SortedSteps() []*WorkflowStep {
	steps := slices.Clone(d.Steps)
	slices.SortStableFunc(steps, func(a, b *WorkflowStep) int {
		return a.Order - b.Order
	})

	return steps
}

// NextStepOrder returns max(existing orders) + 1, or 0 for an empty definition.
func (d *WorkflowDefinition) NextStepOrder() int {
	if len(d.Steps) == 0 {
		return 0
	}

	highest := d.Steps[0].Order
	for _, step := range d.Steps[1:] {
		highest = max(highest, step.Order)
	}

	return highest + 1
}

// Schedule returns the cron schedule for SCHEDULED definitions.
func (d *WorkflowDefinition) Schedule() (*TriggerSchedule, bool) {
	if d.TriggerType != TriggerTypeScheduled {
		return nil, false
	}

	expression, _ := d.TriggerConfig[TriggerConfigCron].(string)

	return &TriggerSchedule{DefinitionID: d.ID, CronExpression: expression}, true
}
