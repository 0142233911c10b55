// Package events defines the workflow run lifecycle events published after
// successful engine transitions.
package events

import (
	"time"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every run lifecycle event.
const Topic = "agencyflow.workflow.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent        EventType = "workflow.run.started"
	StepActivatedEvent     EventType = "workflow.step.activated"
	StepCompletedEvent     EventType = "workflow.step.completed"
	RevisionRequestedEvent EventType = "workflow.step.revision_requested"
	StepOverdueEvent       EventType = "workflow.step.overdue"
	RunCompletedEvent      EventType = "workflow.run.completed"
	RunCancelledEvent      EventType = "workflow.run.cancelled"
	RunFailedEvent         EventType = "workflow.run.failed"
)

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	DefinitionID   string         `json:"definition_id"`
	RunID          string         `json:"run_id"`
	OrganizationID string         `json:"organization_id"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a fresh event for run.
func NewBaseEvent(eventType EventType, run *models.WorkflowRun) BaseEvent {
	return BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		DefinitionID:   run.DefinitionID,
		RunID:          run.ID,
		OrganizationID: run.OrganizationID,
		Metadata:       make(map[string]any),
	}
}

type RunStarted struct {
	BaseEvent

	TriggeredBy string         `json:"triggered_by"`
	Context     map[string]any `json:"context,omitempty"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

// StepActivated is emitted whenever an execution becomes IN_PROGRESS, including
// re-activations after a revision request.
type StepActivated struct {
	BaseEvent

	StepID     string          `json:"step_id"`
	StepName   string          `json:"step_name"`
	StepType   models.StepType `json:"step_type"`
	AssigneeID string          `json:"assignee_id,omitempty"`
	Attempt    int             `json:"attempt"`
	DueAt      *time.Time      `json:"due_at,omitempty"`
}

func (e StepActivated) GetType() EventType {
	return StepActivatedEvent
}

type StepCompleted struct {
	BaseEvent

	StepID   string           `json:"step_id"`
	StepType models.StepType  `json:"step_type"`
	ActorID  string           `json:"actor_id"`
	Decision *models.Decision `json:"decision,omitempty"`
	Feedback string           `json:"feedback,omitempty"`
}

func (e StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type RevisionRequested struct {
	BaseEvent

	StepID   string `json:"step_id"`
	ActorID  string `json:"actor_id"`
	Feedback string `json:"feedback,omitempty"`
	Attempt  int    `json:"attempt"`
}

func (e RevisionRequested) GetType() EventType {
	return RevisionRequestedEvent
}

// StepOverdue is emitted once per execution when it passes its due date while
// still in progress.
type StepOverdue struct {
	BaseEvent

	StepID     string    `json:"step_id"`
	StepName   string    `json:"step_name"`
	AssigneeID string    `json:"assignee_id,omitempty"`
	DueAt      time.Time `json:"due_at"`
	Attempt    int       `json:"attempt"`
}

func (e StepOverdue) GetType() EventType {
	return StepOverdueEvent
}

type RunCompleted struct {
	BaseEvent

	TriggeredBy string `json:"triggered_by"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunCancelled struct {
	BaseEvent

	ActorID       string `json:"actor_id"`
	Reason        string `json:"reason,omitempty"`
	SkippedStepID string `json:"skipped_step_id,omitempty"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type RunFailed struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}
