package models

import "time"

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusCancelled RunStatus = "CANCELLED"
	RunStatusFailed    RunStatus = "FAILED"
)

// IsTerminal reports whether the status is absorbing.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusCancelled, RunStatusFailed:
		return true
	case RunStatusRunning:
		return false
	}

	return false
}

// StepExecutionStatus is the state of one attempt at a step.
type StepExecutionStatus string

const (
	StepExecutionPending    StepExecutionStatus = "PENDING"
	StepExecutionInProgress StepExecutionStatus = "IN_PROGRESS"
	StepExecutionCompleted  StepExecutionStatus = "COMPLETED"
	StepExecutionRejected   StepExecutionStatus = "REJECTED"
	StepExecutionSkipped    StepExecutionStatus = "SKIPPED"
)

// Decision is the reviewer outcome recorded on APPROVAL steps.
type Decision string

const (
	DecisionApprove         Decision = "APPROVE"
	DecisionRequestRevision Decision = "REQUEST_REVISION"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionRequestRevision
}

// FailureRevisionLimitExceeded is stored in FailureReason when an approval loops too often.
const FailureRevisionLimitExceeded = "RevisionLimitExceeded"

// ContextOwnerField is the run context key read by owner-based assignment.
const ContextOwnerField = "ownerId"

// StepExecution records one step being attempted within one run.
type StepExecution struct {
	ID                 string              `json:"id"`
	RunID              string              `json:"run_id"`
	StepID             string              `json:"step_id"`
	StepIndex          int                 `json:"step_index"`
	Attempt            int                 `json:"attempt"`
	Status             StepExecutionStatus `json:"status"`
	ResolvedAssigneeID string              `json:"resolved_assignee_id,omitempty"`
	StartedAt          *time.Time          `json:"started_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	DueAt              *time.Time          `json:"due_at,omitempty"`
	OverdueAt          *time.Time          `json:"overdue_at,omitempty"`
	Decision           *Decision           `json:"decision,omitempty"`
	Feedback           string              `json:"feedback,omitempty"`
	FormData           map[string]any      `json:"form_data,omitempty"`
}

// NeedsOverdueFlag reports whether the execution is in progress, past its due
// date at now and not yet flagged as overdue.
func (e *StepExecution) NeedsOverdueFlag(now time.Time) bool {
	return e.Status == StepExecutionInProgress &&
		e.DueAt != nil &&
		now.After(*e.DueAt) &&
		e.OverdueAt == nil
}

// RunHistoryEntry is an append-only audit record for a run.
type RunHistoryEntry struct {
	Action         string    `json:"action"`
	StepID         string    `json:"step_id,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	NewStatus      string    `json:"new_status,omitempty"`
	Note           string    `json:"note,omitempty"`
	At             time.Time `json:"at"`
}

// History actions.
const (
	HistoryStarted            = "STARTED"
	HistoryStepActivated      = "STEP_ACTIVATED"
	HistoryStepCompleted      = "STEP_COMPLETED"
	HistoryRevisionRequested  = "REVISION_REQUESTED"
	HistoryConditionEvaluated = "CONDITION_EVALUATED"
	HistoryStepOverdue        = "STEP_OVERDUE"
	HistoryCompleted          = "WORKFLOW_COMPLETED"
	HistoryCancelled          = "WORKFLOW_CANCELLED"
	HistoryFailed             = "WORKFLOW_FAILED"
)

// WorkflowRun is one execution instance of a definition. Steps holds the
// ordered step list captured when the run started.
type WorkflowRun struct {
	ID               string             `json:"id"`
	DefinitionID     string             `json:"definition_id"`
	OrganizationID   string             `json:"organization_id"`
	Status           RunStatus          `json:"status"`
	CurrentStepIndex int                `json:"current_step_index"`
	Steps            []*WorkflowStep    `json:"steps"`
	Executions       []*StepExecution   `json:"executions"`
	Context          map[string]any     `json:"context,omitempty"`
	TriggeredByID    string             `json:"triggered_by_id"`
	StartedAt        time.Time          `json:"started_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
	FailureReason    string             `json:"failure_reason,omitempty"`
	CancelReason     string             `json:"cancel_reason,omitempty"`
	Version          int                `json:"version"`
	History          []*RunHistoryEntry `json:"history"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// CurrentExecution returns the IN_PROGRESS execution, if any.
func (r *WorkflowRun) CurrentExecution() *StepExecution {
	for i := len(r.Executions) - 1; i >= 0; i-- {
		if r.Executions[i].Status == StepExecutionInProgress {
			return r.Executions[i]
		}
	}

	return nil
}

// CurrentStep returns the step at CurrentStepIndex, or nil once past the end.
func (r *WorkflowRun) CurrentStep() *WorkflowStep {
	if r.CurrentStepIndex < 0 || r.CurrentStepIndex >= len(r.Steps) {
		return nil
	}

	return r.Steps[r.CurrentStepIndex]
}

// StepIndexByOrder maps a step Order value to its index in Steps.
func (r *WorkflowRun) StepIndexByOrder(order int) (int, bool) {
	for i, step := range r.Steps {
		if step.Order == order {
			return i, true
		}
	}

	return 0, false
}

// PreviousExecution returns the most recent completed execution that had an
// assignee, as seen from the step at index. Step 0 has no previous execution.
func (r *WorkflowRun) PreviousExecution(index int) *StepExecution {
	if index == 0 {
		return nil
	}

	for i := len(r.Executions) - 1; i >= 0; i-- {
		execution := r.Executions[i]
		if execution.Status == StepExecutionCompleted && execution.ResolvedAssigneeID != "" {
			return execution
		}
	}

	return nil
}

// RejectedAttempts counts REJECTED executions of the step at index.
func (r *WorkflowRun) RejectedAttempts(index int) int {
	count := 0

	for _, execution := range r.Executions {
		if execution.StepIndex == index && execution.Status == StepExecutionRejected {
			count++
		}
	}

	return count
}

// InProgressCount returns how many executions are IN_PROGRESS.
func (r *WorkflowRun) InProgressCount() int {
	count := 0

	for _, execution := range r.Executions {
		if execution.Status == StepExecutionInProgress {
			count++
		}
	}

	return count
}

// Clone returns a deep copy so callers can mutate a run without aliasing stored state.
func (r *WorkflowRun) Clone() *WorkflowRun {
	clone := *r

	clone.Steps = make([]*WorkflowStep, len(r.Steps))
	for i, step := range r.Steps {
		clone.Steps[i] = step.Clone()
	}

	clone.Executions = make([]*StepExecution, len(r.Executions))
	for i, execution := range r.Executions {
		e := *execution
		e.FormData = CloneMap(execution.FormData)
		clone.Executions[i] = &e
	}

	clone.History = make([]*RunHistoryEntry, len(r.History))
	for i, entry := range r.History {
		h := *entry
		clone.History[i] = &h
	}

	clone.Context = CloneMap(r.Context)

	return &clone
}
