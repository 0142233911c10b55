package models

import "slices"

// StepType is the kind of work a step represents.
type StepType string

const (
	StepTypeTask         StepType = "TASK"
	StepTypeApproval     StepType = "APPROVAL"
	StepTypeFormInput    StepType = "FORM_INPUT"
	StepTypeCondition    StepType = "CONDITION"
	StepTypeNotification StepType = "NOTIFICATION"
	StepTypeWebhook      StepType = "WEBHOOK"
	StepTypeDelay        StepType = "DELAY"
)

var StepTypes = []StepType{
	StepTypeTask,
	StepTypeApproval,
	StepTypeFormInput,
	StepTypeCondition,
	StepTypeNotification,
	StepTypeWebhook,
	StepTypeDelay,
}

func (s StepType) Valid() bool {
	return slices.Contains(StepTypes, s)
}

// AssigneeType is the rule used to pick the acting party of a step.
type AssigneeType string

const (
	AssigneeSpecificUser  AssigneeType = "SPECIFIC_USER"
	AssigneeByRole        AssigneeType = "BY_ROLE"
	AssigneeByDepartment  AssigneeType = "BY_DEPARTMENT"
	AssigneeFromTrigger   AssigneeType = "FROM_TRIGGER"
	AssigneeRoundRobin    AssigneeType = "ROUND_ROBIN"
	AssigneePreviousActor AssigneeType = "PREVIOUS_ACTOR"
)

var AssigneeTypes = []AssigneeType{
	AssigneeSpecificUser,
	AssigneeByRole,
	AssigneeByDepartment,
	AssigneeFromTrigger,
	AssigneeRoundRobin,
	AssigneePreviousActor,
}

func (a AssigneeType) Valid() bool {
	return slices.Contains(AssigneeTypes, a)
}

// RequiresValue reports whether AssigneeValue must be set for this rule.
func (a AssigneeType) RequiresValue() bool {
	switch a {
	case AssigneeSpecificUser, AssigneeByRole, AssigneeByDepartment:
		return true
	case AssigneeFromTrigger, AssigneeRoundRobin, AssigneePreviousActor:
		return false
	}

	return false
}

// EndOfWorkflow is a branch target meaning "finish the run".
const EndOfWorkflow = -1

// DefaultMaxRevisions caps REQUEST_REVISION loops on approval steps.
const DefaultMaxRevisions = 3

// StepCondition configures a CONDITION step. Targets are step Order values.
type StepCondition struct {
	Expression string `json:"expression" validate:"required"`
	TrueOrder  int    `json:"true_order"`
	FalseOrder int    `json:"false_order"`
}

// WorkflowStep is one ordered unit of work within a definition.
type WorkflowStep struct {
	ID            string         `json:"id"`
	DefinitionID  string         `json:"definition_id"`
	Name          string         `json:"name"                     validate:"required,min=1"`
	Description   string         `json:"description,omitempty"`
	StepType      StepType       `json:"step_type"                validate:"required"`
	AssigneeType  AssigneeType   `json:"assignee_type"            validate:"required"`
	AssigneeValue string         `json:"assignee_value,omitempty"`
	SLAHours      *int           `json:"sla_hours,omitempty"      validate:"omitempty,min=1"`
	Order         int            `json:"order"`
	MaxRevisions  *int           `json:"max_revisions,omitempty"  validate:"omitempty,min=0"`
	Condition     *StepCondition `json:"condition,omitempty"`
	FormSchema    map[string]any `json:"form_schema,omitempty"`
}

// RevisionLimit returns the number of REQUEST_REVISION decisions tolerated.
func (s *WorkflowStep) RevisionLimit() int {
	if s.MaxRevisions == nil {
		return DefaultMaxRevisions
	}

	return *s.MaxRevisions
}

// Clone returns a deep copy of the step.
func (s *WorkflowStep) Clone() *WorkflowStep {
	clone := *s

	if s.SLAHours != nil {
		hours := *s.SLAHours
		clone.SLAHours = &hours
	}

	if s.MaxRevisions != nil {
		revisions := *s.MaxRevisions
		clone.MaxRevisions = &revisions
	}

	if s.Condition != nil {
		condition := *s.Condition
		clone.Condition = &condition
	}

	clone.FormSchema = CloneMap(s.FormSchema)

	return &clone
}
