package workflow

import (
	"errors"
	"fmt"

	"github.com/dukex/agencyflow/pkg/identity"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
)

// Validation errors: the caller asked for something the definition or run does not allow.
var (
	ErrInvalidDefinition   = errors.New("invalid workflow definition")
	ErrInvalidStep         = errors.New("invalid workflow step")
	ErrNoStepsDefined      = errors.New("workflow has no steps defined")
	ErrDefinitionInactive  = errors.New("workflow definition is inactive")
	ErrMissingContextField = errors.New("required context field is missing")
	ErrNoPreviousStep      = errors.New("step has no previous step to take the actor from")
	ErrEmptyCandidatePool  = errors.New("no active members match the assignee rule")
	ErrInvalidDecision     = errors.New("decision is not valid for this step")
	ErrInvalidFormData     = errors.New("form data does not match the step form schema")
	ErrConditionFailed     = errors.New("condition could not be evaluated")
	ErrInvalidBranchTarget = errors.New("condition branch target does not exist")

	ErrUnknownUser = identity.ErrUnknownUser
)

// Concurrency conflicts: re-fetch the run and retry.
var (
	ErrAlreadyTerminal = errors.New("workflow run is already terminal")
	ErrNoActiveStep    = errors.New("workflow run has no step in progress")
	ErrStaleRunState   = errors.New("workflow run changed since it was read")
	ErrStaleDefinition = errors.New("workflow definition kept changing while it was being edited")
)

// Not found errors are the persistence sentinels.
var (
	ErrDefinitionNotFound = persistence.ErrDefinitionNotFound
	ErrRunNotFound        = persistence.ErrRunNotFound
)

// TransitionError reports a rejected run transition together with the state it was rejected in.
type TransitionError struct {
	Op     string
	RunID  string
	Status models.RunStatus
	Err    error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s rejected for workflow run %s (status %s): %v", e.Op, e.RunID, e.Status, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

func (e *TransitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newTransitionError(op string, run *models.WorkflowRun, err error) *TransitionError {
	return &TransitionError{Op: op, RunID: run.ID, Status: run.Status, Err: err}
}

// IsAlreadyTerminal checks if a transition hit a COMPLETED, CANCELLED or FAILED run.
func IsAlreadyTerminal(err error) bool {
	return errors.Is(err, ErrAlreadyTerminal)
}

// IsStaleRunState checks if a transition lost a concurrent update.
func IsStaleRunState(err error) bool {
	return errors.Is(err, ErrStaleRunState)
}

// IsNoStepsDefined checks if a definition without steps was started or activated.
func IsNoStepsDefined(err error) bool {
	return errors.Is(err, ErrNoStepsDefined)
}
