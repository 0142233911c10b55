// Package services holds the facades shared by the HTTP and CLI entry points and
// classifies domain errors into response kinds.
package services

import (
	"errors"

	"github.com/dukex/agencyflow/pkg/dashboard"
	"github.com/dukex/agencyflow/pkg/layout"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/dukex/agencyflow/pkg/workdays"
	"github.com/dukex/agencyflow/pkg/workflow"
)

// Request errors (400 Bad Request).
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrCallerRequired = errors.New("caller identity is required")
)

// IsValidationError checks if an error is a malformed request that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrCallerRequired) ||
		errors.Is(err, workflow.ErrInvalidDefinition) ||
		errors.Is(err, workflow.ErrInvalidStep) ||
		errors.Is(err, workflow.ErrInvalidDecision) ||
		errors.Is(err, workflow.ErrInvalidFormData) ||
		errors.Is(err, layout.ErrInvalidLayout) ||
		errors.Is(err, layout.ErrUnknownWidgetType) ||
		errors.Is(err, layout.ErrOutOfBounds) ||
		errors.Is(err, dashboard.ErrNameRequired) ||
		errors.Is(err, workdays.ErrInvalidRange) ||
		errors.Is(err, workdays.ErrHalfDaySpan)
}

// IsUnprocessableError checks if a well-formed request failed a domain
// precondition and should return HTTP 422.
func IsUnprocessableError(err error) bool {
	return workflow.IsNoStepsDefined(err) ||
		errors.Is(err, workflow.ErrDefinitionInactive) ||
		errors.Is(err, workflow.ErrUnknownUser) ||
		errors.Is(err, workflow.ErrMissingContextField) ||
		errors.Is(err, workflow.ErrNoPreviousStep) ||
		errors.Is(err, workflow.ErrEmptyCandidatePool) ||
		errors.Is(err, workflow.ErrConditionFailed) ||
		errors.Is(err, workflow.ErrInvalidBranchTarget)
}

// IsConflictError checks if an error is a concurrency conflict that should return HTTP 409.
// Callers recover by re-fetching the run or definition and retrying.
func IsConflictError(err error) bool {
	return workflow.IsAlreadyTerminal(err) ||
		errors.Is(err, workflow.ErrNoActiveStep) ||
		workflow.IsStaleRunState(err) ||
		errors.Is(err, workflow.ErrStaleDefinition) ||
		errors.Is(err, persistence.ErrDefinitionAlreadyExists) ||
		errors.Is(err, persistence.ErrRunAlreadyExists)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, workflow.ErrDefinitionNotFound) ||
		errors.Is(err, workflow.ErrRunNotFound) ||
		errors.Is(err, dashboard.ErrNotFound)
}
