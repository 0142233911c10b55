package services

import (
	"fmt"
	"testing"

	"github.com/dukex/agencyflow/pkg/dashboard"
	"github.com/dukex/agencyflow/pkg/layout"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/dukex/agencyflow/pkg/workdays"
	"github.com/dukex/agencyflow/pkg/workflow"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		validation    bool
		unprocessable bool
		conflict      bool
		notFound      bool
	}{
		{name: "invalid request", err: ErrInvalidRequest, validation: true},
		{name: "missing caller", err: ErrCallerRequired, validation: true},
		{name: "invalid step", err: fmt.Errorf("%w: unknown step type", workflow.ErrInvalidStep), validation: true},
		{name: "invalid decision", err: workflow.ErrInvalidDecision, validation: true},
		{name: "invalid layout", err: &layout.LayoutError{Problems: []error{layout.ErrOutOfBounds}}, validation: true},
		{name: "dashboard without name", err: dashboard.ErrNameRequired, validation: true},
		{name: "leave range", err: workdays.ErrInvalidRange, validation: true},
		{name: "no steps", err: fmt.Errorf("cannot start: %w", workflow.ErrNoStepsDefined), unprocessable: true},
		{name: "inactive definition", err: workflow.ErrDefinitionInactive, unprocessable: true},
		{name: "unknown user", err: workflow.ErrUnknownUser, unprocessable: true},
		{name: "empty pool", err: workflow.ErrEmptyCandidatePool, unprocessable: true},
		{name: "already terminal", err: &workflow.TransitionError{Op: "CompleteStep", Err: workflow.ErrAlreadyTerminal}, conflict: true},
		{name: "stale run", err: workflow.ErrStaleRunState, conflict: true},
		{name: "no active step", err: workflow.ErrNoActiveStep, conflict: true},
		{name: "definition edited concurrently", err: fmt.Errorf("failed to save workflow step: %w", workflow.ErrStaleDefinition), conflict: true},
		{name: "duplicate definition", err: persistence.NewDefinitionError("Create", "d-1", persistence.ErrDefinitionAlreadyExists), conflict: true},
		{name: "malformed form schema", err: fmt.Errorf("%w: %w", workflow.ErrInvalidStep, models.ErrInvalidSchema), validation: true},
		{name: "definition not found", err: persistence.NewDefinitionError("GetByID", "d-1", persistence.ErrDefinitionNotFound), notFound: true},
		{name: "run not found", err: workflow.ErrRunNotFound, notFound: true},
		{name: "dashboard not found", err: persistence.NewDashboardError("Get", "x", dashboard.ErrNotFound), notFound: true},
		{name: "generic error", err: assert.AnError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.validation, IsValidationError(tt.err))
			assert.Equal(t, tt.unprocessable, IsUnprocessableError(tt.err))
			assert.Equal(t, tt.conflict, IsConflictError(tt.err))
			assert.Equal(t, tt.notFound, IsNotFoundError(tt.err))
		})
	}
}
