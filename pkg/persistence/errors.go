package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a workflow definition was not found by the given identifier.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrDefinitionAlreadyExists indicates a definition with the same identifier was already created.
	ErrDefinitionAlreadyExists = errors.New("workflow definition already exists")

	// ErrStaleDefinition indicates the stored definition version differs from the expected one.
	ErrStaleDefinition = errors.New("workflow definition version mismatch")

	// ErrRunNotFound indicates a workflow run was not found by the given identifier.
	ErrRunNotFound = errors.New("workflow run not found")

	// ErrRunAlreadyExists indicates a run with the same identifier was already created.
	ErrRunAlreadyExists = errors.New("workflow run already exists")

	// ErrStaleRun indicates the stored run version differs from the expected one.
	ErrStaleRun = errors.New("workflow run version mismatch")

	// ErrDashboardNotFound indicates a dashboard was not found by the given identifier.
	ErrDashboardNotFound = errors.New("dashboard not found")
)

// DefinitionError wraps definition-related errors with additional context.
type DefinitionError struct {
	Op              string // Operation being performed (e.g., "GetByID", "Update")
	DefinitionID    string
	ExpectedVersion int
	ActualVersion   int
	Err             error
}

func (e *DefinitionError) Error() string {
	if errors.Is(e.Err, ErrStaleDefinition) {
		return fmt.Sprintf("%s operation failed for workflow definition %s: %v (expected %d, stored %d)",
			e.Op, e.DefinitionID, e.Err, e.ExpectedVersion, e.ActualVersion)
	}

	return fmt.Sprintf("%s operation failed for workflow definition %s: %v", e.Op, e.DefinitionID, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// RunError wraps run-related errors with additional context.
type RunError struct {
	Op              string
	RunID           string
	ExpectedVersion int
	ActualVersion   int
	Err             error
}

func (e *RunError) Error() string {
	if errors.Is(e.Err, ErrStaleRun) {
		return fmt.Sprintf("%s operation failed for workflow run %s: %v (expected %d, stored %d)",
			e.Op, e.RunID, e.Err, e.ExpectedVersion, e.ActualVersion)
	}

	return fmt.Sprintf("%s operation failed for workflow run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// DashboardError wraps dashboard-related errors with additional context.
type DashboardError struct {
	Op          string
	DashboardID string
	Err         error
}

func (e *DashboardError) Error() string {
	return fmt.Sprintf("%s operation failed for dashboard %s: %v", e.Op, e.DashboardID, e.Err)
}

func (e *DashboardError) Unwrap() error {
	return e.Err
}

func (e *DashboardError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func NewDefinitionError(op, definitionID string, err error) *DefinitionError {
	return &DefinitionError{Op: op, DefinitionID: definitionID, Err: err}
}

// NewStaleDefinitionError reports a failed compare-and-swap on a definition.
func NewStaleDefinitionError(op, definitionID string, expected, actual int) *DefinitionError {
	return &DefinitionError{
		Op:              op,
		DefinitionID:    definitionID,
		ExpectedVersion: expected,
		ActualVersion:   actual,
		Err:             ErrStaleDefinition,
	}
}

func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// NewStaleRunError reports a failed compare-and-swap.
func NewStaleRunError(op, runID string, expected, actual int) *RunError {
	return &RunError{Op: op, RunID: runID, ExpectedVersion: expected, ActualVersion: actual, Err: ErrStaleRun}
}

func NewDashboardError(op, dashboardID string, err error) *DashboardError {
	return &DashboardError{Op: op, DashboardID: dashboardID, Err: err}
}

// IsDefinitionNotFound checks if an error indicates a workflow definition was not found.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsStaleDefinition checks if an error indicates a lost definition compare-and-swap.
func IsStaleDefinition(err error) bool {
	return errors.Is(err, ErrStaleDefinition)
}

// IsRunNotFound checks if an error indicates a workflow run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsStaleRun checks if an error indicates a lost compare-and-swap.
func IsStaleRun(err error) bool {
	return errors.Is(err, ErrStaleRun)
}

// IsDashboardNotFound checks if an error indicates a dashboard was not found.
func IsDashboardNotFound(err error) bool {
	return errors.Is(err, ErrDashboardNotFound)
}
