package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/agencyflow/pkg/models"
)

var (
	// ErrUnknownWidgetType indicates a widget type missing from the registry.
	ErrUnknownWidgetType = errors.New("unknown widget type")

	// ErrOutOfBounds indicates a widget size outside its type's min/max bounds,
	// or a placement that does not fit the grid.
	ErrOutOfBounds = errors.New("widget placement out of bounds")

	// ErrInvalidSettings indicates widget settings rejected by the type's schema.
	ErrInvalidSettings = errors.New("invalid widget settings")

	// ErrInvalidLayout is the umbrella error for any rejected layout.
	ErrInvalidLayout = errors.New("invalid layout")
)

// PlacementError describes why one widget cannot be placed.
type PlacementError struct {
	WidgetID   string
	WidgetType string
	Position   models.Position
	Err        error
	Message    string
}

func (e *PlacementError) Error() string {
	target := e.WidgetType
	if e.WidgetID != "" {
		target = fmt.Sprintf("%s (%s)", e.WidgetID, e.WidgetType)
	}

	if e.Message != "" {
		return fmt.Sprintf("widget %s: %s: %v", target, e.Message, e.Err)
	}

	return fmt.Sprintf("widget %s: %v", target, e.Err)
}

func (e *PlacementError) Unwrap() error {
	return e.Err
}

func (e *PlacementError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// LayoutError aggregates every problem found in a layout.
type LayoutError struct {
	Problems []error
}

func (e *LayoutError) Error() string {
	messages := make([]string, 0, len(e.Problems))
	for _, problem := range e.Problems {
		messages = append(messages, problem.Error())
	}

	return fmt.Sprintf("%v: %s", ErrInvalidLayout, strings.Join(messages, "; "))
}

// Unwrap exposes ErrInvalidLayout plus every individual problem to errors.Is.
func (e *LayoutError) Unwrap() []error {
	return append([]error{ErrInvalidLayout}, e.Problems...)
}

func IsInvalidLayout(err error) bool {
	return errors.Is(err, ErrInvalidLayout)
}

func IsOutOfBounds(err error) bool {
	return errors.Is(err, ErrOutOfBounds)
}

func IsUnknownWidgetType(err error) bool {
	return errors.Is(err, ErrUnknownWidgetType)
}
