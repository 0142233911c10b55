package layout

import (
	"fmt"

	"github.com/dukex/agencyflow/pkg/models"
)

// ValidatePlacement checks position against the size bounds of widgetType.
func (r *Registry) ValidatePlacement(widgetType string, position models.Position) error {
	definition, err := r.Lookup(widgetType)
	if err != nil {
		return err
	}

	if position.X < 0 || position.Y < 0 {
		return &PlacementError{
			WidgetType: widgetType,
			Position:   position,
			Err:        ErrOutOfBounds,
			Message:    fmt.Sprintf("negative origin (%d,%d)", position.X, position.Y),
		}
	}

	if !definition.fits(position.W, position.H) {
		return &PlacementError{
			WidgetType: widgetType,
			Position:   position,
			Err:        ErrOutOfBounds,
			Message: fmt.Sprintf("size %dx%d outside %dx%d..%dx%d", position.W, position.H,
				definition.MinWidth, definition.MinHeight, definition.MaxWidth, definition.MaxHeight),
		}
	}

	return nil
}

// DefaultPositionFor returns a position at the origin sized to the type's default size.
func (r *Registry) DefaultPositionFor(widgetType string) (models.Position, error) {
	definition, err := r.Lookup(widgetType)
	if err != nil {
		return models.Position{}, err
	}

	w, h, err := parseSize(definition.DefaultSize)
	if err != nil {
		return models.Position{}, err
	}

	return models.Position{W: w, H: h}, nil
}

// ValidateSettings checks widget settings against the type's settings schema.
func (r *Registry) ValidateSettings(widgetType string, settings map[string]any) error {
	definition, err := r.Lookup(widgetType)
	if err != nil {
		return err
	}

	if err := models.ValidateDocument(definition.SettingsSchema, settings); err != nil {
		return &PlacementError{WidgetType: widgetType, Err: ErrInvalidSettings, Message: err.Error()}
	}

	return nil
}

// ValidateLayout checks every widget of config and returns all problems at once
// as a *LayoutError. A nil return means the layout may be persisted as is.
func (r *Registry) ValidateLayout(config *models.LayoutConfig) error {
	if config == nil {
		return &LayoutError{Problems: []error{fmt.Errorf("layout is missing")}}
	}

	var problems []error

	if config.Columns < 1 {
		problems = append(problems, fmt.Errorf("columns must be positive, got %d", config.Columns))
	}

	seen := make(map[string]bool, len(config.Widgets))

	for _, widget := range config.Widgets {
		if widget == nil {
			problems = append(problems, fmt.Errorf("null widget entry"))

			continue
		}

		if widget.ID != "" {
			if seen[widget.ID] {
				problems = append(problems, fmt.Errorf("duplicate widget id %q", widget.ID))
			}

			seen[widget.ID] = true
		}

		if err := r.ValidatePlacement(widget.Type, widget.Position); err != nil {
			problems = append(problems, withWidgetID(err, widget.ID))

			continue
		}

		if config.Columns > 0 && widget.Position.X+widget.Position.W > config.Columns {
			problems = append(problems, &PlacementError{
				WidgetID:   widget.ID,
				WidgetType: widget.Type,
				Position:   widget.Position,
				Err:        ErrOutOfBounds,
				Message:    fmt.Sprintf("x+w=%d exceeds %d columns", widget.Position.X+widget.Position.W, config.Columns),
			})
		}

		if err := r.ValidateSettings(widget.Type, widget.Settings); err != nil {
			problems = append(problems, withWidgetID(err, widget.ID))
		}
	}

	if len(problems) > 0 {
		return &LayoutError{Problems: problems}
	}

	return nil
}

func withWidgetID(err error, widgetID string) error {
	if placementErr, ok := err.(*PlacementError); ok {
		placementErr.WidgetID = widgetID
	}

	return err
}
