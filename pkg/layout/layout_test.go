package layout

import (
	"errors"
	"testing"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	registry := DefaultRegistry()

	definitions := registry.List()
	require.NotEmpty(t, definitions)
	assert.Equal(t, "my_tasks", definitions[0].Type)

	_, err := registry.Lookup("weather")
	assert.ErrorIs(t, err, ErrUnknownWidgetType)
}

func TestNewRegistry_Rejects(t *testing.T) {
	valid := &WidgetDefinition{Type: "a", DefaultSize: "2x2", MinWidth: 1, MinHeight: 1, MaxWidth: 4, MaxHeight: 4}

	tests := []struct {
		name        string
		definitions []*WidgetDefinition
	}{
		{"duplicate type", []*WidgetDefinition{valid, valid}},
		{"missing type", []*WidgetDefinition{{DefaultSize: "1x1", MinWidth: 1, MinHeight: 1, MaxWidth: 1, MaxHeight: 1}}},
		{"inverted bounds", []*WidgetDefinition{{Type: "b", DefaultSize: "2x2", MinWidth: 3, MinHeight: 1, MaxWidth: 2, MaxHeight: 4}}},
		{"malformed default", []*WidgetDefinition{{Type: "c", DefaultSize: "wide", MinWidth: 1, MinHeight: 1, MaxWidth: 4, MaxHeight: 4}}},
		{"default outside bounds", []*WidgetDefinition{{Type: "d", DefaultSize: "9x1", MinWidth: 1, MinHeight: 1, MaxWidth: 4, MaxHeight: 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.definitions...)
			assert.Error(t, err)
		})
	}
}

func TestValidatePlacement(t *testing.T) {
	registry := DefaultRegistry()

	tests := []struct {
		name       string
		widgetType string
		position   models.Position
		wantErr    error
	}{
		{"fits", "my_tasks", models.Position{W: 4, H: 3}, nil},
		{"minimum", "my_tasks", models.Position{W: 3, H: 2}, nil},
		{"maximum", "my_tasks", models.Position{W: 8, H: 6}, nil},
		{"below min width", "my_tasks", models.Position{W: 2, H: 3}, ErrOutOfBounds},
		{"above max height", "my_tasks", models.Position{W: 4, H: 7}, ErrOutOfBounds},
		{"negative origin", "my_tasks", models.Position{X: -1, W: 4, H: 3}, ErrOutOfBounds},
		{"unknown type", "weather", models.Position{W: 1, H: 1}, ErrUnknownWidgetType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.ValidatePlacement(tt.widgetType, tt.position)
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)

			var placementErr *PlacementError
			require.True(t, errors.As(err, &placementErr))
			assert.Equal(t, tt.widgetType, placementErr.WidgetType)
		})
	}
}

func TestDefaultPositionFor(t *testing.T) {
	registry := DefaultRegistry()

	position, err := registry.DefaultPositionFor("pipeline_summary")
	require.NoError(t, err)
	assert.Equal(t, models.Position{W: 6, H: 3}, position)

	_, err = registry.DefaultPositionFor("weather")
	assert.True(t, IsUnknownWidgetType(err))
}

func TestValidateLayout_AggregatesProblems(t *testing.T) {
	registry := DefaultRegistry()

	config := &models.LayoutConfig{
		Columns: 12,
		Widgets: []*models.WidgetConfig{
			{ID: "ok", Type: "my_tasks", Position: models.Position{W: 4, H: 3}},
			{ID: "narrow", Type: "my_tasks", Position: models.Position{W: 1, H: 3}},
			{ID: "overflow", Type: "team_capacity", Position: models.Position{X: 10, W: 4, H: 3}},
			{ID: "bad-settings", Type: "my_tasks", Position: models.Position{W: 4, H: 3}, Settings: map[string]any{"sortBy": "random"}},
			{ID: "ok", Type: "weather", Position: models.Position{W: 1, H: 1}},
		},
	}

	err := registry.ValidateLayout(config)
	require.Error(t, err)

	var layoutErr *LayoutError
	require.True(t, errors.As(err, &layoutErr))
	assert.Len(t, layoutErr.Problems, 5)

	assert.True(t, IsInvalidLayout(err))
	assert.True(t, IsOutOfBounds(err))
	assert.True(t, IsUnknownWidgetType(err))
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Contains(t, err.Error(), "narrow")
}

func TestValidateLayout_Valid(t *testing.T) {
	registry := DefaultRegistry()

	config := &models.LayoutConfig{
		Columns: 12,
		Widgets: []*models.WidgetConfig{
			{ID: "h", Type: "section_header", Position: models.Position{W: 12, H: 1}, Settings: map[string]any{"title": "Today"}},
			{ID: "t", Type: "my_tasks", Position: models.Position{Y: 1, W: 4, H: 3}, Settings: map[string]any{"limit": 10}},
		},
	}

	assert.NoError(t, registry.ValidateLayout(config))
}

func TestValidateLayout_RequiresColumns(t *testing.T) {
	err := DefaultRegistry().ValidateLayout(&models.LayoutConfig{})
	assert.True(t, IsInvalidLayout(err))
	assert.True(t, IsInvalidLayout(DefaultRegistry().ValidateLayout(nil)))
}

func TestCanUse(t *testing.T) {
	registry := DefaultRegistry()

	assert.True(t, registry.CanUse("my_tasks", models.PermissionViewer))
	assert.False(t, registry.CanUse("pipeline_summary", models.PermissionMember))
	assert.True(t, registry.CanUse("pipeline_summary", models.PermissionAdmin))
	assert.False(t, registry.CanUse("weather", models.PermissionAdmin))

	for _, definition := range registry.Available(models.PermissionMember) {
		assert.LessOrEqual(t, definition.RequiredPermissions, models.PermissionMember)
	}
}
