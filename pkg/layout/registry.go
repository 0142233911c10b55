// Package layout defines the dashboard widget grid: which widget types exist,
// how large each may be, and whether a layout is legal. Everything here is pure.
package layout

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dukex/agencyflow/pkg/models"
)

// WidgetDefinition describes one widget type that may be placed on a dashboard.
type WidgetDefinition struct {
	Type                string                 `json:"type"`
	Name                string                 `json:"name"`
	Description         string                 `json:"description"`
	Icon                string                 `json:"icon"`
	DefaultSize         string                 `json:"default_size"`
	MinWidth            int                    `json:"min_width"`
	MinHeight           int                    `json:"min_height"`
	MaxWidth            int                    `json:"max_width"`
	MaxHeight           int                    `json:"max_height"`
	RequiredPermissions models.PermissionLevel `json:"required_permissions"`
	SettingsSchema      *models.JSONSchema     `json:"settings_schema,omitempty"`
}

// Registry is an immutable catalogue of widget definitions.
type Registry struct {
	definitions map[string]*WidgetDefinition
	order       []string
}

// NewRegistry builds a registry, rejecting duplicate types and inconsistent bounds.
func NewRegistry(definitions ...*WidgetDefinition) (*Registry, error) {
	registry := &Registry{
		definitions: make(map[string]*WidgetDefinition, len(definitions)),
	}

	for _, definition := range definitions {
		if definition.Type == "" {
			return nil, errors.New("widget definition without type")
		}

		if _, exists := registry.definitions[definition.Type]; exists {
			return nil, fmt.Errorf("widget type %q registered twice", definition.Type)
		}

		if definition.MinWidth < 1 || definition.MinHeight < 1 ||
			definition.MaxWidth < definition.MinWidth || definition.MaxHeight < definition.MinHeight {
			return nil, fmt.Errorf("widget type %q has inconsistent size bounds", definition.Type)
		}

		w, h, err := parseSize(definition.DefaultSize)
		if err != nil {
			return nil, fmt.Errorf("widget type %q: %w", definition.Type, err)
		}

		if !definition.fits(w, h) {
			return nil, fmt.Errorf("widget type %q: default size %s outside its bounds", definition.Type, definition.DefaultSize)
		}

		registry.definitions[definition.Type] = definition
		registry.order = append(registry.order, definition.Type)
	}

	return registry, nil
}

// Lookup returns the definition for widgetType.
func (r *Registry) Lookup(widgetType string) (*WidgetDefinition, error) {
	definition, ok := r.definitions[widgetType]
	if !ok {
		return nil, &PlacementError{WidgetType: widgetType, Err: ErrUnknownWidgetType}
	}

	return definition, nil
}

// List returns every definition in registration order.
func (r *Registry) List() []*WidgetDefinition {
	definitions := make([]*WidgetDefinition, 0, len(r.order))
	for _, widgetType := range r.order {
		definitions = append(definitions, r.definitions[widgetType])
	}

	return definitions
}

// Available returns the definitions usable at the given permission level.
func (r *Registry) Available(level models.PermissionLevel) []*WidgetDefinition {
	return slices.DeleteFunc(r.List(), func(definition *WidgetDefinition) bool {
		return level < definition.RequiredPermissions
	})
}

// CanUse reports whether a caller at level may place widgetType.
func (r *Registry) CanUse(widgetType string, level models.PermissionLevel) bool {
	definition, ok := r.definitions[widgetType]

	return ok && level >= definition.RequiredPermissions
}

func (d *WidgetDefinition) fits(w, h int) bool {
	return w >= d.MinWidth && w <= d.MaxWidth && h >= d.MinHeight && h <= d.MaxHeight
}

// parseSize parses a "WxH" size string.
func parseSize(size string) (int, int, error) {
	width, height, found := strings.Cut(strings.ToLower(size), "x")
	if !found {
		return 0, 0, fmt.Errorf("malformed size %q, expected WxH", size)
	}

	w, err := strconv.Atoi(width)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed size %q: %w", size, err)
	}

	h, err := strconv.Atoi(height)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed size %q: %w", size, err)
	}

	return w, h, nil
}
