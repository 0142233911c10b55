package models

import "time"

// CurrentLayoutVersion is the layout format written by this release.
const CurrentLayoutVersion = 1

// DefaultColumns is the grid width used when a layout does not set one.
const DefaultColumns = 12

// Position is a widget's cell on the dashboard grid.
type Position struct {
	X int `json:"x" yaml:"x" validate:"min=0"`
	Y int `json:"y" yaml:"y" validate:"min=0"`
	W int `json:"w" yaml:"w" validate:"min=1"`
	H int `json:"h" yaml:"h" validate:"min=1"`
}

// WidgetConfig is one placed widget instance.
type WidgetConfig struct {
	ID       string         `json:"id"                 yaml:"id"`
	Type     string         `json:"type"               yaml:"type"     validate:"required"`
	Position Position       `json:"position"           yaml:"position"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// LayoutConfig is the versioned widget arrangement stored with a dashboard.
type LayoutConfig struct {
	Version int             `json:"version"        yaml:"version"`
	Name    string          `json:"name,omitempty" yaml:"name,omitempty"`
	Columns int             `json:"columns"        yaml:"columns"`
	Widgets []*WidgetConfig `json:"widgets"        yaml:"widgets"`
}

// Clone returns a deep copy of the layout. Widget ids are preserved.
func (l *LayoutConfig) Clone() *LayoutConfig {
	clone := *l

	clone.Widgets = make([]*WidgetConfig, len(l.Widgets))
	for i, widget := range l.Widgets {
		if widget == nil {
			continue
		}

		w := *widget
		w.Settings = CloneMap(widget.Settings)
		clone.Widgets[i] = &w
	}

	return &clone
}

// Owner scopes dashboards to one user inside one organization.
type Owner struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
}

// SavedDashboard is a named, persisted layout belonging to an owner.
type SavedDashboard struct {
	ID        string        `json:"id"`
	Owner     Owner         `json:"owner"`
	Name      string        `json:"name"`
	IsDefault bool          `json:"is_default"`
	Layout    *LayoutConfig `json:"layout"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// OwnedBy reports whether the dashboard belongs to owner.
func (d *SavedDashboard) OwnedBy(owner Owner) bool {
	return d.Owner == owner
}

func (d *SavedDashboard) Clone() *SavedDashboard {
	clone := *d
	if d.Layout != nil {
		clone.Layout = d.Layout.Clone()
	}

	return &clone
}
