package layout

import "github.com/dukex/agencyflow/pkg/models"

func ptr[T any](v T) *T {
	return &v
}

func closedObject(properties map[string]*models.Property) *models.JSONSchema {
	return &models.JSONSchema{
		Type:                 "object",
		Properties:           properties,
		AdditionalProperties: ptr(false),
	}
}

func enum(values ...string) *models.Property {
	items := make([]any, len(values))
	for i, value := range values {
		items[i] = value
	}

	return &models.Property{Type: "string", Enum: items}
}

func count(minimum, maximum float64) *models.Property {
	return &models.Property{Type: "integer", Minimum: &minimum, Maximum: &maximum}
}

var flag = &models.Property{Type: "boolean"}

// BuiltinWidgets returns the widget types shipped with the product.
func BuiltinWidgets() []*WidgetDefinition {
	return []*WidgetDefinition{
		{
			Type: "my_tasks", Name: "My Tasks", Icon: "CheckSquare",
			Description: "Shows the current user's assigned tasks",
			DefaultSize: "4x3", MinWidth: 3, MinHeight: 2, MaxWidth: 8, MaxHeight: 6,
			SettingsSchema: closedObject(map[string]*models.Property{
				"limit":         count(1, 50),
				"showCompleted": flag,
				"sortBy":        enum("dueDate", "priority", "createdAt"),
			}),
		},
		{
			Type: "upcoming_deadlines", Name: "Upcoming Deadlines", Icon: "Calendar",
			Description: "Calendar view of upcoming deadlines",
			DefaultSize: "4x3", MinWidth: 3, MinHeight: 2, MaxWidth: 12, MaxHeight: 6,
			SettingsSchema: closedObject(map[string]*models.Property{
				"daysAhead":   count(1, 90),
				"showOverdue": flag,
				"groupBy":     enum("day", "week", "client"),
			}),
		},
		{
			Type: "time_logged", Name: "Time Logged", Icon: "Clock",
			Description: "Hours logged against a target for a period",
			DefaultSize: "3x2", MinWidth: 2, MinHeight: 2, MaxWidth: 6, MaxHeight: 4,
			SettingsSchema: closedObject(map[string]*models.Property{
				"period":      enum("week", "month", "quarter"),
				"showTarget":  flag,
				"targetHours": count(1, 500),
			}),
		},
		{
			Type: "quick_actions", Name: "Quick Actions", Icon: "Zap",
			Description: "Shortcuts to common actions",
			DefaultSize: "3x2", MinWidth: 2, MinHeight: 1, MaxWidth: 12, MaxHeight: 3,
			SettingsSchema: closedObject(map[string]*models.Property{
				"layout": enum("grid", "list"),
			}),
		},
		{
			Type: "nps_score", Name: "NPS Score", Icon: "TrendingUp",
			Description: "Net promoter score with trend",
			DefaultSize: "3x2", MinWidth: 2, MinHeight: 2, MaxWidth: 6, MaxHeight: 4,
			RequiredPermissions: models.PermissionManager,
			SettingsSchema: closedObject(map[string]*models.Property{
				"period":        enum("month", "quarter", "year"),
				"showTrend":     flag,
				"showBreakdown": flag,
			}),
		},
		{
			Type: "pipeline_summary", Name: "Pipeline Summary", Icon: "BarChart",
			Description: "Deal pipeline value and win rate",
			DefaultSize: "6x3", MinWidth: 4, MinHeight: 2, MaxWidth: 12, MaxHeight: 6,
			RequiredPermissions: models.PermissionManager,
			SettingsSchema: closedObject(map[string]*models.Property{
				"showValue":    flag,
				"showWinRate":  flag,
				"pipelineType": enum("all", "new_business", "retainer"),
			}),
		},
		{
			Type: "team_capacity", Name: "Team Capacity", Icon: "Users",
			Description: "Team workload and availability",
			DefaultSize: "6x4", MinWidth: 4, MinHeight: 3, MaxWidth: 12, MaxHeight: 8,
			RequiredPermissions: models.PermissionManager,
			SettingsSchema: closedObject(map[string]*models.Property{
				"view":             enum("chart", "table"),
				"filterDepartment": {Type: "string"},
				"showAvailability": flag,
			}),
		},
		{
			Type: "client_activity", Name: "Client Activity", Icon: "Activity",
			Description: "Recent activity across clients",
			DefaultSize: "4x4", MinWidth: 3, MinHeight: 2, MaxWidth: 12, MaxHeight: 8,
			SettingsSchema: closedObject(map[string]*models.Property{
				"limit":        count(1, 100),
				"filterClient": {Type: "string"},
			}),
		},
		{
			Type: "section_header", Name: "Section Header", Icon: "Heading",
			Description: "Title row separating dashboard sections",
			DefaultSize: "12x1", MinWidth: 2, MinHeight: 1, MaxWidth: 12, MaxHeight: 1,
			SettingsSchema: closedObject(map[string]*models.Property{
				"title":    {Type: "string", MaxLength: ptr(80)},
				"subtitle": {Type: "string", MaxLength: ptr(160)},
			}),
		},
	}
}

// DefaultRegistry returns a registry of the built-in widgets.
func DefaultRegistry() *Registry {
	registry, err := NewRegistry(BuiltinWidgets()...)
	if err != nil {
		panic(err)
	}

	return registry
}
