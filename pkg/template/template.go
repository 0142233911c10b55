// Package template renders text/template expressions against workflow run data.
// CONDITION steps use it to evaluate their predicate.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/agencyflow/pkg/models"
)

// ErrNotBoolean is returned when a predicate does not render to true or false.
var ErrNotBoolean = errors.New("expression did not evaluate to a boolean")

// RunData is the template data exposed for a run:
//
//	.context        the run context bag
//	.run.id, .run.definition_id, .run.triggered_by
//	.steps.<stepID> the latest completed execution of that step
//	                (assignee, decision, feedback, form)
func RunData(run *models.WorkflowRun) map[string]any {
	steps := make(map[string]any, len(run.Executions))

	for _, execution := range run.Executions {
		if execution.Status != models.StepExecutionCompleted {
			continue
		}

		decision := ""
		if execution.Decision != nil {
			decision = string(*execution.Decision)
		}

		steps[execution.StepID] = map[string]any{
			"assignee": execution.ResolvedAssigneeID,
			"decision": decision,
			"feedback": execution.Feedback,
			"form":     execution.FormData,
		}
	}

	context := run.Context
	if context == nil {
		context = map[string]any{}
	}

	return map[string]any{
		"context": context,
		"steps":   steps,
		"run": map[string]any{
			"id":            run.ID,
			"definition_id": run.DefinitionID,
			"triggered_by":  run.TriggeredByID,
		},
	}
}

// RenderWithRun renders input against RunData(run).
func RenderWithRun(input string, run *models.WorkflowRun) (any, error) {
	return Render(input, RunData(run))
}

// EvaluateBool renders a predicate and requires a boolean outcome.
func EvaluateBool(expression string, data any) (bool, error) {
	result, err := Render(expression, data)
	if err != nil {
		return false, err
	}

	value, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q rendered %v", ErrNotBoolean, expression, result)
	}

	return value, nil
}

var funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	// num converts JSON numbers, ints and numeric strings to float64 so
	// comparisons like {{ gt (num .context.budget) 5000.0 }} work on decoded JSON.
	"num": func(v any) (float64, error) {
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			return n.Float64()
		case string:
			return strconv.ParseFloat(n, 64)
		case nil:
			return 0, nil
		default:
			return 0, fmt.Errorf("num: unsupported type %T", v)
		}
	},
	"has": func(m map[string]any, key string) bool {
		_, ok := m[key]

		return ok
	},
	"lower": strings.ToLower,
}

// Parse reports whether templateStr is a well-formed expression without rendering it.
func Parse(templateStr string) error {
	_, err := parse(templateStr)

	return err
}

func parse(templateStr string) (*template.Template, error) {
	tmpl, err := template.
		New("expression").
		Option("missingkey=zero").
		Funcs(funcs).
		Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	return tmpl, nil
}

func Render(templateStr string, data any) (any, error) {
	tmpl, err := parse(templateStr)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}
