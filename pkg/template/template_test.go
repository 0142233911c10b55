package template

import (
	"testing"

	"github.com/dukex/agencyflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":  "John",
		"age":   30,
		"isNew": true,
	}

	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "John", result)

	result, err = Render("{{ .isNew }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// numbers always map to float
	result, err = Render("{{ .age }}", data)
	require.NoError(t, err)
	assert.Equal(t, 30.0, result)
}

func TestRender_ObjectConstruction(t *testing.T) {
	data := map[string]any{
		"user":   map[string]any{"name": "Alice"},
		"orders": []any{1, 2},
	}

	result, err := Render(`{
		"user_name": "{{ .user.name }}",
		"total_orders": {{ len .orders }}
	}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", resultMap["user_name"])
	assert.Equal(t, 2.0, resultMap["total_orders"])
}

func TestRender_ErrorHandling(t *testing.T) {
	_, err := Render("{ invalid..expression }}", map[string]any{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json")

	_, err = Render("{{ nonexistent.field }}", map[string]any{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "function \"nonexistent\" not defined")
}

func TestEvaluateBool(t *testing.T) {
	data := map[string]any{
		"context": map[string]any{
			"budget":  7500.0,
			"tier":    "Gold",
			"retries": "2",
		},
	}

	tests := []struct {
		name       string
		expression string
		want       bool
		wantErr    error
	}{
		{"numeric comparison", "{{ gt (num .context.budget) 5000.0 }}", true, nil},
		{"numeric string", "{{ lt (num .context.retries) 3.0 }}", true, nil},
		{"string equality", `{{ eq (lower .context.tier) "gold" }}`, true, nil},
		{"has key", `{{ has .context "approver" }}`, false, nil},
		{"missing key renders zero", `{{ eq .context.missing "" }}`, false, nil},
		{"literal", "true", true, nil},
		{"not boolean", "{{ .context.tier }}", false, ErrNotBoolean},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateBool(tt.expression, data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderWithRun(t *testing.T) {
	approve := models.DecisionApprove
	run := &models.WorkflowRun{
		ID:            "run-1",
		DefinitionID:  "wf-1",
		TriggeredByID: "alice",
		Context:       map[string]any{"client": "Acme"},
		Executions: []*models.StepExecution{
			{StepID: "review", Status: models.StepExecutionRejected, ResolvedAssigneeID: "bob"},
			{StepID: "review", Status: models.StepExecutionCompleted, ResolvedAssigneeID: "carol", Decision: &approve},
		},
	}

	result, err := RenderWithRun("{{ .context.client }} by {{ .run.triggered_by }}", run)
	require.NoError(t, err)
	assert.Equal(t, "Acme by alice", result)

	approved, err := EvaluateBool(`{{ eq .steps.review.decision "APPROVE" }}`, RunData(run))
	require.NoError(t, err)
	assert.True(t, approved)

	result, err = RenderWithRun("{{ .steps.review.assignee }}", run)
	require.NoError(t, err)
	assert.Equal(t, "carol", result)
}

func TestParse(t *testing.T) {
	require.NoError(t, Parse(`{{ eq .context.tier "gold" }}`))
	assert.Error(t, Parse("{{ if }"))
}
