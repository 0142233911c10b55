package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.RunStarted("MANUAL")
	m.RunStarted("MANUAL")
	m.RunFinished("COMPLETED")
	m.StepCompleted("TASK")
	m.RevisionRequested(false)
	m.RevisionRequested(true)
	m.StaleConflict()
	m.AssigneeFailure("BY_ROLE")
	m.StepOverdue("APPROVAL")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.runsStarted.WithLabelValues("MANUAL")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.runsFinished.WithLabelValues("COMPLETED")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.revisions.WithLabelValues("limit_exceeded")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.staleConflicts), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.stepsOverdue.WithLabelValues("APPROVAL")), 0)

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}

	assert.Contains(t, names, "agencyflow_workflow_runs_started_total")
	assert.Contains(t, names, "agencyflow_workflow_assignee_resolution_failures_total")
}
