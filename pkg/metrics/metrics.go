// Package metrics exposes Prometheus counters for workflow run transitions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agencyflow"

// Metrics groups the counters recorded by the run engine.
type Metrics struct {
	registry prometheus.Gatherer

	runsStarted      *prometheus.CounterVec
	runsFinished     *prometheus.CounterVec
	stepsCompleted   *prometheus.CounterVec
	revisions        *prometheus.CounterVec
	staleConflicts   prometheus.Counter
	assigneeFailures *prometheus.CounterVec
	stepsOverdue     *prometheus.CounterVec
}

// New registers the engine counters on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	return NewWithRegistry(registry, registry)
}

// NewWithRegistry registers the engine counters on registerer.
func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		registry: gatherer,
		runsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "runs_started_total",
				Help:      "Workflow runs started, by trigger type",
			},
			[]string{"trigger_type"},
		),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "runs_finished_total",
				Help:      "Workflow runs reaching a terminal status",
			},
			[]string{"status"},
		),
		stepsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "steps_completed_total",
				Help:      "Step executions completed, by step type",
			},
			[]string{"step_type"},
		),
		revisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "revisions_requested_total",
				Help:      "REQUEST_REVISION decisions on approval steps",
			},
			[]string{"outcome"},
		),
		staleConflicts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "stale_run_conflicts_total",
				Help:      "Transitions rejected by the run version check",
			},
		),
		assigneeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "assignee_resolution_failures_total",
				Help:      "Assignee resolutions that returned an error",
			},
			[]string{"assignee_type"},
		),
		stepsOverdue: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "steps_overdue_total",
				Help:      "Step executions flagged as past their SLA due date",
			},
			[]string{"step_type"},
		),
	}
}

// Gatherer returns the registry backing the counters, for the /metrics handler.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) RunStarted(triggerType string) {
	m.runsStarted.WithLabelValues(triggerType).Inc()
}

func (m *Metrics) RunFinished(status string) {
	m.runsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) StepCompleted(stepType string) {
	m.stepsCompleted.WithLabelValues(stepType).Inc()
}

// RevisionRequested records a revision loop; exceeded is true when it failed the run.
func (m *Metrics) RevisionRequested(exceeded bool) {
	outcome := "reactivated"
	if exceeded {
		outcome = "limit_exceeded"
	}

	m.revisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StaleConflict() {
	m.staleConflicts.Inc()
}

func (m *Metrics) AssigneeFailure(assigneeType string) {
	m.assigneeFailures.WithLabelValues(assigneeType).Inc()
}

func (m *Metrics) StepOverdue(stepType string) {
	m.stepsOverdue.WithLabelValues(stepType).Inc()
}
