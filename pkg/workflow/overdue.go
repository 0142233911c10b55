package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/agencyflow/pkg/events"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// FlagOverdue marks every in-progress execution past its due date and emits one
// StepOverdue event per execution. Each run is written with the usual version
// check; a run that changed concurrently is skipped and picked up on the next
// call if it is still overdue. It returns the number of executions flagged.
func (e *Engine) FlagOverdue(ctx context.Context) (int, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.flag_overdue")
	defer span.End()

	runs, err := e.persistence.RunRepository().ListRunsByStatus(ctx, models.RunStatusRunning)
	if err != nil {
		return 0, e.fail(span, fmt.Errorf("failed to list running workflow runs: %w", err))
	}

	now := e.now().UTC()
	flagged := 0

	for _, run := range runs {
		execution := run.CurrentExecution()
		if execution == nil || !execution.NeedsOverdueFlag(now) {
			continue
		}

		expected := run.Version
		step := run.Steps[execution.StepIndex]
		tr := &transition{}

		execution.OverdueAt = &now
		e.record(run, models.HistoryStepOverdue, step.ID, execution.ResolvedAssigneeID, "", "",
			"due "+execution.DueAt.Format(time.RFC3339))

		tr.events = append(tr.events, events.StepOverdue{
			BaseEvent:  events.NewBaseEvent(events.StepOverdueEvent, run),
			StepID:     step.ID,
			StepName:   step.Name,
			AssigneeID: execution.ResolvedAssigneeID,
			DueAt:      *execution.DueAt,
			Attempt:    execution.Attempt,
		})

		if err := e.update(ctx, "FlagOverdue", run, expected); err != nil {
			if IsStaleRunState(err) || IsAlreadyTerminal(err) {
				e.logger.DebugContext(ctx, "skipping overdue run changed concurrently", "run_id", run.ID)

				continue
			}

			return flagged, e.fail(span, err)
		}

		e.metrics.StepOverdue(string(step.StepType))
		e.emit(ctx, run, tr)
		flagged++

		e.logger.InfoContext(ctx, "workflow step overdue",
			"run_id", run.ID,
			"step_id", step.ID,
			"assignee_id", execution.ResolvedAssigneeID,
			"due_at", execution.DueAt)
	}

	span.SetAttributes(attribute.Int("workflow.overdue_flagged", flagged))

	return flagged, nil
}
