package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/agencyflow/pkg/eventbus"
	"github.com/dukex/agencyflow/pkg/events"
	"github.com/dukex/agencyflow/pkg/identity"
	"github.com/dukex/agencyflow/pkg/metrics"
	"github.com/dukex/agencyflow/pkg/models"
	"github.com/dukex/agencyflow/pkg/otelhelper"
	"github.com/dukex/agencyflow/pkg/persistence"
	"github.com/dukex/agencyflow/pkg/workdays"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Engine drives workflow runs through their steps. Every transition is a single
// synchronous read-modify-write guarded by the run version.
type Engine struct {
	persistence persistence.Persistence
	resolver    *Resolver
	predicate   Predicate
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	metrics     *metrics.Metrics
	weekend     workdays.Weekend
	logger      *slog.Logger
	now         func() time.Time
}

type Option func(*Engine)

// WithPredicate replaces the template predicate used by CONDITION steps.
func WithPredicate(predicate Predicate) Option {
	return func(e *Engine) { e.predicate = predicate }
}

// WithPublisher publishes run lifecycle events after each successful transition.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWeekend sets the days that do not consume SLA hours.
func WithWeekend(weekend workdays.Weekend) Option {
	return func(e *Engine) { e.weekend = weekend }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(
	persistence persistence.Persistence,
	directory identity.Directory,
	logger *slog.Logger,
	opts ...Option,
) *Engine {
	engine := &Engine{
		persistence: persistence,
		resolver:    NewResolver(directory, persistence.RotationCursor()),
		predicate:   TemplatePredicate{},
		tracer:      otelhelper.NoopTracer(),
		weekend:     workdays.UAEWeekend,
		logger:      logger.With("module", "workflow_engine"),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(engine)
	}

	if engine.metrics == nil {
		engine.metrics = metrics.New()
	}

	return engine
}

// transition collects the side effects of one engine operation; they are only
// emitted once the run has been persisted.
type transition struct {
	actorID       string
	skippedStepID string
	events        []eventbus.Event
	finished      bool
}

// StartWorkflow creates a RUNNING run of an active definition. The sorted step
// list is snapshotted into the run so later definition edits do not affect it.
func (e *Engine) StartWorkflow(ctx context.Context, definitionID, triggeredByID string, runContext map[string]any) (*models.WorkflowRun, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.start",
		attribute.String(otelhelper.DefinitionIDKey, definitionID),
		attribute.String(otelhelper.ActorIDKey, triggeredByID))
	defer span.End()

	definition, err := e.persistence.DefinitionRepository().GetByID(ctx, definitionID)
	if err != nil {
		return nil, e.fail(span, err)
	}

	if len(definition.Steps) == 0 {
		return nil, e.fail(span, fmt.Errorf("cannot start workflow %s: %w", definitionID, ErrNoStepsDefined))
	}

	if !definition.IsActive {
		return nil, e.fail(span, fmt.Errorf("cannot start workflow %s: %w", definitionID, ErrDefinitionInactive))
	}

	now := e.now().UTC()
	run := &models.WorkflowRun{
		ID:             uuid.Must(uuid.NewV7()).String(),
		DefinitionID:   definition.ID,
		OrganizationID: definition.OrganizationID,
		Status:         models.RunStatusRunning,
		Steps:          snapshotSteps(definition),
		Executions:     []*models.StepExecution{},
		Context:        models.CloneMap(runContext),
		TriggeredByID:  triggeredByID,
		StartedAt:      now,
		History:        []*models.RunHistoryEntry{},
		UpdatedAt:      now,
	}

	if run.Context == nil {
		run.Context = map[string]any{}
	}

	span.SetAttributes(attribute.String(otelhelper.RunIDKey, run.ID))

	tr := &transition{actorID: triggeredByID}
	e.record(run, models.HistoryStarted, "", triggeredByID, "", string(models.RunStatusRunning), "")
	tr.events = append(tr.events, events.RunStarted{
		BaseEvent:   events.NewBaseEvent(events.RunStartedEvent, run),
		TriggeredBy: triggeredByID,
		Context:     run.Context,
	})

	if err := e.enter(ctx, run, 0, tr); err != nil {
		return nil, e.fail(span, err)
	}

	if err := e.persistence.RunRepository().CreateRun(ctx, run); err != nil {
		return nil, e.fail(span, fmt.Errorf("failed to create workflow run: %w", err))
	}

	e.metrics.RunStarted(string(definition.TriggerType))
	e.emit(ctx, run, tr)

	e.logger.InfoContext(ctx, "started workflow run",
		"run_id", run.ID,
		"definition_id", run.DefinitionID,
		"triggered_by", triggeredByID,
		"status", run.Status)

	return run, nil
}

// CompleteStepInput completes the IN_PROGRESS execution of a run. ExpectedVersion,
// when non-zero, must match the stored run version.
type CompleteStepInput struct {
	RunID           string
	ExpectedVersion int
	ActorID         string
	Decision        *models.Decision
	Feedback        string
	FormData        map[string]any
}

// CompleteStep finishes the current execution. REQUEST_REVISION on an APPROVAL
// step rejects it and re-activates the same step, up to the step's revision limit.
func (e *Engine) CompleteStep(ctx context.Context, input CompleteStepInput) (*models.WorkflowRun, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.complete_step",
		attribute.String(otelhelper.RunIDKey, input.RunID),
		attribute.String(otelhelper.ActorIDKey, input.ActorID))
	defer span.End()

	run, err := e.persistence.RunRepository().GetRun(ctx, input.RunID)
	if err != nil {
		return nil, e.fail(span, err)
	}

	if run.Status.IsTerminal() {
		return nil, e.fail(span, newTransitionError("CompleteStep", run, ErrAlreadyTerminal))
	}

	if input.ExpectedVersion != 0 && input.ExpectedVersion != run.Version {
		e.metrics.StaleConflict()

		return nil, e.fail(span, newTransitionError("CompleteStep", run,
			fmt.Errorf("%w: expected version %d, stored %d", ErrStaleRunState, input.ExpectedVersion, run.Version)))
	}

	expected := run.Version

	execution := run.CurrentExecution()
	if execution == nil {
		return nil, e.fail(span, newTransitionError("CompleteStep", run, ErrNoActiveStep))
	}

	step := run.Steps[execution.StepIndex]
	span.SetAttributes(
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepTypeKey, string(step.StepType)))

	if err := validateCompletion(step, input); err != nil {
		return nil, e.fail(span, err)
	}

	now := e.now().UTC()
	execution.CompletedAt = &now
	execution.Decision = input.Decision
	execution.Feedback = input.Feedback
	execution.FormData = input.FormData

	tr := &transition{actorID: input.ActorID}

	if input.Decision != nil && *input.Decision == models.DecisionRequestRevision {
		execution.Status = models.StepExecutionRejected
		e.record(run, models.HistoryRevisionRequested, step.ID, input.ActorID,
			string(models.StepExecutionInProgress), string(models.StepExecutionRejected), input.Feedback)

		tr.events = append(tr.events, events.RevisionRequested{
			BaseEvent: events.NewBaseEvent(events.RevisionRequestedEvent, run),
			StepID:    step.ID,
			ActorID:   input.ActorID,
			Feedback:  input.Feedback,
			Attempt:   execution.Attempt,
		})

		exceeded := run.RejectedAttempts(execution.StepIndex) > step.RevisionLimit()
		e.metrics.RevisionRequested(exceeded)

		if exceeded {
			run.FailureReason = models.FailureRevisionLimitExceeded
			e.finish(run, models.RunStatusFailed, tr)
		} else if err := e.enter(ctx, run, execution.StepIndex, tr); err != nil {
			return nil, e.fail(span, err)
		}
	} else {
		execution.Status = models.StepExecutionCompleted
		e.record(run, models.HistoryStepCompleted, step.ID, input.ActorID,
			string(models.StepExecutionInProgress), string(models.StepExecutionCompleted), input.Feedback)

		tr.events = append(tr.events, events.StepCompleted{
			BaseEvent: events.NewBaseEvent(events.StepCompletedEvent, run),
			StepID:    step.ID,
			StepType:  step.StepType,
			ActorID:   input.ActorID,
			Decision:  input.Decision,
			Feedback:  input.Feedback,
		})
		e.metrics.StepCompleted(string(step.StepType))

		if err := e.enter(ctx, run, execution.StepIndex+1, tr); err != nil {
			return nil, e.fail(span, err)
		}
	}

	if err := e.update(ctx, "CompleteStep", run, expected); err != nil {
		return nil, e.fail(span, err)
	}

	e.emit(ctx, run, tr)

	e.logger.InfoContext(ctx, "completed workflow step",
		"run_id", run.ID,
		"step_id", step.ID,
		"actor_id", input.ActorID,
		"status", run.Status,
		"current_step_index", run.CurrentStepIndex)

	return run, nil
}

// CancelWorkflow cancels a RUNNING run and skips its in-flight execution.
// Cancelling a terminal run fails with ErrAlreadyTerminal.
func (e *Engine) CancelWorkflow(ctx context.Context, runID, actorID, reason string) (*models.WorkflowRun, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.cancel",
		attribute.String(otelhelper.RunIDKey, runID),
		attribute.String(otelhelper.ActorIDKey, actorID))
	defer span.End()

	run, err := e.persistence.RunRepository().GetRun(ctx, runID)
	if err != nil {
		return nil, e.fail(span, err)
	}

	if run.Status.IsTerminal() {
		return nil, e.fail(span, newTransitionError("CancelWorkflow", run, ErrAlreadyTerminal))
	}

	expected := run.Version
	now := e.now().UTC()
	tr := &transition{actorID: actorID}

	if execution := run.CurrentExecution(); execution != nil {
		execution.Status = models.StepExecutionSkipped
		execution.CompletedAt = &now
		tr.skippedStepID = execution.StepID
	}

	run.CancelReason = reason
	e.finish(run, models.RunStatusCancelled, tr)

	if err := e.update(ctx, "CancelWorkflow", run, expected); err != nil {
		return nil, e.fail(span, err)
	}

	e.emit(ctx, run, tr)

	e.logger.InfoContext(ctx, "cancelled workflow run", "run_id", run.ID, "actor_id", actorID)

	return run, nil
}

func (e *Engine) GetRun(ctx context.Context, runID string) (*models.WorkflowRun, error) {
	return e.persistence.RunRepository().GetRun(ctx, runID)
}

// ListRuns returns the runs of a definition, newest first.
func (e *Engine) ListRuns(ctx context.Context, definitionID string) ([]*models.WorkflowRun, error) {
	if _, err := e.persistence.DefinitionRepository().GetByID(ctx, definitionID); err != nil {
		return nil, err
	}

	return e.persistence.RunRepository().ListRunsByDefinition(ctx, definitionID)
}

// AssignedStep is an IN_PROGRESS execution waiting on an assignee.
type AssignedStep struct {
	RunID        string                `json:"run_id"`
	DefinitionID string                `json:"definition_id"`
	Step         *models.WorkflowStep  `json:"step"`
	Execution    *models.StepExecution `json:"execution"`
	Context      map[string]any        `json:"context,omitempty"`
	RunVersion   int                   `json:"run_version"`
}

// ListAssignedSteps returns the in-progress executions assigned to assigneeID,
// soonest due first; executions without a due date come last.
func (e *Engine) ListAssignedSteps(ctx context.Context, assigneeID string) ([]*AssignedStep, error) {
	runs, err := e.persistence.RunRepository().ListRunsAssignedTo(ctx, assigneeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assigned runs: %w", err)
	}

	assigned := make([]*AssignedStep, 0, len(runs))

	for _, run := range runs {
		execution := run.CurrentExecution()
		if execution == nil || execution.ResolvedAssigneeID != assigneeID {
			continue
		}

		assigned = append(assigned, &AssignedStep{
			RunID:        run.ID,
			DefinitionID: run.DefinitionID,
			Step:         run.Steps[execution.StepIndex],
			Execution:    execution,
			Context:      run.Context,
			RunVersion:   run.Version,
		})
	}

	sortByDueDate(assigned)

	return assigned, nil
}

// enter moves the run to index: CONDITION steps are evaluated on entry and
// branch, an index past the last step completes the run, any other step gets a
// new IN_PROGRESS execution.
func (e *Engine) enter(ctx context.Context, run *models.WorkflowRun, index int, tr *transition) error {
	evaluated := make(map[int]bool)

	for {
		if index >= len(run.Steps) {
			e.finish(run, models.RunStatusCompleted, tr)

			return nil
		}

		run.CurrentStepIndex = index
		step := run.Steps[index]

		if step.StepType != models.StepTypeCondition {
			return e.activate(ctx, run, index, tr)
		}

		if evaluated[index] {
			return fmt.Errorf("%w: condition step %s branches into a cycle", ErrInvalidBranchTarget, step.ID)
		}

		evaluated[index] = true

		next, err := e.evaluate(ctx, run, index)
		if err != nil {
			return err
		}

		index = next
	}
}

// evaluate runs the predicate of the CONDITION step at index and returns the
// index of the branch target.
func (e *Engine) evaluate(ctx context.Context, run *models.WorkflowRun, index int) (int, error) {
	step := run.Steps[index]
	if step.Condition == nil {
		return 0, fmt.Errorf("%w: condition step %s has no condition", ErrInvalidStep, step.ID)
	}

	result, err := e.predicate.Evaluate(ctx, run, step.Condition)
	if err != nil {
		return 0, err
	}

	now := e.now().UTC()
	run.Executions = append(run.Executions, &models.StepExecution{
		ID:          uuid.Must(uuid.NewV7()).String(),
		RunID:       run.ID,
		StepID:      step.ID,
		StepIndex:   index,
		Attempt:     e.attempt(run, index),
		Status:      models.StepExecutionCompleted,
		StartedAt:   &now,
		CompletedAt: &now,
		FormData:    map[string]any{"result": result},
	})

	target := step.Condition.FalseOrder
	if result {
		target = step.Condition.TrueOrder
	}

	e.record(run, models.HistoryConditionEvaluated, step.ID, "", "", "",
		fmt.Sprintf("%s evaluated to %t, branching to order %d", step.Condition.Expression, result, target))

	if target == models.EndOfWorkflow {
		return len(run.Steps), nil
	}

	next, ok := run.StepIndexByOrder(target)
	if !ok {
		return 0, fmt.Errorf("%w: step %s targets order %d", ErrInvalidBranchTarget, step.ID, target)
	}

	return next, nil
}

func (e *Engine) activate(ctx context.Context, run *models.WorkflowRun, index int, tr *transition) error {
	step := run.Steps[index]

	assignee, err := e.resolver.ResolveAssignee(ctx, run, index)
	if err != nil {
		e.metrics.AssigneeFailure(string(step.AssigneeType))

		return fmt.Errorf("failed to resolve assignee of step %s: %w", step.ID, err)
	}

	now := e.now().UTC()
	execution := &models.StepExecution{
		ID:                 uuid.Must(uuid.NewV7()).String(),
		RunID:              run.ID,
		StepID:             step.ID,
		StepIndex:          index,
		Attempt:            e.attempt(run, index),
		Status:             models.StepExecutionInProgress,
		ResolvedAssigneeID: assignee.ID,
		StartedAt:          &now,
	}

	if step.SLAHours != nil {
		due := workdays.AddWorkingHours(now, *step.SLAHours, e.weekend)
		execution.DueAt = &due
	}

	run.Executions = append(run.Executions, execution)

	e.record(run, models.HistoryStepActivated, step.ID, assignee.ID,
		string(models.StepExecutionPending), string(models.StepExecutionInProgress), "")

	tr.events = append(tr.events, events.StepActivated{
		BaseEvent:  events.NewBaseEvent(events.StepActivatedEvent, run),
		StepID:     step.ID,
		StepName:   step.Name,
		StepType:   step.StepType,
		AssigneeID: assignee.ID,
		Attempt:    execution.Attempt,
		DueAt:      execution.DueAt,
	})

	return nil
}

// finish moves the run to a terminal status.
func (e *Engine) finish(run *models.WorkflowRun, status models.RunStatus, tr *transition) {
	now := e.now().UTC()
	previous := run.Status

	run.Status = status
	run.CompletedAt = &now
	tr.finished = true

	switch status {
	case models.RunStatusCompleted:
		run.CurrentStepIndex = len(run.Steps)
		e.record(run, models.HistoryCompleted, "", tr.actorID, string(previous), string(status), "")
		tr.events = append(tr.events, events.RunCompleted{
			BaseEvent:   events.NewBaseEvent(events.RunCompletedEvent, run),
			TriggeredBy: run.TriggeredByID,
			DurationMs:  now.Sub(run.StartedAt).Milliseconds(),
		})
	case models.RunStatusFailed:
		e.record(run, models.HistoryFailed, "", tr.actorID, string(previous), string(status), run.FailureReason)
		tr.events = append(tr.events, events.RunFailed{
			BaseEvent: events.NewBaseEvent(events.RunFailedEvent, run),
			Reason:    run.FailureReason,
		})
	case models.RunStatusCancelled:
		e.record(run, models.HistoryCancelled, "", tr.actorID, string(previous), string(status), run.CancelReason)
		tr.events = append(tr.events, events.RunCancelled{
			BaseEvent:     events.NewBaseEvent(events.RunCancelledEvent, run),
			ActorID:       tr.actorID,
			Reason:        run.CancelReason,
			SkippedStepID: tr.skippedStepID,
		})
	case models.RunStatusRunning:
	}
}

// update persists run with a compare-and-swap on expected. A lost race reports
// ErrAlreadyTerminal when the winner finished the run, ErrStaleRunState otherwise.
func (e *Engine) update(ctx context.Context, op string, run *models.WorkflowRun, expected int) error {
	run.UpdatedAt = e.now().UTC()

	err := e.persistence.RunRepository().UpdateRun(ctx, run, expected)
	if err == nil {
		return nil
	}

	if !persistence.IsStaleRun(err) {
		return fmt.Errorf("failed to update workflow run: %w", err)
	}

	e.metrics.StaleConflict()

	current, getErr := e.persistence.RunRepository().GetRun(ctx, run.ID)
	if getErr == nil && current.Status.IsTerminal() {
		return newTransitionError(op, current, ErrAlreadyTerminal)
	}

	return newTransitionError(op, run, fmt.Errorf("%w: %w", ErrStaleRunState, err))
}

// emit publishes the collected events. Delivery is fire-and-forget: failures
// are logged and never undo the transition.
func (e *Engine) emit(ctx context.Context, run *models.WorkflowRun, tr *transition) {
	if tr.finished {
		e.metrics.RunFinished(string(run.Status))
	}

	if e.publisher == nil {
		return
	}

	for _, event := range tr.events {
		if err := e.publisher.Publish(ctx, run.ID, event); err != nil {
			e.logger.WarnContext(ctx, "failed to publish run event",
				"run_id", run.ID,
				"event_type", event.GetType(),
				"error", err)
		}
	}
}

func (e *Engine) record(run *models.WorkflowRun, action, stepID, actorID, previous, next, note string) {
	run.History = append(run.History, &models.RunHistoryEntry{
		Action:         action,
		StepID:         stepID,
		ActorID:        actorID,
		PreviousStatus: previous,
		NewStatus:      next,
		Note:           note,
		At:             e.now().UTC(),
	})
}

func (e *Engine) attempt(run *models.WorkflowRun, index int) int {
	attempt := 1

	for _, execution := range run.Executions {
		if execution.StepIndex == index {
			attempt++
		}
	}

	return attempt
}

func sortByDueDate(assigned []*AssignedStep) {
	slices.SortStableFunc(assigned, func(a, b *AssignedStep) int {
		switch due, other := a.Execution.DueAt, b.Execution.DueAt; {
		case due == nil && other == nil:
			return 0
		case due == nil:
			return 1
		case other == nil:
			return -1
		default:
			return due.Compare(*other)
		}
	})
}

func (e *Engine) fail(span trace.Span, err error) error {
	otelhelper.SetError(span, err)

	return err
}

// snapshotSteps copies the sorted steps and fills the definition default SLA.
func snapshotSteps(definition *models.WorkflowDefinition) []*models.WorkflowStep {
	sorted := definition.SortedSteps()
	steps := make([]*models.WorkflowStep, len(sorted))

	for i, step := range sorted {
		steps[i] = step.Clone()
		if steps[i].SLAHours == nil && definition.DefaultSLAHours != nil {
			hours := *definition.DefaultSLAHours
			steps[i].SLAHours = &hours
		}
	}

	return steps
}

func validateCompletion(step *models.WorkflowStep, input CompleteStepInput) error {
	if input.Decision != nil && !input.Decision.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDecision, *input.Decision)
	}

	switch step.StepType {
	case models.StepTypeApproval:
		if input.Decision == nil {
			return fmt.Errorf("%w: APPROVAL steps require APPROVE or REQUEST_REVISION", ErrInvalidDecision)
		}
	case models.StepTypeFormInput:
		if err := models.ValidateDocument(step.FormSchema, input.FormData); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFormData, err)
		}
	case models.StepTypeTask, models.StepTypeNotification, models.StepTypeWebhook,
		models.StepTypeDelay, models.StepTypeCondition:
	}

	if step.StepType != models.StepTypeApproval &&
		input.Decision != nil && *input.Decision == models.DecisionRequestRevision {
		return fmt.Errorf("%w: only APPROVAL steps accept REQUEST_REVISION", ErrInvalidDecision)
	}

	return nil
}
