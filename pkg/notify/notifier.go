// Package notify turns run lifecycle events into notifications for the people
// involved. Delivery itself (email, chat) belongs to a Dispatcher.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/agencyflow/pkg/eventbus"
	"github.com/dukex/agencyflow/pkg/events"
	"github.com/dukex/agencyflow/pkg/models"
)

// systemActorPrefix marks non-human actors such as the scheduler.
const systemActorPrefix = "system:"

// Notification is one message addressed to a set of users.
type Notification struct {
	EventType  events.EventType `json:"event_type"`
	RunID      string           `json:"run_id"`
	Recipients []string         `json:"recipients"`
	Subject    string           `json:"subject"`
	Body       string           `json:"body,omitempty"`
}

// Dispatcher delivers notifications. Implementations must be safe for concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, notification Notification) error
}

// RunReader loads the run an event refers to.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*models.WorkflowRun, error)
}

// LogDispatcher writes notifications to the log.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger.With("module", "notify")}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, notification Notification) error {
	d.logger.InfoContext(ctx, "notification",
		"event_type", notification.EventType,
		"run_id", notification.RunID,
		"recipients", notification.Recipients,
		"subject", notification.Subject)

	return nil
}

// Notifier subscribes to the event bus and dispatches a notification per event.
type Notifier struct {
	subscriber eventbus.EventSubscriber
	runs       RunReader
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewNotifier(subscriber eventbus.EventSubscriber, runs RunReader, dispatcher Dispatcher, logger *slog.Logger) *Notifier {
	return &Notifier{
		subscriber: subscriber,
		runs:       runs,
		dispatcher: dispatcher,
		logger:     logger.With("module", "notifier"),
	}
}

// Start registers the handlers and starts consuming.
func (n *Notifier) Start(ctx context.Context) error {
	handlers := map[events.EventType]eventbus.EventHandler{
		events.StepActivatedEvent:     n.handleStepActivated,
		events.StepOverdueEvent:         n.handleStepOverdue,
		events.RevisionRequestedEvent: n.handleRevisionRequested,
		events.RunCompletedEvent:      n.handleRunCompleted,
		events.RunCancelledEvent:      n.handleRunCancelled,
		events.RunFailedEvent:         n.handleRunFailed,
	}

	for eventType, handler := range handlers {
		if err := n.subscriber.Handle(eventType, handler); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", eventType, err)
		}
	}

	if err := n.subscriber.Subscribe(ctx); err != nil {
		n.logger.ErrorContext(ctx, "failed to subscribe to event bus", "error", err)

		return err
	}

	n.logger.InfoContext(ctx, "notifier started")

	return nil
}

func (n *Notifier) handleStepActivated(ctx context.Context, event any) error {
	activated, ok := event.(*events.StepActivated)
	if !ok {
		n.logger.ErrorContext(ctx, "invalid event type for StepActivated")

		return nil
	}

	subject := fmt.Sprintf("New step assigned: %s", activated.StepName)
	if activated.Attempt > 1 {
		subject = fmt.Sprintf("Step returned for revision: %s (attempt %d)", activated.StepName, activated.Attempt)
	}

	body := ""
	if activated.DueAt != nil {
		body = "Due " + activated.DueAt.Format("Mon 2 Jan 15:04 MST")
	}

	return n.dispatch(ctx, Notification{
		EventType:  activated.Type,
		RunID:      activated.RunID,
		Recipients: recipients(activated.AssigneeID),
		Subject:    subject,
		Body:       body,
	})
}

// handleStepOverdue nudges the assignee and copies whoever started the run.
func (n *Notifier) handleStepOverdue(ctx context.Context, event any) error {
	overdue, ok := event.(*events.StepOverdue)
	if !ok {
		n.logger.ErrorContext(ctx, "invalid event type for StepOverdue")

		return nil
	}

	run, err := n.runs.GetRun(ctx, overdue.RunID)
	if err != nil {
		return err
	}

	return n.dispatch(ctx, Notification{
		EventType:  overdue.Type,
		RunID:      overdue.RunID,
		Recipients: recipients(overdue.AssigneeID, run.TriggeredByID),
		Subject:    fmt.Sprintf("Step overdue: %s", overdue.StepName),
		Body:       "Was due " + overdue.DueAt.Format("Mon 2 Jan 15:04 MST"),
	})
}

func (n *Notifier) handleRevisionRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.RevisionRequested)
	if !ok {
		n.logger.ErrorContext(ctx, "invalid event type for RevisionRequested")

		return nil
	}

	run, err := n.runs.GetRun(ctx, requested.RunID)
	if err != nil {
		return err
	}

	return n.dispatch(ctx, Notification{
		EventType:  requested.Type,
		RunID:      requested.RunID,
		Recipients: recipients(run.TriggeredByID),
		Subject:    fmt.Sprintf("Revision requested by %s", requested.ActorID),
		Body:       requested.Feedback,
	})
}

func (n *Notifier) handleRunCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.RunCompleted)
	if !ok {
		n.logger.ErrorContext(ctx, "invalid event type for RunCompleted")

		return nil
	}

	return n.dispatch(ctx, Notification{
		EventType:  completed.Type,
		RunID:      completed.RunID,
		Recipients: recipients(completed.TriggeredBy),
		Subject:    "Workflow completed",
	})
}

func (n *Notifier) handleRunCancelled(ctx context.Context, event any) error {
	cancelled, ok := event.(*events.RunCancelled)
	if !ok {
		n.logger.ErrorContext(ctx, "invalid event type for RunCancelled")

		return nil
	}

	run, err := n.runs.GetRun(ctx, cancelled.RunID)
	if err != nil {
		return err
	}

	return n.dispatch(ctx, Notification{
		EventType:  cancelled.Type,
		RunID:      cancelled.RunID,
		Recipients: recipients(run.TriggeredByID, lastAssignee(run)),
		Subject:    "Workflow cancelled",
		Body:       cancelled.Reason,
	})
}

func (n *Notifier) handleRunFailed(ctx context.Context, event any) error {
	failed, ok := event.(*events.RunFailed)
	if !ok {
		n.logger.ErrorContext(ctx, "invalid event type for RunFailed")

		return nil
	}

	run, err := n.runs.GetRun(ctx, failed.RunID)
	if err != nil {
		return err
	}

	return n.dispatch(ctx, Notification{
		EventType:  failed.Type,
		RunID:      failed.RunID,
		Recipients: recipients(run.TriggeredByID, lastAssignee(run)),
		Subject:    "Workflow failed",
		Body:       failed.Reason,
	})
}

// dispatch skips notifications nobody should receive.
func (n *Notifier) dispatch(ctx context.Context, notification Notification) error {
	if len(notification.Recipients) == 0 {
		n.logger.DebugContext(ctx, "no recipients for notification",
			"event_type", notification.EventType,
			"run_id", notification.RunID)

		return nil
	}

	if err := n.dispatcher.Dispatch(ctx, notification); err != nil {
		n.logger.ErrorContext(ctx, "failed to dispatch notification",
			"event_type", notification.EventType,
			"run_id", notification.RunID,
			"error", err)

		return err
	}

	return nil
}

// recipients drops empty and system ids and keeps the first occurrence of each user.
func recipients(ids ...string) []string {
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if id == "" || strings.HasPrefix(id, systemActorPrefix) {
			continue
		}

		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}

	return out
}

func lastAssignee(run *models.WorkflowRun) string {
	for i := len(run.Executions) - 1; i >= 0; i-- {
		if id := run.Executions[i].ResolvedAssigneeID; id != "" {
			return id
		}
	}

	return ""
}
