// Package eventbus publishes and consumes workflow run lifecycle events.
package eventbus

import (
	"context"

	"github.com/dukex/agencyflow/pkg/events"
)

// Event is a workflow run lifecycle event such as events.StepActivated or
// events.RunCompleted.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes run events keyed by run ID so events of one run
// stay ordered.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

// EventBus carries run lifecycle events from the workflow engine to consumers
// such as the notifier.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
