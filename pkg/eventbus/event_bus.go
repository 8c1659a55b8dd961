// Package eventbus provides event-driven communication for lead and workflow run notifications.
package eventbus

import (
	"context"

	"github.com/dukex/leadflow/pkg/events"
)

// Event is anything published on the bus; its type selects the handler on the other side.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes events. key groups related events (a lead ID or a run ID)
// and becomes the partition key on Kafka.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches received events to one handler per event type.
// Handlers must be registered before Subscribe.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event, e.g. *events.LeadCreated.
// Returning an error nacks the message.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
