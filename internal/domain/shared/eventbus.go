package shared

import "context"

// EventHandler processes a single domain event
type EventHandler func(ctx context.Context, event DomainEvent) error

// EventBus publishes domain events to registered handlers.
// Publishing is best-effort: handler failures must not fail the
// business operation that emitted the event.
type EventBus interface {
	Publish(ctx context.Context, events ...DomainEvent)
	Subscribe(eventType string, handler EventHandler)
}
