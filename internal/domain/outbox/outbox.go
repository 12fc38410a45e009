// Package outbox defines the in-process event contract between the order,
// inventory and notification sides of the shop.
package outbox

import "context"

// Event is any domain event with a name identifier.
type Event interface {
	EventName() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

// Publisher publishes events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// SubscribeAll registers h for every event in events.
func SubscribeAll(sub Subscriber, h Handler, events ...Event) {
	for _, e := range events {
		sub.Subscribe(e.EventName(), h)
	}
}
