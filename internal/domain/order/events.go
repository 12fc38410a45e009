package order

import "time"

// OrderPlacedEvent is emitted once an order's stock has been committed.
// Fulfillment, the staff log and the stock display react to it.
type OrderPlacedEvent struct {
	Order      Order
	OccurredAt time.Time
}

func (OrderPlacedEvent) EventName() string { return "order.placed" }

// EventKey identifies the event by its order id.
func (e OrderPlacedEvent) EventKey() string { return e.Order.ID }

func NewOrderPlacedEvent(o *Order) OrderPlacedEvent {
	return OrderPlacedEvent{
		Order:      *o.Clone(),
		OccurredAt: time.Now().UTC(),
	}
}
