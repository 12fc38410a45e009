package fulfillment

import (
	"context"

	domorder "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/order"
	domoutbox "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/outbox"
)

// Subscribe opens a ticket for every placed order.
func (m *Manager) Subscribe(sub domoutbox.Subscriber) {
	sub.Subscribe(domorder.OrderPlacedEvent{}.EventName(), m.onOrderPlaced)
}

func (m *Manager) onOrderPlaced(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderPlacedEvent)
	if !ok {
		return nil
	}
	_, err := m.Open(ctx, evt.Order)
	return err
}
