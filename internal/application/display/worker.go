package display

import (
	"context"

	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	domorder "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/order"
	domoutbox "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/outbox"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
)

// Subscribe schedules a sync after every ledger mutation event.
func (s *Synchronizer) Subscribe(sub domoutbox.Subscriber) {
	domoutbox.SubscribeAll(sub, s.onMutation,
		domorder.OrderPlacedEvent{},
		dominv.StockAdjustedEvent{},
		dominv.PriceChangedEvent{},
	)
}

func (s *Synchronizer) onMutation(ctx context.Context, e domoutbox.Event) error {
	logctx.FromOr(ctx, s.log).Debug("display_sync_scheduled", observability.F("event", e.EventName()))
	s.Trigger()
	return nil
}
