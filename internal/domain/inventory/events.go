package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockAdjustedEvent is emitted after staff changed a product's quantity.
type StockAdjustedEvent struct {
	ProductID  string
	Before     int
	After      int
	ActorID    string
	OccurredAt time.Time
}

func (StockAdjustedEvent) EventName() string { return "inventory.stock_adjusted" }

// Restocked reports whether the adjustment raised the quantity.
func (e StockAdjustedEvent) Restocked() bool { return e.After > e.Before }

func NewStockAdjustedEvent(productID string, before, after int, actorID string) StockAdjustedEvent {
	return StockAdjustedEvent{
		ProductID:  productID,
		Before:     before,
		After:      after,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

// PriceChangedEvent is emitted after staff changed a product's price.
type PriceChangedEvent struct {
	ProductID  string
	Price      decimal.Decimal
	ActorID    string
	OccurredAt time.Time
}

func (PriceChangedEvent) EventName() string { return "inventory.price_changed" }

func NewPriceChangedEvent(productID string, price decimal.Decimal, actorID string) PriceChangedEvent {
	return PriceChangedEvent{
		ProductID:  productID,
		Price:      price,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}
