package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRequester = errors.New("order: requester id is required")
	ErrEmpty            = errors.New("order: at least one line is required")
	ErrInvalidQuantity  = errors.New("order: quantity must be greater than zero")
	ErrInvalidPrice     = errors.New("order: unit price must be zero or greater")
)

// Requester is the verified platform identity that placed the order.
type Requester struct {
	UserID      string
	DisplayName string
}

// Line is a committed product line with the unit price captured at commit time.
type Line struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is immutable once created; it only travels to fulfillment and the staff log.
type Order struct {
	ID        string
	Requester Requester
	Lines     []Line
	Total     decimal.Decimal
	CreatedAt time.Time
}

func New(id string, requester Requester, lines []Line, now time.Time) (*Order, error) {
	if requester.UserID == "" {
		return nil, ErrInvalidRequester
	}
	if len(lines) == 0 {
		return nil, ErrEmpty
	}
	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if l.UnitPrice.IsNegative() {
			return nil, ErrInvalidPrice
		}
		total = total.Add(l.Subtotal())
	}
	if requester.DisplayName == "" {
		requester.DisplayName = requester.UserID
	}
	return &Order{
		ID:        id,
		Requester: requester,
		Lines:     append([]Line(nil), lines...),
		Total:     total,
		CreatedAt: now.UTC(),
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]Line(nil), o.Lines...)
	return &clone
}
