package inventory

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrInvalidPrice      = errors.New("inventory: price must be zero or greater")
	ErrPersistence       = errors.New("inventory: persistence failure")
	ErrEmptyStore        = errors.New("inventory: nothing persisted yet")
)

// MaxLineQuantity bounds a single order line or stock adjustment.
const MaxLineQuantity = 1_000_000

// InsufficientStockError names the first product whose requested quantity
// exceeds what is left. It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.ProductID)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Line is one product and quantity to take out of the ledger.
type Line struct {
	ProductID string
	Quantity  int
}

// Tables is the persisted ledger state: quantity and price per product.
type Tables struct {
	Quantities map[string]int
	Prices     map[string]decimal.Decimal
}

// NewTables returns empty, non-nil tables.
func NewTables() Tables {
	return Tables{
		Quantities: make(map[string]int),
		Prices:     make(map[string]decimal.Decimal),
	}
}

// Clone returns a deep copy.
func (t Tables) Clone() Tables {
	out := NewTables()
	maps.Copy(out.Quantities, t.Quantities)
	maps.Copy(out.Prices, t.Prices)
	return out
}

// Quantity returns the stock for productID, zero when unknown.
func (t Tables) Quantity(productID string) int {
	return t.Quantities[productID]
}

// Price returns the price for productID.
func (t Tables) Price(productID string) (decimal.Decimal, bool) {
	p, ok := t.Prices[productID]
	return p, ok
}

// Has reports whether productID is tracked by either table.
func (t Tables) Has(productID string) bool {
	if _, ok := t.Quantities[productID]; ok {
		return true
	}
	_, ok := t.Prices[productID]
	return ok
}

// ProductIDs returns every tracked product id in lexical order.
func (t Tables) ProductIDs() []string {
	seen := make(map[string]struct{}, len(t.Quantities)+len(t.Prices))
	for id := range t.Quantities {
		seen[id] = struct{}{}
	}
	for id := range t.Prices {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Deduct removes every line from the tables, or nothing at all. Lines for the
// same product are summed before they are checked.
func (t *Tables) Deduct(lines []Line) error {
	if len(lines) == 0 {
		return ErrInvalidQuantity
	}
	want := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: %s", ErrInvalidQuantity, l.ProductID)
		}
		if _, ok := want[l.ProductID]; !ok {
			order = append(order, l.ProductID)
		}
		if l.Quantity > math.MaxInt-want[l.ProductID] {
			return &InsufficientStockError{ProductID: l.ProductID, Requested: math.MaxInt, Available: t.Quantities[l.ProductID]}
		}
		want[l.ProductID] += l.Quantity
	}
	for _, id := range order {
		if have := t.Quantities[id]; have < want[id] {
			return &InsufficientStockError{ProductID: id, Requested: want[id], Available: have}
		}
	}
	for _, id := range order {
		t.Quantities[id] -= want[id]
	}
	return nil
}

// Adjust adds delta to productID's quantity, clamping at zero.
func (t *Tables) Adjust(productID string, delta int) (int, error) {
	if !t.Has(productID) {
		return 0, ErrNotFound
	}
	cur := t.Quantities[productID]
	next := cur + delta
	switch {
	case delta > 0 && next < cur:
		next = math.MaxInt
	case next < 0:
		next = 0
	}
	t.Quantities[productID] = next
	return next, nil
}

// SetPrice replaces productID's price.
func (t *Tables) SetPrice(productID string, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	if !t.Has(productID) {
		return ErrNotFound
	}
	t.Prices[productID] = price
	return nil
}
