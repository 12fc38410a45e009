package admin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

var ErrValidation = errors.New("admin: invalid input")

const maxQuantity = dominv.MaxLineQuantity

// ParseQuantity accepts a positive integer.
func ParseQuantity(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrValidation, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	}
	if n > maxQuantity {
		return 0, fmt.Errorf("%w: quantity must be at most %d", ErrValidation, maxQuantity)
	}
	return n, nil
}

// ParsePrice accepts a non-negative decimal. A comma decimal separator and a
// trailing currency sign are tolerated.
func ParsePrice(raw, currency string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if currency != "" {
		s = strings.TrimSpace(strings.TrimSuffix(s, currency))
	}
	s = strings.Replace(s, ",", ".", 1)
	if s == "" || strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a price", ErrValidation, raw)
	}
	p, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not a price", ErrValidation, raw)
	}
	if p.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: price must be zero or greater", ErrValidation)
	}
	return p, nil
}
