// Package admin is the staff-only control surface for stock and price
// corrections.
package admin

import (
	"errors"
	"fmt"
	"strings"

	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
)

var ErrUnknownAction = errors.New("admin: unknown action")

type ActionKind int

const (
	IncreaseStock ActionKind = iota + 1
	DecreaseStock
	SetPrice
)

var kindTokens = map[ActionKind]string{
	IncreaseStock: "increase",
	DecreaseStock: "decrease",
	SetPrice:      "set_price",
}

// Kinds lists every action kind in menu order.
var Kinds = []ActionKind{IncreaseStock, DecreaseStock, SetPrice}

func (k ActionKind) String() string {
	if s, ok := kindTokens[k]; ok {
		return s
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

func parseKind(s string) (ActionKind, bool) {
	for k, tok := range kindTokens {
		if tok == s {
			return k, true
		}
	}
	return 0, false
}

// Action is one admin operation on one product.
type Action struct {
	Kind      ActionKind
	ProductID string
}

const actionPrefix = "admin:"

// Encode renders the action as a platform custom id, e.g. "admin:increase:nitro1m".
func (a Action) Encode() string {
	return actionPrefix + a.Kind.String() + ":" + a.ProductID
}

// DecodeAction parses an encoded action. It is the only place custom ids are
// split; everything past it works with the typed Action.
func DecodeAction(s string) (Action, error) {
	rest, ok := strings.CutPrefix(s, actionPrefix)
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	tok, productID, ok := strings.Cut(rest, ":")
	if !ok || productID == "" {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	kind, ok := parseKind(tok)
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return Action{Kind: kind, ProductID: productID}, nil
}

// Label is the menu text for the action.
func (a Action) Label(catalog *dominv.Catalog) string {
	name := a.ProductID
	if catalog != nil {
		name = catalog.Name(a.ProductID)
	}
	switch a.Kind {
	case IncreaseStock:
		return "➕ Add stock: " + name
	case DecreaseStock:
		return "➖ Remove stock: " + name
	case SetPrice:
		return "💰 Set price: " + name
	default:
		return name
	}
}
