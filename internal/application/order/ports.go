package order

import (
	"context"

	appinv "github.com/ZIKOpl/ZIKO-SHOP/internal/application/inventory"
	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
)

type IDGenerator interface {
	NewID() string
}

// Ledger is the slice of the inventory ledger the order flow needs.
type Ledger interface {
	TryCommit(ctx context.Context, lines []dominv.Line) (appinv.Commit, error)
	Catalog() *dominv.Catalog
}
