// Package inventory holds the authoritative stock and price state.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
	"github.com/shopspring/decimal"
)

const (
	componentLedger = "inventory-ledger"
	storePeer       = "ledger_store"
)

// CommittedLine is one accepted line with the unit price in force at commit time.
type CommittedLine struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Commit is the result of a successful TryCommit.
type Commit struct {
	Lines     []CommittedLine
	Prices    map[string]decimal.Decimal
	Remaining map[string]int
}

// Ledger serializes every read-check-write on the tables behind one mutex.
// A mutation is applied to a copy, persisted, and only then swapped in, so
// memory never holds state the store refused.
type Ledger struct {
	mu      sync.RWMutex
	tables  dominv.Tables
	store   dominv.Store
	catalog *dominv.Catalog
	log     observability.Logger
	metrics observability.Metrics
}

// Open loads the persisted tables. On first run it seeds them from the
// catalog; catalog products missing from an existing store get their defaults.
func Open(ctx context.Context, store dominv.Store, catalog *dominv.Catalog, tel observability.Observability) (*Ledger, error) {
	if store == nil || catalog == nil {
		return nil, errors.New("inventory: store and catalog are required")
	}
	l := &Ledger{
		store:   store,
		catalog: catalog,
		log:     observability.LoggerOf(tel).With(observability.F("component", componentLedger)),
		metrics: observability.MetricsOf(tel),
	}
	logger := logctx.FromOr(ctx, l.log)

	tables, err := store.Load(ctx)
	switch {
	case errors.Is(err, dominv.ErrEmptyStore):
		tables = catalog.Defaults()
		if err := l.persist(ctx, tables); err != nil {
			return nil, err
		}
		logger.Info("ledger_seeded", observability.F("products", len(tables.Quantities)))
	case err != nil:
		return nil, fmt.Errorf("inventory: load: %w", err)
	default:
		if catalog.FillMissing(&tables) {
			if err := l.persist(ctx, tables); err != nil {
				return nil, err
			}
			logger.Info("ledger_catalog_defaults_added")
		}
	}

	l.tables = tables
	logger.Info("ledger_opened", observability.F("products", len(tables.ProductIDs())))
	return l, nil
}

func (l *Ledger) Catalog() *dominv.Catalog { return l.catalog }

// Snapshot returns a copy of the current tables.
func (l *Ledger) Snapshot() dominv.Tables {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tables.Clone()
}

// TryCommit decrements every line or none of them. The returned error is an
// *InsufficientStockError naming the first short product, an ErrInvalidQuantity,
// or an ErrPersistence.
func (l *Ledger) TryCommit(ctx context.Context, lines []dominv.Line) (Commit, error) {
	var out Commit
	err := l.mutate(ctx, func(t *dominv.Tables) error {
		if err := t.Deduct(lines); err != nil {
			return err
		}
		out = Commit{
			Lines:     make([]CommittedLine, 0, len(lines)),
			Prices:    t.Clone().Prices,
			Remaining: make(map[string]int, len(lines)),
		}
		for _, ln := range lines {
			price, _ := t.Price(ln.ProductID)
			out.Lines = append(out.Lines, CommittedLine{
				ProductID: ln.ProductID,
				Quantity:  ln.Quantity,
				UnitPrice: price,
			})
			out.Remaining[ln.ProductID] = t.Quantity(ln.ProductID)
		}
		return nil
	})
	if err != nil {
		return Commit{}, err
	}
	return out, nil
}

// Adjust adds delta to the product's quantity and returns the new value.
// Decrements saturate at zero.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int) (before, after int, err error) {
	err = l.mutate(ctx, func(t *dominv.Tables) error {
		before = t.Quantity(productID)
		after, err = t.Adjust(productID, delta)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return before, after, nil
}

func (l *Ledger) SetPrice(ctx context.Context, productID string, price decimal.Decimal) error {
	return l.mutate(ctx, func(t *dominv.Tables) error {
		return t.SetPrice(productID, price)
	})
}

func (l *Ledger) mutate(ctx context.Context, apply func(t *dominv.Tables) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.tables.Clone()
	if err := apply(&next); err != nil {
		return err
	}
	if err := l.persist(ctx, next); err != nil {
		return err
	}
	l.tables = next
	return nil
}

func (l *Ledger) persist(ctx context.Context, t dominv.Tables) error {
	start := time.Now()
	err := l.store.Save(ctx, t)
	observability.External(l.metrics, storePeer, "save", start, err)
	if err != nil {
		logctx.FromOr(ctx, l.log).Error("ledger_persist_failed", observability.F("error", err))
		return fmt.Errorf("%w: %w", dominv.ErrPersistence, err)
	}
	return nil
}
