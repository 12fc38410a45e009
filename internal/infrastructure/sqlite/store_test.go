package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/fulfillment"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_TablesRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, inventory.ErrEmptyStore)

	tb := inventory.NewTables()
	tb.Quantities["nitro1m"] = 2
	tb.Quantities["nitro1y"] = 0
	tb.Prices["nitro1m"] = decimal.RequireFromString("1.5")
	tb.Prices["nitro1y"] = decimal.RequireFromString("10")
	require.NoError(t, s.Save(ctx, tb))

	delete(tb.Quantities, "nitro1y")
	tb.Quantities["nitro1m"] = 1
	require.NoError(t, s.Save(ctx, tb))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"nitro1m": 1}, got.Quantities)
	p, ok := got.Price("nitro1m")
	require.True(t, ok)
	require.Equal(t, "1.5", p.String())
}

func TestStore_RejectsNegativeQuantity(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	good := inventory.NewTables()
	good.Quantities["nitro1m"] = 3
	require.NoError(t, s.Save(ctx, good))

	bad := inventory.NewTables()
	bad.Quantities["nitro1m"] = -1
	require.Error(t, s.Save(ctx, bad))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, got.Quantity("nitro1m"))
}

func TestStore_DisplayState(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	_, err := s.LoadDisplay(ctx)
	require.ErrorIs(t, err, display.ErrEmptyState)

	require.NoError(t, s.SaveDisplay(ctx, display.State{StockMessageID: "1"}))
	require.NoError(t, s.SaveDisplay(ctx, display.State{StockMessageID: "1", AdminMessageID: "2"}))

	st, err := s.LoadDisplay(ctx)
	require.NoError(t, err)
	require.Equal(t, display.State{StockMessageID: "1", AdminMessageID: "2"}, st)
}

func TestTicketRepository(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	repo := s.Tickets()

	opened := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, &fulfillment.Ticket{OrderID: "o1", ChannelID: "c1", OwnerID: "u1", OpenedAt: opened}))
	require.ErrorIs(t, repo.Insert(ctx, &fulfillment.Ticket{OrderID: "o1", ChannelID: "c2"}), fulfillment.ErrConflict)

	got, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ChannelID)
	require.True(t, got.OpenedAt.Equal(opened))

	byChan, err := repo.FindByChannel(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "o1", byChan.OrderID)

	require.NoError(t, repo.Delete(ctx, "o1"))
	require.ErrorIs(t, repo.Delete(ctx, "o1"), fulfillment.ErrNotFound)
	_, err = repo.Get(ctx, "o1")
	require.ErrorIs(t, err, fulfillment.ErrNotFound)
}
