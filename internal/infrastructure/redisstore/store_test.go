package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// newTestStore needs a reachable Redis at REDIS_ADDR; keys live under a
// random prefix and are removed afterwards.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	s := NewWithClient(client, "test-"+uuid.NewString())
	require.NoError(t, s.Ping(context.Background()))

	t.Cleanup(func() {
		ctx := context.Background()
		_ = client.Del(ctx, s.key("stock"), s.key("prices"), s.key("display")).Err()
		_ = s.Close()
	})
	return s
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("not a url", "")
	require.Error(t, err)
}

func TestStore_Tables(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, inventory.ErrEmptyStore)

	tb := inventory.NewTables()
	tb.Quantities["nitro1m"] = 2
	tb.Quantities["boost1m"] = 0
	tb.Prices["nitro1m"] = decimal.RequireFromString("1.5")
	require.NoError(t, s.Save(ctx, tb))

	delete(tb.Quantities, "boost1m")
	require.NoError(t, s.Save(ctx, tb))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"nitro1m": 2}, got.Quantities)
	p, _ := got.Price("nitro1m")
	require.True(t, p.Equal(decimal.RequireFromString("1.5")))
}

func TestStore_Display(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.LoadDisplay(ctx)
	require.ErrorIs(t, err, display.ErrEmptyState)

	want := display.State{StockMessageID: "a", AdminMessageID: "b"}
	require.NoError(t, s.SaveDisplay(ctx, want))
	got, err := s.LoadDisplay(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
