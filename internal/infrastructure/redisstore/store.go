// Package redisstore keeps ledger tables and display state in Redis hashes.
// Saves go through MULTI/EXEC so readers never see half a table.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type Store struct {
	client *redis.Client
	prefix string
}

// New parses a redis:// URL. Keys are namespaced by prefix.
func New(url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redisstore: parse url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts), prefix), nil
}

func NewWithClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "shop"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(name string) string {
	return fmt.Sprintf("%s:%s", s.prefix, name)
}

func (s *Store) Load(ctx context.Context) (inventory.Tables, error) {
	var stockCmd, pricesCmd *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		stockCmd = p.HGetAll(ctx, s.key("stock"))
		pricesCmd = p.HGetAll(ctx, s.key("prices"))
		return nil
	})
	if err != nil {
		return inventory.Tables{}, fmt.Errorf("redisstore: load: %w", err)
	}

	t := inventory.NewTables()
	for id, raw := range stockCmd.Val() {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return inventory.Tables{}, fmt.Errorf("redisstore: parse quantity for %q: %w", id, err)
		}
		t.Quantities[id] = qty
	}
	for id, raw := range pricesCmd.Val() {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return inventory.Tables{}, fmt.Errorf("redisstore: parse price for %q: %w", id, err)
		}
		t.Prices[id] = price
	}
	if len(t.Quantities) == 0 && len(t.Prices) == 0 {
		return inventory.Tables{}, inventory.ErrEmptyStore
	}
	return t, nil
}

func (s *Store) Save(ctx context.Context, t inventory.Tables) error {
	stock := make(map[string]any, len(t.Quantities))
	for id, qty := range t.Quantities {
		stock[id] = qty
	}
	prices := make(map[string]any, len(t.Prices))
	for id, p := range t.Prices {
		prices[id] = p.String()
	}

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.key("stock"), s.key("prices"))
		if len(stock) > 0 {
			p.HSet(ctx, s.key("stock"), stock)
		}
		if len(prices) > 0 {
			p.HSet(ctx, s.key("prices"), prices)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: save: %w", err)
	}
	return nil
}

func (s *Store) LoadDisplay(ctx context.Context) (display.State, error) {
	vals, err := s.client.HGetAll(ctx, s.key("display")).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return display.State{}, fmt.Errorf("redisstore: load display state: %w", err)
	}
	if len(vals) == 0 {
		return display.State{}, display.ErrEmptyState
	}
	return display.State{
		StockMessageID: vals["stock_message_id"],
		AdminMessageID: vals["admin_message_id"],
	}, nil
}

func (s *Store) SaveDisplay(ctx context.Context, st display.State) error {
	err := s.client.HSet(ctx, s.key("display"),
		"stock_message_id", st.StockMessageID,
		"admin_message_id", st.AdminMessageID,
	).Err()
	if err != nil {
		return fmt.Errorf("redisstore: save display state: %w", err)
	}
	return nil
}
