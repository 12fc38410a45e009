// Package filestore keeps ledger tables and display state as JSON documents
// in one directory: stock.json, prices.json and display.json.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

const (
	StockFile   = "stock.json"
	PricesFile  = "prices.json"
	DisplayFile = "display.json"
)

type Store struct {
	dir string

	mu sync.Mutex
	// last holds the bytes most recently read or written per document, so
	// Save only rewrites what changed. A commit touches stock.json alone and a
	// price change prices.json alone, which keeps each mutation one rename.
	last map[string][]byte
}

// Open creates dir when missing.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: open %s: %w", dir, err)
	}
	return &Store{dir: dir, last: make(map[string][]byte)}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Load(ctx context.Context) (inventory.Tables, error) {
	if err := ctx.Err(); err != nil {
		return inventory.Tables{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := inventory.NewTables()
	foundStock, err := s.readDoc(StockFile, &t.Quantities)
	if err != nil {
		return inventory.Tables{}, err
	}
	foundPrices, err := s.readDoc(PricesFile, &t.Prices)
	if err != nil {
		return inventory.Tables{}, err
	}
	if !foundStock && !foundPrices {
		return inventory.Tables{}, inventory.ErrEmptyStore
	}
	if t.Quantities == nil {
		t.Quantities = make(map[string]int)
	}
	if t.Prices == nil {
		t.Prices = make(map[string]decimal.Decimal)
	}
	return t, nil
}

func (s *Store) Save(ctx context.Context, t inventory.Tables) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stock, err := encode(t.Quantities)
	if err != nil {
		return fmt.Errorf("filestore: encode stock: %w", err)
	}
	prices, err := encode(priceNumbers(t.Prices))
	if err != nil {
		return fmt.Errorf("filestore: encode prices: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The two documents are renamed separately. Only the seeding path changes
	// both at once; stock goes last so a failed Save never leaves a stock
	// change on disk.
	if err := s.writeIfChanged(PricesFile, prices); err != nil {
		return err
	}
	return s.writeIfChanged(StockFile, stock)
}

func (s *Store) LoadDisplay(ctx context.Context) (display.State, error) {
	if err := ctx.Err(); err != nil {
		return display.State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var st display.State
	found, err := s.readDoc(DisplayFile, &st)
	if err != nil {
		return display.State{}, err
	}
	if !found {
		return display.State{}, display.ErrEmptyState
	}
	return st, nil
}

func (s *Store) SaveDisplay(ctx context.Context, st display.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(st)
	if err != nil {
		return fmt.Errorf("filestore: encode display: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeIfChanged(DisplayFile, data)
}

func (s *Store) readDoc(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("filestore: read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("filestore: decode %s: %w", name, err)
	}
	s.last[name] = data
	return true, nil
}

func (s *Store) writeIfChanged(name string, data []byte) error {
	if prev, ok := s.last[name]; ok && bytes.Equal(prev, data) {
		return nil
	}
	if err := writeAtomic(filepath.Join(s.dir, name), data); err != nil {
		return fmt.Errorf("filestore: write %s: %w", name, err)
	}
	s.last[name] = data
	return nil
}

// writeAtomic writes to a temp file in the same directory, syncs it and
// renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

func encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// priceNumbers renders prices as bare JSON numbers, which is what the
// storefront reads from prices.json.
func priceNumbers(prices map[string]decimal.Decimal) map[string]json.Number {
	out := make(map[string]json.Number, len(prices))
	for id, p := range prices {
		out[id] = json.Number(p.String())
	}
	return out
}
