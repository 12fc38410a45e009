package memory

import (
	"context"
	"sync"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
	domain "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
)

// Store keeps ledger tables and display state in process memory. It backs
// STORE_BACKEND=memory and the tests; nothing survives a restart.
type Store struct {
	mu      sync.RWMutex
	tables  *domain.Tables
	state   *display.State
	saveErr error
	saves   int
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Load(ctx context.Context) (domain.Tables, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.tables == nil {
		return domain.Tables{}, domain.ErrEmptyStore
	}
	return s.tables.Clone(), nil
}

func (s *Store) Save(ctx context.Context, t domain.Tables) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	clone := t.Clone()
	s.tables = &clone
	s.saves++
	return nil
}

// FailSaves makes every following Save return err until called with nil.
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Saves reports how many Save calls succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *Store) LoadDisplay(ctx context.Context) (display.State, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return display.State{}, display.ErrEmptyState
	}
	return *s.state, nil
}

func (s *Store) SaveDisplay(ctx context.Context, st display.State) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saveErr != nil {
		return s.saveErr
	}
	s.state = &st
	return nil
}
