package display

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domdisplay "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
)

// Registry is the loaded display state. Load it once at startup; every change
// goes through Update, which persists before it returns.
type Registry struct {
	mu    sync.Mutex
	store domdisplay.StateStore
	state domdisplay.State
}

func LoadRegistry(ctx context.Context, store domdisplay.StateStore) (*Registry, error) {
	st, err := store.LoadDisplay(ctx)
	if err != nil && !errors.Is(err, domdisplay.ErrEmptyState) {
		return nil, fmt.Errorf("display: load state: %w", err)
	}
	return &Registry{store: store, state: st}, nil
}

func (r *Registry) Current() domdisplay.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Update applies fn to a copy of the state and persists it. The in-memory
// state only changes when the save succeeds.
func (r *Registry) Update(ctx context.Context, fn func(s *domdisplay.State)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state
	fn(&next)
	if next == r.state {
		return nil
	}
	if err := r.store.SaveDisplay(ctx, next); err != nil {
		return fmt.Errorf("display: save state: %w", err)
	}
	r.state = next
	return nil
}
