package display

import (
	"context"
	"errors"
)

var ErrEmptyState = errors.New("display: no state persisted yet")

// State records the live messages the shop keeps editing in place.
type State struct {
	StockMessageID string `json:"stockMessageId"`
	AdminMessageID string `json:"adminMessageId"`
}

// StateStore persists State across restarts. Load returns ErrEmptyState on first run.
type StateStore interface {
	LoadDisplay(ctx context.Context) (State, error)
	SaveDisplay(ctx context.Context, s State) error
}
