package inventory

import (
	"context"
)

// Store persists ledger tables. Save replaces the whole document set; Load
// returns ErrEmptyStore when nothing was ever saved.
type Store interface {
	Load(ctx context.Context) (Tables, error)
	Save(ctx context.Context, t Tables) error
}
