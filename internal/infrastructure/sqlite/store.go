// Package sqlite keeps ledger tables, display state and fulfillment tickets
// in one SQLite database. Every Save runs in a single transaction, so the
// stock and price tables never diverge on disk.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/fulfillment"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/shopspring/decimal"

	// Pure-Go driver, registered as "sqlite".
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS stock (
    product_id  TEXT    PRIMARY KEY,
    quantity    INTEGER NOT NULL CHECK (quantity >= 0)
);

-- Prices are decimal strings; SQLite REAL would round them.
CREATE TABLE IF NOT EXISTS prices (
    product_id  TEXT PRIMARY KEY,
    price       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS display_state (
    id                INTEGER PRIMARY KEY CHECK (id = 1),
    stock_message_id  TEXT NOT NULL DEFAULT '',
    admin_message_id  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tickets (
    order_id    TEXT PRIMARY KEY,
    channel_id  TEXT NOT NULL,
    owner_id    TEXT NOT NULL,
    opened_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tickets_channel_id ON tickets(channel_id);
`

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) (inventory.Tables, error) {
	t := inventory.NewTables()

	rows, err := s.db.QueryContext(ctx, `SELECT product_id, quantity FROM stock`)
	if err != nil {
		return inventory.Tables{}, fmt.Errorf("sqlite: load stock: %w", err)
	}
	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			_ = rows.Close()
			return inventory.Tables{}, fmt.Errorf("sqlite: scan stock: %w", err)
		}
		t.Quantities[id] = qty
	}
	if err := closeRows(rows); err != nil {
		return inventory.Tables{}, fmt.Errorf("sqlite: load stock: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT product_id, price FROM prices`)
	if err != nil {
		return inventory.Tables{}, fmt.Errorf("sqlite: load prices: %w", err)
	}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			_ = rows.Close()
			return inventory.Tables{}, fmt.Errorf("sqlite: scan prices: %w", err)
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			_ = rows.Close()
			return inventory.Tables{}, fmt.Errorf("sqlite: parse price for %q: %w", id, err)
		}
		t.Prices[id] = price
	}
	if err := closeRows(rows); err != nil {
		return inventory.Tables{}, fmt.Errorf("sqlite: load prices: %w", err)
	}

	if len(t.Quantities) == 0 && len(t.Prices) == 0 {
		return inventory.Tables{}, inventory.ErrEmptyStore
	}
	return t, nil
}

func (s *Store) Save(ctx context.Context, t inventory.Tables) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM stock`); err != nil {
		return fmt.Errorf("sqlite: clear stock: %w", err)
	}
	for id, qty := range t.Quantities {
		if _, err = tx.ExecContext(ctx, `INSERT INTO stock (product_id, quantity) VALUES (?, ?)`, id, qty); err != nil {
			return fmt.Errorf("sqlite: save stock for %q: %w", id, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM prices`); err != nil {
		return fmt.Errorf("sqlite: clear prices: %w", err)
	}
	for id, price := range t.Prices {
		if _, err = tx.ExecContext(ctx, `INSERT INTO prices (product_id, price) VALUES (?, ?)`, id, price.String()); err != nil {
			return fmt.Errorf("sqlite: save price for %q: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (s *Store) LoadDisplay(ctx context.Context) (display.State, error) {
	var st display.State
	err := s.db.QueryRowContext(ctx,
		`SELECT stock_message_id, admin_message_id FROM display_state WHERE id = 1`,
	).Scan(&st.StockMessageID, &st.AdminMessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return display.State{}, display.ErrEmptyState
	}
	if err != nil {
		return display.State{}, fmt.Errorf("sqlite: load display state: %w", err)
	}
	return st, nil
}

func (s *Store) SaveDisplay(ctx context.Context, st display.State) error {
	const q = `
		INSERT INTO display_state (id, stock_message_id, admin_message_id)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			stock_message_id = excluded.stock_message_id,
			admin_message_id = excluded.admin_message_id`

	if _, err := s.db.ExecContext(ctx, q, st.StockMessageID, st.AdminMessageID); err != nil {
		return fmt.Errorf("sqlite: save display state: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	return rows.Close()
}

// Tickets returns the fulfillment ticket repository sharing this database.
func (s *Store) Tickets() *TicketRepository {
	return &TicketRepository{db: s.db}
}

type TicketRepository struct {
	db *sql.DB
}

func (r *TicketRepository) Insert(ctx context.Context, t *fulfillment.Ticket) error {
	if t == nil || t.OrderID == "" {
		return fmt.Errorf("sqlite: ticket order id is required")
	}
	const q = `
		INSERT INTO tickets (order_id, channel_id, owner_id, opened_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(order_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, q,
		t.OrderID, t.ChannelID, t.OwnerID,
		t.OpenedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert ticket %q: %w", t.OrderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: insert ticket %q: %w", t.OrderID, err)
	}
	if n == 0 {
		return fulfillment.ErrConflict
	}
	return nil
}

func (r *TicketRepository) Get(ctx context.Context, orderID string) (*fulfillment.Ticket, error) {
	return r.queryOne(ctx, `SELECT order_id, channel_id, owner_id, opened_at FROM tickets WHERE order_id = ?`, orderID)
}

func (r *TicketRepository) FindByChannel(ctx context.Context, channelID string) (*fulfillment.Ticket, error) {
	return r.queryOne(ctx, `SELECT order_id, channel_id, owner_id, opened_at FROM tickets WHERE channel_id = ? LIMIT 1`, channelID)
}

func (r *TicketRepository) Delete(ctx context.Context, orderID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE order_id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("sqlite: delete ticket %q: %w", orderID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fulfillment.ErrNotFound
	}
	return nil
}

func (r *TicketRepository) queryOne(ctx context.Context, q, arg string) (*fulfillment.Ticket, error) {
	var t fulfillment.Ticket
	var openedAt string
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&t.OrderID, &t.ChannelID, &t.OwnerID, &openedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fulfillment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: query ticket: %w", err)
	}
	if t.OpenedAt, err = time.Parse(time.RFC3339Nano, openedAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse time %q: %w", openedAt, err)
	}
	return &t, nil
}
