package fulfillment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("fulfillment: ticket not found")
	ErrConflict = errors.New("fulfillment: ticket already exists")
)

// Ticket links an order to the private channel opened for it.
type Ticket struct {
	OrderID   string
	ChannelID string
	OwnerID   string
	OpenedAt  time.Time
}

// Repository remembers opened tickets so a retried open does not create a second channel.
type Repository interface {
	Insert(ctx context.Context, t *Ticket) error
	Get(ctx context.Context, orderID string) (*Ticket, error)
	FindByChannel(ctx context.Context, channelID string) (*Ticket, error)
	Delete(ctx context.Context, orderID string) error
}
