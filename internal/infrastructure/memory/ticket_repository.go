package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/fulfillment"
)

type TicketRepository struct {
	mu        sync.RWMutex
	tickets   map[string]*domain.Ticket
	byChannel map[string]string
}

func NewTicketRepository() *TicketRepository {
	return &TicketRepository{
		tickets:   make(map[string]*domain.Ticket),
		byChannel: make(map[string]string),
	}
}

func (r *TicketRepository) Insert(ctx context.Context, t *domain.Ticket) error {
	_ = ctx
	if t == nil || t.OrderID == "" {
		return fmt.Errorf("ticket repository: order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tickets[t.OrderID]; exists {
		return domain.ErrConflict
	}
	r.tickets[t.OrderID] = cloneTicket(t)
	if t.ChannelID != "" {
		r.byChannel[t.ChannelID] = t.OrderID
	}
	return nil
}

func (r *TicketRepository) Get(ctx context.Context, orderID string) (*domain.Ticket, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tickets[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTicket(t), nil
}

func (r *TicketRepository) FindByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	orderID, ok := r.byChannel[channelID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	t, ok := r.tickets[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneTicket(t), nil
}

func (r *TicketRepository) Delete(ctx context.Context, orderID string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tickets[orderID]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.byChannel, t.ChannelID)
	delete(r.tickets, orderID)
	return nil
}

func cloneTicket(t *domain.Ticket) *domain.Ticket {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
