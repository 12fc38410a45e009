// Package natsink publishes order records to a NATS JetStream stream so
// other systems (bookkeeping, analytics) get a durable audit feed.
package natsink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domorder "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/order"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	DefaultStream  = "SHOP_ORDERS"
	DefaultSubject = "shop.orders.placed"
)

type Config struct {
	Stream  string
	Subject string
}

// Sink publishes one message per order. The order id is the JetStream
// message id, so a retried publish inside the duplicate window is dropped
// by the server.
type Sink struct {
	js      jetstream.JetStream
	subject string
}

// Connect dials url with reconnects enabled.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("natsink: connect %s: %w", url, err)
	}
	return nc, nil
}

// New makes sure the stream exists and captures the subject.
func New(ctx context.Context, nc *nats.Conn, cfg Config) (*Sink, error) {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("natsink: jetstream: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("natsink: ensure stream %s: %w", cfg.Stream, err)
	}
	return &Sink{js: js, subject: cfg.Subject}, nil
}

func (s *Sink) Name() string { return "nats" }

func (s *Sink) Notify(ctx context.Context, o domorder.Order) error {
	data, err := json.Marshal(NewRecord(o))
	if err != nil {
		return fmt.Errorf("natsink: encode order %s: %w", o.ID, err)
	}
	if _, err := s.js.Publish(ctx, s.subject, data, jetstream.WithMsgID(o.ID)); err != nil {
		return fmt.Errorf("natsink: publish order %s: %w", o.ID, err)
	}
	return nil
}

// Record is the wire form of an order on the audit stream.
type Record struct {
	OrderID     string       `json:"orderId"`
	RequesterID string       `json:"requesterId"`
	Requester   string       `json:"requester"`
	Lines       []RecordLine `json:"lines"`
	Total       json.Number  `json:"total"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type RecordLine struct {
	ProductID string      `json:"productId"`
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unitPrice"`
}

func NewRecord(o domorder.Order) Record {
	lines := make([]RecordLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, RecordLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: json.Number(l.UnitPrice.String()),
		})
	}
	return Record{
		OrderID:     o.ID,
		RequesterID: o.Requester.UserID,
		Requester:   o.Requester.DisplayName,
		Lines:       lines,
		Total:       json.Number(o.Total.String()),
		CreatedAt:   o.CreatedAt,
	}
}
