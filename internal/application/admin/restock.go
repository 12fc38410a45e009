package admin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	domoutbox "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/outbox"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/pkg/retry"
)

const DefaultAnnounceTTL = 10 * time.Minute

type AnnouncerConfig struct {
	ChannelID string
	TTL       time.Duration
	Timeout   time.Duration
	Retry     retry.Policy
}

// Announcer posts a restock notice whenever staff raise a product's stock
// and retracts it once TTL has passed.
type Announcer struct {
	messenger chat.Messenger
	catalog   *dominv.Catalog
	cfg       AnnouncerConfig
	log       observability.Logger
	metrics   observability.Metrics

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewAnnouncer(m chat.Messenger, catalog *dominv.Catalog, cfg AnnouncerConfig, tel observability.Observability) *Announcer {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultAnnounceTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.Default
	}
	return &Announcer{
		messenger: m,
		catalog:   catalog,
		cfg:       cfg,
		log:       observability.LoggerOf(tel).With(observability.F("component", "restock-announcer")),
		metrics:   observability.MetricsOf(tel),
		pending:   make(map[string]*time.Timer),
	}
}

func (a *Announcer) Subscribe(sub domoutbox.Subscriber) {
	sub.Subscribe(dominv.StockAdjustedEvent{}.EventName(), func(ctx context.Context, e domoutbox.Event) error {
		evt, ok := e.(dominv.StockAdjustedEvent)
		if !ok || !evt.Restocked() {
			return nil
		}
		_, err := a.Announce(ctx, evt)
		return err
	})
}

// Announce posts the notice and schedules its removal. It returns the message id.
func (a *Announcer) Announce(ctx context.Context, evt dominv.StockAdjustedEvent) (string, error) {
	msg := chat.Message{
		Embeds: []chat.Embed{{
			Title:       "🔔 Restock",
			Description: fmt.Sprintf("**%s** is back in stock: **%d** available!", a.catalog.Name(evt.ProductID), evt.After),
			Color:       chat.ColorGreen,
		}},
	}

	var id string
	err := retry.Do(ctx, a.cfg.Retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
		start := time.Now()
		var err error
		id, err = a.messenger.Send(callCtx, a.cfg.ChannelID, msg)
		observability.External(a.metrics, platformPeer, "send_restock", start, err)
		return err
	}, nil)
	if err != nil {
		return "", fmt.Errorf("admin: announce restock of %s: %w", evt.ProductID, err)
	}

	logctx.FromOr(ctx, a.log).Info("restock_announced",
		observability.F("product_id", evt.ProductID),
		observability.F("message_id", id),
		observability.F("ttl", a.cfg.TTL.String()),
	)

	a.mu.Lock()
	a.wg.Add(1)
	a.pending[id] = time.AfterFunc(a.cfg.TTL, func() { a.retract(id) })
	a.mu.Unlock()
	return id, nil
}

func (a *Announcer) retract(id string) {
	defer a.wg.Done()
	a.mu.Lock()
	delete(a.pending, id)
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
	defer cancel()
	start := time.Now()
	err := a.messenger.Delete(ctx, a.cfg.ChannelID, id)
	observability.External(a.metrics, platformPeer, "delete_restock", start, err)
	if err != nil {
		a.log.Warn("restock_retract_failed",
			observability.F("message_id", id),
			observability.F("error", err),
		)
	}
}

// Flush retracts every pending notice now and waits for the deletions.
func (a *Announcer) Flush() {
	a.mu.Lock()
	var due []string
	for id, t := range a.pending {
		if t.Stop() {
			due = append(due, id)
		}
	}
	a.mu.Unlock()

	for _, id := range due {
		a.retract(id)
	}
	a.wg.Wait()
}
