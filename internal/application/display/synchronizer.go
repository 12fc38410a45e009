package display

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	domdisplay "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/display"
	dominv "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/inventory"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
)

const (
	displayService  = "display-sync"
	useCaseSync     = "display.sync"
	spanPrefix      = "UC."
	platformPeer    = "chat"
	DefaultInterval = 10 * time.Second
	defaultTimeout  = 5 * time.Second
)

// Source is the read side of the ledger.
type Source interface {
	Snapshot() dominv.Tables
	Catalog() *dominv.Catalog
}

type Config struct {
	ChannelID string
	Branding  Branding
	// Timeout bounds each platform call.
	Timeout time.Duration
}

// Synchronizer mirrors the ledger into one long-lived public message.
// Sync is serialized; Trigger coalesces bursts into a single pending run.
type Synchronizer struct {
	source    Source
	messenger chat.Messenger
	registry  *Registry
	cfg       Config

	mu      sync.Mutex
	trigger chan struct{}

	tel     observability.Observability
	log     observability.Logger
	metrics observability.Metrics
}

func NewSynchronizer(source Source, messenger chat.Messenger, registry *Registry, cfg Config, tel observability.Observability) *Synchronizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Synchronizer{
		source:    source,
		messenger: messenger,
		registry:  registry,
		cfg:       cfg,
		trigger:   make(chan struct{}, 1),
		tel:       tel,
		log:       observability.LoggerOf(tel).With(observability.F("service", displayService)),
		metrics:   observability.MetricsOf(tel),
	}
}

// Sync renders a fresh snapshot and edits the recorded message, falling back
// to a new message (whose id is persisted) when the old one is gone.
func (s *Synchronizer) Sync(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, op := observability.StartOp(ctx, s.tel, logctx.FromOr(ctx, s.log), useCaseSync, spanPrefix+"SyncDisplay",
		attribute.String("display.channel_id", s.cfg.ChannelID),
	)
	defer func() { op.End(err) }()

	msg := RenderStock(s.source.Catalog(), s.source.Snapshot(), s.cfg.Branding)
	current := s.registry.Current().StockMessageID

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	start := time.Now()
	id, err := EditOrSend(callCtx, s.messenger, s.cfg.ChannelID, current, msg)
	cancel()
	observability.External(s.metrics, platformPeer, "upsert_stock_message", start, err)
	if err != nil {
		op.Fail("PLATFORM_FAILED")
		return fmt.Errorf("display: sync: %w", err)
	}

	if id != current {
		op.Status("MESSAGE_REPLACED")
		op.Add(observability.F("message_id", id), observability.F("previous_message_id", current))
		if err := s.registry.Update(ctx, func(st *domdisplay.State) { st.StockMessageID = id }); err != nil {
			op.Fail("STATE_SAVE_FAILED")
			return err
		}
	}
	return nil
}

// Trigger requests a sync without blocking. Requests made while one is
// already pending collapse into it.
func (s *Synchronizer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run syncs once, then on every trigger and every interval until ctx is done.
// Failures are logged and left for the next run to repair.
func (s *Synchronizer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := logctx.FromOr(ctx, s.log)
	logger.Info("display_sync_started", observability.F("interval", interval.String()))

	s.syncLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("display_sync_stopped")
			return
		case <-ticker.C:
			s.syncLogged(ctx)
		case <-s.trigger:
			s.syncLogged(ctx)
		}
	}
}

func (s *Synchronizer) syncLogged(ctx context.Context) {
	if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
		logctx.FromOr(ctx, s.log).Warn("display_sync_failed", observability.F("error", err))
	}
}
