// Package notification records every committed order on append-only staff
// surfaces, independent of the order's fulfillment channel.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/application/display"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/domain/chat"
	domorder "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/order"
	domoutbox "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/outbox"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/pkg/retry"

	"go.opentelemetry.io/otel/attribute"
)

const (
	notificationService = "notification"
	useCaseNotify       = "notification.order_placed"
	spanPrefix          = "UC."
	defaultTimeout      = 5 * time.Second
)

// Sink is one place an order record is written to.
type Sink interface {
	Name() string
	Notify(ctx context.Context, o domorder.Order) error
}

// ChatSink posts the order record to the staff log channel.
type ChatSink struct {
	messenger chat.Messenger
	channelID string
	branding  display.Branding
}

func NewChatSink(m chat.Messenger, channelID string, b display.Branding) *ChatSink {
	return &ChatSink{messenger: m, channelID: channelID, branding: b}
}

func (s *ChatSink) Name() string { return "chat_log" }

func (s *ChatSink) Notify(ctx context.Context, o domorder.Order) error {
	greeting := o.Requester.DisplayName
	if o.Requester.UserID != "" {
		greeting = chat.Member{UserID: o.Requester.UserID}.Mention()
	}
	_, err := s.messenger.Send(ctx, s.channelID, chat.Message{
		Embeds: []chat.Embed{display.RenderOrder(o, greeting, s.branding)},
	})
	return err
}

type Config struct {
	Timeout time.Duration
	Retry   retry.Policy
}

// Dispatcher fans an order out to every sink. Each sink is retried on its
// own; one failing sink never blocks the others.
type Dispatcher struct {
	sinks   []Sink
	cfg     Config
	tel     observability.Observability
	log     observability.Logger
	metrics observability.Metrics
}

func NewDispatcher(cfg Config, tel observability.Observability, sinks ...Sink) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.Default
	}
	return &Dispatcher{
		sinks:   sinks,
		cfg:     cfg,
		tel:     tel,
		log:     observability.LoggerOf(tel).With(observability.F("service", notificationService)),
		metrics: observability.MetricsOf(tel),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, o domorder.Order) (err error) {
	ctx, op := observability.StartOp(ctx, d.tel, logctx.FromOr(ctx, d.log), useCaseNotify, spanPrefix+"NotifyOrder",
		attribute.String("order.id", o.ID),
		attribute.Int("notification.sinks", len(d.sinks)),
	)
	defer func() { op.End(err) }()
	op.Add(observability.F("order_id", o.ID))

	errs := make([]error, len(d.sinks))
	done := make(chan int, len(d.sinks))
	for i, s := range d.sinks {
		go func() {
			errs[i] = d.notifyOne(ctx, op.Logger(), s, o)
			done <- i
		}()
	}
	for range d.sinks {
		<-done
	}

	failed := 0
	for _, e := range errs {
		if e != nil {
			failed++
		}
	}
	if failed > 0 {
		op.Fail("SINK_FAILED")
		op.Add(observability.F("failed_sinks", failed))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) notifyOne(ctx context.Context, logger observability.Logger, s Sink, o domorder.Order) error {
	err := retry.Do(ctx, d.cfg.Retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
		start := time.Now()
		err := s.Notify(callCtx, o)
		observability.External(d.metrics, s.Name(), "notify", start, err)
		if errors.Is(err, chat.ErrChannelNotFound) {
			return retry.Permanent(err)
		}
		return err
	}, func(err error, wait time.Duration) {
		logger.Warn("notification_retry",
			observability.F("sink", s.Name()),
			observability.F("error", err),
			observability.F("wait", wait.String()),
		)
	})
	if err != nil {
		return fmt.Errorf("notification: %s: %w", s.Name(), err)
	}
	return nil
}

// Subscribe dispatches every placed order.
func (d *Dispatcher) Subscribe(sub domoutbox.Subscriber) {
	sub.Subscribe(domorder.OrderPlacedEvent{}.EventName(), func(ctx context.Context, e domoutbox.Event) error {
		evt, ok := e.(domorder.OrderPlacedEvent)
		if !ok {
			return nil
		}
		return d.Dispatch(ctx, evt.Order)
	})
}
