package workerpresentation

import (
	"context"

	domoutbox "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/outbox"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects an event-scoped logger for background handlers.
// Dynamic fields only: event_id (generated if empty), trace_id/span_id when
// valid, plus caller-provided low-cardinality attributes such as "event".
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil {
		base = observability.NopLogger()
	}

	fields := make([]observability.Field, 0, 4+len(attrs))

	evtID := attrs["event_id"]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields = append(fields, observability.F("event_id", evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for k, v := range attrs {
		if k == "event_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}

	return logctx.With(ctx, base.With(fields...))
}

// Keyed is implemented by events carrying a stable identifier, used as the
// event_id of the handler's logger.
type Keyed interface {
	EventKey() string
}

// Subscriber decorates a domoutbox.Subscriber so that every handler runs
// inside its own span with an event-scoped logger in the context.
type Subscriber struct {
	next domoutbox.Subscriber
	tel  observability.Observability
	log  observability.Logger
}

var _ domoutbox.Subscriber = (*Subscriber)(nil)

func Instrument(next domoutbox.Subscriber, tel observability.Observability) *Subscriber {
	return &Subscriber{
		next: next,
		tel:  tel,
		log:  observability.LoggerOf(tel).With(observability.F("component", "event_worker")),
	}
}

func (s *Subscriber) Subscribe(eventName string, h domoutbox.Handler) {
	s.next.Subscribe(eventName, func(ctx context.Context, e domoutbox.Event) error {
		ctx, span := observability.TracerOf(s.tel).Start(ctx, "Event."+eventName,
			attribute.String("event.name", eventName),
		)
		defer span.End()

		attrs := map[string]string{"event": eventName}
		if k, ok := e.(Keyed); ok {
			attrs["event_id"] = k.EventKey()
		}
		sc := span.SpanContext()
		ctx = WithEventContext(ctx, s.log, sc.TraceID(), sc.SpanID(), attrs)

		err := h(ctx, e)
		if err != nil {
			span.RecordError(err)
		}
		return err
	})
}
