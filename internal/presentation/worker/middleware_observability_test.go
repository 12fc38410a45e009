package workerpresentation

import (
	"context"
	"errors"
	"testing"

	domoutbox "github.com/ZIKOpl/ZIKO-SHOP/internal/domain/outbox"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability/logctx"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type capturingLogger struct {
	fields []observability.Field
}

func (l *capturingLogger) With(fields ...observability.Field) observability.Logger {
	return &capturingLogger{fields: append(append([]observability.Field(nil), l.fields...), fields...)}
}
func (*capturingLogger) Debug(string, ...observability.Field) {}
func (*capturingLogger) Info(string, ...observability.Field)  {}
func (*capturingLogger) Warn(string, ...observability.Field)  {}
func (*capturingLogger) Error(string, ...observability.Field) {}

func (l *capturingLogger) field(key string) (any, bool) {
	for _, f := range l.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

type directSubscriber map[string]domoutbox.Handler

func (d directSubscriber) Subscribe(name string, h domoutbox.Handler) { d[name] = h }

type keyedEvent struct{ id string }

func (keyedEvent) EventName() string  { return "test.keyed" }
func (e keyedEvent) EventKey() string { return e.id }

type plainEvent struct{}

func (plainEvent) EventName() string { return "test.plain" }

func TestWithEventContext(t *testing.T) {
	base := &capturingLogger{}
	traceID := trace.TraceID{1}
	ctx := WithEventContext(context.Background(), base, traceID, trace.SpanID{}, map[string]string{
		"event_id": "order-1",
		"event":    "order.placed",
		"empty":    "",
	})

	got := logctx.From(ctx).(*capturingLogger)
	id, _ := got.field("event_id")
	require.Equal(t, "order-1", id)
	tid, ok := got.field("trace_id")
	require.True(t, ok)
	require.Equal(t, traceID.String(), tid)
	_, ok = got.field("span_id")
	require.False(t, ok)
	_, ok = got.field("empty")
	require.False(t, ok)
}

func TestWithEventContext_GeneratesEventID(t *testing.T) {
	ctx := WithEventContext(context.Background(), &capturingLogger{}, trace.TraceID{}, trace.SpanID{}, nil)
	id, ok := logctx.From(ctx).(*capturingLogger).field("event_id")
	require.True(t, ok)
	require.NotEmpty(t, id)
}

func TestSubscriber_InjectsEventLogger(t *testing.T) {
	inner := directSubscriber{}
	tel := &stubObservability{log: &capturingLogger{}}
	sub := Instrument(inner, tel)

	var seen *capturingLogger
	sub.Subscribe("test.keyed", func(ctx context.Context, _ domoutbox.Event) error {
		seen = logctx.From(ctx).(*capturingLogger)
		return errors.New("handler failed")
	})

	err := inner["test.keyed"](context.Background(), keyedEvent{id: "order-9"})
	require.EqualError(t, err, "handler failed")
	id, _ := seen.field("event_id")
	require.Equal(t, "order-9", id)
	name, _ := seen.field("event")
	require.Equal(t, "test.keyed", name)
	component, _ := seen.field("component")
	require.Equal(t, "event_worker", component)

	sub.Subscribe("test.plain", func(ctx context.Context, _ domoutbox.Event) error {
		seen = logctx.From(ctx).(*capturingLogger)
		return nil
	})
	require.NoError(t, inner["test.plain"](context.Background(), plainEvent{}))
	id, _ = seen.field("event_id")
	require.NotEmpty(t, id)
}

type stubObservability struct {
	log observability.Logger
}

func (s *stubObservability) Tracer() observability.Tracer   { return observability.NopTracer() }
func (s *stubObservability) Logger() observability.Logger   { return s.log }
func (s *stubObservability) Metrics() observability.Metrics { return observability.NopMetrics() }
