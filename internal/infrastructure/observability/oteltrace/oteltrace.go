package oteltrace

import (
	"context"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type tracer struct{ t trace.Tracer }

// New returns a tracer backed by the global OTel provider. Spans are dropped
// unless telemetry.SetupTracer installed an exporting provider.
func New(name string) observability.Tracer {
	if name == "" {
		name = "shop"
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
