package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Op tracks a single use case execution: its span, RED metrics and the
// closing "use_case_done" log line.
type Op struct {
	useCase string
	span    trace.Span
	logger  Logger
	start   time.Time
	req     Counter
	dur     Histogram

	outcome string
	status  string
	fields  []Field
}

// StartOp opens a span named spanName and returns an Op to be finished with End.
func StartOp(ctx context.Context, tel Observability, logger Logger, useCase, spanName string, attrs ...attribute.KeyValue) (context.Context, *Op) {
	attrs = append([]attribute.KeyValue{attribute.String("use_case", useCase)}, attrs...)
	ctx, span := TracerOf(tel).Start(ctx, spanName, attrs...)
	m := MetricsOf(tel)
	if logger == nil {
		logger = LoggerOf(tel)
	}
	return ctx, &Op{
		useCase: useCase,
		span:    span,
		logger:  logger.With(F("use_case", useCase)),
		start:   time.Now(),
		req:     m.Counter(MUsecaseRequests),
		dur:     m.Histogram(MUsecaseDuration),
		outcome: "success",
		status:  "OK",
	}
}

// Logger returns the op-scoped logger.
func (o *Op) Logger() Logger { return o.logger }

// Fail marks the op as failed with a machine-readable status.
func (o *Op) Fail(status string) {
	o.outcome, o.status = "error", status
}

// Status overrides the status text without changing the outcome.
func (o *Op) Status(status string) { o.status = status }

// Add appends fields to the closing log line.
func (o *Op) Add(fields ...Field) { o.fields = append(o.fields, fields...) }

// Event records a span event.
func (o *Op) Event(name string, attrs ...attribute.KeyValue) {
	if o.span != nil {
		o.span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// End closes the span, records metrics and writes the closing log line.
func (o *Op) End(err error) {
	if err != nil && o.outcome == "success" {
		o.outcome, o.status = "error", "FAILED"
	}
	lat := time.Since(o.start).Seconds()

	if o.span != nil {
		if err != nil {
			o.span.RecordError(err)
			o.span.SetStatus(codes.Error, o.status)
		} else {
			o.span.SetStatus(codes.Ok, o.status)
		}
		o.span.End()
	}

	o.req.Add(1, L("use_case", o.useCase), L("outcome", o.outcome))
	o.dur.Observe(lat, L("use_case", o.useCase))

	fields := append([]Field{
		F("outcome", o.outcome),
		F("status", o.status),
		F("latency_seconds", lat),
	}, o.fields...)
	if o.span != nil {
		if sc := o.span.SpanContext(); sc.IsValid() {
			fields = append(fields,
				F("trace_id", sc.TraceID().String()),
				F("span_id", sc.SpanID().String()),
			)
		}
	}
	if err != nil {
		fields = append(fields, F("error", err.Error()))
	}
	o.logger.Info("use_case_done", fields...)
}

// External records one call to an external peer (chat platform, broker, store).
func External(m Metrics, peer, endpoint string, start time.Time, err error) {
	if m == nil {
		m = NopMetrics()
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Counter(MExternalRequests).Add(1, L("peer", peer), L("endpoint", endpoint), L("outcome", outcome))
	m.Histogram(MExternalRequestDuration).Observe(time.Since(start).Seconds(), L("peer", peer), L("endpoint", endpoint))
}
