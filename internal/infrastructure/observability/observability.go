package observability

import (
	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/observability/prometrics"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
)

// Provider is the process-wide observability bundle handed to every use case.
type Provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

var _ observability.Observability = (*Provider)(nil)

// instruments resolves metric keys to registered collectors; unknown keys get nops.
type instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (in instruments) Counter(name observability.MetricKey) observability.Counter {
	if c := in.counters[name]; c != nil {
		return c
	}
	return observability.NopCounter()
}

func (in instruments) Histogram(name observability.MetricKey) observability.Histogram {
	if h := in.histograms[name]; h != nil {
		return h
	}
	return observability.NopHistogram()
}

// New assembles a Provider. Nil tracer or logger fall back to nops, and nil
// instruments are dropped so lookups never return a nil collector.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) *Provider {
	p := &Provider{
		tracer:  tracer,
		logger:  logger,
		metrics: observability.NopMetrics(),
	}
	if p.tracer == nil {
		p.tracer = observability.NopTracer()
	}
	if p.logger == nil {
		p.logger = observability.NopLogger()
	}
	if len(counters) > 0 || len(histograms) > 0 {
		p.metrics = instruments{
			counters:   compact(counters),
			histograms: compact(histograms),
		}
	}
	return p
}

// FromRegistry registers every shop metric on reg and assembles the provider.
func FromRegistry(tracer observability.Tracer, logger observability.Logger, reg prometrics.Registry) *Provider {
	counters, histograms := prometrics.RegisterAll(reg, observability.Specs)
	return New(tracer, logger, counters, histograms)
}

func compact[V comparable](in map[observability.MetricKey]V) map[observability.MetricKey]V {
	var zero V
	out := make(map[observability.MetricKey]V, len(in))
	for k, v := range in {
		if v != zero {
			out[k] = v
		}
	}
	return out
}

func (p *Provider) Tracer() observability.Tracer   { return p.tracer }
func (p *Provider) Logger() observability.Logger   { return p.logger }
func (p *Provider) Metrics() observability.Metrics { return p.metrics }
