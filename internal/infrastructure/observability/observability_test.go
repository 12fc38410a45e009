package observability

import (
	"testing"

	"github.com/ZIKOpl/ZIKO-SHOP/internal/infrastructure/observability/prometrics"
	"github.com/ZIKOpl/ZIKO-SHOP/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackToNops(t *testing.T) {
	p := New(nil, nil, nil, nil)

	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Logger())
	require.NotNil(t, p.Metrics().Counter(observability.MUsecaseRequests))
	require.NotNil(t, p.Metrics().Histogram("missing"))
}

func TestFromRegistryExposesSpecs(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := FromRegistry(nil, nil, prometrics.New("shop", reg))

	p.Metrics().Counter(observability.MExternalRequests).Add(1,
		observability.L("peer", "discord"),
		observability.L("endpoint", "send"),
		observability.L("outcome", "success"),
	)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	require.Contains(t, names, "shop_external_requests_total")
}
