package observability

import (
	"context"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ssvlabs/dvnode/protocol/types"
)

func TestInitialize(t *testing.T) {
	registry := promclient.NewRegistry()
	shutdown, err := Initialize("dvnode", "test", WithMetricsRegisterer(registry))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, shutdown(context.Background())) })

	counter := NewMetric(otel.Meter("test").Int64Counter(
		InstrumentName("dv.test", "events"),
		metric.WithUnit("{event}")))
	RecordInt64(context.Background(), counter, DutyKindAttribute(types.KindProposal))

	families, err := registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, family := range families {
		names = append(names, family.GetName())
	}
	require.Contains(t, names, "dv_test_events_total")
}

func TestInitializeWithoutMetrics(t *testing.T) {
	shutdown, err := Initialize("dvnode", "test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestAttributes(t *testing.T) {
	require.Equal(t, "attestation", DutyKindAttribute(types.KindAttestation).Value.AsString())
	require.Equal(t, "dv.duty.missed", InstrumentName("dv.duty", "missed"))
	require.EqualValues(t, 1<<63-1, Uint64AttributeValue(^uint64(0)))
	require.EqualValues(t, 5, Uint64AttributeValue(5))
}
