package combiner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ssvlabs/dvnode/observability"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const (
	observabilityComponentName      = "github.com/ssvlabs/dvnode/combiner"
	observabilityComponentNamespace = "dv.combiner"
)

var (
	meter = otel.Meter(observabilityComponentName)

	combinedCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "combined"),
			metric.WithUnit("{signature}"),
			metric.WithDescription("number of signatures combined and delivered")))

	staleRootsCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "stale_roots"),
			metric.WithUnit("{root}"),
			metric.WithDescription("number of signing roots that stayed below threshold past the staleness limit")))

	invalidSharesCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "invalid_shares"),
			metric.WithUnit("{share}"),
			metric.WithDescription("number of signature shares that failed verification")))

	deliveryDurationHistogram = observability.NewMetric(
		meter.Float64Histogram(
			observability.InstrumentName(observabilityComponentNamespace, "delivery.duration"),
			metric.WithUnit("s"),
			metric.WithDescription("time to deliver a combined object to its sink"),
			metric.WithExplicitBucketBoundaries(observability.SecondsHistogramBuckets...)))
)

func recordCombined(ctx context.Context, kind types.DutyKind) {
	observability.RecordInt64(ctx, combinedCounter, observability.DutyKindAttribute(kind))
}

func recordStaleRoot(ctx context.Context, kind types.DutyKind) {
	observability.RecordInt64(ctx, staleRootsCounter, observability.DutyKindAttribute(kind))
}

func recordInvalidShare(kind types.DutyKind) {
	observability.RecordInt64(context.Background(), invalidSharesCounter, observability.DutyKindAttribute(kind))
}

func recordDelivery(ctx context.Context, kind types.DutyKind, took time.Duration) {
	deliveryDurationHistogram.Record(ctx, took.Seconds(), metric.WithAttributes(observability.DutyKindAttribute(kind)))
}
