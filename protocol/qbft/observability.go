package qbft

import (
	"context"
	"time"

	specqbft "github.com/ssvlabs/ssv-spec/qbft"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ssvlabs/dvnode/observability"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const (
	observabilityComponentName      = "github.com/ssvlabs/dvnode/protocol/qbft"
	observabilityComponentNamespace = "dv.consensus"
)

var (
	meter = otel.Meter(observabilityComponentName)

	decidedCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "decided"),
			metric.WithUnit("{instance}"),
			metric.WithDescription("number of consensus instances that decided")))

	failedCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "failed"),
			metric.WithUnit("{instance}"),
			metric.WithDescription("number of consensus instances that ended without a decision")))

	roundTimeoutsCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "round_timeouts"),
			metric.WithUnit("{round}"),
			metric.WithDescription("number of rounds that timed out")))

	decideDurationHistogram = observability.NewMetric(
		meter.Float64Histogram(
			observability.InstrumentName(observabilityComponentNamespace, "duration"),
			metric.WithUnit("s"),
			metric.WithDescription("time from instance start to decision"),
			metric.WithExplicitBucketBoundaries(observability.SecondsHistogramBuckets...)))
)

func roundAttribute(round specqbft.Round) attribute.KeyValue {
	return attribute.Int64("dv.consensus.round", int64(round))
}

func recordDecided(ctx context.Context, kind types.DutyKind, round specqbft.Round, took time.Duration) {
	attrs := metric.WithAttributes(observability.DutyKindAttribute(kind), roundAttribute(round))
	decidedCounter.Add(ctx, 1, attrs)
	decideDurationHistogram.Record(ctx, took.Seconds(), attrs)
}

func recordFailed(ctx context.Context, kind types.DutyKind) {
	observability.RecordInt64(ctx, failedCounter, observability.DutyKindAttribute(kind))
}

func recordRoundTimeout(ctx context.Context, kind types.DutyKind) {
	observability.RecordInt64(ctx, roundTimeoutsCounter, observability.DutyKindAttribute(kind))
}
