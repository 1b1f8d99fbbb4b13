package duties

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ssvlabs/dvnode/observability"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const (
	observabilityComponentName      = "github.com/ssvlabs/dvnode/operator/duties"
	observabilityComponentNamespace = "dv.duty"
)

const (
	missedReasonConsensusTimeout  = "consensus_timeout"
	missedReasonSigningDeadline   = "signing_deadline"
	missedReasonSlashing          = "slashing_violation"
	missedReasonSuperseded        = "superseded"
	missedReasonRandaoUnavailable = "randao_unavailable"
	missedReasonError             = "error"
)

var (
	meter = otel.Meter(observabilityComponentName)

	transitionsCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "transitions"),
			metric.WithUnit("{transition}"),
			metric.WithDescription("number of duty runs entering each state")))

	missedCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "missed"),
			metric.WithUnit("{duty}"),
			metric.WithDescription("number of duties dropped without broadcasting a share")))

	runDurationHistogram = observability.NewMetric(
		meter.Float64Histogram(
			observability.InstrumentName(observabilityComponentNamespace, "duration"),
			metric.WithUnit("s"),
			metric.WithDescription("time from entering deciding to broadcasting the share"),
			metric.WithExplicitBucketBoundaries(observability.SecondsHistogramBuckets...)))

	slotDelayHistogram = observability.NewMetric(
		meter.Float64Histogram(
			observability.InstrumentName(observabilityComponentNamespace, "scheduler.slot_delay.duration"),
			metric.WithUnit("s"),
			metric.WithDescription("delay between a duty's service time and its execution"),
			metric.WithExplicitBucketBoundaries(observability.SecondsHistogramBuckets...)))

	executionsCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "scheduler.executions"),
			metric.WithUnit("{duty}"),
			metric.WithDescription("number of duties handed to the orchestrator by the scheduler")))
)

func recordTransition(ctx context.Context, kind types.DutyKind, state State) {
	observability.RecordInt64(ctx, transitionsCounter,
		observability.DutyKindAttribute(kind),
		observability.StateAttribute(state.String()))
}

func recordMissed(ctx context.Context, kind types.DutyKind, reason string) {
	observability.RecordInt64(ctx, missedCounter,
		observability.DutyKindAttribute(kind),
		observability.ReasonAttribute(reason))
}

func recordRunDuration(ctx context.Context, kind types.DutyKind, took time.Duration) {
	runDurationHistogram.Record(ctx, took.Seconds(), metric.WithAttributes(observability.DutyKindAttribute(kind)))
}

func recordExecution(ctx context.Context, kind types.DutyKind, delay time.Duration) {
	observability.RecordInt64(ctx, executionsCounter, observability.DutyKindAttribute(kind))
	slotDelayHistogram.Record(ctx, delay.Seconds(), metric.WithAttributes(observability.DutyKindAttribute(kind)))
}
