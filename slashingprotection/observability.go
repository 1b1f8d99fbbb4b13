package slashingprotection

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ssvlabs/dvnode/observability"
	"github.com/ssvlabs/dvnode/protocol/types"
)

const (
	observabilityComponentName      = "github.com/ssvlabs/dvnode/slashingprotection"
	observabilityComponentNamespace = "dv.slashing"
)

const (
	stageCheck  = "check"
	stageRecord = "record"
)

var (
	meter = otel.Meter(observabilityComponentName)

	violationsCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "violations"),
			metric.WithUnit("{violation}"),
			metric.WithDescription("number of signing requests refused as slashable")))
)

func recordViolation(ctx context.Context, kind types.DutyKind, stage string) {
	observability.RecordInt64(ctx, violationsCounter,
		observability.DutyKindAttribute(kind),
		attribute.String("dv.slashing.stage", stage))
}
