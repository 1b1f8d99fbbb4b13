package network

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ssvlabs/dvnode/observability"
)

const (
	observabilityComponentName      = "github.com/ssvlabs/dvnode/network"
	observabilityComponentNamespace = "dv.network"
)

var (
	meter = otel.Meter(observabilityComponentName)

	messagesReceivedCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "messages.received"),
			metric.WithUnit("{message}"),
			metric.WithDescription("number of messages received from co-validators")))

	messagesRejectedCounter = observability.NewMetric(
		meter.Int64Counter(
			observability.InstrumentName(observabilityComponentNamespace, "messages.rejected"),
			metric.WithUnit("{message}"),
			metric.WithDescription("number of inbound messages dropped as invalid")))
)

func messageTypeAttribute(t MessageType) attribute.KeyValue {
	return attribute.String("dv.network.message.type", t.String())
}

func recordReceived(ctx context.Context, t MessageType) {
	observability.RecordInt64(ctx, messagesReceivedCounter, messageTypeAttribute(t))
}

func recordRejected(ctx context.Context, t MessageType) {
	observability.RecordInt64(ctx, messagesRejectedCounter, messageTypeAttribute(t))
}
