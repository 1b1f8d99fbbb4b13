package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// SecondsHistogramBuckets are the bucket boundaries of every duration histogram.
var SecondsHistogramBuckets = []float64{0, 0.001, 0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10}

// Initialize installs the global meter provider. Metrics are exported through the default
// prometheus registry, which the node serves on /metrics.
func Initialize(appName, appVersion string, options ...Option) (shutdown func(context.Context) error, err error) {
	shutdown = func(ctx context.Context) error { return nil }

	var config Config
	for _, option := range options {
		option(&config)
	}

	resources, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(appName),
		semconv.ServiceVersion(appVersion),
	))
	if err != nil {
		err = errors.Join(errors.New("failed to instantiate observability resources"), err)
		return shutdown, err
	}

	if config.metrics.enabled {
		var exporterOptions []prometheus.Option
		if config.metrics.registerer != nil {
			exporterOptions = append(exporterOptions, prometheus.WithRegisterer(config.metrics.registerer))
		}
		promExporter, err := prometheus.New(exporterOptions...)
		if err != nil {
			err = errors.Join(errors.New("failed to instantiate metric Prometheus exporter"), err)
			return shutdown, err
		}
		meterProvider := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(resources),
			sdkmetric.WithReader(promExporter),
		)
		otel.SetMeterProvider(meterProvider)
		shutdown = meterProvider.Shutdown
	}

	return shutdown, nil
}

// NewMetric logs instrument creation failures and returns the (possibly no-op) instrument.
func NewMetric[T any](m T, err error) T {
	if err != nil {
		zap.L().Error("failed to instantiate metric", zap.Error(err))
	}
	return m
}

// InstrumentName builds a metric name under the given namespace.
func InstrumentName(namespace, name string) string {
	return fmt.Sprintf("%s.%s", namespace, name)
}

func DutyKindAttribute(kind types.DutyKind) attribute.KeyValue {
	return attribute.String("dv.duty.kind", kind.String())
}

func ReasonAttribute(reason string) attribute.KeyValue {
	return attribute.String("dv.reason", reason)
}

func StateAttribute(state string) attribute.KeyValue {
	return attribute.String("dv.duty.state", state)
}

// Uint64AttributeValue clamps the value into int64 range for OTel attributes.
func Uint64AttributeValue(value uint64) int64 {
	if value > uint64(1<<63-1) {
		return 1<<63 - 1
	}
	return int64(value) // #nosec G115 -- checked above
}

// RecordInt64 is a small helper for adding to a counter with attributes.
func RecordInt64(ctx context.Context, counter metric.Int64Counter, attrs ...attribute.KeyValue) {
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
