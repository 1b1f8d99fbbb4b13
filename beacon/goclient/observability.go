package goclient

import (
	"context"
	"errors"
	"time"

	eth2api "github.com/attestantio/go-eth2-client/api"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/observability"
)

const (
	observabilityName      = "github.com/ssvlabs/dvnode/beacon/goclient"
	observabilityNamespace = "dv.cl"
)

var (
	meter = otel.Meter(observabilityName)

	requestDurationHistogram = observability.NewMetric(
		meter.Float64Histogram(
			observability.InstrumentName(observabilityNamespace, "request.duration"),
			metric.WithUnit("s"),
			metric.WithDescription("consensus client request duration in seconds"),
			metric.WithExplicitBucketBoundaries(observability.SecondsHistogramBuckets...)))
)

func recordRequest(
	ctx context.Context,
	logger *zap.Logger,
	routeName, clientAddr, httpMethod string,
	duration time.Duration,
	err error,
) {
	// Only errored or slow requests are logged, there are too many to log them all.
	if err != nil || duration > 100*time.Millisecond {
		logger.Debug("CL request done",
			zap.String("client_addr", clientAddr),
			zap.String("route_name", routeName),
			zap.String("http_method", httpMethod),
			zap.Bool("success", err == nil),
			zap.Error(err),
			fields.Took(duration),
		)
	}

	attr := []attribute.KeyValue{
		semconv.ServerAddress(clientAddr),
		semconv.HTTPRequestMethodKey.String(httpMethod),
		attribute.String("http.route_name", routeName),
	}
	if err != nil {
		// 0 signifies an error without an api status code
		errCode := 0
		var apiErr *eth2api.Error
		if errors.As(err, &apiErr) {
			errCode = apiErr.StatusCode
		}
		attr = append(attr, attribute.Int("http.response.error_status_code", errCode))
	}
	requestDurationHistogram.Record(ctx, duration.Seconds(), metric.WithAttributes(attr...))
}
