package observability

import (
	promclient "github.com/prometheus/client_golang/prometheus"
)

type metricsConfig struct {
	enabled bool
	// registerer defaults to the prometheus default registry.
	registerer promclient.Registerer
}

type Config struct {
	metrics metricsConfig
}

type Option func(*Config)

// WithMetrics exports metrics through prometheus.
func WithMetrics() Option {
	return func(cfg *Config) {
		cfg.metrics.enabled = true
	}
}

// WithMetricsRegisterer exports metrics into registerer. It implies WithMetrics.
func WithMetricsRegisterer(registerer promclient.Registerer) Option {
	return func(cfg *Config) {
		cfg.metrics.enabled = true
		cfg.metrics.registerer = registerer
	}
}
