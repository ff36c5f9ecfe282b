package httpx

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// SetupPrometheusExporter creates a Prometheus exporter backed by reg and
// returns the meter provider and the /metrics handler. A nil reg uses the
// default registry.
func SetupPrometheusExporter(reg *prometheus.Registry) (*metric.MeterProvider, http.Handler, error) {
	var opts []otelprom.Option
	handler := promhttp.Handler()
	if reg != nil {
		opts = append(opts, otelprom.WithRegisterer(reg))
		handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	exporter, err := otelprom.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))

	return provider, handler, nil
}

// Shutdown gracefully shuts down the meter provider
func Shutdown(ctx context.Context, provider *metric.MeterProvider) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}
