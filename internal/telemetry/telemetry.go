package telemetry

import (
	"context"
	"log/slog"

	"github.com/giobyte8/levelviews/internal/telemetry/metrics"
)

type Config struct {
	OtelEnabled bool

	// host:port of the OpenTelemetry collector gRPC receiver
	CollectorGrpcEndpoint string
}

type TelemetrySvc struct {
	metrics metrics.MetricsSvc
}

func NewTelemetrySvc(ctx context.Context, cfg Config) (*TelemetrySvc, error) {
	if !cfg.OtelEnabled {
		slog.Debug("OpenTelemetry disabled, metrics will be discarded")
		return NewNoopTelemetrySvc(), nil
	}

	metricsSvc, err := metrics.NewOtelMetricsSvc(ctx, cfg.CollectorGrpcEndpoint)
	if err != nil {
		return nil, err
	}

	return &TelemetrySvc{
		metrics: metricsSvc,
	}, nil
}

// NewNoopTelemetrySvc returns a telemetry service that records nothing.
func NewNoopTelemetrySvc() *TelemetrySvc {
	return &TelemetrySvc{
		metrics: metrics.NewNoopMetricsSvc(),
	}
}

func (t *TelemetrySvc) Metrics() metrics.MetricsSvc {
	return t.metrics
}

func (t *TelemetrySvc) Shutdown(ctx context.Context) error {
	return t.metrics.Shutdown(ctx)
}
