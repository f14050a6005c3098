package metrics

import (
	"context"
)

var _ MetricsSvc = (*NoopMetricsSvc)(nil)

// NoopMetricsSvc discards every metric. Used when OpenTelemetry
// export is disabled.
type NoopMetricsSvc struct{}

func NewNoopMetricsSvc() *NoopMetricsSvc {
	return &NoopMetricsSvc{}
}

func (n *NoopMetricsSvc) Increment(MetricName, map[string]string) {}

func (n *NoopMetricsSvc) Shutdown(context.Context) error {
	return nil
}
