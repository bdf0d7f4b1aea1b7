package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	units    metric.Int64Counter
	retries  metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics() metrics {
	var m metrics
	var err error

	m.units, err = meter.Int64Counter(
		"catalog.pipeline.units",
		metric.WithDescription("Units of work by kind and final state."),
	)
	if err != nil {
		slog.Warn("failed to create units counter", "err", err)
	}
	m.retries, err = meter.Int64Counter(
		"catalog.pipeline.retries",
		metric.WithDescription("Attempts repeated after a transport failure."),
	)
	if err != nil {
		slog.Warn("failed to create retries counter", "err", err)
	}
	m.duration, err = meter.Float64Histogram(
		"catalog.pipeline.unit.duration",
		metric.WithDescription("Time from a unit starting to finishing."),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Warn("failed to create duration histogram", "err", err)
	}
	return m
}

func (m metrics) recordState(ctx context.Context, kind Kind, state State) {
	if m.units == nil {
		return
	}
	m.units.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("state", string(state)),
	))
}

func (m metrics) recordRetry(ctx context.Context, kind Kind) {
	if m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
}

func (m metrics) recordDuration(ctx context.Context, kind Kind, d time.Duration) {
	if m.duration == nil || d == 0 {
		return
	}
	m.duration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", string(kind))))
}
