// Package telemetry holds the OpenTelemetry instruments recorded by the
// workflow runner. Without a configured MeterProvider they are no-ops.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "promptflow/backend"

// Run outcomes.
const (
	OutcomeCompleted    = "completed"
	OutcomeNotFound     = "not_found"
	OutcomeFailed       = "failed"
	OutcomeDisconnected = "disconnected"
)

// Metrics records run and step counters.
type Metrics struct {
	runs  metric.Int64Counter
	steps metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	runs, err := meter.Int64Counter("promptflow.runs",
		metric.WithDescription("Workflow runs by outcome"))
	if err != nil {
		return nil, err
	}
	steps, err := meter.Int64Counter("promptflow.steps",
		metric.WithDescription("Executed steps by result kind"))
	if err != nil {
		return nil, err
	}
	return &Metrics{runs: runs, steps: steps}, nil
}

// Default creates Metrics on the global MeterProvider.
func Default() *Metrics {
	m, err := NewMetrics(otel.Meter(instrumentationName))
	if err != nil {
		otel.Handle(err)
		return &Metrics{}
	}
	return m
}

// RunFinished counts one run with its outcome.
func (m *Metrics) RunFinished(ctx context.Context, outcome string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// StepCompleted counts one executed step with its result kind.
func (m *Metrics) StepCompleted(ctx context.Context, kind string) {
	if m == nil || m.steps == nil {
		return
	}
	m.steps.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
