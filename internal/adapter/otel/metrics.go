// Package otel provides OpenTelemetry metric instruments for the sync engine.
// Exporter wiring is left to the host process; instruments bind to the global
// meter provider.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "goalpost"

// Metrics holds all goalpost metric instruments.
type Metrics struct {
	EntriesEnqueued  metric.Int64Counter
	EntriesClaimed   metric.Int64Counter
	EntriesSucceeded metric.Int64Counter
	EntriesFailed    metric.Int64Counter
	BatchesSent      metric.Int64Counter
	BatchDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EntriesEnqueued, err = meter.Int64Counter("goalpost.queue.enqueued",
		metric.WithDescription("Number of queue entries appended"))
	if err != nil {
		return nil, err
	}

	m.EntriesClaimed, err = meter.Int64Counter("goalpost.queue.claimed",
		metric.WithDescription("Number of queue entries claimed by the processor"))
	if err != nil {
		return nil, err
	}

	m.EntriesSucceeded, err = meter.Int64Counter("goalpost.queue.succeeded",
		metric.WithDescription("Number of queue entries confirmed by LinkHub"))
	if err != nil {
		return nil, err
	}

	m.EntriesFailed, err = meter.Int64Counter("goalpost.queue.failed",
		metric.WithDescription("Number of queue entries that ended in failure"))
	if err != nil {
		return nil, err
	}

	m.BatchesSent, err = meter.Int64Counter("goalpost.batches.sent",
		metric.WithDescription("Number of batch requests sent to the ingest endpoint"))
	if err != nil {
		return nil, err
	}

	m.BatchDuration, err = meter.Float64Histogram("goalpost.batch.duration_seconds",
		metric.WithDescription("Batch delivery duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
