package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taskpilot"

// Metrics holds all TaskPilot metric instruments.
type Metrics struct {
	OptimizationsRun    metric.Int64Counter
	OptimizationsFailed metric.Int64Counter
	EntriesBackfilled   metric.Int64Counter
	OverlayCacheHits    metric.Int64Counter
	OverlayCacheMisses  metric.Int64Counter
	OracleDuration      metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.OptimizationsRun, err = meter.Int64Counter("taskpilot.optimizations.run",
		metric.WithDescription("Number of optimization passes completed"))
	if err != nil {
		return nil, err
	}

	m.OptimizationsFailed, err = meter.Int64Counter("taskpilot.optimizations.failed",
		metric.WithDescription("Number of optimization passes that failed"))
	if err != nil {
		return nil, err
	}

	m.EntriesBackfilled, err = meter.Int64Counter("taskpilot.entries.backfilled",
		metric.WithDescription("Number of overlay entries synthesized for oracle omissions"))
	if err != nil {
		return nil, err
	}

	m.OverlayCacheHits, err = meter.Int64Counter("taskpilot.overlay_cache.hits",
		metric.WithDescription("Optimization record reads served from cache"))
	if err != nil {
		return nil, err
	}

	m.OverlayCacheMisses, err = meter.Int64Counter("taskpilot.overlay_cache.misses",
		metric.WithDescription("Optimization record reads that fell through to the database"))
	if err != nil {
		return nil, err
	}

	m.OracleDuration, err = meter.Float64Histogram("taskpilot.oracle.duration_seconds",
		metric.WithDescription("Oracle call duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
