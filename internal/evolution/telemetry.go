package evolution

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// InstrumentationName is the name used for OTEL instrumentation.
	InstrumentationName = "github.com/fyrsmithlabs/patternd/internal/evolution"
)

// Metrics provides OpenTelemetry metrics for evolution runs.
type Metrics struct {
	// Counters
	runsTotal         metric.Int64Counter
	mergedTotal       metric.Int64Counter
	evictedTotal      metric.Int64Counter
	overCapacityTotal metric.Int64Counter

	// Histograms
	runDuration   metric.Float64Histogram
	stageDuration metric.Float64Histogram

	initialized bool
}

// NewMetrics creates a new Metrics instance with the provided meter.
// If meter is nil, uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.runsTotal, err = meter.Int64Counter(
		"evolution.runs.total",
		metric.WithDescription("Total number of evolution runs by result"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	m.mergedTotal, err = meter.Int64Counter(
		"evolution.patterns.merged.total",
		metric.WithDescription("Total number of patterns absorbed by deduplication"),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		return nil, err
	}

	m.evictedTotal, err = meter.Int64Counter(
		"evolution.patterns.evicted.total",
		metric.WithDescription("Total number of patterns removed by eviction"),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		return nil, err
	}

	m.overCapacityTotal, err = meter.Int64Counter(
		"evolution.over_capacity.total",
		metric.WithDescription("Runs that left a scope above capacity because of protected patterns"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	m.runDuration, err = meter.Float64Histogram(
		"evolution.run.duration.seconds",
		metric.WithDescription("Duration of a full evolution run in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}

	m.stageDuration, err = meter.Float64Histogram(
		"evolution.stage.duration.seconds",
		metric.WithDescription("Duration of one evolution stage in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordRun records the outcome of one run.
func (m *Metrics) RecordRun(ctx context.Context, scope, result string, rep *Report) {
	if m == nil || !m.initialized {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("result", result),
	)
	m.runsTotal.Add(ctx, 1, attrs)
	if rep == nil {
		return
	}
	scopeAttr := metric.WithAttributes(attribute.String("scope", scope))
	m.runDuration.Record(ctx, rep.Duration.Seconds(), scopeAttr)
	if rep.Merged > 0 {
		m.mergedTotal.Add(ctx, int64(rep.Merged), scopeAttr)
	}
	if rep.Evicted > 0 {
		m.evictedTotal.Add(ctx, int64(rep.Evicted), scopeAttr)
	}
	if rep.OverCapacity {
		m.overCapacityTotal.Add(ctx, 1, scopeAttr)
	}
}

// RecordStage records the duration of one stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil || !m.initialized {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// Tracer returns a tracer for the evolution package.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
