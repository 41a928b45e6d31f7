// Package observe provides the observability primitives shared by the
// index session, the CLI, and the HTTP server: OpenTelemetry metrics with a
// Prometheus bridge, HTTP middleware, and slog logger construction.
//
// Tests should use [NewMetrics] with their own [metric.MeterProvider] to
// avoid cross-test pollution; production code uses [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all cstudio metrics.
const meterName = "github.com/aidanlsb/cstudio"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// BuildDuration tracks full index build latency. Use with attribute:
	//   attribute.String("status", "swapped"|"superseded"|"failed")
	BuildDuration metric.Float64Histogram

	// Documents counts documents processed by full builds. Use with attribute:
	//   attribute.String("status", "indexed"|"failed")
	Documents metric.Int64Counter

	// RebuildOne counts single-document rebuilds. Use with attribute:
	//   attribute.String("op", "changed"|"removed")
	RebuildOne metric.Int64Counter

	// Superseded counts full builds whose result was discarded because a
	// newer build was requested.
	Superseded metric.Int64Counter

	// QueryDuration tracks query latency. Use with attribute:
	//   attribute.String("op", "search"|"dependencies"|"analytics"|"validate")
	QueryDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries (seconds) for in-memory queries
// and builds over small YAML trees.
var latencyBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BuildDuration, err = m.Float64Histogram("cstudio.index.build.duration",
		metric.WithDescription("Latency of full index builds."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Documents, err = m.Int64Counter("cstudio.index.documents",
		metric.WithDescription("Documents processed by full builds, by status."),
	); err != nil {
		return nil, err
	}
	if met.RebuildOne, err = m.Int64Counter("cstudio.index.rebuild_one",
		metric.WithDescription("Single-document rebuilds, by operation."),
	); err != nil {
		return nil, err
	}
	if met.Superseded, err = m.Int64Counter("cstudio.index.superseded",
		metric.WithDescription("Full builds discarded in favour of a newer build."),
	); err != nil {
		return nil, err
	}
	if met.QueryDuration, err = m.Float64Histogram("cstudio.query.duration",
		metric.WithDescription("Latency of index queries, by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("cstudio.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, created on
// first call from [otel.GetMeterProvider]. Install a provider with
// [InitProvider] before the first call for the metrics to be exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordBuild records one full build.
func (m *Metrics) RecordBuild(ctx context.Context, d time.Duration, status string, indexed, failed int) {
	m.BuildDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("status", status)))
	if indexed > 0 {
		m.Documents.Add(ctx, int64(indexed),
			metric.WithAttributes(attribute.String("status", "indexed")))
	}
	if failed > 0 {
		m.Documents.Add(ctx, int64(failed),
			metric.WithAttributes(attribute.String("status", "failed")))
	}
	if status == "superseded" {
		m.Superseded.Add(ctx, 1)
	}
}

// RecordRebuildOne records one single-document rebuild.
func (m *Metrics) RecordRebuildOne(ctx context.Context, op string) {
	m.RebuildOne.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordQuery records the latency of one query.
func (m *Metrics) RecordQuery(ctx context.Context, op string, d time.Duration) {
	m.QueryDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("op", op)))
}
