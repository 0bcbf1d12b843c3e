// Package observe provides application-wide observability primitives for
// roboto: OpenTelemetry metrics with a Prometheus exporter bridge, and HTTP
// middleware for the web server.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all roboto metrics.
const meterName = "github.com/MrWong99/roboto"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TasksEnqueued counts tasks added to the dispatcher queue. Use with
	// attribute.String("source", ...).
	TasksEnqueued metric.Int64Counter

	// TasksProcessed counts tasks taken off the queue by outcome. Use with
	// attribute.String("command", ...), attribute.String("status", ...)
	// where status is one of "ok", "error", "dropped", "invalid".
	TasksProcessed metric.Int64Counter

	// HandlerDuration tracks per-command handler execution time. Use with
	// attribute.String("command", ...).
	HandlerDuration metric.Float64Histogram

	// QueueDepth tracks the number of tasks currently waiting in the queue.
	QueueDepth metric.Int64UpDownCounter

	// ModelRebuilds counts text-model rebuilds. Use with
	// attribute.String("room", ...).
	ModelRebuilds metric.Int64Counter

	// Generations counts talk-command generation outcomes. Use with
	// attribute.String("status", ...) where status is "ok" or "failed".
	Generations metric.Int64Counter

	// MessagesRecorded counts accepted training messages. Use with
	// attribute.String("source", ...).
	MessagesRecorded metric.Int64Counter

	// HTTPRequestDuration tracks web-server request latency. Use with
	// attribute.String("method", ...), attribute.String("path", ...).
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Handlers
// that call external collaborators can take several seconds; the upper
// buckets capture queue-stalling calls.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TasksEnqueued, err = m.Int64Counter("roboto.tasks.enqueued",
		metric.WithDescription("Total tasks enqueued by source."),
	); err != nil {
		return nil, err
	}
	if met.TasksProcessed, err = m.Int64Counter("roboto.tasks.processed",
		metric.WithDescription("Total tasks processed by command and status."),
	); err != nil {
		return nil, err
	}
	if met.HandlerDuration, err = m.Float64Histogram("roboto.handler.duration",
		metric.WithDescription("Handler execution time by command."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("roboto.queue.depth",
		metric.WithDescription("Number of tasks waiting in the dispatcher queue."),
	); err != nil {
		return nil, err
	}
	if met.ModelRebuilds, err = m.Int64Counter("roboto.model.rebuilds",
		metric.WithDescription("Total text-model rebuilds by room."),
	); err != nil {
		return nil, err
	}
	if met.Generations, err = m.Int64Counter("roboto.generations",
		metric.WithDescription("Total talk generations by status."),
	); err != nil {
		return nil, err
	}
	if met.MessagesRecorded, err = m.Int64Counter("roboto.messages.recorded",
		metric.WithDescription("Total accepted training messages by source."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("roboto.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTaskProcessed records one task outcome with the standard attribute set.
func (m *Metrics) RecordTaskProcessed(ctx context.Context, cmd, status string) {
	m.TasksProcessed.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("command", cmd),
			attribute.String("status", status),
		),
	)
}

// RecordHandlerDuration records one handler execution time in seconds.
func (m *Metrics) RecordHandlerDuration(ctx context.Context, cmd string, seconds float64) {
	m.HandlerDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("command", cmd)),
	)
}
