// Package metrics owns the OpenTelemetry instruments recorded by the
// reconciliation engine and the Prometheus backed meter provider that
// exposes them.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/otlptranslator"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultBuckets provides a common set of histogram buckets in seconds for
// single provider requests.
var DefaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10} //nolint: gochecknoglobals

// RunBuckets are histogram buckets in seconds for whole reconciliation runs,
// which include rate limit cool-downs.
var RunBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600} //nolint: gochecknoglobals

// Request outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
	OutcomeThrottled = "throttled"
	OutcomeFailed    = "failed"
)

// Resource actions.
const (
	ActionCreated = "created"
	ActionRemoved = "removed"
	ActionFailed  = "failed"
)

// Metrics groups the instruments shared by the processor, reconcilers and runner.
type Metrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	resources       metric.Int64Counter
	runs            metric.Int64Counter
	runDuration     metric.Float64Histogram
}

// NewProvider creates a meter provider whose readings are exported through
// the given Prometheus registerer. Names are exported in the classic
// underscore form, e.g. filtersync_runs_total.
func NewProvider(reg prometheus.Registerer) (*sdkmetric.MeterProvider, error) {
	exp, err := otelprom.New(
		otelprom.WithRegisterer(reg),
		otelprom.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create otel exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)), nil
}

// New creates the instruments on the given meter provider.
func New(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("filtersync")

	requests, err := meter.Int64Counter("filtersync.provider.requests",
		metric.WithDescription("Provider write requests by operation and outcome."),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("could not create requests counter: %w", err)
	}
	requestDuration, err := meter.Float64Histogram("filtersync.provider.request.duration",
		metric.WithDescription("Provider write request latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DefaultBuckets...))
	if err != nil {
		return nil, fmt.Errorf("could not create request duration histogram: %w", err)
	}
	resources, err := meter.Int64Counter("filtersync.resources",
		metric.WithDescription("Remote lists, rules, deny and rewrite entries touched by reconciliation."),
		metric.WithUnit("{resource}"))
	if err != nil {
		return nil, fmt.Errorf("could not create resources counter: %w", err)
	}
	runs, err := meter.Int64Counter("filtersync.runs",
		metric.WithDescription("Reconciliation runs by provider and status."),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, fmt.Errorf("could not create runs counter: %w", err)
	}
	runDuration, err := meter.Float64Histogram("filtersync.run.duration",
		metric.WithDescription("Reconciliation run duration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(RunBuckets...))
	if err != nil {
		return nil, fmt.Errorf("could not create run duration histogram: %w", err)
	}

	return &Metrics{
		requests:        requests,
		requestDuration: requestDuration,
		resources:       resources,
		runs:            runs,
		runDuration:     runDuration,
	}, nil
}

// Noop returns instruments that record nothing.
func Noop() *Metrics {
	m, _ := New(noop.NewMeterProvider())

	return m
}

// RecordRequest records one provider request attempt.
func (m *Metrics) RecordRequest(ctx context.Context, op, outcome string, took time.Duration) {
	attrs := metric.WithAttributes(attribute.String("op", op), attribute.String("outcome", outcome))
	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, took.Seconds(), attrs)
}

// RecordResources records n remote resources of kind ("list", "rule", "deny",
// "rewrite") that were created, removed or failed.
func (m *Metrics) RecordResources(ctx context.Context, kind, action string, n int) {
	if n <= 0 {
		return
	}
	m.resources.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("kind", kind), attribute.String("action", action)))
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(ctx context.Context, provider, status string, took time.Duration) {
	attrs := metric.WithAttributes(attribute.String("provider", provider), attribute.String("status", status))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, took.Seconds(), attrs)
}
