package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records engine activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	executions     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	skips          *prometheus.CounterVec
	runs           *prometheus.CounterVec
	loopIterations prometheus.Histogram

	otelOnce sync.Once
	runTime  metric.Float64Histogram
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		executions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflow_module_executions_total",
			Help: "Module executions by module type and result",
		}, []string{"module", "result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataflow_module_duration_seconds",
			Help:    "Time spent inside module execute calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"module"}),
		skips: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflow_module_skips_total",
			Help: "Modules in scope that did not execute, by reason",
		}, []string{"reason"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dataflow_runs_total",
			Help: "Finished runs by outcome",
		}, []string{"outcome"}),
		loopIterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataflow_loop_iterations",
			Help:    "Iterations per loop execution",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		}),
	}
}

// ObserveModule records one execute call.
func (m *Metrics) ObserveModule(moduleType, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(moduleType, result).Inc()
	m.duration.WithLabelValues(moduleType).Observe(d.Seconds())
}

// ObserveSkip records a skipped module.
func (m *Metrics) ObserveSkip(reason string) {
	if m == nil {
		return
	}
	m.skips.WithLabelValues(reason).Inc()
}

// ObserveLoop records the iteration count of one loop execution.
func (m *Metrics) ObserveLoop(iterations int) {
	if m == nil {
		return
	}
	m.loopIterations.Observe(float64(iterations))
}

// ObserveRun records a finished run on both the Prometheus collectors and
// the OpenTelemetry meter.
func (m *Metrics) ObserveRun(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()

	m.otelOnce.Do(func() {
		// A failed instrument leaves runTime nil; Prometheus still records.
		m.runTime, _ = otel.Meter(InstrumentationName).Float64Histogram("dataflow.run.duration",
			metric.WithDescription("Wall time of a run"),
			metric.WithUnit("s"),
		)
	})
	if m.runTime != nil {
		m.runTime.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
