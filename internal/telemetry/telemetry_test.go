package telemetry

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveModule("Negate", "executed", time.Millisecond)
	m.ObserveModule("Negate", "executed", time.Millisecond)
	m.ObserveSkip("up_to_date")
	m.ObserveRun(context.Background(), "succeeded", time.Second)
	m.ObserveLoop(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.executions.WithLabelValues("Negate", "executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skips.WithLabelValues("up_to_date")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("succeeded")))

	n, err := testutil.GatherAndCount(reg, "dataflow_loop_iterations")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveModule("x", "y", 0)
		m.ObserveSkip("x")
		m.ObserveLoop(1)
		m.ObserveRun(context.Background(), "x", 0)
	})
}

func TestTracerProviderLogsSpans(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tp := NewTracerProvider(logger)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "unit")
	span.End()

	assert.Contains(t, buf.String(), "span=unit")
}
