package graph

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetricsDuringRuns(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewPrometheusMetrics(registry)

	e, _ := New(fixedPlanner(), verdicts(false, true), WithMetrics(metrics))
	if _, err := e.Run(context.Background(), "", State{}); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("approved")); got != 1 {
		t.Errorf("approved runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.inflightRuns); got != 0 {
		t.Errorf("inflight = %v, want 0", got)
	}
	if got := testutil.CollectAndCount(metrics.stepLatency); got != 3 {
		t.Errorf("latency series = %d, want one per node", got)
	}

	sloppy := NodeFunc(func(context.Context, State) NodeResult {
		return NodeResult{Delta: SetFeedback(Feedback{})}
	})
	bad, _ := New(fixedPlanner(), sloppy, WithMetrics(metrics))
	if _, err := bad.Run(context.Background(), "", State{}); err == nil {
		t.Fatal("expected contract violation")
	}
	if got := testutil.ToFloat64(metrics.contractViol.WithLabelValues("reviewer")); got != 1 {
		t.Errorf("contract violations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
}

func TestPrometheusMetricsAbandoned(t *testing.T) {
	metrics := NewPrometheusMetrics(prometheus.NewRegistry())
	e, _ := New(fixedPlanner(), verdicts(), WithMetrics(metrics))

	for range e.Stream(context.Background(), "", State{}) {
		break
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("abandoned")); got != 1 {
		t.Errorf("abandoned runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.inflightRuns); got != 0 {
		t.Errorf("inflight = %v, want 0", got)
	}
}

func TestPrometheusMetricsBreakAfterEnd(t *testing.T) {
	metrics := NewPrometheusMetrics(prometheus.NewRegistry())
	e, _ := New(fixedPlanner(), verdicts(true), WithMetrics(metrics))

	for step := range e.Stream(context.Background(), "", State{}) {
		if step.Index == 5 {
			break
		}
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("approved")); got != 1 {
		t.Errorf("approved runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.runs.WithLabelValues("abandoned")); got != 0 {
		t.Errorf("abandoned runs = %v, want 0", got)
	}
	if got := testutil.ToFloat64(metrics.inflightRuns); got != 0 {
		t.Errorf("inflight = %v, want 0", got)
	}
}

func TestPrometheusMetricsDisable(t *testing.T) {
	metrics := NewPrometheusMetrics(prometheus.NewRegistry())
	metrics.Disable()
	metrics.RunStarted()
	if got := testutil.ToFloat64(metrics.inflightRuns); got != 0 {
		t.Errorf("disabled metrics recorded inflight = %v", got)
	}

	metrics.Enable()
	metrics.RunStarted()
	metrics.RunStarted()
	metrics.Reset()
	if got := testutil.ToFloat64(metrics.inflightRuns); got != 0 {
		t.Errorf("Reset left inflight = %v", got)
	}
}
