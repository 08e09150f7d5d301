package graph

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus metrics for correction-loop runs.
//
// Metrics exposed (all namespaced with "reviewloop_"):
//
// 1. inflight_runs (gauge): Runs currently executing.
//
// 2. step_latency_ms (histogram): Node execution duration in milliseconds.
// Labels: node_id, status (success/error/invalid).
// Buckets: [1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000].
//
// 3. runs_total (counter): Finished runs.
// Labels: outcome (approved/budget_exhausted/failed/abandoned).
//
// 4. turns_per_run (histogram): TurnCount of each finished run.
//
// 5. contract_violations_total (counter): Updates rejected at merge.
// Labels: node_id.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := graph.NewPrometheusMetrics(registry)
//	engine, _ := graph.New(planner, reviewer, graph.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Safe for concurrent use by multiple runs.
type PrometheusMetrics struct {
	inflightRuns prometheus.Gauge

	stepLatency  *prometheus.HistogramVec
	turnsPerRun  prometheus.Histogram
	runs         *prometheus.CounterVec
	contractViol *prometheus.CounterVec

	enabled atomic.Bool
}

// NewPrometheusMetrics creates and registers all run metrics with the
// provided registry. A nil registry selects prometheus.DefaultRegisterer.
//
// Registering twice against the same registry panics, as promauto does.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{}
	pm.enabled.Store(true)

	pm.inflightRuns = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "reviewloop",
		Name:      "inflight_runs",
		Help:      "Number of correction-loop runs currently executing",
	})

	pm.stepLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "reviewloop",
		Name:      "step_latency_ms",
		Help:      "Node execution duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
	}, []string{"node_id", "status"}) // status: success, error, invalid

	pm.turnsPerRun = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reviewloop",
		Name:      "turns_per_run",
		Help:      "Supervisor turns consumed by each finished run",
		Buckets:   prometheus.LinearBuckets(1, 1, 12),
	})

	pm.runs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewloop",
		Name:      "runs_total",
		Help:      "Finished correction-loop runs by outcome",
	}, []string{"outcome"})

	pm.contractViol = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewloop",
		Name:      "contract_violations_total",
		Help:      "Node updates rejected because they break the state invariants",
	}, []string{"node_id"})

	return pm
}

// RecordStepLatency records the execution duration of one node.
func (pm *PrometheusMetrics) RecordStepLatency(nodeID string, latency time.Duration, status string) {
	if !pm.enabled.Load() {
		return
	}
	pm.stepLatency.WithLabelValues(nodeID, status).Observe(float64(latency.Milliseconds()))
}

// RunStarted increments the inflight gauge.
func (pm *PrometheusMetrics) RunStarted() {
	if !pm.enabled.Load() {
		return
	}
	pm.inflightRuns.Inc()
}

// RunFinished decrements the inflight gauge and records the outcome and the
// number of turns the run consumed.
func (pm *PrometheusMetrics) RunFinished(outcome string, turns int) {
	if !pm.enabled.Load() {
		return
	}
	pm.inflightRuns.Dec()
	pm.runs.WithLabelValues(outcome).Inc()
	pm.turnsPerRun.Observe(float64(turns))
}

// IncrementContractViolations counts an update rejected at merge.
func (pm *PrometheusMetrics) IncrementContractViolations(nodeID string) {
	if !pm.enabled.Load() {
		return
	}
	pm.contractViol.WithLabelValues(nodeID).Inc()
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.enabled.Store(false)
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.enabled.Store(true)
}

// Reset zeroes the inflight gauge. Counters and histograms are cumulative and
// keep their observations.
func (pm *PrometheusMetrics) Reset() {
	pm.inflightRuns.Set(0)
}
