// Package metrics registers the Prometheus instrumentation surface for the
// workflow engine: step/workflow counters, bulkhead gauges, cache hit
// ratios, load-shedding decisions, and health aggregation scores.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config tunes the latency histogram bucket boundaries.
type Config struct {
	LatencyBuckets []float64
}

// DefaultConfig uses a bucket spread appropriate for sub-second to
// multi-second step executions.
func DefaultConfig() Config {
	return Config{LatencyBuckets: prometheus.ExponentialBuckets(0.01, 2, 14)}
}

// Registry wraps a dedicated Prometheus registry with every metric the
// engine emits, under namespace "workflowcore".
type Registry struct {
	registry *prometheus.Registry

	StepsTotal          *prometheus.CounterVec
	StepDuration        *prometheus.HistogramVec
	WorkflowsTotal      *prometheus.CounterVec
	WorkflowDuration    *prometheus.HistogramVec
	BulkheadActive      *prometheus.GaugeVec
	BulkheadQueued      *prometheus.GaugeVec
	BulkheadRejected    *prometheus.CounterVec
	CacheHits           *prometheus.CounterVec
	CacheMisses         *prometheus.CounterVec
	CacheEvictions      *prometheus.CounterVec
	LoadShedDecisions   *prometheus.CounterVec
	HealthScore         prometheus.Gauge
}

const namespace = "workflowcore"

// NewRegistry builds and registers every metric on a fresh registry.
func NewRegistry(cfg Config) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		StepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "steps_total",
			Help: "Total steps dispatched, labeled by task_type and outcome.",
		}, []string{"task_type", "outcome"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "step_duration_seconds",
			Help: "Step execution latency in seconds.", Buckets: cfg.LatencyBuckets,
		}, []string{"task_type"}),
		WorkflowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "workflows_total",
			Help: "Total workflows run to a terminal state, labeled by outcome.",
		}, []string{"outcome"}),
		WorkflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "workflow", Name: "workflow_duration_seconds",
			Help: "Workflow end-to-end latency in seconds.", Buckets: cfg.LatencyBuckets,
		}, []string{"outcome"}),
		BulkheadActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bulkhead", Name: "active",
			Help: "Currently active permits, labeled by bulkhead name.",
		}, []string{"name"}),
		BulkheadQueued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "bulkhead", Name: "queued",
			Help: "Currently queued waiters, labeled by bulkhead name.",
		}, []string{"name"}),
		BulkheadRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bulkhead", Name: "rejected_total",
			Help: "Requests rejected or timed out, labeled by bulkhead name and reason.",
		}, []string{"name", "reason"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Cache hits, labeled by cache name.",
		}, []string{"cache"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Cache misses, labeled by cache name.",
		}, []string{"cache"}),
		CacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evictions_total",
			Help: "Cache evictions, labeled by cache name.",
		}, []string{"cache"}),
		LoadShedDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "loadshed", Name: "decisions_total",
			Help: "Admission decisions, labeled by priority and outcome (admitted/shed).",
		}, []string{"priority", "outcome"}),
		HealthScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "health", Name: "composite_score",
			Help: "Current weighted composite health score (0.0-1.0).",
		}),
	}

	reg.MustRegister(
		r.StepsTotal, r.StepDuration, r.WorkflowsTotal, r.WorkflowDuration,
		r.BulkheadActive, r.BulkheadQueued, r.BulkheadRejected,
		r.CacheHits, r.CacheMisses, r.CacheEvictions,
		r.LoadShedDecisions, r.HealthScore,
	)
	return r
}

// Handler returns an http.Handler serving this registry in the Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
