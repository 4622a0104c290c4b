package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for entgate metrics
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Counters
	evaluationsTotal *prometheus.CounterVec
	gateFailures     *prometheus.CounterVec
	storeErrorsTotal *prometheus.CounterVec
	quotaChecks      *prometheus.CounterVec
	quotaConsumes    *prometheus.CounterVec

	// Histograms
	evaluationDuration *prometheus.HistogramVec
	batchSize          prometheus.Histogram
}

// Default histogram buckets for evaluation duration (in milliseconds)
var defaultBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of permission evaluations",
			},
			[]string{"product", "outcome"},
		),

		gateFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_failures_total",
				Help:      "Denials by failing gate and reason",
			},
			[]string{"gate", "reason"},
		),

		storeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Fail-closed denials caused by store errors, by gate",
			},
			[]string{"gate"},
		),

		quotaChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_checks_total",
				Help:      "Quota sufficiency checks",
			},
			[]string{"product", "sufficient"},
		),

		quotaConsumes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_consumes_total",
				Help:      "Quota consumption attempts",
			},
			[]string{"product", "sufficient"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_milliseconds",
				Help:      "Duration of permission evaluations in milliseconds",
				Buckets:   buckets,
			},
			[]string{"product"},
		),

		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_size",
				Help:      "Number of contexts per batch evaluation",
				Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),
	}

	registry.MustRegister(
		pm.evaluationsTotal,
		pm.gateFailures,
		pm.storeErrorsTotal,
		pm.quotaChecks,
		pm.quotaConsumes,
		pm.evaluationDuration,
		pm.batchSize,
	)

	promMetrics = pm
}

// RecordEvaluation records a completed permission evaluation.
// outcome is "allowed", "denied" or "store_error".
func RecordEvaluation(product, outcome string, durationMs float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.evaluationsTotal.WithLabelValues(product, outcome).Inc()
	promMetrics.evaluationDuration.WithLabelValues(product).Observe(durationMs)
}

// RecordGateFailure records which gate denied and why.
func RecordGateFailure(gate, reason string) {
	if promMetrics == nil {
		return
	}
	promMetrics.gateFailures.WithLabelValues(gate, reason).Inc()
}

// RecordStoreError records a fail-closed denial caused by a store error.
func RecordStoreError(gate string) {
	if promMetrics == nil {
		return
	}
	promMetrics.storeErrorsTotal.WithLabelValues(gate).Inc()
}

// RecordQuotaCheck records a quota sufficiency check.
func RecordQuotaCheck(product string, sufficient bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.quotaChecks.WithLabelValues(product, boolLabel(sufficient)).Inc()
}

// RecordQuotaConsume records a quota consumption attempt.
func RecordQuotaConsume(product string, sufficient bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.quotaConsumes.WithLabelValues(product, boolLabel(sufficient)).Inc()
}

// RecordBatch records the size of a batch evaluation.
func RecordBatch(size int) {
	if promMetrics == nil {
		return
	}
	promMetrics.batchSize.Observe(float64(size))
}

// PrometheusHandler returns the /metrics HTTP handler
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors)
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
