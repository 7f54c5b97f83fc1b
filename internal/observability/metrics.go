package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cukee_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cukee_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIInflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cukee_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	// Curation pipeline
	CurationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cukee_curation_outcomes_total",
			Help: "Terminal pipeline states by operation",
		},
		[]string{"operation", "state"},
	)

	CurationStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "cukee_curation_stage_duration_seconds",
			Help: "Time spent in each pipeline stage",
			// Generation dominates; retrieval and sanitizing sit at the low end.
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	RetrievalResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cukee_retrieval_results",
			Help:    "Number of items returned per retrieval",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
	)

	RetrievalFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cukee_retrieval_failures_total",
			Help: "Retrieval failures absorbed into empty results",
		},
		[]string{"cause"},
	)

	GuardrailDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cukee_guardrail_decisions_total",
			Help: "Guardrail outcomes: allowed, blocked, fail_open",
		},
		[]string{"decision"},
	)

	PersonaCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cukee_persona_cache_lookups_total",
			Help: "Persona cache lookups by result",
		},
		[]string{"backend", "result"},
	)

	// Inference
	InferenceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cukee_inference_requests_total",
			Help: "Upstream inference calls by model, operation and result",
		},
		[]string{"model", "op", "result"},
	)

	InferenceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cukee_inference_request_duration_seconds",
			Help:    "Upstream inference latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "op"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cukee_inference_breaker_state",
			Help: "Circuit breaker state per model (0=closed, 1=half-open, 2=open)",
		},
		[]string{"model"},
	)
)

func ObserveAPI(method, route, status string, d time.Duration) {
	APIRequests.WithLabelValues(method, route, status).Inc()
	APILatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func RecordOutcome(operation, state string) {
	CurationOutcomes.WithLabelValues(operation, state).Inc()
}

func ObserveStage(stage string, d time.Duration) {
	CurationStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func RecordRetrieval(n int) {
	RetrievalResults.Observe(float64(n))
}

func RecordRetrievalFailure(cause string) {
	RetrievalFailures.WithLabelValues(cause).Inc()
}

func RecordGuardrail(decision string) {
	GuardrailDecisions.WithLabelValues(decision).Inc()
}

func RecordCacheLookup(backend, result string) {
	PersonaCacheLookups.WithLabelValues(backend, result).Inc()
}

func ObserveInference(model, op string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	InferenceRequests.WithLabelValues(model, op, result).Inc()
	InferenceLatency.WithLabelValues(model, op).Observe(d.Seconds())
}

func SetBreakerState(model string, state int) {
	BreakerState.WithLabelValues(model).Set(float64(state))
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
