package llm

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hortator-ai/conclave/internal/telemetry"
)

// Prometheus metrics
var (
	llmRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_llm_requests_total",
			Help: "Chat completion invocations by model and final result",
		},
		[]string{"model", "result"},
	)
	llmAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_llm_attempts_total",
			Help: "HTTP attempts made against the chat completion API",
		},
		[]string{"model"},
	)
	llmRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_llm_retries_total",
			Help: "Retries scheduled after a retryable failure",
		},
		[]string{"model"},
	)
	llmTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_llm_tokens_total",
			Help: "Tokens reported by the upstream API by kind",
		},
		[]string{"model", "kind"},
	)
	llmCostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_llm_cost_usd_total",
			Help: "Estimated spend from the configured price map",
		},
		[]string{"model"},
	)
	llmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conclave_llm_invoke_duration_seconds",
			Help:    "Wall time of Invoke including backoff waits",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~200s
		},
		[]string{"model"},
	)
)

func init() {
	telemetry.Registry.MustRegister(llmRequestsTotal, llmAttemptsTotal, llmRetriesTotal, llmTokensTotal, llmCostTotal, llmDuration)
}
