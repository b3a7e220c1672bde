package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hortator-ai/conclave/internal/telemetry"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_http_requests_total",
			Help: "API requests by method, route and status code",
		},
		[]string{"method", "route", "code"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conclave_http_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	rateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conclave_http_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter",
	})
)

func init() {
	telemetry.Registry.MustRegister(httpRequestsTotal, httpRequestDuration, rateLimitedTotal)
}
