package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hortator-ai/conclave/internal/telemetry"
)

// Prometheus metrics
var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_operations_total",
			Help: "Coordination operations by operation, backend and result",
		},
		[]string{"operation", "backend", "result"},
	)
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conclave_operation_duration_seconds",
			Help:    "Latency of coordination operations, including embedding and model calls",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		},
		[]string{"operation", "backend"},
	)
	mirrorFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_mirror_failures_total",
			Help: "Ledger writes that could not be copied into the vector index",
		},
		[]string{"kind"},
	)
	activityDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conclave_activity_dropped_total",
			Help: "Activity entries that failed to persist",
		},
	)
)

func init() {
	telemetry.Registry.MustRegister(operationsTotal, operationDuration, mirrorFailuresTotal, activityDroppedTotal)
}
