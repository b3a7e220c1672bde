package embedding

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hortator-ai/conclave/internal/telemetry"
)

var (
	embedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conclave_embedding_requests_total",
			Help: "Embedding requests sent upstream by result",
		},
		[]string{"result"},
	)
	embedCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conclave_embedding_cache_hits_total",
		Help: "Embeddings served from the local cache",
	})
	embedCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "conclave_embedding_cache_misses_total",
		Help: "Embedding cache lookups that went upstream",
	})
)

func init() {
	telemetry.Registry.MustRegister(embedRequestsTotal, embedCacheHits, embedCacheMisses)
}
