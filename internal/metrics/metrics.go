// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts completed requests by caller shape and outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llmgate",
		Name:      "requests_total",
		Help:      "Completed requests by shape and outcome.",
	}, []string{"shape", "outcome"})

	// UpstreamLatency observes time to the first upstream response byte.
	UpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "llmgate",
		Name:      "upstream_first_byte_seconds",
		Help:      "Latency until the upstream response headers arrive.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	// StreamedChunks counts chunks delivered to clients by shape.
	StreamedChunks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llmgate",
		Name:      "streamed_chunks_total",
		Help:      "Chunks written to streaming responses.",
	}, []string{"shape"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
