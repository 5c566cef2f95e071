package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskstream",
			Subsystem: "api",
			Name:      "endpoint_latency_seconds",
			Help:      "Latency of analytics endpoints",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskstream",
			Subsystem: "api",
			Name:      "endpoint_errors_total",
			Help:      "Errors by analytics endpoint and error kind",
		},
		[]string{"endpoint", "kind"},
	)

	ResponseCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskstream",
			Subsystem: "api",
			Name:      "response_cache_hits_total",
			Help:      "Serialized responses served from the response cache",
		},
		[]string{"endpoint"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskstream",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-client limiter",
		},
		[]string{"endpoint"},
	)
)

// Register adds the endpoint collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors, ResponseCacheHits, RateLimited)
	})
}
