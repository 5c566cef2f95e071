package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cacheLookups *prometheus.CounterVec
	computations *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New registers collectors on the default registry.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers collectors on reg. Tests pass a fresh prometheus.NewRegistry().
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskstream_prediction_cache_lookups_total",
				Help: "Prediction cache lookups by result",
			},
			[]string{"op", "result"},
		),
		computations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskstream_forecast_computations_total",
				Help: "Forecast computations actually executed",
			},
			[]string{"op", "model"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskstream_forecast_fallbacks_total",
				Help: "Computations that fell back to the simpler model",
			},
			[]string{"op"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taskstream_analytics_errors_total",
				Help: "Analytics errors by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taskstream_analytics_operation_duration_seconds",
				Help:    "Duration of analytics operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCacheHit(op string) {
	r.cacheLookups.WithLabelValues(op, "hit").Inc()
}

func (r *Recorder) RecordCacheMiss(op string) {
	r.cacheLookups.WithLabelValues(op, "miss").Inc()
}

// RecordComputation counts a model fit that ran (cache miss path).
func (r *Recorder) RecordComputation(op, model string) {
	r.computations.WithLabelValues(op, model).Inc()
}

func (r *Recorder) RecordFallback(op string) {
	r.fallbacks.WithLabelValues(op).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordCacheHit(string) {}
func (Nop) RecordCacheMiss(string) {}
func (Nop) RecordComputation(string, string) {}
func (Nop) RecordFallback(string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLatency(string, float64) {}
