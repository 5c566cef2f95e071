package repository

import (
	"context"
	"time"

	"TaskStream/internal/domain/models"
)

// SeriesFilter selects records for one metric.
type SeriesFilter struct {
	MetricType string
	ResourceID string
	Team       string
	Project    string
	From       time.Time
	To         time.Time
	Limit      int
}

// SeriesStore provides read-only access to historical metric records.
type SeriesStore interface {
	LoadSeries(ctx context.Context, f SeriesFilter) (*models.MetricSeries, error)
	Health(ctx context.Context) error
	Close() error
}

// AlertPublisher forwards bottleneck reports to the monitoring sink.
type AlertPublisher interface {
	PublishBottlenecks(ctx context.Context, report *models.BottleneckReport) error
	Close() error
}

// Metrics records analytics-core counters and latencies.
type Metrics interface {
	RecordCacheHit(op string)
	RecordCacheMiss(op string)
	RecordComputation(op, model string)
	RecordFallback(op string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
