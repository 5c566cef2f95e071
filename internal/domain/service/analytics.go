package service

import (
	"context"
	"iter"

	"TaskStream/internal/domain/models"
)

// MetricsCalculator computes point, rolling and calendar-bucketed metrics.
type MetricsCalculator interface {
	CalculateMetrics(metricType string, s *models.MetricSeries) (float64, models.ConfidenceInterval, error)
	CalculateRollingMetrics(s *models.MetricSeries, window string) (iter.Seq[models.AggregationResult], error)
	CalculateAggregatedMetrics(s *models.MetricSeries, period models.PeriodKind) ([]models.AggregationResult, error)
	GenerateMetricInsights(data map[string]any) []models.Insight
}

// ForecastEngine produces cached, statistically validated forecasts.
type ForecastEngine interface {
	PredictPerformance(ctx context.Context, data *models.MetricSeries, horizon models.HorizonKind, level float64) (*models.PredictionResult, error)
	PredictResourceAllocation(ctx context.Context, data *models.MetricSeries, horizon models.HorizonKind, params map[string]any) (*models.ResourceAllocationForecast, error)
	PredictBottlenecks(data *models.MetricSeries) (*models.BottleneckReport, error)
	GeneratePredictiveInsights(ctx context.Context, data *models.MetricSeries) (*models.PredictiveInsights, error)
	GetConfidenceIntervals(r *models.PredictionResult) []models.ConfidenceInterval
	ValidateStatisticalSignificance(r *models.PredictionResult) bool
}

// InsightGenerator turns metrics and forecasts into ordered notes.
type InsightGenerator interface {
	FromMetrics(data map[string]any) []models.Insight
	FromForecast(r *models.PredictionResult, significant bool, bottlenecks *models.BottleneckReport) []models.Insight
}
