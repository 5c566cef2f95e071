package analytics

import (
	"sort"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	domsvc "TaskStream/internal/domain/service"
	"TaskStream/internal/services/features"
	"TaskStream/internal/services/stats"
	"TaskStream/pkg/config"
)

// MetricsCalculator is stateless after construction and safe for concurrent use.
type MetricsCalculator struct {
	cfg       config.AnalyticsConfig
	level     float64
	validator *stats.Validator
	insights  *InsightGenerator
}

var _ domsvc.MetricsCalculator = (*MetricsCalculator)(nil)

// CalculatorOption configures MetricsCalculator.
type CalculatorOption func(*MetricsCalculator)

// WithConfidenceLevel overrides the configured interval level.
func WithConfidenceLevel(level float64) CalculatorOption {
	return func(c *MetricsCalculator) { c.level = level }
}

func NewMetricsCalculator(cfg config.AnalyticsConfig, opts ...CalculatorOption) (*MetricsCalculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.E(errs.KindConfiguration, "analytics.NewMetricsCalculator", err)
	}
	v, err := stats.NewValidator(
		stats.WithThreshold(cfg.StatisticalThreshold),
		stats.WithMinSampleSize(cfg.MinSampleSize),
		stats.WithLargeSampleCutoff(cfg.LargeSampleCutoff),
	)
	if err != nil {
		return nil, err
	}
	c := &MetricsCalculator{
		cfg:       cfg,
		level:     cfg.ConfidenceLevel,
		validator: v,
		insights:  NewInsightGenerator(cfg),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := stats.CheckLevel("analytics.NewMetricsCalculator", c.level); err != nil {
		return nil, err
	}
	return c, nil
}

func requireSeries(op string, s *models.MetricSeries) error {
	if s == nil {
		return errs.Validation(op, "series is nil")
	}
	if s.IsEmpty() {
		return errs.Validation(op, "series is empty")
	}
	return nil
}

// CalculateMetrics returns the sample mean of s and its confidence interval.
// metricType, when set, must match the series.
func (c *MetricsCalculator) CalculateMetrics(metricType string, s *models.MetricSeries) (float64, models.ConfidenceInterval, error) {
	return c.CalculateMetricsAt(metricType, s, c.level)
}

// CalculateMetricsAt is CalculateMetrics at an explicit confidence level.
func (c *MetricsCalculator) CalculateMetricsAt(metricType string, s *models.MetricSeries, level float64) (float64, models.ConfidenceInterval, error) {
	const op = "analytics.CalculateMetrics"
	if err := stats.CheckLevel(op, level); err != nil {
		return 0, models.ConfidenceInterval{}, err
	}
	if err := requireSeries(op, s); err != nil {
		return 0, models.ConfidenceInterval{}, err
	}
	if metricType != "" && metricType != s.MetricType() {
		return 0, models.ConfidenceInterval{}, errs.Validation(op, "metric type %q does not match series %q", metricType, s.MetricType())
	}
	mean, variance := features.Moments(s.Values())
	ci, err := c.validator.MeanInterval(mean, variance, s.Len(), level)
	if err != nil {
		return 0, models.ConfidenceInterval{}, err
	}
	return mean, ci, nil
}

// CalculateAggregatedMetrics buckets s into calendar windows of period. Buckets with
// no records are omitted.
func (c *MetricsCalculator) CalculateAggregatedMetrics(s *models.MetricSeries, period models.PeriodKind) ([]models.AggregationResult, error) {
	const op = "analytics.CalculateAggregatedMetrics"
	if !models.IsValidPeriod(period) {
		return nil, errs.Configuration(op, "unknown period %q", period)
	}
	if err := requireSeries(op, s); err != nil {
		return nil, err
	}

	type bucket struct {
		start, end time.Time
		values     []float64
	}
	var out []models.AggregationResult
	var cur *bucket
	flush := func() {
		if cur != nil {
			out = append(out, features.Summarize(period, cur.start, cur.end, cur.values))
		}
	}
	// Records are sorted, so buckets arrive in order and each is visited once.
	for _, r := range s.All() {
		start, end, err := features.AlignToPeriod(r.Timestamp, period)
		if err != nil {
			return nil, err
		}
		if cur == nil || !start.Equal(cur.start) {
			flush()
			cur = &bucket{start: start, end: end}
		}
		cur.values = append(cur.values, r.Value)
	}
	flush()
	return out, nil
}

// AggregateByTag runs CalculateAggregatedMetrics per value of tag, keyed by that value.
func (c *MetricsCalculator) AggregateByTag(s *models.MetricSeries, period models.PeriodKind, tag string) (map[string][]models.AggregationResult, error) {
	const op = "analytics.AggregateByTag"
	if err := requireSeries(op, s); err != nil {
		return nil, err
	}
	groups := s.GroupByTag(tag)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(map[string][]models.AggregationResult, len(groups))
	for _, k := range keys {
		res, err := c.CalculateAggregatedMetrics(groups[k], period)
		if err != nil {
			return nil, err
		}
		out[k] = res
	}
	return out, nil
}

// GenerateMetricInsights scores numeric entries of data against thresholds.
// Non-numeric entries are skipped.
func (c *MetricsCalculator) GenerateMetricInsights(data map[string]any) []models.Insight {
	return c.insights.FromMetrics(data)
}
