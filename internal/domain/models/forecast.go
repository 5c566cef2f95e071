package models

import "time"

// ForecastPoint is a single projected value.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Significance is the outcome of a no-trend test.
type Significance struct {
	PValue        float64 `json:"p_value"`
	IsSignificant bool    `json:"is_significant"`
	SampleSize    int     `json:"sample_size"`
}

// PredictionResult is the output of a performance forecast. Cached results are
// shared between callers and must not be modified.
type PredictionResult struct {
	Predictions             []ForecastPoint      `json:"predictions"`
	ConfidenceIntervals     []ConfidenceInterval `json:"confidence_intervals"`
	Horizon                 HorizonKind          `json:"horizon"`
	ConfidenceLevel         float64              `json:"confidence_level"`
	StatisticalSignificance Significance         `json:"statistical_significance"`
	Model                   string               `json:"model"`
	RSquared                float64              `json:"r_squared"`
	LastObserved            float64              `json:"last_observed"`
	GeneratedAt             time.Time            `json:"generated_at"`
	CacheKey                string               `json:"cache_key"`
}

// ResourceAllocationForecast projects units needed for a resource.
type ResourceAllocationForecast struct {
	ResourceID          string               `json:"resource_id"`
	Horizon             HorizonKind          `json:"horizon"`
	AllocationForecast  []ForecastPoint      `json:"allocation_forecast"`
	ConfidenceIntervals []ConfidenceInterval `json:"confidence_intervals"`
	Model               string               `json:"model"`
	GeneratedAt         time.Time            `json:"generated_at"`
	CacheKey            string               `json:"cache_key"`
}

// BottleneckEntry covers one contiguous breach window.
type BottleneckEntry struct {
	ResourceID     string    `json:"resource_id"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	Samples        int       `json:"samples"`
	PeakValue      float64   `json:"peak_value"`
	SeverityScore  float64   `json:"severity_score"`
	Cause          string    `json:"cause"`
	Recommendation string    `json:"recommendation"`
}

// BottleneckReport lists breach windows ordered by start time.
type BottleneckReport struct {
	ResourceID  string            `json:"resource_id"`
	Threshold   float64           `json:"threshold"`
	Entries     []BottleneckEntry `json:"entries"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// HasBottlenecks reports whether any breach was found.
func (r *BottleneckReport) HasBottlenecks() bool { return r != nil && len(r.Entries) > 0 }

// InsightSignificance tags how urgent an insight is.
type InsightSignificance string

const (
	SignificanceHigh   InsightSignificance = "HIGH"
	SignificanceNormal InsightSignificance = "NORMAL"
)

// Insight is a human-readable note about one metric.
type Insight struct {
	MetricKey    string              `json:"metric_key"`
	CurrentValue float64             `json:"current_value"`
	Threshold    float64             `json:"threshold"`
	Deviation    float64             `json:"deviation"`
	Significance InsightSignificance `json:"significance"`
	Note         string              `json:"note"`
}

// PredictiveInsights bundles a forecast, its bottlenecks and the derived notes.
type PredictiveInsights struct {
	Forecast        *PredictionResult    `json:"forecast"`
	Intervals       []ConfidenceInterval `json:"intervals"`
	Significant     bool                 `json:"significant"`
	PredictedChange float64              `json:"predicted_change"`
	Bottlenecks     *BottleneckReport    `json:"bottlenecks"`
	Insights        []Insight            `json:"insights"`
}

// CacheEntry is a memoized forecast. Read-only after creation.
type CacheEntry struct {
	Key       string        `json:"key"`
	Result    any           `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry is logically gone at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// OptimizationReport is the outcome of a before/after utilization check.
type OptimizationReport struct {
	BaselineMean   float64 `json:"baseline_mean"`
	OptimizedMean  float64 `json:"optimized_mean"`
	Improvement    float64 `json:"improvement"`
	MinImprovement float64 `json:"min_improvement"`
	Passed         bool    `json:"passed"`
}

// BenchmarkReport summarizes latency samples in milliseconds.
type BenchmarkReport struct {
	Samples  int     `json:"samples"`
	MeanMs   float64 `json:"mean_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
	MaxMs    float64 `json:"max_ms"`
	BudgetMs float64 `json:"budget_ms"`
	Passed   bool    `json:"passed"`
}
