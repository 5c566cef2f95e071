package models

import "time"

// MetricsSummary is the point estimate for one loaded series.
type MetricsSummary struct {
	Metric             string             `json:"metric"`
	ResourceID         string             `json:"resource_id,omitempty"`
	Samples            int                `json:"samples"`
	From               time.Time          `json:"from"`
	To                 time.Time          `json:"to"`
	Mean               float64            `json:"mean"`
	ConfidenceLevel    float64            `json:"confidence_level"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	Insights           []Insight          `json:"insights,omitempty"`
}

// RollingMetrics lists one aggregation per record over a trailing window.
type RollingMetrics struct {
	Metric  string              `json:"metric"`
	Window  string              `json:"window"`
	Results []AggregationResult `json:"results"`
}

// AggregatedMetrics holds calendar buckets, optionally split by a tag.
type AggregatedMetrics struct {
	Metric  string                         `json:"metric"`
	Period  PeriodKind                     `json:"period"`
	GroupBy string                         `json:"group_by,omitempty"`
	Buckets []AggregationResult            `json:"buckets,omitempty"`
	Groups  map[string][]AggregationResult `json:"groups,omitempty"`
}

// BottleneckScan is a bottleneck report plus whether it was forwarded as alerts.
type BottleneckScan struct {
	Report    *BottleneckReport `json:"report"`
	Published bool              `json:"published"`
}

// Dashboard gathers the independent analytics views of one series. Sections that
// failed are listed in Errors and left empty.
type Dashboard struct {
	Metric     string              `json:"metric"`
	ResourceID string              `json:"resource_id,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
	Summary    *MetricsSummary     `json:"summary,omitempty"`
	Daily      []AggregationResult `json:"daily,omitempty"`
	Forecast   *PredictionResult   `json:"forecast,omitempty"`
	Insights   *PredictiveInsights `json:"insights,omitempty"`
	Errors     map[string]string   `json:"errors,omitempty"`
}
