package models

import (
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"time"

	"TaskStream/internal/domain/errs"
)

// MetricRecord is a single observation. Treat as immutable once created.
type MetricRecord struct {
	Timestamp  time.Time         `json:"timestamp"`
	MetricType string            `json:"metric_type"`
	Value      float64           `json:"value"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// NewMetricRecord copies tags so later mutation by the caller is not observed.
func NewMetricRecord(ts time.Time, metricType string, value float64, tags map[string]string) MetricRecord {
	var t map[string]string
	if len(tags) > 0 {
		t = maps.Clone(tags)
	}
	return MetricRecord{Timestamp: ts, MetricType: metricType, Value: value, Tags: t}
}

// Tag returns the tag value or "".
func (r MetricRecord) Tag(key string) string {
	if r.Tags == nil {
		return ""
	}
	return r.Tags[key]
}

// MetricSeries is an ordered, read-only sequence of records sharing one metric type.
type MetricSeries struct {
	metricType string
	records    []MetricRecord
}

// NewMetricSeries sorts records ascending by timestamp (stable) and validates them.
// An empty record set yields an empty series; computations reject it.
func NewMetricSeries(metricType string, records []MetricRecord) (*MetricSeries, error) {
	const op = "models.NewMetricSeries"
	out := make([]MetricRecord, 0, len(records))
	for i, r := range records {
		if r.MetricType == "" {
			r.MetricType = metricType
		}
		if metricType == "" {
			metricType = r.MetricType
		}
		if r.MetricType != metricType {
			return nil, errs.Validation(op, "record %d has metric type %q, series is %q", i, r.MetricType, metricType)
		}
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return nil, errs.Validation(op, "record %d has non-finite value", i)
		}
		if r.Timestamp.IsZero() {
			return nil, errs.Validation(op, "record %d has zero timestamp", i)
		}
		out = append(out, NewMetricRecord(r.Timestamp, r.MetricType, r.Value, r.Tags))
	}
	slices.SortStableFunc(out, func(a, b MetricRecord) int { return a.Timestamp.Compare(b.Timestamp) })
	return &MetricSeries{metricType: metricType, records: out}, nil
}

// MustSeries is NewMetricSeries for fixtures; it panics on invalid input.
func MustSeries(metricType string, records []MetricRecord) *MetricSeries {
	s, err := NewMetricSeries(metricType, records)
	if err != nil {
		panic(err)
	}
	return s
}

// SeriesFromValues builds a series with one sample per step starting at start.
func SeriesFromValues(metricType string, start time.Time, step time.Duration, values ...float64) (*MetricSeries, error) {
	recs := make([]MetricRecord, len(values))
	for i, v := range values {
		recs[i] = MetricRecord{Timestamp: start.Add(time.Duration(i) * step), MetricType: metricType, Value: v}
	}
	return NewMetricSeries(metricType, recs)
}

func (s *MetricSeries) MetricType() string { return s.metricType }

// Len is nil-safe.
func (s *MetricSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

func (s *MetricSeries) IsEmpty() bool { return s.Len() == 0 }

func (s *MetricSeries) At(i int) MetricRecord { return s.records[i] }

func (s *MetricSeries) First() MetricRecord { return s.records[0] }

func (s *MetricSeries) Last() MetricRecord { return s.records[len(s.records)-1] }

// Records returns a copy of the underlying records.
func (s *MetricSeries) Records() []MetricRecord {
	return slices.Clone(s.records)
}

// Values returns the record values in order.
func (s *MetricSeries) Values() []float64 {
	out := make([]float64, len(s.records))
	for i, r := range s.records {
		out[i] = r.Value
	}
	return out
}

// Times returns the record timestamps in order.
func (s *MetricSeries) Times() []time.Time {
	out := make([]time.Time, len(s.records))
	for i, r := range s.records {
		out[i] = r.Timestamp
	}
	return out
}

// All iterates index and record.
func (s *MetricSeries) All() iter.Seq2[int, MetricRecord] {
	return func(yield func(int, MetricRecord) bool) {
		for i, r := range s.records {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Slice returns the sub-series [from, to). The backing array is shared, which is fine
// since nothing mutates records after construction.
func (s *MetricSeries) Slice(from, to int) *MetricSeries {
	return &MetricSeries{metricType: s.metricType, records: s.records[from:to:to]}
}

// GroupByTag splits the series by the value of tag. Records without the tag go to "".
func (s *MetricSeries) GroupByTag(tag string) map[string]*MetricSeries {
	groups := make(map[string][]MetricRecord)
	for _, r := range s.records {
		k := r.Tag(tag)
		groups[k] = append(groups[k], r)
	}
	out := make(map[string]*MetricSeries, len(groups))
	for k, recs := range groups {
		out[k] = &MetricSeries{metricType: s.metricType, records: recs}
	}
	return out
}

func (s *MetricSeries) String() string {
	if s.Len() == 0 {
		return fmt.Sprintf("MetricSeries(%s, empty)", s.metricType)
	}
	return fmt.Sprintf("MetricSeries(%s, n=%d, %s..%s)", s.metricType, len(s.records),
		s.First().Timestamp.Format(time.RFC3339), s.Last().Timestamp.Format(time.RFC3339))
}

// ConfidenceInterval bounds an estimate. Lower <= Upper always holds.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// PointInterval is the degenerate interval around a single value.
func PointInterval(v float64) ConfidenceInterval { return ConfidenceInterval{Lower: v, Upper: v} }

func (ci ConfidenceInterval) Contains(v float64) bool { return ci.Lower <= v && v <= ci.Upper }

func (ci ConfidenceInterval) Width() float64 { return ci.Upper - ci.Lower }

// Clamp raises both bounds to at least floor.
func (ci ConfidenceInterval) Clamp(floor float64) ConfidenceInterval {
	return ConfidenceInterval{Lower: math.Max(ci.Lower, floor), Upper: math.Max(ci.Upper, floor)}
}

// AggregationResult summarizes one window.
type AggregationResult struct {
	Period      PeriodKind `json:"period"`
	Window      string     `json:"window,omitempty"`
	Sum         float64    `json:"sum"`
	Mean        float64    `json:"mean"`
	Min         float64    `json:"min"`
	Max         float64    `json:"max"`
	Count       int        `json:"count"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
	// Change and Trend compare a rolling window's mean with the previous slide position.
	Change      float64    `json:"change,omitempty"`
	Trend       string     `json:"trend,omitempty"`
}

const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// TrendOf classifies a change by its sign.
func TrendOf(change float64) string {
	switch {
	case change > 0:
		return TrendUp
	case change < 0:
		return TrendDown
	default:
		return TrendFlat
	}
}
