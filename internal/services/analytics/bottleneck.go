package analytics

import (
	"math"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	"TaskStream/internal/services/features"
)

const (
	CauseSustained = "sustained_utilization_breach"
	CauseSpike     = "utilization_spike"

	// saturation is the peak above which a breach calls for more capacity rather
	// than rebalancing.
	saturation = 0.95

	TagResourceID = "resource_id"
)

func resourceOf(s *models.MetricSeries) string {
	if id := s.First().Tag(TagResourceID); id != "" {
		return id
	}
	return s.MetricType()
}

// PredictBottlenecks reports breaches of the configured utilization threshold.
func (e *ForecastEngine) PredictBottlenecks(data *models.MetricSeries) (*models.BottleneckReport, error) {
	return e.PredictBottlenecksWithThreshold(data, e.cfg.Thresholds.Utilization)
}

// PredictBottlenecksWithThreshold scans data for runs of consecutive samples above
// threshold. Each run yields exactly one entry.
func (e *ForecastEngine) PredictBottlenecksWithThreshold(data *models.MetricSeries, threshold float64) (*models.BottleneckReport, error) {
	const op = "analytics.PredictBottlenecks"
	if err := requireSeries(op, data); err != nil {
		return nil, err
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, errs.Configuration(op, "threshold must be finite, got %v", threshold)
	}
	step := features.MedianStep(data.Times())
	if step <= 0 {
		step = time.Hour
	}
	report := &models.BottleneckReport{
		ResourceID:  resourceOf(data),
		Threshold:   threshold,
		Entries:     []models.BottleneckEntry{},
		GeneratedAt: e.now(),
	}

	runStart := -1
	closeRun := func(end int) {
		report.Entries = append(report.Entries, breachEntry(data, runStart, end, threshold, step, report.ResourceID))
		runStart = -1
	}
	for i, r := range data.All() {
		if r.Value > threshold {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			closeRun(i - 1)
		}
	}
	if runStart >= 0 {
		closeRun(data.Len() - 1)
	}
	return report, nil
}

func breachEntry(s *models.MetricSeries, from, to int, threshold float64, step time.Duration, resource string) models.BottleneckEntry {
	start, end := s.At(from).Timestamp, s.At(to).Timestamp
	var excess float64
	peak := math.Inf(-1)
	for i := from; i <= to; i++ {
		v := s.At(i).Value
		excess += v - threshold
		peak = math.Max(peak, v)
	}
	n := to - from + 1
	hours := (end.Sub(start) + step).Hours()

	entry := models.BottleneckEntry{
		ResourceID:    resource,
		WindowStart:   start,
		WindowEnd:     end,
		Samples:       n,
		PeakValue:     peak,
		SeverityScore: hours * excess / float64(n),
		Cause:         CauseSustained,
	}
	if n == 1 {
		entry.Cause = CauseSpike
	}
	if peak > saturation {
		entry.Recommendation = "scale up capacity for " + resource
	} else {
		entry.Recommendation = "rebalance work away from " + resource
	}
	return entry
}
