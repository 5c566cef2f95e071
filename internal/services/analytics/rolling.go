package analytics

import (
	"iter"
	"math"
	"strings"

	"TaskStream/internal/domain/models"
	"TaskStream/internal/services/features"
)

// CalculateRollingMetrics yields one aggregate per record i covering records with
// timestamps in (t_i - window, t_i]. Change is the mean's difference from the
// previous position, 0 and flat on the first. The sequence is lazy and can be
// ranged over any number of times with identical results.
func (c *MetricsCalculator) CalculateRollingMetrics(s *models.MetricSeries, window string) (iter.Seq[models.AggregationResult], error) {
	const op = "analytics.CalculateRollingMetrics"
	width, err := features.ParseWindow(window)
	if err != nil {
		return nil, err
	}
	if err := requireSeries(op, s); err != nil {
		return nil, err
	}
	label := strings.ToUpper(strings.TrimSpace(window))

	return func(yield func(models.AggregationResult) bool) {
		// The left edge only moves forward. Window contents are summed afresh each
		// step so results do not drift with series length.
		lo := 0
		var prev float64
		for hi := 0; hi < s.Len(); hi++ {
			end := s.At(hi).Timestamp
			start := end.Add(-width)
			for lo < hi && !s.At(lo).Timestamp.After(start) {
				lo++
			}
			res := models.AggregationResult{
				Period:      models.PeriodRolling,
				Window:      label,
				Count:       hi - lo + 1,
				Min:         math.Inf(1),
				Max:         math.Inf(-1),
				WindowStart: start,
				WindowEnd:   end,
			}
			for i := lo; i <= hi; i++ {
				v := s.At(i).Value
				res.Sum += v
				res.Min = math.Min(res.Min, v)
				res.Max = math.Max(res.Max, v)
			}
			res.Mean = res.Sum / float64(res.Count)
			if hi > 0 {
				res.Change = res.Mean - prev
			}
			res.Trend = models.TrendOf(res.Change)
			prev = res.Mean
			if !yield(res) {
				return
			}
		}
	}, nil
}
