package features

import (
	"math"
	"slices"
	"time"

	"TaskStream/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// Moments returns the sample mean and unbiased variance. A single value has zero variance.
func Moments(values []float64) (mean, variance float64) {
	switch len(values) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return values[0], 0
	}
	mean, variance = stat.MeanVariance(values, nil)
	if variance < 0 {
		variance = 0
	}
	return mean, variance
}

// Summarize computes sum, mean, min and max over values.
// values must be non-empty.
func Summarize(period models.PeriodKind, start, end time.Time, values []float64) models.AggregationResult {
	res := models.AggregationResult{
		Period:      period,
		Min:         math.Inf(1),
		Max:         math.Inf(-1),
		Count:       len(values),
		WindowStart: start,
		WindowEnd:   end,
	}
	for _, v := range values {
		res.Sum += v
		res.Min = math.Min(res.Min, v)
		res.Max = math.Max(res.Max, v)
	}
	if res.Count > 0 {
		res.Mean = res.Sum / float64(res.Count)
	}
	return res
}

// Percentile returns the p-quantile (0..1) with linear interpolation. values need not be sorted.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// MedianStep returns the median gap between consecutive timestamps, or 0 with fewer than two.
func MedianStep(times []time.Time) time.Duration {
	if len(times) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		gaps = append(gaps, float64(times[i].Sub(times[i-1])))
	}
	return time.Duration(Percentile(gaps, 0.5))
}

// DaysSince maps timestamps to fractional days after origin.
func DaysSince(origin time.Time, times []time.Time) []float64 {
	out := make([]float64, len(times))
	for i, t := range times {
		out[i] = t.Sub(origin).Hours() / 24
	}
	return out
}
