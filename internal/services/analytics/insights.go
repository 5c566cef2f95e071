package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"TaskStream/internal/domain/models"
	domsvc "TaskStream/internal/domain/service"
	"TaskStream/internal/services/features"
	"TaskStream/pkg/config"
)

// significantChange is the relative move that makes a forecast insight HIGH.
const significantChange = 0.10

// InsightGenerator composes ordered, human-readable notes. Stateless.
type InsightGenerator struct {
	thresholds       map[string]float64
	defaultThreshold float64
	fitThreshold     float64
}

var _ domsvc.InsightGenerator = (*InsightGenerator)(nil)

func NewInsightGenerator(cfg config.AnalyticsConfig) *InsightGenerator {
	return &InsightGenerator{
		thresholds:       cfg.Thresholds.ByMetric(),
		defaultThreshold: cfg.DefaultInsightThreshold,
		fitThreshold:     cfg.ValidationThreshold,
	}
}

func (g *InsightGenerator) thresholdFor(key string) float64 {
	if t, ok := g.thresholds[key]; ok {
		return t
	}
	return g.defaultThreshold
}

func deviation(value, threshold float64) float64 {
	return math.Abs(value-threshold) / math.Max(math.Abs(threshold), 1e-9)
}

// FromMetrics scores each numeric entry against its threshold. Non-numeric entries
// are skipped.
func (g *InsightGenerator) FromMetrics(data map[string]any) []models.Insight {
	out := make([]models.Insight, 0, len(data))
	for key, raw := range data {
		v, ok := features.ToFloat(raw)
		if !ok {
			continue
		}
		th := g.thresholdFor(key)
		in := models.Insight{
			MetricKey:    key,
			CurrentValue: v,
			Threshold:    th,
			Deviation:    deviation(v, th),
			Significance: models.SignificanceNormal,
		}
		switch {
		case v > th:
			in.Significance = models.SignificanceHigh
			in.Note = fmt.Sprintf("%s at %.3g is above threshold %.3g", key, v, th)
		case v == th:
			in.Note = fmt.Sprintf("%s is at threshold %.3g", key, th)
		default:
			in.Note = fmt.Sprintf("%s at %.3g is within threshold %.3g", key, v, th)
		}
		out = append(out, in)
	}
	sortInsights(out)
	return out
}

// FromForecast describes the projected change, the model fit and each bottleneck window.
func (g *InsightGenerator) FromForecast(r *models.PredictionResult, significant bool, bottlenecks *models.BottleneckReport) []models.Insight {
	var out []models.Insight
	if r != nil && len(r.Predictions) > 0 {
		change := PredictedChange(r)
		in := models.Insight{
			MetricKey:    "predicted_change",
			CurrentValue: change,
			Deviation:    math.Abs(change),
			Significance: models.SignificanceNormal,
		}
		trend := "no significant trend"
		if significant {
			trend = fmt.Sprintf("significant trend, p=%.3g", r.StatisticalSignificance.PValue)
			if math.Abs(change) >= significantChange {
				in.Significance = models.SignificanceHigh
			}
		}
		in.Note = fmt.Sprintf("projected %+.1f%% over %s horizon (%s)", change*100, r.Horizon, trend)
		out = append(out, in)

		fit := models.Insight{
			MetricKey:    "forecast_fit",
			CurrentValue: r.RSquared,
			Threshold:    g.fitThreshold,
			Deviation:    deviation(r.RSquared, g.fitThreshold),
			Significance: models.SignificanceNormal,
			Note:         fmt.Sprintf("%s model, R²=%.3f", r.Model, r.RSquared),
		}
		if r.Model == ModelLinearTrend && r.RSquared < g.fitThreshold {
			fit.Significance = models.SignificanceHigh
			fit.Note += ", below validation threshold; treat forecast with caution"
		}
		out = append(out, fit)
	}
	if bottlenecks != nil {
		for _, e := range bottlenecks.Entries {
			out = append(out, models.Insight{
				MetricKey:    fmt.Sprintf("bottleneck:%s:%s", e.ResourceID, e.WindowStart.UTC().Format(time.RFC3339)),
				CurrentValue: e.PeakValue,
				Threshold:    bottlenecks.Threshold,
				Deviation:    e.SeverityScore,
				Significance: models.SignificanceHigh,
				Note:         fmt.Sprintf("%s for %d samples; %s", e.Cause, e.Samples, e.Recommendation),
			})
		}
	}
	sortInsights(out)
	return out
}

// PredictedChange is the relative move from the last observation to the last forecast.
func PredictedChange(r *models.PredictionResult) float64 {
	if r == nil || len(r.Predictions) == 0 || r.LastObserved == 0 {
		return 0
	}
	last := r.Predictions[len(r.Predictions)-1].Value
	return (last - r.LastObserved) / math.Abs(r.LastObserved)
}

// sortInsights orders by deviation descending, then key ascending.
func sortInsights(in []models.Insight) {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Deviation != in[j].Deviation {
			return in[i].Deviation > in[j].Deviation
		}
		return in[i].MetricKey < in[j].MetricKey
	})
}
