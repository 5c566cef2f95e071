package analytics

import (
	"math"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	"TaskStream/internal/services/features"
)

// ValidateResourceOptimization compares mean utilization before and after an
// optimization. It passes when the relative improvement reaches MinImprovement.
func (c *MetricsCalculator) ValidateResourceOptimization(baseline, optimized *models.MetricSeries) (models.OptimizationReport, error) {
	const op = "analytics.ValidateResourceOptimization"
	if baseline.Len() < 2 || optimized.Len() < 2 {
		return models.OptimizationReport{}, errs.Computation(op, "need at least 2 samples on each side, got %d and %d", baseline.Len(), optimized.Len())
	}
	before, _ := features.Moments(baseline.Values())
	after, _ := features.Moments(optimized.Values())
	if before == 0 {
		return models.OptimizationReport{}, errs.Computation(op, "baseline mean is zero")
	}
	improvement := (after - before) / math.Abs(before)
	return models.OptimizationReport{
		BaselineMean:   before,
		OptimizedMean:  after,
		Improvement:    improvement,
		MinImprovement: c.cfg.MinImprovement,
		Passed:         improvement >= c.cfg.MinImprovement,
	}, nil
}

// BenchmarkPerformance summarizes latency samples (milliseconds) and checks p95
// against MaxLatencyP95.
func (c *MetricsCalculator) BenchmarkPerformance(latencies *models.MetricSeries) (models.BenchmarkReport, error) {
	const op = "analytics.BenchmarkPerformance"
	if latencies.Len() < c.cfg.MinBenchmarkSamples {
		return models.BenchmarkReport{}, errs.Computation(op, "need at least %d samples, got %d", c.cfg.MinBenchmarkSamples, latencies.Len())
	}
	vals := latencies.Values()
	mean, _ := features.Moments(vals)
	budget := float64(c.cfg.MaxLatencyP95) / float64(time.Millisecond)
	rep := models.BenchmarkReport{
		Samples:  len(vals),
		MeanMs:   mean,
		P50Ms:    features.Percentile(vals, 0.50),
		P95Ms:    features.Percentile(vals, 0.95),
		P99Ms:    features.Percentile(vals, 0.99),
		MaxMs:    features.Percentile(vals, 1),
		BudgetMs: budget,
	}
	rep.Passed = rep.P95Ms <= budget
	return rep, nil
}
