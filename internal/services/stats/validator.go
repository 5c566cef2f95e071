// Package stats holds the confidence-interval and significance primitives shared by
// the metrics calculator and the forecast engine.
//
// Intervals use a standard-error method. The critical value comes from Student's t
// with n-1 degrees of freedom when n < LargeSampleCutoff and from the standard normal
// otherwise, both evaluated at (1+level)/2. Results depend only on the inputs.
package stats

import (
	"math"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultThreshold         = 0.05
	DefaultMinSampleSize     = 3
	DefaultLargeSampleCutoff = 30
)

// Option configures Validator.
type Option func(*Config)

// Config holds validator settings.
type Config struct {
	Threshold         float64
	MinSampleSize     int
	LargeSampleCutoff int
}

// WithThreshold sets the p-value cutoff for significance.
func WithThreshold(p float64) Option {
	return func(c *Config) { c.Threshold = p }
}

// WithMinSampleSize sets the minimum n for a significance claim.
func WithMinSampleSize(n int) Option {
	return func(c *Config) { c.MinSampleSize = n }
}

// WithLargeSampleCutoff sets the n at which the normal approximation replaces t.
func WithLargeSampleCutoff(n int) Option {
	return func(c *Config) { c.LargeSampleCutoff = n }
}

// Validator is stateless after construction and safe for concurrent use.
type Validator struct {
	cfg Config
}

func NewValidator(opts ...Option) (*Validator, error) {
	cfg := Config{
		Threshold:         DefaultThreshold,
		MinSampleSize:     DefaultMinSampleSize,
		LargeSampleCutoff: DefaultLargeSampleCutoff,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	const op = "stats.NewValidator"
	if !(cfg.Threshold > 0 && cfg.Threshold < 1) {
		return nil, errs.Configuration(op, "threshold must be in (0,1), got %v", cfg.Threshold)
	}
	if cfg.MinSampleSize < 1 {
		return nil, errs.Configuration(op, "min sample size must be >= 1, got %d", cfg.MinSampleSize)
	}
	if cfg.LargeSampleCutoff < 2 {
		return nil, errs.Configuration(op, "large sample cutoff must be >= 2, got %d", cfg.LargeSampleCutoff)
	}
	return &Validator{cfg: cfg}, nil
}

func (v *Validator) Threshold() float64 { return v.cfg.Threshold }

func (v *Validator) MinSampleSize() int { return v.cfg.MinSampleSize }

// CheckLevel rejects confidence levels outside (0,1).
func CheckLevel(op string, level float64) error {
	if math.IsNaN(level) || level <= 0 || level >= 1 {
		return errs.Configuration(op, "confidence level must be in (0,1), got %v", level)
	}
	return nil
}

// CriticalValue returns the two-sided critical value for a sample of size n.
func (v *Validator) CriticalValue(level float64, n int) float64 {
	return v.criticalDF(level, float64(n-1))
}

func (v *Validator) criticalDF(level, df float64) float64 {
	p := (1 + level) / 2
	if df >= 1 && df < float64(v.cfg.LargeSampleCutoff-1) {
		return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(p)
	}
	return distuv.UnitNormal.Quantile(p)
}

// MeanInterval bounds a sample mean: mean ± q·sqrt(variance/n).
func (v *Validator) MeanInterval(mean, variance float64, n int, level float64) (models.ConfidenceInterval, error) {
	const op = "stats.MeanInterval"
	if err := CheckLevel(op, level); err != nil {
		return models.ConfidenceInterval{}, err
	}
	if n < 1 {
		return models.ConfidenceInterval{}, errs.Validation(op, "sample size must be >= 1, got %d", n)
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) || math.IsNaN(variance) || math.IsInf(variance, 0) {
		return models.ConfidenceInterval{}, errs.Computation(op, "non-finite moments mean=%v variance=%v", mean, variance)
	}
	if variance < 0 {
		return models.ConfidenceInterval{}, errs.Computation(op, "negative variance %v", variance)
	}
	if n == 1 || variance == 0 {
		return models.PointInterval(mean), nil
	}
	half := v.CriticalValue(level, n) * math.Sqrt(variance/float64(n))
	return models.ConfidenceInterval{Lower: mean - half, Upper: mean + half}, nil
}

// PredictionInterval bounds a new observation around estimate:
// estimate ± q(df)·residualSE·sqrt(1+leverage).
func (v *Validator) PredictionInterval(estimate, residualSE, leverage, df, level float64) (models.ConfidenceInterval, error) {
	const op = "stats.PredictionInterval"
	if err := CheckLevel(op, level); err != nil {
		return models.ConfidenceInterval{}, err
	}
	if math.IsNaN(estimate) || math.IsInf(estimate, 0) || math.IsNaN(residualSE) || residualSE < 0 || leverage < 0 {
		return models.ConfidenceInterval{}, errs.Computation(op, "invalid inputs estimate=%v se=%v leverage=%v", estimate, residualSE, leverage)
	}
	if residualSE == 0 {
		return models.PointInterval(estimate), nil
	}
	half := v.criticalDF(level, df) * residualSE * math.Sqrt(1+leverage)
	if math.IsInf(half, 0) || math.IsNaN(half) {
		return models.ConfidenceInterval{}, errs.Computation(op, "interval half-width is not finite")
	}
	return models.ConfidenceInterval{Lower: estimate - half, Upper: estimate + half}, nil
}

// SlopeSignificance tests H0: slope == 0 with a two-sided t test.
func (v *Validator) SlopeSignificance(slope, slopeSE float64, df float64, n int) models.Significance {
	var p float64
	switch {
	case slopeSE == 0 && slope == 0:
		p = 1
	case slopeSE == 0:
		p = 0
	case df < 1:
		p = 1
	default:
		t := math.Abs(slope / slopeSE)
		var cdf float64
		if df < float64(v.cfg.LargeSampleCutoff-1) {
			cdf = distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.CDF(t)
		} else {
			cdf = distuv.UnitNormal.CDF(t)
		}
		p = 2 * (1 - cdf)
	}
	p = math.Min(1, math.Max(0, p))
	return models.Significance{PValue: p, IsSignificant: v.IsSignificant(p, n), SampleSize: n}
}

// IsSignificant reports p < threshold with at least MinSampleSize observations.
func (v *Validator) IsSignificant(p float64, n int) bool {
	return n >= v.cfg.MinSampleSize && p < v.cfg.Threshold
}
