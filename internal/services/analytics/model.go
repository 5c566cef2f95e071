package analytics

import (
	"math"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/services/features"

	"gonum.org/v1/gonum/stat"
)

const (
	ModelLinearTrend = "linear_trend"
	ModelMean        = "mean"
)

// Fit is a fitted straight-line model y = Intercept + Slope*x with the pieces
// needed for prediction intervals and a slope test.
type Fit struct {
	Model      string
	Intercept  float64
	Slope      float64
	ResidualSE float64
	SlopeSE    float64
	DF         float64
	N          int
	MeanX      float64
	Sxx        float64
	RSquared   float64
}

// Estimate evaluates the fitted line at x.
func (f Fit) Estimate(x float64) float64 { return f.Intercept + f.Slope*x }

// Leverage is 1/n + (x-mean(x))²/Sxx; without x spread it is 1/n.
func (f Fit) Leverage(x float64) float64 {
	h := 1 / float64(f.N)
	if f.Sxx > 0 {
		d := x - f.MeanX
		h += d * d / f.Sxx
	}
	return h
}

// TrendModel fits y over x (days since the first sample).
type TrendModel interface {
	Name() string
	Fit(x, y []float64) (Fit, error)
}

// LinearTrend is ordinary least squares on time.
type LinearTrend struct{}

func (LinearTrend) Name() string { return ModelLinearTrend }

func (LinearTrend) Fit(x, y []float64) (Fit, error) {
	const op = "analytics.LinearTrend.Fit"
	n := len(y)
	if n < 3 {
		return Fit{}, errs.Computation(op, "need at least 3 samples for a trend, got %d", n)
	}
	meanX := stat.Mean(x, nil)
	var sxx float64
	for _, xi := range x {
		d := xi - meanX
		sxx += d * d
	}
	if sxx == 0 {
		return Fit{}, errs.Computation(op, "all samples share one timestamp")
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	var sse float64
	for i := range y {
		r := y[i] - (alpha + beta*x[i])
		sse += r * r
	}
	df := float64(n - 2)
	residualSE := math.Sqrt(sse / df)
	r2 := 1.0
	if sse > 0 {
		r2 = stat.RSquared(x, y, nil, alpha, beta)
	}
	f := Fit{
		Model:      ModelLinearTrend,
		Intercept:  alpha,
		Slope:      beta,
		ResidualSE: residualSE,
		SlopeSE:    residualSE / math.Sqrt(sxx),
		DF:         df,
		N:          n,
		MeanX:      meanX,
		Sxx:        sxx,
		RSquared:   r2,
	}
	if !finite(f.Intercept, f.Slope, f.ResidualSE, f.SlopeSE) {
		return Fit{}, errs.Computation(op, "non-finite fit intercept=%v slope=%v se=%v", f.Intercept, f.Slope, f.ResidualSE)
	}
	if math.IsNaN(f.RSquared) {
		f.RSquared = 0
	}
	return f, nil
}

// MeanModel projects the sample mean flat. It never reports a trend.
type MeanModel struct{}

func (MeanModel) Name() string { return ModelMean }

func (MeanModel) Fit(x, y []float64) (Fit, error) {
	const op = "analytics.MeanModel.Fit"
	n := len(y)
	if n == 0 {
		return Fit{}, errs.Computation(op, "no samples")
	}
	mean, variance := features.Moments(y)
	if !finite(mean, variance) {
		return Fit{}, errs.Computation(op, "non-finite moments")
	}
	return Fit{
		Model:      ModelMean,
		Intercept:  mean,
		ResidualSE: math.Sqrt(variance),
		DF:         float64(n - 1),
		N:          n,
		MeanX:      stat.Mean(x, nil),
		RSquared:   0,
	}, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
