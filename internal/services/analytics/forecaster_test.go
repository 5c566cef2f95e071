package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	"TaskStream/pkg/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingModel wraps a model and counts fits.
type countingModel struct {
	TrendModel
	fits  atomic.Int32
	delay time.Duration
}

func (m *countingModel) Fit(x, y []float64) (Fit, error) {
	m.fits.Add(1)
	time.Sleep(m.delay)
	return m.TrendModel.Fit(x, y)
}

type brokenModel struct{}

func (brokenModel) Name() string { return "broken" }

func (brokenModel) Fit(x, y []float64) (Fit, error) {
	return Fit{}, errs.Computation("brokenModel.Fit", "always fails")
}

// storeFunc is a PredictionStore driven by a function.
type storeFunc struct {
	calls atomic.Int32
	fn    func(fn func() (any, error)) (any, bool, error)
}

func (s *storeFunc) GetOrCompute(op, key string, ttl time.Duration, fn func() (any, error)) (any, bool, error) {
	s.calls.Add(1)
	return s.fn(fn)
}

func (s *storeFunc) Close() error { return nil }

type recordingMetrics struct {
	mu           sync.Mutex
	fallbacks    int
	errorsByKind map[string]int
}

func (m *recordingMetrics) RecordCacheHit(string)            {}
func (m *recordingMetrics) RecordCacheMiss(string)           {}
func (m *recordingMetrics) RecordComputation(string, string) {}
func (m *recordingMetrics) RecordLatency(string, float64)    {}

func (m *recordingMetrics) RecordFallback(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errorsByKind == nil {
		m.errorsByKind = map[string]int{}
	}
	m.errorsByKind[kind]++
}

func newTestEngine(t *testing.T, opts ...EngineOption) *ForecastEngine {
	t.Helper()
	cfg := config.DefaultAnalytics()
	cfg.CacheSweepInterval = 0
	e, err := NewForecastEngine(cfg, opts...)
	if err != nil {
		t.Fatalf("NewForecastEngine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func linear(t *testing.T, n int) *models.MetricSeries {
	t.Helper()
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	return series(t, "throughput", 24*time.Hour, vals...)
}

func TestPredictPerformanceLinearTrend(t *testing.T) {
	e := newTestEngine(t)
	s := linear(t, 10)

	r, err := e.PredictPerformance(context.Background(), s, models.HorizonShort, 0.95)
	if err != nil {
		t.Fatalf("PredictPerformance: %v", err)
	}
	if len(r.Predictions) != 7 || len(r.ConfidenceIntervals) != 7 {
		t.Fatalf("got %d predictions, %d intervals", len(r.Predictions), len(r.ConfidenceIntervals))
	}
	first := r.Predictions[0]
	if !first.Timestamp.Equal(s.Last().Timestamp.AddDate(0, 0, 1)) {
		t.Fatalf("first forecast at %v", first.Timestamp)
	}
	if !approx(first.Value, 11, 1e-9) || !approx(r.Predictions[6].Value, 17, 1e-9) {
		t.Fatalf("unexpected values %v .. %v", first.Value, r.Predictions[6].Value)
	}
	if r.Model != ModelLinearTrend || !approx(r.RSquared, 1, 1e-12) {
		t.Fatalf("model=%s r2=%v", r.Model, r.RSquared)
	}
	if !r.StatisticalSignificance.IsSignificant || r.StatisticalSignificance.SampleSize != 10 {
		t.Fatalf("expected significant trend: %+v", r.StatisticalSignificance)
	}
	if r.CacheKey == "" || r.Horizon != models.HorizonShort || r.ConfidenceLevel != 0.95 {
		t.Fatalf("metadata not set: %+v", r)
	}
}

func TestPredictionIntervalsContainEstimates(t *testing.T) {
	e := newTestEngine(t)
	s := series(t, "throughput", 24*time.Hour, 3, 7, 4, 9, 6, 11, 8, 12, 10, 15)

	r, err := e.PredictPerformance(context.Background(), s, models.HorizonMedium, 0.9)
	if err != nil {
		t.Fatalf("PredictPerformance: %v", err)
	}
	if len(r.Predictions) != 30 {
		t.Fatalf("got %d predictions", len(r.Predictions))
	}
	prev := 0.0
	for i, p := range r.Predictions {
		ci := r.ConfidenceIntervals[i]
		if !ci.Contains(p.Value) || ci.Width() <= 0 {
			t.Fatalf("point %d: %v not strictly inside %+v", i, p.Value, ci)
		}
		if ci.Width() < prev {
			t.Fatalf("interval %d narrower than the one before", i)
		}
		prev = ci.Width()
	}
}

func TestPredictPerformanceCachesByContent(t *testing.T) {
	e := newTestEngine(t)
	a, err := e.PredictPerformance(context.Background(), linear(t, 6), models.HorizonShort, 0.95)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := e.PredictPerformance(context.Background(), linear(t, 6), models.HorizonShort, 0.95)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a != b {
		t.Fatalf("equal content should return the cached result")
	}
	c, _ := e.PredictPerformance(context.Background(), linear(t, 6), models.HorizonShort, 0.9)
	if c == a {
		t.Fatalf("different level must not share a cache entry")
	}
}

func TestPredictPerformanceExpiresAfterTTL(t *testing.T) {
	clock := &fakeClock{now: t0}
	e := newTestEngine(t, WithClock(clock.Now))
	s := linear(t, 6)

	a, _ := e.PredictPerformance(context.Background(), s, models.HorizonShort, 0.95)
	clock.Advance(59 * time.Minute)
	b, _ := e.PredictPerformance(context.Background(), s, models.HorizonShort, 0.95)
	if a != b {
		t.Fatalf("entry should still be live")
	}
	clock.Advance(2 * time.Minute)
	c, _ := e.PredictPerformance(context.Background(), s, models.HorizonShort, 0.95)
	if c == a {
		t.Fatalf("entry should have expired after the TTL")
	}
	if !c.GeneratedAt.Equal(t0.Add(61 * time.Minute)) {
		t.Fatalf("generated at %v", c.GeneratedAt)
	}
}

func TestValidationFailsBeforeCache(t *testing.T) {
	store := &storeFunc{fn: func(fn func() (any, error)) (any, bool, error) {
		v, err := fn()
		return v, false, err
	}}
	e := newTestEngine(t, WithCache(store))
	ctx := context.Background()

	if _, err := e.PredictPerformance(ctx, nil, models.HorizonShort, 0.95); !errors.Is(err, errs.ErrDataValidation) {
		t.Fatalf("nil data: got %v", err)
	}
	empty, _ := models.NewMetricSeries("x", nil)
	if _, err := e.PredictPerformance(ctx, empty, models.HorizonShort, 0.95); !errors.Is(err, errs.ErrDataValidation) {
		t.Fatalf("empty data: got %v", err)
	}
	if _, err := e.PredictPerformance(ctx, linear(t, 5), models.HorizonKind("decade"), 0.95); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("unknown horizon: got %v", err)
	}
	if _, err := e.PredictPerformance(ctx, linear(t, 5), models.HorizonShort, 1.5); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("bad level: got %v", err)
	}
	if _, err := e.PredictResourceAllocation(ctx, linear(t, 5), models.HorizonShort, map[string]any{"capacity": "ten"}); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("bad params: got %v", err)
	}
	if n := store.calls.Load(); n != 0 {
		t.Fatalf("cache consulted %d times on invalid input", n)
	}
}

func TestCancelledCallerDoesNotFailSharedComputation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The caller that started the computation goes away before it runs.
	store := &storeFunc{fn: func(fn func() (any, error)) (any, bool, error) {
		cancel()
		v, err := fn()
		return v, false, err
	}}
	e := newTestEngine(t, WithCache(store))

	r, err := e.PredictPerformance(ctx, linear(t, 10), models.HorizonShort, 0.95)
	if err != nil || r == nil {
		t.Fatalf("PredictPerformance: r=%v err=%v", r, err)
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	store.fn = func(fn func() (any, error)) (any, bool, error) {
		cancel2()
		v, err := fn()
		return v, false, err
	}
	if a, err := e.PredictResourceAllocation(ctx2, linear(t, 10), models.HorizonShort, nil); err != nil || a == nil {
		t.Fatalf("PredictResourceAllocation: a=%v err=%v", a, err)
	}
}

func TestDoneContextSkipsCache(t *testing.T) {
	store := &storeFunc{fn: func(fn func() (any, error)) (any, bool, error) {
		v, err := fn()
		return v, false, err
	}}
	e := newTestEngine(t, WithCache(store))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.PredictPerformance(ctx, linear(t, 5), models.HorizonShort, 0.95); !errors.Is(err, context.Canceled) {
		t.Fatalf("PredictPerformance: got %v", err)
	}
	if _, err := e.PredictResourceAllocation(ctx, linear(t, 5), models.HorizonShort, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("PredictResourceAllocation: got %v", err)
	}
	if n := store.calls.Load(); n != 0 {
		t.Fatalf("cache consulted %d times with a done context", n)
	}
}

func TestConcurrentMissesComputeOnce(t *testing.T) {
	model := &countingModel{TrendModel: LinearTrend{}, delay: 20 * time.Millisecond}
	e := newTestEngine(t, WithModel(model))
	s := linear(t, 12)

	const callers = 32
	results := make([]*models.PredictionResult, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := e.PredictPerformance(context.Background(), s, models.HorizonShort, 0.95)
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = r
		}(i)
	}
	wg.Wait()

	if n := model.fits.Load(); n != 1 {
		t.Fatalf("model fitted %d times, want 1", n)
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different result", i)
		}
	}
}

func TestFallbackToMeanModel(t *testing.T) {
	m := &recordingMetrics{}
	e := newTestEngine(t, WithMetrics(m))

	r, err := e.PredictPerformance(context.Background(), series(t, "x", 24*time.Hour, 4, 6), models.HorizonShort, 0.95)
	if err != nil {
		t.Fatalf("PredictPerformance: %v", err)
	}
	if r.Model != ModelMean {
		t.Fatalf("model = %s, want %s", r.Model, ModelMean)
	}
	if r.StatisticalSignificance.PValue != 1 || e.ValidateStatisticalSignificance(r) {
		t.Fatalf("mean model must not claim a trend: %+v", r.StatisticalSignificance)
	}
	for _, p := range r.Predictions {
		if p.Value != 5 {
			t.Fatalf("flat forecast expected, got %v", p.Value)
		}
	}
	if m.fallbacks != 1 {
		t.Fatalf("fallbacks = %d", m.fallbacks)
	}

	single, err := e.PredictPerformance(context.Background(), series(t, "x", time.Hour, 9), models.HorizonShort, 0.95)
	if err != nil {
		t.Fatalf("single sample: %v", err)
	}
	if single.ConfidenceIntervals[0] != models.PointInterval(9) {
		t.Fatalf("single sample interval %+v", single.ConfidenceIntervals[0])
	}
}

func TestFallbackFailurePropagates(t *testing.T) {
	e := newTestEngine(t, WithModel(brokenModel{}), WithFallbackModel(brokenModel{}))
	_, err := e.PredictPerformance(context.Background(), linear(t, 5), models.HorizonShort, 0.95)
	if !errors.Is(err, errs.ErrComputation) {
		t.Fatalf("expected computation error, got %v", err)
	}
}

func TestCacheErrorsAreAbsorbed(t *testing.T) {
	m := &recordingMetrics{}
	failing := &storeFunc{fn: func(func() (any, error)) (any, bool, error) {
		return nil, false, errs.Cache("fake", "backend down")
	}}
	e := newTestEngine(t, WithCache(failing), WithMetrics(m))

	r, err := e.PredictPerformance(context.Background(), linear(t, 5), models.HorizonShort, 0.95)
	if err != nil || r == nil || len(r.Predictions) != 7 {
		t.Fatalf("cache failure leaked: r=%v err=%v", r, err)
	}
	if m.errorsByKind["cache"] == 0 {
		t.Fatalf("cache failure not recorded")
	}

	wrongType := &storeFunc{fn: func(func() (any, error)) (any, bool, error) {
		return "not a forecast", true, nil
	}}
	e = newTestEngine(t, WithCache(wrongType))
	a, err := e.PredictResourceAllocation(context.Background(), linear(t, 5), models.HorizonShort, nil)
	if err != nil || a == nil {
		t.Fatalf("wrong cached type leaked: %v", err)
	}
}

func TestPredictResourceAllocation(t *testing.T) {
	e := newTestEngine(t)
	recs := make([]models.MetricRecord, 5)
	for i := range recs {
		recs[i] = models.NewMetricRecord(t0.AddDate(0, 0, i), "allocation", 0.5, map[string]string{"resource_id": "db-1"})
	}
	s := models.MustSeries("allocation", recs)

	a, err := e.PredictResourceAllocation(context.Background(), s, models.HorizonShort, map[string]any{"capacity": 10, "headroom": 0.2})
	if err != nil {
		t.Fatalf("PredictResourceAllocation: %v", err)
	}
	if a.ResourceID != "db-1" || len(a.AllocationForecast) != 7 {
		t.Fatalf("unexpected forecast %+v", a)
	}
	for _, p := range a.AllocationForecast {
		if !approx(p.Value, 6, 1e-9) {
			t.Fatalf("units = %v, want 6", p.Value)
		}
	}

	floored, err := e.PredictResourceAllocation(context.Background(), s, models.HorizonShort, map[string]any{
		"capacity": 10, "min_units": 8.0, "resource_id": "db-main",
	})
	if err != nil {
		t.Fatalf("PredictResourceAllocation: %v", err)
	}
	if floored.ResourceID != "db-main" {
		t.Fatalf("resource id = %q", floored.ResourceID)
	}
	for i, p := range floored.AllocationForecast {
		ci := floored.ConfidenceIntervals[i]
		if p.Value != 8 || ci.Lower < 8 || ci.Upper < 8 {
			t.Fatalf("point %d not floored: %v %+v", i, p.Value, ci)
		}
	}
	if floored.CacheKey == a.CacheKey {
		t.Fatalf("params must be part of the cache key")
	}
}

func TestPredictBottlenecksMergesRuns(t *testing.T) {
	e := newTestEngine(t)
	s := series(t, "utilization", time.Hour, 0.5, 0.9, 0.92, 0.97, 0.6, 0.9, 0.5)

	rep, err := e.PredictBottlenecks(s)
	if err != nil {
		t.Fatalf("PredictBottlenecks: %v", err)
	}
	if len(rep.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(rep.Entries))
	}
	run := rep.Entries[0]
	if run.Samples != 3 || run.Cause != CauseSustained || run.PeakValue != 0.97 {
		t.Fatalf("unexpected run %+v", run)
	}
	if !run.WindowStart.Equal(t0.Add(time.Hour)) || !run.WindowEnd.Equal(t0.Add(3*time.Hour)) {
		t.Fatalf("window %v..%v", run.WindowStart, run.WindowEnd)
	}
	// 3h × mean excess 0.08
	if !approx(run.SeverityScore, 0.24, 1e-9) {
		t.Fatalf("severity = %v", run.SeverityScore)
	}
	spike := rep.Entries[1]
	if spike.Samples != 1 || spike.Cause != CauseSpike || !approx(spike.SeverityScore, 0.05, 1e-9) {
		t.Fatalf("unexpected spike %+v", spike)
	}
	if run.Recommendation == spike.Recommendation {
		t.Fatalf("saturated and unsaturated runs should get different advice")
	}
}

func TestPredictBottlenecksPeggedSeriesIsOneEntry(t *testing.T) {
	e := newTestEngine(t)
	vals := make([]float64, 48)
	for i := range vals {
		vals[i] = 0.99
	}
	rep, err := e.PredictBottlenecks(series(t, "utilization", time.Hour, vals...))
	if err != nil {
		t.Fatalf("PredictBottlenecks: %v", err)
	}
	if len(rep.Entries) != 1 || rep.Entries[0].Samples != 48 {
		t.Fatalf("pegged series split into %d entries", len(rep.Entries))
	}
	if rep.ResourceID != "utilization" {
		t.Fatalf("resource id = %q", rep.ResourceID)
	}

	calm, _ := e.PredictBottlenecksWithThreshold(series(t, "utilization", time.Hour, vals...), 0.995)
	if calm.HasBottlenecks() {
		t.Fatalf("no sample exceeds 0.995")
	}
	if _, err := e.PredictBottlenecks(nil); !errors.Is(err, errs.ErrDataValidation) {
		t.Fatalf("nil data: got %v", err)
	}
}

func TestGeneratePredictiveInsights(t *testing.T) {
	e := newTestEngine(t)
	vals := []float64{0.70, 0.74, 0.78, 0.82, 0.86, 0.90, 0.94}
	s := series(t, "utilization", 24*time.Hour, vals...)

	out, err := e.GeneratePredictiveInsights(context.Background(), s)
	if err != nil {
		t.Fatalf("GeneratePredictiveInsights: %v", err)
	}
	if out.Forecast.Horizon != models.HorizonShort || len(out.Intervals) != 7 {
		t.Fatalf("unexpected forecast payload: %+v", out.Forecast)
	}
	if !out.Significant {
		t.Fatalf("steady climb should be significant")
	}
	if len(out.Bottlenecks.Entries) != 1 {
		t.Fatalf("got %d bottlenecks", len(out.Bottlenecks.Entries))
	}
	if out.PredictedChange <= 0 {
		t.Fatalf("predicted change = %v", out.PredictedChange)
	}
	for i := 1; i < len(out.Insights); i++ {
		if out.Insights[i].Deviation > out.Insights[i-1].Deviation {
			t.Fatalf("insights not ordered by deviation: %+v", out.Insights)
		}
	}
	keys := map[string]bool{}
	for _, in := range out.Insights {
		keys[in.MetricKey] = true
	}
	if !keys["predicted_change"] || !keys["forecast_fit"] {
		t.Fatalf("missing forecast insights: %v", keys)
	}
}

func TestGetConfidenceIntervals(t *testing.T) {
	e := newTestEngine(t)
	r, _ := e.PredictPerformance(context.Background(), linear(t, 8), models.HorizonShort, 0.95)

	got := e.GetConfidenceIntervals(r)
	got[0] = models.ConfidenceInterval{Lower: -1, Upper: -1}
	if r.ConfidenceIntervals[0] == got[0] {
		t.Fatalf("returned slice aliases the cached result")
	}

	bare := &models.PredictionResult{Predictions: []models.ForecastPoint{{Value: 3}, {Value: 4}}}
	ci := e.GetConfidenceIntervals(bare)
	if len(ci) != 2 || ci[1] != models.PointInterval(4) {
		t.Fatalf("degenerate intervals = %+v", ci)
	}
	if e.GetConfidenceIntervals(nil) != nil {
		t.Fatalf("nil result should give nil")
	}
}

func TestValidateStatisticalSignificance(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		p    float64
		n    int
		want bool
	}{
		{0.01, 10, true},
		{0.05, 10, false},
		{0.01, 2, false},
		{0.2, 100, false},
	}
	for _, tt := range tests {
		r := &models.PredictionResult{StatisticalSignificance: models.Significance{PValue: tt.p, SampleSize: tt.n}}
		if got := e.ValidateStatisticalSignificance(r); got != tt.want {
			t.Fatalf("p=%v n=%d: got %v", tt.p, tt.n, got)
		}
		if e.ValidateStatisticalSignificance(r) != e.ValidateStatisticalSignificance(r) {
			t.Fatalf("not deterministic")
		}
	}
	if e.ValidateStatisticalSignificance(nil) {
		t.Fatalf("nil result should not be significant")
	}
}

func TestWithHorizonExtendsVocabulary(t *testing.T) {
	e := newTestEngine(t, WithHorizon("quarter", 91))
	r, err := e.PredictPerformance(context.Background(), linear(t, 5), "quarter", 0.95)
	if err != nil {
		t.Fatalf("PredictPerformance: %v", err)
	}
	if len(r.Predictions) != 91 {
		t.Fatalf("got %d predictions", len(r.Predictions))
	}
	if _, ok := models.DefaultHorizons()["quarter"]; ok {
		t.Fatalf("engine option leaked into the default vocabulary")
	}
	if _, err := NewForecastEngine(config.DefaultAnalytics(), WithHorizon("none", 0)); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("zero-day horizon: got %v", err)
	}
}
