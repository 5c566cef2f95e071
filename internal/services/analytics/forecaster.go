package analytics

import (
	"context"
	"maps"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	domrepo "TaskStream/internal/domain/repository"
	domsvc "TaskStream/internal/domain/service"
	"TaskStream/internal/service/cache"
	"TaskStream/internal/services/features"
	"TaskStream/internal/services/stats"
	"TaskStream/pkg/config"
	applogger "TaskStream/pkg/logger"
	"TaskStream/pkg/metrics"
)

const (
	opPerformance = "performance"
	opAllocation  = "allocation"
)

// PredictionStore memoizes forecasts by key. *cache.PredictionCache satisfies it.
type PredictionStore interface {
	GetOrCompute(op, key string, ttl time.Duration, fn func() (any, error)) (any, bool, error)
	Close() error
}

var _ PredictionStore = (*cache.PredictionCache)(nil)

// EngineOption configures ForecastEngine.
type EngineOption func(*ForecastEngine)

// WithCache replaces the engine-owned prediction cache.
func WithCache(c PredictionStore) EngineOption {
	return func(e *ForecastEngine) { e.cache = c }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *ForecastEngine) { e.now = now }
}

func WithLogger(l *applogger.Logger) EngineOption {
	return func(e *ForecastEngine) { e.log = l }
}

func WithMetrics(m domrepo.Metrics) EngineOption {
	return func(e *ForecastEngine) { e.metrics = m }
}

// WithModel sets the primary trend model.
func WithModel(m TrendModel) EngineOption {
	return func(e *ForecastEngine) { e.model = m }
}

// WithFallbackModel sets the model tried once when the primary fails to fit.
func WithFallbackModel(m TrendModel) EngineOption {
	return func(e *ForecastEngine) { e.fallback = m }
}

// WithHorizon adds or overrides a named horizon for this engine.
func WithHorizon(name models.HorizonKind, days int) EngineOption {
	return func(e *ForecastEngine) { e.horizons[name] = days }
}

// ForecastEngine produces trend forecasts with prediction intervals, resource
// allocation projections and bottleneck reports. Safe for concurrent use.
type ForecastEngine struct {
	cfg       config.AnalyticsConfig
	validator *stats.Validator
	insights  *InsightGenerator
	horizons  map[models.HorizonKind]int

	cache    PredictionStore
	now      func() time.Time
	log      *applogger.Logger
	metrics  domrepo.Metrics
	model    TrendModel
	fallback TrendModel
}

var _ domsvc.ForecastEngine = (*ForecastEngine)(nil)

func NewForecastEngine(cfg config.AnalyticsConfig, opts ...EngineOption) (*ForecastEngine, error) {
	const op = "analytics.NewForecastEngine"
	if err := cfg.Validate(); err != nil {
		return nil, errs.E(errs.KindConfiguration, op, err)
	}
	v, err := stats.NewValidator(
		stats.WithThreshold(cfg.StatisticalThreshold),
		stats.WithMinSampleSize(cfg.MinSampleSize),
		stats.WithLargeSampleCutoff(cfg.LargeSampleCutoff),
	)
	if err != nil {
		return nil, err
	}
	e := &ForecastEngine{
		cfg:       cfg,
		validator: v,
		insights:  NewInsightGenerator(cfg),
		horizons:  models.DefaultHorizons(),
		now:       time.Now,
		log:       applogger.Nop(),
		metrics:   metrics.Nop{},
		model:     LinearTrend{},
		fallback:  MeanModel{},
	}
	for _, opt := range opts {
		opt(e)
	}
	for name, days := range e.horizons {
		if days <= 0 {
			return nil, errs.Configuration(op, "horizon %q must cover at least one day, got %d", name, days)
		}
	}
	if e.cache == nil {
		c, err := cache.NewPredictionCache(
			cache.WithMaxEntries(cfg.CacheMaxEntries),
			cache.WithDefaultTTL(cfg.CacheTTL()),
			cache.WithSweepInterval(cfg.CacheSweepInterval),
			cache.WithNow(e.now),
			cache.WithCacheLogger(e.log),
			cache.WithCacheMetrics(e.metrics),
		)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}
	return e, nil
}

// Horizons returns a copy of the engine's horizon vocabulary.
func (e *ForecastEngine) Horizons() map[models.HorizonKind]int {
	return maps.Clone(e.horizons)
}

// Close stops the cache sweeper and drops cached results.
func (e *ForecastEngine) Close() error {
	return e.cache.Close()
}

func (e *ForecastEngine) horizonDays(op string, h models.HorizonKind) (int, error) {
	days, ok := e.horizons[h]
	if !ok {
		return 0, errs.Configuration(op, "unknown horizon %q", h)
	}
	return days, nil
}

// memoize runs compute through the cache. Cache failures are logged and the value is
// computed directly.
func (e *ForecastEngine) memoize(op, key string, compute func() (any, error)) (any, error) {
	v, _, err := e.cache.GetOrCompute(op, key, e.cfg.CacheTTL(), compute)
	if err == nil {
		return v, nil
	}
	if errs.KindOf(err) != errs.KindCache {
		return nil, err
	}
	e.metrics.RecordError(errs.KindCache.String())
	e.log.Warn("prediction cache failed, computing directly",
		applogger.String("op", op),
		applogger.Error(err),
	)
	return compute()
}

// PredictPerformance forecasts data one point per day over horizon with prediction
// intervals at level. Repeated calls with equal content return the same result.
func (e *ForecastEngine) PredictPerformance(ctx context.Context, data *models.MetricSeries, horizon models.HorizonKind, level float64) (*models.PredictionResult, error) {
	const op = "analytics.PredictPerformance"
	if err := requireSeries(op, data); err != nil {
		return nil, err
	}
	days, err := e.horizonDays(op, horizon)
	if err != nil {
		return nil, err
	}
	if err := stats.CheckLevel(op, level); err != nil {
		return nil, err
	}
	key, err := Fingerprint(opPerformance, data, horizon, days, level, nil)
	if err != nil {
		return nil, errs.E(errs.KindDataValidation, op, err)
	}

	// The shared computation never sees a caller's context.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := e.now()
	defer func() { e.metrics.RecordLatency(opPerformance, e.now().Sub(start).Seconds()) }()

	compute := func() (any, error) {
		r, err := e.forecast(data, horizon, days, level)
		if err != nil {
			return nil, err
		}
		r.CacheKey = key
		return r, nil
	}
	v, err := e.memoize(opPerformance, key, compute)
	if err != nil {
		return nil, err
	}
	r, ok := v.(*models.PredictionResult)
	if !ok {
		e.log.Warn("prediction cache returned unexpected type", applogger.String("key", key))
		e.metrics.RecordError(errs.KindCache.String())
		v, err = compute()
		if err != nil {
			return nil, err
		}
		r = v.(*models.PredictionResult)
	}
	return r, nil
}

// forecast fits the primary model, falling back once on a computation error.
func (e *ForecastEngine) forecast(data *models.MetricSeries, horizon models.HorizonKind, days int, level float64) (*models.PredictionResult, error) {
	r, err := e.project(e.model, data, horizon, days, level)
	if err == nil {
		return r, nil
	}
	if errs.KindOf(err) != errs.KindComputation || e.fallback == nil {
		return nil, err
	}
	e.metrics.RecordFallback(opPerformance)
	e.log.Warn("trend model failed, using fallback",
		applogger.String("model", e.model.Name()),
		applogger.String("fallback", e.fallback.Name()),
		applogger.Int("samples", data.Len()),
		applogger.Error(err),
	)
	return e.project(e.fallback, data, horizon, days, level)
}

func (e *ForecastEngine) project(m TrendModel, data *models.MetricSeries, horizon models.HorizonKind, days int, level float64) (*models.PredictionResult, error) {
	origin := data.First().Timestamp
	last := data.Last().Timestamp
	fit, err := m.Fit(features.DaysSince(origin, data.Times()), data.Values())
	if err != nil {
		return nil, err
	}

	r := &models.PredictionResult{
		Predictions:         make([]models.ForecastPoint, 0, days),
		ConfidenceIntervals: make([]models.ConfidenceInterval, 0, days),
		Horizon:             horizon,
		ConfidenceLevel:     level,
		Model:               fit.Model,
		RSquared:            fit.RSquared,
		LastObserved:        data.Last().Value,
		GeneratedAt:         e.now(),
	}
	for d := 1; d <= days; d++ {
		ts := last.AddDate(0, 0, d)
		x := ts.Sub(origin).Hours() / 24
		est := fit.Estimate(x)
		ci, err := e.validator.PredictionInterval(est, fit.ResidualSE, fit.Leverage(x), fit.DF, level)
		if err != nil {
			return nil, err
		}
		r.Predictions = append(r.Predictions, models.ForecastPoint{Timestamp: ts, Value: est})
		r.ConfidenceIntervals = append(r.ConfidenceIntervals, ci)
	}

	if fit.Model == ModelMean {
		r.StatisticalSignificance = models.Significance{PValue: 1, SampleSize: fit.N}
	} else {
		r.StatisticalSignificance = e.validator.SlopeSignificance(fit.Slope, fit.SlopeSE, fit.DF, fit.N)
		if fit.RSquared < e.cfg.ValidationThreshold {
			e.log.Warn("forecast fit below validation threshold",
				applogger.String("metric", data.MetricType()),
				applogger.Float("r_squared", fit.RSquared),
				applogger.Float("threshold", e.cfg.ValidationThreshold),
			)
		}
	}
	e.metrics.RecordComputation(opPerformance, fit.Model)
	return r, nil
}

type allocationParams struct {
	ResourceID string
	Capacity   float64
	Headroom   float64
	MinUnits   float64
}

func parseAllocationParams(op string, params map[string]any) (allocationParams, error) {
	p := allocationParams{Capacity: 1}
	if raw, ok := params["resource_id"]; ok {
		s, ok := raw.(string)
		if !ok {
			return p, errs.Configuration(op, "resource_id must be a string, got %T", raw)
		}
		p.ResourceID = s
	}
	for name, dst := range map[string]*float64{"capacity": &p.Capacity, "headroom": &p.Headroom, "min_units": &p.MinUnits} {
		raw, ok := params[name]
		if !ok {
			continue
		}
		f, ok := features.ToFloat(raw)
		if !ok {
			return p, errs.Configuration(op, "%s must be numeric, got %T", name, raw)
		}
		*dst = f
	}
	if p.Capacity <= 0 {
		return p, errs.Configuration(op, "capacity must be positive, got %v", p.Capacity)
	}
	if p.Headroom < 0 {
		return p, errs.Configuration(op, "headroom must be non-negative, got %v", p.Headroom)
	}
	if p.MinUnits < 0 {
		return p, errs.Configuration(op, "min_units must be non-negative, got %v", p.MinUnits)
	}
	return p, nil
}

// PredictResourceAllocation projects units needed per day: the performance forecast
// scaled by capacity and headroom, floored at min_units.
func (e *ForecastEngine) PredictResourceAllocation(ctx context.Context, data *models.MetricSeries, horizon models.HorizonKind, params map[string]any) (*models.ResourceAllocationForecast, error) {
	const op = "analytics.PredictResourceAllocation"
	if err := requireSeries(op, data); err != nil {
		return nil, err
	}
	days, err := e.horizonDays(op, horizon)
	if err != nil {
		return nil, err
	}
	p, err := parseAllocationParams(op, params)
	if err != nil {
		return nil, err
	}
	if p.ResourceID == "" {
		p.ResourceID = resourceOf(data)
	}
	level := e.cfg.ConfidenceLevel
	key, err := Fingerprint(opAllocation, data, horizon, days, level, params)
	if err != nil {
		return nil, errs.E(errs.KindConfiguration, op, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := e.now()
	defer func() { e.metrics.RecordLatency(opAllocation, e.now().Sub(start).Seconds()) }()

	compute := func() (any, error) {
		f, err := e.forecast(data, horizon, days, level)
		if err != nil {
			return nil, err
		}
		scale := p.Capacity * (1 + p.Headroom)
		out := &models.ResourceAllocationForecast{
			ResourceID:          p.ResourceID,
			Horizon:             horizon,
			AllocationForecast:  make([]models.ForecastPoint, len(f.Predictions)),
			ConfidenceIntervals: make([]models.ConfidenceInterval, len(f.ConfidenceIntervals)),
			Model:               f.Model,
			GeneratedAt:         f.GeneratedAt,
			CacheKey:            key,
		}
		for i, pt := range f.Predictions {
			units := pt.Value * scale
			if units < p.MinUnits {
				units = p.MinUnits
			}
			out.AllocationForecast[i] = models.ForecastPoint{Timestamp: pt.Timestamp, Value: units}
			ci := f.ConfidenceIntervals[i]
			out.ConfidenceIntervals[i] = models.ConfidenceInterval{Lower: ci.Lower * scale, Upper: ci.Upper * scale}.Clamp(p.MinUnits)
		}
		e.metrics.RecordComputation(opAllocation, f.Model)
		return out, nil
	}
	v, err := e.memoize(opAllocation, key, compute)
	if err != nil {
		return nil, err
	}
	r, ok := v.(*models.ResourceAllocationForecast)
	if !ok {
		e.log.Warn("prediction cache returned unexpected type", applogger.String("key", key))
		e.metrics.RecordError(errs.KindCache.String())
		v, err = compute()
		if err != nil {
			return nil, err
		}
		r = v.(*models.ResourceAllocationForecast)
	}
	return r, nil
}

// GeneratePredictiveInsights combines a short-horizon forecast with bottleneck
// detection into one payload.
func (e *ForecastEngine) GeneratePredictiveInsights(ctx context.Context, data *models.MetricSeries) (*models.PredictiveInsights, error) {
	r, err := e.PredictPerformance(ctx, data, models.HorizonShort, e.cfg.ConfidenceLevel)
	if err != nil {
		return nil, err
	}
	report, err := e.PredictBottlenecks(data)
	if err != nil {
		return nil, err
	}
	significant := e.ValidateStatisticalSignificance(r)
	return &models.PredictiveInsights{
		Forecast:        r,
		Intervals:       e.GetConfidenceIntervals(r),
		Significant:     significant,
		PredictedChange: PredictedChange(r),
		Bottlenecks:     report,
		Insights:        e.insights.FromForecast(r, significant, report),
	}, nil
}

// GetConfidenceIntervals returns a copy of r's intervals. When they are missing or
// misaligned with the predictions, degenerate intervals at each point are returned.
func (e *ForecastEngine) GetConfidenceIntervals(r *models.PredictionResult) []models.ConfidenceInterval {
	if r == nil {
		return nil
	}
	if len(r.ConfidenceIntervals) == len(r.Predictions) && len(r.Predictions) > 0 {
		out := make([]models.ConfidenceInterval, len(r.ConfidenceIntervals))
		copy(out, r.ConfidenceIntervals)
		return out
	}
	out := make([]models.ConfidenceInterval, len(r.Predictions))
	for i, p := range r.Predictions {
		out[i] = models.PointInterval(p.Value)
	}
	return out
}

// ValidateStatisticalSignificance reports whether r's trend clears the configured
// p-value threshold on enough samples.
func (e *ForecastEngine) ValidateStatisticalSignificance(r *models.PredictionResult) bool {
	if r == nil {
		return false
	}
	return e.validator.IsSignificant(r.StatisticalSignificance.PValue, r.StatisticalSignificance.SampleSize)
}
