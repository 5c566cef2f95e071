package usecase

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	domrepo "TaskStream/internal/domain/repository"
	domsvc "TaskStream/internal/domain/service"
	"TaskStream/internal/services/features"
	applogger "TaskStream/pkg/logger"
	"TaskStream/pkg/util"
)

// Calculator is the metrics calculator surface the use case needs.
type Calculator interface {
	domsvc.MetricsCalculator
	CalculateMetricsAt(metricType string, s *models.MetricSeries, level float64) (float64, models.ConfidenceInterval, error)
	AggregateByTag(s *models.MetricSeries, period models.PeriodKind, tag string) (map[string][]models.AggregationResult, error)
}

// Forecaster is the forecast engine surface the use case needs.
type Forecaster interface {
	domsvc.ForecastEngine
	PredictBottlenecksWithThreshold(data *models.MetricSeries, threshold float64) (*models.BottleneckReport, error)
}

// AnalyticsUseCase loads series from the store and runs them through the
// calculator and forecast engine.
type AnalyticsUseCase struct {
	store   domrepo.SeriesStore
	calc    Calculator
	engine  Forecaster
	alerts  domrepo.AlertPublisher
	logger  *applogger.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewAnalyticsUseCase wires the use case. alerts may be nil, in which case
// bottleneck scans are never published.
func NewAnalyticsUseCase(store domrepo.SeriesStore, calc Calculator, engine Forecaster, alerts domrepo.AlertPublisher, logger *applogger.Logger) *AnalyticsUseCase {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &AnalyticsUseCase{
		store:   store,
		calc:    calc,
		engine:  engine,
		alerts:  alerts,
		logger:  logger,
		timeout: 15 * time.Second,
		now:     time.Now,
	}
}

// SetTimeout bounds every call, including store access.
func (uc *AnalyticsUseCase) SetTimeout(d time.Duration) {
	if d > 0 {
		uc.timeout = d
	}
}

func seriesFilter(q models.SeriesQuery) (domrepo.SeriesFilter, error) {
	const op = "usecase.seriesFilter"
	f := domrepo.SeriesFilter{
		MetricType: q.Metric,
		ResourceID: q.Resource,
		Team:       q.Team,
		Project:    q.Project,
		Limit:      q.N,
	}
	if q.Metric == "" {
		return f, errs.Validation(op, "metric required")
	}
	if q.From != "" {
		t, ok := util.ParseTime(q.From)
		if !ok {
			return f, errs.Validation(op, "invalid from %q", q.From)
		}
		f.From = t
	}
	if q.To != "" {
		t, ok := util.ParseTime(q.To)
		if !ok {
			return f, errs.Validation(op, "invalid to %q", q.To)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errs.Validation(op, "from %s is after to %s", f.From.Format(time.RFC3339), f.To.Format(time.RFC3339))
	}
	return f, nil
}

func (uc *AnalyticsUseCase) load(ctx context.Context, q models.SeriesQuery) (*models.MetricSeries, error) {
	f, err := seriesFilter(q)
	if err != nil {
		return nil, err
	}
	s, err := uc.store.LoadSeries(ctx, f)
	if err != nil {
		return nil, err
	}
	if s.IsEmpty() {
		return nil, errs.Validation("usecase.load", "no %s records match the query", q.Metric)
	}
	return s, nil
}

func (uc *AnalyticsUseCase) summarize(s *models.MetricSeries, resource string, level float64) (*models.MetricsSummary, error) {
	mean, ci, err := uc.calc.CalculateMetricsAt(s.MetricType(), s, level)
	if err != nil {
		return nil, err
	}
	return &models.MetricsSummary{
		Metric:             s.MetricType(),
		ResourceID:         resource,
		Samples:            s.Len(),
		From:               s.First().Timestamp,
		To:                 s.Last().Timestamp,
		Mean:               mean,
		ConfidenceLevel:    level,
		ConfidenceInterval: ci,
		Insights:           uc.calc.GenerateMetricInsights(map[string]any{s.MetricType(): mean}),
	}, nil
}

// Metrics returns the mean and confidence interval of the queried series.
func (uc *AnalyticsUseCase) Metrics(ctx context.Context, req models.MetricsRequest) (*models.MetricsSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	s, err := uc.load(ctx, req.SeriesQuery)
	if err != nil {
		return nil, err
	}
	return uc.summarize(s, req.Resource, req.Level)
}

// Rolling returns one trailing-window aggregation per record.
func (uc *AnalyticsUseCase) Rolling(ctx context.Context, req models.RollingRequest) (*models.RollingMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	s, err := uc.load(ctx, req.SeriesQuery)
	if err != nil {
		return nil, err
	}
	seq, err := uc.calc.CalculateRollingMetrics(s, req.Window)
	if err != nil {
		return nil, err
	}
	return &models.RollingMetrics{Metric: req.Metric, Window: req.Window, Results: slices.Collect(seq)}, nil
}

// Aggregate buckets the series by calendar period, split by GroupBy when set.
func (uc *AnalyticsUseCase) Aggregate(ctx context.Context, req models.AggregateRequest) (*models.AggregatedMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	s, err := uc.load(ctx, req.SeriesQuery)
	if err != nil {
		return nil, err
	}
	period := models.NormalizePeriod(req.Period)
	out := &models.AggregatedMetrics{Metric: req.Metric, Period: period, GroupBy: req.GroupBy}
	if req.GroupBy != "" {
		out.Groups, err = uc.calc.AggregateByTag(s, period, req.GroupBy)
	} else {
		out.Buckets, err = uc.calc.CalculateAggregatedMetrics(s, period)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Forecast predicts the queried series over a named horizon.
func (uc *AnalyticsUseCase) Forecast(ctx context.Context, req models.ForecastRequest) (*models.PredictionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	s, err := uc.load(ctx, req.SeriesQuery)
	if err != nil {
		return nil, err
	}
	return uc.engine.PredictPerformance(ctx, s, models.HorizonKind(req.Horizon), req.Level)
}

// Allocation forecasts capacity units for the queried resource.
func (uc *AnalyticsUseCase) Allocation(ctx context.Context, req models.AllocationRequest) (*models.ResourceAllocationForecast, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	s, err := uc.load(ctx, req.SeriesQuery)
	if err != nil {
		return nil, err
	}
	params := map[string]any{
		"capacity":  req.Capacity,
		"headroom":  req.Headroom,
		"min_units": req.MinUnits,
	}
	if req.Resource != "" {
		params["resource_id"] = req.Resource
	}
	return uc.engine.PredictResourceAllocation(ctx, s, models.HorizonKind(req.Horizon), params)
}

// Bottlenecks scans the series for threshold breaches. A zero threshold uses the
// configured utilization threshold. Publish failures are logged, not returned.
func (uc *AnalyticsUseCase) Bottlenecks(ctx context.Context, req models.BottleneckRequest) (*models.BottleneckScan, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	s, err := uc.load(ctx, req.SeriesQuery)
	if err != nil {
		return nil, err
	}
	var report *models.BottleneckReport
	if req.Threshold > 0 {
		report, err = uc.engine.PredictBottlenecksWithThreshold(s, req.Threshold)
	} else {
		report, err = uc.engine.PredictBottlenecks(s)
	}
	if err != nil {
		return nil, err
	}
	scan := &models.BottleneckScan{Report: report}
	if req.Publish && uc.alerts != nil && report.HasBottlenecks() {
		if perr := uc.alerts.PublishBottlenecks(ctx, report); perr != nil {
			uc.logger.Warn("publish bottlenecks failed",
				applogger.String("resource_id", report.ResourceID),
				applogger.Int("entries", len(report.Entries)),
				applogger.Error(perr),
			)
		} else {
			scan.Published = true
		}
	}
	return scan, nil
}

// Insights returns the combined short-horizon forecast and bottleneck insights.
func (uc *AnalyticsUseCase) Insights(ctx context.Context, q models.SeriesQuery) (*models.PredictiveInsights, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	s, err := uc.load(ctx, q)
	if err != nil {
		return nil, err
	}
	return uc.engine.GeneratePredictiveInsights(ctx, s)
}

// InlineForecast forecasts a series supplied in the request body.
func (uc *AnalyticsUseCase) InlineForecast(ctx context.Context, req models.InlineSeriesRequest) (*models.PredictionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	s, err := features.RecordsFromRaw(req.Metric, req.Points)
	if err != nil {
		return nil, err
	}
	return uc.engine.PredictPerformance(ctx, s, models.HorizonKind(req.Horizon), req.Level)
}

// Dashboard loads the series once and computes its views concurrently. A failing
// view is reported in Errors. The call fails when the load fails or no view succeeds.
func (uc *AnalyticsUseCase) Dashboard(ctx context.Context, req models.MetricsRequest) (*models.Dashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	s, err := uc.load(ctx, req.SeriesQuery)
	if err != nil {
		return nil, err
	}

	res := &models.Dashboard{
		Metric:     req.Metric,
		ResourceID: req.Resource,
		Timestamp:  uc.now().UTC(),
		Errors:     map[string]string{},
	}

	type item struct {
		name string
		val  interface{}
		err  error
	}
	ch := make(chan item, 4)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.summarize(s, req.Resource, req.Level)
		ch <- item{"summary", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.calc.CalculateAggregatedMetrics(s, models.PeriodDaily)
		ch <- item{"daily", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.engine.PredictPerformance(ctx, s, models.HorizonMedium, req.Level)
		ch <- item{"forecast", v, err}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := uc.engine.GeneratePredictiveInsights(ctx, s)
		ch <- item{"insights", v, err}
	}()

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
			continue
		}
		switch it.name {
		case "summary":
			res.Summary = it.val.(*models.MetricsSummary)
		case "daily":
			res.Daily = it.val.([]models.AggregationResult)
		case "forecast":
			res.Forecast = it.val.(*models.PredictionResult)
		case "insights":
			res.Insights = it.val.(*models.PredictiveInsights)
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	if res.Summary == nil && res.Daily == nil && res.Forecast == nil && res.Insights == nil {
		return nil, fmt.Errorf("dashboard %s: every view failed: %v", req.Metric, res.Errors)
	}
	return res, nil
}

// Health checks the series store.
func (uc *AnalyticsUseCase) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	return uc.store.Health(ctx)
}
