package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	"TaskStream/internal/service/cache"
	"TaskStream/internal/service/metrics"
	"TaskStream/internal/service/ratelimit"
	xhttp "TaskStream/pkg/http"
	xlogger "TaskStream/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AnalyticsService is what the HTTP layer calls into.
type AnalyticsService interface {
	Metrics(ctx context.Context, req models.MetricsRequest) (*models.MetricsSummary, error)
	Rolling(ctx context.Context, req models.RollingRequest) (*models.RollingMetrics, error)
	Aggregate(ctx context.Context, req models.AggregateRequest) (*models.AggregatedMetrics, error)
	Forecast(ctx context.Context, req models.ForecastRequest) (*models.PredictionResult, error)
	Allocation(ctx context.Context, req models.AllocationRequest) (*models.ResourceAllocationForecast, error)
	Bottlenecks(ctx context.Context, req models.BottleneckRequest) (*models.BottleneckScan, error)
	Insights(ctx context.Context, q models.SeriesQuery) (*models.PredictiveInsights, error)
	InlineForecast(ctx context.Context, req models.InlineSeriesRequest) (*models.PredictionResult, error)
	Dashboard(ctx context.Context, req models.MetricsRequest) (*models.Dashboard, error)
	Health(ctx context.Context) error
}

// AnalyticsEchoHandler serves the analytics API.
type AnalyticsEchoHandler struct {
	logger  *xlogger.Logger
	uc      AnalyticsService
	limiter *ratelimit.Limiter
	cache   *cache.ResponseCache
}

// NewAnalyticsEchoHandler builds the handler. limiter and responses may be nil.
func NewAnalyticsEchoHandler(logger *xlogger.Logger, uc AnalyticsService, limiter *ratelimit.Limiter, responses *cache.ResponseCache) *AnalyticsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	metrics.Register()
	return &AnalyticsEchoHandler{logger: logger, uc: uc, limiter: limiter, cache: responses}
}

func (h *AnalyticsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api/analytics", h.rateLimit)
	g.GET("/metrics", h.Metrics)
	g.GET("/rolling", h.Rolling)
	g.GET("/aggregate", h.Aggregate)
	g.GET("/forecast", h.Forecast)
	g.GET("/allocation", h.Allocation)
	g.GET("/bottlenecks", h.Bottlenecks)
	g.GET("/insights", h.Insights)
	g.GET("/dashboard", h.Dashboard)
	g.POST("/series/forecast", h.InlineForecast)
}

func (h *AnalyticsEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.limiter == nil || h.limiter.Allow(c.RealIP()) {
			return next(c)
		}
		metrics.RateLimited.WithLabelValues(c.Path()).Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
	}
}

// respond runs fn and writes its result. Cacheable calls are served through the
// response cache keyed by path and normalized query.
func (h *AnalyticsEchoHandler) respond(c echo.Context, endpoint string, cacheable bool, fn func(ctx context.Context) (interface{}, error)) error {
	start := time.Now()
	defer func() {
		metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	fill := func(ctx context.Context) ([]byte, error) {
		res, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(xhttp.APIResponse{
			Status:  http.StatusOK,
			Message: http.StatusText(http.StatusOK),
			Data:    res,
		})
	}

	ctx := c.Request().Context()
	var (
		body []byte
		hit  bool
		err  error
	)
	if cacheable {
		body, hit, err = h.cache.Remember(ctx, responseKey(c), fill)
	} else {
		body, err = fill(ctx)
	}
	if err != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint, errs.KindOf(err).String()).Inc()
		if xhttp.IsClientError(err) {
			h.logger.Debug(endpoint+" rejected", xlogger.Error(err))
		} else {
			h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	if hit {
		metrics.ResponseCacheHits.WithLabelValues(endpoint).Inc()
		c.Response().Header().Set("X-Cache", "HIT")
	}
	return xhttp.CachedResponse(c, body)
}

func responseKey(c echo.Context) string {
	return "analytics:" + c.Request().URL.Path + "?" + c.QueryParams().Encode()
}

func (h *AnalyticsEchoHandler) Metrics(c echo.Context) error {
	req := &models.MetricsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, "metrics", true, func(ctx context.Context) (interface{}, error) {
		return h.uc.Metrics(ctx, *req)
	})
}

func (h *AnalyticsEchoHandler) Rolling(c echo.Context) error {
	req := &models.RollingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, "rolling", true, func(ctx context.Context) (interface{}, error) {
		return h.uc.Rolling(ctx, *req)
	})
}

func (h *AnalyticsEchoHandler) Aggregate(c echo.Context) error {
	req := &models.AggregateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, "aggregate", true, func(ctx context.Context) (interface{}, error) {
		return h.uc.Aggregate(ctx, *req)
	})
}

func (h *AnalyticsEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, "forecast", true, func(ctx context.Context) (interface{}, error) {
		return h.uc.Forecast(ctx, *req)
	})
}

func (h *AnalyticsEchoHandler) Allocation(c echo.Context) error {
	req := &models.AllocationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, "allocation", true, func(ctx context.Context) (interface{}, error) {
		return h.uc.Allocation(ctx, *req)
	})
}

// Bottlenecks is not cached when publishing, so every publish request reaches Kafka.
func (h *AnalyticsEchoHandler) Bottlenecks(c echo.Context) error {
	req := &models.BottleneckRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, "bottlenecks", !req.Publish, func(ctx context.Context) (interface{}, error) {
		return h.uc.Bottlenecks(ctx, *req)
	})
}

func (h *AnalyticsEchoHandler) Insights(c echo.Context) error {
	req := &models.SeriesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, "insights", true, func(ctx context.Context) (interface{}, error) {
		return h.uc.Insights(ctx, *req)
	})
}

func (h *AnalyticsEchoHandler) Dashboard(c echo.Context) error {
	req := &models.MetricsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, "dashboard", true, func(ctx context.Context) (interface{}, error) {
		return h.uc.Dashboard(ctx, *req)
	})
}

func (h *AnalyticsEchoHandler) InlineForecast(c echo.Context) error {
	req := &models.InlineSeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, "inline_forecast", false, func(ctx context.Context) (interface{}, error) {
		return h.uc.InlineForecast(ctx, *req)
	})
}

func (h *AnalyticsEchoHandler) Health(c echo.Context) error {
	if err := h.uc.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
