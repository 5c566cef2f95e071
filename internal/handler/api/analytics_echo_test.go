package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	"TaskStream/internal/service/cache"
	"TaskStream/internal/service/ratelimit"

	"github.com/labstack/echo/v4"
)

// fakeService answers the endpoints under test; the rest panic through the nil
// embedded interface.
type fakeService struct {
	AnalyticsService
	calls     atomic.Int32
	lastQuery models.MetricsRequest
	err       error
	healthErr error
}

func (f *fakeService) Metrics(_ context.Context, req models.MetricsRequest) (*models.MetricsSummary, error) {
	f.calls.Add(1)
	f.lastQuery = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.MetricsSummary{Metric: req.Metric, Samples: 3, Mean: 0.6, ConfidenceLevel: req.Level}, nil
}

func (f *fakeService) InlineForecast(_ context.Context, req models.InlineSeriesRequest) (*models.PredictionResult, error) {
	f.calls.Add(1)
	return &models.PredictionResult{Horizon: models.HorizonKind(req.Horizon), Model: "linear_trend"}, nil
}

func (f *fakeService) Bottlenecks(_ context.Context, req models.BottleneckRequest) (*models.BottleneckScan, error) {
	f.calls.Add(1)
	return &models.BottleneckScan{Report: &models.BottleneckReport{Threshold: req.Threshold}, Published: req.Publish}, nil
}

func (f *fakeService) Health(context.Context) error { return f.healthErr }

func newTestServer(svc AnalyticsService, limiter *ratelimit.Limiter) *echo.Echo {
	responses := cache.NewResponseCache(cache.NewBytesTTLCache(64), time.Minute)
	e := echo.New()
	NewAnalyticsEchoHandler(nil, svc, limiter, responses).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestMetricsAppliesDefaultsAndCaches(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc, nil)

	rec := do(e, http.MethodGet, "/api/analytics/metrics?metric=utilization&resource=db-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastQuery.Level != 0.95 || svc.lastQuery.N != 1000 || svc.lastQuery.Resource != "db-1" {
		t.Fatalf("defaults not applied: %+v", svc.lastQuery)
	}
	var summary models.MetricsSummary
	if err := json.Unmarshal(decode(t, rec).Data, &summary); err != nil || summary.Mean != 0.6 {
		t.Fatalf("unexpected data %s (%v)", rec.Body.String(), err)
	}

	// Same query in a different order hits the cache.
	rec = do(e, http.MethodGet, "/api/analytics/metrics?resource=db-1&metric=utilization", "")
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected cache hit, got %d %v", rec.Code, rec.Header())
	}
	if svc.calls.Load() != 1 {
		t.Fatalf("usecase called %d times", svc.calls.Load())
	}
}

func TestMetricsValidation(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc, nil)

	rec := do(e, http.MethodGet, "/api/analytics/metrics?level=1.5", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_REQUIRED") || !strings.Contains(rec.Body.String(), "ERR_LT") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if svc.calls.Load() != 0 {
		t.Fatalf("usecase should not run")
	}
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.Validation("usecase.load", "no utilization records match the query"), http.StatusBadRequest},
		{errs.Configuration("analytics.PredictPerformance", "unknown horizon"), http.StatusUnprocessableEntity},
		{errs.Computation("analytics.forecast", "singular"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		e := newTestServer(&fakeService{err: tt.err}, nil)
		rec := do(e, http.MethodGet, "/api/analytics/metrics?metric=utilization", "")
		if rec.Code != tt.want {
			t.Fatalf("%v: status %d, want %d", tt.err, rec.Code, tt.want)
		}
		if env := decode(t, rec); env.Status != tt.want {
			t.Fatalf("envelope status %d", env.Status)
		}
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	svc := &fakeService{err: errs.Computation("op", "boom")}
	e := newTestServer(svc, nil)
	for range 2 {
		do(e, http.MethodGet, "/api/analytics/metrics?metric=utilization", "")
	}
	if svc.calls.Load() != 2 {
		t.Fatalf("failed responses must not be cached, calls=%d", svc.calls.Load())
	}
}

func TestPublishingBottlenecksBypassesCache(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc, nil)
	for range 2 {
		rec := do(e, http.MethodGet, "/api/analytics/bottlenecks?metric=utilization&publish=true", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d", rec.Code)
		}
	}
	if svc.calls.Load() != 2 {
		t.Fatalf("publish requests were cached, calls=%d", svc.calls.Load())
	}
}

func TestInlineForecastBody(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc, nil)

	body := `{"metric":"velocity","points":[{"timestamp":"2024-03-01T00:00:00Z","value":1}]}`
	rec := do(e, http.MethodPost, "/api/analytics/series/forecast", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var r models.PredictionResult
	if err := json.Unmarshal(decode(t, rec).Data, &r); err != nil || r.Horizon != models.HorizonShort {
		t.Fatalf("default horizon not applied: %s", rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/api/analytics/series/forecast", `{"metric":"velocity","points":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty points: status %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	svc := &fakeService{}
	e := newTestServer(svc, ratelimit.New(0.001, 1))

	if rec := do(e, http.MethodGet, "/api/analytics/metrics?metric=utilization", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request: %d", rec.Code)
	}
	rec := do(e, http.MethodGet, "/api/analytics/metrics?metric=utilization", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health should not be limited: %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	e := newTestServer(&fakeService{healthErr: errors.New("clickhouse down")}, nil)
	rec := do(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rec.Code)
	}
}
