package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"TaskStream/internal/domain/errs"

	"github.com/labstack/echo/v4"
)

func TestFromDomainErrorStatuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errs.Validation("op", "empty"), http.StatusBadRequest},
		{errs.Configuration("op", "bad horizon"), http.StatusUnprocessableEntity},
		{errs.Computation("op", "singular"), http.StatusInternalServerError},
		{TooManyRequestsError("slow down"), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := FromDomainError(tt.err).Status; got != tt.want {
			t.Fatalf("%v: status %d, want %d", tt.err, got, tt.want)
		}
	}
	if !IsClientError(errs.Validation("op", "x")) || IsClientError(errs.Computation("op", "x")) {
		t.Fatalf("IsClientError misclassified")
	}
}

func TestAppErrorResponseHidesInternalDetail(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := AppErrorResponse(c, errs.Computation("fit", "matrix is singular")); err != nil {
		t.Fatalf("AppErrorResponse: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "singular") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
}

type sampleRequest struct {
	Metric string  `query:"metric" validate:"required"`
	Level  float64 `query:"level" default:"0.95" validate:"gt=0,lt=1"`
	Period string  `query:"period" default:"daily" validate:"oneof=hourly daily"`
}

func TestReadAndValidateRequest(t *testing.T) {
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?metric=utilization", nil), httptest.NewRecorder())
	var ok sampleRequest
	if verrs := ReadAndValidateRequest(c, &ok); verrs != nil {
		t.Fatalf("unexpected errors %+v", verrs)
	}
	if ok.Level != 0.95 || ok.Period != "daily" {
		t.Fatalf("defaults not applied: %+v", ok)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?level=2&period=yearly", nil), httptest.NewRecorder())
	var bad sampleRequest
	verrs := ReadAndValidateRequest(c, &bad)
	if len(verrs) != 3 {
		t.Fatalf("got %d errors: %+v", len(verrs), verrs)
	}
	fields := map[string]string{}
	for _, v := range verrs {
		fields[v.Field] = v.Code
	}
	if fields["metric"] != "ERR_REQUIRED" || fields["level"] != "ERR_LT" || fields["period"] != "ERR_ONEOF" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestServerRequestIDAndRecovery(t *testing.T) {
	s := NewServer([]Handler{panicHandler{}})
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("missing request id")
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["message"] != "Internal Server Error" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

type panicHandler struct{}

func (panicHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/panic", func(echo.Context) error { panic("boom") })
}
