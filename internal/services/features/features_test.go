package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
)

func TestMoments(t *testing.T) {
	mean, variance := Moments([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Fatalf("mean = %v", mean)
	}
	if math.Abs(variance-32.0/7.0) > 1e-12 {
		t.Fatalf("variance = %v", variance)
	}
	if m, v := Moments([]float64{3}); m != 3 || v != 0 {
		t.Fatalf("single value moments = %v %v", m, v)
	}
}

func TestSummarize(t *testing.T) {
	res := Summarize(models.PeriodDaily, time.Time{}, time.Time{}, []float64{5, 8, 10})
	if res.Sum != 23 || res.Min != 5 || res.Max != 10 || res.Count != 3 {
		t.Fatalf("unexpected %+v", res)
	}
	if math.Abs(res.Mean-23.0/3.0) > 1e-12 {
		t.Fatalf("mean = %v", res.Mean)
	}
}

func TestPercentile(t *testing.T) {
	vals := make([]float64, 100)
	for i := range vals {
		vals[99-i] = float64(i + 1)
	}
	if got := Percentile(vals, 0.95); got != 95 {
		t.Fatalf("p95 = %v", got)
	}
	if got := Percentile(vals, 0.5); got != 50 {
		t.Fatalf("p50 = %v", got)
	}
	if vals[0] != 100 {
		t.Fatalf("Percentile must not reorder its input")
	}
}

func TestMedianStep(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(time.Hour), base.Add(2 * time.Hour), base.Add(10 * time.Hour)}
	if got := MedianStep(times); got != time.Hour {
		t.Fatalf("MedianStep = %v", got)
	}
	if MedianStep(times[:1]) != 0 {
		t.Fatalf("single timestamp has no step")
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"7D", 7 * day},
		{"7d", 7 * day},
		{"12H", 12 * time.Hour},
		{"2W", 14 * day},
		{"1M", 30 * day},
		{"1Q", 91 * day},
		{"2562047H", 2562047 * time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseWindow(tt.in)
		if err != nil {
			t.Fatalf("ParseWindow(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseWindow(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "D", "7", "7X", "0D", "-1D", "sevenD", "2562048H", "3000000H", "9223372036854775807D", "99999999999999999999D"} {
		if _, err := ParseWindow(bad); !errors.Is(err, errs.ErrConfiguration) {
			t.Fatalf("ParseWindow(%q): want configuration error, got %v", bad, err)
		}
	}
}

func TestAlignToPeriod(t *testing.T) {
	ts := time.Date(2024, 11, 20, 8, 30, 0, 0, time.UTC)
	start, end, err := AlignToPeriod(ts, models.PeriodQuarterly)
	if err != nil {
		t.Fatalf("AlignToPeriod: %v", err)
	}
	if !start.Equal(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("quarter window = %v..%v", start, end)
	}
	start, end, _ = AlignToPeriod(ts, models.PeriodWeekly)
	if start.Weekday() != time.Monday || end.Sub(start) != 7*day {
		t.Fatalf("week window = %v..%v", start, end)
	}
	if _, _, err := AlignToPeriod(ts, "yearly"); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestRecordsFromRaw(t *testing.T) {
	points := []map[string]any{
		{"timestamp": "2024-01-02T00:00:00Z", "value": 2.0, "tags": map[string]any{"team": "core"}},
		{"timestamp": float64(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()), "value": 1},
	}
	s, err := RecordsFromRaw("velocity", points)
	if err != nil {
		t.Fatalf("RecordsFromRaw: %v", err)
	}
	if s.Len() != 2 || s.First().Value != 1 || s.Last().Tag("team") != "core" {
		t.Fatalf("unexpected series %v", s.Records())
	}

	bad := [][]map[string]any{
		nil,
		{{"timestamp": "2024-01-01", "value": "high"}},
		{{"value": 1.0}},
		{{"timestamp": "2024-01-01", "value": 1.0, "tags": map[string]any{"n": 1}}},
		{{"timestamp": "2024-01-01", "value": math.NaN()}},
	}
	for i, pts := range bad {
		if _, err := RecordsFromRaw("velocity", pts); !errors.Is(err, errs.ErrDataValidation) {
			t.Fatalf("case %d: want validation error, got %v", i, err)
		}
	}
}

func TestToFloatSkipsNonNumeric(t *testing.T) {
	for _, v := range []any{"1", true, nil, map[string]any{}, math.Inf(1)} {
		if _, ok := ToFloat(v); ok {
			t.Fatalf("ToFloat(%v) should be rejected", v)
		}
	}
	if f, ok := ToFloat(uint16(7)); !ok || f != 7 {
		t.Fatalf("ToFloat(uint16) = %v %v", f, ok)
	}
}
