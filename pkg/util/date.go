package util

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime tries ISO-8601 layouts, then epoch milliseconds. Returns (t, true) if any worked.
// Layouts without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && !math.IsInf(f, 0) {
		return EpochMillis(f), true
	}
	return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
	if t, ok := ParseTime(s); ok {
		return t
	}
	return def
}

// EpochMillis converts fractional epoch milliseconds to UTC time.
func EpochMillis(ms float64) time.Time {
	whole := math.Floor(ms)
	nanos := int64((ms - whole) * float64(time.Millisecond))
	return time.UnixMilli(int64(whole)).Add(time.Duration(nanos)).UTC()
}

// ParseAnyTime accepts a decoded JSON value: an ISO-8601 string, epoch milliseconds
// as a number or numeric string, or a time.Time.
func ParseAnyTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), nil
	case string:
		if t, ok := ParseTime(x); ok {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("unparseable timestamp %q", x)
	case json.Number:
		return ParseAnyTime(x.String())
	case float64:
		if x <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return time.Time{}, fmt.Errorf("invalid epoch milliseconds %v", x)
		}
		return EpochMillis(x), nil
	case int64:
		if x <= 0 {
			return time.Time{}, fmt.Errorf("invalid epoch milliseconds %d", x)
		}
		return time.UnixMilli(x).UTC(), nil
	case int:
		return ParseAnyTime(int64(x))
	case nil:
		return time.Time{}, fmt.Errorf("timestamp is required")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// TruncateUTC aligns t to the start of its calendar bucket in UTC.
// unit is one of hour, day, week (Monday), month, quarter.
func TruncateUTC(t time.Time, unit string) (time.Time, bool) {
	t = t.UTC()
	switch unit {
	case "hour":
		return t.Truncate(time.Hour), true
	case "day":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	case "week":
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
		return d.AddDate(0, 0, -offset), true
	case "month":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), true
	case "quarter":
		q := (int(t.Month()) - 1) / 3
		return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC), true
	default:
		return time.Time{}, false
	}
}
