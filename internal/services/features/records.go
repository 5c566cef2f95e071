package features

import (
	"encoding/json"
	"fmt"
	"math"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	"TaskStream/pkg/util"
)

// ToFloat extracts a finite float from numeric kinds. Strings, bools and NaN are rejected.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// RecordsFromRaw converts decoded JSON points {timestamp, value, tags?} into a series.
func RecordsFromRaw(metricType string, points []map[string]any) (*models.MetricSeries, error) {
	const op = "features.RecordsFromRaw"
	if len(points) == 0 {
		return nil, errs.Validation(op, "no points")
	}
	recs := make([]models.MetricRecord, 0, len(points))
	for i, p := range points {
		if p == nil {
			return nil, errs.Validation(op, "point %d is null", i)
		}
		ts, err := util.ParseAnyTime(p["timestamp"])
		if err != nil {
			return nil, errs.Validation(op, "point %d: %v", i, err)
		}
		val, ok := ToFloat(p["value"])
		if !ok {
			return nil, errs.Validation(op, "point %d: value must be a finite number", i)
		}
		tags, err := rawTags(p["tags"])
		if err != nil {
			return nil, errs.Validation(op, "point %d: %v", i, err)
		}
		recs = append(recs, models.NewMetricRecord(ts, metricType, val, tags))
	}
	return models.NewMetricSeries(metricType, recs)
}

func rawTags(v any) (map[string]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return x, nil
	case map[string]any:
		out := make(map[string]string, len(x))
		for k, tv := range x {
			s, ok := tv.(string)
			if !ok {
				return nil, fmt.Errorf("tag %q must be a string", k)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tags must be an object")
	}
}
