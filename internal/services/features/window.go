package features

import (
	"math"
	"strconv"
	"strings"
	"time"

	"TaskStream/internal/domain/errs"
	"TaskStream/internal/domain/models"
	"TaskStream/pkg/util"
)

const day = 24 * time.Hour

// windowUnits maps token suffixes to durations. M and Q are fixed-length approximations.
var windowUnits = map[string]time.Duration{
	"H": time.Hour,
	"D": day,
	"W": 7 * day,
	"M": 30 * day,
	"Q": 91 * day,
}

// ParseWindow parses a rolling-window token such as "7D", "12H" or "1Q".
func ParseWindow(token string) (time.Duration, error) {
	const op = "features.ParseWindow"
	tok := strings.ToUpper(strings.TrimSpace(token))
	if len(tok) < 2 {
		return 0, errs.Configuration(op, "invalid window %q", token)
	}
	unit, ok := windowUnits[tok[len(tok)-1:]]
	if !ok {
		return 0, errs.Configuration(op, "unknown window unit in %q", token)
	}
	n, err := strconv.ParseInt(tok[:len(tok)-1], 10, 64)
	if err != nil {
		return 0, errs.Configuration(op, "invalid window count in %q", token)
	}
	if n <= 0 {
		return 0, errs.Configuration(op, "window must be positive, got %q", token)
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, errs.Configuration(op, "window %q is too large", token)
	}
	return time.Duration(n) * unit, nil
}

// AlignToPeriod returns the calendar window [start, end) in UTC containing t.
func AlignToPeriod(t time.Time, period models.PeriodKind) (start, end time.Time, err error) {
	var unit string
	switch period {
	case models.PeriodHourly:
		unit = "hour"
	case models.PeriodDaily:
		unit = "day"
	case models.PeriodWeekly:
		unit = "week"
	case models.PeriodMonthly:
		unit = "month"
	case models.PeriodQuarterly:
		unit = "quarter"
	default:
		return time.Time{}, time.Time{}, errs.Configuration("features.AlignToPeriod", "unknown period %q", period)
	}
	start, _ = util.TruncateUTC(t, unit)
	switch period {
	case models.PeriodHourly:
		end = start.Add(time.Hour)
	case models.PeriodDaily:
		end = start.AddDate(0, 0, 1)
	case models.PeriodWeekly:
		end = start.AddDate(0, 0, 7)
	case models.PeriodMonthly:
		end = start.AddDate(0, 1, 0)
	case models.PeriodQuarterly:
		end = start.AddDate(0, 3, 0)
	}
	return start, end, nil
}
