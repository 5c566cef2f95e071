package models

import (
	"strings"
	"time"
)

// PeriodKind is a calendar bucket size for aggregation.
type PeriodKind string

const (
	PeriodHourly    PeriodKind = "hourly"
	PeriodDaily     PeriodKind = "daily"
	PeriodWeekly    PeriodKind = "weekly"
	PeriodMonthly   PeriodKind = "monthly"
	PeriodQuarterly PeriodKind = "quarterly"

	// PeriodRolling marks results produced by a sliding window.
	PeriodRolling PeriodKind = "rolling"
)

// IsValidPeriod reports whether p is one of the calendar periods.
func IsValidPeriod(p PeriodKind) bool {
	switch p {
	case PeriodHourly, PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly:
		return true
	default:
		return false
	}
}

// DefaultPeriod returns the default aggregation period.
func DefaultPeriod() PeriodKind { return PeriodDaily }

// NormalizePeriod lowercases s and maps the empty string to the default.
// Unknown values are returned as-is so callers can reject them.
func NormalizePeriod(s string) PeriodKind {
	if s == "" {
		return DefaultPeriod()
	}
	return PeriodKind(strings.ToLower(strings.TrimSpace(s)))
}

// HorizonKind names a forecast span.
type HorizonKind string

const (
	HorizonShort    HorizonKind = "short"
	HorizonMedium   HorizonKind = "medium"
	HorizonLong     HorizonKind = "long"
	HorizonExtended HorizonKind = "extended"
)

// DefaultHorizons is the built-in horizon vocabulary in days.
// Engines copy it and may extend their copy.
func DefaultHorizons() map[HorizonKind]int {
	return map[HorizonKind]int{
		HorizonShort:    7,
		HorizonMedium:   30,
		HorizonLong:     90,
		HorizonExtended: 180,
	}
}

// HorizonDuration converts a day count to a duration.
func HorizonDuration(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
