package repository

import (
	"strings"
	"testing"
	"time"

	domrepo "TaskStream/internal/domain/repository"
)

func TestSeriesQueryFilters(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args := seriesQuery("taskstream.metric_records", domrepo.SeriesFilter{
		MetricType: "utilization",
		ResourceID: "db-1",
		Project:    "apollo",
		From:       from,
		Limit:      50,
	})
	want := "metric_type = ? AND resource_id = ? AND project = ? AND ts >= ?"
	if !strings.Contains(q, want) {
		t.Fatalf("where clause missing %q in\n%s", want, q)
	}
	if strings.Contains(q, "team = ?") || strings.Contains(q, "ts <= ?") {
		t.Fatalf("unset filters leaked into\n%s", q)
	}
	if len(args) != 5 || args[0] != "utilization" || args[1] != "db-1" || args[2] != "apollo" || args[4] != 50 {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestSeriesQueryDefaultLimit(t *testing.T) {
	_, args := seriesQuery("t", domrepo.SeriesFilter{MetricType: "x"})
	if len(args) != 2 || args[1] != defaultSeriesLimit {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestRecordTagsSkipsEmpty(t *testing.T) {
	tags := recordTags("r1", "", "p")
	if len(tags) != 2 || tags["resource_id"] != "r1" || tags["project"] != "p" {
		t.Fatalf("unexpected tags %v", tags)
	}
}
