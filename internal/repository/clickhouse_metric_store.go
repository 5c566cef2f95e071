package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TaskStream/internal/domain/models"
	domrepo "TaskStream/internal/domain/repository"
	pkgch "TaskStream/pkg/clickhouse"
	applogger "TaskStream/pkg/logger"
)

const defaultSeriesLimit = 1000

// CHMetricStore implements SeriesStore backed by ClickHouse.
type CHMetricStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

var _ domrepo.SeriesStore = (*CHMetricStore)(nil)

// NewCHMetricStore reads from database.table on ch.
func NewCHMetricStore(ch *pkgch.Client, table string) *CHMetricStore {
	return &CHMetricStore{ch: ch, db: ch.DB(), table: ch.Database() + "." + table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHMetricStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// seriesQuery selects the latest Limit rows matching f, newest first.
func seriesQuery(table string, f domrepo.SeriesFilter) (string, []any) {
	where := []string{"metric_type = ?"}
	args := []any{f.MetricType}
	for _, c := range [...]struct{ col, val string }{
		{"resource_id", f.ResourceID},
		{"team", f.Team},
		{"project", f.Project},
	} {
		if c.val != "" {
			where = append(where, c.col+" = ?")
			args = append(args, c.val)
		}
	}
	if !f.From.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		where = append(where, "ts <= ?")
		args = append(args, f.To.UTC())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultSeriesLimit
	}
	args = append(args, limit)
	q := fmt.Sprintf(`
        SELECT ts, metric_type, value, resource_id, team, project
        FROM %s
        WHERE %s
        ORDER BY ts DESC
        LIMIT ?
    `, table, strings.Join(where, " AND "))
	return q, args
}

func recordTags(resourceID, team, project string) map[string]string {
	tags := make(map[string]string, 3)
	if resourceID != "" {
		tags["resource_id"] = resourceID
	}
	if team != "" {
		tags["team"] = team
	}
	if project != "" {
		tags["project"] = project
	}
	return tags
}

// LoadSeries returns up to Limit of the most recent records, in time order.
func (s *CHMetricStore) LoadSeries(ctx context.Context, f domrepo.SeriesFilter) (*models.MetricSeries, error) {
	start := time.Now()
	q, args := seriesQuery(s.table, f)
	fields := []applogger.Field{
		applogger.String("table", s.table),
		applogger.String("metric", f.MetricType),
		applogger.String("resource_id", f.ResourceID),
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse load_series query error", append(fields, applogger.Error(err))...)
		return nil, fmt.Errorf("load series: %w", err)
	}
	defer rows.Close()

	recs := make([]models.MetricRecord, 0, min(max(f.Limit, 0), defaultSeriesLimit))
	for rows.Next() {
		var (
			ts                        time.Time
			metricType                string
			value                     float64
			resourceID, team, project string
		)
		if err := rows.Scan(&ts, &metricType, &value, &resourceID, &team, &project); err != nil {
			s.l.Error("clickhouse load_series scan error", append(fields, applogger.Error(err))...)
			return nil, fmt.Errorf("scan metric record: %w", err)
		}
		recs = append(recs, models.NewMetricRecord(ts.UTC(), metricType, value, recordTags(resourceID, team, project)))
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse load_series rows error", append(fields, applogger.Error(err))...)
		return nil, fmt.Errorf("rows: %w", err)
	}

	// NewMetricSeries sorts, so the DESC scan order needs no reversal here.
	series, err := models.NewMetricSeries(f.MetricType, recs)
	if err != nil {
		s.l.Warn("clickhouse load_series rejected rows", append(fields, applogger.Error(err))...)
		return nil, err
	}
	s.l.Debug("clickhouse load_series ok", append(fields,
		applogger.Int("rows", series.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)...)
	return series, nil
}

func (s *CHMetricStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *CHMetricStore) Close() error { return s.ch.Close() }
