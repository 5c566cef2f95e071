package di

import (
	"context"
	"fmt"
	"time"

	"TaskStream/internal/domain/repository"
	"TaskStream/internal/handler/api"
	internalrepo "TaskStream/internal/repository"
	"TaskStream/internal/service/cache"
	"TaskStream/internal/service/ratelimit"
	"TaskStream/internal/services/analytics"
	"TaskStream/internal/usecase"
	pkgch "TaskStream/pkg/clickhouse"
	"TaskStream/pkg/config"
	xhttp "TaskStream/pkg/http"
	pkgkafka "TaskStream/pkg/kafka"
	applogger "TaskStream/pkg/logger"
	"TaskStream/pkg/metrics"
	"TaskStream/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

const responseCacheEntries = 4096

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideClickHouseClient connects to ClickHouse and ensures the metric table exists.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, pkgch.MetricRecordsSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSeriesStore reads metric series from ClickHouse.
func ProvideSeriesStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.SeriesStore {
	store := internalrepo.NewCHMetricStore(ch, cfg.ClickHouse.Table)
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates a producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAlertPublisher publishes bottleneck alerts, or returns nil without Kafka.
func ProvideAlertPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) repository.AlertPublisher {
	if producer == nil || cfg.Kafka.AlertTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertTopic, l)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideMetricsCalculator(cfg *config.Config) (*analytics.MetricsCalculator, error) {
	return analytics.NewMetricsCalculator(cfg.Analytics)
}

// ProvideForecastEngine builds the engine with its own prediction cache.
func ProvideForecastEngine(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*analytics.ForecastEngine, error) {
	return analytics.NewForecastEngine(cfg.Analytics,
		analytics.WithLogger(l),
		analytics.WithMetrics(m),
	)
}

func ProvideAnalyticsUseCase(
	cfg *config.Config,
	store repository.SeriesStore,
	calc *analytics.MetricsCalculator,
	engine *analytics.ForecastEngine,
	alerts repository.AlertPublisher,
	l *applogger.Logger,
) *usecase.AnalyticsUseCase {
	uc := usecase.NewAnalyticsUseCase(store, calc, engine, alerts, l)
	uc.SetTimeout(cfg.Server.RequestTimeout)
	return uc
}

// ProvideBytesCache uses Redis when enabled and reachable, else an in-process cache.
func ProvideBytesCache(cfg *config.Config, l *applogger.Logger) cache.BytesCache {
	if !cfg.Redis.Enabled {
		return cache.NewBytesTTLCache(responseCacheEntries)
	}
	rc := cache.NewRedisCache(cache.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		l.Warn("redis unavailable, using in-process response cache",
			applogger.String("addr", cfg.Redis.Addr),
			applogger.Error(err),
		)
		_ = rc.Close()
		return cache.NewBytesTTLCache(responseCacheEntries)
	}
	return rc
}

func ProvideResponseCache(store cache.BytesCache, cfg *config.Config) *cache.ResponseCache {
	if cfg.Server.ResponseCacheTTL <= 0 {
		return nil
	}
	return cache.NewResponseCache(store, cfg.Server.ResponseCacheTTL)
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimit.Disabled || cfg.Server.RateLimit.RPS <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
}

func ProvideAnalyticsHandler(
	l *applogger.Logger,
	uc *usecase.AnalyticsUseCase,
	limiter *ratelimit.Limiter,
	responses *cache.ResponseCache,
) *api.AnalyticsEchoHandler {
	return api.NewAnalyticsEchoHandler(l, uc, limiter, responses)
}

// ProvideHTTPServer builds the Echo server with every API handler.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.AnalyticsEchoHandler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithLogger(l),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, prometheus.DefaultRegisterer, prometheus.DefaultGatherer))
	}
	return xhttp.NewServer([]xhttp.Handler{h}, opts...)
}

// ProvideApp assembles the lifecycle. Warn and error logs are digested to Kafka
// when a digest topic is configured.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	engine *analytics.ForecastEngine,
	store repository.SeriesStore,
	alerts repository.AlertPublisher,
	producer *pkgkafka.Producer,
	bytes cache.BytesCache,
) *server.App {
	if producer != nil && cfg.Kafka.LogDigestTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogDigestTopic,
			Publisher:      producer,
		})
	}

	closers := []server.Closer{
		{Name: "forecast engine", Close: engine.Close},
		{Name: "series store", Close: store.Close},
	}
	if rc, ok := bytes.(*cache.RedisCache); ok {
		closers = append(closers, server.Closer{Name: "redis", Close: rc.Close})
	}
	// The alert publisher owns the producer; close one or the other.
	switch {
	case alerts != nil:
		closers = append(closers, server.Closer{Name: "alert publisher", Close: alerts.Close})
	case producer != nil:
		closers = append(closers, server.Closer{Name: "kafka producer", Close: producer.Close})
	}
	return server.New(cfg, l, srv, closers...)
}
