package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	applogger "TaskStream/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Log         applogger.Config `yaml:"log"`
	Server      struct {
		Port             int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RequestTimeout   time.Duration `yaml:"request_timeout" default:"15s"`
		SlowRequest      time.Duration `yaml:"slow_request" default:"2s"`
		ResponseCacheTTL time.Duration `yaml:"response_cache_ttl" default:"30s"`
		RateLimit        struct {
			Disabled bool    `yaml:"disabled"`
			RPS      float64 `yaml:"rps" default:"20" validate:"gte=0"`
			Burst    int     `yaml:"burst" default:"40" validate:"gte=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		AlertTopic     string   `yaml:"alert_topic" default:"taskstream.bottlenecks"`
		LogDigestTopic string   `yaml:"log_digest_topic"`
		RequiredAcks   int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		Compression    string   `yaml:"compression" default:"snappy" validate:"oneof=gzip snappy lz4 zstd"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"taskstream"`
		Table            string        `yaml:"table" default:"metric_records"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr" default:"localhost:6379"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix" default:"taskstream:"`
	} `yaml:"redis"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ModelConfig holds forecasting hyperparameters. They are opaque to the engine and
// handed to the model implementation.
type ModelConfig struct {
	MaxDepth     int     `yaml:"max_depth" json:"max_depth" default:"10" validate:"gte=1"`
	NEstimators  int     `yaml:"n_estimators" json:"n_estimators" default:"100" validate:"gte=1"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate" default:"0.1" validate:"gt=0,lte=1"`
}

// Thresholds are per-metric alert levels used for insights and bottleneck scans.
type Thresholds struct {
	Utilization      float64 `yaml:"utilization" default:"0.85" validate:"gt=0"`
	Allocation       float64 `yaml:"allocation" default:"0.9" validate:"gt=0"`
	Efficiency       float64 `yaml:"efficiency" default:"0.8" validate:"gt=0"`
	Productivity     float64 `yaml:"productivity" default:"0.75" validate:"gt=0"`
	ForecastAccuracy float64 `yaml:"forecast_accuracy" default:"0.95" validate:"gt=0"`
}

// ByMetric returns thresholds keyed by metric name.
func (t Thresholds) ByMetric() map[string]float64 {
	return map[string]float64{
		"utilization":       t.Utilization,
		"allocation":        t.Allocation,
		"efficiency":        t.Efficiency,
		"productivity":      t.Productivity,
		"forecast_accuracy": t.ForecastAccuracy,
	}
}

// AnalyticsConfig configures the metrics calculator and forecast engine.
type AnalyticsConfig struct {
	ConfidenceLevel         float64       `yaml:"confidence_level" default:"0.95" validate:"gt=0,lt=1"`
	CacheTTLSeconds         int           `yaml:"cache_ttl" default:"3600" validate:"gte=1"`
	StatisticalThreshold    float64       `yaml:"statistical_threshold" default:"0.05" validate:"gt=0,lt=1"`
	ValidationThreshold     float64       `yaml:"validation_threshold" default:"0.85" validate:"gte=0,lte=1"`
	MinSampleSize           int           `yaml:"min_sample_size" default:"3" validate:"gte=2"`
	LargeSampleCutoff       int           `yaml:"large_sample_cutoff" default:"30" validate:"gte=2"`
	CacheMaxEntries         int           `yaml:"cache_max_entries" default:"1000" validate:"gte=1"`
	CacheSweepInterval      time.Duration `yaml:"cache_sweep_interval" default:"1m"`
	DefaultInsightThreshold float64       `yaml:"default_insight_threshold" default:"0.8"`
	MinImprovement          float64       `yaml:"min_improvement" default:"0.4" validate:"gte=0"`
	MaxLatencyP95           time.Duration `yaml:"max_latency_p95" default:"1s"`
	MinBenchmarkSamples     int           `yaml:"min_benchmark_samples" default:"10" validate:"gte=1"`
	Model                   ModelConfig   `yaml:"model"`
	Thresholds              Thresholds    `yaml:"thresholds"`
}

// CacheTTL returns the cache TTL as a duration.
func (a AnalyticsConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSeconds) * time.Second
}

var validate = validator.New()

// DefaultAnalytics returns analytics settings with every default applied.
func DefaultAnalytics() AnalyticsConfig {
	var a AnalyticsConfig
	defaults.MustSet(&a)
	return a
}

// Validate applies defaults to zero fields and checks the analytics settings.
func (a *AnalyticsConfig) Validate() error {
	if err := defaults.Set(a); err != nil {
		return fmt.Errorf("analytics defaults: %w", err)
	}
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("analytics: %w", err)
	}
	if a.CacheSweepInterval < 0 {
		return fmt.Errorf("analytics.cache_sweep_interval must not be negative")
	}
	if a.MaxLatencyP95 <= 0 {
		return fmt.Errorf("analytics.max_latency_p95 must be positive")
	}
	if a.MinSampleSize > a.LargeSampleCutoff {
		return fmt.Errorf("analytics.min_sample_size (%d) exceeds large_sample_cutoff (%d)", a.MinSampleSize, a.LargeSampleCutoff)
	}
	return nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML, applies defaults and validates once.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_ALERT_TOPIC"); v != "" {
		c.Kafka.AlertTopic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("ANALYTICS_CONFIDENCE_LEVEL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ANALYTICS_CONFIDENCE_LEVEL: %w", err)
		}
		c.Analytics.ConfidenceLevel = f
	}
	if v := getenv("ANALYTICS_CACHE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ANALYTICS_CACHE_TTL: %w", err)
		}
		c.Analytics.CacheTTLSeconds = n
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Analytics.Validate(); err != nil {
		return err
	}
	if c.Kafka.LogDigestTopic != "" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.log_digest_topic requires kafka.brokers")
	}
	return nil
}
