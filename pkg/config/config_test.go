package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	a := c.Analytics
	if a.ConfidenceLevel != 0.95 || a.StatisticalThreshold != 0.05 || a.CacheTTL() != time.Hour {
		t.Fatalf("unexpected analytics defaults %+v", a)
	}
	if a.Model.MaxDepth != 10 || a.Model.NEstimators != 100 || a.Model.LearningRate != 0.1 {
		t.Fatalf("unexpected model defaults %+v", a.Model)
	}
	if a.Thresholds.Utilization != 0.85 || a.CacheMaxEntries != 1000 {
		t.Fatalf("unexpected thresholds %+v", a.Thresholds)
	}
	if c.Server.Port != 8080 || c.Log.Level != "info" {
		t.Fatalf("unexpected server/log defaults: port=%d level=%s", c.Server.Port, c.Log.Level)
	}
}

func TestParseOverridesAnalytics(t *testing.T) {
	doc := `
environment: prod
analytics:
  confidence_level: 0.9
  cache_ttl: 120
  model:
    learning_rate: 0.3
`
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Analytics.ConfidenceLevel != 0.9 || c.Analytics.CacheTTL() != 2*time.Minute {
		t.Fatalf("overrides not applied: %+v", c.Analytics)
	}
	if c.Analytics.Model.LearningRate != 0.3 || c.Analytics.Model.MaxDepth != 10 {
		t.Fatalf("partial model override: %+v", c.Analytics.Model)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []string{
		"environment: x\nanalytics:\n  confidence_level: 1.5\n",
		"environment: x\nanalytics:\n  statistical_threshold: 2\n",
		"environment: x\nlog:\n  level: loud\n",
		"environment: x\nkafka:\n  log_digest_topic: logs\n",
		"environment: [",
	}
	for _, doc := range tests {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("Parse(%q) should fail", doc)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	env := map[string]string{
		"KAFKA_BROKERS":              "a:9092,b:9092",
		"ANALYTICS_CONFIDENCE_LEVEL": "0.99",
		"ANALYTICS_CACHE_TTL":        "60",
		"REDIS_ADDR":                 "redis:6379",
	}
	if err := c.applyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if strings.Join(c.Kafka.Brokers, ",") != "a:9092,b:9092" {
		t.Fatalf("brokers = %v", c.Kafka.Brokers)
	}
	if c.Analytics.ConfidenceLevel != 0.99 || c.Analytics.CacheTTLSeconds != 60 || !c.Redis.Enabled {
		t.Fatalf("env not applied: %+v", c.Analytics)
	}
	if err := c.applyEnv(func(k string) string {
		if k == "ANALYTICS_CACHE_TTL" {
			return "soon"
		}
		return ""
	}); err == nil {
		t.Fatalf("bad ANALYTICS_CACHE_TTL should fail")
	}
}

func TestDefaultAnalyticsIsValid(t *testing.T) {
	a := DefaultAnalytics()
	if err := a.Validate(); err != nil {
		t.Fatalf("DefaultAnalytics invalid: %v", err)
	}
}
