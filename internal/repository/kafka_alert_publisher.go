package repository

import (
	"context"
	"time"

	"TaskStream/internal/domain/models"
	domrepo "TaskStream/internal/domain/repository"
	"TaskStream/pkg/kafka"
	applogger "TaskStream/pkg/logger"
)

// BatchPublisher is the producer surface the alert publisher needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []kafka.Message) error
	Close() error
}

// BottleneckAlert is the wire form of one breach window.
type BottleneckAlert struct {
	ResourceID     string    `json:"resource_id"`
	Threshold      float64   `json:"threshold"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	Samples        int       `json:"samples"`
	PeakValue      float64   `json:"peak_value"`
	SeverityScore  float64   `json:"severity_score"`
	Cause          string    `json:"cause"`
	Recommendation string    `json:"recommendation"`
	DetectedAt     time.Time `json:"detected_at"`
}

// KafkaAlertPublisher sends one keyed message per bottleneck entry so a consumer
// sees each resource's alerts in order.
type KafkaAlertPublisher struct {
	p     BatchPublisher
	topic string
	l     *applogger.Logger
}

var _ domrepo.AlertPublisher = (*KafkaAlertPublisher)(nil)

func NewKafkaAlertPublisher(p BatchPublisher, topic string, l *applogger.Logger) *KafkaAlertPublisher {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaAlertPublisher{p: p, topic: topic, l: l}
}

func alertsFor(r *models.BottleneckReport) []kafka.Message {
	msgs := make([]kafka.Message, 0, len(r.Entries))
	for _, e := range r.Entries {
		msgs = append(msgs, kafka.Message{
			Key: []byte(e.ResourceID),
			Value: BottleneckAlert{
				ResourceID:     e.ResourceID,
				Threshold:      r.Threshold,
				WindowStart:    e.WindowStart,
				WindowEnd:      e.WindowEnd,
				Samples:        e.Samples,
				PeakValue:      e.PeakValue,
				SeverityScore:  e.SeverityScore,
				Cause:          e.Cause,
				Recommendation: e.Recommendation,
				DetectedAt:     r.GeneratedAt,
			},
		})
	}
	return msgs
}

// PublishBottlenecks is a no-op for reports without entries.
func (k *KafkaAlertPublisher) PublishBottlenecks(ctx context.Context, r *models.BottleneckReport) error {
	if !r.HasBottlenecks() {
		return nil
	}
	if err := k.p.PublishBatch(ctx, k.topic, alertsFor(r)); err != nil {
		k.l.Error("publish bottleneck alerts failed",
			applogger.String("topic", k.topic),
			applogger.String("resource_id", r.ResourceID),
			applogger.Int("entries", len(r.Entries)),
			applogger.Error(err),
		)
		return err
	}
	k.l.Info("published bottleneck alerts",
		applogger.String("topic", k.topic),
		applogger.String("resource_id", r.ResourceID),
		applogger.Int("entries", len(r.Entries)),
	)
	return nil
}

func (k *KafkaAlertPublisher) Close() error { return k.p.Close() }
