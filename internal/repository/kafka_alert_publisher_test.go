package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"TaskStream/internal/domain/models"
	"TaskStream/pkg/kafka"
)

type fakeBatch struct {
	topic string
	msgs  []kafka.Message
	err   error
}

func (f *fakeBatch) PublishBatch(_ context.Context, topic string, msgs []kafka.Message) error {
	f.topic = topic
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeBatch) Close() error { return nil }

func TestPublishBottlenecksOneMessagePerEntry(t *testing.T) {
	fb := &fakeBatch{}
	pub := NewKafkaAlertPublisher(fb, "taskstream.bottlenecks", nil)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	report := &models.BottleneckReport{
		ResourceID: "db-1",
		Threshold:  0.85,
		Entries: []models.BottleneckEntry{
			{ResourceID: "db-1", WindowStart: start, WindowEnd: start.Add(2 * time.Hour), Samples: 3},
			{ResourceID: "db-1", WindowStart: start.Add(5 * time.Hour), WindowEnd: start.Add(5 * time.Hour), Samples: 1},
		},
	}
	if err := pub.PublishBottlenecks(context.Background(), report); err != nil {
		t.Fatalf("PublishBottlenecks: %v", err)
	}
	if fb.topic != "taskstream.bottlenecks" || len(fb.msgs) != 2 {
		t.Fatalf("topic=%q msgs=%d", fb.topic, len(fb.msgs))
	}
	alert, ok := fb.msgs[1].Value.(BottleneckAlert)
	if !ok || string(fb.msgs[1].Key) != "db-1" || alert.Samples != 1 || alert.Threshold != 0.85 {
		t.Fatalf("unexpected message %+v", fb.msgs[1])
	}
}

func TestPublishBottlenecksSkipsEmptyAndReturnsErrors(t *testing.T) {
	fb := &fakeBatch{err: errors.New("down")}
	pub := NewKafkaAlertPublisher(fb, "t", nil)
	if err := pub.PublishBottlenecks(context.Background(), &models.BottleneckReport{}); err != nil {
		t.Fatalf("empty report: %v", err)
	}
	if len(fb.msgs) != 0 {
		t.Fatalf("empty report published %d messages", len(fb.msgs))
	}
	report := &models.BottleneckReport{Entries: []models.BottleneckEntry{{ResourceID: "x"}}}
	if err := pub.PublishBottlenecks(context.Background(), report); err == nil {
		t.Fatalf("expected publish error")
	}
}
