package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/foxseedlab/callinsight/internal/events"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
)

type mockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *mockWriter) Close() error {
	w.closed = true
	return nil
}

func testConfig() KafkaConfig {
	return KafkaConfig{TopicFileCompleted: "files", TopicBatchCompleted: "batches"}
}

func TestKafkaPublisher_DisabledIsLogOnly(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := NewKafkaPublisher(testConfig(), m, logger.Discard())

	if err := p.PublishFileCompleted(context.Background(), events.FileCompleted{BulkSessionID: "b1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("files", "success")); got != 1 {
		t.Fatalf("expected log-only publish to be counted, got %v", got)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestKafkaPublisher_WritesKeyedMessage(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaPublisher(testConfig(), metrics.New(prometheus.NewRegistry()), logger.Discard())
	p.writer = w
	p.enabled = true

	err := p.PublishBatchCompleted(context.Background(), events.BatchCompleted{BulkSessionID: "b1", TotalFiles: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.messages))
	}
	msg := w.messages[0]
	if msg.Topic != "batches" || string(msg.Key) != "b1" {
		t.Fatalf("unexpected topic/key: %s/%s", msg.Topic, msg.Key)
	}
	var got events.BatchCompleted
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if got.Type != events.TypeBatchCompleted || got.TotalFiles != 3 {
		t.Fatalf("unexpected payload: %+v", got)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to be closed, err=%v", err)
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := NewKafkaPublisher(testConfig(), m, logger.Discard())
	p.writer = &mockWriter{err: errors.New("broker unavailable")}
	p.enabled = true

	if err := p.PublishFileCompleted(context.Background(), events.FileCompleted{BulkSessionID: "b1"}); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("files", "error")); got != 1 {
		t.Fatalf("expected failed publish to be counted, got %v", got)
	}
}
