package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/foxseedlab/callinsight/internal/events"
	"github.com/foxseedlab/callinsight/internal/logger"
	"github.com/foxseedlab/callinsight/internal/metrics"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers             []string
	TopicFileCompleted  string
	TopicBatchCompleted string
}

// KafkaPublisher writes analysis events to Kafka. Without brokers it runs in
// log-only mode.
type KafkaPublisher struct {
	writer              messageWriter
	topicFileCompleted  string
	topicBatchCompleted string
	enabled             bool
	metrics             *metrics.Metrics
	log                 *logger.Logger
}

func NewKafkaPublisher(cfg KafkaConfig, m *metrics.Metrics, log *logger.Logger) *KafkaPublisher {
	p := &KafkaPublisher{
		topicFileCompleted:  cfg.TopicFileCompleted,
		topicBatchCompleted: cfg.TopicBatchCompleted,
		metrics:             m,
		log:                 log.Component("events"),
	}
	if len(cfg.Brokers) == 0 {
		p.log.Info("Kafka disabled, using log-only mode")
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	// Topic is set per message so one writer serves both topics.
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	p.enabled = true
	p.log.WithFields(logrus.Fields{
		"brokers":               cfg.Brokers,
		"topic_file_completed":  cfg.TopicFileCompleted,
		"topic_batch_completed": cfg.TopicBatchCompleted,
	}).Info("Kafka publisher initialized")
	return p
}

func (p *KafkaPublisher) PublishFileCompleted(ctx context.Context, event events.FileCompleted) error {
	event.Type = events.TypeFileCompleted
	return p.publish(ctx, p.topicFileCompleted, event.BulkSessionID, event.Type, event)
}

func (p *KafkaPublisher) PublishBatchCompleted(ctx context.Context, event events.BatchCompleted) error {
	event.Type = events.TypeBatchCompleted
	return p.publish(ctx, p.topicBatchCompleted, event.BulkSessionID, event.Type, event)
}

// publish keys messages by batch id so a batch's events stay ordered on one partition.
func (p *KafkaPublisher) publish(ctx context.Context, topic, key, eventType string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).WithField("topic", topic).Error("failed to marshal event")
		return err
	}

	entry := p.log.WithFields(logrus.Fields{"topic": topic, "key": key, "event_type": eventType})
	if !p.enabled || p.writer == nil {
		entry.WithField("payload", string(payload)).Debug("event (log-only)")
		p.metrics.RecordEvent(topic, nil)
		return nil
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
		},
	})
	p.metrics.RecordEvent(topic, err)
	if err != nil {
		entry.WithField("error", err.Error()).Error("failed to write event to Kafka")
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
