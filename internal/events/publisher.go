// Package events publishes interview events to Kafka. With Kafka disabled
// the publisher degrades to logging, so the rest of the service does not
// care whether a broker is present.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafka "github.com/segmentio/kafka-go"

	"ai-interview-session-service/internal/config"
	"ai-interview-session-service/internal/models"
	"ai-interview-session-service/internal/observability/logging"
	"ai-interview-session-service/internal/observability/metrics"
)

// Publisher emits transcript and lifecycle events. Safe for concurrent use.
type Publisher struct {
	enabled        bool
	transcriptW    *kafka.Writer
	lifecycleW     *kafka.Writer
	principal      string
	topicFinal     string
	topicLifecycle string
	log            zerolog.Logger
	metrics        *metrics.Metrics
}

// NewPublisher builds a publisher from the Kafka configuration. When
// disabled, Publish* calls log the event and return nil.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	p := &Publisher{
		enabled:        cfg.Enabled && len(cfg.Brokers) > 0,
		principal:      cfg.Principal,
		topicFinal:     cfg.TopicFinal,
		topicLifecycle: cfg.TopicLifecycle,
		log:            logging.WithComponent("events"),
		metrics:        metrics.DefaultMetrics,
	}
	if !p.enabled {
		p.log.Info().Msg("kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{Dial: dialer.DialFunc}
	p.transcriptW = newWriter(cfg.Brokers, cfg.TopicFinal, transport)
	p.lifecycleW = newWriter(cfg.Brokers, cfg.TopicLifecycle, transport)

	p.log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicFinal", cfg.TopicFinal).
		Str("topicLifecycle", cfg.TopicLifecycle).
		Str("principal", cfg.Principal).
		Msg("kafka publisher initialized")
	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishTranscriptFinal emits a finalized utterance.
func (p *Publisher) PublishTranscriptFinal(ctx context.Context, ev models.TranscriptFinalEvent) error {
	return p.publish(ctx, p.transcriptW, p.topicFinal, ev.EventType, ev.SessionID, ev)
}

// PublishLifecycle emits a session start or end event.
func (p *Publisher) PublishLifecycle(ctx context.Context, ev models.SessionLifecycleEvent) error {
	return p.publish(ctx, p.lifecycleW, p.topicLifecycle, ev.EventType, ev.SessionID, ev)
}

func (p *Publisher) publish(ctx context.Context, w *kafka.Writer, topic, eventType, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}
	if !p.enabled {
		p.log.Debug().Str("topic", topic).Str("eventType", eventType).RawJSON("event", data).Msg("event (kafka disabled)")
		return nil
	}

	start := time.Now()
	err = w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	})
	p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("publishing %s to %s: %w", eventType, topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writers.
func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	var firstErr error
	for _, w := range []*kafka.Writer{p.transcriptW, p.lifecycleW} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
