// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"interpreter-verify-service/internal/observability/metrics"
)

// Publisher publishes pipeline records and terminology alerts to
// separate Kafka topics. Disabled mode logs instead of writing, which
// is the default for the local-only deployment.
type Publisher struct {
	writerRecords *kafka.Writer
	writerAlerts  *kafka.Writer
	principal     string
	topicRecords  string
	topicAlerts   string
	enabled       bool
	metrics       *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers      []string
	TopicRecords string
	TopicAlerts  string
	Principal    string
	Enabled      bool
}

// New creates a Kafka publisher with separate topics for full records
// and high-risk terminology alerts.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:    cfg.Principal,
			topicRecords: cfg.TopicRecords,
			topicAlerts:  cfg.TopicAlerts,
			enabled:      false,
			metrics:      m,
		}
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerRecords := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicRecords,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
	writerAlerts := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicAlerts,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicRecords", cfg.TopicRecords).
		Str("topicAlerts", cfg.TopicAlerts).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerRecords: writerRecords,
		writerAlerts:  writerAlerts,
		principal:     cfg.Principal,
		topicRecords:  cfg.TopicRecords,
		topicAlerts:   cfg.TopicAlerts,
		enabled:       true,
		metrics:       m,
	}
}

// PublishRecord publishes a delivered pipeline record.
func (p *Publisher) PublishRecord(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerRecords, p.topicRecords, key, event)
}

// PublishAlert publishes a high-risk terminology alert.
func (p *Publisher) PublishAlert(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerAlerts, p.topicAlerts, key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerRecords != nil {
		if e := p.writerRecords.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing records writer")
			err = e
		}
	}
	if p.writerAlerts != nil {
		if e := p.writerAlerts.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing alerts writer")
			err = e
		}
	}
	return err
}
