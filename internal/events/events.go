// Package events carries stored webhook notifications from the API to the worker over Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"prokipsync/internal/logger"
	"prokipsync/internal/models"

	"github.com/segmentio/kafka-go"
)

const TypeWebhookReceived = "webhook.received"

// Event points at a stored WebhookEvent; the payload itself stays in the database.
type Event struct {
	Type           string          `json:"type"`
	WebhookEventID string          `json:"webhook_event_id"`
	ConnectionID   string          `json:"connection_id"`
	Platform       models.Platform `json:"platform"`
	Topic          string          `json:"topic"`
	ExternalID     string          `json:"external_id"`
	Timestamp      time.Time       `json:"timestamp"`
}

// FromWebhook builds the event announcing a stored webhook.
func FromWebhook(w *models.WebhookEvent) Event {
	return Event{
		Type:           TypeWebhookReceived,
		WebhookEventID: w.ID,
		ConnectionID:   w.ConnectionID,
		Platform:       w.Platform,
		Topic:          w.Topic,
		ExternalID:     w.ExternalID,
		Timestamp:      w.CreatedAt,
	}
}

func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to parse event: %w", err)
	}
	if e.WebhookEventID == "" {
		return Event{}, fmt.Errorf("event has no webhook_event_id")
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	logger *logger.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Publish writes the event keyed by connection so one store's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.ConnectionID),
		Value: value,
		Time:  e.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", e.WebhookEventID, err)
	}
	p.logger.Debug("Published %s for webhook event %s", e.Type, e.WebhookEventID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
