package worker

import (
	"context"
	"errors"
	"time"

	"prokipsync/internal/config"
	"prokipsync/internal/events"
	"prokipsync/internal/logger"
	"prokipsync/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafka.Reader the worker uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Worker struct {
	logger    *logger.Logger
	reader    messageReader
	processor *processors.EventProcessor
}

func New(cfg config.KafkaConfig, processor *processors.EventProcessor, logger *logger.Logger) *Worker {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})

	return &Worker{
		logger:    logger,
		reader:    reader,
		processor: processor,
	}
}

// Start consumes events until ctx is cancelled. Every message is committed
// once handled; failures are kept on the stored webhook, not retried here.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started, listening for events...")

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				w.logger.Info("Worker stopped")
				return
			}
			w.logger.Error("Failed to read message: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.handle(ctx, message)

		if err := w.reader.CommitMessages(ctx, message); err != nil && ctx.Err() == nil {
			w.logger.Error("Failed to commit offset %d: %v", message.Offset, err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, message kafka.Message) {
	w.logger.Debug("Received message: %s", string(message.Value))

	event, err := events.Decode(message.Value)
	if err != nil {
		w.logger.Error("Failed to parse event: %v", err)
		return
	}

	if err := w.processor.Process(ctx, event); err != nil {
		w.logger.Error("Failed to process event: %v", err)
		return
	}

	w.logger.Debug("Event %s processed successfully", event.WebhookEventID)
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if err := w.reader.Close(); err != nil {
		w.logger.Error("Failed to close reader: %v", err)
	}
}
