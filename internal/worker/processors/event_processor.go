package processors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prokipsync/internal/events"
	"prokipsync/internal/logger"
	"prokipsync/internal/models"
	"prokipsync/internal/services/reconcile"
	"prokipsync/internal/worker/processors/validation"

	"gorm.io/gorm"
)

// OrderProcessor runs the single-order sync for a webhook.
type OrderProcessor interface {
	ProcessStoreOrder(ctx context.Context, connectionID, orderID string) (*reconcile.Result, error)
}

type EventProcessor struct {
	db        *gorm.DB
	logger    *logger.Logger
	validator *validation.Validator
	orders    OrderProcessor
}

func NewEventProcessor(db *gorm.DB, orders OrderProcessor, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		db:        db,
		logger:    logger,
		validator: validation.New(logger),
		orders:    orders,
	}
}

// Process handles one bus event: it loads the stored webhook, runs the order
// sync for order topics and marks the webhook processed. Webhooks already
// processed are ignored, so redelivery is harmless.
func (ep *EventProcessor) Process(ctx context.Context, event events.Event) error {
	if err := ep.validator.ValidateEvent(event); err != nil {
		return err
	}

	var hook models.WebhookEvent
	if err := ep.db.WithContext(ctx).First(&hook, "id = ?", event.WebhookEventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("webhook event %s not found", event.WebhookEventID)
		}
		return fmt.Errorf("failed to load webhook event: %w", err)
	}
	return ep.ProcessWebhook(ctx, &hook)
}

// ProcessWebhook runs a stored webhook directly, without the bus.
func (ep *EventProcessor) ProcessWebhook(ctx context.Context, hook *models.WebhookEvent) error {
	if hook.Processed {
		ep.logger.Debug("Webhook event %s already processed", hook.ID)
		return nil
	}

	err := ep.validator.ValidateWebhook(hook)
	if errors.Is(err, validation.ErrUnsupportedTopic) {
		// Acknowledge topics we do not act on.
		ep.logger.Debug("Ignoring webhook topic %s", hook.Topic)
		return ep.markProcessed(ctx, hook, nil)
	}
	if err == nil {
		_, err = ep.orders.ProcessStoreOrder(ctx, hook.ConnectionID, hook.ExternalID)
	}

	if markErr := ep.markProcessed(ctx, hook, err); markErr != nil {
		return markErr
	}
	if err != nil {
		return fmt.Errorf("webhook event %s: %w", hook.ID, err)
	}
	ep.logger.Info("Processed %s webhook %s for order %s", hook.Platform, hook.Topic, hook.ExternalID)
	return nil
}

func (ep *EventProcessor) markProcessed(ctx context.Context, hook *models.WebhookEvent, procErr error) error {
	now := time.Now()
	hook.Processed = true
	hook.ProcessedAt = &now
	hook.Error = ""
	if procErr != nil {
		hook.Error = procErr.Error()
	}

	err := ep.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", hook.ID).Updates(map[string]interface{}{
		"processed":    true,
		"processed_at": now,
		"error":        hook.Error,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to mark webhook event %s processed: %w", hook.ID, err)
	}
	return nil
}
