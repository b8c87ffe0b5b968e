package validation

import (
	"errors"
	"fmt"

	"prokipsync/internal/events"
	"prokipsync/internal/logger"
	"prokipsync/internal/models"
)

var ErrUnsupportedTopic = errors.New("unsupported webhook topic")

type Validator struct {
	logger *logger.Logger
}

func New(logger *logger.Logger) *Validator {
	return &Validator{logger: logger}
}

// ValidateEvent checks that a bus event is one the worker understands.
func (v *Validator) ValidateEvent(e events.Event) error {
	if e.Type != events.TypeWebhookReceived {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.WebhookEventID == "" {
		return fmt.Errorf("event has no webhook_event_id")
	}
	return nil
}

// ValidateWebhook checks a stored delivery before it is processed. A non-order
// topic yields ErrUnsupportedTopic.
func (v *Validator) ValidateWebhook(w *models.WebhookEvent) error {
	if w.ConnectionID == "" {
		return fmt.Errorf("webhook event %s has no connection", w.ID)
	}
	if _, ok := models.ParsePlatform(string(w.Platform)); !ok {
		return fmt.Errorf("webhook event %s has unknown platform %q", w.ID, w.Platform)
	}
	if !w.IsOrderTopic() {
		return fmt.Errorf("%w: %s", ErrUnsupportedTopic, w.Topic)
	}
	if w.ExternalID == "" {
		return fmt.Errorf("webhook event %s has no order id", w.ID)
	}

	v.logger.Debug("Validated webhook event %s (%s %s)", w.ID, w.Platform, w.Topic)
	return nil
}
