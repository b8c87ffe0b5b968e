package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"prokipsync/internal/connectors/shopify"
	"prokipsync/internal/connectors/woocommerce"
	"prokipsync/internal/events"
	"prokipsync/internal/logger"
	"prokipsync/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	wooTopicHeader     = "X-WC-Webhook-Topic"
	shopifyTopicHeader = "X-Shopify-Topic"
)

// WebhookProcessor runs a stored webhook without going through the event bus.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, hook *models.WebhookEvent) error
}

type WebhookHandler struct {
	db        *gorm.DB
	logger    *logger.Logger
	publisher events.Publisher
	processor WebhookProcessor
}

// NewWebhookHandler wires the intake. publisher may be nil, in which case
// webhooks are processed inline.
func NewWebhookHandler(db *gorm.DB, publisher events.Publisher, processor WebhookProcessor, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		db:        db,
		logger:    logger,
		publisher: publisher,
		processor: processor,
	}
}

// Receive stores an order webhook and hands it to the worker.
func (h *WebhookHandler) Receive(c *gin.Context) {
	platform, ok := models.ParsePlatform(c.Param("platform"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown platform"})
		return
	}

	ctx := c.Request.Context()
	var conn models.Connection
	if err := h.db.WithContext(ctx).First(&conn, "id = ? AND platform = ?", c.Param("connection_id"), platform).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch connection"})
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	topic := c.GetHeader(wooTopicHeader)
	if platform == models.PlatformShopify {
		topic = c.GetHeader(shopifyTopicHeader)
	}

	// WooCommerce sends a form-encoded ping when a webhook is first saved.
	if platform == models.PlatformWooCommerce && topic == "" && bytes.HasPrefix(payload, []byte("webhook_id=")) {
		h.logger.Debug("Acknowledged WooCommerce webhook ping for connection %s", conn.ID)
		c.JSON(http.StatusOK, gin.H{"message": "Webhook ping received"})
		return
	}
	if topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing webhook topic header"})
		return
	}
	if !json.Valid(payload) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payload must be JSON"})
		return
	}

	hook := &models.WebhookEvent{
		ConnectionID: conn.ID,
		Platform:     platform,
		Topic:        topic,
		ExternalID:   externalID(platform, payload),
		Payload:      datatypes.JSON(payload),
	}
	if hook.IsOrderTopic() && hook.ExternalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order webhook has no id"})
		return
	}

	if err := h.db.WithContext(ctx).Create(hook).Error; err != nil {
		h.logger.Error("Failed to store webhook for connection %s: %v", conn.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store webhook"})
		return
	}

	if h.publisher != nil {
		err := h.publisher.Publish(ctx, events.FromWebhook(hook))
		if err == nil {
			c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"id": hook.ID, "queued": true}})
			return
		}
		h.logger.Warn("Publishing webhook %s failed, processing inline: %v", hook.ID, err)
	}

	if err := h.processor.ProcessWebhook(ctx, hook); err != nil {
		// The error is kept on the webhook row; scheduled syncs pick the order up later.
		h.logger.Error("Inline webhook processing failed for %s: %v", hook.ID, err)
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": hook.ID, "queued": false}})
}

func externalID(platform models.Platform, payload []byte) string {
	switch platform {
	case models.PlatformShopify:
		if hook, err := shopify.ParseWebhook(payload); err == nil {
			return strconv.FormatInt(hook.ID, 10)
		}
	case models.PlatformWooCommerce:
		if hook, err := woocommerce.ParseWebhook(payload); err == nil {
			return strconv.FormatInt(hook.ID, 10)
		}
	}
	return ""
}
