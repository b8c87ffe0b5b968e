package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent is a raw inbound webhook delivery.
type WebhookEvent struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	ConnectionID string         `json:"connection_id" gorm:"type:uuid;index;not null"`
	Platform     Platform       `json:"platform" gorm:"type:varchar(32);not null"`
	Topic        string         `json:"topic" gorm:"not null"`
	ExternalID   string         `json:"external_id"`
	Payload      datatypes.JSON `json:"payload"`
	Processed    bool           `json:"processed" gorm:"default:false;index"`
	ProcessedAt  *time.Time     `json:"processed_at"`
	Error        string         `json:"error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (w *WebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}

// IsOrderTopic reports whether the delivery concerns an order.
func (w *WebhookEvent) IsOrderTopic() bool {
	switch w.Topic {
	case "order.created", "order.updated", "orders/create", "orders/updated", "orders/paid", "orders/cancelled":
		return true
	}
	return false
}
