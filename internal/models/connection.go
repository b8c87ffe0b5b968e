package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Connection holds the credentials and sync flags for one store.
type Connection struct {
	ID             string           `json:"id" gorm:"type:uuid;primaryKey"`
	UserID         string           `json:"user_id" gorm:"type:uuid;index;not null"`
	Name           string           `json:"name" gorm:"not null"`
	Platform       Platform         `json:"platform" gorm:"type:varchar(32);not null"`
	StoreURL       string           `json:"store_url" gorm:"not null"`
	ConsumerKey    string           `json:"consumer_key,omitempty"`
	ConsumerSecret string           `json:"consumer_secret,omitempty"`
	AccessToken    string           `json:"access_token,omitempty"`
	LocationID     string           `json:"location_id,omitempty"`
	Status         ConnectionStatus `json:"status" gorm:"type:varchar(16);default:ACTIVE"`
	SyncEnabled    bool             `json:"sync_enabled" gorm:"default:true"`
	SyncOrders     bool             `json:"sync_orders" gorm:"default:true"`
	SyncInventory  bool             `json:"sync_inventory" gorm:"default:true"`
	LastSync       *time.Time       `json:"last_sync"`
	LastProkipSync *time.Time       `json:"last_prokip_sync"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type Platform string

const (
	PlatformWooCommerce Platform = "WOOCOMMERCE"
	PlatformShopify     Platform = "SHOPIFY"
)

// ParsePlatform accepts the lowercase names used in webhook URLs.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToUpper(strings.TrimSpace(s))) {
	case PlatformWooCommerce:
		return PlatformWooCommerce, true
	case PlatformShopify:
		return PlatformShopify, true
	}
	return "", false
}

// InvoicePrefix marks Prokip sales created from this platform's orders.
func (p Platform) InvoicePrefix() string {
	switch p {
	case PlatformShopify:
		return "SH"
	default:
		return "WC"
	}
}

type ConnectionStatus string

const (
	ConnectionStatusActive   ConnectionStatus = "ACTIVE"
	ConnectionStatusInactive ConnectionStatus = "INACTIVE"
	ConnectionStatusError    ConnectionStatus = "ERROR"
	ConnectionStatusSyncing  ConnectionStatus = "SYNCING"
)

func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = ConnectionStatusActive
	}
	c.StoreURL = strings.TrimRight(c.StoreURL, "/")
	return nil
}

// Redacted returns a copy without secrets, for API responses.
func (c Connection) Redacted() Connection {
	if c.ConsumerSecret != "" {
		c.ConsumerSecret = "********"
	}
	if c.AccessToken != "" {
		c.AccessToken = "********"
	}
	return c
}
