package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InventoryCache is the last known stock per SKU for a connection, together
// with the ids that match the SKU on both platforms.
type InventoryCache struct {
	ID                   string    `json:"id" gorm:"type:uuid;primaryKey"`
	ConnectionID         string    `json:"connection_id" gorm:"type:uuid;not null;uniqueIndex:idx_inventory_cache_sku,priority:1"`
	SKU                  string    `json:"sku" gorm:"not null;uniqueIndex:idx_inventory_cache_sku,priority:2"`
	Name                 string    `json:"name"`
	StoreProductID       string    `json:"store_product_id"`
	StoreVariantID       string    `json:"store_variant_id,omitempty"`
	StoreInventoryItemID string    `json:"store_inventory_item_id,omitempty"`
	ProkipProductID      int       `json:"prokip_product_id"`
	ProkipVariationID    int       `json:"prokip_variation_id"`
	Quantity             int       `json:"quantity"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (InventoryCache) TableName() string {
	return "inventory_cache"
}

func (i *InventoryCache) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

// HasStoreRef reports whether the SKU has been matched in the store.
func (i *InventoryCache) HasStoreRef() bool {
	return i.StoreProductID != ""
}

// HasProkipRef reports whether the SKU has been matched in Prokip.
func (i *InventoryCache) HasProkipRef() bool {
	return i.ProkipProductID != 0
}

// InventoryLog records every stock change applied by a sync.
type InventoryLog struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey"`
	ConnectionID string          `json:"connection_id" gorm:"type:uuid;index;not null"`
	SKU          string          `json:"sku" gorm:"index;not null"`
	OldQuantity  int             `json:"old_quantity"`
	NewQuantity  int             `json:"new_quantity"`
	Delta        int             `json:"delta"`
	Reason       InventoryReason `json:"reason" gorm:"type:varchar(32);not null"`
	Reference    string          `json:"reference"`
	CreatedAt    time.Time       `json:"created_at"`
}

type InventoryReason string

const (
	InventoryReasonSync       InventoryReason = "INVENTORY_SYNC"
	InventoryReasonProkipSale InventoryReason = "PROKIP_SALE"
	InventoryReasonStoreSale  InventoryReason = "STORE_SALE"
)

func (i *InventoryLog) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	i.Delta = i.NewQuantity - i.OldQuantity
	return nil
}
