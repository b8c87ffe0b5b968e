package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesLog is the dedup/audit record for an externally observed order. A row
// exists once the order is being processed or has been processed.
type SalesLog struct {
	ID              string          `json:"id" gorm:"type:uuid;primaryKey"`
	ConnectionID    string          `json:"connection_id" gorm:"type:uuid;not null;uniqueIndex:idx_sales_log_order,priority:1"`
	Source          SaleSource      `json:"source" gorm:"type:varchar(16);not null;uniqueIndex:idx_sales_log_order,priority:2"`
	ExternalOrderID string          `json:"external_order_id" gorm:"not null;uniqueIndex:idx_sales_log_order,priority:3"`
	OrderNumber     string          `json:"order_number"`
	TotalAmount     decimal.Decimal `json:"total_amount" gorm:"type:decimal(14,2)"`
	Currency        string          `json:"currency"`
	ItemCount       int             `json:"item_count"`
	Status          SaleLogStatus   `json:"status" gorm:"type:varchar(16);not null"`
	ProkipSaleID    string          `json:"prokip_sale_id,omitempty"`
	OrderStatus     string          `json:"order_status,omitempty"`
	SyncedAt        *time.Time      `json:"synced_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SaleSource says which side the order was observed on.
type SaleSource string

const (
	SaleSourceStore  SaleSource = "STORE"
	SaleSourceProkip SaleSource = "PROKIP"
)

type SaleLogStatus string

const (
	SaleLogStatusProcessing SaleLogStatus = "PROCESSING"
	SaleLogStatusSynced     SaleLogStatus = "SYNCED"
	SaleLogStatusCancelled  SaleLogStatus = "CANCELLED"
)

func (s *SalesLog) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
