package woocommerce

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the WooCommerce REST v3 order resource, trimmed to the fields the
// sync reads.
type Order struct {
	ID             int64           `json:"id"`
	ParentID       int64           `json:"parent_id"`
	Number         string          `json:"number"`
	Status         string          `json:"status"`
	Currency       string          `json:"currency"`
	Total          decimal.Decimal `json:"total"`
	DateCreatedGMT string          `json:"date_created_gmt"`
	DatePaidGMT    *string         `json:"date_paid_gmt"`
	Billing        Address         `json:"billing"`
	LineItems      []LineItem      `json:"line_items"`
}

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type LineItem struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	ProductID   int64           `json:"product_id"`
	VariationID int64           `json:"variation_id"`
	Quantity    int             `json:"quantity"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Total       decimal.Decimal `json:"total"`
}

// Product covers both simple products and variations.
type Product struct {
	ID            int64           `json:"id"`
	ParentID      int64           `json:"parent_id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	ManageStock   ManageStock     `json:"manage_stock"`
	StockQuantity *int            `json:"stock_quantity"`
	StockStatus   string          `json:"stock_status"`
	Variations    []int64         `json:"variations"`
}

// ManageStock decodes WooCommerce's manage_stock, which is a bool on products
// and may be the string "parent" on variations.
type ManageStock bool

func (m *ManageStock) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*m = ManageStock(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = ManageStock(s == "parent" || s == "true")
	return nil
}

// StockUpdate is the body for product and variation stock updates.
type StockUpdate struct {
	ManageStock   bool `json:"manage_stock"`
	StockQuantity int  `json:"stock_quantity"`
}

// ListOrdersParams filters GET /orders.
type ListOrdersParams struct {
	Statuses      []string
	ModifiedAfter time.Time
	Page          int
	PerPage       int
}

// Webhook is the minimal shape of an order webhook delivery.
type Webhook struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

const dateLayout = "2006-01-02T15:04:05"
