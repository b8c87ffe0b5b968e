package shopify

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a Shopify product trimmed to the fields used for SKU matching
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Status   string    `json:"status"`
	Variants []Variant `json:"variants"`
}

// Variant represents a product variant
type Variant struct {
	ID                  int64           `json:"id"`
	ProductID           int64           `json:"product_id"`
	Title               string          `json:"title"`
	Price               decimal.Decimal `json:"price"`
	Sku                 string          `json:"sku"`
	Position            int             `json:"position"`
	InventoryManagement string          `json:"inventory_management"`
	InventoryItemID     int64           `json:"inventory_item_id"`
	InventoryQuantity   int             `json:"inventory_quantity"`
}

// Order represents a Shopify order
type Order struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	OrderNumber     int64           `json:"order_number"`
	FinancialStatus string          `json:"financial_status"`
	CancelledAt     *time.Time      `json:"cancelled_at"`
	Currency        string          `json:"currency"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	CreatedAt       time.Time       `json:"created_at"`
	Customer        *Customer       `json:"customer"`
	LineItems       []LineItem      `json:"line_items"`
}

type Customer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// LineItem is a single order line. ProductID and VariantID are null for
// custom items.
type LineItem struct {
	ID        int64           `json:"id"`
	ProductID *int64          `json:"product_id"`
	VariantID *int64          `json:"variant_id"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Sku       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
}

// Shop represents shop information
type Shop struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Domain            string `json:"domain"`
	Currency          string `json:"currency"`
	PrimaryLocationID int64  `json:"primary_location_id"`
	MyshopifyDomain   string `json:"myshopify_domain"`
}

// InventoryLevelSet is the body of inventory_levels/set.json
type InventoryLevelSet struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

// ProductsResponse represents the response from products API
type ProductsResponse struct {
	Products []Product `json:"products"`
	// NextPageInfo is parsed from the Link header, empty on the last page.
	NextPageInfo string `json:"-"`
}

// OrdersResponse represents the response from orders API
type OrdersResponse struct {
	Orders       []Order `json:"orders"`
	NextPageInfo string  `json:"-"`
}

// ListOrdersParams filters orders.json
type ListOrdersParams struct {
	UpdatedAtMin time.Time
	Limit        int
	PageInfo     string
}

// WebhookPayload is the part of an orders/* webhook body we read
type WebhookPayload struct {
	ID              int64  `json:"id"`
	FinancialStatus string `json:"financial_status"`
}
