package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreOrder is an order from any store platform in canonical form.
type StoreOrder struct {
	ExternalID string
	Number     string
	Status     string
	// Paid is true when the platform considers the order a completed sale.
	Paid      bool
	Cancelled bool
	Currency  string
	Total     decimal.Decimal
	Customer  string
	CreatedAt time.Time
	LineItems []StoreLineItem
}

type StoreLineItem struct {
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	ProductID string
	VariantID string
}

// ItemCount sums the quantities of all line items.
func (o *StoreOrder) ItemCount() int {
	n := 0
	for _, li := range o.LineItems {
		n += li.Quantity
	}
	return n
}

// StoreProduct is a sellable unit (product or variant) matched by SKU.
type StoreProduct struct {
	Ref           ProductRef
	SKU           string
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	ManageStock   bool
}

// ProductRef identifies the stock-bearing record on a store platform.
type ProductRef struct {
	ProductID       string
	VariantID       string
	InventoryItemID string
}

// StoreRef builds a ProductRef from a cached SKU match.
func (i *InventoryCache) StoreRef() ProductRef {
	return ProductRef{
		ProductID:       i.StoreProductID,
		VariantID:       i.StoreVariantID,
		InventoryItemID: i.StoreInventoryItemID,
	}
}
