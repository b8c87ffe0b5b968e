package prokip

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a Prokip catalogue entry. Single products carry one variation
// whose sub_sku equals the product sku.
type Product struct {
	ID                int                `json:"id"`
	Name              string             `json:"name"`
	SKU               string             `json:"sku"`
	Type              string             `json:"type"`
	ProductVariations []ProductVariation `json:"product_variations"`
}

type ProductVariation struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Variations []Variation `json:"variations"`
}

type Variation struct {
	ID                       int              `json:"id"`
	ProductID                int              `json:"product_id"`
	Name                     string           `json:"name"`
	SubSKU                   string           `json:"sub_sku"`
	DefaultSellPrice         decimal.Decimal  `json:"default_sell_price"`
	SellPriceIncTax          decimal.Decimal  `json:"sell_price_inc_tax"`
	VariationLocationDetails []LocationDetail `json:"variation_location_details"`
}

type LocationDetail struct {
	LocationID   int             `json:"location_id"`
	QtyAvailable decimal.Decimal `json:"qty_available"`
}

// Item is one sellable unit of a product, addressed by SKU.
type Item struct {
	ProductID   int
	VariationID int
	SKU         string
	Name        string
	Price       decimal.Decimal
	Locations   []LocationDetail
}

// QuantityAt returns the whole units available at a location.
func (i Item) QuantityAt(locationID int) int {
	for _, l := range i.Locations {
		if l.LocationID == locationID {
			return int(l.QtyAvailable.IntPart())
		}
	}
	return 0
}

// Items flattens the product into its sellable units.
func (p *Product) Items() []Item {
	var items []Item
	for _, pv := range p.ProductVariations {
		for _, v := range pv.Variations {
			sku := strings.TrimSpace(v.SubSKU)
			if sku == "" {
				sku = strings.TrimSpace(p.SKU)
			}
			name := p.Name
			if p.Type == "variable" && v.Name != "" && v.Name != "DUMMY" {
				name = p.Name + " - " + v.Name
			}
			price := v.SellPriceIncTax
			if price.IsZero() {
				price = v.DefaultSellPrice
			}
			items = append(items, Item{
				ProductID:   p.ID,
				VariationID: v.ID,
				SKU:         sku,
				Name:        name,
				Price:       price,
				Locations:   v.VariationLocationDetails,
			})
		}
	}
	return items
}

// StockRow is a line of the product stock report.
type StockRow struct {
	SKU         string          `json:"sku"`
	Product     string          `json:"product"`
	ProductID   int             `json:"product_id"`
	VariationID int             `json:"variation_id"`
	Stock       decimal.Decimal `json:"stock"`
	LocationID  int             `json:"location_id"`
}

// Quantity returns the stock in whole units, never negative.
func (r StockRow) Quantity() int {
	q := int(r.Stock.IntPart())
	if q < 0 {
		return 0
	}
	return q
}

// Sale is a sell to record in Prokip.
type Sale struct {
	LocationID      int           `json:"location_id"`
	ContactID       int           `json:"contact_id"`
	TransactionDate string        `json:"transaction_date"`
	InvoiceNo       string        `json:"invoice_no"`
	Status          string        `json:"status"`
	PaymentStatus   string        `json:"payment_status,omitempty"`
	Products        []SaleProduct `json:"products"`
	Payments        []SalePayment `json:"payments,omitempty"`
	AdditionalNotes string        `json:"additional_notes,omitempty"`
}

type SaleProduct struct {
	ProductID   int             `json:"product_id"`
	VariationID int             `json:"variation_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type SalePayment struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

// Sell is a recorded sell as returned by GET sell.
type Sell struct {
	ID              int             `json:"id"`
	LocationID      int             `json:"location_id"`
	InvoiceNo       string          `json:"invoice_no"`
	Status          string          `json:"status"`
	TransactionDate string          `json:"transaction_date"`
	FinalTotal      decimal.Decimal `json:"final_total"`
	SellLines       []SellLine      `json:"sell_lines"`
}

type SellLine struct {
	ID          int             `json:"id"`
	ProductID   int             `json:"product_id"`
	VariationID int             `json:"variation_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price_inc_tax"`
}

// Units returns the sold quantity in whole units.
func (l SellLine) Units() int {
	return int(l.Quantity.IntPart())
}

type Location struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	LocationID string `json:"location_id"`
	City       string `json:"city"`
	Country    string `json:"country"`
}

// SalesQuery filters GET sell.
type SalesQuery struct {
	Since      time.Time
	LocationID int
	Page       int
}

type pageMeta struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

type listResponse[T any] struct {
	Data []T      `json:"data"`
	Meta pageMeta `json:"meta"`
}

func (r *listResponse[T]) more() bool {
	return r.Meta.LastPage > r.Meta.CurrentPage
}
