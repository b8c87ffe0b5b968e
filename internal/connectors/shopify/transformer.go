package shopify

import (
	"fmt"
	"strconv"
	"strings"

	"prokipsync/internal/models"
)

type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// IsSale reports whether the order counts as a completed sale.
func IsSale(o *Order) bool {
	return o.FinancialStatus == "paid" && o.CancelledAt == nil
}

// TransformOrder converts a Shopify order to the canonical store order
func (t *Transformer) TransformOrder(o *Order) *models.StoreOrder {
	out := &models.StoreOrder{
		ExternalID: strconv.FormatInt(o.ID, 10),
		Number:     strconv.FormatInt(o.OrderNumber, 10),
		Status:     o.FinancialStatus,
		Paid:       IsSale(o),
		Cancelled:  o.CancelledAt != nil || o.FinancialStatus == "refunded" || o.FinancialStatus == "voided",
		Currency:   o.Currency,
		Total:      o.TotalPrice,
		CreatedAt:  o.CreatedAt.UTC(),
	}
	if o.OrderNumber == 0 {
		out.Number = strings.TrimPrefix(o.Name, "#")
	}
	if out.Number == "" {
		out.Number = out.ExternalID
	}
	if o.Customer != nil {
		out.Customer = strings.TrimSpace(o.Customer.FirstName + " " + o.Customer.LastName)
	}

	for _, li := range o.LineItems {
		item := models.StoreLineItem{
			SKU:       strings.TrimSpace(li.Sku),
			Name:      li.Title,
			Quantity:  li.Quantity,
			UnitPrice: li.Price,
		}
		if li.ProductID != nil {
			item.ProductID = strconv.FormatInt(*li.ProductID, 10)
		}
		if li.VariantID != nil {
			item.VariantID = strconv.FormatInt(*li.VariantID, 10)
		}
		out.LineItems = append(out.LineItems, item)
	}
	return out
}

// TransformVariant converts a variant to the canonical sellable unit. Stock is
// always written through the inventory item.
func (t *Transformer) TransformVariant(p *Product, v *Variant) *models.StoreProduct {
	name := p.Title
	if v.Title != "" && v.Title != "Default Title" {
		name = fmt.Sprintf("%s - %s", p.Title, v.Title)
	}
	return &models.StoreProduct{
		Ref: models.ProductRef{
			ProductID:       strconv.FormatInt(p.ID, 10),
			VariantID:       strconv.FormatInt(v.ID, 10),
			InventoryItemID: strconv.FormatInt(v.InventoryItemID, 10),
		},
		SKU:           strings.TrimSpace(v.Sku),
		Name:          name,
		Price:         v.Price,
		StockQuantity: v.InventoryQuantity,
		ManageStock:   v.InventoryManagement == "shopify",
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid shopify id %q", s)
	}
	return id, nil
}
