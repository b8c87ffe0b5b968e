package woocommerce

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"prokipsync/internal/models"

	"github.com/shopspring/decimal"
)

// Order statuses that count as a completed sale.
var saleStatuses = []string{"processing", "completed"}

var cancelledStatuses = map[string]bool{
	"cancelled": true,
	"refunded":  true,
	"failed":    true,
}

type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

// TransformOrder converts a WooCommerce order to the canonical store order.
func (t *Transformer) TransformOrder(o *Order) *models.StoreOrder {
	out := &models.StoreOrder{
		ExternalID: strconv.FormatInt(o.ID, 10),
		Number:     o.Number,
		Status:     o.Status,
		Paid:       IsSaleStatus(o.Status),
		Cancelled:  cancelledStatuses[o.Status],
		Currency:   o.Currency,
		Total:      o.Total,
		Customer:   strings.TrimSpace(o.Billing.FirstName + " " + o.Billing.LastName),
	}
	if out.Number == "" {
		out.Number = out.ExternalID
	}
	if created, err := time.Parse(dateLayout, o.DateCreatedGMT); err == nil {
		out.CreatedAt = created.UTC()
	}

	for _, li := range o.LineItems {
		item := models.StoreLineItem{
			SKU:       strings.TrimSpace(li.SKU),
			Name:      li.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.Price,
			ProductID: strconv.FormatInt(li.ProductID, 10),
		}
		if li.VariationID != 0 {
			item.VariantID = strconv.FormatInt(li.VariationID, 10)
		}
		if item.UnitPrice.IsZero() && li.Quantity > 0 {
			item.UnitPrice = li.Total.DivRound(decimal.NewFromInt(int64(li.Quantity)), 2)
		}
		out.LineItems = append(out.LineItems, item)
	}
	return out
}

// TransformProduct converts a product or variation to the canonical form.
func (t *Transformer) TransformProduct(p *Product) *models.StoreProduct {
	out := &models.StoreProduct{
		SKU:         strings.TrimSpace(p.SKU),
		Name:        p.Name,
		Price:       p.Price,
		ManageStock: bool(p.ManageStock),
	}
	if p.StockQuantity != nil {
		out.StockQuantity = *p.StockQuantity
	}
	if p.ParentID != 0 {
		out.Ref = models.ProductRef{
			ProductID: strconv.FormatInt(p.ParentID, 10),
			VariantID: strconv.FormatInt(p.ID, 10),
		}
	} else {
		out.Ref = models.ProductRef{ProductID: strconv.FormatInt(p.ID, 10)}
	}
	return out
}

// IsSaleStatus reports whether an order in this status is a completed sale.
func IsSaleStatus(status string) bool {
	for _, s := range saleStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid woocommerce id %q", s)
	}
	return id, nil
}
