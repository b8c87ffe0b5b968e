package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"prokipsync/internal/connectors"
	"prokipsync/internal/logger"
	"prokipsync/internal/models"
)

// WooCommerceConnector adapts the REST client to the canonical store types.
type WooCommerceConnector struct {
	client      *Client
	transformer *Transformer
	logger      *logger.Logger
}

func New(conn *models.Connection, timeout time.Duration, logger *logger.Logger) *WooCommerceConnector {
	client := NewClient(conn.StoreURL, conn.ConsumerKey, conn.ConsumerSecret, logger).WithTimeout(timeout)
	return NewWithClient(client, logger)
}

func NewWithClient(client *Client, logger *logger.Logger) *WooCommerceConnector {
	return &WooCommerceConnector{
		client:      client,
		transformer: NewTransformer(),
		logger:      logger,
	}
}

// ListOrders returns one page of sale-status orders modified after since.
func (wc *WooCommerceConnector) ListOrders(ctx context.Context, since time.Time, page int) ([]models.StoreOrder, bool, error) {
	orders, pages, err := wc.client.ListOrders(ctx, ListOrdersParams{
		Statuses:      saleStatuses,
		ModifiedAfter: since,
		Page:          page,
	})
	if err != nil {
		return nil, false, err
	}

	out := make([]models.StoreOrder, 0, len(orders))
	for i := range orders {
		out = append(out, *wc.transformer.TransformOrder(&orders[i]))
	}
	return out, page < pages, nil
}

func (wc *WooCommerceConnector) GetOrder(ctx context.Context, orderID string) (*models.StoreOrder, error) {
	id, err := parseID(orderID)
	if err != nil {
		return nil, err
	}
	order, err := wc.client.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return wc.transformer.TransformOrder(order), nil
}

// FindProductBySKU looks the SKU up among products, then among the
// variations of any variable product returned by the search.
func (wc *WooCommerceConnector) FindProductBySKU(ctx context.Context, sku string) (*models.StoreProduct, error) {
	products, err := wc.client.ProductsBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}

	for i := range products {
		if products[i].SKU == sku {
			return wc.transformer.TransformProduct(&products[i]), nil
		}
	}

	for _, p := range products {
		if p.Type != "variable" {
			continue
		}
		variations, err := wc.client.ListVariations(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for i := range variations {
			if variations[i].SKU == sku {
				return wc.transformer.TransformProduct(&variations[i]), nil
			}
		}
	}

	return nil, fmt.Errorf("woocommerce sku %q: %w", sku, connectors.ErrProductNotFound)
}

// SetStock writes an absolute stock quantity.
func (wc *WooCommerceConnector) SetStock(ctx context.Context, ref models.ProductRef, quantity int) error {
	productID, err := parseID(ref.ProductID)
	if err != nil {
		return err
	}
	if ref.VariantID == "" {
		return wc.client.UpdateProductStock(ctx, productID, quantity)
	}
	variationID, err := strconv.ParseInt(ref.VariantID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid woocommerce variation id %q", ref.VariantID)
	}
	return wc.client.UpdateVariationStock(ctx, productID, variationID, quantity)
}

func (wc *WooCommerceConnector) Ping(ctx context.Context) error {
	return wc.client.Ping(ctx)
}

// ParseWebhook extracts the order id from an order webhook body.
func ParseWebhook(payload []byte) (*Webhook, error) {
	var hook Webhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if hook.ID == 0 {
		return nil, fmt.Errorf("webhook payload has no id")
	}
	return &hook, nil
}
