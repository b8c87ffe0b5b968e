package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"prokipsync/internal/connectors"
	"prokipsync/internal/logger"
	"prokipsync/internal/models"
)

// ShopifyConnector adapts the Admin REST client to the canonical store types.
type ShopifyConnector struct {
	client      *Client
	transformer *Transformer
	logger      *logger.Logger
	locationID  string

	// Shopify paginates with cursors; page N+1 is reachable only through
	// the cursor returned with page N.
	mu      sync.Mutex
	cursors map[int]string
}

func New(conn *models.Connection, timeout time.Duration, logger *logger.Logger) *ShopifyConnector {
	client := NewClient(conn.StoreURL, conn.AccessToken, logger).WithTimeout(timeout)
	return NewWithClient(client, conn.LocationID, logger)
}

func NewWithClient(client *Client, locationID string, logger *logger.Logger) *ShopifyConnector {
	return &ShopifyConnector{
		client:      client,
		transformer: NewTransformer(),
		logger:      logger,
		locationID:  locationID,
		cursors:     make(map[int]string),
	}
}

// ListOrders returns one page of paid, non-cancelled orders updated after
// since. Pages must be requested in order starting at 1.
func (sc *ShopifyConnector) ListOrders(ctx context.Context, since time.Time, page int) ([]models.StoreOrder, bool, error) {
	if page < 1 {
		page = 1
	}

	params := ListOrdersParams{UpdatedAtMin: since}
	if page > 1 {
		sc.mu.Lock()
		cursor, ok := sc.cursors[page]
		sc.mu.Unlock()
		if !ok {
			return nil, false, fmt.Errorf("shopify orders page %d requested before page %d", page, page-1)
		}
		params.PageInfo = cursor
	}

	resp, err := sc.client.GetOrders(ctx, params)
	if err != nil {
		return nil, false, err
	}

	out := make([]models.StoreOrder, 0, len(resp.Orders))
	for i := range resp.Orders {
		if !IsSale(&resp.Orders[i]) {
			continue
		}
		out = append(out, *sc.transformer.TransformOrder(&resp.Orders[i]))
	}

	more := resp.NextPageInfo != ""
	if more {
		sc.mu.Lock()
		sc.cursors[page+1] = resp.NextPageInfo
		sc.mu.Unlock()
	}
	return out, more, nil
}

func (sc *ShopifyConnector) GetOrder(ctx context.Context, orderID string) (*models.StoreOrder, error) {
	id, err := parseID(orderID)
	if err != nil {
		return nil, err
	}
	order, err := sc.client.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return sc.transformer.TransformOrder(order), nil
}

// FindProductBySKU pages through the catalogue until a variant carries the SKU.
func (sc *ShopifyConnector) FindProductBySKU(ctx context.Context, sku string) (*models.StoreProduct, error) {
	pageInfo := ""
	for {
		resp, err := sc.client.GetProducts(ctx, defaultLimit, pageInfo)
		if err != nil {
			return nil, err
		}
		for i := range resp.Products {
			p := &resp.Products[i]
			for j := range p.Variants {
				if p.Variants[j].Sku == sku {
					return sc.transformer.TransformVariant(p, &p.Variants[j]), nil
				}
			}
		}
		if resp.NextPageInfo == "" {
			break
		}
		pageInfo = resp.NextPageInfo
	}
	return nil, fmt.Errorf("shopify sku %q: %w", sku, connectors.ErrProductNotFound)
}

// SetStock sets the available quantity at the connection's location.
func (sc *ShopifyConnector) SetStock(ctx context.Context, ref models.ProductRef, quantity int) error {
	itemID, err := parseID(ref.InventoryItemID)
	if err != nil {
		return fmt.Errorf("missing inventory item for variant %q: %w", ref.VariantID, err)
	}
	locationID, err := sc.location(ctx)
	if err != nil {
		return err
	}
	return sc.client.SetInventoryLevel(ctx, locationID, itemID, quantity)
}

// location returns the configured location or falls back to the shop's
// primary location.
func (sc *ShopifyConnector) location(ctx context.Context) (int64, error) {
	sc.mu.Lock()
	configured := sc.locationID
	sc.mu.Unlock()
	if configured != "" {
		return parseID(configured)
	}

	shop, err := sc.client.GetShopInfo(ctx)
	if err != nil {
		return 0, err
	}
	if shop.PrimaryLocationID == 0 {
		return 0, fmt.Errorf("shopify shop %s has no primary location", shop.Domain)
	}
	sc.logger.Debug("Using primary location %d for shop %s", shop.PrimaryLocationID, shop.Domain)

	sc.mu.Lock()
	sc.locationID = fmt.Sprintf("%d", shop.PrimaryLocationID)
	sc.mu.Unlock()
	return shop.PrimaryLocationID, nil
}

func (sc *ShopifyConnector) Ping(ctx context.Context) error {
	if _, err := sc.client.GetShopInfo(ctx); err != nil {
		return fmt.Errorf("shopify credentials check failed: %w", err)
	}
	return nil
}

// ParseWebhook extracts the order id from an orders/* webhook body.
func ParseWebhook(payload []byte) (*WebhookPayload, error) {
	var webhook WebhookPayload
	if err := json.Unmarshal(payload, &webhook); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if webhook.ID == 0 {
		return nil, fmt.Errorf("webhook payload has no id")
	}
	return &webhook, nil
}
