package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"prokipsync/internal/connectors"
	"prokipsync/internal/logger"
)

const (
	apiVersion   = "2023-10"
	platformName = "shopify"
	defaultLimit = 250
)

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *logger.Logger
}

// NewClient accepts a bare shop name ("acme"), a shop domain or a full URL.
func NewClient(shop, accessToken string, logger *logger.Logger) *Client {
	return &Client{
		baseURL:     shopBaseURL(shop),
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func shopBaseURL(shop string) string {
	shop = strings.TrimRight(strings.TrimSpace(shop), "/")
	switch {
	case strings.HasPrefix(shop, "http://"), strings.HasPrefix(shop, "https://"):
		return shop
	case strings.Contains(shop, "."):
		return "https://" + shop
	default:
		return fmt.Sprintf("https://%s.myshopify.com", shop)
	}
}

// WithTimeout bounds each request. Zero keeps the default.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpClient.Timeout = d
	}
	return c
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// GetOrders fetches one page of paid orders.
func (c *Client) GetOrders(ctx context.Context, params ListOrdersParams) (*OrdersResponse, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if params.PageInfo != "" {
		// Shopify rejects filters alongside page_info.
		q.Set("page_info", params.PageInfo)
	} else {
		q.Set("status", "any")
		q.Set("financial_status", "paid")
		if !params.UpdatedAtMin.IsZero() {
			q.Set("updated_at_min", params.UpdatedAtMin.UTC().Format(time.RFC3339))
		}
	}

	var ordersResp OrdersResponse
	resp, err := c.do(ctx, http.MethodGet, "/orders.json", q, nil, &ordersResp)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	ordersResp.NextPageInfo = nextPageInfo(resp)
	return &ordersResp, nil
}

// GetOrder fetches a single order by ID
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	var orderResp struct {
		Order Order `json:"order"`
	}
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d.json", orderID), nil, nil, &orderResp); err != nil {
		if connectors.IsNotFound(err) {
			return nil, fmt.Errorf("order %d: %w", orderID, connectors.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	return &orderResp.Order, nil
}

// GetProducts fetches products from Shopify
func (c *Client) GetProducts(ctx context.Context, limit int, pageInfo string) (*ProductsResponse, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", "id,title,status,variants")
	if pageInfo != "" {
		q.Set("page_info", pageInfo)
	}

	var productsResp ProductsResponse
	resp, err := c.do(ctx, http.MethodGet, "/products.json", q, nil, &productsResp)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	productsResp.NextPageInfo = nextPageInfo(resp)
	return &productsResp, nil
}

// SetInventoryLevel sets the available quantity of an inventory item at a location.
func (c *Client) SetInventoryLevel(ctx context.Context, locationID, inventoryItemID int64, available int) error {
	body := InventoryLevelSet{
		LocationID:      locationID,
		InventoryItemID: inventoryItemID,
		Available:       available,
	}
	if _, err := c.do(ctx, http.MethodPost, "/inventory_levels/set.json", nil, body, nil); err != nil {
		return fmt.Errorf("failed to set inventory level of item %d: %w", inventoryItemID, err)
	}
	return nil
}

// GetShopInfo fetches shop information
func (c *Client) GetShopInfo(ctx context.Context) (*Shop, error) {
	var shopResp struct {
		Shop Shop `json:"shop"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/shop.json", nil, nil, &shopResp); err != nil {
		return nil, fmt.Errorf("failed to get shop info: %w", err)
	}
	return &shopResp.Shop, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (*http.Response, error) {
	endpoint := fmt.Sprintf("%s/admin/api/%s%s", c.baseURL, apiVersion, path)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Add authentication header
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("shopify %s %s", method, path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if err := connectors.CheckResponse(platformName, resp); err != nil {
		return resp, err
	}

	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, connectors.MaxResponseSize)).Decode(out); err != nil {
			return resp, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp, nil
}

// nextPageInfo extracts the page_info cursor of the rel="next" Link.
func nextPageInfo(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	m := nextLinkPattern.FindStringSubmatch(resp.Header.Get("Link"))
	if m == nil {
		return ""
	}
	u, err := url.Parse(m[1])
	if err != nil {
		return ""
	}
	return u.Query().Get("page_info")
}
