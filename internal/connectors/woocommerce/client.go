package woocommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"prokipsync/internal/connectors"
	"prokipsync/internal/logger"
)

const (
	apiPath        = "/wp-json/wc/v3"
	platformName   = "woocommerce"
	defaultPerPage = 100
)

// Client talks to the WooCommerce REST API v3 of a single store.
type Client struct {
	storeURL       string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
	logger         *logger.Logger
}

func NewClient(storeURL, consumerKey, consumerSecret string, logger *logger.Logger) *Client {
	return &Client{
		storeURL:       strings.TrimRight(storeURL, "/"),
		consumerKey:    consumerKey,
		consumerSecret: consumerSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
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

// ListOrders fetches one page of orders. The second return value is the
// total number of pages reported by X-WP-TotalPages.
func (c *Client) ListOrders(ctx context.Context, params ListOrdersParams) ([]Order, int, error) {
	q := url.Values{}
	if len(params.Statuses) > 0 {
		q.Set("status", strings.Join(params.Statuses, ","))
	}
	// Filter on modification so orders that become paid later are listed again.
	if !params.ModifiedAfter.IsZero() {
		q.Set("modified_after", params.ModifiedAfter.UTC().Format(time.RFC3339))
	}
	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("orderby", "date")
	q.Set("order", "asc")

	var orders []Order
	resp, err := c.do(ctx, http.MethodGet, "/orders", q, nil, &orders)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, totalPages(resp), nil
}

// GetOrder fetches a single order by ID.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	var order Order
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", orderID), nil, nil, &order); err != nil {
		if connectors.IsNotFound(err) {
			return nil, fmt.Errorf("order %d: %w", orderID, connectors.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	return &order, nil
}

// ProductsBySKU returns products (and variations, on stores that index them)
// carrying the given SKU.
func (c *Client) ProductsBySKU(ctx context.Context, sku string) ([]Product, error) {
	q := url.Values{}
	q.Set("sku", sku)
	q.Set("per_page", "10")

	var products []Product
	if _, err := c.do(ctx, http.MethodGet, "/products", q, nil, &products); err != nil {
		return nil, fmt.Errorf("failed to search products by sku %q: %w", sku, err)
	}
	return products, nil
}

// ListVariations returns all variations of a variable product.
func (c *Client) ListVariations(ctx context.Context, productID int64) ([]Product, error) {
	var all []Product
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(defaultPerPage))

		var variations []Product
		resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d/variations", productID), q, nil, &variations)
		if err != nil {
			return nil, fmt.Errorf("failed to list variations of %d: %w", productID, err)
		}
		for i := range variations {
			variations[i].ParentID = productID
		}
		all = append(all, variations...)
		if page >= totalPages(resp) {
			return all, nil
		}
	}
}

// UpdateProductStock sets the stock of a simple product.
func (c *Client) UpdateProductStock(ctx context.Context, productID int64, quantity int) error {
	body := StockUpdate{ManageStock: true, StockQuantity: quantity}
	if _, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/products/%d", productID), nil, body, nil); err != nil {
		return fmt.Errorf("failed to update stock of product %d: %w", productID, err)
	}
	return nil
}

// UpdateVariationStock sets the stock of one variation.
func (c *Client) UpdateVariationStock(ctx context.Context, productID, variationID int64, quantity int) error {
	body := StockUpdate{ManageStock: true, StockQuantity: quantity}
	path := fmt.Sprintf("/products/%d/variations/%d", productID, variationID)
	if _, err := c.do(ctx, http.MethodPut, path, nil, body, nil); err != nil {
		return fmt.Errorf("failed to update stock of variation %d: %w", variationID, err)
	}
	return nil
}

// Ping checks that the credentials can read the catalogue.
func (c *Client) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("per_page", "1")
	var products []Product
	if _, err := c.do(ctx, http.MethodGet, "/products", q, nil, &products); err != nil {
		return fmt.Errorf("woocommerce credentials check failed: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) (*http.Response, error) {
	if query == nil {
		query = url.Values{}
	}

	endpoint := c.storeURL + apiPath + path
	useBasicAuth := strings.HasPrefix(endpoint, "https://")
	if !useBasicAuth {
		// WooCommerce only accepts query string keys over plain HTTP.
		query.Set("consumer_key", c.consumerKey)
		query.Set("consumer_secret", c.consumerSecret)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if useBasicAuth {
		req.SetBasicAuth(c.consumerKey, c.consumerSecret)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("woocommerce %s %s", method, path)

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

func totalPages(resp *http.Response) int {
	if resp == nil {
		return 1
	}
	n, err := strconv.Atoi(resp.Header.Get("X-WP-TotalPages"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
