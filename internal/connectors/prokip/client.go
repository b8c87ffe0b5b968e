// Package prokip is a client for the Prokip connector API.
package prokip

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"prokipsync/internal/connectors"
	"prokipsync/internal/logger"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultBaseURL = "https://api.prokip.africa"
	apiPath        = "/connector/api"
	platformName   = "prokip"
	defaultPerPage = 100
	// Prokip expects local wall-clock timestamps without a zone.
	transactionLayout = "2006-01-02 15:04:05"
)

type Client struct {
	http   *resty.Client
	logger *logger.Logger
}

func NewClient(baseURL, token string, logger *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+apiPath).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)

	return &Client{http: rc, logger: logger}
}

func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.http.SetTimeout(d)
	}
	return c
}

// ListProducts fetches one page of the catalogue.
func (c *Client) ListProducts(ctx context.Context, page int) ([]Product, bool, error) {
	if page < 1 {
		page = 1
	}
	var out listResponse[Product]
	err := c.get(ctx, "/product", map[string]string{
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(defaultPerPage),
	}, &out)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list products: %w", err)
	}
	return out.Data, out.more(), nil
}

// GetProduct fetches one product with its variations.
func (c *Client) GetProduct(ctx context.Context, productID int) (*Product, error) {
	var out listResponse[Product]
	if err := c.get(ctx, fmt.Sprintf("/product/%d", productID), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", productID, err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("prokip product %d: %w", productID, connectors.ErrProductNotFound)
	}
	return &out.Data[0], nil
}

// FindProductBySKU returns the sellable unit carrying the SKU.
func (c *Client) FindProductBySKU(ctx context.Context, sku string) (*Item, error) {
	var out listResponse[Product]
	if err := c.get(ctx, "/product", map[string]string{"sku": sku}, &out); err != nil {
		return nil, fmt.Errorf("failed to search product by sku %q: %w", sku, err)
	}
	for i := range out.Data {
		for _, item := range out.Data[i].Items() {
			if item.SKU == sku {
				return &item, nil
			}
		}
	}
	return nil, fmt.Errorf("prokip sku %q: %w", sku, connectors.ErrProductNotFound)
}

// StockReport returns the stock of every product at a location.
func (c *Client) StockReport(ctx context.Context, locationID int) ([]StockRow, error) {
	var rows []StockRow
	for page := 1; ; page++ {
		params := map[string]string{
			"page":     strconv.Itoa(page),
			"per_page": strconv.Itoa(defaultPerPage),
		}
		if locationID > 0 {
			params["location_id"] = strconv.Itoa(locationID)
		}

		var out listResponse[StockRow]
		if err := c.get(ctx, "/product-stock-report", params, &out); err != nil {
			return nil, fmt.Errorf("failed to fetch stock report: %w", err)
		}
		for _, r := range out.Data {
			if locationID > 0 && r.LocationID != 0 && r.LocationID != locationID {
				continue
			}
			rows = append(rows, r)
		}
		if !out.more() {
			return rows, nil
		}
	}
}

// CreateSale records a sell and returns its Prokip id.
func (c *Client) CreateSale(ctx context.Context, sale Sale) (int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string][]Sale{"sells": {sale}}).
		Post("/sell")
	if err != nil {
		return 0, fmt.Errorf("failed to create sale %s: %w", sale.InvoiceNo, err)
	}
	if err := checkResponse(resp); err != nil {
		return 0, fmt.Errorf("failed to create sale %s: %w", sale.InvoiceNo, err)
	}

	id, err := parseSaleID(resp.Body())
	if err != nil {
		return 0, fmt.Errorf("sale %s: %w", sale.InvoiceNo, err)
	}
	c.logger.Debug("Created Prokip sale %d for invoice %s", id, sale.InvoiceNo)
	return id, nil
}

// ListSales fetches one page of sells recorded since the given time.
func (c *Client) ListSales(ctx context.Context, q SalesQuery) ([]Sell, bool, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	params := map[string]string{
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(defaultPerPage),
	}
	if !q.Since.IsZero() {
		params["start_date"] = q.Since.Format("2006-01-02")
	}
	if q.LocationID > 0 {
		params["location_id"] = strconv.Itoa(q.LocationID)
	}

	var out listResponse[Sell]
	if err := c.get(ctx, "/sell", params, &out); err != nil {
		return nil, false, fmt.Errorf("failed to list sales: %w", err)
	}
	return out.Data, out.more(), nil
}

// ListLocations returns the business locations the token can see.
func (c *Client) ListLocations(ctx context.Context) ([]Location, error) {
	var out listResponse[Location]
	if err := c.get(ctx, "/business-location", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return out.Data, nil
}

// FormatTransactionDate renders t the way the sell endpoint expects.
func FormatTransactionDate(t time.Time) string {
	return t.Format(transactionLayout)
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	c.logger.Debug("prokip GET %s", path)

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	return checkResponse(resp)
}

func checkResponse(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	body := resp.String()
	if len(body) > 4096 {
		body = body[:4096]
	}
	return &connectors.APIError{Platform: platformName, StatusCode: resp.StatusCode(), Body: body}
}

// parseSaleID reads the id from the sell response, which is either an array
// of created transactions or a single object.
func parseSaleID(body []byte) (int, error) {
	if len(body) > connectors.MaxResponseSize {
		return 0, fmt.Errorf("sell response exceeds %d bytes", connectors.MaxResponseSize)
	}

	type created struct {
		ID    int    `json:"id"`
		Error string `json:"error"`
	}

	var list []created
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 || list[0].ID == 0 {
			return 0, fmt.Errorf("sell response contained no transaction: %s", truncate(body))
		}
		return list[0].ID, nil
	}

	var single struct {
		created
		Data *created `json:"data"`
	}
	if err := json.Unmarshal(body, &single); err != nil {
		return 0, fmt.Errorf("failed to decode sell response: %w", err)
	}
	if single.Data != nil && single.Data.ID != 0 {
		return single.Data.ID, nil
	}
	if single.ID != 0 {
		return single.ID, nil
	}
	if single.Error != "" {
		return 0, fmt.Errorf("prokip rejected sell: %s", single.Error)
	}
	return 0, fmt.Errorf("sell response contained no transaction: %s", truncate(body))
}

func truncate(b []byte) string {
	if len(b) > 256 {
		return string(b[:256]) + "..."
	}
	return string(b)
}
