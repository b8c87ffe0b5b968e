package woocommerce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"prokipsync/internal/connectors"
	"prokipsync/internal/logger"
	"prokipsync/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnector(t *testing.T, handler http.HandlerFunc) *WooCommerceConnector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "ck_test", "cs_test", logger.NewNop())
	return NewWithClient(client, logger.NewNop())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListOrders_QueryAndPagination(t *testing.T) {
	since := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	wc := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wc/v3/orders", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "processing,completed", q.Get("status"))
		assert.Equal(t, "2024-03-01T08:00:00Z", q.Get("modified_after"))
		assert.Empty(t, q.Get("after"), "creation date must not bound the listing")
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "ck_test", q.Get("consumer_key"))
		assert.Equal(t, "cs_test", q.Get("consumer_secret"))

		w.Header().Set("X-WP-TotalPages", "3")
		writeJSON(w, []map[string]interface{}{
			{
				"id": 512, "number": "512", "status": "processing", "currency": "KES", "total": "1500.00",
				"date_created_gmt": "2024-03-01T09:30:00",
				"billing":          map[string]string{"first_name": "Ada", "last_name": "Obi"},
				"line_items": []map[string]interface{}{
					{"id": 1, "name": "Mug", "product_id": 40, "variation_id": 0, "quantity": 2, "sku": "MUG-1", "price": 500, "total": "1000.00"},
					{"id": 2, "name": "Tee - L", "product_id": 41, "variation_id": 77, "quantity": 1, "sku": "TEE-L", "price": 0, "total": "500.00"},
				},
			},
		})
	})

	orders, more, err := wc.ListOrders(context.Background(), since, 2)
	require.NoError(t, err)
	assert.True(t, more)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, "512", o.ExternalID)
	assert.True(t, o.Paid)
	assert.False(t, o.Cancelled)
	assert.Equal(t, "Ada Obi", o.Customer)
	assert.True(t, decimal.RequireFromString("1500").Equal(o.Total))
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), o.CreatedAt)
	require.Len(t, o.LineItems, 2)
	assert.Equal(t, "MUG-1", o.LineItems[0].SKU)
	assert.True(t, decimal.NewFromInt(500).Equal(o.LineItems[0].UnitPrice))
	assert.Equal(t, "77", o.LineItems[1].VariantID)
	assert.True(t, decimal.NewFromInt(500).Equal(o.LineItems[1].UnitPrice), "unit price falls back to total/qty")
	assert.Equal(t, 3, o.ItemCount())
}

func TestGetOrder_NotFound(t *testing.T) {
	wc := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"woocommerce_rest_shop_order_invalid_id"}`))
	})

	_, err := wc.GetOrder(context.Background(), "99")
	require.Error(t, err)
	assert.True(t, errors.Is(err, connectors.ErrOrderNotFound))

	_, err = wc.GetOrder(context.Background(), "abc")
	assert.Error(t, err)
}

func TestFindProductBySKU_SimpleProduct(t *testing.T) {
	wc := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "MUG-1", r.URL.Query().Get("sku"))
		writeJSON(w, []map[string]interface{}{
			{"id": 40, "name": "Mug", "type": "simple", "sku": "MUG-1", "price": "500", "manage_stock": true, "stock_quantity": 12},
		})
	})

	p, err := wc.FindProductBySKU(context.Background(), "MUG-1")
	require.NoError(t, err)
	assert.Equal(t, models.ProductRef{ProductID: "40"}, p.Ref)
	assert.Equal(t, 12, p.StockQuantity)
	assert.True(t, p.ManageStock)
}

func TestFindProductBySKU_Variation(t *testing.T) {
	wc := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wp-json/wc/v3/products":
			writeJSON(w, []map[string]interface{}{
				{"id": 41, "name": "Tee", "type": "variable", "sku": "TEE", "manage_stock": false},
			})
		case "/wp-json/wc/v3/products/41/variations":
			writeJSON(w, []map[string]interface{}{
				{"id": 76, "sku": "TEE-M", "manage_stock": "parent", "stock_quantity": 1},
				{"id": 77, "sku": "TEE-L", "manage_stock": true, "stock_quantity": 4},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	p, err := wc.FindProductBySKU(context.Background(), "TEE-L")
	require.NoError(t, err)
	assert.Equal(t, models.ProductRef{ProductID: "41", VariantID: "77"}, p.Ref)
	assert.Equal(t, 4, p.StockQuantity)

	_, err = wc.FindProductBySKU(context.Background(), "NOPE")
	assert.True(t, errors.Is(err, connectors.ErrProductNotFound))
}

func TestSetStock(t *testing.T) {
	var calls []string
	var bodies []StockUpdate

	wc := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		calls = append(calls, r.URL.Path)
		var body StockUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		writeJSON(w, map[string]interface{}{"id": 1})
	})

	ctx := context.Background()
	require.NoError(t, wc.SetStock(ctx, models.ProductRef{ProductID: "40"}, 9))
	require.NoError(t, wc.SetStock(ctx, models.ProductRef{ProductID: "41", VariantID: "77"}, 0))

	assert.Equal(t, []string{"/wp-json/wc/v3/products/40", "/wp-json/wc/v3/products/41/variations/77"}, calls)
	assert.Equal(t, []StockUpdate{{ManageStock: true, StockQuantity: 9}, {ManageStock: true, StockQuantity: 0}}, bodies)

	assert.Error(t, wc.SetStock(ctx, models.ProductRef{}, 1))
}

func TestClient_UsesBasicAuthOverHTTPS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck_test", user)
		assert.Equal(t, "cs_test", pass)
		assert.Empty(t, r.URL.Query().Get("consumer_key"))
		writeJSON(w, []Product{})
	}))
	defer server.Close()

	client := NewClient(server.URL, "ck_test", "cs_test", logger.NewNop()).WithHTTPClient(server.Client())
	assert.NoError(t, client.Ping(context.Background()))
}

func TestTransformOrder_Cancelled(t *testing.T) {
	o := NewTransformer().TransformOrder(&Order{ID: 7, Status: "refunded"})
	assert.False(t, o.Paid)
	assert.True(t, o.Cancelled)
	assert.Equal(t, "7", o.Number)
}

func TestParseWebhook(t *testing.T) {
	hook, err := ParseWebhook([]byte(`{"id": 812, "status": "processing"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(812), hook.ID)

	_, err = ParseWebhook([]byte(`webhook_id=3`))
	assert.Error(t, err)

	_, err = ParseWebhook([]byte(`{"status": "processing"}`))
	assert.Error(t, err)
}

func TestNew_AppliesRequestTimeout(t *testing.T) {
	conn := &models.Connection{StoreURL: "https://shop.example.com", ConsumerKey: "ck", ConsumerSecret: "cs"}

	c := New(conn, 5*time.Second, logger.NewNop())
	assert.Equal(t, 5*time.Second, c.client.httpClient.Timeout)

	c = New(conn, 0, logger.NewNop())
	assert.Equal(t, 30*time.Second, c.client.httpClient.Timeout, "zero keeps the default")
}
