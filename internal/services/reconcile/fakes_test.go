package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"prokipsync/internal/connectors"
	"prokipsync/internal/connectors/prokip"
	"prokipsync/internal/database"
	"prokipsync/internal/logger"
	"prokipsync/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeStore struct {
	mu        sync.Mutex
	orders    []models.StoreOrder
	pageSize  int
	listErr   error
	products  map[string]*models.StoreProduct
	stock     map[string]int
	setErr    map[string]error
	lookups   int
	sinceSeen []time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[string]*models.StoreProduct{},
		stock:    map[string]int{},
		setErr:   map[string]error{},
		pageSize: 100,
	}
}

func (f *fakeStore) addProduct(sku string, id string, qty int) {
	f.products[sku] = &models.StoreProduct{Ref: models.ProductRef{ProductID: id}, SKU: sku, Name: "Product " + sku, StockQuantity: qty, ManageStock: true}
	f.stock[id] = qty
}

func (f *fakeStore) ListOrders(ctx context.Context, since time.Time, page int) ([]models.StoreOrder, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceSeen = append(f.sinceSeen, since)
	if f.listErr != nil {
		return nil, false, f.listErr
	}
	start := (page - 1) * f.pageSize
	if start >= len(f.orders) {
		return nil, false, nil
	}
	end := start + f.pageSize
	if end > len(f.orders) {
		end = len(f.orders)
	}
	return f.orders[start:end], end < len(f.orders), nil
}

func (f *fakeStore) GetOrder(ctx context.Context, orderID string) (*models.StoreOrder, error) {
	for i := range f.orders {
		if f.orders[i].ExternalID == orderID {
			o := f.orders[i]
			return &o, nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", orderID, connectors.ErrOrderNotFound)
}

func (f *fakeStore) FindProductBySKU(ctx context.Context, sku string) (*models.StoreProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	p, ok := f.products[sku]
	if !ok {
		return nil, fmt.Errorf("sku %s: %w", sku, connectors.ErrProductNotFound)
	}
	out := *p
	out.StockQuantity = f.stock[p.Ref.ProductID]
	return &out, nil
}

func (f *fakeStore) SetStock(ctx context.Context, ref models.ProductRef, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.setErr[ref.ProductID]; err != nil {
		return err
	}
	f.stock[ref.ProductID] = quantity
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

type fakeProkip struct {
	mu       sync.Mutex
	products []prokip.Product
	stock    []prokip.StockRow
	sells    []prokip.Sell
	created  []prokip.Sale
	saleErr  error
	nextID   int
	lookups  int
	salesQ   []prokip.SalesQuery
}

func newFakeProkip() *fakeProkip {
	return &fakeProkip{nextID: 900}
}

func (f *fakeProkip) addSimple(id, variationID int, sku string) {
	f.products = append(f.products, prokip.Product{
		ID: id, Name: "Item " + sku, SKU: sku, Type: "single",
		ProductVariations: []prokip.ProductVariation{{Variations: []prokip.Variation{{ID: variationID, ProductID: id, SubSKU: sku}}}},
	})
}

func (f *fakeProkip) ListProducts(ctx context.Context, page int) ([]prokip.Product, bool, error) {
	if page > 1 {
		return nil, false, nil
	}
	return f.products, false, nil
}

func (f *fakeProkip) GetProduct(ctx context.Context, productID int) (*prokip.Product, error) {
	for i := range f.products {
		if f.products[i].ID == productID {
			return &f.products[i], nil
		}
	}
	return nil, fmt.Errorf("product %d: %w", productID, connectors.ErrProductNotFound)
}

func (f *fakeProkip) FindProductBySKU(ctx context.Context, sku string) (*prokip.Item, error) {
	f.mu.Lock()
	f.lookups++
	f.mu.Unlock()
	for i := range f.products {
		for _, item := range f.products[i].Items() {
			if item.SKU == sku {
				return &item, nil
			}
		}
	}
	return nil, fmt.Errorf("sku %s: %w", sku, connectors.ErrProductNotFound)
}

func (f *fakeProkip) StockReport(ctx context.Context, locationID int) ([]prokip.StockRow, error) {
	return f.stock, nil
}

func (f *fakeProkip) CreateSale(ctx context.Context, sale prokip.Sale) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saleErr != nil {
		return 0, f.saleErr
	}
	f.created = append(f.created, sale)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeProkip) ListSales(ctx context.Context, q prokip.SalesQuery) ([]prokip.Sell, bool, error) {
	f.salesQ = append(f.salesQ, q)
	if q.Page > 1 {
		return nil, false, nil
	}
	return f.sells, false, nil
}

func (f *fakeProkip) ListLocations(ctx context.Context) ([]prokip.Location, error) {
	return []prokip.Location{{ID: 1, Name: "Main"}}, nil
}

type fixture struct {
	db     *gorm.DB
	svc    *Service
	store  *fakeStore
	prokip *fakeProkip
	conn   *models.Connection
	now    time.Time
}

func newFixture(t *testing.T, platform models.Platform) *fixture {
	t.Helper()
	d, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	user := &models.User{Email: "owner@example.com", Name: "Owner"}
	require.NoError(t, d.DB.Create(user).Error)
	conn := &models.Connection{UserID: user.ID, Name: "Shop", Platform: platform, StoreURL: "https://shop.example.com"}
	require.NoError(t, d.DB.Create(conn).Error)
	require.NoError(t, d.DB.Create(&models.ProkipConfig{UserID: user.ID, Token: "tok", LocationID: 1}).Error)

	f := &fixture{
		db:     d.DB,
		store:  newFakeStore(),
		prokip: newFakeProkip(),
		conn:   conn,
		now:    time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(d.DB, Options{Lookback: 24 * time.Hour}, logger.NewNop()).
		WithStoreFactory(func(*models.Connection) (Store, error) { return f.store, nil }).
		WithProkipFactory(func(*models.ProkipConfig) Prokip { return f.prokip })
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) reloadConn(t *testing.T) *models.Connection {
	t.Helper()
	var c models.Connection
	require.NoError(t, f.db.First(&c, "id = ?", f.conn.ID).Error)
	return &c
}

func (f *fixture) count(t *testing.T, model interface{}, where ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(model)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func paidOrder(id string, lines ...models.StoreLineItem) models.StoreOrder {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return models.StoreOrder{
		ExternalID: id,
		Number:     id,
		Status:     "processing",
		Paid:       true,
		Currency:   "KES",
		Total:      total,
		CreatedAt:  time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
		LineItems:  lines,
	}
}

func line(sku string, qty int, price int64) models.StoreLineItem {
	return models.StoreLineItem{SKU: sku, Name: "Line " + sku, Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}
