package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"prokipsync/internal/config"
	"prokipsync/internal/connectors/prokip"
	"prokipsync/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultComplete(t *testing.T) {
	now := time.Now()

	r := &Result{}
	r.complete(now)
	assert.Equal(t, StatusSuccess, r.Status)

	r = &Result{}
	r.record(outcomeSuccess, "1")
	r.record(outcomeFailed, "2")
	r.record(outcomeSkipped, "3")
	r.complete(now)
	assert.Equal(t, StatusPartial, r.Status)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, []string{"2"}, r.FailedRefs)

	r = &Result{}
	r.record(outcomeFailed, "1")
	r.complete(now)
	assert.Equal(t, StatusFailed, r.Status)
}

func TestInvoiceNumber(t *testing.T) {
	assert.Equal(t, "WC-1042", InvoiceNumber(models.PlatformWooCommerce, "1042"))
	assert.Equal(t, "SH-7", InvoiceNumber(models.PlatformShopify, "7"))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		Sync:   config.SyncConfig{Lookback: 6 * time.Hour, RequestTimeout: 10 * time.Second},
		Prokip: config.ProkipConfig{BaseURL: "https://prokip.test", PaymentMethod: "mpesa", WalkInCustomer: 4},
	}
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, 6*time.Hour, opts.Lookback)
	assert.Equal(t, 10*time.Second, opts.RequestTimeout)
	assert.Equal(t, "mpesa", opts.PaymentMethod)
	assert.Equal(t, 4, opts.WalkInContactID)
	assert.Equal(t, "https://prokip.test", opts.ProkipBaseURL)
}

func TestSyncStoreOrders_PushesAndDeduplicates(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.prokip.addSimple(2, 20, "CAP")
	f.store.orders = []models.StoreOrder{
		paidOrder("101", line("MUG", 2, 500), line("CAP", 1, 300)),
		paidOrder("102", line("MUG", 1, 500)),
	}
	f.store.pageSize = 1
	ctx := context.Background()

	res, err := f.svc.SyncStoreOrders(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, f.now.Add(-24*time.Hour), f.store.sinceSeen[0])

	require.Len(t, f.prokip.created, 2)
	sale := f.prokip.created[0]
	assert.Equal(t, "WC-101", sale.InvoiceNo)
	assert.Equal(t, 1, sale.LocationID)
	assert.Equal(t, "final", sale.Status)
	assert.Equal(t, "2024-06-10 09:00:00", sale.TransactionDate)
	require.Len(t, sale.Products, 2)
	assert.Equal(t, prokip.SaleProduct{ProductID: 1, VariationID: 10, Quantity: 2, UnitPrice: decimal.NewFromInt(500)}, sale.Products[0])
	assert.True(t, decimal.NewFromInt(1300).Equal(sale.Payments[0].Amount))
	assert.Equal(t, "cash", sale.Payments[0].Method)

	var log models.SalesLog
	require.NoError(t, f.db.First(&log, "external_order_id = ?", "101").Error)
	assert.Equal(t, models.SaleLogStatusSynced, log.Status)
	assert.Equal(t, "901", log.ProkipSaleID)
	assert.Equal(t, 3, log.ItemCount)
	assert.NotNil(t, log.SyncedAt)

	conn := f.reloadConn(t)
	assert.Equal(t, models.ConnectionStatusActive, conn.Status)
	require.NotNil(t, conn.LastSync)
	assert.True(t, f.now.Equal(*conn.LastSync))

	// Second run sees the same orders and pushes nothing.
	res, err = f.svc.SyncStoreOrders(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Len(t, f.prokip.created, 2)
	assert.True(t, f.now.Equal(f.store.sinceSeen[len(f.store.sinceSeen)-1]))
	assert.Equal(t, 2, f.prokip.lookups, "MUG and CAP are resolved once, then served from the cache")
}

func TestSyncStoreOrders_SkipsUnknownLines(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.store.orders = []models.StoreOrder{
		paidOrder("201", line("MUG", 1, 500), line("GHOST", 1, 100), line("", 1, 50)),
		paidOrder("202", line("GHOST", 3, 100)),
	}

	res, err := f.svc.SyncStoreOrders(context.Background(), f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Skipped)

	require.Len(t, f.prokip.created, 1)
	assert.Len(t, f.prokip.created[0].Products, 1)

	// Order 202 had nothing to push, so its claim is released.
	assert.Equal(t, int64(0), f.count(t, &models.SalesLog{}, "external_order_id = ?", "202"))
	assert.Equal(t, int64(3), f.count(t, &models.SyncError{}))
}

func TestSyncStoreOrders_ReleasesClaimWhenPushFails(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.prokip.saleErr = errors.New("prokip: API request failed: 500 - boom")
	f.store.orders = []models.StoreOrder{paidOrder("301", line("MUG", 1, 500))}
	ctx := context.Background()

	res, err := f.svc.SyncStoreOrders(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []string{"301"}, res.FailedRefs)
	assert.Equal(t, int64(0), f.count(t, &models.SalesLog{}))

	var syncErr models.SyncError
	require.NoError(t, f.db.First(&syncErr).Error)
	assert.Equal(t, OpStoreOrders, syncErr.Operation)
	assert.Equal(t, "301", syncErr.Reference)
	assert.Contains(t, syncErr.Message, "boom")

	f.prokip.saleErr = nil
	res, err = f.svc.SyncStoreOrders(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Len(t, f.prokip.created, 1)
}

func TestSyncStoreOrders_ExistingClaimIsSkipped(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.store.orders = []models.StoreOrder{paidOrder("401", line("MUG", 1, 500))}
	require.NoError(t, f.db.Create(&models.SalesLog{
		ConnectionID:    f.conn.ID,
		Source:          models.SaleSourceStore,
		ExternalOrderID: "401",
		Status:          models.SaleLogStatusProcessing,
	}).Error)

	res, err := f.svc.SyncStoreOrders(context.Background(), f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, f.prokip.created)
}

func TestSyncStoreOrders_ListFailureMarksConnectionError(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.store.listErr = errors.New("woocommerce: API request failed: 401 - bad key")

	res, err := f.svc.SyncStoreOrders(context.Background(), f.conn.ID)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)

	conn := f.reloadConn(t)
	assert.Equal(t, models.ConnectionStatusError, conn.Status)
	assert.Nil(t, conn.LastSync)
	assert.Equal(t, int64(1), f.count(t, &models.SyncError{}))
}

func TestSyncStoreOrders_Preconditions(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	ctx := context.Background()

	_, err := f.svc.SyncStoreOrders(ctx, "missing")
	assert.True(t, errors.Is(err, ErrConnectionNotFound))

	require.NoError(t, f.db.Model(&models.Connection{}).Where("id = ?", f.conn.ID).Update("sync_orders", false).Error)
	_, err = f.svc.SyncStoreOrders(ctx, f.conn.ID)
	assert.True(t, errors.Is(err, ErrSyncDisabled))

	// Inventory direction is still enabled.
	_, err = f.svc.SyncInventory(ctx, f.conn.ID)
	assert.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Connection{}).Where("id = ?", f.conn.ID).Update("sync_enabled", false).Error)
	_, err = f.svc.SyncInventory(ctx, f.conn.ID)
	assert.True(t, errors.Is(err, ErrSyncDisabled))

	require.NoError(t, f.db.Model(&models.Connection{}).Where("id = ?", f.conn.ID).Update("sync_enabled", true).Error)
	require.NoError(t, f.db.Where("1 = 1").Delete(&models.ProkipConfig{}).Error)
	_, err = f.svc.SyncInventory(ctx, f.conn.ID)
	assert.True(t, errors.Is(err, ErrProkipNotConfigured))
}

func TestDefaultStoreFactory_RejectsUnknownPlatform(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	svc := NewService(f.db, Options{}, f.svc.logger)

	_, err := svc.NewStore(&models.Connection{Platform: "ETSY"})
	assert.True(t, errors.Is(err, ErrUnsupportedPlatform))

	store, err := svc.NewStore(&models.Connection{Platform: models.PlatformShopify, StoreURL: "acme"})
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestProcessStoreOrder(t *testing.T) {
	f := newFixture(t, models.PlatformShopify)
	f.prokip.addSimple(1, 10, "MUG")
	f.store.orders = []models.StoreOrder{paidOrder("501", line("MUG", 1, 500))}
	ctx := context.Background()

	res, err := f.svc.ProcessStoreOrder(ctx, f.conn.ID, "501")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	require.Len(t, f.prokip.created, 1)
	assert.Equal(t, "SH-501", f.prokip.created[0].InvoiceNo)

	// Duplicate delivery of the same webhook.
	res, err = f.svc.ProcessStoreOrder(ctx, f.conn.ID, "501")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, f.prokip.created, 1)

	// Cancellation after sync flags the log.
	f.store.orders[0].Paid = false
	f.store.orders[0].Cancelled = true
	f.store.orders[0].Status = "refunded"
	_, err = f.svc.ProcessStoreOrder(ctx, f.conn.ID, "501")
	require.NoError(t, err)

	var log models.SalesLog
	require.NoError(t, f.db.First(&log, "external_order_id = ?", "501").Error)
	assert.Equal(t, models.SaleLogStatusCancelled, log.Status)
	assert.Equal(t, "refunded", log.OrderStatus)

	_, err = f.svc.ProcessStoreOrder(ctx, f.conn.ID, "999")
	assert.Error(t, err)
}

func TestSyncStoreOrders_AdjustsCachedStock(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	require.NoError(t, f.db.Create(&models.InventoryCache{
		ConnectionID: f.conn.ID, SKU: "MUG", StoreProductID: "40",
		ProkipProductID: 1, ProkipVariationID: 10, Quantity: 1,
	}).Error)
	f.store.orders = []models.StoreOrder{paidOrder("601", line("MUG", 3, 500))}

	_, err := f.svc.SyncStoreOrders(context.Background(), f.conn.ID)
	require.NoError(t, err)

	var entry models.InventoryCache
	require.NoError(t, f.db.First(&entry, "sku = ?", "MUG").Error)
	assert.Equal(t, 0, entry.Quantity, "clamped at zero")

	var invLog models.InventoryLog
	require.NoError(t, f.db.First(&invLog).Error)
	assert.Equal(t, models.InventoryReasonStoreSale, invLog.Reason)
	assert.Equal(t, -1, invLog.Delta)
	assert.Equal(t, "WC-601", invLog.Reference)
}

func TestSyncProkipSales(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.prokip.addSimple(2, 20, "CAP")
	f.prokip.addSimple(3, 30, "LAMP")
	f.store.addProduct("MUG", "40", 5)
	f.store.addProduct("CAP", "41", 1)

	units := func(n int64) decimal.Decimal { return decimal.NewFromInt(n) }
	f.prokip.sells = []prokip.Sell{
		{ID: 1, InvoiceNo: "0001", Status: "final", SellLines: []prokip.SellLine{
			{ProductID: 1, VariationID: 10, Quantity: units(2)},
			{ProductID: 2, VariationID: 20, Quantity: units(4)},
			{ProductID: 3, VariationID: 30, Quantity: units(1)},
		}},
		{ID: 2, InvoiceNo: "WC-101", Status: "final", SellLines: []prokip.SellLine{{ProductID: 1, VariationID: 10, Quantity: units(1)}}},
		{ID: 3, InvoiceNo: "SH-7", Status: "final", SellLines: []prokip.SellLine{{ProductID: 1, VariationID: 10, Quantity: units(1)}}},
		{ID: 4, InvoiceNo: "0004", Status: "draft", SellLines: []prokip.SellLine{{ProductID: 1, VariationID: 10, Quantity: units(1)}}},
	}
	// Sale 2 was pushed from this connection's order 101.
	require.NoError(t, f.db.Create(&models.SalesLog{
		ConnectionID: f.conn.ID, Source: models.SaleSourceStore, ExternalOrderID: "101",
		Status: models.SaleLogStatusSynced, ProkipSaleID: "2",
	}).Error)
	ctx := context.Background()

	res, err := f.svc.SyncProkipSales(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Success, "own sale and draft are skipped; other store's sale counts")
	assert.Equal(t, 2, res.Skipped)

	assert.Equal(t, 2, f.store.stock["40"], "5 - 2 - 1")
	assert.Equal(t, 0, f.store.stock["41"], "clamped at zero")
	assert.Equal(t, 1, f.prokip.salesQ[0].LocationID)
	assert.Equal(t, f.now.Add(-24*time.Hour), f.prokip.salesQ[0].Since)

	assert.Equal(t, int64(3), f.count(t, &models.InventoryLog{}, "reason = ?", models.InventoryReasonProkipSale))
	assert.Equal(t, int64(2), f.count(t, &models.SalesLog{}, "source = ?", models.SaleSourceProkip))

	conn := f.reloadConn(t)
	require.NotNil(t, conn.LastProkipSync)

	// Re-listing the same sells deducts nothing more.
	res, err = f.svc.SyncProkipSales(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Success)
	assert.Equal(t, 2, f.store.stock["40"])
}

func TestSyncProkipSales_ReleasesWhenNothingApplied(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.store.addProduct("MUG", "40", 5)
	f.store.setErr["40"] = errors.New("woocommerce: API request failed: 503 - busy")
	f.prokip.sells = []prokip.Sell{{ID: 9, InvoiceNo: "0009", SellLines: []prokip.SellLine{{ProductID: 1, VariationID: 10, Quantity: decimal.NewFromInt(1)}}}}

	res, err := f.svc.SyncProkipSales(context.Background(), f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, int64(0), f.count(t, &models.SalesLog{}))
	assert.Equal(t, 5, f.store.stock["40"])
}

func TestSyncInventory(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.store.addProduct("MUG", "40", 5)
	f.store.addProduct("CAP", "41", 3)
	f.store.addProduct("HAT", "42", 1)
	f.store.setErr["42"] = errors.New("woocommerce: API request failed: 500 - oops")
	f.prokip.stock = []prokip.StockRow{
		{SKU: "MUG", ProductID: 1, VariationID: 10, Stock: decimal.NewFromInt(12)},
		{SKU: "CAP", ProductID: 2, VariationID: 20, Stock: decimal.NewFromInt(3)},
		{SKU: "HAT", ProductID: 3, VariationID: 30, Stock: decimal.NewFromInt(7)},
		{SKU: "LAMP", ProductID: 4, VariationID: 40, Stock: decimal.NewFromInt(2)},
		{SKU: "", ProductID: 5, VariationID: 50, Stock: decimal.NewFromInt(2)},
	}
	ctx := context.Background()

	res, err := f.svc.SyncInventory(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 2, res.Skipped, "CAP unchanged, LAMP not in store")
	assert.Equal(t, []string{"HAT"}, res.FailedRefs)

	assert.Equal(t, 12, f.store.stock["40"])

	var entry models.InventoryCache
	require.NoError(t, f.db.First(&entry, "sku = ?", "MUG").Error)
	assert.Equal(t, 12, entry.Quantity)
	assert.Equal(t, 10, entry.ProkipVariationID)

	var invLog models.InventoryLog
	require.NoError(t, f.db.First(&invLog, "sku = ?", "MUG").Error)
	assert.Equal(t, models.InventoryReasonSync, invLog.Reason)
	assert.Equal(t, 7, invLog.Delta)

	// Quantities now match, so a second run only retries HAT.
	lookups := f.store.lookups
	f.store.setErr = map[string]error{}
	res, err = f.svc.SyncInventory(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success, "HAT is retried")
	assert.Equal(t, lookups+4, f.store.lookups, "every SKU is compared with the live store quantity")
}

func TestImportProducts(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.prokip.addSimple(2, 20, "LAMP")
	f.store.addProduct("MUG", "40", 6)

	res, err := f.svc.ImportProducts(context.Background(), f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Skipped)

	var entry models.InventoryCache
	require.NoError(t, f.db.First(&entry, "sku = ?", "MUG").Error)
	assert.Equal(t, "40", entry.StoreProductID)
	assert.Equal(t, 1, entry.ProkipProductID)
	assert.Equal(t, 6, entry.Quantity)

	require.NoError(t, f.db.First(&entry, "sku = ?", "LAMP").Error)
	assert.False(t, entry.HasStoreRef())
	assert.True(t, entry.HasProkipRef())
}

func TestSyncProkipSales_DeductsFromLiveStoreStock(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.store.addProduct("MUG", "40", 10)
	ctx := context.Background()

	_, err := f.svc.ImportProducts(ctx, f.conn.ID)
	require.NoError(t, err)

	// The store sold two units on its own since the import.
	f.store.stock["40"] = 8
	f.prokip.sells = []prokip.Sell{{ID: 5, InvoiceNo: "0005", Status: "final", SellLines: []prokip.SellLine{
		{ProductID: 1, VariationID: 10, Quantity: decimal.NewFromInt(1)},
	}}}

	res, err := f.svc.SyncProkipSales(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 7, f.store.stock["40"])

	var invLog models.InventoryLog
	require.NoError(t, f.db.First(&invLog, "reason = ?", models.InventoryReasonProkipSale).Error)
	assert.Equal(t, 8, invLog.OldQuantity)
	assert.Equal(t, 7, invLog.NewQuantity)

	var entry models.InventoryCache
	require.NoError(t, f.db.First(&entry, "sku = ?", "MUG").Error)
	assert.Equal(t, 7, entry.Quantity)
}

func TestSyncInventory_CorrectsStoreDrift(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.store.addProduct("MUG", "40", 10)
	f.prokip.stock = []prokip.StockRow{{SKU: "MUG", ProductID: 1, VariationID: 10, Stock: decimal.NewFromInt(10)}}
	ctx := context.Background()

	_, err := f.svc.ImportProducts(ctx, f.conn.ID)
	require.NoError(t, err)

	// Cache still says 10, the store was edited by hand.
	f.store.stock["40"] = 3

	res, err := f.svc.SyncInventory(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 10, f.store.stock["40"])

	var invLog models.InventoryLog
	require.NoError(t, f.db.First(&invLog, "reason = ?", models.InventoryReasonSync).Error)
	assert.Equal(t, 3, invLog.OldQuantity)
	assert.Equal(t, 7, invLog.Delta)
}

func TestSyncProkipSales_SamePlatformStoresDeductEachOther(t *testing.T) {
	f := newFixture(t, models.PlatformWooCommerce)
	f.prokip.addSimple(1, 10, "MUG")
	f.store.addProduct("MUG", "40", 5)

	second := &models.Connection{UserID: f.conn.UserID, Name: "Second shop", Platform: models.PlatformWooCommerce, StoreURL: "https://second.example.com"}
	require.NoError(t, f.db.Create(second).Error)
	secondStore := newFakeStore()
	secondStore.addProduct("MUG", "70", 9)
	f.svc.WithStoreFactory(func(c *models.Connection) (Store, error) {
		if c.ID == second.ID {
			return secondStore, nil
		}
		return f.store, nil
	})
	ctx := context.Background()

	// The first shop sells two mugs and pushes the sale to Prokip.
	f.store.orders = []models.StoreOrder{paidOrder("601", line("MUG", 2, 500))}
	_, err := f.svc.SyncStoreOrders(ctx, f.conn.ID)
	require.NoError(t, err)
	require.Len(t, f.prokip.created, 1)
	pushed := f.prokip.created[0]
	assert.Equal(t, "WC-601", pushed.InvoiceNo)

	f.prokip.sells = []prokip.Sell{{ID: f.prokip.nextID, InvoiceNo: pushed.InvoiceNo, Status: "final", SellLines: []prokip.SellLine{
		{ProductID: 1, VariationID: 10, Quantity: decimal.NewFromInt(2)},
	}}}

	res, err := f.svc.SyncProkipSales(ctx, f.conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped, "the pushing shop ignores its own sale")
	assert.Equal(t, 5, f.store.stock["40"])

	res, err = f.svc.SyncProkipSales(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 7, secondStore.stock["70"])
}
