package reconcile

import (
	"context"
	"fmt"

	"prokipsync/internal/connectors"
	"prokipsync/internal/connectors/prokip"
	"prokipsync/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// cacheEntry loads the SKU index row, or returns an unsaved one.
func (s *Service) cacheEntry(ctx context.Context, connectionID, sku string) (*models.InventoryCache, error) {
	var entry models.InventoryCache
	err := s.db.WithContext(ctx).Where("connection_id = ? AND sku = ?", connectionID, sku).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.InventoryCache{ConnectionID: connectionID, SKU: sku}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load inventory cache")
	}
	return &entry, nil
}

func (s *Service) saveEntry(ctx context.Context, entry *models.InventoryCache) error {
	db := s.db.WithContext(ctx)
	if entry.ID == "" {
		return errors.Wrap(db.Create(entry).Error, "failed to create inventory cache")
	}
	return errors.Wrap(db.Save(entry).Error, "failed to update inventory cache")
}

func applyProkipItem(entry *models.InventoryCache, item prokip.Item) {
	entry.ProkipProductID = item.ProductID
	entry.ProkipVariationID = item.VariationID
	if entry.Name == "" {
		entry.Name = item.Name
	}
}

func applyStoreProduct(entry *models.InventoryCache, p *models.StoreProduct) {
	entry.StoreProductID = p.Ref.ProductID
	entry.StoreVariantID = p.Ref.VariantID
	entry.StoreInventoryItemID = p.Ref.InventoryItemID
	entry.Quantity = p.StockQuantity
	if p.Name != "" {
		entry.Name = p.Name
	}
}

// resolveProkip maps a SKU to its Prokip product, from the cache first and
// from the Prokip catalogue on a miss. Returns connectors.ErrProductNotFound
// when Prokip has no such SKU.
func (s *Service) resolveProkip(ctx context.Context, r *run, sku string) (*models.InventoryCache, error) {
	entry, err := s.cacheEntry(ctx, r.conn.ID, sku)
	if err != nil {
		return nil, err
	}
	if entry.HasProkipRef() {
		return entry, nil
	}

	item, err := r.prokip.FindProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	applyProkipItem(entry, *item)
	if err := s.saveEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// liveStore reads the store product for a SKU and refreshes its cache row with
// the current refs and quantity. Absolute stock writes must start from this
// value, never from the cached one.
func (s *Service) liveStore(ctx context.Context, r *run, sku string) (*models.InventoryCache, error) {
	entry, err := s.cacheEntry(ctx, r.conn.ID, sku)
	if err != nil {
		return nil, err
	}

	product, err := r.store.FindProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	applyStoreProduct(entry, product)
	if err := s.saveEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// skuForVariation finds the SKU of a Prokip variation, through the cache or
// by loading the product.
func (s *Service) skuForVariation(ctx context.Context, r *run, productID, variationID int) (string, error) {
	var entry models.InventoryCache
	err := s.db.WithContext(ctx).
		Where("connection_id = ? AND prokip_variation_id = ?", r.conn.ID, variationID).
		First(&entry).Error
	if err == nil {
		return entry.SKU, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.Wrap(err, "failed to load inventory cache")
	}

	product, err := r.prokip.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	for _, item := range product.Items() {
		if item.VariationID != variationID {
			continue
		}
		if item.SKU == "" {
			return "", fmt.Errorf("prokip variation %d has no sku", variationID)
		}
		cached, err := s.cacheEntry(ctx, r.conn.ID, item.SKU)
		if err != nil {
			return "", err
		}
		applyProkipItem(cached, item)
		if err := s.saveEntry(ctx, cached); err != nil {
			return "", err
		}
		return item.SKU, nil
	}
	return "", fmt.Errorf("prokip variation %d: %w", variationID, connectors.ErrProductNotFound)
}

// ImportProducts builds the SKU index by matching every Prokip SKU against
// the store. SKUs the store does not sell are counted as skipped.
func (s *Service) ImportProducts(ctx context.Context, connectionID string) (*Result, error) {
	r, err := s.begin(ctx, connectionID, OpImportProducts, directionAny)
	if err != nil {
		return nil, err
	}
	s.setStatus(ctx, connectionID, models.ConnectionStatusSyncing, nil)

	for page := 1; ; page++ {
		products, more, err := r.prokip.ListProducts(ctx, page)
		if err != nil {
			return s.finish(ctx, r, err, nil)
		}
		for i := range products {
			for _, item := range products[i].Items() {
				if err := ctx.Err(); err != nil {
					return s.finish(ctx, r, err, nil)
				}
				r.result.record(s.importItem(ctx, r, item), item.SKU)
			}
		}
		if !more {
			break
		}
	}

	return s.finish(ctx, r, nil, nil)
}

func (s *Service) importItem(ctx context.Context, r *run, item prokip.Item) outcome {
	if item.SKU == "" {
		return outcomeSkipped
	}

	entry, err := s.cacheEntry(ctx, r.conn.ID, item.SKU)
	if err != nil {
		s.recordError(ctx, r.conn.ID, OpImportProducts, item.SKU, err)
		return outcomeFailed
	}
	applyProkipItem(entry, item)

	product, err := r.store.FindProductBySKU(ctx, item.SKU)
	switch {
	case errors.Is(err, connectors.ErrProductNotFound):
		if err := s.saveEntry(ctx, entry); err != nil {
			s.recordError(ctx, r.conn.ID, OpImportProducts, item.SKU, err)
			return outcomeFailed
		}
		return outcomeSkipped
	case err != nil:
		s.recordError(ctx, r.conn.ID, OpImportProducts, item.SKU, err)
		return outcomeFailed
	}

	applyStoreProduct(entry, product)
	if err := s.saveEntry(ctx, entry); err != nil {
		s.recordError(ctx, r.conn.ID, OpImportProducts, item.SKU, err)
		return outcomeFailed
	}
	return outcomeSuccess
}
