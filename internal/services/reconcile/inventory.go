package reconcile

import (
	"context"

	"prokipsync/internal/connectors"
	"prokipsync/internal/connectors/prokip"
	"prokipsync/internal/models"

	"github.com/pkg/errors"
)

// SyncInventory copies Prokip stock levels at the configured location to the
// store. Prokip is the source of truth and is compared with the store's live
// quantity; SKUs the store does not sell are skipped.
func (s *Service) SyncInventory(ctx context.Context, connectionID string) (*Result, error) {
	r, err := s.begin(ctx, connectionID, OpInventory, directionInventory)
	if err != nil {
		return nil, err
	}
	s.setStatus(ctx, connectionID, models.ConnectionStatusSyncing, nil)

	rows, err := r.prokip.StockReport(ctx, r.cfg.LocationID)
	if err != nil {
		return s.finish(ctx, r, err, nil)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return s.finish(ctx, r, err, nil)
		}
		if row.SKU == "" {
			continue
		}
		r.result.record(s.syncStockRow(ctx, r, row), row.SKU)
	}

	return s.finish(ctx, r, nil, nil)
}

func (s *Service) syncStockRow(ctx context.Context, r *run, row prokip.StockRow) outcome {
	entry, err := s.liveStore(ctx, r, row.SKU)
	if errors.Is(err, connectors.ErrProductNotFound) {
		return outcomeSkipped
	}
	if err != nil {
		s.recordError(ctx, r.conn.ID, OpInventory, row.SKU, err)
		return outcomeFailed
	}

	entry.ProkipProductID = row.ProductID
	entry.ProkipVariationID = row.VariationID

	qty := row.Quantity()
	if entry.Quantity == qty {
		if err := s.saveEntry(ctx, entry); err != nil {
			s.recordError(ctx, r.conn.ID, OpInventory, row.SKU, err)
			return outcomeFailed
		}
		return outcomeSkipped
	}

	if err := r.store.SetStock(ctx, entry.StoreRef(), qty); err != nil {
		s.recordError(ctx, r.conn.ID, OpInventory, row.SKU, err)
		return outcomeFailed
	}

	old := entry.Quantity
	entry.Quantity = qty
	if err := s.saveEntry(ctx, entry); err != nil {
		s.recordError(ctx, r.conn.ID, OpInventory, row.SKU, err)
		return outcomeFailed
	}
	s.logInventory(ctx, r, row.SKU, old, qty, models.InventoryReasonSync, "")
	return outcomeSuccess
}
