package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"prokipsync/internal/connectors"
	"prokipsync/internal/connectors/prokip"
	"prokipsync/internal/models"

	"github.com/pkg/errors"
)

// SyncProkipSales deducts store stock for sales recorded in Prokip since the
// last run. Sales this connection pushed itself are ignored; sales pushed by
// the user's other stores are deducted like any other.
func (s *Service) SyncProkipSales(ctx context.Context, connectionID string) (*Result, error) {
	r, err := s.begin(ctx, connectionID, OpProkipSales, directionInventory)
	if err != nil {
		return nil, err
	}
	s.setStatus(ctx, connectionID, models.ConnectionStatusSyncing, nil)

	start := r.result.StartedAt
	query := prokip.SalesQuery{
		Since:      s.since(r.conn.LastProkipSync, start),
		LocationID: r.cfg.LocationID,
	}

	for page := 1; ; page++ {
		query.Page = page
		sells, more, err := r.prokip.ListSales(ctx, query)
		if err != nil {
			return s.finish(ctx, r, err, nil)
		}
		for i := range sells {
			if err := ctx.Err(); err != nil {
				return s.finish(ctx, r, err, nil)
			}
			r.result.record(s.processSell(ctx, r, &sells[i]), strconv.Itoa(sells[i].ID))
		}
		if !more {
			break
		}
	}

	return s.finish(ctx, r, nil, map[string]interface{}{"last_prokip_sync": start})
}

func (s *Service) processSell(ctx context.Context, r *run, sell *prokip.Sell) outcome {
	ref := strconv.Itoa(sell.ID)

	own, err := s.pushedHere(ctx, r.conn.ID, ref)
	if err != nil {
		s.recordError(ctx, r.conn.ID, OpProkipSales, ref, err)
		return outcomeFailed
	}
	if own {
		return outcomeSkipped
	}
	if sell.Status != "" && sell.Status != "final" {
		return outcomeSkipped
	}

	units := 0
	for _, l := range sell.SellLines {
		units += l.Units()
	}
	log := &models.SalesLog{
		ConnectionID:    r.conn.ID,
		Source:          models.SaleSourceProkip,
		ExternalOrderID: ref,
		OrderNumber:     sell.InvoiceNo,
		TotalAmount:     sell.FinalTotal,
		ItemCount:       units,
		OrderStatus:     sell.Status,
	}
	claimed, err := s.claim(ctx, log)
	if err != nil {
		s.recordError(ctx, r.conn.ID, OpProkipSales, ref, err)
		return outcomeFailed
	}
	if !claimed {
		return outcomeSkipped
	}

	applied, failed := 0, 0
	for _, line := range sell.SellLines {
		switch err := s.deductLine(ctx, r, sell, line); {
		case err == nil:
			applied++
		case errors.Is(err, connectors.ErrProductNotFound):
			// Not sold in this store.
			r.log.Debug("Sale %s line %d has no store product", sell.InvoiceNo, line.VariationID)
		default:
			failed++
			s.recordError(ctx, r.conn.ID, OpProkipSales, fmt.Sprintf("%s/%d", ref, line.VariationID), err)
		}
	}

	if failed > 0 && applied == 0 {
		// Nothing was deducted, so the sale can be retried as a whole.
		s.release(ctx, log)
		return outcomeFailed
	}
	if err := s.markSynced(ctx, log, ref); err != nil {
		s.recordError(ctx, r.conn.ID, OpProkipSales, ref, err)
		return outcomeFailed
	}
	if failed > 0 {
		return outcomeFailed
	}
	if applied == 0 {
		return outcomeSkipped
	}
	return outcomeSuccess
}

// deductLine lowers the store stock of one sold variation, clamped at zero.
func (s *Service) deductLine(ctx context.Context, r *run, sell *prokip.Sell, line prokip.SellLine) error {
	units := line.Units()
	if units <= 0 {
		return nil
	}

	sku, err := s.skuForVariation(ctx, r, line.ProductID, line.VariationID)
	if err != nil {
		return err
	}
	entry, err := s.liveStore(ctx, r, sku)
	if err != nil {
		return err
	}

	old := entry.Quantity
	updated := clamp(old - units)
	if err := r.store.SetStock(ctx, entry.StoreRef(), updated); err != nil {
		return err
	}

	entry.Quantity = updated
	if err := s.saveEntry(ctx, entry); err != nil {
		return err
	}
	s.logInventory(ctx, r, sku, old, updated, models.InventoryReasonProkipSale, sell.InvoiceNo)
	return nil
}
