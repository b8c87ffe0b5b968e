package reconcile

import (
	"context"
	"fmt"
	"strconv"

	"prokipsync/internal/connectors"
	"prokipsync/internal/connectors/prokip"
	"prokipsync/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// SyncStoreOrders pushes every completed store order created since the last
// run to Prokip as a sale. Orders already in the SalesLog are skipped.
func (s *Service) SyncStoreOrders(ctx context.Context, connectionID string) (*Result, error) {
	r, err := s.begin(ctx, connectionID, OpStoreOrders, directionOrders)
	if err != nil {
		return nil, err
	}
	s.setStatus(ctx, connectionID, models.ConnectionStatusSyncing, nil)

	start := r.result.StartedAt
	since := s.since(r.conn.LastSync, start)
	r.log.Info("Fetching store orders since %s", since.Format("2006-01-02T15:04:05Z07:00"))

	for page := 1; ; page++ {
		orders, more, err := r.store.ListOrders(ctx, since, page)
		if err != nil {
			return s.finish(ctx, r, err, nil)
		}
		for i := range orders {
			if err := ctx.Err(); err != nil {
				return s.finish(ctx, r, err, nil)
			}
			r.result.record(s.processOrder(ctx, r, &orders[i]), orders[i].ExternalID)
		}
		if !more {
			break
		}
	}

	return s.finish(ctx, r, nil, map[string]interface{}{"last_sync": start})
}

// ProcessStoreOrder handles a single order, as announced by a webhook.
func (s *Service) ProcessStoreOrder(ctx context.Context, connectionID, orderID string) (*Result, error) {
	r, err := s.begin(ctx, connectionID, OpStoreOrder, directionOrders)
	if err != nil {
		return nil, err
	}

	order, err := r.store.GetOrder(ctx, orderID)
	if err != nil {
		r.result.record(outcomeFailed, orderID)
		r.result.complete(s.now())
		s.recordError(ctx, r.conn.ID, OpStoreOrder, orderID, err)
		return r.result, errors.Wrapf(err, "failed to fetch order %s", orderID)
	}

	r.result.record(s.processOrder(ctx, r, order), order.ExternalID)
	r.result.complete(s.now())
	s.metrics.AddItems(OpStoreOrder, outcomeLabel(r.result), 1)
	return r.result, nil
}

func outcomeLabel(res *Result) string {
	switch {
	case res.Failed > 0:
		return "failed"
	case res.Skipped > 0:
		return "skipped"
	default:
		return "success"
	}
}

// processOrder claims the order, pushes it to Prokip and records the stock
// movement. Per-line problems are stored as SyncErrors.
func (s *Service) processOrder(ctx context.Context, r *run, order *models.StoreOrder) outcome {
	op := r.result.Operation

	if !order.Paid {
		if order.Cancelled {
			changed, err := s.markCancelled(ctx, r.conn.ID, order.ExternalID, order.Status)
			if err != nil {
				s.recordError(ctx, r.conn.ID, op, order.ExternalID, err)
				return outcomeFailed
			}
			if changed {
				r.log.Info("Order %s was cancelled after sync; stock is not reversed", order.Number)
			}
		}
		return outcomeSkipped
	}

	log := &models.SalesLog{
		ConnectionID:    r.conn.ID,
		Source:          models.SaleSourceStore,
		ExternalOrderID: order.ExternalID,
		OrderNumber:     order.Number,
		TotalAmount:     order.Total,
		Currency:        order.Currency,
		ItemCount:       order.ItemCount(),
		OrderStatus:     order.Status,
	}
	claimed, err := s.claim(ctx, log)
	if err != nil {
		s.recordError(ctx, r.conn.ID, op, order.ExternalID, err)
		return outcomeFailed
	}
	if !claimed {
		r.log.Debug("Order %s already processed", order.Number)
		return outcomeSkipped
	}

	lines, entries, err := s.saleLines(ctx, r, order)
	if err != nil {
		s.release(ctx, log)
		s.recordError(ctx, r.conn.ID, op, order.ExternalID, err)
		return outcomeFailed
	}
	if len(lines) == 0 {
		s.release(ctx, log)
		r.log.Warn("Order %s has no products known to Prokip", order.Number)
		return outcomeSkipped
	}

	sale := s.buildSale(r, order, lines)
	saleID, err := r.prokip.CreateSale(ctx, sale)
	if err != nil {
		s.release(ctx, log)
		s.recordError(ctx, r.conn.ID, op, order.ExternalID, err)
		return outcomeFailed
	}

	if err := s.markSynced(ctx, log, strconv.Itoa(saleID)); err != nil {
		// The sale exists in Prokip, so the claim must stay.
		s.recordError(ctx, r.conn.ID, op, order.ExternalID, err)
		return outcomeFailed
	}

	for i, line := range lines {
		s.adjustCached(ctx, r, entries[i], -line.Quantity, models.InventoryReasonStoreSale, sale.InvoiceNo)
	}
	r.log.Info("Order %s pushed to Prokip as sale %d", order.Number, saleID)
	return outcomeSuccess
}

// saleLines resolves the order lines to Prokip products. Lines without a SKU
// or without a Prokip match are left out and recorded; any other lookup error
// aborts the order.
func (s *Service) saleLines(ctx context.Context, r *run, order *models.StoreOrder) ([]prokip.SaleProduct, []*models.InventoryCache, error) {
	var lines []prokip.SaleProduct
	var entries []*models.InventoryCache

	for _, li := range order.LineItems {
		ref := fmt.Sprintf("%s/%s", order.ExternalID, li.Name)
		if li.SKU == "" {
			s.recordError(ctx, r.conn.ID, r.result.Operation, ref, fmt.Errorf("line item %q has no sku", li.Name))
			continue
		}
		if li.Quantity <= 0 {
			continue
		}

		entry, err := s.resolveProkip(ctx, r, li.SKU)
		if errors.Is(err, connectors.ErrProductNotFound) {
			s.recordError(ctx, r.conn.ID, r.result.Operation, ref, fmt.Errorf("sku %s not found in prokip", li.SKU))
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		lines = append(lines, prokip.SaleProduct{
			ProductID:   entry.ProkipProductID,
			VariationID: entry.ProkipVariationID,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
		})
		entries = append(entries, entry)
	}
	return lines, entries, nil
}

func (s *Service) buildSale(r *run, order *models.StoreOrder, lines []prokip.SaleProduct) prokip.Sale {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	created := order.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	note := fmt.Sprintf("%s order #%s", r.conn.Name, order.Number)
	if order.Customer != "" {
		note += " (" + order.Customer + ")"
	}

	return prokip.Sale{
		LocationID:      r.cfg.LocationID,
		ContactID:       s.opts.WalkInContactID,
		TransactionDate: prokip.FormatTransactionDate(created),
		InvoiceNo:       InvoiceNumber(r.conn.Platform, order.Number),
		Status:          "final",
		PaymentStatus:   "paid",
		Products:        lines,
		Payments:        []prokip.SalePayment{{Amount: total, Method: s.opts.PaymentMethod}},
		AdditionalNotes: note,
	}
}

// InvoiceNumber is the Prokip invoice_no for a store order, e.g. "WC-1042".
func InvoiceNumber(platform models.Platform, orderNumber string) string {
	return platform.InvoicePrefix() + "-" + orderNumber
}

// adjustCached moves the cached quantity by delta, never below zero, and logs it.
func (s *Service) adjustCached(ctx context.Context, r *run, entry *models.InventoryCache, delta int, reason models.InventoryReason, reference string) {
	if !entry.HasStoreRef() {
		return
	}
	old := entry.Quantity
	entry.Quantity = clamp(old + delta)
	if err := s.saveEntry(ctx, entry); err != nil {
		s.recordError(ctx, r.conn.ID, r.result.Operation, entry.SKU, err)
		return
	}
	s.logInventory(ctx, r, entry.SKU, old, entry.Quantity, reason, reference)
}

func (s *Service) logInventory(ctx context.Context, r *run, sku string, old, updated int, reason models.InventoryReason, reference string) {
	row := &models.InventoryLog{
		ConnectionID: r.conn.ID,
		SKU:          sku,
		OldQuantity:  old,
		NewQuantity:  updated,
		Reason:       reason,
		Reference:    reference,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		s.logger.Error("Failed to write inventory log for %s: %v", sku, err)
	}
}

func clamp(q int) int {
	if q < 0 {
		return 0
	}
	return q
}
