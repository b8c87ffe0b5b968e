package reconcile

import (
	"context"

	"prokipsync/internal/database"
	"prokipsync/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// claim inserts the SalesLog in PROCESSING state. It returns false when a row
// for the same order already exists, meaning the order was handled before.
func (s *Service) claim(ctx context.Context, log *models.SalesLog) (bool, error) {
	log.Status = models.SaleLogStatusProcessing
	err := s.db.WithContext(ctx).Create(log).Error
	if err == nil {
		return true, nil
	}
	if database.IsUniqueViolation(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "failed to claim order")
}

// release removes a claim so the order is picked up again by a later run.
func (s *Service) release(ctx context.Context, log *models.SalesLog) {
	if err := s.db.WithContext(ctx).Delete(&models.SalesLog{}, "id = ?", log.ID).Error; err != nil {
		s.logger.Error("Failed to release claim for order %s: %v", log.ExternalOrderID, err)
	}
}

func (s *Service) markSynced(ctx context.Context, log *models.SalesLog, prokipSaleID string) error {
	now := s.now()
	log.Status = models.SaleLogStatusSynced
	log.ProkipSaleID = prokipSaleID
	log.SyncedAt = &now
	err := s.db.WithContext(ctx).Model(&models.SalesLog{}).Where("id = ?", log.ID).Updates(map[string]interface{}{
		"status":         log.Status,
		"prokip_sale_id": prokipSaleID,
		"synced_at":      now,
	}).Error
	return errors.Wrap(err, "failed to mark order synced")
}

// markCancelled flags an already processed order as cancelled on the store.
// Stock is not reversed. It reports whether a row was changed.
func (s *Service) markCancelled(ctx context.Context, connectionID, externalID, orderStatus string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.SalesLog{}).
		Where("connection_id = ? AND source = ? AND external_order_id = ? AND status <> ?",
			connectionID, models.SaleSourceStore, externalID, models.SaleLogStatusCancelled).
		Updates(map[string]interface{}{
			"status":       models.SaleLogStatusCancelled,
			"order_status": orderStatus,
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to mark order cancelled")
	}
	return res.RowsAffected > 0, nil
}

// pushedHere reports whether the Prokip sale was created from one of this
// connection's store orders.
func (s *Service) pushedHere(ctx context.Context, connectionID, prokipSaleID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.SalesLog{}).
		Where("connection_id = ? AND source = ? AND prokip_sale_id = ?", connectionID, models.SaleSourceStore, prokipSaleID).
		Count(&n).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to look up pushed sales")
	}
	return n > 0, nil
}

// findLog returns the SalesLog for an order, or nil.
func (s *Service) findLog(ctx context.Context, connectionID string, source models.SaleSource, externalID string) (*models.SalesLog, error) {
	var log models.SalesLog
	err := s.db.WithContext(ctx).
		Where("connection_id = ? AND source = ? AND external_order_id = ?", connectionID, source, externalID).
		First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sales log")
	}
	return &log, nil
}
