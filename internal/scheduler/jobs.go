package scheduler

import (
	"context"
	"errors"
	"fmt"

	"prokipsync/internal/logger"
	"prokipsync/internal/models"
	"prokipsync/internal/services/reconcile"

	"gorm.io/gorm"
)

const (
	JobStoreOrders = "store-orders"
	JobProkipSales = "prokip-sales"
	JobInventory   = "inventory"
)

// Syncer is the reconcile surface the jobs drive.
type Syncer interface {
	SyncStoreOrders(ctx context.Context, connectionID string) (*reconcile.Result, error)
	SyncProkipSales(ctx context.Context, connectionID string) (*reconcile.Result, error)
	SyncInventory(ctx context.Context, connectionID string) (*reconcile.Result, error)
}

// ConnectionJob runs one sync operation for every connection whose flags allow it.
type ConnectionJob struct {
	name   string
	flag   string
	db     *gorm.DB
	logger *logger.Logger
	sync   func(ctx context.Context, connectionID string) (*reconcile.Result, error)
}

// DefaultJobs returns the three sync jobs in the order they should run.
func DefaultJobs(db *gorm.DB, syncer Syncer, logger *logger.Logger) []Job {
	return []Job{
		&ConnectionJob{name: JobStoreOrders, flag: "sync_orders", db: db, logger: logger, sync: syncer.SyncStoreOrders},
		&ConnectionJob{name: JobProkipSales, flag: "sync_inventory", db: db, logger: logger, sync: syncer.SyncProkipSales},
		&ConnectionJob{name: JobInventory, flag: "sync_inventory", db: db, logger: logger, sync: syncer.SyncInventory},
	}
}

func (j *ConnectionJob) Name() string {
	return j.name
}

// Run syncs each eligible connection in turn. A connection failing does not
// stop the others; the job fails if any connection failed.
func (j *ConnectionJob) Run(ctx context.Context) error {
	var ids []string
	err := j.db.WithContext(ctx).Model(&models.Connection{}).
		Where("sync_enabled = ? AND status <> ?", true, models.ConnectionStatusInactive).
		Where(j.flag+" = ?", true).
		Order("created_at").
		Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("failed to list connections: %w", err)
	}

	failed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		res, err := j.sync(ctx, id)
		switch {
		case errors.Is(err, reconcile.ErrProkipNotConfigured), errors.Is(err, reconcile.ErrSyncDisabled):
			j.logger.Debug("Skipping connection %s for %s: %v", id, j.name, err)
		case err != nil:
			failed++
			j.logger.Error("Job %s failed for connection %s: %v", j.name, id, err)
		default:
			j.logger.Debug("Job %s for connection %s: %s", j.name, id, res.Status)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%s failed for %d of %d connections", j.name, failed, len(ids))
	}
	return nil
}
