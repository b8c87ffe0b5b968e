package scheduler

import (
	"context"
	"time"

	"prokipsync/internal/cache"
	"prokipsync/internal/config"
	"prokipsync/internal/logger"
	"prokipsync/internal/metrics"

	"gorm.io/gorm"
)

// Build wires the default jobs behind a Redis lock. When Redis cannot be
// reached the lock only guards this process. The returned func closes Redis.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, syncer Syncer, m *metrics.SyncMetrics, log *logger.Logger) (*Service, func(), error) {
	var lock Lock = &LocalLock{}
	refresh := time.Duration(0)
	cleanup := func() {}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := cache.New(pingCtx, cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable (%v); scheduler lock is process-local", err)
	} else {
		redisLock, err := NewRedisLock(client, cfg.Redis.LockKey, cfg.Redis.LockTTL)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		lock = redisLock
		refresh = redisLock.TTL() / 3
		cleanup = func() {
			if err := client.Close(); err != nil {
				log.Error("Failed to close redis: %v", err)
			}
		}
	}

	svc, err := NewService(ServiceParams{
		Logger:      log.With("component", "scheduler"),
		Registry:    NewRegistry(DefaultJobs(db, syncer, log)...),
		Lock:        lock,
		Metrics:     m,
		Interval:    cfg.Sync.Interval,
		LockRefresh: refresh,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}
