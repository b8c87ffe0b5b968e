package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"prokipsync/internal/config"
	"prokipsync/internal/database"
	"prokipsync/internal/logger"
	"prokipsync/internal/metrics"
	"prokipsync/internal/scheduler"
	"prokipsync/internal/services/reconcile"
	"prokipsync/internal/worker"
	"prokipsync/internal/worker/processors"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger := logger.NewForEnvironment(cfg.App.Env, cfg.App.LogLevel)
	defer logger.Sync()

	db, err := database.New(cfg.Database, cfg.IsProduction())
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)
	syncService := reconcile.NewService(db.DB, reconcile.OptionsFromConfig(cfg), logger).WithMetrics(syncMetrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// Webhook events
	if cfg.Kafka.Enabled {
		processor := processors.NewEventProcessor(db.DB, syncService, logger)
		w := worker.New(cfg.Kafka, processor, logger)
		defer w.Stop()

		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(ctx)
		}()
	}

	// Scheduled reconciliation
	if cfg.Sync.SchedulerOn {
		sched, closeScheduler, err := scheduler.Build(ctx, cfg, db.DB, syncService, syncMetrics, logger)
		if err != nil {
			logger.Fatal("Failed to set up scheduler: %v", err)
		}
		defer closeScheduler()

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sched.Run(ctx)
		}()
	}

	logger.Info("Worker running (kafka=%t, scheduler=%t)", cfg.Kafka.Enabled, cfg.Sync.SchedulerOn)
	<-ctx.Done()

	logger.Info("Shutting down worker...")
	wg.Wait()
}
