package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prokipsync/internal/api"
	"prokipsync/internal/config"
	"prokipsync/internal/database"
	"prokipsync/internal/events"
	"prokipsync/internal/logger"
	"prokipsync/internal/metrics"
	"prokipsync/internal/scheduler"
	"prokipsync/internal/services/reconcile"

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

	// Initialize database
	db, err := database.New(cfg.Database, cfg.IsProduction())
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)
	syncService := reconcile.NewService(db.DB, reconcile.OptionsFromConfig(cfg), logger).WithMetrics(syncMetrics)

	deps := api.Dependencies{Sync: syncService}
	if cfg.Kafka.Enabled {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer publisher.Close()
		deps.Publisher = publisher
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, closeScheduler, err := scheduler.Build(ctx, cfg, db.DB, syncService, syncMetrics, logger)
	if err != nil {
		logger.Fatal("Failed to set up scheduler: %v", err)
	}
	defer closeScheduler()
	deps.Scheduler = sched

	// Initialize API server
	server := api.New(cfg, logger, db, deps)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
		os.Exit(1)
	}
}
