package handler

import (
	"context"
	"net/http"
	"sync"

	"prokipsync/internal/api"
	"prokipsync/internal/config"
	"prokipsync/internal/database"
	"prokipsync/internal/logger"
	"prokipsync/internal/metrics"
	"prokipsync/internal/scheduler"
	"prokipsync/internal/services/reconcile"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once
	app      http.Handler
	initErr  error
)

// setup builds the API once per serverless instance. Webhooks are processed
// inline here since there is no long-lived worker next to the function.
func setup() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}

	log := logger.NewForEnvironment(cfg.App.Env, cfg.App.LogLevel)

	db, err := database.New(cfg.Database, cfg.IsProduction())
	if err != nil {
		initErr = err
		return
	}

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)
	syncService := reconcile.NewService(db.DB, reconcile.OptionsFromConfig(cfg), log).WithMetrics(syncMetrics)

	sched, _, err := scheduler.Build(context.Background(), cfg, db.DB, syncService, syncMetrics, log)
	if err != nil {
		initErr = err
		return
	}

	app = api.New(cfg, log, db, api.Dependencies{Sync: syncService, Scheduler: sched}).Handler()
}

// Handler is the Vercel entrypoint.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(setup)
	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"service failed to initialize"}`))
		return
	}
	app.ServeHTTP(w, r)
}
