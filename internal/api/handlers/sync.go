package handlers

import (
	"context"
	"errors"
	"net/http"

	"prokipsync/internal/logger"
	"prokipsync/internal/services/reconcile"

	"github.com/gin-gonic/gin"
)

// Syncer is the set of manual sync operations exposed over HTTP.
type Syncer interface {
	SyncStoreOrders(ctx context.Context, connectionID string) (*reconcile.Result, error)
	SyncProkipSales(ctx context.Context, connectionID string) (*reconcile.Result, error)
	SyncInventory(ctx context.Context, connectionID string) (*reconcile.Result, error)
	ImportProducts(ctx context.Context, connectionID string) (*reconcile.Result, error)
}

// CycleRunner runs every scheduled job once.
type CycleRunner interface {
	RunOnce(ctx context.Context) error
}

type SyncHandler struct {
	logger    *logger.Logger
	syncer    Syncer
	scheduler CycleRunner
}

func NewSyncHandler(syncer Syncer, scheduler CycleRunner, logger *logger.Logger) *SyncHandler {
	return &SyncHandler{
		logger:    logger,
		syncer:    syncer,
		scheduler: scheduler,
	}
}

func (h *SyncHandler) SyncOrders(c *gin.Context) {
	h.run(c, "Order sync failed", h.syncer.SyncStoreOrders)
}

func (h *SyncHandler) SyncProkipSales(c *gin.Context) {
	h.run(c, "Prokip sales sync failed", h.syncer.SyncProkipSales)
}

func (h *SyncHandler) SyncInventory(c *gin.Context) {
	h.run(c, "Inventory sync failed", h.syncer.SyncInventory)
}

func (h *SyncHandler) ImportProducts(c *gin.Context) {
	h.run(c, "Product import failed", h.syncer.ImportProducts)
}

// RunAll triggers one scheduler cycle for every enabled connection.
func (h *SyncHandler) RunAll(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is not configured"})
		return
	}
	if err := h.scheduler.RunOnce(c.Request.Context()); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Warn("Manual scheduler run did not complete: %v", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sync cycle completed"})
}

func (h *SyncHandler) run(c *gin.Context, msg string, op func(context.Context, string) (*reconcile.Result, error)) {
	id := c.Param("id")
	result, err := op(c.Request.Context(), id)
	if err != nil {
		if result != nil {
			// The run started but failed as a whole; report what it got through.
			h.logger.Error("%s for connection %s: %v", msg, id, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "data": result})
			return
		}
		respondError(c, h.logger, msg, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
