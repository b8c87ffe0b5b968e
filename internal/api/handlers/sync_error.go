package handlers

import (
	"errors"
	"net/http"
	"time"

	"prokipsync/internal/logger"
	"prokipsync/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SyncErrorHandler struct {
	db     *gorm.DB
	logger *logger.Logger
}

func NewSyncErrorHandler(db *gorm.DB, logger *logger.Logger) *SyncErrorHandler {
	return &SyncErrorHandler{
		db:     db,
		logger: logger,
	}
}

func (h *SyncErrorHandler) List(c *gin.Context) {
	p := parsePagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.SyncError{})
	if connectionID := c.Query("connection_id"); connectionID != "" {
		query = query.Where("connection_id = ?", connectionID)
	}
	if operation := c.Query("operation"); operation != "" {
		query = query.Where("operation = ?", operation)
	}
	switch c.Query("resolved") {
	case "true":
		query = query.Where("resolved = ?", true)
	case "false":
		query = query.Where("resolved = ?", false)
	}

	var total int64
	query.Count(&total)

	var syncErrors []models.SyncError
	if err := query.Order("created_at DESC").Offset(p.offset()).Limit(p.Limit).Find(&syncErrors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync errors"})
		return
	}

	c.JSON(http.StatusOK, p.body(syncErrors, total))
}

func (h *SyncErrorHandler) Resolve(c *gin.Context) {
	id := c.Param("id")

	var syncErr models.SyncError
	if err := h.db.WithContext(c.Request.Context()).First(&syncErr, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sync error not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sync error"})
		return
	}

	if !syncErr.Resolved {
		now := time.Now()
		syncErr.Resolved = true
		syncErr.ResolvedAt = &now
		if err := h.db.WithContext(c.Request.Context()).Save(&syncErr).Error; err != nil {
			h.logger.Error("Failed to resolve sync error %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve sync error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": syncErr})
}
