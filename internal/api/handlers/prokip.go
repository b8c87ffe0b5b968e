package handlers

import (
	"errors"
	"net/http"
	"strings"

	"prokipsync/internal/logger"
	"prokipsync/internal/models"
	"prokipsync/internal/services/reconcile"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ProkipBuilder builds a Prokip client from a user's stored config.
type ProkipBuilder interface {
	NewProkip(cfg *models.ProkipConfig) reconcile.Prokip
}

type ProkipConfigHandler struct {
	db      *gorm.DB
	logger  *logger.Logger
	clients ProkipBuilder
}

func NewProkipConfigHandler(db *gorm.DB, clients ProkipBuilder, logger *logger.Logger) *ProkipConfigHandler {
	return &ProkipConfigHandler{
		db:      db,
		logger:  logger,
		clients: clients,
	}
}

func redactConfig(cfg models.ProkipConfig) models.ProkipConfig {
	if cfg.Token != "" {
		cfg.Token = "********"
	}
	return cfg
}

// Upsert stores the Prokip token and location for a user, replacing any previous values.
func (h *ProkipConfigHandler) Upsert(c *gin.Context) {
	var req struct {
		UserID     string `json:"user_id" binding:"required"`
		Token      string `json:"token" binding:"required"`
		LocationID int    `json:"location_id" binding:"required,min=1"`
		BaseURL    string `json:"base_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, "id = ?", req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	var cfg models.ProkipConfig
	err := h.db.WithContext(ctx).Where("user_id = ?", req.UserID).First(&cfg).Error
	status := http.StatusOK
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		cfg = models.ProkipConfig{UserID: req.UserID}
		status = http.StatusCreated
	case err != nil:
		h.logger.Error("Failed to fetch prokip config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save prokip config"})
		return
	}

	cfg.Token = strings.TrimSpace(req.Token)
	cfg.LocationID = req.LocationID
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(req.BaseURL), "/")

	if err := h.db.WithContext(ctx).Save(&cfg).Error; err != nil {
		h.logger.Error("Failed to save prokip config: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save prokip config"})
		return
	}

	c.JSON(status, gin.H{"data": redactConfig(cfg)})
}

func (h *ProkipConfigHandler) Get(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	cfg, ok := h.load(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": redactConfig(*cfg)})
}

// Locations lists the business locations visible to the user's token.
func (h *ProkipConfigHandler) Locations(c *gin.Context) {
	cfg, ok := h.load(c, c.Param("user_id"))
	if !ok {
		return
	}

	locations, err := h.clients.NewProkip(cfg).ListLocations(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list prokip locations for user %s: %v", cfg.UserID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch locations from Prokip"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": locations})
}

func (h *ProkipConfigHandler) load(c *gin.Context, userID string) (*models.ProkipConfig, bool) {
	var cfg models.ProkipConfig
	if err := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Prokip config not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prokip config"})
		return nil, false
	}
	return &cfg, true
}
