package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"prokipsync/internal/logger"
	"prokipsync/internal/models"
	"prokipsync/internal/services/reconcile"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StoreBuilder builds a live store client for a connection.
type StoreBuilder interface {
	NewStore(conn *models.Connection) (reconcile.Store, error)
}

type ConnectionHandler struct {
	db     *gorm.DB
	logger *logger.Logger
	stores StoreBuilder
}

func NewConnectionHandler(db *gorm.DB, stores StoreBuilder, logger *logger.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		db:     db,
		logger: logger,
		stores: stores,
	}
}

type connectionRequest struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	Platform       string  `json:"platform"`
	StoreURL       string  `json:"store_url"`
	ConsumerKey    *string `json:"consumer_key"`
	ConsumerSecret *string `json:"consumer_secret"`
	AccessToken    *string `json:"access_token"`
	LocationID     *string `json:"location_id"`
	Status         string  `json:"status"`
	SyncEnabled    *bool   `json:"sync_enabled"`
	SyncOrders     *bool   `json:"sync_orders"`
	SyncInventory  *bool   `json:"sync_inventory"`
}

// flagUpdates returns the explicitly provided flags. Zero values have to be
// written with an update because the columns default to true.
func (r *connectionRequest) flagUpdates() map[string]interface{} {
	updates := map[string]interface{}{}
	if r.SyncEnabled != nil {
		updates["sync_enabled"] = *r.SyncEnabled
	}
	if r.SyncOrders != nil {
		updates["sync_orders"] = *r.SyncOrders
	}
	if r.SyncInventory != nil {
		updates["sync_inventory"] = *r.SyncInventory
	}
	return updates
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func validateCredentials(conn *models.Connection) error {
	switch conn.Platform {
	case models.PlatformWooCommerce:
		if conn.ConsumerKey == "" || conn.ConsumerSecret == "" {
			return errors.New("consumer_key and consumer_secret are required for WooCommerce")
		}
	case models.PlatformShopify:
		if conn.AccessToken == "" {
			return errors.New("access_token is required for Shopify")
		}
	}
	return nil
}

func (h *ConnectionHandler) List(c *gin.Context) {
	var connections []models.Connection

	query := h.db.WithContext(c.Request.Context()).Model(&models.Connection{})
	if userID := c.Query("user_id"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if platform, ok := models.ParsePlatform(c.Query("platform")); ok {
		query = query.Where("platform = ?", platform)
	}

	if err := query.Order("created_at").Find(&connections).Error; err != nil {
		h.logger.Error("Failed to fetch connections: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch connections"})
		return
	}

	redacted := make([]models.Connection, len(connections))
	for i := range connections {
		redacted[i] = connections[i].Redacted()
	}
	c.JSON(http.StatusOK, gin.H{"data": redacted})
}

func (h *ConnectionHandler) Get(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": conn.Redacted()})
}

func (h *ConnectionHandler) Create(c *gin.Context) {
	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	platform, ok := models.ParsePlatform(req.Platform)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "platform must be woocommerce or shopify"})
		return
	}
	if req.UserID == "" || req.Name == "" || req.StoreURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, name and store_url are required"})
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

	conn := models.Connection{
		UserID:         req.UserID,
		Name:           req.Name,
		Platform:       platform,
		StoreURL:       strings.TrimSpace(req.StoreURL),
		ConsumerKey:    deref(req.ConsumerKey),
		ConsumerSecret: deref(req.ConsumerSecret),
		AccessToken:    deref(req.AccessToken),
		LocationID:     deref(req.LocationID),
	}
	if err := validateCredentials(&conn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.db.WithContext(ctx).Create(&conn).Error; err != nil {
		h.logger.Error("Failed to create connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create connection"})
		return
	}
	if err := h.applyFlags(ctx, &conn, req.flagUpdates()); err != nil {
		h.logger.Error("Failed to set connection flags: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create connection"})
		return
	}

	h.logger.Info("Created %s connection %s for user %s", conn.Platform, conn.ID, conn.UserID)
	c.JSON(http.StatusCreated, gin.H{"data": conn.Redacted()})
}

func (h *ConnectionHandler) Update(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}

	var req connectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		conn.Name = req.Name
	}
	if req.StoreURL != "" {
		conn.StoreURL = strings.TrimRight(strings.TrimSpace(req.StoreURL), "/")
	}
	if req.ConsumerKey != nil {
		conn.ConsumerKey = deref(req.ConsumerKey)
	}
	if req.ConsumerSecret != nil {
		conn.ConsumerSecret = deref(req.ConsumerSecret)
	}
	if req.AccessToken != nil {
		conn.AccessToken = deref(req.AccessToken)
	}
	if req.LocationID != nil {
		conn.LocationID = deref(req.LocationID)
	}
	if req.Status != "" {
		status := models.ConnectionStatus(strings.ToUpper(req.Status))
		if status != models.ConnectionStatusActive && status != models.ConnectionStatusInactive {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be ACTIVE or INACTIVE"})
			return
		}
		conn.Status = status
	}
	if err := validateCredentials(conn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Save(conn).Error; err != nil {
		h.logger.Error("Failed to update connection %s: %v", conn.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update connection"})
		return
	}
	if err := h.applyFlags(ctx, conn, req.flagUpdates()); err != nil {
		h.logger.Error("Failed to set connection flags: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update connection"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": conn.Redacted()})
}

// Delete removes the connection together with its sync history.
func (h *ConnectionHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.SalesLog{},
			&models.InventoryCache{},
			&models.InventoryLog{},
			&models.SyncError{},
			&models.WebhookEvent{},
		} {
			if err := tx.Where("connection_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Connection{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
			return
		}
		h.logger.Error("Failed to delete connection %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete connection"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Test checks the stored credentials against the store API.
func (h *ConnectionHandler) Test(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}

	store, err := h.stores.NewStore(conn)
	if err != nil {
		respondError(c, h.logger, "Failed to build store client", err)
		return
	}
	if err := store.Ping(c.Request.Context()); err != nil {
		h.logger.Warn("Connection test failed for %s: %v", conn.ID, err)
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"ok": false, "error": err.Error()}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"ok": true}})
}

func (h *ConnectionHandler) SalesLogs(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}
	p := parsePagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.SalesLog{}).Where("connection_id = ?", conn.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", strings.ToUpper(status))
	}
	if source := c.Query("source"); source != "" {
		query = query.Where("source = ?", strings.ToUpper(source))
	}

	var total int64
	query.Count(&total)

	var logs []models.SalesLog
	if err := query.Order("created_at DESC").Offset(p.offset()).Limit(p.Limit).Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sales logs"})
		return
	}

	c.JSON(http.StatusOK, p.body(logs, total))
}

func (h *ConnectionHandler) Inventory(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}
	p := parsePagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.InventoryCache{}).Where("connection_id = ?", conn.ID)
	if search := strings.ToLower(c.Query("search")); search != "" {
		query = query.Where("LOWER(sku) LIKE ? OR LOWER(name) LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	query.Count(&total)

	var items []models.InventoryCache
	if err := query.Order("sku").Offset(p.offset()).Limit(p.Limit).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch inventory"})
		return
	}

	c.JSON(http.StatusOK, p.body(items, total))
}

func (h *ConnectionHandler) Errors(c *gin.Context) {
	conn, ok := h.load(c)
	if !ok {
		return
	}
	p := parsePagination(c)

	query := h.db.WithContext(c.Request.Context()).Model(&models.SyncError{}).Where("connection_id = ?", conn.ID)
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

func (h *ConnectionHandler) load(c *gin.Context) (*models.Connection, bool) {
	var conn models.Connection
	if err := h.db.WithContext(c.Request.Context()).First(&conn, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch connection"})
		return nil, false
	}
	return &conn, true
}

func (h *ConnectionHandler) applyFlags(ctx context.Context, conn *models.Connection, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if err := h.db.WithContext(ctx).Model(conn).Updates(updates).Error; err != nil {
		return err
	}
	return h.db.WithContext(ctx).First(conn, "id = ?", conn.ID).Error
}
