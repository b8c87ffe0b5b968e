package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"prokipsync/internal/connectors"
	"prokipsync/internal/logger"
	"prokipsync/internal/services/reconcile"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrConnectionNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrSyncDisabled), errors.Is(err, reconcile.ErrProkipNotConfigured):
		return http.StatusConflict
	case errors.Is(err, reconcile.ErrUnsupportedPlatform):
		return http.StatusBadRequest
	case connectors.IsUnauthorized(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, log *logger.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("%s: %v", msg, err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type pagination struct {
	Page  int
	Limit int
}

func parsePagination(c *gin.Context) pagination {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return pagination{Page: page, Limit: limit}
}

func (p pagination) offset() int {
	return (p.Page - 1) * p.Limit
}

func (p pagination) body(data interface{}, total int64) gin.H {
	return gin.H{
		"data": data,
		"pagination": gin.H{
			"page":  p.Page,
			"limit": p.Limit,
			"total": total,
		},
	}
}
