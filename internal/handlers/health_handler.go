package handlers

import (
	"context"
	"net/http"
	"time"

	"creatorhub/internal/logger"
	"creatorhub/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db  *gorm.DB
	hub *ws.Manager
}

func NewHealthHandler(db *gorm.DB, hub *ws.Manager) *HealthHandler {
	return &HealthHandler{db: db, hub: hub}
}

// Health pings the database.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logger.CtxWithError(ctx, "health check failed", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
		"sessions": h.hub.SessionCount(),
	})
}
