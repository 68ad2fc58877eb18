package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/niblr/concierge/internal/common"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

func (h *Handler) Health(c *gin.Context) {
	dbStatus := "ok"
	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		dbStatus = "down"
	}

	common.OK(c, gin.H{
		"status": "ok",
		"db":     dbStatus,
		"ts":     time.Now().UTC(),
	})
}
