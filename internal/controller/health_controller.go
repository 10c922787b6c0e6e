package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"affiliate-api/internal/database"
)

type HealthController struct {
	db        *database.Database
	startTime time.Time
}

func NewHealthController(db *database.Database) *HealthController {
	return &HealthController{
		db:        db,
		startTime: time.Now(),
	}
}

// Health reports liveness only.
func (c *HealthController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(c.startTime).String(),
	})
}

// Ready checks the backing stores.
func (c *HealthController) Ready(ctx *gin.Context) {
	if err := c.db.HealthCheck(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
