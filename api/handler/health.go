package handler

import (
	"net/http"
	"time"

	"github.com/banner-tools/bannershot/browser"
	"github.com/banner-tools/bannershot/models"
	"github.com/gin-gonic/gin"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports pool utilisation and degrades status when the pool is fully
// checked out and captures are spilling into temporary instances.
func Health(pool *browser.Pool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := pool.Stats()

		status := "healthy"
		if stats.Temporary > 0 || (stats.PoolSize > 0 && stats.Active >= stats.PoolSize) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
