package api

import (
	"time"

	"github.com/banner-tools/bannershot/api/handler"
	"github.com/banner-tools/bannershot/api/middleware"
	"github.com/banner-tools/bannershot/browser"
	"github.com/banner-tools/bannershot/cache"
	"github.com/banner-tools/bannershot/capture"
	"github.com/banner-tools/bannershot/config"
	"github.com/gin-gonic/gin"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(svc *capture.Service, pool *browser.Pool, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health endpoint, no auth required.
	v1.GET("/health", handler.Health(pool, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Capture
	protected.POST("/capture", handler.Capture(svc, cc))

	// Batch
	protected.POST("/batch/capture", handler.PostBatch(svc, cfg.Browser.PoolSize))
	protected.GET("/batch/:id", handler.GetBatch())

	// Preview scanning
	protected.POST("/scan", handler.Scan(svc))

	// Dimension diagnostics
	protected.POST("/dimensions", handler.Dimensions(svc))

	// ZIP bundling
	protected.POST("/zip", handler.Zip())

	return r
}
