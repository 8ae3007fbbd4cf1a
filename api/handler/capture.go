package handler

import (
	"net/http"
	"time"

	"github.com/banner-tools/bannershot/cache"
	"github.com/banner-tools/bannershot/capture"
	"github.com/banner-tools/bannershot/models"
	"github.com/gin-gonic/gin"
)

// Capture returns a handler for POST /api/v1/capture.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup when the caller allows stale results.
//  3. Service.Capture → end-frame screenshot under the byte budget.
//  4. Cache store, return 200.
func Capture(svc *capture.Service, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.CaptureResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// Normalize the target up front so the cache key is computed from
		// the same URL the service captures under.
		normalized, err := capture.NormalizeTargetURL(req.URL)
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}
		req.URL = normalized

		var cacheKey string
		if cc != nil && req.MaxAgeMs > 0 {
			cacheKey = cache.Key(req.URL, req.Format, req.Width, req.Height)
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		if cacheKey != "" {
			if cached, hit := cc.Get(cacheKey, req.MaxAgeMs); hit {
				// Shallow copy: the stored response is shared with other
				// in-flight requests and stays immutable.
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, &resp)
				return
			}
		}

		// ── 3. Capture ──────────────────────────────────────────────
		resp, err := svc.Capture(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		// ── 4. Cache store ──────────────────────────────────────────
		if cacheKey != "" {
			cc.Set(cacheKey, resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a CaptureError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	capErr, ok := err.(*models.CaptureError)
	if !ok {
		capErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(capErr), models.CaptureResponse{
		Success: false,
		Error:   capErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.CaptureError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
