package handler

import (
	"net/http"

	"github.com/banner-tools/bannershot/capture"
	"github.com/banner-tools/bannershot/models"
	"github.com/gin-gonic/gin"
)

// Dimensions returns a handler for POST /api/v1/dimensions.
//
// Diagnostic endpoint: runs the same detection heuristics as the capture
// path without taking a screenshot, exposing the geometry, metadata, and
// the attempt trail.
func Dimensions(svc *capture.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DimensionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.DimensionsResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		info, err := svc.DetectDimensions(c.Request.Context(), req.URL)
		if err != nil {
			capErr, ok := err.(*models.CaptureError)
			if !ok {
				capErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
			}
			c.JSON(mapErrorToStatus(capErr), models.DimensionsResponse{
				Success: false,
				URL:     req.URL,
				Error:   capErr.ToDetail(),
			})
			return
		}

		c.JSON(http.StatusOK, models.DimensionsResponse{
			Success:    true,
			URL:        req.URL,
			BannerInfo: info,
		})
	}
}
