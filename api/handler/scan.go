package handler

import (
	"net/http"

	"github.com/banner-tools/bannershot/capture"
	"github.com/banner-tools/bannershot/models"
	"github.com/gin-gonic/gin"
)

// Scan returns a handler for POST /api/v1/scan.
//
// It renders a share/preview page and lists every capturable banner
// candidate found on it, so clients can fan the results out into capture
// or batch requests.
func Scan(svc *capture.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScanResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		result, err := svc.ScanPreview(c.Request.Context(), req.URL)
		if err != nil {
			capErr, ok := err.(*models.CaptureError)
			if !ok {
				capErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
			}
			c.JSON(mapErrorToStatus(capErr), models.ScanResponse{
				Success: false,
				Error:   capErr.ToDetail(),
			})
			return
		}

		c.JSON(http.StatusOK, models.ScanResponse{
			Success:      true,
			PreviewURL:   req.URL,
			PageTitle:    result.PageTitle,
			TotalBanners: len(result.Banners),
			Banners:      result.Banners,
		})
	}
}
