package handler

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/banner-tools/bannershot/capture"
	"github.com/banner-tools/bannershot/models"
	"github.com/gin-gonic/gin"
)

// Zip returns a handler for POST /api/v1/zip.
//
// Bundles previously captured images into a single ZIP download. Payloads
// arrive base64-encoded, optionally with a data-URL prefix. Filenames are
// normalized and deduplicated inside the archive.
func Zip() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ZipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		used := make(map[string]int)

		for i, img := range req.Images {
			data, err := decodeImagePayload(img.Data)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: fmt.Sprintf("image %d: invalid base64 payload", i+1),
					},
				})
				return
			}

			name := img.Filename
			if name == "" {
				name = fmt.Sprintf("banner_%d.png", i+1)
			}
			name = uniqueName(capture.CleanZipName(name), used)

			w, err := zw.Create(name)
			if err == nil {
				_, err = w.Write(data)
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": models.ErrorDetail{
						Code:    models.ErrCodeInternal,
						Message: "failed to build archive",
					},
				})
				return
			}
		}

		if err := zw.Close(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInternal,
					Message: "failed to finalize archive",
				},
			})
			return
		}

		c.Header("Content-Disposition", `attachment; filename="banners.zip"`)
		c.Data(http.StatusOK, "application/zip", buf.Bytes())
	}
}

// decodeImagePayload decodes a base64 image, stripping any data-URL
// prefix first.
func decodeImagePayload(data string) ([]byte, error) {
	if idx := strings.Index(data, ";base64,"); idx >= 0 {
		data = data[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(data)
}

// uniqueName suffixes duplicate archive names so entries never collide.
func uniqueName(name string, used map[string]int) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := ""
	base := name
	if idx := strings.LastIndex(name, "."); idx > 0 {
		base, ext = name[:idx], name[idx:]
	}
	return fmt.Sprintf("%s_%d%s", base, n+1, ext)
}
