package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banner-tools/bannershot/cache"
	"github.com/banner-tools/bannershot/models"
	"github.com/gin-gonic/gin"
)

func postCapture(t *testing.T, cc *cache.Cache, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/capture", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	// nil service: these tests only exercise the paths that return
	// before a capture starts.
	Capture(nil, cc)(c)
	return w
}

func TestCaptureCacheHitLeavesStoredResponseUntouched(t *testing.T) {
	cc := cache.New(10)
	stored := &models.CaptureResponse{
		Success:   true,
		URL:       "https://example.com/banner",
		ImageData: "aW1n",
		Format:    "jpeg",
	}
	cc.Set(cache.Key("https://example.com/banner", "png", nil, nil), stored)

	w := postCapture(t, cc, `{"url":"https://example.com/banner","max_age_ms":60000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp models.CaptureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.CacheStatus != "hit" {
		t.Errorf("cache_status = %q, want hit", resp.CacheStatus)
	}

	if stored.CacheStatus != "" {
		t.Errorf("stored response mutated: cache_status = %q", stored.CacheStatus)
	}
	if stored.Timing.TotalMs != 0 {
		t.Errorf("stored response mutated: timing = %+v", stored.Timing)
	}
}

func TestCaptureCacheKeyUsesNormalizedURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banner.html")
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The entry was stored under the normalized file URL; a request with
	// the bare path must find it.
	cc := cache.New(10)
	normalized := "file://" + filepath.ToSlash(path)
	cc.Set(cache.Key(normalized, "png", nil, nil), &models.CaptureResponse{
		Success: true,
		URL:     normalized,
	})

	w := postCapture(t, cc, `{"url":"`+path+`","max_age_ms":60000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	var resp models.CaptureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.CacheStatus != "hit" {
		t.Errorf("cache_status = %q, want hit for the normalized key", resp.CacheStatus)
	}
}

func TestCaptureRejectsUnsupportedScheme(t *testing.T) {
	w := postCapture(t, cache.New(10), `{"url":"ftp://example.com/banner"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp models.CaptureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
		t.Errorf("error = %+v, want %s", resp.Error, models.ErrCodeInvalidInput)
	}
}
