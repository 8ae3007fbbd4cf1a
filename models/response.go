package models

import (
	"sync"
	"time"
)

// CaptureResponse is the response for POST /api/v1/capture.
type CaptureResponse struct {
	// Success indicates whether the capture completed without errors.
	Success bool `json:"success"`

	// ImageData is the base64-encoded delivered image.
	ImageData string `json:"imageData,omitempty"`

	// Format is the delivered encoding: "jpeg" normally, or "png" when
	// the codec failed and the lossless capture was returned as-is.
	Format string `json:"format,omitempty"`

	// Dimensions are the logical pixel dimensions of the delivered image.
	Dimensions *Dimensions `json:"dimensions,omitempty"`

	// DetectedDimensions carries the full detection result: geometry,
	// metadata, debug trail, and encoding report.
	DetectedDimensions *BannerInfo `json:"detectedDimensions,omitempty"`

	// Filename is the derived (or caller-supplied) download filename.
	Filename string `json:"filename,omitempty"`

	// URL is the capture target.
	URL string `json:"url"`

	// Index is the position within a batch (batch responses only).
	Index int `json:"index,omitempty"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// Dimensions is a simple width/height pair.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent navigating and settling the page.
	NavigationMs int64 `json:"navigation_ms"`

	// AnimationMs is the time spent waiting out animations.
	AnimationMs int64 `json:"animation_ms"`

	// EncodingMs is the time spent in the image codec.
	EncodingMs int64 `json:"encoding_ms"`
}

// BatchResponse is the response for POST /api/v1/batch/capture.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // processing|completed|partial|failed
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Results   []*CaptureResponse `json:"results"`
}

// BatchJob tracks an in-flight batch capture. Worker goroutines record
// results while status polls read concurrently, so the mutable state is
// guarded and only reachable through methods.
type BatchJob struct {
	ID        string
	Total     int
	CreatedAt int64

	mu        sync.Mutex
	status    string
	completed int
	results   []*CaptureResponse
}

// NewBatchJob creates a processing job with result slots for each target.
func NewBatchJob(id string, total int) *BatchJob {
	return &BatchJob{
		ID:        id,
		Total:     total,
		CreatedAt: time.Now().Unix(),
		status:    "processing",
		results:   make([]*CaptureResponse, total),
	}
}

// RecordResult stores one target's outcome and bumps the completion count.
func (j *BatchJob) RecordResult(idx int, resp *CaptureResponse) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[idx] = resp
	j.completed++
}

// Finish marks the job's terminal status.
func (j *BatchJob) Finish(status string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
}

// Snapshot returns a consistent view of the job for status responses.
func (j *BatchJob) Snapshot() BatchStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	return BatchStatusResponse{
		ID:        j.ID,
		Status:    j.status,
		Completed: j.completed,
		Total:     j.Total,
		Results:   append([]*CaptureResponse(nil), j.results...),
	}
}

// ScanResponse is the response for POST /api/v1/scan.
type ScanResponse struct {
	Success      bool           `json:"success"`
	PreviewURL   string         `json:"previewUrl"`
	PageTitle    string         `json:"pageTitle"`
	TotalBanners int            `json:"totalBanners"`
	Banners      []BannerFrame  `json:"banners"`
	Error        *ErrorDetail   `json:"error,omitempty"`
}

// BannerFrame is one capturable banner candidate found on a preview page.
type BannerFrame struct {
	// Type records how the candidate was found: "iframe", "container",
	// "link", or "preview".
	Type   string `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width"`  // 0 = unknown, auto-detect at capture
	Height int    `json:"height"` // 0 = unknown, auto-detect at capture
	Index  int    `json:"index"`
	Title  string `json:"title"`
	ID     string `json:"id"`
}

// DimensionsResponse is the response for POST /api/v1/dimensions.
type DimensionsResponse struct {
	Success    bool         `json:"success"`
	URL        string       `json:"url"`
	BannerInfo *BannerInfo  `json:"bannerInfo,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser instance pool.
type PoolStats struct {
	PoolSize  int `json:"pool_size"`
	Active    int `json:"active"`
	Temporary int `json:"temporary"`
}
