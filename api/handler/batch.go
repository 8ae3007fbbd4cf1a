package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banner-tools/bannershot/capture"
	"github.com/banner-tools/bannershot/models"
	"github.com/gin-gonic/gin"
)

// maxBatchSize bounds one batch job; captures are heavyweight.
const maxBatchSize = 20

// batchStore holds all in-flight and completed batch jobs.
var batchStore sync.Map

func init() {
	// Background goroutine to expire batch jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			batchStore.Range(func(key, value any) bool {
				job := value.(*models.BatchJob)
				if job.CreatedAt < cutoff {
					batchStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// PostBatch returns a handler for POST /api/v1/batch/capture.
// It validates the request, creates a batch job, and launches goroutines
// to capture each URL concurrently.
func PostBatch(svc *capture.Service, poolSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchCaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		if len(req.URLs) > maxBatchSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "maximum 20 URLs per batch",
				},
			})
			return
		}

		jobID := "batch-" + randomID()
		job := models.NewBatchJob(jobID, len(req.URLs))
		batchStore.Store(jobID, job)

		// Launch captures in background.
		go runBatch(svc, poolSize, job, req)

		c.JSON(http.StatusOK, models.BatchResponse{
			ID:     jobID,
			Status: "processing",
			Total:  len(req.URLs),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := batchStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch job not found",
				},
			})
			return
		}

		job := val.(*models.BatchJob)
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// runBatch processes all URLs in a batch job with concurrency limited by
// a semaphore sized to the browser pool.
func runBatch(svc *capture.Service, poolSize int, job *models.BatchJob, req models.BatchCaptureRequest) {
	maxConcurrent := poolSize
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	sem := make(chan struct{}, maxConcurrent)

	var wg sync.WaitGroup
	var completed atomic.Int32
	var failed atomic.Int32

	for i, target := range req.URLs {
		wg.Add(1)
		go func(idx int, target models.BatchTarget) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resp := captureOne(svc, target, req.Settings.Merge(target.Settings), idx)
			job.RecordResult(idx, resp)

			if resp.Success {
				completed.Add(1)
			} else {
				failed.Add(1)
			}
		}(i, target)
	}

	wg.Wait()

	failedCount := int(failed.Load())
	completedCount := int(completed.Load())

	var status string
	switch {
	case failedCount == job.Total:
		status = "failed"
	case failedCount > 0:
		status = "partial"
	default:
		status = "completed"
	}
	job.Finish(status)

	slog.Info("batch job finished",
		"id", job.ID,
		"status", status,
		"completed", completedCount,
		"failed", failedCount,
		"total", job.Total,
	)
}

// captureOne performs a single capture for one batch target with merged
// settings.
func captureOne(svc *capture.Service, target models.BatchTarget, settings models.BatchSettings, idx int) *models.CaptureResponse {
	totalStart := time.Now()

	creq := &models.CaptureRequest{
		URL:      target.URL,
		Width:    settings.Width,
		Height:   settings.Height,
		Format:   settings.Format,
		WaitTime: settings.WaitTime,
		Stealth:  settings.Stealth,
	}
	creq.Defaults()

	resp, err := svc.Capture(context.Background(), creq)
	if err != nil {
		capErr, ok := err.(*models.CaptureError)
		if !ok {
			capErr = models.NewCaptureError(models.ErrCodeInternal, err.Error(), err)
		}
		return &models.CaptureResponse{
			Success: false,
			URL:     target.URL,
			Index:   idx,
			Error:   capErr.ToDetail(),
			Timing: models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			},
		}
	}

	resp.Index = idx
	if resp.DetectedDimensions != nil {
		resp.Filename = capture.BuildFilename(resp.DetectedDimensions, creq.Format, idx)
	}
	return resp
}

// randomID generates a short random hex identifier for batch jobs.
func randomID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:16]
	}
	return hex.EncodeToString(b)
}
