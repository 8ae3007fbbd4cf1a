package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// captureRequest mirrors the Bannershot API request model.
type captureRequest struct {
	URL      string `json:"url"`
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
	Format   string `json:"format,omitempty"`
	WaitTime int    `json:"waitTime,omitempty"`
	Stealth  bool   `json:"stealth,omitempty"`
}

// captureResponse mirrors the Bannershot API response model. ImageData is
// elided from tool output; the summary carries everything else.
type captureResponse struct {
	Success   bool   `json:"success"`
	ImageData string `json:"imageData"`
	Format    string `json:"format"`
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	Dimensions *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimensions"`
	DetectedDimensions *struct {
		Width           int    `json:"width"`
		Height          int    `json:"height"`
		DetectionMethod string `json:"detectionMethod"`
		BannerName      string `json:"bannerName"`
	} `json:"detectedDimensions"`
	Timing *struct {
		TotalMs int64 `json:"total_ms"`
	} `json:"timing"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// scanResponse mirrors the Bannershot scan API response.
type scanResponse struct {
	Success      bool   `json:"success"`
	PageTitle    string `json:"pageTitle"`
	TotalBanners int    `json:"totalBanners"`
	Banners      []struct {
		Type   string `json:"type"`
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Index  int    `json:"index"`
		Title  string `json:"title"`
	} `json:"banners"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// batchResponse mirrors the Bannershot batch API response.
type batchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// dimensionsResponse mirrors the Bannershot dimensions API response.
type dimensionsResponse struct {
	Success    bool            `json:"success"`
	URL        string          `json:"url"`
	BannerInfo json.RawMessage `json:"bannerInfo"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("BANNERSHOT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("BANNERSHOT_API_KEY")

	s := server.NewMCPServer(
		"bannershot",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	captureBannerTool := mcp.NewTool("capture_banner",
		mcp.WithDescription("Capture a screenshot of an HTML banner creative at its animation end frame. Auto-detects the creative's dimensions and compresses the image under the configured byte budget."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the banner page to capture"),
		),
		mcp.WithNumber("width",
			mcp.Description("Capture width in pixels (omit to auto-detect)"),
		),
		mcp.WithNumber("height",
			mcp.Description("Capture height in pixels (omit to auto-detect)"),
		),
		mcp.WithString("format",
			mcp.Description("Requested output format (default: 'png'; delivery is re-encoded JPEG under budget)"),
			mcp.Enum("png", "jpg", "jpeg", "webp"),
		),
		mcp.WithNumber("wait_time",
			mcp.Description("Fallback wait in seconds when no animation is detected (default: 3, max: 30)"),
		),
	)
	s.AddTool(captureBannerTool, handleCaptureBanner(apiURL, apiKey))

	// scan_preview tool
	scanPreviewTool := mcp.NewTool("scan_preview",
		mcp.WithDescription("Scan a share/preview page and list every capturable banner candidate it embeds, with declared dimensions where available."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the preview page to scan"),
		),
	)
	s.AddTool(scanPreviewTool, handleScanPreview(apiURL, apiKey))

	// batch_capture tool
	batchCaptureTool := mcp.NewTool("batch_capture",
		mcp.WithDescription("Capture multiple banner URLs in parallel and wait for the batch to finish. Returns per-URL capture summaries."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of banner page URLs to capture"),
		),
		mcp.WithString("format",
			mcp.Description("Requested output format applied to every URL"),
			mcp.Enum("png", "jpg", "jpeg", "webp"),
		),
	)
	s.AddTool(batchCaptureTool, handleBatchCapture(apiURL, apiKey))

	// detect_dimensions tool
	detectDimensionsTool := mcp.NewTool("detect_dimensions",
		mcp.WithDescription("Run dimension detection on a banner page without capturing a screenshot. Returns the detected geometry, creative metadata, and the detection attempt trail."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the banner page to inspect"),
		),
	)
	s.AddTool(detectDimensionsTool, handleDetectDimensions(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Bannershot API and returns the body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer
// "processing" or the context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			if apiKey != "" {
				req.Header.Set("X-API-Key", apiKey)
			}

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

func handleCaptureBanner(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := captureRequest{
			URL:      url,
			Format:   request.GetString("format", ""),
			WaitTime: request.GetInt("wait_time", 0),
		}
		if w := request.GetInt("width", 0); w > 0 {
			reqBody.Width = &w
		}
		if h := request.GetInt("height", 0); h > 0 {
			reqBody.Height = &h
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/capture", reqBody)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var capResp captureResponse
		if err := json.Unmarshal(respBody, &capResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !capResp.Success {
			errMsg := "capture failed"
			if capResp.Error != nil {
				errMsg = fmt.Sprintf("%s: %s", capResp.Error.Code, capResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Captured %s\n", capResp.URL)
		fmt.Fprintf(&sb, "Filename: %s (%s)\n", capResp.Filename, capResp.Format)
		if capResp.Dimensions != nil {
			fmt.Fprintf(&sb, "Dimensions: %dx%d\n", capResp.Dimensions.Width, capResp.Dimensions.Height)
		}
		if capResp.DetectedDimensions != nil {
			fmt.Fprintf(&sb, "Detection: %s", capResp.DetectedDimensions.DetectionMethod)
			if capResp.DetectedDimensions.BannerName != "" {
				fmt.Fprintf(&sb, " (creative: %s)", capResp.DetectedDimensions.BannerName)
			}
			sb.WriteString("\n")
		}
		if capResp.Timing != nil {
			fmt.Fprintf(&sb, "Total: %dms\n", capResp.Timing.TotalMs)
		}
		fmt.Fprintf(&sb, "Image payload: %d base64 bytes", len(capResp.ImageData))

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleScanPreview(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/scan", map[string]string{"url": url})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var scanResp scanResponse
		if err := json.Unmarshal(respBody, &scanResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !scanResp.Success {
			errMsg := "scan failed"
			if scanResp.Error != nil {
				errMsg = fmt.Sprintf("%s: %s", scanResp.Error.Code, scanResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Found %d banner(s) on %q\n", scanResp.TotalBanners, scanResp.PageTitle)
		for _, b := range scanResp.Banners {
			fmt.Fprintf(&sb, "%d. [%s] %s", b.Index, b.Type, b.URL)
			if b.Width > 0 && b.Height > 0 {
				fmt.Fprintf(&sb, " (%dx%d)", b.Width, b.Height)
			}
			if b.Title != "" {
				fmt.Fprintf(&sb, " %q", b.Title)
			}
			sb.WriteString("\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleBatchCapture(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil || len(urls) == 0 {
			return mcp.NewToolResultError("urls is required"), nil
		}

		targets := make([]map[string]string, 0, len(urls))
		for _, u := range urls {
			targets = append(targets, map[string]string{"url": u})
		}
		payload := map[string]interface{}{"urls": targets}
		if format := request.GetString("format", ""); format != "" {
			payload["settings"] = map[string]string{"format": format}
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/batch/capture", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var batchResp batchResponse
		if err := json.Unmarshal(respBody, &batchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if batchResp.ID == "" {
			return mcp.NewToolResultError(fmt.Sprintf("batch submission failed: %s", string(respBody))), nil
		}

		final, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/batch/"+batchResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch polling failed: %v", err)), nil
		}

		var status struct {
			Status    string            `json:"status"`
			Completed int               `json:"completed"`
			Total     int               `json:"total"`
			Results   []captureResponse `json:"results"`
		}
		if err := json.Unmarshal(final, &status); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch status: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %d/%d completed\n", status.Status, status.Completed, status.Total)
		for i, r := range status.Results {
			if r.Success {
				dims := ""
				if r.Dimensions != nil {
					dims = fmt.Sprintf(" %dx%d", r.Dimensions.Width, r.Dimensions.Height)
				}
				fmt.Fprintf(&sb, "%d. OK %s%s -> %s\n", i+1, r.URL, dims, r.Filename)
			} else {
				errMsg := "failed"
				if r.Error != nil {
					errMsg = r.Error.Message
				}
				fmt.Fprintf(&sb, "%d. FAIL %s: %s\n", i+1, r.URL, errMsg)
			}
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleDetectDimensions(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/dimensions", map[string]string{"url": url})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var dimResp dimensionsResponse
		if err := json.Unmarshal(respBody, &dimResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !dimResp.Success {
			errMsg := "detection failed"
			if dimResp.Error != nil {
				errMsg = fmt.Sprintf("%s: %s", dimResp.Error.Code, dimResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		pretty, err := json.MarshalIndent(dimResp.BannerInfo, "", "  ")
		if err != nil {
			return mcp.NewToolResultText(string(dimResp.BannerInfo)), nil
		}
		return mcp.NewToolResultText(string(pretty)), nil
	}
}
