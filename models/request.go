package models

// CaptureRequest is the payload for POST /api/v1/capture.
type CaptureRequest struct {
	// URL is the banner page to capture. http(s):// or file:// URLs
	// are accepted. Required.
	URL string `json:"url" binding:"required"`

	// Width and Height are the capture dimensions in pixels.
	// Omitting either enables auto-detection of the creative's true box.
	Width  *int `json:"width,omitempty" binding:"omitempty,min=100,max=3000"`
	Height *int `json:"height,omitempty" binding:"omitempty,min=100,max=3000"`

	// Format is the requested output format.
	// Allowed: "png", "jpg", "jpeg", "webp". Default: "png".
	// The delivered artifact is re-encoded as JPEG under the size budget
	// regardless; Format only influences the capture intent and filename.
	Format string `json:"format,omitempty" binding:"omitempty,oneof=png jpg jpeg webp"`

	// WaitTime is the fallback wait in seconds when no animation signal
	// is detected. Default: 3. Range: 1-30.
	WaitTime int `json:"waitTime,omitempty" binding:"omitempty,min=1,max=30"`

	// Filename overrides the generated filename.
	Filename string `json:"filename,omitempty"`

	// Stealth enables anti-bot-detection evasions for targets behind
	// bot walls. Default: false.
	Stealth bool `json:"stealth,omitempty"`

	// MaxAgeMs, when > 0, allows serving a cached capture no older than
	// this many milliseconds.
	MaxAgeMs int `json:"max_age_ms,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *CaptureRequest) Defaults() {
	if r.Format == "" {
		r.Format = "png"
	}
	if r.WaitTime == 0 {
		r.WaitTime = 3
	}
}

// BatchCaptureRequest is the payload for POST /api/v1/batch/capture.
type BatchCaptureRequest struct {
	// URLs lists the banner pages to capture. Max 20 per batch.
	URLs []BatchTarget `json:"urls" binding:"required,min=1"`

	// Settings are shared defaults applied to every target.
	Settings BatchSettings `json:"settings,omitempty"`
}

// BatchTarget is one entry in a batch. Per-target settings override the
// shared batch settings.
type BatchTarget struct {
	URL      string        `json:"url" binding:"required"`
	Settings BatchSettings `json:"settings,omitempty"`
}

// BatchSettings are the per-capture knobs shared across a batch.
type BatchSettings struct {
	Width    *int   `json:"width,omitempty"`
	Height   *int   `json:"height,omitempty"`
	Format   string `json:"format,omitempty"`
	WaitTime int    `json:"waitTime,omitempty"`
	Stealth  bool   `json:"stealth,omitempty"`
}

// Merge overlays per-target settings onto shared settings; set fields win.
func (s BatchSettings) Merge(override BatchSettings) BatchSettings {
	out := s
	if override.Width != nil {
		out.Width = override.Width
	}
	if override.Height != nil {
		out.Height = override.Height
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.WaitTime != 0 {
		out.WaitTime = override.WaitTime
	}
	if override.Stealth {
		out.Stealth = true
	}
	return out
}

// ScanRequest is the payload for POST /api/v1/scan.
type ScanRequest struct {
	// URL is the share/preview page to scan for embedded banners.
	URL string `json:"url" binding:"required,url"`
}

// DimensionsRequest is the payload for POST /api/v1/dimensions.
// It runs the dimension detector only, without taking a screenshot.
type DimensionsRequest struct {
	URL string `json:"url" binding:"required"`
}

// ZipRequest is the payload for POST /api/v1/zip.
type ZipRequest struct {
	Images []ZipImage `json:"images" binding:"required,min=1"`
}

// ZipImage is one base64-encoded image to include in the archive.
type ZipImage struct {
	// Data is the base64 image payload, optionally prefixed with a
	// "data:...;base64," header.
	Data     string `json:"data" binding:"required"`
	Filename string `json:"filename"`
}
