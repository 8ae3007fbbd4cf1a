package models

// DetectedGeometry is the creative's true pixel box as determined by the
// in-page dimension scan. Produced once per capture and immutable after
// detection.
type DetectedGeometry struct {
	// Width and Height are the detected creative dimensions, clamped into
	// the plausible banner envelope before use.
	Width  int `json:"width"`
	Height int `json:"height"`

	// DetectionMethod tags which heuristic produced the box, e.g.
	// "#mainHolder (banner container priority)" or "viewport/body fallback".
	DetectionMethod string `json:"detectionMethod"`

	ViewportWidth  int     `json:"viewportWidth"`
	ViewportHeight int     `json:"viewportHeight"`
	BodyWidth      float64 `json:"bodyWidth"`
	BodyHeight     float64 `json:"bodyHeight"`

	// IsSharingPlatform is set when the page looks like a banner-sharing
	// host (hostname marker or structural marker).
	IsSharingPlatform bool   `json:"isSharingPlatform"`
	Hostname          string `json:"hostname"`
}

// CreativeMetadata is descriptive metadata embedded in the creative via its
// metadata carrier element. All fields are optional; absence degrades to
// positional/timestamp naming.
type CreativeMetadata struct {
	Name           string `json:"name,omitempty"`
	ReportingLabel string `json:"reportingLabel,omitempty"`
	AdType         string `json:"adType,omitempty"`
	Platform       string `json:"platform,omitempty"`
	Campaign       string `json:"campaign,omitempty"`
	Client         string `json:"client,omitempty"`

	// DataWidth/DataHeight are exact dimensions declared in the metadata
	// payload (adSize), taking precedence over heuristic detection.
	DataWidth  int `json:"dataWidth,omitempty"`
	DataHeight int `json:"dataHeight,omitempty"`

	// Source records where the metadata was found: "main-document",
	// "iframe-N", or "iframe-url" for the second-pass navigation.
	Source string `json:"source,omitempty"`
}

// Empty reports whether no metadata field carries a value.
func (m CreativeMetadata) Empty() bool {
	return m.Name == "" && m.ReportingLabel == "" && m.AdType == "" &&
		m.Platform == "" && m.Campaign == "" && m.Client == "" &&
		m.DataWidth == 0 && m.DataHeight == 0
}

// BannerInfo is the full detection result: geometry, metadata, the label
// chosen for naming, and the diagnostic trail.
type BannerInfo struct {
	DetectedGeometry

	// BannerName is the resolved human-readable label (reporting label,
	// metadata name, data attribute, or page title, in that order).
	BannerName string `json:"bannerName,omitempty"`

	Metadata CreativeMetadata `json:"metadata"`

	// IframeURLs lists nested-frame URLs collected during detection.
	// Cross-origin frames are unreadable in-page but navigable directly;
	// the orchestrator retries metadata extraction against these.
	IframeURLs []string `json:"iframeUrls,omitempty"`

	// Attempts is the ordered human-readable trail of detection attempts.
	// Diagnostic only; not required for correctness.
	Attempts []string `json:"attempts,omitempty"`

	// Optimization reports the codec outcome, filled by the orchestrator.
	Optimization *OptimizationInfo `json:"optimization,omitempty"`
}

// OptimizationInfo reports how the delivered image was encoded.
type OptimizationInfo struct {
	OriginalFormat string  `json:"original_format"`
	FinalFormat    string  `json:"final_format"`
	FinalQuality   int     `json:"final_quality"`
	FinalSizeKB    float64 `json:"final_size_kb"`
	SizeLimitKB    int     `json:"size_limit_kb"`
}

// TimelineFact describes one discovered animation timeline.
type TimelineFact struct {
	// Type identifies the handle: "Creative.tl", "global", or a named
	// global variable ("tl", "timeline", ...).
	Type string `json:"type"`

	// Duration is the timeline's total duration in seconds.
	Duration float64 `json:"duration"`

	// Progress is the current playback fraction in [0,1].
	Progress float64 `json:"progress"`

	// IsActive reports whether the timeline was playing at scan time.
	IsActive bool `json:"isActive"`

	// Source is the context the timeline was found in: "main-document"
	// or "iframe-N".
	Source string `json:"source"`
}

// Remaining returns the timeline's remaining run time in seconds.
func (t TimelineFact) Remaining() float64 {
	rem := t.Duration * (1 - t.Progress)
	if rem < 0 {
		return 0
	}
	return rem
}

// AnimationScan is the result of the in-page animation sweep across the
// main document and all reachable nested frames.
type AnimationScan struct {
	// Timelines lists every discovered timeline across all contexts.
	Timelines []TimelineFact `json:"timelines"`

	// MaxDuration is the largest CSS animation/transition or video
	// duration in seconds, when no timeline objects were found.
	MaxDuration float64 `json:"maxDuration"`

	// AnimationCount counts CSS animation/transition declarations seen.
	AnimationCount int `json:"animationCount"`

	HasCanvas bool `json:"hasCanvas"`
	HasVideo  bool `json:"hasVideo"`
}

// TimelineFound reports whether any timeline object was discovered.
func (s AnimationScan) TimelineFound() bool {
	return len(s.Timelines) > 0
}
