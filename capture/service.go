package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	_ "image/png"
	"log/slog"
	"time"

	"github.com/banner-tools/bannershot/browser"
	"github.com/banner-tools/bannershot/codec"
	"github.com/banner-tools/bannershot/config"
	"github.com/banner-tools/bannershot/models"
	"github.com/banner-tools/bannershot/preview"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// captureUserAgent pins a desktop Chrome identity so creatives serve their
// desktop variant regardless of the headless default UA.
const captureUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

// initialViewportWidth/Height size the page before detection runs; wide
// enough that no plausible banner gets clipped by its own viewport.
const (
	initialViewportWidth  = 1920
	initialViewportHeight = 1080
)

// minSettleBuffer is the floor on the end-frame settling pause.
const minSettleBuffer = 1200 * time.Millisecond

// stabilityFrameQuality keeps the stability-monitor sample frames cheap.
const stabilityFrameQuality = 20

// fontSmoothingScript injects a text-rendering hint so thin banner
// typography survives the lossy re-encode.
const fontSmoothingScript = `() => {
	const style = document.createElement('style');
	style.textContent = '* { -webkit-font-smoothing: antialiased; text-rendering: optimizeLegibility; }';
	document.head.appendChild(style);
	return true;
}`

// cssInitialStateScript counts running CSS animations/transitions and
// reports the longest declared duration in milliseconds.
const cssInitialStateScript = `() => {
	let activeAnimations = 0;
	let maxDurationMs = 0;
	const elements = document.querySelectorAll('*');
	for (const el of elements) {
		const style = window.getComputedStyle(el);
		const animDur = style.animationDuration;
		if (animDur && animDur !== '0s') {
			activeAnimations++;
			maxDurationMs = Math.max(maxDurationMs, (parseFloat(animDur) || 0) * 1000);
		}
		const transDur = style.transitionDuration;
		if (transDur && transDur !== '0s') {
			activeAnimations++;
			maxDurationMs = Math.max(maxDurationMs, (parseFloat(transDur) || 0) * 1000);
		}
	}
	return { activeAnimations: activeAnimations, maxDurationMs: maxDurationMs };
}`

// iframeMetadataScript reads the raw metadata attribute off a directly
// navigated creative page; decoding happens Go-side.
const iframeMetadataScript = `() => {
	const el = document.querySelector('hoxton[data]');
	return el ? el.getAttribute('data') : '';
}`

// MetadataProber is the static-fetch fast path for creative metadata,
// tried before navigating a browser page into an iframe URL.
type MetadataProber interface {
	FetchMetadata(ctx context.Context, url string) (models.CreativeMetadata, error)
}

// Service sequences captures end to end against pooled browser instances.
type Service struct {
	pool   *browser.Pool
	prober MetadataProber
	cfg    *config.Config
}

// NewService creates a capture service. prober may be nil, which disables
// the static metadata fast path.
func NewService(pool *browser.Pool, prober MetadataProber, cfg *config.Config) *Service {
	return &Service{pool: pool, prober: prober, cfg: cfg}
}

// Capture renders one banner page and returns its end-frame screenshot
// re-encoded under the byte budget.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Acquire instance       – pooled Chromium, or temporary on overflow
//  2. Create page            – fresh tab per capture
//  3. DEFER: cleanup         – close page + return instance, every exit path
//  4. Stealth injection      – optional, before navigation
//  5. Initial viewport       – oversized viewport + DPR, before navigation
//  6. Idle listener setup    – registered before Navigate to see all requests
//  7. Navigate + wait        – network idle, bounded by the navigation timeout
//  8. Settle delay           – fixed pause for late creative boot scripts
//  9. Detect                 – dimension scan + metadata + naming signals
//  10. Iframe second pass    – static probe, then direct navigation
//  11. Exact viewport        – target box + DPR, font smoothing hint
//  12. Animation wait        – timeline resolver or its fallback chain
//  13. End-frame confirm     – completion re-check + two-stage stability
//  14. Screenshot            – single clipped frame at the target box
//  15. Encode                – DPR normalize, then codec under the budget
//
// Steps 4-6 must precede step 7: stealth JS and the idle listener only
// cover navigations that start after they are installed.
func (s *Service) Capture(ctx context.Context, req *models.CaptureRequest) (*models.CaptureResponse, error) {
	req.Defaults()
	start := time.Now()

	target, err := NormalizeTargetURL(req.URL)
	if err != nil {
		return nil, err
	}
	req.URL = target

	// ── 1. Acquire instance ─────────────────────────────────────────
	inst, err := s.pool.Acquire()
	if err != nil {
		return nil, err
	}
	success := false
	defer func() { s.pool.Release(inst, success) }()

	// ── 2. Create page ──────────────────────────────────────────────
	page, err := inst.Browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash, "failed to create page", err)
	}

	// ── 3. CRITICAL DEFER: the page dies with the capture ───────────
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Debug("page close failed", "error", closeErr)
		}
	}()

	// ── 4. Stealth injection ────────────────────────────────────────
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr)
		}
	}

	// ── 5. Initial viewport + device scale ──────────────────────────
	preparePage(page)
	if err := setViewport(page, initialViewportWidth, initialViewportHeight, s.cfg.Browser.DeviceScaleFactor); err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash, "failed to set viewport", err)
	}

	// ── 6. Idle listener, then 7. Navigate ──────────────────────────
	navStart := time.Now()
	navCtx, navCancel := context.WithTimeout(ctx, s.cfg.Capture.NavigationTimeout)
	pNav := page.Context(navCtx)
	waitIdle := pNav.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)

	if navErr := pNav.Navigate(req.URL); navErr != nil {
		navCancel()
		return nil, categorizeError(navErr, "navigation to banner URL failed")
	}
	waitIdle()
	navCancel()

	p := page.Context(ctx)

	// ── 8. Settle delay ─────────────────────────────────────────────
	sleepCtx(ctx, s.cfg.Capture.SettleDelay)
	navDuration := time.Since(navStart)

	// ── 9. Detect dimensions and metadata ───────────────────────────
	// Detection always runs: even with caller-supplied dimensions the
	// metadata feeds naming and reporting.
	info := detectBanner(p, s.cfg.Capture.MinSide, s.cfg.Capture.MaxSide)

	width, height := s.targetBox(req, info)
	slog.Info("banner detected",
		"url", req.URL,
		"method", info.DetectionMethod,
		"width", width, "height", height,
		"name", info.BannerName)

	// ── 10. Iframe metadata second pass ─────────────────────────────
	// Cross-origin frames are unreadable in-page but navigable as
	// standalone pages.
	if info.Metadata.Empty() && len(info.IframeURLs) > 0 {
		s.resolveIframeMetadata(ctx, inst, info)
	}

	// ── 11. Exact viewport + text rendering hint ────────────────────
	if err := setViewport(p, width, height, s.cfg.Browser.DeviceScaleFactor); err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash, "failed to set capture viewport", err)
	}
	if _, evalErr := p.Eval(fontSmoothingScript); evalErr != nil {
		slog.Debug("font smoothing injection failed", "error", evalErr)
	}

	// ── 12. Animation wait ──────────────────────────────────────────
	animStart := time.Now()
	s.waitForEndFrame(ctx, p, req)

	// ── 13. End-frame confirmation ──────────────────────────────────
	s.confirmEndFrame(ctx, p)
	animDuration := time.Since(animStart)

	// ── 14. Clipped screenshot ──────────────────────────────────────
	raw, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X: 0, Y: 0,
			Width:  float64(width),
			Height: float64(height),
			Scale:  1,
		},
	})
	if err != nil {
		return nil, categorizeError(err, "screenshot capture failed")
	}

	// ── 15. Normalize and encode ────────────────────────────────────
	encStart := time.Now()
	imageData, format, optimization := s.encode(raw, width, height)
	info.Optimization = optimization

	filename := req.Filename
	if filename == "" {
		filename = BuildFilename(info, req.Format, -1)
	}

	success = true
	return &models.CaptureResponse{
		Success:            true,
		ImageData:          imageData,
		Format:             format,
		Dimensions:         &models.Dimensions{Width: width, Height: height},
		DetectedDimensions: info,
		Filename:           filename,
		URL:                req.URL,
		Timing: models.TimingInfo{
			TotalMs:      time.Since(start).Milliseconds(),
			NavigationMs: navDuration.Milliseconds(),
			AnimationMs:  animDuration.Milliseconds(),
			EncodingMs:   time.Since(encStart).Milliseconds(),
		},
	}, nil
}

// DetectDimensions runs only the navigation and detection stages, for the
// diagnostic endpoint. Same heuristics as the capture path, no screenshot.
func (s *Service) DetectDimensions(ctx context.Context, targetURL string) (*models.BannerInfo, error) {
	targetURL, err := NormalizeTargetURL(targetURL)
	if err != nil {
		return nil, err
	}

	inst, err := s.pool.Acquire()
	if err != nil {
		return nil, err
	}
	success := false
	defer func() { s.pool.Release(inst, success) }()

	page, err := inst.Browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash, "failed to create page", err)
	}
	defer func() { _ = page.Close() }()

	preparePage(page)
	if err := setViewport(page, initialViewportWidth, initialViewportHeight, s.cfg.Browser.DeviceScaleFactor); err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash, "failed to set viewport", err)
	}

	navCtx, navCancel := context.WithTimeout(ctx, s.cfg.Capture.NavigationTimeout)
	defer navCancel()
	pNav := page.Context(navCtx)
	waitIdle := pNav.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	if navErr := pNav.Navigate(targetURL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to banner URL failed")
	}
	waitIdle()

	p := page.Context(ctx)
	sleepCtx(ctx, s.cfg.Capture.SettleDelay)

	info := detectBanner(p, s.cfg.Capture.MinSide, s.cfg.Capture.MaxSide)
	if info.Metadata.Empty() && len(info.IframeURLs) > 0 {
		s.resolveIframeMetadata(ctx, inst, info)
	}

	success = true
	return info, nil
}

// ScanPreview renders a share/preview page and returns the banner
// candidates found in it. The page is fully rendered first so client-side
// galleries populate their frames before the markup is scanned.
func (s *Service) ScanPreview(ctx context.Context, targetURL string) (*preview.Result, error) {
	targetURL, err := NormalizeTargetURL(targetURL)
	if err != nil {
		return nil, err
	}

	inst, err := s.pool.Acquire()
	if err != nil {
		return nil, err
	}
	success := false
	defer func() { s.pool.Release(inst, success) }()

	page, err := inst.Browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeBrowserCrash, "failed to create page", err)
	}
	defer func() { _ = page.Close() }()

	preparePage(page)
	navCtx, navCancel := context.WithTimeout(ctx, s.cfg.Capture.NavigationTimeout)
	defer navCancel()
	pNav := page.Context(navCtx)
	waitIdle := pNav.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	if navErr := pNav.Navigate(targetURL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to preview URL failed")
	}
	waitIdle()

	p := page.Context(ctx)
	sleepCtx(ctx, s.cfg.Capture.SettleDelay)

	rendered, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to read preview page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = targetURL
	}

	result, err := preview.Scan([]byte(rendered), finalURL)
	if err != nil {
		return nil, models.NewCaptureError(
			models.ErrCodeInternal, "failed to parse preview page", err)
	}

	success = true
	return result, nil
}

// targetBox resolves the capture dimensions. Caller-supplied values are
// used verbatim: the request validator already bounds them, and only
// heuristic geometry belongs inside the detection envelope (detectBanner
// clamps it before it gets here).
func (s *Service) targetBox(req *models.CaptureRequest, info *models.BannerInfo) (int, int) {
	width := info.Width
	height := info.Height
	if req.Width != nil {
		width = *req.Width
	}
	if req.Height != nil {
		height = *req.Height
	}
	return width, height
}

// resolveIframeMetadata retries metadata extraction against each iframe
// URL collected during detection. The static probe goes first; a direct
// browser navigation is the fallback. First hit wins. Always best-effort:
// failures leave the metadata empty rather than failing the capture.
func (s *Service) resolveIframeMetadata(ctx context.Context, inst *browser.Instance, info *models.BannerInfo) {
	for _, iframeURL := range info.IframeURLs {
		if s.prober != nil {
			if meta, err := s.prober.FetchMetadata(ctx, iframeURL); err == nil {
				s.applyIframeMetadata(info, meta)
				return
			}
		}

		meta, err := s.extractFromIframePage(ctx, inst, iframeURL)
		if err != nil {
			slog.Debug("iframe metadata extraction failed",
				"iframeURL", iframeURL, "error", err)
			continue
		}
		s.applyIframeMetadata(info, meta)
		return
	}
}

func (s *Service) applyIframeMetadata(info *models.BannerInfo, meta models.CreativeMetadata) {
	info.Metadata = meta
	if name := PickLabel(meta); name != "" {
		info.BannerName = name
	}
	if meta.DataWidth > 0 && meta.DataHeight > 0 {
		info.Width = meta.DataWidth
		info.Height = meta.DataHeight
		info.DetectionMethod = "metadata adSize (iframe navigation)"
	}
	slog.Info("iframe metadata resolved",
		"source", meta.Source, "name", info.BannerName)
}

// extractFromIframePage opens the iframe URL as a standalone page and
// reads the metadata carrier there.
func (s *Service) extractFromIframePage(ctx context.Context, inst *browser.Instance, iframeURL string) (models.CreativeMetadata, error) {
	page, err := inst.Browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return models.CreativeMetadata{}, err
	}
	defer func() { _ = page.Close() }()

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.Capture.NavigationTimeout)
	defer cancel()
	p := page.Context(navCtx)

	waitIdle := p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	if err := p.Navigate(iframeURL); err != nil {
		return models.CreativeMetadata{}, err
	}
	waitIdle()
	sleepCtx(navCtx, s.cfg.Capture.SettleDelay)

	raw := evalStringOrEmpty(p, iframeMetadataScript)
	if raw == "" {
		return models.CreativeMetadata{}, errors.New("no metadata carrier on iframe page")
	}
	return DecodeMetadataPayload(raw, "iframe-url")
}

// waitForEndFrame runs the animation resolver and its fallback chain.
func (s *Service) waitForEndFrame(ctx context.Context, p *rod.Page, req *models.CaptureRequest) {
	scan := scanAnimations(p)
	defaultWait := time.Duration(req.WaitTime) * time.Second
	plan := planEndFrame(scan, defaultWait, s.cfg.Capture)

	switch plan.strategy {
	case waitTimeline:
		slog.Info("timeline detected",
			"timelines", len(scan.Timelines), "wait", plan.wait)
		sleepCtx(ctx, plan.wait)

		// Single pass: the post-wait state is reported, never re-waited
		// on, so the worst case stays bounded.
		for _, state := range verifyTimelines(p) {
			slog.Debug("timeline state after wait",
				"type", state.Type, "source", state.Source,
				"progress", state.Progress, "active", state.IsActive)
		}

	case waitCSSDuration:
		slog.Info("css/video animation detected",
			"duration", scan.MaxDuration, "wait", plan.wait)
		sleepCtx(ctx, plan.wait)

	case waitStability:
		slog.Info("canvas/video content, polling frame stability")
		waitForStability(ctx, s.frameSampler(p),
			plan.wait, s.cfg.Capture.StabilityQuiet)

	case waitDynamic:
		slog.Info("animation signals without duration, dynamic re-check")
		s.waitForAnimationCompletion(ctx, p, plan.wait)

	default:
		slog.Info("no animation signal, default wait", "wait", plan.wait)
		sleepCtx(ctx, plan.wait)
	}
}

// waitForAnimationCompletion handles animation signals with no computable
// duration: read the declared CSS durations, wait them out, then report
// whether anything is still running.
func (s *Service) waitForAnimationCompletion(ctx context.Context, p *rod.Page, timeout time.Duration) {
	var state struct {
		ActiveAnimations int     `json:"activeAnimations"`
		MaxDurationMs    float64 `json:"maxDurationMs"`
	}
	if err := evalInto(p, cssInitialStateScript, &state); err != nil || state.ActiveAnimations == 0 {
		return
	}

	wait := time.Duration(state.MaxDurationMs)*time.Millisecond + 2*time.Second
	if wait > timeout {
		wait = timeout
	}
	sleepCtx(ctx, wait)

	if res, err := p.Eval(cssAnimationStateScript); err == nil {
		if running := res.Value.Int(); running > 0 {
			slog.Debug("animations still running after wait", "count", running)
		}
	}
}

// confirmEndFrame is the final gate before the screenshot: re-check
// animation completion, require frame stability, pause for the settling
// buffer, then take a short confirmatory stability pass.
func (s *Service) confirmEndFrame(ctx context.Context, p *rod.Page) {
	s.waitForAnimationCompletion(ctx, p, s.cfg.Capture.MaxAnimationWait)

	frame := s.frameSampler(p)
	stable := waitForStability(ctx, frame,
		s.cfg.Capture.StabilityTimeout, s.cfg.Capture.StabilityQuiet)

	sleepCtx(ctx, minSettleBuffer)

	finalStable := waitForStability(ctx, frame,
		2*time.Second, 300*time.Millisecond)
	slog.Debug("end frame confirmation",
		"stable", stable, "finalStable", finalStable)
}

// frameSampler returns a cheap low-quality frame source for the
// stability monitor.
func (s *Service) frameSampler(p *rod.Page) frameFunc {
	quality := stabilityFrameQuality
	return func() ([]byte, error) {
		return p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format:  proto.PageCaptureScreenshotFormatJpeg,
			Quality: &quality,
		})
	}
}

// encode normalizes device pixels and fits the screenshot under the byte
// budget. A codec failure falls back to the original lossless bytes with
// the format tag adjusted, per the degraded-success policy.
func (s *Service) encode(raw []byte, width, height int) (string, string, *models.OptimizationInfo) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		slog.Error("screenshot decode failed, returning lossless bytes", "error", err)
		return base64.StdEncoding.EncodeToString(raw), "png", nil
	}

	img = codec.Normalize2x(img, width, height)

	result, err := codec.EncodeUnderBudget(img, s.cfg.Codec)
	if err != nil {
		slog.Error("encoding failed, returning lossless bytes", "error", err)
		return base64.StdEncoding.EncodeToString(raw), "png", nil
	}
	if result.OverBudget {
		slog.Warn("byte budget unreachable, returning smallest encoding",
			"sizeKB", result.SizeKB)
	}

	return base64.StdEncoding.EncodeToString(result.Data), "jpeg", &models.OptimizationInfo{
		OriginalFormat: "png",
		FinalFormat:    "jpeg",
		FinalQuality:   result.Quality,
		FinalSizeKB:    result.SizeKB,
		SizeLimitKB:    s.cfg.Codec.MaxSizeKB,
	}
}

// preparePage pins the UA and request headers before navigation. Best
// effort: a failed override still renders, just with the headless identity.
func preparePage(p *rod.Page) {
	if err := (proto.NetworkSetUserAgentOverride{UserAgent: captureUserAgent}).Call(p); err != nil {
		slog.Debug("user agent override failed", "error", err)
	}
	headers := proto.NetworkHeaders{
		"Accept-Language": gson.New("en-US,en;q=0.9"),
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: headers}).Call(p); err != nil {
		slog.Debug("extra headers failed", "error", err)
	}
}

func setViewport(p *rod.Page, width, height int, scale float64) error {
	return proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: scale,
		Mobile:            false,
	}.Call(p)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// categorizeError maps low-level failures onto the capture error codes.
func categorizeError(err error, msg string) *models.CaptureError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCaptureError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewCaptureError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewCaptureError(models.ErrCodeNavigation, msg, err)
	}
}
