package capture

import (
	"log/slog"

	"github.com/banner-tools/bannershot/models"
	"github.com/go-rod/rod"
)

// detectScript runs inside the page and finds the creative's true pixel
// box plus any embedded metadata. It is read-only: computed styles and
// attributes only, no DOM mutation. It never throws; every probe that can
// fail is wrapped and reported through the attempts trail instead.
//
// Takes (minSide, maxSide), the plausible banner envelope in pixels.
const detectScript = `(minSide, maxSide) => {
	const attempts = [];
	const body = document.body;
	const html = document.documentElement;

	function inEnvelope(w, h) {
		return w >= minSide && h >= minSide && w < maxSide && h < maxSide;
	}

	function decodePayload(raw) {
		let decoded = decodeURIComponent(raw);
		if (decoded.includes('%')) {
			decoded = decodeURIComponent(decoded);
		}
		return JSON.parse(decoded);
	}

	function metadataFromDoc(doc, source) {
		const el = doc.querySelector('hoxton[data]');
		if (!el) return null;
		try {
			const data = decodePayload(el.getAttribute('data'));
			attempts.push('[' + source + '] parsed metadata payload, keys: ' +
				Object.keys(data).join(','));
			return {
				name: data.name || '',
				reportingLabel: data.reportingLabel || '',
				adType: data.adType || '',
				platform: data.platform || '',
				dataWidth: data.adSize ? parseInt(data.adSize.width) || 0 : 0,
				dataHeight: data.adSize ? parseInt(data.adSize.height) || 0 : 0,
				source: source
			};
		} catch (e) {
			attempts.push('[' + source + '] metadata parse error: ' + e.message);
			return null;
		}
	}

	// Metadata: main document first, then every reachable iframe. Iframe
	// src URLs are collected regardless so the caller can navigate into
	// cross-origin frames directly as a second pass.
	let metadata = metadataFromDoc(document, 'main-document');
	const iframeUrls = [];
	const iframes = document.querySelectorAll('iframe');
	for (let i = 0; i < iframes.length; i++) {
		if (iframes[i].src) iframeUrls.push(iframes[i].src);
		if (metadata) continue;
		try {
			const doc = iframes[i].contentDocument ||
				(iframes[i].contentWindow && iframes[i].contentWindow.document);
			if (doc) {
				metadata = metadataFromDoc(doc, 'iframe-' + i);
			} else {
				attempts.push('iframe ' + i + ' unreadable (cross-origin or not loaded)');
			}
		} catch (e) {
			attempts.push('iframe ' + i + ' access error: ' + e.message);
		}
	}
	if (!metadata) metadata = {};

	// Generic data attributes fill gaps the metadata payload left.
	function attr(sel, name) {
		const el = document.querySelector(sel);
		return el ? el.getAttribute(name) : null;
	}
	if (!metadata.dataWidth || !metadata.dataHeight) {
		const dw = attr('[data-width]', 'data-width');
		const dh = attr('[data-height]', 'data-height');
		if (dw && dh) {
			metadata.dataWidth = parseInt(dw) || 0;
			metadata.dataHeight = parseInt(dh) || 0;
		}
	}
	if (!metadata.adType) {
		metadata.adType = attr('[data-format]', 'data-format') ||
			attr('[data-type]', 'data-type') || '';
	}
	metadata.campaign = attr('[data-campaign]', 'data-campaign') || '';
	metadata.client = attr('[data-client]', 'data-client') || '';

	let dataName = '';
	for (const name of ['data-banner-name', 'data-creative-name', 'data-name']) {
		const v = attr('[' + name + ']', name);
		if (v) { dataName = v; break; }
	}

	// Candidate selectors, most specific banner containers first.
	const containers = [
		'#mainHolder', '#container', '#main', '#banner-container',
		'.creative-container', '.banner-frame', '.ad-frame',
		'[data-creative]', '[data-banner]',
		'canvas', '.banner', '#banner', '.ad', '#ad',
		'.creative', '#creative', '.container', 'main',
		'div[style*="width"]', 'div[style*="height"]',
		'.banner-wrap', '.ad-wrap', '.creative-wrap',
		'body > div:first-child', 'body > *:first-child'
	];

	const isSharingPlatform = window.location.hostname.includes('hoxton') ||
		!!document.querySelector('.creative-container, .banner-frame, [data-creative]');

	let width = 0;
	let height = 0;
	let detectionMethod = 'fallback';

	// Exact dimensions declared in metadata beat every heuristic.
	if (metadata.dataWidth && metadata.dataHeight) {
		width = metadata.dataWidth;
		height = metadata.dataHeight;
		detectionMethod = 'metadata adSize (exact)';
		attempts.push('using exact metadata dimensions ' + width + 'x' + height);
	}

	if (!width || !height) {
		for (const selector of containers) {
			const elements = document.querySelectorAll(selector);
			for (const element of elements) {
				const rect = element.getBoundingClientRect();
				if (rect.width <= 0 || rect.height <= 0) continue;

				const isBannerSelector = selector.includes('mainHolder') ||
					selector.includes('container') || selector.includes('banner') ||
					selector.includes('creative') || selector.includes('ad');

				if (isBannerSelector) {
					if (isSharingPlatform && inEnvelope(rect.width, rect.height)) {
						width = Math.ceil(rect.width);
						height = Math.ceil(rect.height);
						detectionMethod = selector + ' (banner platform priority)';
						break;
					} else if (!isSharingPlatform) {
						width = Math.ceil(rect.width);
						height = Math.ceil(rect.height);
						detectionMethod = selector + ' (banner container priority)';
						break;
					}
				}

				const style = window.getComputedStyle(element);
				const cssW = style.width;
				const cssH = style.height;
				const explicitCSS =
					(cssW && cssW !== 'auto' && !cssW.includes('%')) ||
					(cssH && cssH !== 'auto' && !cssH.includes('%'));

				if (explicitCSS && inEnvelope(rect.width, rect.height)) {
					width = Math.ceil(rect.width);
					height = Math.ceil(rect.height);
					detectionMethod = selector + ' (CSS dimensions)';
					break;
				}

				if (inEnvelope(rect.width, rect.height)) {
					width = Math.ceil(rect.width);
					height = Math.ceil(rect.height);
					detectionMethod = selector + ' (computed size)';
					break;
				}
			}
			if (width > 0 && height > 0) break;
		}
	}

	// Sharing platforms wrap the creative in chrome the selectors miss;
	// fall back to the first iframe box, then inline pixel styles.
	if ((!width || !height) && isSharingPlatform) {
		const iframe = document.querySelector('iframe');
		if (iframe) {
			const rect = iframe.getBoundingClientRect();
			if (rect.width > 0 && rect.height > 0 &&
				rect.width < maxSide && rect.height < maxSide) {
				width = Math.ceil(rect.width);
				height = Math.ceil(rect.height);
				detectionMethod = 'iframe content';
			}
		}
		if (!width || !height) {
			const styled = document.querySelectorAll('[style*="px"]');
			for (const el of styled) {
				const style = el.getAttribute('style');
				const wm = style.match(/width:\s*(\d+)px/);
				const hm = style.match(/height:\s*(\d+)px/);
				if (wm && hm) {
					const w = parseInt(wm[1]);
					const h = parseInt(hm[1]);
					if (inEnvelope(w, h)) {
						width = w;
						height = h;
						detectionMethod = 'inline style dimensions';
						break;
					}
				}
			}
		}
	}

	// Last resort: viewport/body/html intersection clamped into the
	// envelope. Never fails.
	if (!width || !height) {
		const vw = window.innerWidth;
		const vh = window.innerHeight;
		const bodyRect = body.getBoundingClientRect();
		const htmlRect = html.getBoundingClientRect();

		width = Math.min(vw, bodyRect.width || vw, htmlRect.width || vw);
		height = Math.min(vh, bodyRect.height || vh, htmlRect.height || vh);
		width = Math.max(minSide, Math.min(Math.ceil(width), maxSide));
		height = Math.max(minSide, Math.min(Math.ceil(height), maxSide));
		detectionMethod = 'viewport/body fallback';
	}

	return {
		width: width,
		height: height,
		detectionMethod: detectionMethod,
		viewportWidth: window.innerWidth,
		viewportHeight: window.innerHeight,
		bodyWidth: body.getBoundingClientRect().width,
		bodyHeight: body.getBoundingClientRect().height,
		isSharingPlatform: isSharingPlatform,
		hostname: window.location.hostname,
		metadata: metadata,
		iframeUrls: iframeUrls,
		attempts: attempts,
		dataName: dataName,
		pageTitle: document.title
	};
}`

// detectResult wraps BannerInfo with the raw naming signals the page
// reports; the label decision itself happens in Go (resolveBannerName).
type detectResult struct {
	models.BannerInfo
	DataName  string `json:"dataName"`
	PageTitle string `json:"pageTitle"`
}

// detectBanner runs the in-page dimension scan and resolves the banner
// label. Detection never fails the capture: an eval error degrades to an
// empty result and the caller's viewport fallback.
func detectBanner(page *rod.Page, minSide, maxSide int) *models.BannerInfo {
	var res detectResult
	if err := evalInto(page, detectScript, &res, minSide, maxSide); err != nil {
		slog.Warn("dimension detection failed, using fallback", "error", err)
		info := &models.BannerInfo{
			DetectedGeometry: models.DetectedGeometry{
				DetectionMethod: "viewport/body fallback",
			},
		}
		clampGeometry(info, minSide, maxSide)
		return info
	}

	info := res.BannerInfo
	info.BannerName = resolveBannerName(info.Metadata, res.DataName, res.PageTitle)
	clampGeometry(&info, minSide, maxSide)
	return &info
}

// clampGeometry bounds detected dimensions into the plausible envelope.
// Only heuristic geometry is clamped here; exact metadata sizes outside
// the envelope are rare but the capture viewport must stay sane either
// way. Caller-supplied request dimensions never pass through this.
func clampGeometry(info *models.BannerInfo, minSide, maxSide int) {
	info.Width = clamp(info.Width, minSide, maxSide)
	info.Height = clamp(info.Height, minSide, maxSide)
}
