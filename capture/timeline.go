package capture

import (
	"math"
	"time"

	"github.com/banner-tools/bannershot/config"
	"github.com/banner-tools/bannershot/models"
	"github.com/go-rod/rod"
)

// animScanScript sweeps the main document and every reachable iframe for
// animation timeline objects. Discovery is exhaustive: multiple timelines
// can run simultaneously across frames and the slowest one gates
// readiness. Probe order inside each context:
//
//  1. Creative.tl, the dominant handle in the target creative family
//  2. gsap.globalTimeline
//  3. a fixed set of conventional global variable names
//
// CSS animation/transition and video durations are collected only when no
// timeline object exists anywhere. Never throws; frame access errors are
// swallowed per frame.
const animScanScript = `() => {
	let maxDuration = 0;
	let animationCount = 0;
	const timelines = [];

	function scanContext(doc, source) {
		const win = doc.defaultView;
		if (!win) return;
		const gsapLib = win.gsap;
		const Creative = win.Creative;
		if (!gsapLib && !Creative) return;

		function push(type, handle) {
			try {
				const durFn = handle.totalDuration || handle.duration;
				if (typeof durFn !== 'function') return;
				const duration = durFn.call(handle);
				if (!duration || duration <= 0) return;
				const progress = handle.progress ? handle.progress() : 0;
				timelines.push({
					type: type,
					duration: duration,
					progress: progress,
					isActive: handle.isActive ? handle.isActive() : false,
					source: source
				});
			} catch (e) { /* handle not queryable in this context */ }
		}

		if (Creative && Creative.tl) push('Creative.tl', Creative.tl);
		if (gsapLib && gsapLib.globalTimeline) push('global', gsapLib.globalTimeline);

		const names = ['tl', 'timeline', 'mainTimeline', 'masterTimeline', 'bannerTimeline'];
		for (const name of names) {
			try {
				const handle = win[name];
				if (handle && typeof handle.totalDuration === 'function') {
					push(name, handle);
				}
			} catch (e) { /* cross-origin window property */ }
		}
	}

	scanContext(document, 'main-document');

	const iframes = document.querySelectorAll('iframe');
	for (let i = 0; i < iframes.length; i++) {
		try {
			const doc = iframes[i].contentDocument ||
				(iframes[i].contentWindow && iframes[i].contentWindow.document);
			if (doc) scanContext(doc, 'iframe-' + i);
		} catch (e) { /* cross-origin frame */ }
	}

	animationCount = timelines.length;

	// CSS sweep only matters when no timeline object was found.
	if (timelines.length === 0) {
		const elements = document.querySelectorAll('*');
		for (const el of elements) {
			const style = window.getComputedStyle(el);
			const animName = style.getPropertyValue('animation-name');
			const animDur = style.getPropertyValue('animation-duration');
			if (animName !== 'none' && animDur !== '0s') {
				animationCount++;
				const duration = parseFloat(animDur) || 0;
				const iterRaw = style.getPropertyValue('animation-iteration-count');
				const iterations = iterRaw === 'infinite' ? 1 : (parseFloat(iterRaw) || 1);
				maxDuration = Math.max(maxDuration, duration * iterations);
			}
			const transDur = style.getPropertyValue('transition-duration');
			if (transDur !== '0s') {
				maxDuration = Math.max(maxDuration, parseFloat(transDur) || 0);
			}
		}
	}

	const videos = document.querySelectorAll('video');
	for (const video of videos) {
		if (video.duration && !isNaN(video.duration)) {
			maxDuration = Math.max(maxDuration, video.duration);
		}
	}

	return {
		timelines: timelines,
		maxDuration: maxDuration,
		animationCount: animationCount,
		hasCanvas: document.querySelectorAll('canvas').length > 0,
		hasVideo: videos.length > 0
	};
}`

// verifyScript re-queries timeline progress after the wait. Diagnostic
// only: the result is logged, never waited on again, so worst-case
// latency stays bounded.
const verifyScript = `() => {
	const states = [];

	function check(doc, source) {
		const win = doc.defaultView;
		if (!win) return;
		const Creative = win.Creative;
		const gsapLib = win.gsap;
		try {
			if (Creative && Creative.tl && typeof Creative.tl.progress === 'function') {
				states.push({
					type: 'Creative.tl',
					source: source,
					progress: Creative.tl.progress(),
					isActive: Creative.tl.isActive ? Creative.tl.isActive() : false
				});
			}
		} catch (e) { /* unreadable */ }
		try {
			if (gsapLib && gsapLib.globalTimeline) {
				states.push({
					type: 'global',
					source: source,
					progress: gsapLib.globalTimeline.progress(),
					isActive: gsapLib.globalTimeline.isActive()
				});
			}
		} catch (e) { /* unreadable */ }
	}

	check(document, 'main-document');
	const iframes = document.querySelectorAll('iframe');
	for (let i = 0; i < iframes.length; i++) {
		try {
			const doc = iframes[i].contentDocument ||
				(iframes[i].contentWindow && iframes[i].contentWindow.document);
			if (doc) check(doc, 'iframe-' + i);
		} catch (e) { /* cross-origin frame */ }
	}
	return states;
}`

// cssAnimationStateScript reports whether any CSS animation is still
// running, used by the dynamic re-check fallback.
const cssAnimationStateScript = `() => {
	let running = 0;
	const elements = document.querySelectorAll('*');
	for (const el of elements) {
		if (window.getComputedStyle(el).animationPlayState === 'running') {
			running++;
		}
	}
	return running;
}`

// remainingEpsilon is the progress slack below which a timeline counts as
// finished.
const remainingEpsilon = 0.1

// ResolveWait computes the sleep that lands all discovered timelines on
// their end frame.
//
// The decision variable is the maximum remaining run time across every
// timeline. When that exceeds a small epsilon the wait is remaining plus
// the settling buffer, capped at the configured maximum; otherwise only
// the buffer, which covers nested-frame rendering settling.
func ResolveWait(scan models.AnimationScan, cfg config.CaptureConfig) time.Duration {
	var maxRemaining float64
	for _, tl := range scan.Timelines {
		if rem := tl.Remaining(); rem > maxRemaining {
			maxRemaining = rem
		}
	}

	if maxRemaining <= remainingEpsilon {
		return cfg.EndFrameBuffer
	}

	wait := durationSeconds(maxRemaining) + cfg.EndFrameBuffer
	if wait > cfg.MaxAnimationWait {
		wait = cfg.MaxAnimationWait
	}
	return wait
}

// ResolveFallbackWait computes the wait when no timeline object exists.
// CSS/video durations get one extra second of slack; the absence of any
// signal degrades to the caller-supplied default.
func ResolveFallbackWait(scan models.AnimationScan, defaultWait time.Duration, cfg config.CaptureConfig) time.Duration {
	if scan.MaxDuration > 0 {
		wait := durationSeconds(scan.MaxDuration + 1)
		if wait > cfg.MaxAnimationWait {
			wait = cfg.MaxAnimationWait
		}
		return wait
	}
	return defaultWait
}

// waitStrategy selects how the orchestrator rides out animations.
type waitStrategy int

const (
	waitTimeline waitStrategy = iota
	waitCSSDuration
	waitStability
	waitDynamic
	waitDefault
)

// endFramePlan is the resolved wait decision for one capture.
type endFramePlan struct {
	strategy waitStrategy
	wait     time.Duration
}

// planEndFrame picks the wait strategy from the animation scan. Timeline
// objects dominate; declared CSS/video durations come next; canvas or
// video without a duration hands over to the stability monitor with its
// own configured budget; bare animation signals trigger a dynamic
// re-check; and silence degrades to the caller's default wait.
func planEndFrame(scan models.AnimationScan, defaultWait time.Duration, cfg config.CaptureConfig) endFramePlan {
	switch {
	case scan.TimelineFound():
		return endFramePlan{strategy: waitTimeline, wait: ResolveWait(scan, cfg)}
	case scan.MaxDuration > 0:
		return endFramePlan{strategy: waitCSSDuration, wait: ResolveFallbackWait(scan, defaultWait, cfg)}
	case scan.HasCanvas || scan.HasVideo:
		return endFramePlan{strategy: waitStability, wait: cfg.StabilityTimeout}
	case scan.AnimationCount > 0:
		return endFramePlan{strategy: waitDynamic, wait: defaultWait}
	default:
		return endFramePlan{strategy: waitDefault, wait: defaultWait}
	}
}

// durationSeconds converts fractional seconds to a Duration with
// millisecond rounding, so float noise from in-page progress values does
// not leak into wait times.
func durationSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}

// scanAnimations runs the in-page animation sweep. A failed eval returns
// an empty scan, which downgrades the wait strategy instead of failing
// the capture.
func scanAnimations(page *rod.Page) models.AnimationScan {
	var scan models.AnimationScan
	if err := evalInto(page, animScanScript, &scan); err != nil {
		return models.AnimationScan{}
	}
	return scan
}

// verifyTimelines re-queries timeline state post-wait for logging.
func verifyTimelines(page *rod.Page) []models.TimelineFact {
	var states []models.TimelineFact
	if err := evalInto(page, verifyScript, &states); err != nil {
		return nil
	}
	return states
}
