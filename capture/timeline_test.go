package capture

import (
	"testing"
	"time"

	"github.com/banner-tools/bannershot/config"
	"github.com/banner-tools/bannershot/models"
)

func testCaptureConfig() config.CaptureConfig {
	return config.CaptureConfig{
		EndFrameBuffer:   1300 * time.Millisecond,
		MaxAnimationWait: 30 * time.Second,
		StabilityTimeout: 5 * time.Second,
		StabilityQuiet:   500 * time.Millisecond,
	}
}

func TestResolveWaitRunningTimeline(t *testing.T) {
	scan := models.AnimationScan{
		Timelines: []models.TimelineFact{
			{Type: "Creative.tl", Duration: 5, Progress: 0.8, IsActive: true},
		},
	}

	// remaining = 5 * (1 - 0.8) = 1.0s, plus the settling buffer
	got := ResolveWait(scan, testCaptureConfig())
	want := 2300 * time.Millisecond
	if got != want {
		t.Errorf("wait = %v, want %v", got, want)
	}
}

func TestResolveWaitSlowestTimelineGates(t *testing.T) {
	scan := models.AnimationScan{
		Timelines: []models.TimelineFact{
			{Type: "Creative.tl", Duration: 2, Progress: 0.9, Source: "iframe-0"},
			{Type: "global", Duration: 10, Progress: 0.5, Source: "main-document"},
			{Type: "tl", Duration: 4, Progress: 1.0, Source: "iframe-1"},
		},
	}

	// the global timeline has 5s left; everything else is nearly done
	got := ResolveWait(scan, testCaptureConfig())
	want := 5*time.Second + 1300*time.Millisecond
	if got != want {
		t.Errorf("wait = %v, want %v", got, want)
	}
}

func TestResolveWaitFinishedTimelineGetsBufferOnly(t *testing.T) {
	scan := models.AnimationScan{
		Timelines: []models.TimelineFact{
			{Type: "Creative.tl", Duration: 5, Progress: 1.0},
		},
	}

	got := ResolveWait(scan, testCaptureConfig())
	if got != 1300*time.Millisecond {
		t.Errorf("wait = %v, want settling buffer only", got)
	}
}

func TestResolveWaitCapped(t *testing.T) {
	scan := models.AnimationScan{
		Timelines: []models.TimelineFact{
			{Type: "timeline", Duration: 300, Progress: 0},
		},
	}

	got := ResolveWait(scan, testCaptureConfig())
	if got != 30*time.Second {
		t.Errorf("wait = %v, want capped at 30s", got)
	}
}

func TestResolveWaitOverdriveProgressClampsToZero(t *testing.T) {
	scan := models.AnimationScan{
		Timelines: []models.TimelineFact{
			{Type: "tl", Duration: 5, Progress: 1.2},
		},
	}

	got := ResolveWait(scan, testCaptureConfig())
	if got != 1300*time.Millisecond {
		t.Errorf("wait = %v, want settling buffer only", got)
	}
}

func TestResolveFallbackWait(t *testing.T) {
	cfg := testCaptureConfig()
	defaultWait := 3 * time.Second

	cases := []struct {
		name string
		scan models.AnimationScan
		want time.Duration
	}{
		{
			name: "css duration plus slack",
			scan: models.AnimationScan{MaxDuration: 2.5},
			want: 3500 * time.Millisecond,
		},
		{
			name: "css duration capped",
			scan: models.AnimationScan{MaxDuration: 120},
			want: 30 * time.Second,
		},
		{
			name: "no signal uses default",
			scan: models.AnimationScan{},
			want: defaultWait,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveFallbackWait(tc.scan, defaultWait, cfg)
			if got != tc.want {
				t.Errorf("wait = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPlanEndFrameCanvasUsesStabilityBudget(t *testing.T) {
	cfg := testCaptureConfig()
	defaultWait := 3 * time.Second

	// Canvas without any duration signal polls for stability on the
	// monitor's own budget, not the fixed default wait.
	plan := planEndFrame(models.AnimationScan{HasCanvas: true}, defaultWait, cfg)
	if plan.strategy != waitStability {
		t.Fatalf("strategy = %v, want stability polling", plan.strategy)
	}
	if plan.wait != cfg.StabilityTimeout {
		t.Errorf("wait = %v, want the %v stability budget", plan.wait, cfg.StabilityTimeout)
	}

	plan = planEndFrame(models.AnimationScan{HasVideo: true}, defaultWait, cfg)
	if plan.strategy != waitStability || plan.wait != cfg.StabilityTimeout {
		t.Errorf("video plan = %+v, want stability with %v", plan, cfg.StabilityTimeout)
	}
}

func TestPlanEndFrameStrategyOrder(t *testing.T) {
	cfg := testCaptureConfig()
	defaultWait := 3 * time.Second

	cases := []struct {
		name string
		scan models.AnimationScan
		want waitStrategy
	}{
		{
			name: "timeline wins over everything",
			scan: models.AnimationScan{
				Timelines: []models.TimelineFact{{Type: "tl", Duration: 5}},
				HasCanvas: true,
			},
			want: waitTimeline,
		},
		{
			name: "css duration beats canvas",
			scan: models.AnimationScan{MaxDuration: 2, HasCanvas: true},
			want: waitCSSDuration,
		},
		{
			name: "animation signals without duration re-check",
			scan: models.AnimationScan{AnimationCount: 3},
			want: waitDynamic,
		},
		{
			name: "silence degrades to default",
			scan: models.AnimationScan{},
			want: waitDefault,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := planEndFrame(tc.scan, defaultWait, cfg)
			if plan.strategy != tc.want {
				t.Errorf("strategy = %v, want %v", plan.strategy, tc.want)
			}
		})
	}
}
