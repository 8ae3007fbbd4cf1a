package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Mode != "release" {
		t.Errorf("default mode = %q, want release", cfg.Server.Mode)
	}
	if cfg.Browser.PoolSize != 4 {
		t.Errorf("default pool size = %d, want 4", cfg.Browser.PoolSize)
	}
	if cfg.Browser.DeviceScaleFactor != 2.0 {
		t.Errorf("default device scale = %v, want 2.0", cfg.Browser.DeviceScaleFactor)
	}
	if cfg.Codec.MaxSizeKB != 39 {
		t.Errorf("default size budget = %d, want 39", cfg.Codec.MaxSizeKB)
	}
	if cfg.Capture.EndFrameBuffer != 1300*time.Millisecond {
		t.Errorf("default end-frame buffer = %v, want 1.3s", cfg.Capture.EndFrameBuffer)
	}
	if cfg.Capture.MinSide != 120 || cfg.Capture.MaxSide != 2000 {
		t.Errorf("default size envelope = [%d, %d], want [120, 2000]", cfg.Capture.MinSide, cfg.Capture.MaxSide)
	}
	if cfg.Auth.Enabled {
		t.Error("auth should be disabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BANNERSHOT_PORT", "9090")
	t.Setenv("BANNERSHOT_POOL_SIZE", "2")
	t.Setenv("BANNERSHOT_MAX_SIZE_KB", "50")
	t.Setenv("BANNERSHOT_MIN_QUALITY", "30")
	t.Setenv("BANNERSHOT_NAV_TIMEOUT", "45s")
	t.Setenv("BANNERSHOT_HEADLESS", "false")
	t.Setenv("BANNERSHOT_API_KEYS", "key-a, key-b,,key-c")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Browser.PoolSize != 2 {
		t.Errorf("pool size = %d, want 2", cfg.Browser.PoolSize)
	}
	if cfg.Codec.MaxSizeKB != 50 || cfg.Codec.MinQuality != 30 {
		t.Errorf("codec = %d KB / q%d, want 50 KB / q30", cfg.Codec.MaxSizeKB, cfg.Codec.MinQuality)
	}
	if cfg.Capture.NavigationTimeout != 45*time.Second {
		t.Errorf("nav timeout = %v, want 45s", cfg.Capture.NavigationTimeout)
	}
	if cfg.Browser.Headless {
		t.Error("headless should be disabled via env")
	}
	if len(cfg.Auth.APIKeys) != 3 || cfg.Auth.APIKeys[2] != "key-c" {
		t.Errorf("api keys = %v, want 3 trimmed keys", cfg.Auth.APIKeys)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BANNERSHOT_PORT", "not-a-number")
	t.Setenv("BANNERSHOT_SETTLE_DELAY", "soon")
	t.Setenv("BANNERSHOT_DEVICE_SCALE", "huge")

	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("malformed port should fall back, got %d", cfg.Server.Port)
	}
	if cfg.Capture.SettleDelay != 2*time.Second {
		t.Errorf("malformed duration should fall back, got %v", cfg.Capture.SettleDelay)
	}
	if cfg.Browser.DeviceScaleFactor != 2.0 {
		t.Errorf("malformed float should fall back, got %v", cfg.Browser.DeviceScaleFactor)
	}
}
