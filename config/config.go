package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Capture   CaptureConfig
	Codec     CodecConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instances.
type BrowserConfig struct {
	// Headless controls whether browsers run headless.
	Headless bool // default: true

	// PoolSize is the number of pooled browser instances. Requests beyond
	// the pool get a temporary instance instead of queuing.
	PoolSize int // default: 4

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// DeviceScaleFactor renders at a higher pixel density for crisp text.
	// Captures are downsampled back to logical dimensions before encoding.
	DeviceScaleFactor float64 // default: 2.0
}

// CaptureConfig controls the capture pipeline timing and detection envelope.
type CaptureConfig struct {
	// NavigationTimeout is the max time for navigation + network idle.
	NavigationTimeout time.Duration // default: 30s

	// SettleDelay is the fixed wait after navigation before detection runs,
	// giving custom elements and dynamic content time to attach.
	SettleDelay time.Duration // default: 2s

	// DefaultWait is the fallback wait when no animation signal is found.
	DefaultWait time.Duration // default: 3s

	// MaxAnimationWait caps any computed animation wait.
	MaxAnimationWait time.Duration // default: 30s

	// EndFrameBuffer is the settling buffer added after computed readiness
	// to absorb nested-frame rendering lag.
	EndFrameBuffer time.Duration // default: 1300ms

	// StabilityTimeout bounds the frame stability polling loop.
	StabilityTimeout time.Duration // default: 5s

	// StabilityQuiet is the quiet period required to declare frames stable.
	StabilityQuiet time.Duration // default: 500ms

	// MinSide and MaxSide bound the plausible banner size envelope.
	// Detected boxes outside [MinSide, MaxSide] on either axis are rejected.
	MinSide int // default: 120
	MaxSide int // default: 2000
}

// CodecConfig is the size-budget encoding policy.
//
// The defaults are the strict text-preserving profile (39KB ceiling,
// quality floor 60). The generic profile (50KB ceiling, lower floor) is a
// config change, not a separate code path.
type CodecConfig struct {
	// MaxSizeKB is the output byte ceiling in kilobytes.
	MaxSizeKB int // default: 39

	// MinQuality / MaxQuality bound the primary descending quality search.
	MinQuality int // default: 60
	MaxQuality int // default: 95

	// EmergencyMaxQuality / EmergencyMinQuality bound the narrower band
	// tried when the primary search cannot meet the ceiling.
	EmergencyMaxQuality int // default: 50
	EmergencyMinQuality int // default: 25

	// MinScale is the linear downscale floor for the last-resort resize loop.
	MinScale float64 // default: 0.5
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CacheConfig controls the capture response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 200
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("BANNERSHOT_HOST", "0.0.0.0"),
			Port: envIntOr("BANNERSHOT_PORT", 8080),
			Mode: envOr("BANNERSHOT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:          envBoolOr("BANNERSHOT_HEADLESS", true),
			PoolSize:          envIntOr("BANNERSHOT_POOL_SIZE", 4),
			NoSandbox:         envBoolOr("BANNERSHOT_NO_SANDBOX", false),
			BrowserBin:        os.Getenv("BANNERSHOT_BROWSER_BIN"),
			DeviceScaleFactor: envFloatOr("BANNERSHOT_DEVICE_SCALE", 2.0),
		},
		Capture: CaptureConfig{
			NavigationTimeout: envDurationOr("BANNERSHOT_NAV_TIMEOUT", 30*time.Second),
			SettleDelay:       envDurationOr("BANNERSHOT_SETTLE_DELAY", 2*time.Second),
			DefaultWait:       envDurationOr("BANNERSHOT_DEFAULT_WAIT", 3*time.Second),
			MaxAnimationWait:  envDurationOr("BANNERSHOT_MAX_ANIMATION_WAIT", 30*time.Second),
			EndFrameBuffer:    envDurationOr("BANNERSHOT_END_FRAME_BUFFER", 1300*time.Millisecond),
			StabilityTimeout:  envDurationOr("BANNERSHOT_STABILITY_TIMEOUT", 5*time.Second),
			StabilityQuiet:    envDurationOr("BANNERSHOT_STABILITY_QUIET", 500*time.Millisecond),
			MinSide:           envIntOr("BANNERSHOT_MIN_SIDE", 120),
			MaxSide:           envIntOr("BANNERSHOT_MAX_SIDE", 2000),
		},
		Codec: CodecConfig{
			MaxSizeKB:           envIntOr("BANNERSHOT_MAX_SIZE_KB", 39),
			MinQuality:          envIntOr("BANNERSHOT_MIN_QUALITY", 60),
			MaxQuality:          envIntOr("BANNERSHOT_MAX_QUALITY", 95),
			EmergencyMaxQuality: envIntOr("BANNERSHOT_EMERGENCY_MAX_QUALITY", 50),
			EmergencyMinQuality: envIntOr("BANNERSHOT_EMERGENCY_MIN_QUALITY", 25),
			MinScale:            envFloatOr("BANNERSHOT_MIN_SCALE", 0.5),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("BANNERSHOT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("BANNERSHOT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("BANNERSHOT_RATE_RPS", 5.0),
			Burst:             envIntOr("BANNERSHOT_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("BANNERSHOT_CACHE_MAX_ENTRIES", 200),
		},
		Log: LogConfig{
			Level:  envOr("BANNERSHOT_LOG_LEVEL", "info"),
			Format: envOr("BANNERSHOT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
