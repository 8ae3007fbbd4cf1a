package capture

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/banner-tools/bannershot/models"
)

// NormalizeTargetURL validates a capture target and normalizes local paths
// into file:// URLs.
//
// Accepted forms: http(s) URLs, file:// URLs, and bare absolute filesystem
// paths. Local targets must exist on disk before a browser is spent on
// them. Anything else is rejected as invalid input.
func NormalizeTargetURL(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", models.NewCaptureError(
			models.ErrCodeInvalidInput, "url is empty", nil)
	}

	// Bare absolute path becomes a file URL.
	if filepath.IsAbs(target) && !strings.Contains(target, "://") {
		target = "file://" + filepath.ToSlash(target)
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", models.NewCaptureError(
			models.ErrCodeInvalidInput, "malformed url", err)
	}

	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return "", models.NewCaptureError(
				models.ErrCodeInvalidInput, "url has no host", nil)
		}
		return target, nil

	case "file":
		path := u.Path
		if path == "" {
			return "", models.NewCaptureError(
				models.ErrCodeInvalidInput, "file url has no path", nil)
		}
		if _, statErr := os.Stat(path); statErr != nil {
			return "", models.NewCaptureError(
				models.ErrCodeInvalidInput,
				fmt.Sprintf("local file not found: %s", path), statErr)
		}
		return target, nil

	default:
		return "", models.NewCaptureError(
			models.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported url scheme %q", u.Scheme), nil)
	}
}
