package capture

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/banner-tools/bannershot/models"
)

const maxNameLength = 60

var (
	extensionRe  = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif|svg|webp)$`)
	invisibleRe  = regexp.MustCompile("[\u200b\u200c\u200d\ufeff]")
	unsafeRe     = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	underscoreRe = regexp.MustCompile(`_+`)
	filenameRe   = regexp.MustCompile(`[^\w\-_.]`)
)

// BuildFilename derives a download filename for a capture.
//
// Name priority: reporting label, metadata name, detected banner name.
// Dimensions, platform, ad type and hostname are appended when they add
// information the name lacks. With no usable name at all the result is a
// timestamped fallback. The output is sanitized to a safe ASCII subset
// and bounded in length.
func BuildFilename(info *models.BannerInfo, format string, index int) string {
	name := PickLabel(info.Metadata)
	if name == "" {
		name = strings.TrimSpace(info.BannerName)
	}
	name = sanitizeName(name)

	var parts []string
	if name != "" {
		parts = append(parts, name)
	}

	if info.Width > 0 && info.Height > 0 {
		dims := fmt.Sprintf("%dx%d", info.Width, info.Height)
		if !strings.Contains(name, dims) {
			parts = append(parts, dims)
		}
	}

	lower := strings.ToLower(name)
	if p := strings.ToLower(info.Metadata.Platform); p != "" && p != "web" && p != "html5" && !strings.Contains(lower, p) {
		parts = append(parts, p)
	}
	if t := strings.ToLower(info.Metadata.AdType); t != "" && t != "banner" && t != "display" && !strings.Contains(lower, t) {
		parts = append(parts, t)
	}
	if d := domainPart(info.Hostname); d != "" && !strings.Contains(lower, d) {
		parts = append(parts, d)
	}

	if index >= 0 {
		parts = append(parts, fmt.Sprintf("%02d", index+1))
	}

	base := strings.Join(parts, "_")
	if base == "" {
		base = "banner_" + time.Now().Format("20060102_150405")
	}

	base = underscoreRe.ReplaceAllString(base, "_")
	base = filenameRe.ReplaceAllString(invisibleRe.ReplaceAllString(base, ""), "")
	base = strings.Trim(base, "_.")
	if base == "" {
		base = "banner_" + time.Now().Format("20060102_150405")
	}

	return base + "." + normalizeExtension(format)
}

// sanitizeName reduces a raw label to safe filename characters.
func sanitizeName(name string) string {
	if name == "" {
		return ""
	}
	name = extensionRe.ReplaceAllString(name, "")
	name = invisibleRe.ReplaceAllString(name, "")
	name = strings.Map(func(r rune) rune {
		if r > 127 {
			return -1
		}
		return r
	}, name)
	name = unsafeRe.ReplaceAllString(name, "_")
	name = whitespaceRe.ReplaceAllString(name, "_")
	name = underscoreRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return name
}

// domainPart extracts the leading domain label for filename enrichment,
// skipping hosts that add no information.
func domainPart(hostname string) string {
	if hostname == "" {
		return ""
	}
	host := strings.TrimPrefix(hostname, "www.")
	part := strings.ToLower(strings.SplitN(host, ".", 2)[0])
	if part == "" || part == "banner" || part == "hoxton" {
		return ""
	}
	return part
}

// normalizeExtension maps a requested format to a file extension.
func normalizeExtension(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "jpg"
	case "webp":
		return "webp"
	default:
		return "png"
	}
}

// CleanZipName normalizes a caller-supplied filename for use inside a
// ZIP archive.
func CleanZipName(filename string) string {
	if filename == "" {
		return "banner.png"
	}
	name := invisibleRe.ReplaceAllString(filename, "")
	name = strings.Map(func(r rune) rune {
		if r > 127 {
			return -1
		}
		return r
	}, name)
	name = unsafeRe.ReplaceAllString(name, "_")
	name = whitespaceRe.ReplaceAllString(name, "_")
	name = underscoreRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_.")
	if name == "" || name == "." {
		return "banner.png"
	}
	if !strings.Contains(name, ".") {
		name += ".png"
	}
	return name
}
