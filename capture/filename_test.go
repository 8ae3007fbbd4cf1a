package capture

import (
	"strings"
	"testing"

	"github.com/banner-tools/bannershot/models"
)

func TestBuildFilenameFromReportingLabel(t *testing.T) {
	info := &models.BannerInfo{
		DetectedGeometry: models.DetectedGeometry{Width: 300, Height: 250},
		Metadata: models.CreativeMetadata{
			ReportingLabel: "Acme Spring Sale",
			Platform:       "web",
			AdType:         "display",
		},
	}

	got := BuildFilename(info, "jpg", -1)
	if got != "Acme_Spring_Sale_300x250.jpg" {
		t.Errorf("filename = %q", got)
	}
}

func TestBuildFilenameBatchIndex(t *testing.T) {
	info := &models.BannerInfo{
		DetectedGeometry: models.DetectedGeometry{Width: 728, Height: 90},
		BannerName:       "leaderboard",
	}

	got := BuildFilename(info, "png", 2)
	if got != "leaderboard_728x90_03.png" {
		t.Errorf("filename = %q", got)
	}
}

func TestBuildFilenameStripsUnsafeCharacters(t *testing.T) {
	info := &models.BannerInfo{
		BannerName: `bad/name:with*chars?.png`,
	}

	got := BuildFilename(info, "jpeg", -1)
	if strings.ContainsAny(got, `<>:"/\|?*`) {
		t.Errorf("unsafe characters survive: %q", got)
	}
	if !strings.HasSuffix(got, ".jpg") {
		t.Errorf("jpeg should map to .jpg: %q", got)
	}
}

func TestBuildFilenameTimestampFallback(t *testing.T) {
	got := BuildFilename(&models.BannerInfo{}, "png", -1)
	if !strings.HasPrefix(got, "banner_") || !strings.HasSuffix(got, ".png") {
		t.Errorf("fallback filename = %q", got)
	}
}

func TestBuildFilenameLengthBounded(t *testing.T) {
	info := &models.BannerInfo{
		BannerName: strings.Repeat("VeryLongCampaignName", 20),
	}

	got := BuildFilename(info, "png", -1)
	base := strings.TrimSuffix(got, ".png")
	if len(base) > maxNameLength {
		t.Errorf("base name %d chars, want <= %d", len(base), maxNameLength)
	}
}

func TestBuildFilenameSkipsRedundantParts(t *testing.T) {
	info := &models.BannerInfo{
		DetectedGeometry: models.DetectedGeometry{
			Width: 300, Height: 600, Hostname: "www.hoxton.io",
		},
		Metadata: models.CreativeMetadata{
			ReportingLabel: "Payworld_Display_300x600",
			AdType:         "banner",
		},
	}

	got := BuildFilename(info, "png", -1)
	// dimensions already in the name, hostname and generic ad type skipped
	if got != "Payworld_Display_300x600.png" {
		t.Errorf("filename = %q", got)
	}
}

func TestCleanZipName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "banner.png"},
		{"my banner.jpg", "my_banner.jpg"},
		{"bad/slash\\name.png", "bad_slash_name.png"},
		{"noextension", "noextension.png"},
		{"...", "banner.png"},
	}

	for _, tc := range cases {
		if got := CleanZipName(tc.in); got != tc.want {
			t.Errorf("CleanZipName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
