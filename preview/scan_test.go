package preview

import (
	"testing"
)

const previewPage = `<!DOCTYPE html>
<html>
<head><title>Campaign Preview Gallery</title></head>
<body>
	<iframe src="/creatives/leaderboard.html" width="728" height="90" id="lb" title="Leaderboard"></iframe>
	<iframe src="https://cdn.example.com/mpu/index.html" style="width: 300px; height: 250px;"></iframe>
	<iframe src=""></iframe>
	<div class="banner-container" data-banner-url="/banners/skyscraper.html" style="width: 160px; height: 600px;"></div>
	<div data-src="/banners/half-page.html" id="hp"></div>
	<a href="/share/banner-summer.html">Summer banner</a>
	<a href="/about">About us</a>
	<a href="#top">Back to top</a>
	<div class="preview-item"><a href="/preview/7">Autumn set</a></div>
</body>
</html>`

func TestScanCollectsCandidates(t *testing.T) {
	res, err := Scan([]byte(previewPage), "https://share.example.com/gallery")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if res.PageTitle != "Campaign Preview Gallery" {
		t.Errorf("title = %q", res.PageTitle)
	}

	byURL := map[string]int{}
	for _, b := range res.Banners {
		byURL[b.URL]++
	}
	for url, n := range byURL {
		if n > 1 {
			t.Errorf("duplicate candidate %q", url)
		}
	}

	want := []string{
		"https://share.example.com/creatives/leaderboard.html",
		"https://cdn.example.com/mpu/index.html",
		"https://share.example.com/banners/skyscraper.html",
		"https://share.example.com/banners/half-page.html",
		"https://share.example.com/share/banner-summer.html",
		"https://share.example.com/preview/7",
	}
	for _, url := range want {
		if byURL[url] == 0 {
			t.Errorf("missing candidate %q", url)
		}
	}

	// non-banner and empty links must not appear
	if byURL["https://share.example.com/about"] != 0 {
		t.Error("generic link should be filtered out")
	}
}

func TestScanReadsDeclaredSizes(t *testing.T) {
	res, err := Scan([]byte(previewPage), "https://share.example.com/gallery")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	sizes := map[string][2]int{}
	types := map[string]string{}
	for _, b := range res.Banners {
		sizes[b.URL] = [2]int{b.Width, b.Height}
		types[b.URL] = b.Type
	}

	if got := sizes["https://share.example.com/creatives/leaderboard.html"]; got != [2]int{728, 90} {
		t.Errorf("attribute size = %v, want 728x90", got)
	}
	if got := sizes["https://cdn.example.com/mpu/index.html"]; got != [2]int{300, 250} {
		t.Errorf("inline style size = %v, want 300x250", got)
	}
	if got := sizes["https://share.example.com/share/banner-summer.html"]; got != [2]int{0, 0} {
		t.Errorf("link size = %v, want unknown (0x0)", got)
	}
	if types["https://share.example.com/banners/skyscraper.html"] != "container" {
		t.Errorf("skyscraper type = %q, want container", types["https://share.example.com/banners/skyscraper.html"])
	}
}

func TestScanIndicesAreSequential(t *testing.T) {
	res, err := Scan([]byte(previewPage), "https://share.example.com/gallery")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for i, b := range res.Banners {
		if b.Index != i+1 {
			t.Errorf("banner %d has index %d", i, b.Index)
		}
	}
}
