// Package preview finds capturable banner candidates on share/preview
// pages: the gallery pages ad platforms generate that embed one or more
// creatives per page.
package preview

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/banner-tools/bannershot/models"
	"golang.org/x/net/html"
)

var (
	iframeMatcher    = cascadia.MustCompile("iframe[src]")
	containerMatcher = cascadia.MustCompile("[data-banner-url], [data-src], .banner-container, .ad-container")
	linkMatcher      = cascadia.MustCompile("a[href]")
	thumbMatcher     = cascadia.MustCompile("[data-preview-url], .preview-item, .banner-preview")

	styleWidthRe  = regexp.MustCompile(`width:\s*(\d+)px`)
	styleHeightRe = regexp.MustCompile(`height:\s*(\d+)px`)
)

// Result is what a preview-page scan produces.
type Result struct {
	PageTitle string
	Banners   []models.BannerFrame
}

// Scan parses rendered preview-page HTML and collects banner candidates:
// embedded iframes, banner containers with URL data attributes,
// banner-looking links, and preview thumbnails, in that order. Candidate
// URLs are resolved against baseURL. Dimensions come from attributes and
// inline styles when declared; zero means unknown, to be auto-detected
// at capture time.
func Scan(body []byte, baseURL string) (*Result, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	base, _ := url.Parse(baseURL)
	res := &Result{PageTitle: strings.TrimSpace(doc.Find("title").First().Text())}
	seen := make(map[string]bool)

	add := func(frame models.BannerFrame) {
		frame.URL = resolveURL(base, frame.URL)
		if frame.URL == "" || seen[frame.URL] {
			return
		}
		seen[frame.URL] = true
		frame.Index = len(res.Banners) + 1
		res.Banners = append(res.Banners, frame)
	}

	doc.FindMatcher(iframeMatcher).Each(func(i int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		w, h := declaredSize(sel)
		add(models.BannerFrame{
			Type:   "iframe",
			URL:    src,
			Width:  w,
			Height: h,
			Title:  attrOr(sel, "title", "Banner "+strconv.Itoa(i+1)),
			ID:     attrOr(sel, "id", "iframe-"+strconv.Itoa(i+1)),
		})
	})

	doc.FindMatcher(containerMatcher).Each(func(i int, sel *goquery.Selection) {
		bannerURL, ok := sel.Attr("data-banner-url")
		if !ok || bannerURL == "" {
			bannerURL, _ = sel.Attr("data-src")
		}
		if bannerURL == "" {
			bannerURL, _ = sel.Find("a").First().Attr("href")
		}
		if bannerURL == "" {
			return
		}
		w, h := declaredSize(sel)
		add(models.BannerFrame{
			Type:   "container",
			URL:    bannerURL,
			Width:  w,
			Height: h,
			Title:  attrOr(sel, "title", "Container Banner "+strconv.Itoa(i+1)),
			ID:     attrOr(sel, "id", "container-"+strconv.Itoa(i+1)),
		})
	})

	doc.FindMatcher(linkMatcher).Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		if !looksLikeBannerLink(href, text) {
			return
		}
		title := text
		if title == "" {
			title = "Link Banner " + strconv.Itoa(i+1)
		}
		add(models.BannerFrame{
			Type:  "link",
			URL:   href,
			Title: title,
			ID:    attrOr(sel, "id", "link-"+strconv.Itoa(i+1)),
		})
	})

	doc.FindMatcher(thumbMatcher).Each(func(i int, sel *goquery.Selection) {
		previewURL, ok := sel.Attr("data-preview-url")
		if !ok || previewURL == "" {
			previewURL, _ = sel.Find("a").First().Attr("href")
		}
		if previewURL == "" {
			return
		}
		title, ok := sel.Attr("alt")
		if !ok || title == "" {
			title = strings.TrimSpace(sel.Text())
		}
		if title == "" {
			title = "Preview " + strconv.Itoa(i+1)
		}
		w, h := declaredSize(sel)
		add(models.BannerFrame{
			Type:   "preview",
			URL:    previewURL,
			Width:  w,
			Height: h,
			Title:  title,
			ID:     attrOr(sel, "id", "preview-"+strconv.Itoa(i+1)),
		})
	})

	return res, nil
}

// looksLikeBannerLink filters generic anchors down to ones plausibly
// pointing at a creative.
func looksLikeBannerLink(href, text string) bool {
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return false
	}
	h := strings.ToLower(href)
	return strings.Contains(h, "banner") || strings.Contains(h, "creative") ||
		strings.Contains(h, "/ad") || strings.Contains(strings.ToLower(text), "banner")
}

// declaredSize reads an element's pixel size from width/height attributes
// or inline style declarations.
func declaredSize(sel *goquery.Selection) (int, int) {
	w := attrInt(sel, "width")
	h := attrInt(sel, "height")
	if w > 0 && h > 0 {
		return w, h
	}
	if style, ok := sel.Attr("style"); ok {
		if w == 0 {
			if m := styleWidthRe.FindStringSubmatch(style); m != nil {
				w, _ = strconv.Atoi(m[1])
			}
		}
		if h == 0 {
			if m := styleHeightRe.FindStringSubmatch(style); m != nil {
				h, _ = strconv.Atoi(m[1])
			}
		}
	}
	return w, h
}

func attrInt(sel *goquery.Selection, name string) int {
	v, ok := sel.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func attrOr(sel *goquery.Selection, name, fallback string) string {
	if v, ok := sel.Attr(name); ok && v != "" {
		return v
	}
	return fallback
}

func resolveURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
