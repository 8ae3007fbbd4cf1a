// Package probe fetches creative pages over plain HTTP with a Chrome TLS
// fingerprint and extracts embedded metadata statically, giving the
// orchestrator a fast path that skips a browser navigation when the
// metadata carrier is present in the raw markup.
package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/banner-tools/bannershot/capture"
	"github.com/banner-tools/bannershot/models"
	tls2 "github.com/refraction-networking/utls"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// bodyLimit caps how much of a creative page the probe will read.
const bodyLimit = 10 * 1024 * 1024

// Prober fetches pages without a browser. Creatives that render their
// metadata carrier server-side never need the Chromium round trip.
type Prober struct {
	client *http.Client
}

// New creates a Prober with a Chrome-fingerprint TLS transport.
func New() *Prober {
	transport := &http.Transport{
		DialTLSContext: dialTLSChrome,
	}
	return &Prober{client: &http.Client{Transport: transport}}
}

// Fetch retrieves the URL with browser-like headers.
func (p *Prober) Fetch(ctx context.Context, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("probe: build request: %w", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("probe: HTTP %d for %s", resp.StatusCode, targetURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return nil, fmt.Errorf("probe: read body: %w", err)
	}
	return body, nil
}

// FetchMetadata fetches a creative URL and extracts its embedded metadata
// from the static markup. Returns an error when the page carries no
// parseable metadata; the caller then falls back to a browser navigation.
func (p *Prober) FetchMetadata(ctx context.Context, targetURL string) (models.CreativeMetadata, error) {
	body, err := p.Fetch(ctx, targetURL)
	if err != nil {
		return models.CreativeMetadata{}, err
	}
	return ExtractMetadata(body, "iframe-url")
}

// ExtractMetadata parses HTML and decodes the first metadata carrier
// element found in it.
func ExtractMetadata(body []byte, source string) (models.CreativeMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return models.CreativeMetadata{}, fmt.Errorf("probe: parse HTML: %w", err)
	}

	var meta models.CreativeMetadata
	var found bool
	doc.Find("hoxton[data]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw, ok := sel.Attr("data")
		if !ok || raw == "" {
			return true
		}
		m, decodeErr := capture.DecodeMetadataPayload(raw, source)
		if decodeErr != nil {
			return true
		}
		meta = m
		found = true
		return false
	})

	if !found {
		return models.CreativeMetadata{}, fmt.Errorf("probe: no metadata carrier in page")
	}
	return meta, nil
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint
// via utls.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
