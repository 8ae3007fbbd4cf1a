package probe

import (
	"net/url"
	"testing"
)

func TestExtractMetadataFromCarrier(t *testing.T) {
	payload := url.PathEscape(`{"name":"Acme_Spring","reportingLabel":"Acme Spring Sale","adType":"banner","platform":"web","adSize":{"width":300,"height":250}}`)
	page := `<html><body><hoxton data="` + payload + `"></hoxton></body></html>`

	meta, err := ExtractMetadata([]byte(page), "iframe-url")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if meta.ReportingLabel != "Acme Spring Sale" {
		t.Errorf("reporting label = %q", meta.ReportingLabel)
	}
	if meta.DataWidth != 300 || meta.DataHeight != 250 {
		t.Errorf("adSize = %dx%d, want 300x250", meta.DataWidth, meta.DataHeight)
	}
	if meta.Source != "iframe-url" {
		t.Errorf("source = %q", meta.Source)
	}
}

func TestExtractMetadataNoCarrier(t *testing.T) {
	page := `<html><body><div id="mainHolder"></div></body></html>`
	if _, err := ExtractMetadata([]byte(page), "iframe-url"); err == nil {
		t.Error("expected error for a page without a metadata carrier")
	}
}

func TestExtractMetadataSkipsBrokenCarrier(t *testing.T) {
	good := url.PathEscape(`{"name":"Fallback_728x90"}`)
	page := `<html><body>
		<hoxton data="%zz-not-decodable"></hoxton>
		<hoxton data="` + good + `"></hoxton>
	</body></html>`

	meta, err := ExtractMetadata([]byte(page), "iframe-url")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if meta.Name != "Fallback_728x90" {
		t.Errorf("name = %q, want the second carrier's payload", meta.Name)
	}
}
