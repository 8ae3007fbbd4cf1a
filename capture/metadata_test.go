package capture

import (
	"net/url"
	"testing"

	"github.com/banner-tools/bannershot/models"
)

func TestPickLabelPrefersRealReportingLabel(t *testing.T) {
	meta := models.CreativeMetadata{
		ReportingLabel: "Acme_Spring_300x250_v2",
		Name:           "spring_banner",
	}
	if got := PickLabel(meta); got != "Acme_Spring_300x250_v2" {
		t.Errorf("label = %q, want reporting label", got)
	}
}

func TestPickLabelRejectsPlaceholder(t *testing.T) {
	meta := models.CreativeMetadata{
		ReportingLabel: "{versionName}",
		Name:           "Acme_300x250",
	}
	if got := PickLabel(meta); got != "Acme_300x250" {
		t.Errorf("label = %q, want name when reporting label is a placeholder", got)
	}
}

func TestPickLabelPlaceholderAsLastResort(t *testing.T) {
	meta := models.CreativeMetadata{ReportingLabel: "{versionName}"}
	if got := PickLabel(meta); got != "{versionName}" {
		t.Errorf("label = %q, want the placeholder over nothing", got)
	}
}

func TestPickLabelEmpty(t *testing.T) {
	if got := PickLabel(models.CreativeMetadata{}); got != "" {
		t.Errorf("label = %q, want empty", got)
	}
}

func TestResolveBannerNameFallsBackThroughSources(t *testing.T) {
	cases := []struct {
		name      string
		meta      models.CreativeMetadata
		dataName  string
		pageTitle string
		want      string
	}{
		{
			name: "metadata wins",
			meta: models.CreativeMetadata{Name: "Acme_300x250"},
			want: "Acme_300x250",
		},
		{
			name:     "data attribute next",
			dataName: "summer-sale",
			want:     "summer-sale",
		},
		{
			name:      "page title last",
			pageTitle: "Acme Summer Campaign",
			want:      "Acme Summer Campaign",
		},
		{
			name:      "generic titles skipped",
			pageTitle: "Preview",
			want:      "",
		},
		{
			name:      "short titles skipped",
			pageTitle: "Ad",
			want:      "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := resolveBannerName(tc.meta, tc.dataName, tc.pageTitle)
			if got != tc.want {
				t.Errorf("name = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecodeMetadataPayloadSingleEncoded(t *testing.T) {
	payload := `{"name":"Acme_300x250","reportingLabel":"Acme_Q3","adType":"Display","platform":"web","adSize":{"width":300,"height":250}}`
	raw := url.PathEscape(payload)

	meta, err := DecodeMetadataPayload(raw, "main-document")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.Name != "Acme_300x250" || meta.ReportingLabel != "Acme_Q3" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.DataWidth != 300 || meta.DataHeight != 250 {
		t.Errorf("adSize = %dx%d, want 300x250", meta.DataWidth, meta.DataHeight)
	}
	if meta.Source != "main-document" {
		t.Errorf("source = %q", meta.Source)
	}
}

func TestDecodeMetadataPayloadDoubleEncoded(t *testing.T) {
	payload := `{"name":"Acme_728x90","adSize":{"width":"728","height":"90"}}`
	raw := url.PathEscape(url.PathEscape(payload))

	meta, err := DecodeMetadataPayload(raw, "iframe-0")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.Name != "Acme_728x90" {
		t.Errorf("name = %q after double decode", meta.Name)
	}
	// string-typed adSize values must still parse
	if meta.DataWidth != 728 || meta.DataHeight != 90 {
		t.Errorf("adSize = %dx%d, want 728x90", meta.DataWidth, meta.DataHeight)
	}
}

func TestDecodeMetadataPayloadLiteralPercentNotOverDecoded(t *testing.T) {
	// A single-encoded payload whose content contains a real percent
	// sign: the second decode attempt fails and the first result stands.
	payload := `{"name":"Sale 50% off"}`
	raw := url.PathEscape(payload)

	meta, err := DecodeMetadataPayload(raw, "main-document")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.Name != "Sale 50% off" {
		t.Errorf("name = %q, want literal percent preserved", meta.Name)
	}
}

func TestDecodeMetadataPayloadGarbage(t *testing.T) {
	if _, err := DecodeMetadataPayload("not json at all", "main-document"); err == nil {
		t.Error("expected error for unparseable payload")
	}
}

func TestIsPlaceholder(t *testing.T) {
	for _, s := range []string{"{versionName}", "{anything}", "partial{", "}x"} {
		if !IsPlaceholder(s) {
			t.Errorf("IsPlaceholder(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"Acme_300x250", "", "version name"} {
		if IsPlaceholder(s) {
			t.Errorf("IsPlaceholder(%q) = true, want false", s)
		}
	}
}
