package capture

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/banner-tools/bannershot/models"
)

// placeholderToken is the unresolved template value some creatives ship
// in their reporting label.
const placeholderToken = "{versionName}"

// skippedTitles are page titles too generic to use as a banner label.
var skippedTitles = map[string]bool{
	"Untitled": true,
	"Banner":   true,
	"Preview":  true,
	"Share":    true,
}

// IsPlaceholder reports whether a label value is an unresolved template
// rather than a real name.
func IsPlaceholder(s string) bool {
	return strings.ContainsAny(s, "{}") || s == placeholderToken
}

// PickLabel chooses the human-readable label from creative metadata.
// A real reporting label wins; a placeholder one is used only when nothing
// else exists, since some value beats none.
func PickLabel(m models.CreativeMetadata) string {
	label := strings.TrimSpace(m.ReportingLabel)
	if label != "" && !IsPlaceholder(label) {
		return label
	}
	if name := strings.TrimSpace(m.Name); name != "" {
		return name
	}
	return label
}

// resolveBannerName picks the display name for a capture from metadata,
// data attributes, and the page title, in that order.
func resolveBannerName(m models.CreativeMetadata, dataName, pageTitle string) string {
	if label := PickLabel(m); label != "" {
		return label
	}
	if dataName = strings.TrimSpace(dataName); dataName != "" {
		return dataName
	}
	title := strings.TrimSpace(pageTitle)
	if len(title) > 3 && !skippedTitles[title] {
		return title
	}
	return ""
}

// flexInt tolerates metadata payloads that declare dimensions as either
// numbers or strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

// metadataPayload is the decoded shape of the creative's embedded payload.
type metadataPayload struct {
	Name           string `json:"name"`
	ReportingLabel string `json:"reportingLabel"`
	AdType         string `json:"adType"`
	Platform       string `json:"platform"`
	AdSize         struct {
		Width  flexInt `json:"width"`
		Height flexInt `json:"height"`
	} `json:"adSize"`
}

// DecodeMetadataPayload decodes a percent-encoded metadata attribute into
// structured metadata. Payloads arrive single or double percent-encoded;
// decode once, and only decode again if a percent sign survived the first
// pass. A literal percent in real content makes the second pass fail, in
// which case the first result stands.
func DecodeMetadataPayload(raw, source string) (models.CreativeMetadata, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return models.CreativeMetadata{}, err
	}
	if strings.Contains(decoded, "%") {
		if again, err := url.PathUnescape(decoded); err == nil {
			decoded = again
		}
	}

	var payload metadataPayload
	if err := json.Unmarshal([]byte(decoded), &payload); err != nil {
		return models.CreativeMetadata{}, err
	}

	return models.CreativeMetadata{
		Name:           payload.Name,
		ReportingLabel: payload.ReportingLabel,
		AdType:         payload.AdType,
		Platform:       payload.Platform,
		DataWidth:      int(payload.AdSize.Width),
		DataHeight:     int(payload.AdSize.Height),
		Source:         source,
	}, nil
}
