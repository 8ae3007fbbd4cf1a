package capture

import (
	"encoding/json"

	"github.com/go-rod/rod"
)

// evalInto evaluates js on the page and decodes the structured result into
// out. Rod hands results back as gson values; round-tripping through JSON
// lets struct tags do the field mapping.
func evalInto(page *rod.Page, js string, out any, args ...any) error {
	res, err := page.Eval(js, args...)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(res.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
