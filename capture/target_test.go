package capture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeTargetURLHTTP(t *testing.T) {
	for _, u := range []string{
		"https://example.com/banner/index.html",
		"http://localhost:3000/creative",
	} {
		got, err := NormalizeTargetURL(u)
		if err != nil {
			t.Errorf("NormalizeTargetURL(%q) error: %v", u, err)
		}
		if got != u {
			t.Errorf("NormalizeTargetURL(%q) = %q, want unchanged", u, got)
		}
	}
}

func TestNormalizeTargetURLLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := NormalizeTargetURL(path)
	if err != nil {
		t.Fatalf("bare path rejected: %v", err)
	}
	if !strings.HasPrefix(got, "file://") || !strings.HasSuffix(got, "index.html") {
		t.Errorf("bare path normalized to %q", got)
	}

	fileURL := "file://" + filepath.ToSlash(path)
	got, err = NormalizeTargetURL(fileURL)
	if err != nil {
		t.Fatalf("file url rejected: %v", err)
	}
	if got != fileURL {
		t.Errorf("file url = %q, want unchanged", got)
	}
}

func TestNormalizeTargetURLIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The handler and the service both normalize; the second pass must
	// be a no-op or cache keys drift.
	for _, raw := range []string{path, "  https://example.com/banner  "} {
		once, err := NormalizeTargetURL(raw)
		if err != nil {
			t.Fatalf("NormalizeTargetURL(%q): %v", raw, err)
		}
		twice, err := NormalizeTargetURL(once)
		if err != nil {
			t.Fatalf("second pass on %q: %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q then %q", once, twice)
		}
	}
}

func TestNormalizeTargetURLRejections(t *testing.T) {
	cases := []struct {
		name string
		url  string
	}{
		{"empty", "   "},
		{"missing local file", "file:///definitely/not/here.html"},
		{"unsupported scheme", "ftp://example.com/banner"},
		{"schemeless host", "example.com/banner"},
		{"no host", "http://"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NormalizeTargetURL(tc.url); err == nil {
				t.Errorf("NormalizeTargetURL(%q) accepted, want error", tc.url)
			}
		})
	}
}
