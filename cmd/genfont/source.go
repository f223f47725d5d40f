// source.go loads scalable font bytes from a local file or from the Google
// Fonts CSS API.
//
// Google specs use the format "google:FAMILY:WEIGHT" (e.g. "google:Cabin:500").
// Downloads are cached as SFNT so they are not fetched on every run.

package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tdewolff/font"

	"tools.zach/dev/bannergen/internal/atomicfile"
	"tools.zach/dev/bannergen/internal/remote"
)

// googleCSSURL is the CSS API endpoint, replaced in tests.
var googleCSSURL = "https://fonts.googleapis.com/css2"

// fontURLRe extracts the first font file URL from a CSS response, e.g.
// url(https://fonts.gstatic.com/s/cabin/v27/xxx.woff2).
var fontURLRe = regexp.MustCompile(`url\((https?://[^)\s]+)\)`)

const maxFontBytes = 10 << 20

// parseGoogleSpec splits "google:Family:Weight".
func parseGoogleSpec(spec string) (family, weight string, ok bool) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 || parts[0] != "google" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// loadFontData returns SFNT (TTF/OTF) bytes for spec, which is a file path
// or a Google Fonts spec. WOFF2 input is converted.
func loadFontData(ctx context.Context, client *retryablehttp.Client, spec, cacheDir string) ([]byte, error) {
	if strings.HasPrefix(spec, "google:") {
		return fetchGoogleFont(ctx, client, spec, cacheDir)
	}
	data, err := os.ReadFile(spec)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	return toSFNT(spec, data)
}

// fetchGoogleFont downloads a font from Google Fonts, caching the result in
// cacheDir when it is set.
func fetchGoogleFont(ctx context.Context, client *retryablehttp.Client, spec, cacheDir string) ([]byte, error) {
	family, weight, ok := parseGoogleSpec(spec)
	if !ok {
		return nil, fmt.Errorf("invalid google font spec %q: expected google:FAMILY:WEIGHT", spec)
	}

	var cacheFile string
	if cacheDir != "" {
		cacheFile = filepath.Join(cacheDir, fmt.Sprintf("%s-%s.ttf", strings.ReplaceAll(family, " ", "_"), weight))
		if data, err := os.ReadFile(cacheFile); err == nil {
			return data, nil
		}
	}

	cssURL := fmt.Sprintf("%s?family=%s:wght@%s", googleCSSURL, url.QueryEscape(family), url.QueryEscape(weight))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, cssURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	// A modern user agent gets WOFF2 URLs, which toSFNT converts.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	css, err := remote.Do(client, req, 1<<20)
	if err != nil {
		return nil, fmt.Errorf("google fonts css for %s wght@%s: %w", family, weight, err)
	}

	m := fontURLRe.FindSubmatch(css)
	if m == nil {
		return nil, fmt.Errorf("no font URL in google fonts css for %s wght@%s", family, weight)
	}
	fontURL := string(m[1])
	data, err := remote.Get(ctx, client, fontURL, maxFontBytes)
	if err != nil {
		return nil, fmt.Errorf("download font: %w", err)
	}
	if data, err = toSFNT(fontURL, data); err != nil {
		return nil, err
	}

	if cacheFile != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err == nil {
			err = atomicfile.Write(cacheFile, data, 0o644)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to cache font: %v\n", err)
		}
	}
	return data, nil
}

// toSFNT converts WOFF2 data to SFNT and passes anything else through.
func toSFNT(name string, data []byte) ([]byte, error) {
	if !isWOFF2(name, data) {
		return data, nil
	}
	sfnt, err := font.ToSFNT(data)
	if err != nil {
		return nil, fmt.Errorf("converting WOFF2 to SFNT: %w", err)
	}
	return sfnt, nil
}

// isWOFF2 checks the file extension and the wOF2 magic.
func isWOFF2(name string, data []byte) bool {
	if strings.HasSuffix(strings.ToLower(name), ".woff2") {
		return true
	}
	return len(data) >= 4 && string(data[:4]) == "wOF2"
}
