package remote

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// Loader resolves image references to bytes.
type Loader struct {
	Client   *retryablehttp.Client // nil uses DefaultClient
	BaseDir  string                // relative paths are resolved against it
	MaxBytes int64                 // zero means DefaultMaxBytes
}

// Load returns the bytes behind ref. http and https URLs are downloaded;
// file URLs and bare paths are read from disk.
func (l *Loader) Load(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("load image: empty reference")
	}

	switch scheme := schemeOf(ref); scheme {
	case "http", "https":
		return Get(ctx, l.Client, ref, l.MaxBytes)
	case "file":
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		return l.readFile(filepath.FromSlash(u.Path))
	case "":
		return l.readFile(ref)
	default:
		return nil, fmt.Errorf("load %s: unsupported scheme %q", ref, scheme)
	}
}

func (l *Loader) readFile(path string) ([]byte, error) {
	if !filepath.IsAbs(path) && l.BaseDir != "" {
		path = filepath.Join(l.BaseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	defer f.Close()
	data, err := readCapped(f, l.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return data, nil
}

// schemeOf returns the lower-cased URL scheme of ref, or "" for filesystem
// paths. Windows drive letters ("C:\...") are treated as paths.
func schemeOf(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 1 {
		return ""
	}
	return strings.ToLower(ref[:i])
}
