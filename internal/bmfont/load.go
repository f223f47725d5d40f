package bmfont

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
)

// Load reads the descriptor at path and the atlas pages it references.
// Page files are resolved relative to the descriptor's directory. Any missing
// or malformed file yields an error wrapping [ErrFontLoad].
func Load(path string) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFontLoad, err)
	}
	f, err := Parse(bytes.NewReader(data), DirLoader(filepath.Dir(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// DirLoader returns a [PageLoader] that decodes page files (PNG or BMP)
// found in dir.
func DirLoader(dir string) PageLoader {
	return func(file string) (image.Image, error) {
		p := file
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, filepath.FromSlash(file))
		}
		fh, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		img, _, err := image.Decode(fh)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", p, err)
		}
		return img, nil
	}
}
