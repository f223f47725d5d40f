package banner

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"tools.zach/dev/bannergen/internal/atomicfile"
)

// PNGFile is a [Sink] that writes the banner as a PNG file. The file is
// replaced atomically, so a failed write leaves the previous banner intact.
type PNGFile struct {
	Path string
	Perm os.FileMode // zero means 0o644
}

// Write encodes img to p.Path, creating the parent directory if needed.
func (p PNGFile) Write(img image.Image) error {
	if dir := filepath.Dir(p.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	perm := p.Perm
	if perm == 0 {
		perm = 0o644
	}
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return atomicfile.WriteFunc(p.Path, perm, func(w io.Writer) error {
		return enc.Encode(w, img)
	})
}
