package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"tools.zach/dev/bannergen/internal/layout"
)

// ErrDecode is returned when bytes are not a raster image in a supported
// format (PNG, JPEG, GIF, BMP, WebP).
var ErrDecode = errors.New("decode image")

// Decode decodes raster image bytes.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrDecode)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

// Resize scales src to exactly width x height with bilinear filtering.
// The aspect ratio is not preserved. A non-positive target wraps
// [layout.ErrPrecondition].
func Resize(src image.Image, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: resize target %dx%d", layout.ErrPrecondition, width, height)
	}
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: resize source is empty", layout.ErrPrecondition)
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst, nil
}

// Thumbnail decodes data and resizes it to width x height.
func Thumbnail(data []byte, width, height int) (*image.RGBA, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Resize(img, width, height)
}
