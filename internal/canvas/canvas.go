// Package canvas holds the mutable pixel buffer a banner is drawn on.
//
// A [Canvas] is owned by a single caller and mutated in place: images are
// composited at pixel offsets and bitmap-font text is drawn left-aligned and
// top-anchored. Anything that falls outside the canvas is clipped silently.
package canvas

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"tools.zach/dev/bannergen/internal/bmfont"
	"tools.zach/dev/bannergen/internal/layout"
)

// Canvas is an RGBA pixel buffer with its origin at the top-left corner.
type Canvas struct {
	img *image.RGBA
}

// New returns a transparent canvas of the given size.
func New(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// FromImage returns a canvas holding a copy of img, rebased so that its
// top-left corner is (0, 0).
func FromImage(img image.Image) *Canvas {
	b := img.Bounds()
	c := New(b.Dx(), b.Dy())
	draw.Draw(c.img, c.img.Bounds(), img, b.Min, draw.Src)
	return c
}

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle { return c.img.Bounds() }

// Image returns the underlying buffer. Callers must not retain it across
// further drawing calls if they need a stable snapshot.
func (c *Canvas) Image() *image.RGBA { return c.img }

// Composite blends src over the canvas with src's top-left corner at (x, y).
// Source alpha is respected; fully opaque pixels replace the destination.
// Pixels landing outside the canvas are discarded.
func (c *Canvas) Composite(src image.Image, x, y int) {
	sb := src.Bounds()
	dst := image.Rect(x, y, x+sb.Dx(), y+sb.Dy())
	draw.Draw(c.img, dst, src, sb.Min, draw.Over)
}

// DrawText wraps text at maxWidth (zero for a single line) and draws it with
// f, the first line's top edge at y and every line starting at x. Line i is
// drawn at y + i*f.LineHeight(). Glyph bitmaps are blended over the canvas.
//
// Wrapping resolves every glyph before any pixel is written, so an error
// leaves the canvas untouched. The returned height equals
// [layout.MeasureHeight] for the same arguments.
func (c *Canvas) DrawText(f *bmfont.Font, x, y int, text string, maxWidth int) (int, error) {
	lines, err := layout.Wrap(f, text, maxWidth)
	if err != nil {
		return 0, err
	}

	lh := f.LineHeight()
	for i, line := range lines {
		top := y + i*lh
		pen := x
		for _, r := range line.Text {
			g, err := f.Glyph(r)
			if err != nil {
				return 0, err
			}
			if bm := f.Bitmap(g); bm != nil {
				bb := bm.Bounds()
				at := image.Pt(pen+g.XOffset, top+g.YOffset)
				draw.Draw(c.img, image.Rectangle{Min: at, Max: at.Add(bb.Size())}, bm, bb.Min, draw.Over)
			}
			pen += g.XAdvance
		}
	}
	return len(lines) * lh, nil
}

// EncodePNG writes the canvas to w as a PNG.
func (c *Canvas) EncodePNG(w io.Writer) error {
	if err := png.Encode(w, c.img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
