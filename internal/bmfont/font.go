// Package bmfont loads and queries AngelCode BMFont bitmap fonts.
//
// A font is a descriptor file (".fnt", text or XML flavour) plus one or more
// atlas page images. Every glyph has a fixed rectangle on a page, an offset
// relative to the pen position and the top of the line, and an advance width.
// The line height is constant for the whole font.
//
// Fonts are immutable after [Load] or [Parse] returns and may be shared by
// any number of goroutines.
package bmfont

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrFontLoad is returned when a descriptor or one of its atlas pages is
// missing or malformed.
var ErrFontLoad = errors.New("font load")

// ErrGlyphMissing is returned when a rune has no glyph and the font defines
// no fallback glyph either.
var ErrGlyphMissing = errors.New("glyph missing")

// fallbackRunes are tried, in order, for runes the font does not define.
var fallbackRunes = []rune{'?', ' '}

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Glyph holds the metrics and atlas location of one character.
type Glyph struct {
	// ID is the character code the glyph renders.
	ID rune
	// X, Y, Width and Height locate the glyph bitmap on its page.
	X, Y, Width, Height int
	// XOffset is added to the pen position before blitting.
	XOffset int
	// YOffset is measured from the top of the line.
	YOffset int
	// XAdvance is how far the pen moves after this glyph.
	XAdvance int
	// Page indexes [Font] pages.
	Page int
}

// Info holds the descriptive header fields of a font.
type Info struct {
	Face string
	Size int
	Bold bool
	// Italic is carried through for [Encode]; layout ignores it.
	Italic bool
}

// Font is a loaded bitmap font.
type Font struct {
	info       Info
	lineHeight int
	base       int
	scaleW     int
	scaleH     int
	glyphs     map[rune]Glyph
	kernings   map[[2]rune]int
	pages      []image.Image
}

// Info returns the descriptive header of the font.
func (f *Font) Info() Info { return f.info }

// LineHeight returns the vertical distance between successive lines.
func (f *Font) LineHeight() int { return f.lineHeight }

// Base returns the distance from the top of a line to the baseline.
func (f *Font) Base() int { return f.base }

// Len returns the number of glyphs the font defines.
func (f *Font) Len() int { return len(f.glyphs) }

// Pages returns the number of atlas pages.
func (f *Font) Pages() int { return len(f.pages) }

// Page returns atlas page i, or nil if there is no such page. The image is
// shared and must not be modified.
func (f *Font) Page(i int) image.Image {
	if i < 0 || i >= len(f.pages) {
		return nil
	}
	return f.pages[i]
}

// Has reports whether the font defines a glyph for r, without fallback.
func (f *Font) Has(r rune) bool {
	_, ok := f.glyphs[r]
	return ok
}

// Glyph returns the glyph for r. Runes the font does not define resolve to
// the first available fallback glyph ('?', then space). If none exists the
// error wraps [ErrGlyphMissing].
func (f *Font) Glyph(r rune) (Glyph, error) {
	if g, ok := f.glyphs[r]; ok {
		return g, nil
	}
	for _, fb := range fallbackRunes {
		if g, ok := f.glyphs[fb]; ok {
			return g, nil
		}
	}
	return Glyph{}, fmt.Errorf("%w: %q (U+%04X) in %q", ErrGlyphMissing, r, r, f.info.Face)
}

// Advance returns the advance width of r, after fallback resolution.
func (f *Font) Advance(r rune) (int, error) {
	g, err := f.Glyph(r)
	if err != nil {
		return 0, err
	}
	return g.XAdvance, nil
}

// Kerning returns the kerning amount for the pair (first, second), or zero.
// Layout in this module uses advance widths only; the table is kept so that
// [Encode] round-trips a descriptor without losing data.
func (f *Font) Kerning(first, second rune) int {
	return f.kernings[[2]rune{first, second}]
}

// Bitmap returns the atlas region holding g's pixels. The result is a view
// into the shared page image and must not be modified.
func (f *Font) Bitmap(g Glyph) image.Image {
	if g.Page < 0 || g.Page >= len(f.pages) || g.Width <= 0 || g.Height <= 0 {
		return nil
	}
	page := f.pages[g.Page]
	b := page.Bounds()
	r := image.Rect(g.X, g.Y, g.X+g.Width, g.Y+g.Height).Add(b.Min).Intersect(b)
	if r.Empty() {
		return nil
	}
	if s, ok := page.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(r)
	}
	return &subImage{src: page, rect: r}
}

// subImage restricts an arbitrary image to a rectangle for page types that
// have no SubImage method.
type subImage struct {
	src  image.Image
	rect image.Rectangle
}

func (s *subImage) ColorModel() color.Model { return s.src.ColorModel() }
func (s *subImage) Bounds() image.Rectangle { return s.rect }
func (s *subImage) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(s.rect) {
		return color.Transparent
	}
	return s.src.At(x, y)
}
