// raster.go builds bitmap fonts from scalable faces. It backs the genfont
// tool, which produces the .fnt/.png pairs the banner is drawn with.

package bmfont

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// atlasPadding is the empty border kept around every glyph cell so that
// filtered sampling never picks up a neighbour.
const atlasPadding = 1

// ASCII returns the printable ASCII range (space through tilde).
func ASCII() []rune {
	return runeRange(' ', '~')
}

// Latin1 returns printable ASCII plus the printable Latin-1 supplement.
func Latin1() []rune {
	return append(ASCII(), runeRange(0xA0, 0xFF)...)
}

func runeRange(lo, hi rune) []rune {
	out := make([]rune, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		out = append(out, r)
	}
	return out
}

// Rasterize renders runes from face into a single white-on-transparent atlas
// page of the given width, shelf-packed left to right, and returns the
// resulting font along with the page image. Runes the face cannot render are
// skipped. Line height and base come from the face metrics.
func Rasterize(face font.Face, info Info, runes []rune, atlasWidth int) (*Font, *image.NRGBA, error) {
	if atlasWidth <= 2*atlasPadding {
		return nil, nil, fmt.Errorf("rasterize: atlas width %d too small", atlasWidth)
	}

	m := face.Metrics()
	lineHeight := m.Height.Ceil()
	base := m.Ascent.Ceil()
	if lineHeight <= 0 {
		return nil, nil, fmt.Errorf("rasterize: face reports line height %d", lineHeight)
	}

	type cell struct {
		g          Glyph
		minX, minY int
	}
	var cells []cell
	x, y, rowH := atlasPadding, atlasPadding, 0

	for _, r := range runes {
		b, adv, ok := face.GlyphBounds(r)
		if !ok {
			continue
		}
		minX, minY := b.Min.X.Floor(), b.Min.Y.Floor()
		w := max(b.Max.X.Ceil()-minX, 0)
		h := max(b.Max.Y.Ceil()-minY, 0)
		if w == 0 || h == 0 {
			// Blank glyphs (space) occupy no atlas area.
			w, h = 0, 0
		}
		if w > atlasWidth-2*atlasPadding {
			return nil, nil, fmt.Errorf("rasterize: glyph %q is %dpx wide, atlas is %dpx", r, w, atlasWidth)
		}
		if x+w+atlasPadding > atlasWidth {
			x = atlasPadding
			y += rowH + atlasPadding
			rowH = 0
		}
		cells = append(cells, cell{
			g: Glyph{
				ID: r, X: x, Y: y, Width: w, Height: h,
				XOffset:  minX,
				YOffset:  base + minY,
				XAdvance: adv.Round(),
			},
			minX: minX,
			minY: minY,
		})
		x += w + atlasPadding
		rowH = max(rowH, h)
	}
	if len(cells) == 0 {
		return nil, nil, fmt.Errorf("rasterize: face renders none of the %d requested runes", len(runes))
	}

	atlas := image.NewNRGBA(image.Rect(0, 0, atlasWidth, y+rowH+atlasPadding))
	glyphs := make(map[rune]Glyph, len(cells))
	for _, c := range cells {
		glyphs[c.g.ID] = c.g
		if c.g.Width == 0 {
			continue
		}
		rect := image.Rect(c.g.X, c.g.Y, c.g.X+c.g.Width, c.g.Y+c.g.Height)
		d := font.Drawer{
			Dst:  atlas.SubImage(rect).(*image.NRGBA),
			Src:  image.White,
			Face: face,
			Dot:  fixed.P(c.g.X-c.minX, c.g.Y-c.minY),
		}
		d.DrawString(string(c.g.ID))
	}

	b := atlas.Bounds()
	return &Font{
		info:       info,
		lineHeight: lineHeight,
		base:       base,
		scaleW:     b.Dx(),
		scaleH:     b.Dy(),
		glyphs:     glyphs,
		kernings:   map[[2]rune]int{},
		pages:      []image.Image{atlas},
	}, atlas, nil
}
