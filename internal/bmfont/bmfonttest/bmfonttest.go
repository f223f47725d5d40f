// Package bmfonttest builds small in-memory bitmap fonts for tests.
//
// Every glyph except space is a solid block that fills its advance minus one
// pixel and the middle half of the line, so drawn text is easy to assert on
// pixel by pixel.
package bmfonttest

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"tools.zach/dev/bannergen/internal/bmfont"
)

// Build returns a font with the given line height and per-rune advances.
// Glyph pixels are painted with fg.
func Build(lineHeight int, advances map[rune]int, fg color.Color) *bmfont.Font {
	runes := make([]rune, 0, len(advances))
	maxAdv := 1
	for r, a := range advances {
		runes = append(runes, r)
		maxAdv = max(maxAdv, a)
	}
	slices.Sort(runes)

	glyphH := max(lineHeight/2, 1)
	yoff := lineHeight / 4
	page := image.NewNRGBA(image.Rect(0, 0, maxAdv, glyphH))
	draw.Draw(page, page.Bounds(), image.NewUniform(fg), image.Point{}, draw.Src)

	var b strings.Builder
	fmt.Fprintf(&b, "info face=\"test\" size=%d bold=0 italic=0\n", lineHeight)
	fmt.Fprintf(&b, "common lineHeight=%d base=%d scaleW=%d scaleH=%d pages=1\n", lineHeight, lineHeight*3/4, maxAdv, glyphH)
	b.WriteString("page id=0 file=\"test.png\"\n")
	for _, r := range runes {
		adv := advances[r]
		w := max(adv-1, 1)
		h := glyphH
		if r == ' ' {
			w, h = 0, 0
		}
		fmt.Fprintf(&b, "char id=%d x=0 y=0 width=%d height=%d xoffset=0 yoffset=%d xadvance=%d page=0\n", r, w, h, yoff, adv)
	}

	f, err := bmfont.Parse(strings.NewReader(b.String()), func(string) (image.Image, error) {
		return page, nil
	})
	if err != nil {
		panic(fmt.Sprintf("bmfonttest: %v", err))
	}
	return f
}

// Mono returns a font covering printable ASCII where every rune, space
// included, advances by advance pixels.
func Mono(lineHeight, advance int) *bmfont.Font {
	adv := make(map[rune]int)
	for r := rune(' '); r <= '~'; r++ {
		adv[r] = advance
	}
	return Build(lineHeight, adv, color.White)
}

// WriteFiles saves f under dir as name.fnt plus one PNG per atlas page and
// returns the descriptor path.
func WriteFiles(dir, name string, f *bmfont.Font) (string, error) {
	pageFiles := make([]string, f.Pages())
	for i := range pageFiles {
		pageFiles[i] = fmt.Sprintf("%s_%d.png", name, i)
		pf, err := os.Create(filepath.Join(dir, pageFiles[i]))
		if err != nil {
			return "", err
		}
		err = png.Encode(pf, f.Page(i))
		if cerr := pf.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", err
		}
	}

	path := filepath.Join(dir, name+".fnt")
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	err = bmfont.Encode(out, f, pageFiles)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	return path, nil
}
