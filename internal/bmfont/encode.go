package bmfont

import (
	"bufio"
	"fmt"
	"io"
	"slices"
)

// Encode writes f as a text-format descriptor. pageFiles names the atlas file
// of each page, in page order, and must have one entry per page.
// Glyphs and kernings are written sorted by character code so the output is
// stable across runs.
func Encode(w io.Writer, f *Font, pageFiles []string) error {
	if len(pageFiles) != len(f.pages) {
		return fmt.Errorf("encode: %d page files for %d pages", len(pageFiles), len(f.pages))
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "info face=%q size=%d bold=%d italic=%d charset=\"\" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1\n",
		f.info.Face, f.info.Size, boolInt(f.info.Bold), boolInt(f.info.Italic))
	fmt.Fprintf(bw, "common lineHeight=%d base=%d scaleW=%d scaleH=%d pages=%d packed=0\n",
		f.lineHeight, f.base, f.scaleW, f.scaleH, len(f.pages))
	for i, file := range pageFiles {
		fmt.Fprintf(bw, "page id=%d file=%q\n", i, file)
	}

	ids := make([]rune, 0, len(f.glyphs))
	for r := range f.glyphs {
		ids = append(ids, r)
	}
	slices.Sort(ids)
	fmt.Fprintf(bw, "chars count=%d\n", len(ids))
	for _, r := range ids {
		g := f.glyphs[r]
		fmt.Fprintf(bw, "char id=%d x=%d y=%d width=%d height=%d xoffset=%d yoffset=%d xadvance=%d page=%d chnl=15\n",
			g.ID, g.X, g.Y, g.Width, g.Height, g.XOffset, g.YOffset, g.XAdvance, g.Page)
	}

	if len(f.kernings) > 0 {
		pairs := make([][2]rune, 0, len(f.kernings))
		for p := range f.kernings {
			pairs = append(pairs, p)
		}
		slices.SortFunc(pairs, func(a, b [2]rune) int {
			if a[0] != b[0] {
				return int(a[0] - b[0])
			}
			return int(a[1] - b[1])
		})
		fmt.Fprintf(bw, "kernings count=%d\n", len(pairs))
		for _, p := range pairs {
			fmt.Fprintf(bw, "kerning first=%d second=%d amount=%d\n", p[0], p[1], f.kernings[p])
		}
	}
	return bw.Flush()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
