// canvas_test.go tests compositing (opaque overwrite, alpha blending,
// idempotence, clipping), bitmap text drawing and the resampler.

package canvas

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/draw"

	"tools.zach/dev/bannergen/internal/bmfont"
	"tools.zach/dev/bannergen/internal/bmfont/bmfonttest"
	"tools.zach/dev/bannergen/internal/layout"
)

var (
	black = color.RGBA{A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	red   = color.RGBA{R: 255, A: 255}
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func blackCanvas(w, h int) *Canvas {
	return FromImage(solid(w, h, black))
}

// ///////////////////////////////////////////////
// Composite
// ///////////////////////////////////////////////

func TestCompositeOpaque(t *testing.T) {
	c := blackCanvas(20, 20)
	c.Composite(solid(4, 3, red), 5, 6)

	img := c.Image()
	if got := img.RGBAAt(5, 6); got != red {
		t.Errorf("top-left of composite = %v, want red", got)
	}
	if got := img.RGBAAt(8, 8); got != red {
		t.Errorf("bottom-right of composite = %v, want red", got)
	}
	if got := img.RGBAAt(9, 6); got != black {
		t.Errorf("pixel right of composite = %v, want black", got)
	}
	if got := img.RGBAAt(5, 9); got != black {
		t.Errorf("pixel below composite = %v, want black", got)
	}
}

func TestCompositeAlpha(t *testing.T) {
	c := blackCanvas(4, 4)
	// 50% white, non-premultiplied.
	half := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	draw.Draw(half, half.Bounds(), image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 128}), image.Point{}, draw.Src)
	c.Composite(half, 0, 0)

	got := c.Image().RGBAAt(0, 0)
	if got.A != 255 {
		t.Errorf("alpha = %d, want 255", got.A)
	}
	if got.R < 120 || got.R > 135 {
		t.Errorf("red = %d, want about 128 after 50%% blend", got.R)
	}

	// Fully transparent source leaves the destination alone.
	transparent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	c.Composite(transparent, 2, 2)
	if got := c.Image().RGBAAt(3, 3); got != black {
		t.Errorf("transparent composite changed pixel to %v", got)
	}
}

func TestCompositeIdempotentOpaque(t *testing.T) {
	src := solid(6, 6, color.RGBA{R: 10, G: 200, B: 30, A: 255})

	once := blackCanvas(16, 16)
	once.Composite(src, 3, 4)

	twice := blackCanvas(16, 16)
	twice.Composite(src, 3, 4)
	twice.Composite(src, 3, 4)

	if !bytes.Equal(once.Image().Pix, twice.Image().Pix) {
		t.Error("compositing an opaque image twice differs from once")
	}
}

func TestCompositeClipping(t *testing.T) {
	tests := []struct {
		name   string
		x, y   int
		inside image.Point // a canvas pixel that must be red
		clear  image.Point // a canvas pixel that must stay black
	}{
		{"overhang right", 8, 2, image.Pt(9, 3), image.Pt(7, 3)},
		{"overhang bottom", 2, 8, image.Pt(3, 9), image.Pt(3, 7)},
		{"negative offset", -3, -3, image.Pt(0, 0), image.Pt(2, 2)},
		{"entirely outside", 50, 50, image.Pt(-1, -1), image.Pt(5, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := blackCanvas(10, 10)
			c.Composite(solid(5, 5, red), tt.x, tt.y)

			if c.Bounds() != image.Rect(0, 0, 10, 10) {
				t.Fatalf("canvas bounds changed to %v", c.Bounds())
			}
			if tt.inside.In(c.Bounds()) {
				if got := c.Image().RGBAAt(tt.inside.X, tt.inside.Y); got != red {
					t.Errorf("pixel %v = %v, want red", tt.inside, got)
				}
			}
			if got := c.Image().RGBAAt(tt.clear.X, tt.clear.Y); got != black {
				t.Errorf("pixel %v = %v, want black", tt.clear, got)
			}
		})
	}
}

func TestFromImageRebases(t *testing.T) {
	src := solid(10, 10, red).SubImage(image.Rect(4, 4, 8, 8))
	c := FromImage(src)
	if c.Bounds() != image.Rect(0, 0, 4, 4) {
		t.Errorf("Bounds() = %v, want (0,0)-(4,4)", c.Bounds())
	}
	if got := c.Image().RGBAAt(0, 0); got != red {
		t.Errorf("pixel (0,0) = %v, want red", got)
	}
}

// ///////////////////////////////////////////////
// DrawText
// ///////////////////////////////////////////////

func TestDrawText(t *testing.T) {
	// Mono(8, 5): glyphs are 4x4 blocks at y offset 2, space is blank.
	f := bmfonttest.Mono(8, 5)
	c := blackCanvas(40, 40)

	h, err := c.DrawText(f, 10, 10, "AB", 0)
	if err != nil {
		t.Fatalf("DrawText: %v", err)
	}
	if h != 8 {
		t.Errorf("height = %d, want 8", h)
	}

	img := c.Image()
	checks := []struct {
		x, y int
		want color.RGBA
	}{
		{10, 12, white}, // A top-left
		{13, 15, white}, // A bottom-right
		{14, 13, black}, // gap between A and B
		{15, 12, white}, // B starts one advance later
		{10, 11, black}, // above glyph (y offset)
		{10, 16, black}, // below glyph
		{9, 12, black},  // left of origin
	}
	for _, ck := range checks {
		if got := img.RGBAAt(ck.x, ck.y); got != ck.want {
			t.Errorf("pixel (%d,%d) = %v, want %v", ck.x, ck.y, got, ck.want)
		}
	}
}

func TestDrawTextWrapsLines(t *testing.T) {
	f := bmfonttest.Mono(8, 5)
	c := blackCanvas(60, 60)

	// "aa bb" is 25px; width 20 forces "bb" onto the second line.
	h, err := c.DrawText(f, 0, 0, "aa bb", 20)
	if err != nil {
		t.Fatalf("DrawText: %v", err)
	}
	if h != 16 {
		t.Errorf("height = %d, want 16", h)
	}
	want, _ := layout.MeasureHeight(f, "aa bb", 20)
	if h != want {
		t.Errorf("DrawText height %d != MeasureHeight %d", h, want)
	}

	img := c.Image()
	if got := img.RGBAAt(0, 10); got != white {
		t.Errorf("second line start (0,10) = %v, want white", got)
	}
	if got := img.RGBAAt(15, 2); got != black {
		t.Errorf("first line should stop after \"aa\", (15,2) = %v", got)
	}
}

func TestDrawTextEmpty(t *testing.T) {
	f := bmfonttest.Mono(8, 5)
	c := blackCanvas(10, 10)
	h, err := c.DrawText(f, 0, 0, "   ", 100)
	if err != nil || h != 0 {
		t.Errorf("DrawText(blank) = %d, %v; want 0, nil", h, err)
	}
}

func TestDrawTextClipsAtEdge(t *testing.T) {
	f := bmfonttest.Mono(8, 5)
	c := blackCanvas(12, 12)
	if _, err := c.DrawText(f, 8, 8, "WWWW", 0); err != nil {
		t.Fatalf("DrawText past the edge: %v", err)
	}
	if got := c.Image().RGBAAt(11, 11); got != white {
		t.Errorf("in-bounds glyph pixel = %v, want white", got)
	}
}

func TestDrawTextMissingGlyph(t *testing.T) {
	// No '?' and no space: nothing to fall back to.
	f := bmfonttest.Build(8, map[rune]int{'a': 5}, color.White)

	// A single token never needs the space glyph.
	if _, err := blackCanvas(20, 20).DrawText(f, 0, 0, "a", 0); err != nil {
		t.Fatalf("DrawText(a): %v", err)
	}

	for _, text := range []string{"a b", "aé"} {
		c := blackCanvas(20, 20)
		before := bytes.Clone(c.Image().Pix)
		_, err := c.DrawText(f, 0, 0, text, 0)
		if !errors.Is(err, bmfont.ErrGlyphMissing) {
			t.Fatalf("DrawText(%q) error = %v, want ErrGlyphMissing", text, err)
		}
		if !bytes.Equal(c.Image().Pix, before) {
			t.Errorf("failed DrawText(%q) modified the canvas", text)
		}
	}
}

func TestDrawTextNegativeWidth(t *testing.T) {
	f := bmfonttest.Mono(8, 5)
	_, err := blackCanvas(10, 10).DrawText(f, 0, 0, "x", -10)
	if !errors.Is(err, layout.ErrPrecondition) {
		t.Errorf("error = %v, want ErrPrecondition", err)
	}
}

// ///////////////////////////////////////////////
// Resampler
// ///////////////////////////////////////////////

func encode(t *testing.T, img image.Image, format string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", format, err)
	}
	return buf.Bytes()
}

func TestThumbnailFormats(t *testing.T) {
	src := solid(640, 480, red)
	for _, format := range []string{"png", "jpeg", "gif"} {
		t.Run(format, func(t *testing.T) {
			thumb, err := Thumbnail(encode(t, src, format), 200, 200)
			if err != nil {
				t.Fatalf("Thumbnail: %v", err)
			}
			if thumb.Bounds() != image.Rect(0, 0, 200, 200) {
				t.Errorf("bounds = %v, want 200x200", thumb.Bounds())
			}
		})
	}
}

func TestResizeStretches(t *testing.T) {
	src := solid(30, 10, red)
	dst, err := Resize(src, 7, 50)
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if dst.Bounds().Dx() != 7 || dst.Bounds().Dy() != 50 {
		t.Errorf("size = %v, want 7x50", dst.Bounds().Size())
	}
	if got := dst.RGBAAt(3, 25); got.R < 250 || got.G > 5 || got.A < 250 {
		t.Errorf("center pixel = %v, want red", got)
	}
}

func TestResizeInvalidTarget(t *testing.T) {
	src := solid(4, 4, red)
	for _, sz := range [][2]int{{0, 10}, {10, 0}, {-1, 5}} {
		if _, err := Resize(src, sz[0], sz[1]); !errors.Is(err, layout.ErrPrecondition) {
			t.Errorf("Resize(%dx%d) error = %v, want ErrPrecondition", sz[0], sz[1], err)
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("<html>not an image</html>"), {0x89, 'P', 'N', 'G'}} {
		if _, err := Decode(data); !errors.Is(err, ErrDecode) {
			t.Errorf("Decode(%q) error = %v, want ErrDecode", data, err)
		}
	}
	if _, err := Thumbnail([]byte("junk"), 10, 10); !errors.Is(err, ErrDecode) {
		t.Errorf("Thumbnail(junk) error = %v, want ErrDecode", err)
	}
}

func TestEncodePNG(t *testing.T) {
	c := blackCanvas(3, 2)
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Size() != image.Pt(3, 2) {
		t.Errorf("decoded size = %v, want 3x2", img.Bounds().Size())
	}
}
