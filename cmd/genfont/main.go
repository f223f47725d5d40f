// genfont rasterizes a TrueType, OpenType or WOFF2 font into an AngelCode
// BMFont: a text .fnt descriptor plus one PNG atlas page, the format
// bannergen draws text with.
//
// Usage:
//
//	genfont -font Cabin-Regular.ttf -size 56
//	genfont -font google:Cabin:500 -size 56 -out fonts/cabin_medium_56
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"tools.zach/dev/bannergen/internal/atomicfile"
	"tools.zach/dev/bannergen/internal/bmfont"
	"tools.zach/dev/bannergen/internal/paths"
	"tools.zach/dev/bannergen/internal/remote"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// options are the parsed command-line flags.
type options struct {
	font       string
	size       int
	out        string
	name       string
	chars      string
	atlasWidth int
	cacheDir   string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("genfont", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.font, "font", "", "font file (.ttf, .otf, .woff2) or google:FAMILY:WEIGHT")
	fs.IntVar(&o.size, "size", 56, "pixel size")
	fs.StringVar(&o.out, "out", "", "output directory (default fonts/<face>_<size>)")
	fs.StringVar(&o.name, "name", "", "file name stem (default: output directory name)")
	fs.StringVar(&o.chars, "chars", "ascii", "character set: ascii or latin1")
	fs.IntVar(&o.atlasWidth, "atlas-width", 1024, "atlas page width in pixels")
	fs.StringVar(&o.cacheDir, "cache", defaultCacheDir(), "download cache for google fonts (empty disables)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.font == "" {
		return o, fmt.Errorf("-font is required")
	}
	if o.size <= 0 {
		return o, fmt.Errorf("-size must be > 0, got %d", o.size)
	}
	if o.chars != "ascii" && o.chars != "latin1" {
		return o, fmt.Errorf("-chars must be ascii or latin1, got %q", o.chars)
	}
	return o, nil
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, paths.BinaryName, "fonts")
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintf(stderr, "genfont: %v\n", err)
		}
		return 2
	}
	descPath, f, err := generate(ctx, o)
	if err != nil {
		fmt.Fprintf(stderr, "genfont: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s (%s %dpx, %d glyphs, line height %d)\n",
		descPath, f.Info().Face, f.Info().Size, f.Len(), f.LineHeight())
	return 0
}

// generate rasterizes the font described by o and writes the descriptor and
// atlas page. It returns the descriptor path and the generated font.
func generate(ctx context.Context, o options) (string, *bmfont.Font, error) {
	client := remote.NewHTTPClient(2, 30*time.Second, nil)
	data, err := loadFontData(ctx, client, o.font, o.cacheDir)
	if err != nil {
		return "", nil, err
	}
	otf, err := opentype.Parse(data)
	if err != nil {
		return "", nil, fmt.Errorf("parse font: %w", err)
	}

	faceName := fontName(otf, o.font)
	face, err := opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    float64(o.size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return "", nil, fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	runes := bmfont.ASCII()
	if o.chars == "latin1" {
		runes = bmfont.Latin1()
	}
	f, atlas, err := bmfont.Rasterize(face, bmfont.Info{Face: faceName, Size: o.size}, runes, o.atlasWidth)
	if err != nil {
		return "", nil, err
	}

	out := o.out
	if out == "" {
		out = paths.Workspace{Root: "."}.FontDir(faceName, o.size)
	}
	name := o.name
	if name == "" {
		name = filepath.Base(filepath.Clean(out))
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", nil, fmt.Errorf("create output dir: %w", err)
	}

	page := name + "_0.png"
	err = atomicfile.WriteFunc(filepath.Join(out, page), 0o644, func(w io.Writer) error {
		return png.Encode(w, atlas)
	})
	if err != nil {
		return "", nil, fmt.Errorf("write atlas: %w", err)
	}
	descPath := filepath.Join(out, name+".fnt")
	err = atomicfile.WriteFunc(descPath, 0o644, func(w io.Writer) error {
		return bmfont.Encode(w, f, []string{page})
	})
	if err != nil {
		return "", nil, fmt.Errorf("write descriptor: %w", err)
	}
	return descPath, f, nil
}

// fontName returns the font's full name, falling back to its family name
// and then to the spec it was loaded from.
func fontName(f *sfnt.Font, spec string) string {
	var buf sfnt.Buffer
	for _, id := range []sfnt.NameID{sfnt.NameIDFull, sfnt.NameIDFamily} {
		if n, err := f.Name(&buf, id); err == nil && strings.TrimSpace(n) != "" {
			return strings.TrimSpace(n)
		}
	}
	if family, weight, ok := parseGoogleSpec(spec); ok {
		return family + " " + weight
	}
	base := filepath.Base(spec)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
