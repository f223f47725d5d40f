package banner

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tools.zach/dev/bannergen/internal/bmfont"
	"tools.zach/dev/bannergen/internal/canvas"
	"tools.zach/dev/bannergen/internal/layout"
)

// ///////////////////////////////////////////////
// Collaborators
// ///////////////////////////////////////////////

// Item is one stacked entry of the banner, such as a recently played track.
// Texts are drawn as given; shaping them to fit is the producer's job.
type Item struct {
	Primary   string
	Secondary string
	ImageRef  string // passed to the [Loader] to fetch the thumbnail
}

// Article is the heading and body drawn once, after all items.
type Article struct {
	Title   string
	Summary string
}

// ItemsFunc returns the items to draw, in top-to-bottom order.
type ItemsFunc func(ctx context.Context) ([]Item, error)

// ArticleFunc returns the article to draw.
type ArticleFunc func(ctx context.Context) (Article, error)

// Loader fetches the raw bytes behind an image reference.
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Sink persists a finished banner.
type Sink interface {
	Write(img image.Image) error
}

// FontPaths names the descriptor files of the three banner fonts.
type FontPaths struct {
	Regular string
	Medium  string
	Small   string
}

// ///////////////////////////////////////////////
// Generator
// ///////////////////////////////////////////////

// Generator renders one banner per [Generator.Run].
type Generator struct {
	Layout     Layout
	Fonts      FontPaths
	Background string // image reference passed to Loader

	Items   ItemsFunc   // nil draws no items
	Article ArticleFunc // nil draws no article
	Loader  Loader
	Sink    Sink

	// MaxParallel bounds concurrent thumbnail fetches. Zero means 4.
	MaxParallel int
}

// Report describes a successful run.
type Report struct {
	Size       image.Point
	Items      int
	Placements []Placement
	Elapsed    time.Duration
}

// Run loads fonts, background, items with their thumbnails and the article
// concurrently, composes the banner and hands it to the sink.
//
// Any load or drawing failure aborts the run and the sink is not called.
// Font failures wrap [bmfont.ErrFontLoad], undecodable images wrap
// [canvas.ErrDecode] and text the fonts cannot draw wraps
// [bmfont.ErrGlyphMissing].
func (g *Generator) Run(ctx context.Context) (*Report, error) {
	if g.Loader == nil || g.Sink == nil {
		return nil, fmt.Errorf("%w: generator needs a loader and a sink", layout.ErrPrecondition)
	}
	if err := g.Layout.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		fonts   Fonts
		bg      image.Image
		items   []Item
		thumbs  []image.Image
		article Article
	)

	eg, ectx := errgroup.WithContext(ctx)
	for _, f := range []struct {
		name string
		path string
		dst  **bmfont.Font
	}{
		{"regular", g.Fonts.Regular, &fonts.Regular},
		{"medium", g.Fonts.Medium, &fonts.Medium},
		{"small", g.Fonts.Small, &fonts.Small},
	} {
		eg.Go(func() error {
			font, err := bmfont.Load(f.path)
			if err != nil {
				return fmt.Errorf("%s font: %w", f.name, err)
			}
			slog.Debug("font loaded", "role", f.name, "path", f.path, "glyphs", font.Len(), "lineHeight", font.LineHeight())
			*f.dst = font
			return nil
		})
	}
	eg.Go(func() error {
		img, err := g.loadImage(ectx, g.Background)
		if err != nil {
			return fmt.Errorf("background: %w", err)
		}
		bg = img
		return nil
	})
	eg.Go(func() error {
		var err error
		items, thumbs, err = g.loadItems(ectx)
		return err
	})
	eg.Go(func() error {
		if g.Article == nil {
			return nil
		}
		a, err := g.Article(ectx)
		if err != nil {
			return fmt.Errorf("article: %w", err)
		}
		article = a
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	c := canvas.FromImage(bg)
	placements, err := Compose(c, fonts, g.Layout, items, thumbs, article)
	if err != nil {
		return nil, err
	}
	if err := g.Sink.Write(c.Image()); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}

	r := &Report{
		Size:       c.Bounds().Size(),
		Items:      len(items),
		Placements: placements,
		Elapsed:    time.Since(start),
	}
	slog.Info("banner rendered", "items", r.Items, "size", fmt.Sprintf("%dx%d", r.Size.X, r.Size.Y), "elapsed", r.Elapsed.Round(time.Millisecond))
	return r, nil
}

// loadItems fetches the item list, then every thumbnail in parallel.
func (g *Generator) loadItems(ctx context.Context) ([]Item, []image.Image, error) {
	if g.Items == nil {
		return nil, nil, nil
	}
	items, err := g.Items(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("items: %w", err)
	}

	thumbs := make([]image.Image, len(items))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.maxParallel())
	for i, it := range items {
		eg.Go(func() error {
			img, err := g.loadImage(ectx, it.ImageRef)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			thumbs[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return items, thumbs, nil
}

func (g *Generator) loadImage(ctx context.Context, ref string) (image.Image, error) {
	data, err := g.Loader.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return canvas.Decode(data)
}

func (g *Generator) maxParallel() int {
	if g.MaxParallel > 0 {
		return g.MaxParallel
	}
	return 4
}
