// Package banner lays out content items and an article on a background
// image and runs the load-compose-write pipeline that produces one banner.
//
// Items are stacked vertically at fixed anchors offset by a constant gap.
// The article title wraps at a fixed width and the summary flows directly
// below it, so the summary position depends on the measured title height.
package banner

import (
	"fmt"
	"image"

	"tools.zach/dev/bannergen/internal/bmfont"
	"tools.zach/dev/bannergen/internal/layout"
)

// Layout holds the anchors and spacing of a banner. All values are pixels
// on the background image.
type Layout struct {
	Cover  image.Point // top-left of the first item's thumbnail
	Name   image.Point // first item's primary text
	Artist image.Point // first item's secondary text
	Gap    int         // vertical distance between successive items

	ThumbSize image.Point // thumbnails are stretched to exactly this size

	Title     image.Point
	WrapWidth int // wrap width of title and summary
	Spacing   int // space between the title block and the summary block
}

// DefaultLayout returns the anchors of the reference 2400-pixel-wide banner.
func DefaultLayout() Layout {
	return Layout{
		Cover:     image.Pt(1990, 203),
		Name:      image.Pt(2220, 222),
		Artist:    image.Pt(2220, 312),
		Gap:       257,
		ThumbSize: image.Pt(200, 200),
		Title:     image.Pt(923, 223),
		WrapWidth: 909,
		Spacing:   14,
	}
}

// Row returns the vertical offset of item i.
func (l Layout) Row(i int) int { return i * l.Gap }

// Validate reports anchors and sizes no banner can be drawn with.
func (l Layout) Validate() error {
	switch {
	case l.ThumbSize.X <= 0 || l.ThumbSize.Y <= 0:
		return fmt.Errorf("%w: thumbnail size %dx%d", layout.ErrPrecondition, l.ThumbSize.X, l.ThumbSize.Y)
	case l.WrapWidth < 0:
		return fmt.Errorf("%w: wrap width %d is negative", layout.ErrPrecondition, l.WrapWidth)
	case l.Gap < 0:
		return fmt.Errorf("%w: item gap %d is negative", layout.ErrPrecondition, l.Gap)
	case l.Spacing < 0:
		return fmt.Errorf("%w: spacing %d is negative", layout.ErrPrecondition, l.Spacing)
	}
	return nil
}

// TextBlock is a run of text drawn with one font, wrapped at MaxWidth
// (zero for a single line) with its first line's top edge at At.
type TextBlock struct {
	Text     string
	Font     *bmfont.Font
	At       image.Point
	MaxWidth int
}

// Height returns the rendered height of the block without drawing it.
func (b TextBlock) Height() (int, error) {
	return layout.MeasureHeight(b.Font, b.Text, b.MaxWidth)
}

// Stack positions blocks in a vertical flow starting at origin: each block
// after the first starts spacing pixels below the bottom of the previous
// one. X positions are all origin.X. The returned heights are the measured
// heights of the placed blocks. blocks is not modified.
func Stack(origin image.Point, spacing int, blocks ...TextBlock) ([]TextBlock, []int, error) {
	placed := make([]TextBlock, len(blocks))
	heights := make([]int, len(blocks))
	at := origin
	for i, b := range blocks {
		b.At = at
		h, err := b.Height()
		if err != nil {
			return nil, nil, err
		}
		placed[i], heights[i] = b, h
		at.Y += h + spacing
	}
	return placed, heights, nil
}
