package banner

import (
	"fmt"
	"image"

	"tools.zach/dev/bannergen/internal/bmfont"
	"tools.zach/dev/bannergen/internal/canvas"
	"tools.zach/dev/bannergen/internal/layout"
)

// Fonts are the three faces a banner is set in.
type Fonts struct {
	Regular *bmfont.Font // item names
	Medium  *bmfont.Font // article title
	Small   *bmfont.Font // item artists and article summary
}

func (f Fonts) validate() error {
	if f.Regular == nil || f.Medium == nil || f.Small == nil {
		return fmt.Errorf("%w: font set is incomplete", layout.ErrPrecondition)
	}
	return nil
}

// Kind identifies what a [Placement] holds.
type Kind string

const (
	KindCover   Kind = "cover"
	KindName    Kind = "name"
	KindArtist  Kind = "artist"
	KindTitle   Kind = "title"
	KindSummary Kind = "summary"
)

// Placement records where one element was drawn. Index is the item index
// for item elements and zero for the article.
type Placement struct {
	Kind   Kind
	Index  int
	At     image.Point
	Height int
}

// Compose draws items and article onto c.
//
// Item i's thumbnail, stretched to l.ThumbSize, goes at l.Cover shifted down
// by l.Row(i), with its primary text at l.Name and its secondary text at
// l.Artist shifted the same way. Items are drawn in the order given. The
// article title is wrapped at l.WrapWidth from l.Title and the summary
// flows l.Spacing below it. Empty article fields draw nothing.
//
// thumbs must have one image per item. On error c may be partially drawn
// and must be discarded.
func Compose(c *canvas.Canvas, fonts Fonts, l Layout, items []Item, thumbs []image.Image, article Article) ([]Placement, error) {
	if err := fonts.validate(); err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if len(thumbs) != len(items) {
		return nil, fmt.Errorf("%w: %d thumbnails for %d items", layout.ErrPrecondition, len(thumbs), len(items))
	}

	placements := make([]Placement, 0, 3*len(items)+2)
	for i, it := range items {
		dy := l.Row(i)

		thumb, err := canvas.Resize(thumbs[i], l.ThumbSize.X, l.ThumbSize.Y)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		at := l.Cover.Add(image.Pt(0, dy))
		c.Composite(thumb, at.X, at.Y)
		placements = append(placements, Placement{Kind: KindCover, Index: i, At: at, Height: l.ThumbSize.Y})

		for _, b := range []struct {
			kind Kind
			font *bmfont.Font
			text string
			at   image.Point
		}{
			{KindName, fonts.Regular, it.Primary, l.Name},
			{KindArtist, fonts.Small, it.Secondary, l.Artist},
		} {
			at := b.at.Add(image.Pt(0, dy))
			h, err := c.DrawText(b.font, at.X, at.Y, b.text, 0)
			if err != nil {
				return nil, fmt.Errorf("item %d %s: %w", i, b.kind, err)
			}
			placements = append(placements, Placement{Kind: b.kind, Index: i, At: at, Height: h})
		}
	}

	blocks, _, err := Stack(l.Title, l.Spacing,
		TextBlock{Text: article.Title, Font: fonts.Medium, MaxWidth: l.WrapWidth},
		TextBlock{Text: article.Summary, Font: fonts.Small, MaxWidth: l.WrapWidth},
	)
	if err != nil {
		return nil, fmt.Errorf("article: %w", err)
	}
	for i, kind := range []Kind{KindTitle, KindSummary} {
		b := blocks[i]
		h, err := c.DrawText(b.Font, b.At.X, b.At.Y, b.Text, b.MaxWidth)
		if err != nil {
			return nil, fmt.Errorf("article %s: %w", kind, err)
		}
		placements = append(placements, Placement{Kind: kind, At: b.At, Height: h})
	}
	return placements, nil
}
