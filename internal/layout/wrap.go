// Package layout measures and word-wraps text set in fonts with per-glyph
// advance widths and a fixed line height.
//
// Measurement is pure: the same font, text and width always produce the same
// lines, so callers can reserve vertical space with [MeasureHeight] before
// anything is drawn.
package layout

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPrecondition is returned for arguments no layout can satisfy, such as a
// negative wrap width or an empty resize target.
var ErrPrecondition = errors.New("layout precondition")

// Metrics is the subset of a font that layout needs.
type Metrics interface {
	// Advance returns the pen advance for r.
	Advance(r rune) (int, error)
	// LineHeight returns the fixed distance between successive lines.
	LineHeight() int
}

// Line is one wrapped line of text and its rendered width in pixels.
type Line struct {
	Text  string
	Width int
}

// MeasureString returns the sum of the advance widths of the runes in s.
// No kerning is applied.
func MeasureString(m Metrics, s string) (int, error) {
	w := 0
	for _, r := range s {
		a, err := m.Advance(r)
		if err != nil {
			return 0, err
		}
		w += a
	}
	return w, nil
}

// Wrap breaks text into lines no wider than maxWidth.
//
// Text is split into whitespace-delimited tokens and lines are the tokens
// joined by single spaces, so leading, trailing and repeated whitespace does
// not survive. Tokens are added greedily while the line width plus a space
// plus the token stays within maxWidth; a token wider than maxWidth on its
// own occupies a line by itself and overflows.
//
// A maxWidth of zero disables wrapping and yields a single line. A negative
// maxWidth wraps [ErrPrecondition]. Empty or all-whitespace text yields no
// lines.
func Wrap(m Metrics, text string, maxWidth int) ([]Line, error) {
	if maxWidth < 0 {
		return nil, fmt.Errorf("%w: wrap width %d is negative", ErrPrecondition, maxWidth)
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	widths := make([]int, len(words))
	for i, w := range words {
		var err error
		if widths[i], err = MeasureString(m, w); err != nil {
			return nil, err
		}
	}
	space := 0
	if len(words) > 1 {
		var err error
		if space, err = m.Advance(' '); err != nil {
			return nil, err
		}
	}

	if maxWidth == 0 {
		total := space * (len(words) - 1)
		for _, w := range widths {
			total += w
		}
		return []Line{{Text: strings.Join(words, " "), Width: total}}, nil
	}

	var lines []Line
	start, width := 0, widths[0]
	for i := 1; i < len(words); i++ {
		if width+space+widths[i] <= maxWidth {
			width += space + widths[i]
			continue
		}
		lines = append(lines, Line{Text: strings.Join(words[start:i], " "), Width: width})
		start, width = i, widths[i]
	}
	lines = append(lines, Line{Text: strings.Join(words[start:], " "), Width: width})
	return lines, nil
}

// MeasureHeight returns the height text occupies when wrapped at maxWidth:
// the number of lines times the line height.
func MeasureHeight(m Metrics, text string, maxWidth int) (int, error) {
	lines, err := Wrap(m, text, maxWidth)
	if err != nil {
		return 0, err
	}
	return len(lines) * m.LineHeight(), nil
}
