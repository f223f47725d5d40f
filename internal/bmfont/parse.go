// parse.go reads BMFont descriptors in the text and XML flavours and
// assembles them, together with their atlas pages, into a [Font].

package bmfont

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"io"
	"strconv"
	"strings"
)

// PageLoader returns the decoded atlas image for a page file name as it
// appears in the descriptor.
type PageLoader func(file string) (image.Image, error)

// descriptor is the format-independent result of reading a .fnt file.
type descriptor struct {
	info       Info
	lineHeight int
	base       int
	scaleW     int
	scaleH     int
	pageCount  int
	pages      map[int]string
	chars      []Glyph
	kernings   map[[2]rune]int
}

func newDescriptor() *descriptor {
	return &descriptor{
		pages:    make(map[int]string),
		kernings: make(map[[2]rune]int),
	}
}

// Parse reads a descriptor from r and loads its pages through load.
// All failures wrap [ErrFontLoad].
func Parse(r io.Reader, load PageLoader) (*Font, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read descriptor: %w", ErrFontLoad, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	trimmed := bytes.TrimSpace(data)

	var d *descriptor
	switch {
	case len(trimmed) == 0:
		return nil, fmt.Errorf("%w: empty descriptor", ErrFontLoad)
	case bytes.HasPrefix(trimmed, []byte("BMF")):
		return nil, fmt.Errorf("%w: binary descriptors are not supported", ErrFontLoad)
	case trimmed[0] == '<':
		d, err = parseXML(trimmed)
	default:
		d, err = parseText(trimmed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFontLoad, err)
	}
	return d.build(load)
}

// build validates the descriptor and loads every referenced page.
func (d *descriptor) build(load PageLoader) (*Font, error) {
	if d.lineHeight <= 0 {
		return nil, fmt.Errorf("%w: lineHeight must be > 0, got %d", ErrFontLoad, d.lineHeight)
	}
	if len(d.chars) == 0 {
		return nil, fmt.Errorf("%w: descriptor defines no chars", ErrFontLoad)
	}
	n := max(d.pageCount, len(d.pages))
	if n == 0 {
		return nil, fmt.Errorf("%w: descriptor references no pages", ErrFontLoad)
	}

	pages := make([]image.Image, n)
	for id := range n {
		file, ok := d.pages[id]
		if !ok || file == "" {
			return nil, fmt.Errorf("%w: page %d not declared", ErrFontLoad, id)
		}
		img, err := load(file)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d (%s): %w", ErrFontLoad, id, file, err)
		}
		pages[id] = img
	}

	glyphs := make(map[rune]Glyph, len(d.chars))
	for _, g := range d.chars {
		if g.Page < 0 || g.Page >= n {
			return nil, fmt.Errorf("%w: char %d references page %d of %d", ErrFontLoad, g.ID, g.Page, n)
		}
		if g.Width < 0 || g.Height < 0 {
			return nil, fmt.Errorf("%w: char %d has negative size", ErrFontLoad, g.ID)
		}
		glyphs[g.ID] = g
	}

	return &Font{
		info:       d.info,
		lineHeight: d.lineHeight,
		base:       d.base,
		scaleW:     d.scaleW,
		scaleH:     d.scaleH,
		glyphs:     glyphs,
		kernings:   d.kernings,
		pages:      pages,
	}, nil
}

// ///////////////////////////////////////////////
// Text Format
// ///////////////////////////////////////////////

// parseText reads the line-oriented format:
//
//	info face="Cabin" size=56 bold=0 italic=0 ...
//	common lineHeight=56 base=45 scaleW=512 scaleH=512 pages=1 ...
//	page id=0 file="cabin-56.png"
//	char id=65 x=0 y=0 width=30 height=40 xoffset=0 yoffset=6 xadvance=31 page=0 chnl=15
//	kerning first=65 second=86 amount=-2
func parseText(data []byte) (*descriptor, error) {
	d := newDescriptor()
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		tag, attrs, err := splitTag(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := d.apply(tag, attrs); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return d, nil
}

// splitTag splits a descriptor line into its tag and key=value attributes.
// Values may be double-quoted and then contain spaces. A quoted value ends at
// a quote followed by whitespace or the end of the line, so exporters that
// write the quote glyph as letter=""" are accepted.
func splitTag(line string) (string, map[string]string, error) {
	tag, rest, _ := strings.Cut(line, " ")
	attrs := make(map[string]string)
	for {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			return tag, attrs, nil
		}
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return "", nil, fmt.Errorf("malformed attribute near %q", rest)
		}
		key := rest[:eq]
		rest = rest[eq+1:]
		var val string
		if strings.HasPrefix(rest, `"`) {
			end := closingQuote(rest[1:])
			if end < 0 {
				return "", nil, fmt.Errorf("unterminated quote in %s", key)
			}
			val = rest[1 : end+1]
			rest = rest[end+2:]
		} else {
			val, rest, _ = strings.Cut(rest, " ")
		}
		attrs[key] = val
	}
}

// closingQuote returns the index in s of the first '"' followed by a space,
// a tab or the end of s, or -1.
func closingQuote(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\t' {
			return i
		}
	}
	return -1
}

// apply records one tag's attributes into the descriptor. Unknown tags and
// attributes are ignored.
func (d *descriptor) apply(tag string, a map[string]string) error {
	ints := func(keys ...string) ([]int, error) {
		out := make([]int, len(keys))
		for i, k := range keys {
			v, ok := a[k]
			if !ok {
				continue
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("%s %s=%q: not an integer", tag, k, v)
			}
			out[i] = n
		}
		return out, nil
	}

	switch tag {
	case "info":
		v, err := ints("size", "bold", "italic")
		if err != nil {
			return err
		}
		d.info = Info{Face: a["face"], Size: abs(v[0]), Bold: v[1] != 0, Italic: v[2] != 0}
	case "common":
		v, err := ints("lineHeight", "base", "scaleW", "scaleH", "pages")
		if err != nil {
			return err
		}
		d.lineHeight, d.base, d.scaleW, d.scaleH, d.pageCount = v[0], v[1], v[2], v[3], v[4]
	case "page":
		v, err := ints("id")
		if err != nil {
			return err
		}
		d.pages[v[0]] = a["file"]
	case "char":
		if _, ok := a["id"]; !ok {
			return fmt.Errorf("char without id")
		}
		v, err := ints("id", "x", "y", "width", "height", "xoffset", "yoffset", "xadvance", "page")
		if err != nil {
			return err
		}
		d.chars = append(d.chars, Glyph{
			ID: rune(v[0]), X: v[1], Y: v[2], Width: v[3], Height: v[4],
			XOffset: v[5], YOffset: v[6], XAdvance: v[7], Page: v[8],
		})
	case "kerning":
		v, err := ints("first", "second", "amount")
		if err != nil {
			return err
		}
		d.kernings[[2]rune{rune(v[0]), rune(v[1])}] = v[2]
	}
	return nil
}

// ///////////////////////////////////////////////
// XML Format
// ///////////////////////////////////////////////

// xmlAttrs captures every attribute of an element so the XML flavour can
// share [descriptor.apply] with the text flavour.
type xmlAttrs struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

func (x xmlAttrs) toMap() map[string]string {
	m := make(map[string]string, len(x.Attrs))
	for _, a := range x.Attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

type xmlFont struct {
	XMLName  xml.Name   `xml:"font"`
	Info     xmlAttrs   `xml:"info"`
	Common   xmlAttrs   `xml:"common"`
	Pages    []xmlAttrs `xml:"pages>page"`
	Chars    []xmlAttrs `xml:"chars>char"`
	Kernings []xmlAttrs `xml:"kernings>kerning"`
}

func parseXML(data []byte) (*descriptor, error) {
	var x xmlFont
	if err := xml.Unmarshal(data, &x); err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	d := newDescriptor()
	if err := d.apply("info", x.Info.toMap()); err != nil {
		return nil, err
	}
	if err := d.apply("common", x.Common.toMap()); err != nil {
		return nil, err
	}
	for _, p := range x.Pages {
		if err := d.apply("page", p.toMap()); err != nil {
			return nil, err
		}
	}
	for _, c := range x.Chars {
		if err := d.apply("char", c.toMap()); err != nil {
			return nil, err
		}
	}
	for _, k := range x.Kernings {
		if err := d.apply("kerning", k.toMap()); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
