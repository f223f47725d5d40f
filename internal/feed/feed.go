// Package feed reads the newest post of a blog from its RSS 2.0 or Atom
// feed and reduces it to plain text suitable for a bitmap font.
package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html/charset"

	"tools.zach/dev/bannergen/internal/remote"
)

const maxFeedBytes = 5 << 20

var (
	// ErrFormat is returned for documents that are neither RSS nor Atom.
	ErrFormat = errors.New("not an RSS or Atom feed")
	// ErrEmpty is returned by [Feed.Latest] when the feed has no entries.
	ErrEmpty = errors.New("feed has no entries")
)

// Feed is a parsed feed with its entries in document order.
type Feed struct {
	Title   string
	Entries []Entry
}

// Entry is one post. Text fields are plain text with HTML removed.
type Entry struct {
	Title     string
	Summary   string
	Link      string
	Published time.Time // zero if the feed gives no parseable date
}

// Latest returns the first entry. Feeds list their newest post first.
func (f *Feed) Latest() (Entry, error) {
	if len(f.Entries) == 0 {
		return Entry{}, ErrEmpty
	}
	return f.Entries[0], nil
}

// Fetch downloads and parses the feed at url.
func Fetch(ctx context.Context, client *retryablehttp.Client, url string) (*Feed, error) {
	data, err := remote.Get(ctx, client, url, maxFeedBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("feed %s: %w", url, err)
	}
	return f, nil
}

// Parse decodes an RSS 2.0 or Atom document. The summary of an entry is
// its description (RSS) or summary (Atom), falling back to the full content
// when that is empty.
func Parse(data []byte) (*Feed, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}
	switch root {
	case "rss":
		var doc rssDoc
		if err := decode(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing rss: %w", err)
		}
		return doc.feed(), nil
	case "feed":
		var doc atomDoc
		if err := decode(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing atom: %w", err)
		}
		return doc.feed(), nil
	default:
		return nil, fmt.Errorf("%w: root element <%s>", ErrFormat, root)
	}
}

// newDecoder returns a lenient decoder: feeds in the wild use HTML
// entities and non-UTF-8 encodings.
func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

func decode(data []byte, v any) error {
	return newDecoder(data).Decode(v)
}

// rootElement returns the local name of the document element.
func rootElement(data []byte) (string, error) {
	dec := newDecoder(data)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", fmt.Errorf("%w: no root element", ErrFormat)
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrFormat, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

// ///////////////////////////////////////////////
// RSS 2.0
// ///////////////////////////////////////////////

type rssDoc struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Content     string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	PubDate     string `xml:"pubDate"`
}

func (d *rssDoc) feed() *Feed {
	f := &Feed{Title: Text(d.Channel.Title)}
	for _, it := range d.Channel.Items {
		f.Entries = append(f.Entries, Entry{
			Title:     Text(it.Title),
			Summary:   firstText(it.Description, it.Content),
			Link:      strings.TrimSpace(it.Link),
			Published: parseTime(it.PubDate, time.RFC1123Z, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700", "Mon, 2 Jan 2006 15:04:05 MST"),
		})
	}
	return f
}

// ///////////////////////////////////////////////
// Atom
// ///////////////////////////////////////////////

type atomDoc struct {
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

func (d *atomDoc) feed() *Feed {
	f := &Feed{Title: Text(d.Title)}
	for _, e := range d.Entries {
		published := e.Published
		if strings.TrimSpace(published) == "" {
			published = e.Updated
		}
		f.Entries = append(f.Entries, Entry{
			Title:     Text(e.Title),
			Summary:   firstText(e.Summary, e.Content),
			Link:      e.alternate(),
			Published: parseTime(published, time.RFC3339Nano, time.RFC3339),
		})
	}
	return f
}

// alternate returns the entry's alternate link, or its first link.
func (e *atomEntry) alternate() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(e.Links) > 0 {
		return e.Links[0].Href
	}
	return ""
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

func firstText(candidates ...string) string {
	for _, c := range candidates {
		if t := Text(c); t != "" {
			return t
		}
	}
	return ""
}

func parseTime(s string, layouts ...string) time.Time {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
