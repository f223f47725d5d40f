package config

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "layout.wrap_width")
// to their [FieldDoc] entries. [Render] uses it to annotate the
// generated banner.default.toml.
var ConfigDocs = map[string]FieldDoc{
	"version": {
		Comment: "Config schema version. Do not edit.",
	},
	"background": {
		Comment: "Image the banner is drawn on. A path relative to this file or an http(s) URL.",
	},
	"output": {
		Comment: "PNG written after a successful render. Replaced atomically.",
	},

	"fonts.regular": {
		Comment: "AngelCode BMFont descriptors (.fnt, text or XML). A glob must match exactly one file.\nGenerate them from a TTF/OTF/WOFF2 with: genfont -font Cabin-Regular.ttf -size 56 -out fonts/cabin_regular_56\n\nregular = track names, medium = article title, small = artists and article summary",
	},
	"fonts.medium": {},
	"fonts.small":  {},

	"layout.cover": {
		Comment: "Anchors are [x, y] in background pixels. Item i is shifted down by i * gap.",
	},
	"layout.name":   {},
	"layout.artist": {},
	"layout.gap":    {},
	"layout.thumb_size": {
		Comment: "Cover art is stretched to exactly this size.",
	},
	"layout.title": {
		Comment: "Article title anchor. The summary starts spacing pixels below the wrapped title.",
	},
	"layout.wrap_width": {
		Comment: "Wrap width of title and summary (0 = never wrap).",
	},
	"layout.spacing": {},

	"spotify.enabled": {
		Comment: "Draw recently played tracks. Credentials come from the environment variables named below.",
	},
	"spotify.limit": {
		Comment: "Number of tracks, 1 to 50.",
	},
	"spotify.max_title": {
		Comment: "Cap track names and artists at this many characters (0 = no cap).\nTrack names are shaped first: \"Song (Remix)\" and \"Song - 2011 Remaster\" both become \"Song\".",
		Alternatives: []string{
			`max_title = 24`,
		},
	},
	"spotify.max_artist":        {},
	"spotify.client_id_env":     {},
	"spotify.client_secret_env": {},
	"spotify.refresh_token_env": {},
	"spotify.api_url": {
		Comment: "Endpoint overrides, for proxies and tests.",
		Alternatives: []string{
			`api_url = "https://api.spotify.com/v1"`,
		},
	},
	"spotify.token_url": {
		Alternatives: []string{
			`token_url = "https://accounts.spotify.com/api/token"`,
		},
	},

	"article.feed_url": {
		Comment: "RSS or Atom feed. When set, its newest entry replaces the static title and summary.",
		Alternatives: []string{
			`feed_url = "https://example.com/rss.xml"`,
		},
	},
	"article.title":   {},
	"article.summary": {},
	"article.max_summary": {
		Comment: "Cap a feed summary at this many characters, cut at a word boundary (0 = no cap).",
	},

	"http.retries": {
		Comment: "Retries after connection errors and 5xx responses.",
	},
	"http.timeout_seconds": {},

	"watch.interval_minutes": {
		Comment: "With -watch, re-render on this interval and whenever the config, background or fonts change.\n0 re-renders on file changes only.",
	},

	"log.level": {
		Comment: "trace, debug, info, warn, or error",
	},
	"log.file": {
		Comment: "Log to a rotating file instead of stderr.",
		Alternatives: []string{
			`file = "bannergen.log"`,
		},
	},
	"log.max_size_mb": {},
}

// ///////////////////////////////////////////////
// Rendering
// ///////////////////////////////////////////////

// RenderDefault renders [DefaultConfig] with [Render].
func RenderDefault() ([]byte, error) {
	return Render(DefaultConfig())
}

// Render encodes c as TOML annotated with [ConfigDocs]: section banners,
// field comments and commented-out alternatives, including documented fields
// the encoder omitted.
func Render(c *Config) ([]byte, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(c); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	out := []string{
		"# ///////////////////////////////////////////////",
		"# bannergen configuration",
		"# ///////////////////////////////////////////////",
		"",
	}

	var section string
	emitted := map[string]bool{}
	emitDoc := func(doc FieldDoc) {
		if doc.Comment == "" {
			return
		}
		for _, cl := range strings.Split(doc.Comment, "\n") {
			out = append(out, strings.TrimRight("# "+cl, " "))
		}
	}

	for _, line := range strings.Split(raw.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[[") {
			out = injectOmitted(out, section, emitted)
			section = strings.Trim(trimmed, "[] ")
			out = append(out, "", fmt.Sprintf("# ///// %s /////", sectionName(section)), "", trimmed)
			continue
		}

		if !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "#") {
			out = append(out, trimmed)
			continue
		}

		key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0])
		full := key
		if section != "" {
			full = section + "." + key
		}
		emitted[full] = true

		doc := ConfigDocs[full]
		emitDoc(doc)
		out = append(out, trimmed)
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
	}
	out = injectOmitted(out, section, emitted)

	return []byte(strings.TrimRight(strings.Join(out, "\n"), "\n") + "\n"), nil
}

// injectOmitted appends commented-out entries for documented keys of section
// that the encoder left out, typically empty omitempty fields.
func injectOmitted(out []string, section string, emitted map[string]bool) []string {
	if section == "" {
		return out
	}
	prefix := section + "."

	var omitted []string
	for path := range ConfigDocs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	sort.Strings(omitted)

	for _, path := range omitted {
		doc := ConfigDocs[path]
		out = append(out, "")
		for _, cl := range strings.Split(doc.Comment, "\n") {
			if cl != "" {
				out = append(out, "# "+cl)
			}
		}
		for _, alt := range doc.Alternatives {
			out = append(out, "# "+alt)
		}
		emitted[path] = true
	}
	return out
}

// sectionName capitalizes the last segment of a section header:
// "spotify" becomes "Spotify".
func sectionName(section string) string {
	parts := strings.Split(section, ".")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	if last == "http" {
		return "HTTP"
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
