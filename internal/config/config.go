// Package config loads banner settings from a TOML file.
//
// Every setting has a default, so a missing file or a file that sets only a
// few keys still yields a complete [Config]. Relative paths in the file are
// resolved against the directory holding it. Spotify credentials are never
// stored in the file; the file names the environment variables to read them
// from.
package config

//go:generate go run ../../cmd/genconfig

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"

	"tools.zach/dev/bannergen/internal/atomicfile"
	"tools.zach/dev/bannergen/internal/banner"
	"tools.zach/dev/bannergen/internal/logger"
	"tools.zach/dev/bannergen/internal/migrate"
	"tools.zach/dev/bannergen/internal/paths"
	"tools.zach/dev/bannergen/internal/spotify"
)

// Default article texts, shown when no feed is configured.
const (
	DefaultArticleTitle   = "Mastering data fetching with React Query and Next.js"
	DefaultArticleSummary = "Learn how React Query simplifies data fetching and caching for you and how it works in tandem with the Next.js pre-rendering methods"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config is the top-level banner configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Background is the image the banner is drawn on: a path or an http(s) URL.
	Background string `toml:"background"`
	// Output is the PNG file written on success.
	Output string `toml:"output"`
	// Fonts names the three BMFont descriptors.
	Fonts FontsConfig `toml:"fonts"`
	// Layout holds anchors and spacing in background pixels.
	Layout LayoutConfig `toml:"layout"`
	// Spotify holds recently-played settings.
	Spotify SpotifyConfig `toml:"spotify"`
	// Article holds the title and summary block settings.
	Article ArticleConfig `toml:"article"`
	// HTTP holds client settings shared by all network fetches.
	HTTP HTTPConfig `toml:"http"`
	// Watch holds watch-mode settings.
	Watch WatchConfig `toml:"watch"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`

	path string // file the config was loaded from, if any
	dir  string // base for relative paths
}

// FontsConfig names font descriptors. Each entry is a path or a glob that
// must match exactly one file.
type FontsConfig struct {
	// Regular sets item names.
	Regular string `toml:"regular"`
	// Medium sets the article title.
	Medium string `toml:"medium"`
	// Small sets item artists and the article summary.
	Small string `toml:"small"`
}

// Point is an [x, y] pair in pixels.
type Point [2]int

func (p Point) image() image.Point { return image.Pt(p[0], p[1]) }

// LayoutConfig mirrors [banner.Layout].
type LayoutConfig struct {
	Cover     Point `toml:"cover"`
	Name      Point `toml:"name"`
	Artist    Point `toml:"artist"`
	Gap       int   `toml:"gap"`
	ThumbSize Point `toml:"thumb_size"`
	Title     Point `toml:"title"`
	WrapWidth int   `toml:"wrap_width"`
	Spacing   int   `toml:"spacing"`
}

// Layout converts the settings to a [banner.Layout].
func (l LayoutConfig) Layout() banner.Layout {
	return banner.Layout{
		Cover:     l.Cover.image(),
		Name:      l.Name.image(),
		Artist:    l.Artist.image(),
		Gap:       l.Gap,
		ThumbSize: l.ThumbSize.image(),
		Title:     l.Title.image(),
		WrapWidth: l.WrapWidth,
		Spacing:   l.Spacing,
	}
}

// SpotifyConfig holds recently-played settings.
type SpotifyConfig struct {
	// Enabled draws recently played tracks. When false no items are drawn.
	Enabled bool `toml:"enabled"`
	// Limit is the number of tracks drawn.
	Limit int `toml:"limit"`
	// MaxTitle caps track names in characters after shaping (0 = no cap).
	MaxTitle int `toml:"max_title"`
	// MaxArtist caps artist names in characters (0 = no cap).
	MaxArtist int `toml:"max_artist"`
	// ClientIDEnv names the environment variable holding the client ID.
	ClientIDEnv string `toml:"client_id_env"`
	// ClientSecretEnv names the environment variable holding the client secret.
	ClientSecretEnv string `toml:"client_secret_env"`
	// RefreshTokenEnv names the environment variable holding the refresh token.
	RefreshTokenEnv string `toml:"refresh_token_env"`
	// TokenURL overrides the accounts endpoint.
	TokenURL string `toml:"token_url,omitempty"`
	// APIURL overrides the Web API base URL.
	APIURL string `toml:"api_url,omitempty"`
}

// ArticleConfig holds the title and summary block settings.
type ArticleConfig struct {
	// FeedURL is an RSS or Atom feed whose newest entry is drawn. When empty
	// the static Title and Summary are drawn instead.
	FeedURL string `toml:"feed_url,omitempty"`
	// Title is the static title.
	Title string `toml:"title"`
	// Summary is the static summary.
	Summary string `toml:"summary"`
	// MaxSummary caps a feed summary in characters (0 = no cap).
	MaxSummary int `toml:"max_summary"`
}

// HTTPConfig holds network client settings.
type HTTPConfig struct {
	// Retries is the number of retries after a failed request.
	Retries int `toml:"retries"`
	// TimeoutSeconds bounds each request attempt.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Timeout returns the per-attempt timeout.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	// IntervalMinutes re-renders on a timer (0 = only on file changes).
	IntervalMinutes int `toml:"interval_minutes"`
}

// Interval returns the re-render interval, zero when disabled.
func (w WatchConfig) Interval() time.Duration {
	return time.Duration(w.IntervalMinutes) * time.Minute
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fail).
	Level string `toml:"level"`
	// File receives log output with rotation. Empty logs to stderr.
	File string `toml:"file,omitempty"`
	// MaxSizeMB is the log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns the reference banner settings.
func DefaultConfig() *Config {
	l := banner.DefaultLayout()
	pt := func(p image.Point) Point { return Point{p.X, p.Y} }
	return &Config{
		Version:    migrate.Config.CurrentVersion,
		Background: paths.DefaultBackground,
		Output:     paths.DefaultOutput,
		Fonts: FontsConfig{
			Regular: fontGlob("Cabin Regular", 56),
			Medium:  fontGlob("Cabin Medium", 56),
			Small:   fontGlob("Cabin Regular", 48),
		},
		Layout: LayoutConfig{
			Cover:     pt(l.Cover),
			Name:      pt(l.Name),
			Artist:    pt(l.Artist),
			Gap:       l.Gap,
			ThumbSize: pt(l.ThumbSize),
			Title:     pt(l.Title),
			WrapWidth: l.WrapWidth,
			Spacing:   l.Spacing,
		},
		Spotify: SpotifyConfig{
			Enabled:         true,
			Limit:           3,
			MaxTitle:        0,
			MaxArtist:       0,
			ClientIDEnv:     "SPOTIFY_CLIENT_ID",
			ClientSecretEnv: "SPOTIFY_CLIENT_SECRET",
			RefreshTokenEnv: "SPOTIFY_REFRESH_TOKEN",
		},
		Article: ArticleConfig{
			Title:   DefaultArticleTitle,
			Summary: DefaultArticleSummary,
		},
		HTTP: HTTPConfig{
			Retries:        2,
			TimeoutSeconds: 10,
		},
		Watch: WatchConfig{
			IntervalMinutes: 10,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// fontGlob matches the descriptor genfont writes for a face and size.
func fontGlob(face string, size int) string {
	return path.Join(paths.FontsDir, paths.FontDirName(face, size), "*.fnt")
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes. A file
// without a version key is taken to be written for the current schema, so
// hand-written files are never rewritten. Unparseable data also reports the
// current version and fails later in [Load] with a parse error.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil || v.Version == 0 {
		return migrate.Config.CurrentVersion
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads the config at path. A missing file yields [DefaultConfig] with
// relative paths resolved against the directory path would live in.
//
// A file from an older schema is migrated, and after it validates it is
// saved back in the current schema with the original kept as path.bak.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(abs)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", abs)
		cfg := DefaultConfig()
		cfg.path, cfg.dir = abs, filepath.Dir(abs)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)
	if version > migrate.Config.CurrentVersion {
		return nil, fmt.Errorf("config version %d is newer than supported version %d", version, migrate.Config.CurrentVersion)
	}
	migrated := migrate.Config.NeedsMigration(version)
	if migrated {
		if err := atomicfile.Write(abs+".bak", data, 0o644); err != nil {
			slog.Warn("failed to write config backup", "error", err)
		}
		data, _, err = migrate.Config.Run(data, version)
		if err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}

	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	for _, key := range md.Undecoded() {
		slog.Warn("unknown config key", "key", key.String(), "path", abs)
	}
	cfg.Version = migrate.Config.CurrentVersion
	cfg.path, cfg.dir = abs, filepath.Dir(abs)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if migrated {
		if err := cfg.Save(abs); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		} else {
			slog.Info("migrated config", "path", abs, "from", version, "to", cfg.Version)
		}
	}
	return cfg, nil
}

// Save writes the config to path as annotated TOML using atomic file write.
func (c *Config) Save(path string) error {
	data, err := Render(c)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, 0o644)
}

// Path returns the file the config was loaded from, or "" for a config
// built in memory.
func (c *Config) Path() string { return c.path }

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Background) == "" {
		return fmt.Errorf("background must be set")
	}
	if !strings.EqualFold(filepath.Ext(c.Output), ".png") {
		return fmt.Errorf("invalid output %q: must be a .png file", c.Output)
	}

	for _, f := range []struct{ role, pattern string }{
		{"regular", c.Fonts.Regular},
		{"medium", c.Fonts.Medium},
		{"small", c.Fonts.Small},
	} {
		if strings.TrimSpace(f.pattern) == "" {
			return fmt.Errorf("fonts.%s must be set", f.role)
		}
		if !doublestar.ValidatePathPattern(f.pattern) {
			return fmt.Errorf("invalid fonts.%s pattern %q", f.role, f.pattern)
		}
	}

	if err := c.Layout.Layout().Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	if c.Spotify.Enabled {
		if c.Spotify.Limit < 1 || c.Spotify.Limit > spotify.MaxLimit {
			return fmt.Errorf("spotify.limit must be between 1 and %d, got %d", spotify.MaxLimit, c.Spotify.Limit)
		}
		if c.Spotify.ClientIDEnv == "" || c.Spotify.ClientSecretEnv == "" || c.Spotify.RefreshTokenEnv == "" {
			return fmt.Errorf("spotify credential environment variable names must be set")
		}
	}
	if c.Spotify.MaxTitle < 0 || c.Spotify.MaxArtist < 0 {
		return fmt.Errorf("spotify.max_title and spotify.max_artist must be >= 0")
	}

	if c.Article.MaxSummary < 0 {
		return fmt.Errorf("article.max_summary must be >= 0, got %d", c.Article.MaxSummary)
	}
	if c.Article.FeedURL != "" && !isURL(c.Article.FeedURL) {
		return fmt.Errorf("invalid article.feed_url %q: must be an http(s) URL", c.Article.FeedURL)
	}

	if c.HTTP.Retries < 0 || c.HTTP.Retries > 10 {
		return fmt.Errorf("http.retries must be between 0 and 10, got %d", c.HTTP.Retries)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0, got %d", c.HTTP.TimeoutSeconds)
	}

	if c.Watch.IntervalMinutes < 0 {
		return fmt.Errorf("watch.interval_minutes must be >= 0, got %d", c.Watch.IntervalMinutes)
	}

	if _, ok := logger.ParseLevel(c.Log.Level); !ok {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, error or fail", c.Log.Level)
	}
	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}
	return nil
}

// ///////////////////////////////////////////////
// Path Resolution
// ///////////////////////////////////////////////

// Resolve returns p relative to the config directory. URLs and absolute
// paths are returned unchanged.
func (c *Config) Resolve(p string) string {
	if p == "" || isURL(p) || strings.HasPrefix(p, "file://") || filepath.IsAbs(p) {
		return p
	}
	if c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// FontPaths resolves the font entries to descriptor files.
func (c *Config) FontPaths() (banner.FontPaths, error) {
	var fp banner.FontPaths
	for _, f := range []struct {
		role    string
		pattern string
		dst     *string
	}{
		{"regular", c.Fonts.Regular, &fp.Regular},
		{"medium", c.Fonts.Medium, &fp.Medium},
		{"small", c.Fonts.Small, &fp.Small},
	} {
		p, err := resolveGlob(c.Resolve(f.pattern))
		if err != nil {
			return banner.FontPaths{}, fmt.Errorf("fonts.%s: %w", f.role, err)
		}
		*f.dst = p
	}
	return fp, nil
}

// resolveGlob returns pattern itself if it has no glob syntax, else the one
// file it matches.
func resolveGlob(pattern string) (string, error) {
	if !hasMeta(pattern) {
		return pattern, nil
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("glob %q: %w", pattern, err)
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("pattern %q matched no files", pattern)
	default:
		return "", fmt.Errorf("pattern %q matched %d files: %s", pattern, len(matches), strings.Join(matches, ", "))
	}
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

// Credentials reads the Spotify credentials from the environment variables
// the config names. getenv is usually [os.Getenv].
func (c *Config) Credentials(getenv func(string) string) spotify.Credentials {
	return spotify.Credentials{
		ClientID:     strings.TrimSpace(getenv(c.Spotify.ClientIDEnv)),
		ClientSecret: strings.TrimSpace(getenv(c.Spotify.ClientSecretEnv)),
		RefreshToken: strings.TrimSpace(getenv(c.Spotify.RefreshTokenEnv)),
	}
}

// WatchTargets returns the files and glob patterns whose changes should
// trigger a re-render: the config file, a local background and each font
// directory.
func (c *Config) WatchTargets() []string {
	var targets []string
	if c.path != "" {
		targets = append(targets, c.path)
	}
	if bg := c.Resolve(c.Background); !isURL(bg) {
		targets = append(targets, strings.TrimPrefix(bg, "file://"))
	}
	for _, p := range []string{c.Fonts.Regular, c.Fonts.Medium, c.Fonts.Small} {
		dir, _ := doublestar.SplitPattern(filepath.ToSlash(c.Resolve(p)))
		if hasMeta(dir) {
			continue
		}
		targets = append(targets, filepath.Join(filepath.FromSlash(dir), "*"))
	}
	return targets
}

func isURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
