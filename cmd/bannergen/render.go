package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"tools.zach/dev/bannergen/internal/banner"
	"tools.zach/dev/bannergen/internal/config"
	"tools.zach/dev/bannergen/internal/feed"
	"tools.zach/dev/bannergen/internal/logger"
	"tools.zach/dev/bannergen/internal/paths"
	"tools.zach/dev/bannergen/internal/remote"
	"tools.zach/dev/bannergen/internal/spotify"
	"tools.zach/dev/bannergen/internal/watch"
)

// app carries what survives between renders in watch mode.
type app struct {
	configPath string
	output     string // absolute -out override, "" to use the config
	getenv     func(string) string

	// spotify is reused across renders so its access token is cached.
	spotify *spotify.Client
}

// loadConfig loads the config file and applies command-line overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if a.output != "" {
		cfg.Output = a.output
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}
	return cfg, nil
}

// ///////////////////////////////////////////////
// Rendering
// ///////////////////////////////////////////////

// render draws one banner with cfg and writes it to the configured output.
func (a *app) render(ctx context.Context, cfg *config.Config) (*banner.Report, error) {
	fonts, err := cfg.FontPaths()
	if err != nil {
		return nil, err
	}
	client := remote.NewHTTPClient(cfg.HTTP.Retries, cfg.HTTP.Timeout(), slog.Default())

	g := &banner.Generator{
		Layout:     cfg.Layout.Layout(),
		Fonts:      fonts,
		Background: cfg.Resolve(cfg.Background),
		Items:      a.items(cfg, client),
		Article:    articleSource(cfg.Article, client),
		Loader:     &remote.Loader{Client: client},
		Sink:       banner.PNGFile{Path: cfg.Resolve(cfg.Output)},
	}
	return g.Run(ctx)
}

// items returns the recently-played source, or nil when Spotify is off.
func (a *app) items(cfg *config.Config, client *retryablehttp.Client) banner.ItemsFunc {
	if !cfg.Spotify.Enabled {
		return nil
	}
	sc := a.spotifyClient(cfg, client)
	sp := cfg.Spotify
	return func(ctx context.Context) ([]banner.Item, error) {
		tracks, err := sc.RecentlyPlayed(ctx, sp.Limit)
		if err != nil {
			return nil, err
		}
		return trackItems(tracks, sp.MaxTitle, sp.MaxArtist), nil
	}
}

func (a *app) spotifyClient(cfg *config.Config, client *retryablehttp.Client) *spotify.Client {
	creds := cfg.Credentials(a.getenv)
	sc := a.spotify
	if sc == nil || sc.Creds != creds || sc.TokenURL != cfg.Spotify.TokenURL || sc.APIURL != cfg.Spotify.APIURL {
		sc = &spotify.Client{Creds: creds, TokenURL: cfg.Spotify.TokenURL, APIURL: cfg.Spotify.APIURL}
		a.spotify = sc
	}
	sc.HTTP = client
	return sc
}

// trackItems maps tracks to banner items, shaping titles for display.
func trackItems(tracks []spotify.Track, maxTitle, maxArtist int) []banner.Item {
	items := make([]banner.Item, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, banner.Item{
			Primary:   spotify.ShapeTitle(t.Name, maxTitle),
			Secondary: spotify.Truncate(t.Artist, maxArtist),
			ImageRef:  t.CoverURL,
		})
	}
	return items
}

// articleSource returns the newest feed entry when a feed is configured and
// the static title and summary otherwise.
func articleSource(ac config.ArticleConfig, client *retryablehttp.Client) banner.ArticleFunc {
	if ac.FeedURL == "" {
		static := banner.Article{Title: ac.Title, Summary: ac.Summary}
		return func(context.Context) (banner.Article, error) { return static, nil }
	}
	return func(ctx context.Context) (banner.Article, error) {
		f, err := feed.Fetch(ctx, client, ac.FeedURL)
		if err != nil {
			return banner.Article{}, err
		}
		e, err := f.Latest()
		if err != nil {
			return banner.Article{}, fmt.Errorf("feed %s: %w", ac.FeedURL, err)
		}
		slog.Debug("feed entry", "title", e.Title, "link", e.Link)
		return banner.Article{Title: e.Title, Summary: feed.Clip(e.Summary, ac.MaxSummary)}, nil
	}
}

// ///////////////////////////////////////////////
// Watch Mode
// ///////////////////////////////////////////////

// watch renders immediately, then again on every interval tick and every
// change to the watched files, until ctx is done. Failed renders are logged
// and leave the previous output in place. Changes to the config file are
// picked up on the next render; the interval and the watched files are
// fixed at startup.
func (a *app) watch(ctx context.Context, cfg *config.Config) error {
	lock, err := acquireLock(paths.LockFor(cfg.Resolve(cfg.Output)))
	if err != nil {
		return err
	}
	defer releaseLock(lock)

	w, err := watch.New(cfg.WatchTargets(), watch.Options{})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	if w.Polling() {
		slog.Info("using polling mode for file watching")
	}

	var tick <-chan time.Time
	if iv := cfg.Watch.Interval(); iv > 0 {
		t := time.NewTicker(iv)
		defer t.Stop()
		tick = t.C
	}

	a.renderLogged(ctx, cfg)
	for {
		select {
		case <-ctx.Done():
			slog.Info("received shutdown signal")
			return nil
		case <-w.Events():
			logger.Trace(slog.Default(), "watched files changed")
			if next, err := a.loadConfig(); err != nil {
				slog.Warn("config reload failed, keeping previous config", "error", err)
			} else {
				cfg = next
			}
			a.renderLogged(ctx, cfg)
		case <-tick:
			a.renderLogged(ctx, cfg)
		}
	}
}

func (a *app) renderLogged(ctx context.Context, cfg *config.Config) {
	_, err := a.render(ctx, cfg)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		slog.Debug("render canceled")
	default:
		slog.Error("render failed, keeping previous output", "error", err)
	}
}
