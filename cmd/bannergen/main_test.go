package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	rootpkg "tools.zach/dev/bannergen"
	"tools.zach/dev/bannergen/internal/bmfont/bmfonttest"
	"tools.zach/dev/bannergen/internal/config"
	"tools.zach/dev/bannergen/internal/remote"
	"tools.zach/dev/bannergen/internal/spotify"
)

// ///////////////////////////////////////////////
// Fixtures
// ///////////////////////////////////////////////

var (
	bgColor    = color.RGBA{0, 0, 255, 255}
	coverColor = color.RGBA{255, 0, 0, 255}
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// newWorkspace lays out a background, three fonts and a config file using
// a small layout, and returns the config path. extra is appended to the
// config.
func newWorkspace(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "header.png"), solidPNG(t, 600, 300, bgColor), 0o644); err != nil {
		t.Fatal(err)
	}
	for name, f := range map[string]struct{ lh, adv int }{
		"regular": {20, 8},
		"medium":  {20, 8},
		"small":   {16, 6},
	} {
		fontDir := filepath.Join(dir, "fonts", name)
		if err := os.MkdirAll(fontDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if _, err := bmfonttest.WriteFiles(fontDir, name, bmfonttest.Mono(f.lh, f.adv)); err != nil {
			t.Fatal(err)
		}
	}

	cfg := `version = 2
background = "header.png"
output = "out/result.png"

[fonts]
regular = "fonts/regular/*.fnt"
medium = "fonts/medium/*.fnt"
small = "fonts/small/*.fnt"

[layout]
cover = [400, 10]
name = [460, 10]
artist = [460, 40]
gap = 90
thumb_size = [50, 50]
title = [10, 10]
wrap_width = 300
spacing = 4

[http]
retries = 0
timeout_seconds = 5
` + extra
	path := filepath.Join(dir, "banner.toml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return img
}

func rgba(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

// fakeServices serves a cover image, an RSS feed and the two Spotify
// endpoints the renderer uses.
func fakeServices(t *testing.T) *httptest.Server {
	t.Helper()
	cover := solidPNG(t, 64, 64, coverColor)
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("GET /cover.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(cover)
	})
	mux.HandleFunc("GET /rss.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Blog</title>
<item><title>Newest post</title><description>&lt;p&gt;Fresh summary text&lt;/p&gt;</description><link>https://blog.example.com/new</link></item>
<item><title>Older post</title><description>old</description></item>
</channel></rss>`)
	})
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "id" || pass != "secret" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"access_token":"token","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("GET /v1/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			http.Error(w, `{"error":{"status":401}}`, http.StatusUnauthorized)
			return
		}
		type albumImage struct {
			URL string `json:"url"`
		}
		type item struct {
			PlayedAt string `json:"played_at"`
			Track    struct {
				Name    string              `json:"name"`
				Artists []map[string]string `json:"artists"`
				Album   struct {
					Images []albumImage `json:"images"`
				} `json:"album"`
			} `json:"track"`
		}
		var items []item
		for i, name := range []string{"First Song", "Second Song (Live)", "Third Song - Remastered"} {
			var it item
			it.PlayedAt = time.Date(2026, 10, 18, 21, 0, 0, 0, time.UTC).Add(-time.Duration(i) * time.Minute).Format(time.RFC3339)
			it.Track.Name = name
			it.Track.Artists = []map[string]string{{"name": "Artist"}}
			it.Track.Album.Images = []albumImage{{URL: srv.URL + "/cover.png"}}
			items = append(items, it)
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

func TestResolveVersionWithLdflags(t *testing.T) {
	original := version
	defer func() { version = original }()

	version = "1.2.3"
	if got := resolveVersion(); got != "1.2.3" {
		t.Errorf("resolveVersion() = %q, want %q", got, "1.2.3")
	}
}

func TestResolveVersionDev(t *testing.T) {
	got := resolveVersion()
	if !strings.HasPrefix(got, "dev") {
		t.Errorf("resolveVersion() = %q, want dev prefix", got)
	}
}

// ///////////////////////////////////////////////
// Command Dispatch
// ///////////////////////////////////////////////

func TestRunCommands(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		stdout   string
		stderr   string
	}{
		{"version", []string{"version"}, 0, "dev", ""},
		{"help", []string{"help"}, 0, "usage:", ""},
		{"unknown", []string{"publish"}, 2, "", `unknown command "publish"`},
		{"bad flag", []string{"render", "-nope"}, 2, "", "-nope"},
		{"stray args", []string{"render", "extra"}, 2, "", "unexpected arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (stderr %q)", code, tt.wantCode, stderr.String())
			}
			if !strings.Contains(stdout.String(), tt.stdout) {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.stdout)
			}
			if !strings.Contains(stderr.String(), tt.stderr) {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.stderr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site", "banner.toml")
	var stdout, stderr bytes.Buffer

	if code := run([]string{"init", "-config", path}, &stdout, &stderr); code != 0 {
		t.Fatalf("init exit = %d: %s", code, stderr.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, rootpkg.DefaultConfigTOML) {
		t.Error("init did not write the embedded default config")
	}
	if _, err := config.Load(path); err != nil {
		t.Errorf("written config does not load: %v", err)
	}

	os.WriteFile(path, []byte("# mine"), 0o644)
	stderr.Reset()
	if code := run([]string{"init", "-config", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("init over existing file exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "already exists") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if data, _ := os.ReadFile(path); string(data) != "# mine" {
		t.Error("existing config was overwritten without -force")
	}

	if code := run([]string{"init", "-config", path, "-force"}, &stdout, &stderr); code != 0 {
		t.Fatalf("init -force exit = %d", code)
	}
	if data, _ := os.ReadFile(path); !bytes.Equal(data, rootpkg.DefaultConfigTOML) {
		t.Error("-force did not replace the config")
	}
}

// ///////////////////////////////////////////////
// Rendering
// ///////////////////////////////////////////////

func TestRenderStaticArticle(t *testing.T) {
	cfgPath := newWorkspace(t, `
[spotify]
enabled = false

[article]
title = "Static title"
summary = "Static summary"
`)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfgPath}, &stdout, &stderr); code != 0 {
		t.Fatalf("render exit = %d: %s", code, stderr.String())
	}

	img := readPNG(t, filepath.Join(filepath.Dir(cfgPath), "out", "result.png"))
	if got := img.Bounds().Size(); got != image.Pt(600, 300) {
		t.Fatalf("output size = %v, want 600x300", got)
	}
	// Title glyphs start at (10, 10) and fill rows 15-24 of the first line.
	if got := rgba(img, 12, 20); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("title pixel = %v, want white", got)
	}
	if got := rgba(img, 425, 35); got != bgColor {
		t.Errorf("cover slot = %v, want background with Spotify disabled", got)
	}
}

func TestRenderSpotifyAndFeed(t *testing.T) {
	srv := fakeServices(t)
	cfgPath := newWorkspace(t, fmt.Sprintf(`
[spotify]
enabled = true
limit = 3
token_url = %q
api_url = %q

[article]
feed_url = %q
max_summary = 40
`, srv.URL+"/api/token", srv.URL+"/v1", srv.URL+"/rss.xml"))
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "refresh")

	out := filepath.Join(t.TempDir(), "override.png")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"render", "-config", cfgPath, "-out", out, "-log-level", "debug"}, &stdout, &stderr); code != 0 {
		t.Fatalf("render exit = %d: %s", code, stderr.String())
	}

	img := readPNG(t, out)
	for i := range 3 {
		y := 10 + i*90 + 25
		if got := rgba(img, 425, y); got != coverColor {
			t.Errorf("cover %d pixel = %v, want %v", i, got, coverColor)
		}
	}
	if got := rgba(img, 462, 20); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("track name pixel = %v, want white", got)
	}
	if !strings.Contains(stderr.String(), "feed entry") || !strings.Contains(stderr.String(), "Newest post") {
		t.Errorf("expected the newest feed entry in the debug log:\n%s", stderr.String())
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(cfgPath), "out", "result.png")); err == nil {
		t.Error("-out did not replace the configured output")
	}
}

func TestRenderFailureWritesNothing(t *testing.T) {
	srv := fakeServices(t)
	tests := []struct {
		name  string
		extra string
		setup func(t *testing.T)
		want  string
	}{
		{
			name:  "missing credentials",
			extra: fmt.Sprintf("[spotify]\ntoken_url = %q\napi_url = %q\n", srv.URL+"/api/token", srv.URL+"/v1"),
			setup: func(t *testing.T) {
				t.Setenv("SPOTIFY_CLIENT_ID", "")
				t.Setenv("SPOTIFY_CLIENT_SECRET", "")
				t.Setenv("SPOTIFY_REFRESH_TOKEN", "")
			},
			want: "spotify credentials not set",
		},
		{
			name:  "feed not found",
			extra: fmt.Sprintf("[spotify]\nenabled = false\n\n[article]\nfeed_url = %q\n", srv.URL+"/missing.xml"),
			want:  "404",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup(t)
			}
			cfgPath := newWorkspace(t, tt.extra)
			var stdout, stderr bytes.Buffer
			if code := run([]string{"-config", cfgPath}, &stdout, &stderr); code != 1 {
				t.Fatalf("exit = %d, want 1", code)
			}
			if !strings.Contains(stderr.String(), "[FAIL] render failed") || !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("stderr = %q, want FAIL record containing %q", stderr.String(), tt.want)
			}
			if _, err := os.Stat(filepath.Join(filepath.Dir(cfgPath), "out", "result.png")); err == nil {
				t.Error("output written despite failure")
			}
		})
	}
}

func TestRenderBadConfig(t *testing.T) {
	cfgPath := newWorkspace(t, "\n[log]\nlevel = \"loud\"\n")
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfgPath}, &stdout, &stderr); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "log.level") {
		t.Errorf("stderr = %q", stderr.String())
	}

	cfgPath = newWorkspace(t, "\n[spotify]\nenabled = false\n")
	if code := run([]string{"-config", cfgPath, "-log-level", "loud"}, &stdout, &stderr); code != 1 {
		t.Fatalf("bad -log-level exit = %d, want 1", code)
	}
}

// ///////////////////////////////////////////////
// Sources
// ///////////////////////////////////////////////

func TestTrackItems(t *testing.T) {
	tracks := []spotify.Track{
		{Name: "Song B (Remix)", Artist: "Artist B", CoverURL: "b.png"},
		{Name: "A Rather Long Song Title - 2011 Remaster", Artist: "Someone With A Long Name", CoverURL: "c.png"},
	}
	items := trackItems(tracks, 12, 10)
	want := []struct{ primary, secondary, ref string }{
		{"Song B", "Artist B", "b.png"},
		{"A Rather...", "Someone...", "c.png"},
	}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if items[i].Primary != w.primary || items[i].Secondary != w.secondary || items[i].ImageRef != w.ref {
			t.Errorf("item %d = %+v, want %+v", i, items[i], w)
		}
	}
}

func TestArticleSource(t *testing.T) {
	srv := fakeServices(t)
	client := remote.NewHTTPClient(0, 5*time.Second, nil)
	ctx := context.Background()

	static, err := articleSource(config.ArticleConfig{Title: "T", Summary: "S"}, client)(ctx)
	if err != nil || static.Title != "T" || static.Summary != "S" {
		t.Errorf("static article = %+v, %v", static, err)
	}

	got, err := articleSource(config.ArticleConfig{FeedURL: srv.URL + "/rss.xml", Title: "ignored", MaxSummary: 12}, client)(ctx)
	if err != nil {
		t.Fatalf("feed article: %v", err)
	}
	if got.Title != "Newest post" || got.Summary != "Fresh..." {
		t.Errorf("feed article = %+v", got)
	}
}

func TestSpotifyClientReused(t *testing.T) {
	env := map[string]string{"SPOTIFY_CLIENT_ID": "id", "SPOTIFY_CLIENT_SECRET": "secret", "SPOTIFY_REFRESH_TOKEN": "r"}
	a := &app{getenv: func(k string) string { return env[k] }}
	cfg := config.DefaultConfig()

	first := a.spotifyClient(cfg, remote.NewHTTPClient(0, time.Second, nil))
	second := a.spotifyClient(cfg, remote.NewHTTPClient(1, time.Second, nil))
	if first != second {
		t.Error("client rebuilt although credentials are unchanged")
	}

	env["SPOTIFY_REFRESH_TOKEN"] = "rotated"
	if third := a.spotifyClient(cfg, nil); third == first {
		t.Error("client kept after credentials changed")
	}
}

// ///////////////////////////////////////////////
// Watch Mode
// ///////////////////////////////////////////////

func TestAcquireLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.png.lock")
	f, err := acquireLock(path)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	if _, err := acquireLock(path); err == nil {
		t.Fatal("second acquireLock succeeded while the lock is held")
	}
	releaseLock(f)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("lock file still present after release: %v", err)
	}

	again, err := acquireLock(path)
	if err != nil {
		t.Fatalf("acquireLock after release: %v", err)
	}
	releaseLock(again)
}

func TestAcquireLockCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "result.png.lock")
	f, err := acquireLock(path)
	if err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	defer releaseLock(f)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("lock file not created: %v", err)
	}
}

func TestWatchCreatesOutputDir(t *testing.T) {
	cfgPath := newWorkspace(t, "\n[spotify]\nenabled = false\n\n[watch]\ninterval_minutes = 0\n")
	outDir := filepath.Join(filepath.Dir(cfgPath), "out")
	if _, err := os.Stat(outDir); !os.IsNotExist(err) {
		t.Fatalf("output dir exists before watch: %v", err)
	}

	a := &app{configPath: cfgPath, getenv: func(string) string { return "" }}
	cfg, err := a.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.watch(ctx, cfg) }()

	out := filepath.Join(outDir, "result.png")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(out); err == nil {
			break
		}
		select {
		case err := <-done:
			t.Fatalf("watch returned before rendering: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("watch did not render into a new output dir")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestWatchRendersUntilCanceled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow watcher test in short mode")
	}
	cfgPath := newWorkspace(t, "\n[spotify]\nenabled = false\n\n[watch]\ninterval_minutes = 0\n")
	out := filepath.Join(filepath.Dir(cfgPath), "out", "result.png")

	a := &app{configPath: cfgPath, getenv: func(string) string { return "" }}
	cfg, err := a.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.watch(ctx, cfg) }()

	waitFor := func(cond func() bool) bool {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if cond() {
				return true
			}
			time.Sleep(20 * time.Millisecond)
		}
		return false
	}

	if !waitFor(func() bool { _, err := os.Stat(out); return err == nil }) {
		cancel()
		t.Fatal("initial render did not write the output")
	}
	first, _ := os.Stat(out)

	// A config edit triggers a re-render with the new title.
	data, _ := os.ReadFile(cfgPath)
	edited := append(data, "\n[article]\ntitle = \"Changed\"\n"...)
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(cfgPath, edited, 0o644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(func() bool {
		st, err := os.Stat(out)
		return err == nil && !os.SameFile(st, first)
	}) {
		t.Error("config change did not trigger a re-render")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	if _, err := os.Stat(out + ".lock"); !os.IsNotExist(err) {
		t.Error("lock file left behind")
	}
}
