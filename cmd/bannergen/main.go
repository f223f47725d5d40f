// Package main implements bannergen, which draws recently played Spotify
// tracks and an article onto a background image with bitmap fonts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	rootpkg "tools.zach/dev/bannergen"
	"tools.zach/dev/bannergen/internal/atomicfile"
	"tools.zach/dev/bannergen/internal/logger"
	"tools.zach/dev/bannergen/internal/paths"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time with -ldflags "-X main.version=0.1.0".
var version = "dev"

// resolveVersion returns [version] when set via ldflags, otherwise a
// "dev+<hash>" tag built from the VCS info the toolchain embeds.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

const usageText = `usage:
  bannergen [render] [-config banner.toml] [-out result.png] [-watch] [-log-level info]
  bannergen init [-config banner.toml] [-force]
  bannergen version
`

// run dispatches a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := "render"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "render":
		return cmdRender(args, stderr)
	case "init":
		return cmdInit(args, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, resolveVersion())
		return 0
	case "help":
		fmt.Fprint(stdout, usageText)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usageText)
		return 2
	}
}

// ///////////////////////////////////////////////
// init
// ///////////////////////////////////////////////

func cmdInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", paths.ConfigFile, "config file to write")
	force := fs.Bool("force", false, "overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := writeDefaultConfig(*configPath, *force); err != nil {
		fmt.Fprintf(stderr, "bannergen: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s\n", *configPath)
	return 0
}

// writeDefaultConfig writes the annotated default config to path. An
// existing file is only replaced when force is set.
func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := atomicfile.Write(path, rootpkg.DefaultConfigTOML, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// ///////////////////////////////////////////////
// render
// ///////////////////////////////////////////////

func cmdRender(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", paths.ConfigFile, "config file")
	out := fs.String("out", "", "output PNG (overrides the config)")
	watchMode := fs.Bool("watch", false, "re-render on an interval and on file changes until interrupted")
	logLevel := fs.String("log-level", "", "log level (overrides the config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return 2
	}

	a := &app{configPath: *configPath, getenv: os.Getenv}
	if *out != "" {
		abs, err := filepath.Abs(*out)
		if err != nil {
			fmt.Fprintf(stderr, "fatal: resolve output: %v\n", err)
			return 1
		}
		a.output = abs
	}

	cfg, err := a.loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}

	levelName := cfg.Log.Level
	if *logLevel != "" {
		levelName = *logLevel
	}
	level, ok := logger.ParseLevel(levelName)
	if !ok {
		fmt.Fprintf(stderr, "fatal: invalid log level %q\n", levelName)
		return 1
	}
	log, logCloser := logger.New(logger.Options{
		Level:     level,
		File:      cfg.Resolve(cfg.Log.File),
		MaxSizeMB: cfg.Log.MaxSizeMB,
	}, stderr)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("bannergen starting", "version", resolveVersion(), "config", cfg.Path())

	ctx, stop := signalContext(context.Background())
	defer stop()

	if *watchMode {
		err = a.watch(ctx, cfg)
	} else {
		_, err = a.render(ctx, cfg)
	}
	if err != nil {
		logger.Fail(log, "render failed", "error", err)
		if cfg.Log.File != "" {
			fmt.Fprintf(stderr, "bannergen: %v\n", err)
		}
		return 1
	}
	return 0
}
