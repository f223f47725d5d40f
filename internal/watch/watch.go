// Package watch signals when any of a set of files changes.
//
// Targets are file paths or doublestar patterns. The watcher listens on each
// target's parent directory rather than the file itself, so editors and
// atomic writers that replace a file by rename are still seen. Bursts of
// changes are debounced into a single signal. When native notifications are
// unavailable or fail, the watcher falls back to polling modification times.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Defaults for [Options].
const (
	DefaultDebounce     = 250 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
)

// Options tunes a [Watcher]. Zero values select the defaults.
type Options struct {
	Debounce     time.Duration
	PollInterval time.Duration
	// Poll skips native notifications.
	Poll bool
}

// Watcher delivers a signal on [Watcher.Events] after targets change.
type Watcher struct {
	targets []string
	dirs    []string
	opts    Options

	// events is buffered to 1 so changes made while the receiver is busy
	// coalesce into one pending signal.
	events chan struct{}
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	polling atomic.Bool
}

// New starts watching targets. Relative targets are made absolute.
func New(targets []string, opts Options) (*Watcher, error) {
	if len(targets) == 0 {
		return nil, errors.New("watch: no targets")
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	w := &Watcher{
		opts:   opts,
		events: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, t := range targets {
		abs, err := filepath.Abs(t)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", t, err)
		}
		if !doublestar.ValidatePathPattern(abs) {
			return nil, fmt.Errorf("watch %s: %w", t, doublestar.ErrBadPattern)
		}
		if slices.Contains(w.targets, abs) {
			continue
		}
		w.targets = append(w.targets, abs)
		if dir := baseDir(abs); !slices.Contains(w.dirs, dir) {
			w.dirs = append(w.dirs, dir)
		}
	}

	if opts.Poll {
		w.startPolling("polling requested", nil)
		return w, nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.startPolling("fsnotify unavailable, falling back to polling", err)
		return w, nil
	}
	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			w.startPolling("cannot watch directory, falling back to polling", fmt.Errorf("%s: %w", dir, err))
			return w, nil
		}
	}
	w.fsw = fsw
	go w.watch(fsw)
	return w, nil
}

// baseDir returns the directory holding the static prefix of pattern.
func baseDir(pattern string) string {
	base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
	return filepath.FromSlash(base)
}

// Events returns the channel that receives a signal after targets change.
func (w *Watcher) Events() <-chan struct{} { return w.events }

// Polling reports whether the watcher polls instead of using notifications.
func (w *Watcher) Polling() bool { return w.polling.Load() }

// Targets returns the absolute targets being watched.
func (w *Watcher) Targets() []string { return slices.Clone(w.targets) }

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.fsw != nil {
			if cerr := w.fsw.Close(); cerr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", cerr)
			}
			w.fsw = nil
		}
	})
	return err
}

// matches reports whether path is one of the targets or matched by one.
func (w *Watcher) matches(path string) bool {
	for _, t := range w.targets {
		if t == path {
			return true
		}
		if ok, _ := doublestar.PathMatch(t, path); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Op&relevant == 0 || !w.matches(ev.Name) {
				continue
			}
			slog.Debug("watched file changed", "path", ev.Name, "op", ev.Op.String())
			if debounce == nil {
				debounce = time.AfterFunc(w.opts.Debounce, w.notify)
			} else {
				debounce.Reset(w.opts.Debounce)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			if w.fsw == fsw {
				fsw.Close()
				w.fsw = nil
			}
			w.mu.Unlock()
			w.startPolling("fsnotify error, switching to polling", err)
			return
		}
	}
}

func (w *Watcher) startPolling(msg string, err error) {
	if err != nil {
		slog.Info(msg, "error", err)
	} else {
		slog.Debug(msg)
	}
	w.polling.Store(true)
	go w.poll()
}

// snapshot summarizes the targets' current state: the number of files they
// match and the newest modification time among them.
type snapshot struct {
	files  int
	latest time.Time
}

func (w *Watcher) snapshot() snapshot {
	var s snapshot
	add := func(path string) {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			return
		}
		s.files++
		if info.ModTime().After(s.latest) {
			s.latest = info.ModTime()
		}
	}
	for _, t := range w.targets {
		matches, err := doublestar.FilepathGlob(t, doublestar.WithFilesOnly())
		if err != nil {
			continue
		}
		for _, m := range matches {
			add(m)
		}
	}
	return s
}

func (w *Watcher) poll() {
	last := w.snapshot()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if cur := w.snapshot(); cur.files != last.files || !cur.latest.Equal(last.latest) {
				last = cur
				w.notify()
			}
		}
	}
}

// notify sends one signal unless one is already pending.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
