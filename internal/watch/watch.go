// Package watch keeps a rendered diagram in sync with a source tree.
// A Watcher re-renders the whole document after Python files change,
// reusing cached blocks for files whose content did not change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/touml/touml/internal/discover"
	"github.com/touml/touml/internal/pipeline"
)

// DefaultDebounce is how long the watcher waits for events to settle before
// rendering.
const DefaultDebounce = 200 * time.Millisecond

// Config holds watcher configuration options.
type Config struct {
	// Root is the directory (or single file) to watch.
	Root string

	// Discover selects the files that make up the document.
	Discover discover.Options

	// Debounce delays rendering after the last relevant event.
	// Defaults to DefaultDebounce.
	Debounce time.Duration

	// IdleTimeout stops the watcher when no relevant change arrives for this
	// long. Zero disables it.
	IdleTimeout time.Duration

	// Write receives every rendered document.
	Write func(doc string) error

	Logger *slog.Logger
}

// Status describes a running watcher.
type Status struct {
	Running      bool
	StartedAt    time.Time
	LastActivity time.Time
	Renders      int
	Files        int
	LastError    error
}

// Watcher re-renders a diagram when its sources change.
type Watcher struct {
	config Config
	conv   *pipeline.Converter
	logger *slog.Logger
	fsw    *fsnotify.Watcher

	// watched holds every directory added to fsw.
	watched map[string]bool

	startedAt    time.Time
	lastActivity time.Time
	renders      int
	files        int
	lastErr      error

	shutdown     chan struct{}
	shutdownOnce sync.Once
	mu           sync.Mutex
}

// New creates a Watcher that renders with conv.
func New(conv *pipeline.Converter, cfg Config) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, errors.New("watch root is required")
	}
	if cfg.Write == nil {
		return nil, errors.New("watch output is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg.Root = root

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Watcher{
		config:   cfg,
		conv:     conv,
		logger:   logger,
		watched:  make(map[string]bool),
		shutdown: make(chan struct{}),
	}, nil
}

// Render discovers the source files, converts them and writes the document.
func (w *Watcher) Render(ctx context.Context) error {
	files, err := discover.Find(w.config.Root, w.config.Discover)
	if err != nil {
		return w.recordRender(0, err)
	}
	res, err := w.conv.ConvertFiles(ctx, files)
	if err != nil {
		return w.recordRender(len(files), err)
	}
	if err := w.config.Write(w.conv.Document(res.Blocks)); err != nil {
		return w.recordRender(len(files), fmt.Errorf("writing diagram: %w", err))
	}
	w.logger.Info("rendered diagram", "files", res.Converted, "classes", len(res.Blocks))
	return w.recordRender(len(files), nil)
}

func (w *Watcher) recordRender(files int, err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = files
	w.lastErr = err
	if err == nil {
		w.renders++
	}
	return err
}

// Run renders once, then watches until ctx is cancelled, Stop is called or
// the idle timeout expires. A failed render (for example a syntax error
// mid-edit) is logged and the previous document is left in place.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	w.mu.Lock()
	if !w.startedAt.IsZero() {
		w.mu.Unlock()
		return errors.New("watcher already running")
	}
	w.fsw = fsw
	w.startedAt = time.Now()
	w.lastActivity = w.startedAt
	w.mu.Unlock()
	defer w.Stop()

	if err := w.addDirs(w.config.Root); err != nil {
		return err
	}
	if err := w.Render(ctx); err != nil {
		w.logger.Error("render failed", "error", err)
	}

	var idle <-chan time.Time
	var idleTimer *time.Timer
	if w.config.IdleTimeout > 0 {
		idleTimer = time.NewTimer(w.config.IdleTimeout)
		defer idleTimer.Stop()
		idle = idleTimer.C
	}

	debounce := time.NewTimer(w.config.Debounce)
	debounce.Stop()
	defer debounce.Stop()
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.shutdown:
			return nil
		case <-idle:
			w.logger.Info("idle timeout reached, stopping", "timeout", w.config.IdleTimeout)
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.handleEvent(ev) {
				continue
			}
			w.touch()
			if idleTimer != nil {
				idleTimer.Reset(w.config.IdleTimeout)
			}
			debounce.Reset(w.config.Debounce)
			pending = debounce.C
		case <-pending:
			pending = nil
			if err := w.Render(ctx); err != nil {
				w.logger.Error("render failed", "error", err)
			}
		}
	}
}

// handleEvent starts watching new directories and reports whether ev should
// trigger a render.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	w.logger.Debug("fs event", "op", ev.Op.String(), "path", ev.Name)

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addDirs(ev.Name); err != nil {
				w.logger.Warn("cannot watch directory", "path", ev.Name, "error", err)
			}
			return true
		}
	}

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		wasDir := w.watched[ev.Name]
		delete(w.watched, ev.Name)
		w.mu.Unlock()
		if wasDir {
			return true
		}
	}

	if ev.Op == fsnotify.Chmod {
		return false
	}
	return w.relevant(ev.Name)
}

// relevant reports whether path is a source file that belongs to the document.
func (w *Watcher) relevant(path string) bool {
	if info, err := os.Stat(w.config.Root); err == nil && !info.IsDir() {
		return path == w.config.Root
	}
	exts := w.config.Discover.Extensions
	if len(exts) == 0 {
		exts = discover.DefaultExtensions
	}
	return slices.Contains(exts, filepath.Ext(path))
}

// addDirs adds root and the directories below it that discovery would visit.
func (w *Watcher) addDirs(root string) error {
	dirs, err := discover.Dirs(root, w.config.Discover)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, dir := range dirs {
		if w.watched[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.watched[dir] = true
	}
	return nil
}

func (w *Watcher) touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActivity = time.Now()
}

// Stop ends Run. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.shutdownOnce.Do(func() {
		close(w.shutdown)
	})
}

// Status returns a snapshot of the watcher's state.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	running := !w.startedAt.IsZero()
	select {
	case <-w.shutdown:
		running = false
	default:
	}
	return Status{
		Running:      running,
		StartedAt:    w.startedAt,
		LastActivity: w.lastActivity,
		Renders:      w.renders,
		Files:        w.files,
		LastError:    w.lastErr,
	}
}

// WriteFile returns a Write function that replaces path with each document.
func WriteFile(path string) func(doc string) error {
	return func(doc string) error {
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, []byte(doc), 0644); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	}
}
