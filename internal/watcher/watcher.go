// Package watcher reports files that land in watched folders, once their writes settle.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// partialSuffixes mark files still being written by browsers and download tools.
var partialSuffixes = []string{".part", ".crdownload", ".download", ".tmp", "~"}

// Options selects what to watch.
type Options struct {
	Roots      []string
	Extensions []string // empty means every file
	Recursive  bool
	// ScanExisting reports files already present when Run starts.
	ScanExisting bool
	Debounce     time.Duration
}

// ReadyFunc is called once per settled file. Calls may run concurrently for different paths.
type ReadyFunc func(ctx context.Context, path string)

// Watcher watches folders with fsnotify and debounces writes per path.
type Watcher struct {
	opts    Options
	onReady ReadyFunc
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	fsw     *fsnotify.Watcher
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher calling onReady for every settled matching file.
func New(opts Options, onReady ReadyFunc, o ...Option) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	w := &Watcher{
		opts:    opts,
		onReady: onReady,
		logger:  zap.NewNop(),
		pending: make(map[string]*time.Timer),
	}
	for _, opt := range o {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. Missing roots are created. It returns after every
// pending callback has finished.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		for path, t := range w.pending {
			if t.Stop() {
				w.wg.Done()
			}
			delete(w.pending, path)
		}
		w.fsw = nil
		w.mu.Unlock()
		w.wg.Wait()
		_ = fsw.Close()
	}()

	for _, root := range w.opts.Roots {
		if err := w.addRoot(fsw, root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}
	w.logger.Debug("watcher started",
		zap.Strings("roots", w.opts.Roots),
		zap.Strings("extensions", w.opts.Extensions),
		zap.Bool("recursive", w.opts.Recursive))

	if w.opts.ScanExisting {
		for _, root := range w.opts.Roots {
			w.scan(ctx, root)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) addRoot(fsw *fsnotify.Watcher, root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	if !w.opts.Recursive {
		return fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(ctx, path)
			return
		}
		if w.wants(path) {
			w.schedule(ctx, path)
		}
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancel(path)
	}
}

// handleNewDirectory watches a folder moved or created under a root and reports its files.
func (w *Watcher) handleNewDirectory(ctx context.Context, dir string) {
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil || !w.opts.Recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
			return nil
		}
		if w.wants(path) {
			w.schedule(ctx, path)
		}
		return nil
	})
}

func (w *Watcher) scan(ctx context.Context, root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !w.opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if w.wants(path) {
			w.deliver(ctx, path)
		}
		return nil
	})
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}
	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.opts.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, path)
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) deliver(ctx context.Context, path string) {
	w.logger.Debug("watcher file ready", zap.String("path", path))
	if w.onReady != nil {
		w.onReady(ctx, path)
	}
}

func (w *Watcher) wants(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	lower := strings.ToLower(base)
	for _, s := range partialSuffixes {
		if strings.HasSuffix(lower, s) {
			return false
		}
	}
	return matchExtension(path, w.opts.Extensions)
}

func (w *Watcher) underRoot(path string) bool {
	clean := filepath.Clean(path)
	for _, root := range w.opts.Roots {
		if inDir(filepath.Clean(root), clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
