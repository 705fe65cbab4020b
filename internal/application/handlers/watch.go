package handlers

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for more changes before firing.
const DefaultDebounce = 500 * time.Millisecond

// watchedExtensions are the record and rule file types that trigger a re-run.
var watchedExtensions = map[string]bool{
	".jsonl": true, ".ndjson": true, ".json": true, ".csv": true,
	".yaml": true, ".yml": true,
}

// ChangeFunc is called with the files changed since the last call.
type ChangeFunc func(ctx context.Context, changed []string) error

// Watcher watches input and rule paths and reports debounced changes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op
}

// NewWatcher watches the directories behind paths, which may be files,
// directories or glob patterns. Directories are watched recursively.
func NewWatcher(paths []string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]fsnotify.Op),
	}

	for _, root := range watchRoots(paths) {
		if err := w.addRecursive(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	if len(w.fsw.WatchList()) == 0 {
		fsw.Close()
		return nil, fmt.Errorf("nothing to watch in %s", strings.Join(paths, " "))
	}

	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers changes to fn until ctx is done. Errors from fn are logged.
func (w *Watcher) Run(ctx context.Context, fn ChangeFunc) error {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-ticker.C:
			changed := w.flushPending()
			if len(changed) == 0 {
				continue
			}
			w.logger.Info("change detected", zap.Strings("files", changed))
			if err := fn(ctx, changed); err != nil {
				w.logger.Error("re-run failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
			}
			return
		}
	}

	if !watchedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	if event.Op == fsnotify.Chmod {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] |= event.Op
	w.pendingMu.Unlock()
}

func (w *Watcher) flushPending() []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}

	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	w.pending = make(map[string]fsnotify.Op)

	slices.Sort(changed)
	return changed
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// watchRoots maps files to their directory and glob patterns to their static prefix.
func watchRoots(paths []string) []string {
	seen := make(map[string]bool)
	var roots []string

	for _, p := range paths {
		root := p
		if IsGlobPattern(p) {
			base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
			root = filepath.FromSlash(base)
		} else if !IsDirectory(p) {
			root = filepath.Dir(p)
		}

		abs, err := filepath.Abs(root)
		if err != nil || !IsDirectory(abs) || seen[abs] {
			continue
		}
		seen[abs] = true
		roots = append(roots, abs)
	}

	return roots
}
