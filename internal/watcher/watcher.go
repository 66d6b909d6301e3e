// Package watcher auto-imports video files that appear in watched
// library folders.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/auraclip/auraclip-agent/internal/library"
)

// ImportFunc receives the absolute path of a video file once it has
// settled. Errors are the callee's problem; the watcher moves on.
type ImportFunc func(ctx context.Context, path string)

// Watcher follows registered folders through fsnotify and imports new
// video files once they stop growing. A file being copied or exported
// into a watched folder emits a stream of write events; each one pushes
// the import back by the settle delay, so only finished files reach the
// library.
type Watcher struct {
	fs       *fsnotify.Watcher
	settle   time.Duration
	onSettle ImportFunc
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func New(settle time.Duration, onSettle ImportFunc, logger *slog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{
		fs:       fs,
		settle:   settle,
		onSettle: onSettle,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// AddFolder registers a directory tree. fsnotify watches single
// directories only, so subdirectories are added one by one; hidden
// directories are skipped.
func (w *Watcher) AddFolder(path string) error {
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			w.logger.Warn("failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}

// RemoveFolder drops the directory and everything under it from the
// watch list. Pending settle timers for files inside it are cancelled.
func (w *Watcher) RemoveFolder(path string) {
	prefix := path + string(filepath.Separator)
	for _, watched := range w.fs.WatchList() {
		if watched == path || strings.HasPrefix(watched, prefix) {
			w.fs.Remove(watched)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for file, timer := range w.pending {
		if strings.HasPrefix(file, prefix) {
			timer.Stop()
			delete(w.pending, file)
		}
	}
}

// Start consumes filesystem events until ctx is cancelled. Run it in
// its own goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info("folder watcher started", "settle", w.settle.String())

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.fs.Close()
			w.logger.Info("folder watcher stopped")
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				return
			}
			if err := w.fs.Add(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		w.cancelTimer(ev.Name)
		return
	}

	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
		return
	}
	if !library.IsVideoFile(ev.Name) {
		return
	}
	w.armTimer(ctx, ev.Name)
}

// armTimer schedules the import of path for settle from now. A timer
// that already exists is pushed back instead, so a file still being
// written never fires early.
func (w *Watcher) armTimer(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.logger.Info("watched file settled", "path", path)
		w.onSettle(ctx, path)
	})
}

func (w *Watcher) cancelTimer(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

// PendingCount reports how many files are waiting out their settle
// delay.
func (w *Watcher) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
