package density

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ReloadFunc observes the outcome of each reload attempt.
type ReloadFunc func(t *Table, err error)

// Watcher reloads a density file into a Store whenever the file changes.
// A file that fails to parse leaves the previous snapshot in place.
type Watcher struct {
	path     string
	store    *Store
	log      *zap.Logger
	debounce time.Duration
	onReload ReloadFunc

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long to wait for writes to settle before reloading.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithReloadHook registers fn to be called after every reload attempt.
func WithReloadHook(fn ReloadFunc) WatcherOption {
	return func(w *Watcher) { w.onReload = fn }
}

func NewWatcher(path string, store *Store, log *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	// Editors often replace the file rather than write it in place, so the
	// directory is watched and events are filtered by name.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		store:    store,
		log:      log,
		debounce: 250 * time.Millisecond,
		watcher:  fw,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run processes file events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	w.log.Info("watching density table", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("density watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.Reload() })
}

// Reload reads the file now and swaps it in on success.
func (w *Watcher) Reload() error {
	t, err := LoadFile(w.path)
	if err != nil {
		w.log.Error("density reload failed, keeping previous table", zap.String("path", w.path), zap.Error(err))
	} else {
		prev := w.store.Swap(t)
		prevVersion := 0
		if prev != nil {
			prevVersion = prev.Version()
		}
		w.log.Info("density table reloaded",
			zap.Int("version", t.Version()),
			zap.Int("previous_version", prevVersion),
			zap.Int("entries", t.Len()),
		)
	}
	if w.onReload != nil {
		w.onReload(t, err)
	}
	return err
}
