// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/pdiddy/paper-digest/internal/cache"
)

// DefaultDebounce is how long changes are collected before indexing.
const DefaultDebounce = 500 * time.Millisecond

// snapshotPattern matches output snapshot file names in the cache dir.
var snapshotPattern = "????-??-??_" + cache.OutputEntity + ".json"

// Watcher reindexes output snapshots as they appear in the cache directory.
type Watcher struct {
	store    *Store
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]bool

	// indexed, when set, is called after each date is indexed.
	indexed func(date string, err error)
}

// NewWatcher creates a watcher over the store's cache directory.
func NewWatcher(store *Store, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		store:    store,
		fsw:      fsw,
		debounce: debounce,
		logger:   logger,
		pending:  make(map[string]bool),
	}, nil
}

// Run watches until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	dir := w.store.cache.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := w.fsw.Add(dir); err != nil {
		w.fsw.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	defer w.fsw.Close()
	w.logger.Info("history watcher started", "dir", dir, "debounce", w.debounce)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("history watcher error", "err", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	name := filepath.Base(ev.Name)
	if ok, _ := doublestar.Match(snapshotPattern, name); !ok {
		return
	}
	w.mu.Lock()
	w.pending[name[:len(cache.DateLayout)]] = true
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	dates := w.pending
	w.pending = make(map[string]bool)
	w.mu.Unlock()

	for date := range dates {
		_, err := w.store.IndexDate(ctx, date)
		if err != nil {
			w.logger.Warn("indexing snapshot failed", "date", date, "err", err)
		} else {
			w.logger.Info("indexed snapshot", "date", date)
		}
		if w.indexed != nil {
			w.indexed(date, err)
		}
	}
}
