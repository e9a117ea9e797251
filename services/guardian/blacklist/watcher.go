// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package blacklist

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce batches rapid editor write/rename sequences into a single
// reload.
const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the store when its backing file changes on disk. Editors
// and config management tools rewrite files with write+rename sequences, so
// the watcher observes the parent directory and debounces before reloading.
//
// A reload triggered by the store's own persist is harmless: it re-reads the
// generation that was just published.
type Watcher struct {
	store     *Store
	watcher   *fsnotify.Watcher
	debounce  time.Duration
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a watcher for the store's backing file. It fails when
// the store has no backing file to watch.
func NewWatcher(store *Store) (*Watcher, error) {
	if store.path == "" {
		return nil, fmt.Errorf("blacklist store has no backing file to watch")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		store:    store,
		watcher:  fsw,
		debounce: defaultDebounce,
		stopped:  make(chan struct{}),
	}, nil
}

// Start begins watching. It returns after registering the directory watch;
// event handling runs on a background goroutine until Stop or context
// cancellation.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.store.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch blacklist directory %s: %w", dir, err)
	}
	slog.Info("Watching blacklist file for changes", "path", w.store.path)
	go w.loop(ctx)
	return nil
}

// Stop stops the watcher and releases the fsnotify handle. Safe to call more
// than once.
func (w *Watcher) Stop() {
	w.closeOnce.Do(func() {
		close(w.stopped)
		w.watcher.Close()
	})
}

// loop consumes fsnotify events, filters down to the backing file, and
// reloads after a quiet period.
func (w *Watcher) loop(ctx context.Context) {
	var quiet *time.Timer
	var pending <-chan time.Time

	target := filepath.Clean(w.store.path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopped:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if quiet == nil {
				quiet = time.NewTimer(w.debounce)
			} else {
				if !quiet.Stop() {
					select {
					case <-quiet.C:
					default:
					}
				}
				quiet.Reset(w.debounce)
			}
			pending = quiet.C

		case <-pending:
			pending = nil
			w.store.reloadFromFile()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Blacklist watcher error", "error", err)
		}
	}
}
