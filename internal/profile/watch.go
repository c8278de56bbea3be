// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package profile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last change
// before re-reading the file.
const DefaultDebounce = 200 * time.Millisecond

// =============================================================================
// PROFILE WATCHER
// =============================================================================

// Watcher re-reads a profile file whenever it changes and delivers the
// result on Updates. Only the newest profile is kept if the reader falls
// behind. Files that fail to parse are logged and skipped.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	updates  chan *Profile
	debounce time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// Watch starts watching path. The parent directory is watched so that
// editors which save by renaming a temp file are seen.
func Watch(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profile path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:     absPath,
		watcher:  fsw,
		updates:  make(chan *Profile, 1),
		debounce: DefaultDebounce,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go w.run(ctx)
	return w, nil
}

// Updates delivers freshly parsed profiles.
func (w *Watcher) Updates() <-chan *Profile {
	return w.updates
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("profile watcher error", "error", err)

		case <-timer.C:
			p, err := Load(w.path)
			if err != nil {
				w.logger.Warn("ignoring invalid profile change", "path", w.path, "error", err)
				continue
			}
			w.publish(p)
		}
	}
}

// publish replaces any undelivered profile with p.
func (w *Watcher) publish(p *Profile) {
	select {
	case <-w.updates:
	default:
	}
	w.updates <- p
}
