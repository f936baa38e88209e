// Package workspace turns file changes under the watched directories into
// edit events for the poller.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches directory trees and reports edit times.
type Watcher struct {
	fw     *fsnotify.Watcher
	ignore []string
	events chan time.Time
	logger *slog.Logger
	now    func() time.Time

	closeOnce sync.Once
}

// New watches every directory below paths. Entries whose base name matches
// one of the ignore globs are skipped, including whole directories.
func New(paths, ignore []string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		fw:     fw,
		ignore: ignore,
		events: make(chan time.Time, 1),
		logger: logger,
		now:    time.Now,
	}
	for _, p := range paths {
		if err := w.addTree(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Events delivers one value per burst of edits. Values are dropped while
// the previous one is still unread.
func (w *Watcher) Events() <-chan time.Time { return w.events }

// Watched returns the directories currently watched.
func (w *Watcher) Watched() []string { return w.fw.WatchList() }

// Ignored reports whether any element of path matches an ignore glob.
func (w *Watcher) Ignored(path string) bool {
	for dir := filepath.Clean(path); ; {
		base := filepath.Base(dir)
		for _, pattern := range w.ignore {
			if ok, _ := filepath.Match(pattern, base); ok {
				return true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

func (w *Watcher) addTree(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if !info.IsDir() {
		return w.fw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subdirectories are skipped, not fatal.
			if path != root {
				w.logger.Debug("skip unreadable path", "path", path, "err", err)
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.Ignored(path) {
			return fs.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run forwards edits until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.emit()
				continue
			}
			w.logger.Warn("file watcher error", "err", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	if w.Ignored(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("watch new directory", "path", ev.Name, "err", err)
			}
		}
	}
	w.logger.Debug("edit detected", "path", ev.Name, "op", ev.Op.String())
	w.emit()
}

func (w *Watcher) emit() {
	select {
	case w.events <- w.now():
	default:
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() { err = w.fw.Close() })
	return err
}
