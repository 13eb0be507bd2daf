package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce is how long the watcher waits for file events to settle before
// triggering a refresh.
const Debounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on root and calls onChange once per burst
// of relevant events, after the burst has been quiet for Debounce. It blocks
// until ctx is cancelled.
//
// relevant reports whether an absolute file path belongs to the database.
// Directories created at runtime are added to the watch list and always
// trigger a refresh, as does removing a watched directory.
func Watch(ctx context.Context, root string, logger *slog.Logger, relevant func(path string) bool, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dirs := make(map[string]struct{})
	if err := addDirsRecursive(w, root, dirs); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var refreshTimer *time.Timer
	var refreshCh <-chan time.Time

	scheduleRefresh := func() {
		if refreshTimer == nil {
			refreshTimer = time.NewTimer(Debounce)
			refreshCh = refreshTimer.C
		} else {
			refreshTimer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if refreshTimer != nil {
				refreshTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-refreshCh:
			logger.Debug("watcher: refreshing")
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}

			if ev.Has(fsnotify.Create) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name, dirs); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					scheduleRefresh()
					continue
				}
			}

			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				// Files below a removed directory produce no events of
				// their own.
				if _, ok := dirs[ev.Name]; ok {
					forgetDirs(dirs, ev.Name)
					scheduleRefresh()
					continue
				}
			}

			if !relevant(ev.Name) {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			scheduleRefresh()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher and
// records them in dirs.
func addDirsRecursive(w *fsnotify.Watcher, root string, dirs map[string]struct{}) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return err
		}
		dirs[path] = struct{}{}
		return nil
	})
}

// forgetDirs drops dir and everything below it from dirs. The kernel removes
// the underlying watches itself.
func forgetDirs(dirs map[string]struct{}, dir string) {
	prefix := dir + string(filepath.Separator)
	for d := range dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(dirs, d)
		}
	}
}
