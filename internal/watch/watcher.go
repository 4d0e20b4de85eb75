// Package watch reports note changes made to the wiki tree by other
// programs.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/subwiki/internal/storage"
)

// Event kinds passed to the callback.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// EventCallback receives one settled change. rel is slash-separated and
// relative to the wiki root.
type EventCallback func(kind, rel string)

// Option configures Watch.
type Option func(*options)

type options struct {
	ext      string
	debounce time.Duration
}

// WithExtension limits events to files ending in ext (default ".md").
func WithExtension(ext string) Option {
	return func(o *options) { o.ext = ext }
}

// WithDebounce sets how long a path must stay quiet before its change is
// delivered (default 200ms). Each path is timed on its own.
func WithDebounce(d time.Duration) Option {
	return func(o *options) { o.debounce = d }
}

// Watch starts an fsnotify watcher on root and delivers note changes to cb
// until ctx is cancelled. Bursts of events on one path collapse into a single
// callback once the path has been quiet for the debounce interval.
//
// New directories created at runtime are automatically added to the watch
// list, and notes already inside them are reported as created.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb EventCallback, opts ...Option) error {
	o := options{ext: ".md", debounce: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	// Each path has its own timer; a firing carries the generation it was
	// armed for so a stale firing after a reset is ignored.
	type firing struct {
		rel string
		gen uint64
	}
	type entry struct {
		kind  string
		gen   uint64
		timer *time.Timer
	}
	pending := make(map[string]*entry)
	ready := make(chan firing)
	done := make(chan struct{})
	defer close(done)
	var gen uint64

	schedule := func(kind, rel string) {
		e, ok := pending[rel]
		if !ok {
			e = &entry{}
			pending[rel] = e
		} else {
			e.timer.Stop()
		}
		e.kind = merge(e.kind, kind)
		gen++
		e.gen = gen
		f := firing{rel: rel, gen: e.gen}
		e.timer = time.AfterFunc(o.debounce, func() {
			select {
			case ready <- f:
			case <-done:
			}
		})
	}

	isNote := func(abs string) bool {
		base := filepath.Base(abs)
		return strings.HasSuffix(base, o.ext) && !strings.HasPrefix(base, storage.TmpPrefix)
	}

	relOf := func(abs string) (string, bool) {
		rel, err := filepath.Rel(root, abs)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", false
		}
		return filepath.ToSlash(rel), true
	}

	for {
		select {
		case <-ctx.Done():
			for _, e := range pending {
				e.timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case f := <-ready:
			e, ok := pending[f.rel]
			if !ok || e.gen != f.gen {
				continue
			}
			delete(pending, f.rel)
			if e.kind == "" {
				continue
			}
			logger.Debug("watcher: change", slog.String("path", f.rel), slog.String("op", e.kind))
			cb(e.kind, f.rel)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// --- Handle new directories: add to watcher ---
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					_ = filepath.WalkDir(absPath, func(p string, d fs.DirEntry, err error) error {
						if err != nil || d.IsDir() || !isNote(p) {
							return nil
						}
						if rel, ok := relOf(p); ok {
							schedule(Created, rel)
						}
						return nil
					})
					continue
				}
			}

			if !isNote(absPath) {
				continue
			}
			rel, ok := relOf(absPath)
			if !ok {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				schedule(Created, rel)
			case ev.Op&fsnotify.Write != 0:
				schedule(Updated, rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the old path only; the new path
				// arrives as a separate Create.
				schedule(Deleted, rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// merge folds a new event into the pending one for the same path. A note
// created and removed within one window produces nothing.
func merge(prev, next string) string {
	switch {
	case prev == "":
		return next
	case prev == Created && next == Deleted:
		return ""
	case prev == Created:
		return Created
	case prev == Deleted && next != Deleted:
		return Updated
	default:
		return next
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
