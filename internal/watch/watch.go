// Package watch rebuilds the documentation when its sources change.
package watch

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

	"git.home.luguber.info/inful/docpublish/internal/config"
	"git.home.luguber.info/inful/docpublish/internal/logfields"
	"git.home.luguber.info/inful/docpublish/internal/verify"
)

// RebuildFunc performs one rebuild. Errors are logged and watching continues.
type RebuildFunc func(ctx context.Context) error

// Watcher monitors source trees and single files and triggers debounced rebuilds.
type Watcher struct {
	watcher  *fsnotify.Watcher
	trees    []string
	files    map[string]map[string]bool // dir -> watched file names
	ignore   []string
	debounce time.Duration
	rebuild  RebuildFunc

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	pending bool
	request chan struct{}
}

// Sources returns the inputs of a build: the MkDocs docs directory, the
// package source, the figure folder, the site config and any extra paths.
func Sources(cfg *config.Config, paths config.Paths) []string {
	out := []string{verify.DocsDir(paths.SiteConfig), paths.PackageSource, paths.FigureSource, paths.SiteConfig}
	for _, p := range cfg.Watch.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(paths.Root, p)
		}
		out = append(out, p)
	}
	return out
}

// New creates a watcher over sources. Events below any ignore prefix (the
// output root, for instance) never trigger a rebuild.
func New(sources, ignore []string, debounce time.Duration, rebuild RebuildFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]map[string]bool),
		debounce: debounce,
		rebuild:  rebuild,
		request:  make(chan struct{}, 1),
	}
	for _, p := range ignore {
		w.ignore = append(w.ignore, filepath.Clean(p))
	}

	for _, src := range sources {
		src = filepath.Clean(src)
		info, err := os.Stat(src)
		switch {
		case err != nil:
			slog.Warn("Watch source missing", logfields.Path(src))
		case info.IsDir():
			w.trees = append(w.trees, src)
			w.addTree(src)
		default:
			dir := filepath.Dir(src)
			if w.files[dir] == nil {
				w.files[dir] = make(map[string]bool)
				if err := fw.Add(dir); err != nil {
					slog.Warn("Watch add failed", logfields.Path(dir), logfields.Error(err))
				}
			}
			w.files[dir][filepath.Base(src)] = true
		}
	}
	if len(w.trees) == 0 && len(w.files) == 0 {
		_ = fw.Close()
		return nil, fmt.Errorf("nothing to watch")
	}
	return w, nil
}

// Run processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		_ = w.watcher.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.worker(ctx)
	}()

	slog.Info("Watching for changes", logfields.Count(len(w.trees)+len(w.files)), logfields.Duration(w.debounce))
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			<-done
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !w.relevant(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && w.inTree(ev.Name) {
			w.addTree(ev.Name)
		}
	}
	slog.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	w.trigger()
}

func (w *Watcher) relevant(path string) bool {
	path = filepath.Clean(path)
	for _, prefix := range w.ignore {
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return false
		}
	}
	if shouldIgnoreEvent(path) {
		return false
	}
	if w.inTree(path) {
		return true
	}
	return w.files[filepath.Dir(path)][filepath.Base(path)]
}

func (w *Watcher) inTree(path string) bool {
	for _, t := range w.trees {
		if path == t || strings.HasPrefix(path, t+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				slog.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// trigger (re)starts the debounce timer.
func (w *Watcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.request <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// worker runs one rebuild at a time; requests arriving during a rebuild
// collapse into a single follow-up rebuild.
func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.request:
			w.mu.Lock()
			if w.running {
				w.pending = true
				w.mu.Unlock()
				continue
			}
			w.running = true
			w.mu.Unlock()

			slog.Info("Change detected; rebuilding")
			if err := w.rebuild(ctx); err != nil {
				slog.Warn("Rebuild failed", logfields.Error(err))
			}

			w.mu.Lock()
			w.running = false
			again := w.pending
			w.pending = false
			w.mu.Unlock()
			if again {
				select {
				case w.request <- struct{}{}:
				default:
				}
			}
		}
	}
}

// shouldIgnoreEvent returns true for editor and OS artifacts.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db" || base == "__pycache__" || strings.HasSuffix(base, ".pyc")
}
