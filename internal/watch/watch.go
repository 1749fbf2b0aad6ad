// Package watch turns filesystem notifications under the source tools'
// log directories into invalidations for the engine's live loop.
//
// The watcher is enqueue-only: it matches paths against the registered
// decoders' patterns but never decodes. Repeated events for one path
// collapse into a single invalidation delivered once the path has been
// quiet for the debounce window. A notification queue overflow degrades
// to one rescan invalidation telling the engine to run full discovery.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Piebald-AI/splitrail/internal/decoder"
	"github.com/Piebald-AI/splitrail/pkg/errclass"
	"github.com/Piebald-AI/splitrail/pkg/logging"
)

// Kind classifies an invalidation.
type Kind string

const (
	// KindPath marks one file as possibly stale.
	KindPath Kind = "path"
	// KindRescan marks the whole corpus: the watcher lost events and
	// per-path tracking is no longer trustworthy.
	KindRescan Kind = "rescan"
)

// Invalidation asks the engine to reconcile cached state.
type Invalidation struct {
	Path string
	Kind Kind
}

// Watcher owns the fsnotify instance and the per-path debounce timers.
type Watcher struct {
	fsw      *fsnotify.Watcher
	debounce time.Duration
	out      chan Invalidation
	done     chan struct{}
	roots    []string

	mu     sync.Mutex
	timers map[string]*time.Timer

	closeOnce sync.Once
}

// Start watches every registered decoder's directories, recursively.
// It returns E_WATCH_UNAVAILABLE when notifications cannot be
// established or no source directory exists to watch; callers degrade
// to on-demand refresh. The watcher runs until ctx is cancelled or
// Close is called.
func Start(ctx context.Context, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errclass.ErrWatchUnavailable.WithMessagef("create watcher: %v", err)
	}
	w := &Watcher{
		fsw:      fsw,
		debounce: debounce,
		out:      make(chan Invalidation, 256),
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}
	for _, d := range decoder.All() {
		dirs, err := d.WatchDirs()
		if err != nil {
			continue
		}
		for _, dir := range dirs {
			if err := w.addTree(dir); err != nil {
				logging.Warn("cannot watch source directory", map[string]any{"dir": dir, "error": err.Error()})
				continue
			}
			w.roots = append(w.roots, dir)
		}
	}
	if len(w.roots) == 0 {
		fsw.Close()
		return nil, errclass.ErrWatchUnavailable.WithMessage("no source directories to watch")
	}
	go w.run(ctx)
	return w, nil
}

// Invalidations is the delivery channel. It is never closed; stop
// consuming once the watcher's context is cancelled.
func (w *Watcher) Invalidations() <-chan Invalidation { return w.out }

// Roots lists the directory roots being watched.
func (w *Watcher) Roots() []string {
	out := make([]string, len(w.roots))
	copy(out, w.roots)
	return out
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	return w.fsw.Close()
}

// addTree watches root and every directory below it. A failure on root
// itself is returned; deeper failures are skipped.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil && path == root {
			return err
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer w.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.send(ctx, Invalidation{Kind: KindRescan})
				continue
			}
			logging.Warn("watch error", map[string]any{"error": err.Error()})
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.addCreatedDir(ev.Name)
			return
		}
	}
	if _, ok := decoder.ForPath(ev.Name); !ok {
		return
	}
	w.bump(ev.Name)
}

// addCreatedDir starts watching a directory that appeared under a
// watched root. Matching files already inside are invalidated: they may
// have been written before the watch covered them.
func (w *Watcher) addCreatedDir(dir string) {
	if err := w.addTree(dir); err != nil {
		logging.Warn("cannot watch new directory", map[string]any{"dir": dir, "error": err.Error()})
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if _, ok := decoder.ForPath(path); ok {
			w.bump(path)
		}
		return nil
	})
}

// bump starts or extends the debounce window for path.
func (w *Watcher) bump(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.send(nil, Invalidation{Path: path, Kind: KindPath})
	})
}

// send delivers inv, giving up when the watcher shuts down. ctx may be
// nil for timer callbacks, which only race shutdown.
func (w *Watcher) send(ctx context.Context, inv Invalidation) {
	var cancelled <-chan struct{}
	if ctx != nil {
		cancelled = ctx.Done()
	}
	select {
	case w.out <- inv:
	case <-w.done:
	case <-cancelled:
	}
}

func (w *Watcher) shutdown() {
	w.closeOnce.Do(func() { close(w.done) })
	w.fsw.Close()
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
}
