// Package watch reloads configuration when its file changes on disk. Events
// are debounced so an editor's write-rename-chmod burst triggers one reload.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"

	"github.com/kingrea/modgraph/internal/logging"
)

// DefaultDebounce is the quiet period before a reload fires.
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc is invoked once per settled burst of changes.
type ReloadFunc func(ctx context.Context, path string) error

// Watcher observes a set of files through their parent directories, which
// keeps working when editors replace a file instead of writing it in place.
type Watcher struct {
	paths    []string
	reload   ReloadFunc
	debounce time.Duration
	log      logr.Logger
	ready    chan struct{}
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// New prepares a watcher; nothing is observed until Run.
func New(reload ReloadFunc, paths []string, opts ...Option) (*Watcher, error) {
	if reload == nil {
		return nil, fmt.Errorf("watch: reload function is required")
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("watch: at least one path is required")
	}
	w := &Watcher{
		reload:   reload,
		debounce: DefaultDebounce,
		log:      logr.Discard(),
		ready:    make(chan struct{}),
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %s: %w", p, err)
		}
		w.paths = append(w.paths, abs)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.log = w.log.WithName("watch")
	return w, nil
}

// Ready is closed once every directory is being observed.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is cancelled. Reload errors are logged and do not stop
// the watcher; the next change gets another chance.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fw.Close()

	watched := make(map[string]struct{}, len(w.paths))
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch: observe %s: %w", dir, err)
		}
		watched[dir] = struct{}{}
	}
	close(w.ready)
	trace := w.log.V(logging.TRACE)

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending = make(map[string]struct{})
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			trace.Info("file event", "event", ev.String())
			path, match := w.match(ev)
			if !match {
				continue
			}
			pending[path] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			for _, p := range w.paths {
				if _, ok := pending[p]; !ok {
					continue
				}
				delete(pending, p)
				if err := w.reload(ctx, p); err != nil {
					w.log.Error(err, "reload failed", "path", p)
					continue
				}
				w.log.V(logging.VERBOSE).Info("reloaded", "path", p)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error(err, "watcher failed")
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) match(ev fsnotify.Event) (string, bool) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return "", false
	}
	name := filepath.Clean(ev.Name)
	for _, p := range w.paths {
		if name == p {
			return p, true
		}
	}
	return "", false
}
