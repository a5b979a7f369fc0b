// Package watch reruns work when binding artifacts are rebuilt.
package watch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last
// artifact event before reporting a change.
const DefaultDebounce = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	// Dir is the build configuration directory to watch.
	Dir string

	// Ext selects artifact files by extension, e.g. ".so". Empty
	// matches every file.
	Ext string

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	Logger *charmlog.Logger
}

// Watcher reports batches of rebuilt artifacts.
type Watcher struct {
	opts  Options
	ready chan struct{}
}

// New returns a watcher for opts.Dir.
func New(opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = charmlog.New(io.Discard)
	}
	return &Watcher{opts: opts, ready: make(chan struct{})}
}

// Ready is closed once the directory is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done. After each burst of creates, writes
// or renames of artifact files settles, it calls onChange with the
// changed paths, sorted. onChange runs on the watching goroutine, so
// events that arrive meanwhile are folded into the next batch.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.opts.Dir, err)
	}
	w.opts.Logger.Info("watching for rebuilt artifacts", "dir", w.opts.Dir)
	close(w.ready)

	pending := map[string]bool{}
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.opts.Logger.Debug("artifact event", "op", event.Op.String(), "path", event.Name)
			pending[event.Name] = true
			timer.Reset(w.opts.Debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Error("watch error", "err", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			onChange(ctx, changed)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	if w.opts.Ext != "" && !strings.HasSuffix(event.Name, w.opts.Ext) {
		return false
	}
	return !strings.HasPrefix(filepath.Base(event.Name), ".")
}
