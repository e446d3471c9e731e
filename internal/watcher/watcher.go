// Package watcher feeds external edits of the memory tree into the
// sync service. It watches the memory root recursively with fsnotify,
// debounces bursts, and routes deletions to the index while queueing
// everything else for reconciliation. Optional: the MCP write path
// already enqueues its own changes, so the watcher only matters when
// files are edited outside the service.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/memmcp/memmcp/internal/errors"
	filesync "github.com/memmcp/memmcp/internal/sync"
)

// Op classifies a file change.
type Op int

const (
	OpCreate Op = iota
	OpModify
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event is one debounced file change, with Path relative to the
// memory root.
type Event struct {
	Path string
	Op   Op
}

// Options configures the watcher.
type Options struct {
	// Debounce is the window for coalescing rapid events on the same
	// path. Default 200ms.
	Debounce time.Duration
}

// WithDefaults fills zero values.
func (o Options) WithDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 200 * time.Millisecond
	}
	return o
}

// Watcher bridges filesystem events to the sync service.
type Watcher struct {
	root   string
	syncer filesync.Syncer
	opts   Options
	logger *slog.Logger

	fsw    *fsnotify.Watcher
	deb    *debouncer
	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a watcher over root. Start must be called before any
// events flow.
func New(root string, syncer filesync.Syncer, opts Options) (*Watcher, error) {
	if syncer == nil {
		return nil, errors.New(errors.KindInvalidArgument, "syncer is required")
	}
	return &Watcher{
		root:   root,
		syncer: syncer,
		opts:   opts.WithDefaults(),
		logger: slog.Default(),
	}, nil
}

// Start begins watching. It registers the root and every existing
// subdirectory, then routes debounced events until ctx is cancelled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(errors.KindInternal, "create filesystem watcher", err)
	}
	w.fsw = fsw
	w.deb = newDebouncer(w.opts.Debounce)
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	if err := w.watchTree(w.root); err != nil {
		_ = fsw.Close()
		return err
	}

	go w.loop(ctx)
	w.logger.Info("file watcher started",
		slog.String("root", w.root),
		slog.Duration("debounce", w.opts.Debounce))
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit. Safe to
// call before Start or more than once.
func (w *Watcher) Stop() {
	if w.stopCh == nil {
		return
	}
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	<-w.doneCh
}

// watchTree registers root and all subdirectories, skipping dot
// directories.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return errors.Wrapf(errors.KindInternal, err, "watch %s", p)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	defer w.deb.stop()
	defer func() { _ = w.fsw.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleRaw(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		case batch := <-w.deb.output:
			w.route(ctx, batch)
		}
	}
}

// handleRaw classifies one fsnotify event and feeds the debouncer.
// New directories are added to the watch set; non-markdown files are
// ignored.
func (w *Watcher) handleRaw(ev fsnotify.Event) {
	// a freshly created category directory must be watched too
	if ev.Op.Has(fsnotify.Create) && w.watchIfDir(ev.Name) {
		return
	}

	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, ".md") {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.deb.add(Event{Path: rel, Op: OpDelete})
	case ev.Op.Has(fsnotify.Create):
		w.deb.add(Event{Path: rel, Op: OpCreate})
	case ev.Op.Has(fsnotify.Write):
		w.deb.add(Event{Path: rel, Op: OpModify})
	}
}

// watchIfDir registers a path with the fsnotify watcher when it is a
// directory, reporting whether it was one.
func (w *Watcher) watchIfDir(p string) bool {
	info, err := os.Stat(p)
	if err != nil || !info.IsDir() {
		return false
	}
	if err := w.fsw.Add(p); err != nil {
		w.logger.Warn("watch new directory failed", "path", p, "error", err)
	}
	return true
}

// route hands a debounced batch to the sync service: deletions remove
// index rows immediately, everything else is queued for reconcile.
func (w *Watcher) route(ctx context.Context, batch []Event) {
	for _, ev := range batch {
		w.logger.Debug("file change detected",
			slog.String("file_path", ev.Path),
			slog.String("op", ev.Op.String()))
		if ev.Op == OpDelete {
			if err := w.syncer.Delete(ctx, ev.Path); err != nil {
				w.logger.Warn("index delete for watched file failed",
					"file_path", ev.Path, "error", err)
			}
			continue
		}
		w.syncer.Enqueue(ev.Path)
	}
}
