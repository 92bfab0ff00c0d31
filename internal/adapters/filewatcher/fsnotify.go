// Package filewatcher watches the persisted index location so that a removed
// index is rebuilt without restarting the process.
package filewatcher

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
type FSNotifyWatcher struct {
	watcher *fsnotify.Watcher
	names   []string // base names to report; empty reports everything
}

var _ ports.FileWatcher = (*FSNotifyWatcher)(nil)

// NewFSNotifyWatcher creates a watcher that reports only entries whose base
// name is in names.
func NewFSNotifyWatcher(names ...string) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FSNotifyWatcher{watcher: w, names: names}, nil
}

// Watch starts monitoring the directory and emits events.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With("dir", dir)
	events := make(chan ports.FileEvent, 16)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatched(event.Name) {
					continue
				}

				var op ports.FileOperation
				switch {
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					op = ports.FileDeleted
				case event.Has(fsnotify.Create):
					op = ports.FileCreated
				case event.Has(fsnotify.Write):
					op = ports.FileModified
				default:
					continue
				}

				select {
				case events <- ports.FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Warn("File watcher error", "error", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *FSNotifyWatcher) isWatched(path string) bool {
	if len(w.names) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, n := range w.names {
		if base == n {
			return true
		}
	}
	return false
}

// Invalidator drops a cached index.
type Invalidator interface {
	Invalidate()
}

// WatchIndex invalidates inv whenever the directory at indexPath is removed
// or renamed away. It returns once the watch is registered; events are
// handled until ctx is done or the watcher is stopped.
func WatchIndex(ctx context.Context, w ports.FileWatcher, indexPath string, inv Invalidator) error {
	indexPath = filepath.Clean(indexPath)
	events, err := w.Watch(ctx, filepath.Dir(indexPath))
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx).With("index", indexPath)
	go func() {
		for ev := range events {
			if ev.Operation != ports.FileDeleted || filepath.Clean(ev.Path) != indexPath {
				continue
			}
			log.Info("Index removed from disk, dropping cached retriever")
			inv.Invalidate()
		}
	}()
	return nil
}
