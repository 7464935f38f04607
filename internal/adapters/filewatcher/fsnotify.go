// Package filewatcher provides file system monitoring adapters.
// Clean Architecture: Adapter implementing ports.FileWatcher.
package filewatcher

import (
	"context"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xcro3dile/readaloud-go/internal/domain/ports"
)

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
//
// Editors often save with several writes or a rename; events for one path
// arriving within the debounce window are merged into one.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions []string
	debounce   time.Duration
}

// NewFSNotifyWatcher creates a new file watcher. A zero debounce emits every event as it arrives.
func NewFSNotifyWatcher(extensions []string, debounce time.Duration) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = []string{".txt", ".md", ".markdown"}
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: extensions,
		debounce:   debounce,
	}, nil
}

// Watch starts monitoring the directory and emits events.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)

	go func() {
		defer close(events)

		pending := make(map[string]ports.FileOperation)
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		emit := func(ev ports.FileEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatchedExtension(event.Name) {
					continue
				}
				op, ok := operation(event.Op)
				if !ok {
					continue
				}
				if w.debounce <= 0 {
					if !emit(ports.FileEvent{Path: event.Name, Operation: op}) {
						return
					}
					continue
				}
				pending[event.Name] = merge(pending[event.Name], op, hasPending(pending, event.Name))
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				timerC = timer.C

			case <-timerC:
				timerC = nil
				paths := make([]string, 0, len(pending))
				for p := range pending {
					paths = append(paths, p)
				}
				sort.Strings(paths)
				for _, p := range paths {
					if !emit(ports.FileEvent{Path: p, Operation: pending[p]}) {
						return
					}
					delete(pending, p)
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[WARN] file watcher: %v", err)
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

func operation(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	}
	return 0, false
}

func hasPending(pending map[string]ports.FileOperation, path string) bool {
	_, ok := pending[path]
	return ok
}

// merge folds a new operation into the one already pending for a path.
func merge(prev, next ports.FileOperation, seen bool) ports.FileOperation {
	if !seen {
		return next
	}
	switch {
	case next == ports.FileDeleted:
		return ports.FileDeleted
	case prev == ports.FileCreated:
		return ports.FileCreated
	case prev == ports.FileDeleted:
		// Deleted then recreated, as editors do on save.
		return ports.FileModified
	}
	return next
}

// isWatchedExtension checks if the file has a watched extension.
func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
