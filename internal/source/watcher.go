package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reports documents created or modified under a FilesystemSource root.
type Watcher struct {
	src      *FilesystemSource
	debounce time.Duration
	onError  func(error)
}

// NewWatcher creates a Watcher for src. onError receives watch errors and may be nil.
func NewWatcher(src *FilesystemSource, debounce time.Duration, onError func(error)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Watcher{src: src, debounce: debounce, onError: onError}
}

// Watch starts watching the root recursively. Each value sent on the
// returned channel is a sorted batch of changed document names collected
// during one debounce window. The channel is closed when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan []string, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.addTree(fw, w.src.Root()); err != nil {
		_ = fw.Close()
		return nil, err
	}

	out := make(chan []string)
	go w.loop(ctx, fw, out)
	return out, nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, out chan<- []string) {
	defer close(out)
	defer fw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if name, ok := w.handleEvent(fw, event); ok {
				pending[name] = struct{}{}
				timer.Reset(w.debounce)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.onError(err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for name := range pending {
				batch = append(batch, name)
			}
			sort.Strings(batch)
			clear(pending)

			select {
			case out <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleEvent returns the document name to re-ingest for event, if any.
// New directories are added to the watch list.
func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}

	rel, err := w.src.Relative(event.Name)
	if err != nil || isHidden(rel) {
		return "", false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(fw, event.Name); err != nil {
				w.onError(err)
			}
		}
		return "", false
	}
	if !info.Mode().IsRegular() || !w.src.filter.Match(rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p != root {
				return nil
			}
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := w.src.Relative(p); rel != "." && isHidden(rel) {
			return fs.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}
