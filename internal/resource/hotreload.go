package resource

import (
	"context"
	"fmt"
	"strings"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginecore/internal/errs"
	"github.com/catalystcommunity/enginecore/internal/metrics"
	"github.com/catalystcommunity/enginecore/internal/objects"
	"github.com/catalystcommunity/enginecore/internal/retryutil"
	"github.com/fsnotify/fsnotify"
)

// Watcher observes a filesystem-backed resource root and feeds the
// provider's added/modified/removed invalidation pipeline. Hot reload is
// only meaningful for the filesystem store — packs and in-memory stores
// are immutable for the process's lifetime, so WatchProvider returns an
// error for a store that is not filesystem-backed, and WatchFilesystem
// returns an error when root cannot be watched.
type Watcher struct {
	provider *Provider
	fsw      *fsnotify.Watcher
	root     string
	done     chan struct{}
}

// WatchFilesystem starts watching root for changes, invalidating and
// re-emitting the provider's entries as events arrive. root must be the
// same directory the provider's filesystem object store was opened
// against, since fsnotify reports real paths while the provider indexes
// by store key. The caller owns the returned Watcher and must Close it
// to stop the background goroutine.
func WatchFilesystem(p *Provider, root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// A resource root mounted over a network filesystem or not yet fully
	// synced at process start can fail the initial watch add transiently;
	// retry with backoff rather than failing hot reload for good.
	addErr := retryutil.Do(context.Background(), nil, "watch "+root, func() error {
		return fsw.Add(root)
	})
	if addErr != nil {
		fsw.Close()
		return nil, addErr
	}

	w := &Watcher{provider: p, fsw: fsw, root: strings.TrimRight(root, "/"), done: make(chan struct{})}
	go w.run()
	return w, nil
}

// WatchProvider starts watching p's own store, deriving the filesystem
// root from it instead of requiring the caller to track the root
// separately from the store that owns it. Only stores implementing
// objects.RealPathReporter (currently FilesystemObjectStore, and a
// MountedStore whose root mount is one) support this; any other store
// returns an error instead of silently skipping hot reload.
func WatchProvider(p *Provider) (*Watcher, error) {
	rp, ok := p.store.(objects.RealPathReporter)
	if !ok {
		return nil, fmt.Errorf("resource: hot reload requires a filesystem-backed store: %w", errs.ErrValidation)
	}
	root := rp.BasePath()
	if root == "" {
		return nil, fmt.Errorf("resource: hot reload requires a filesystem-backed store: %w", errs.ErrValidation)
	}
	return WatchFilesystem(p, root)
}

// key converts an fsnotify-reported real path into the store key the
// provider indexes entries under.
func (w *Watcher) key(realPath string) string {
	return strings.TrimPrefix(strings.TrimPrefix(realPath, w.root), "/")
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Log.WithError(err).Warn("resource hot-reload: watcher error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	ctx := context.Background()
	key := w.key(ev.Name)
	switch {
	case ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0:
		w.onRemoved(key)
	case ev.Op&fsnotify.Write != 0:
		w.onModified(ctx, key)
	case ev.Op&fsnotify.Create != 0:
		// A rename-into-place and a fresh write both surface as Create on
		// most platforms; the entry is unknown either way, so it is always
		// handled as "added" rather than distinguishing the two.
		w.onAdded(ctx, key)
	}
}

func (w *Watcher) onAdded(ctx context.Context, path string) {
	kind, typeName, err := classify(ctx, w.provider.store, path)
	if err != nil {
		logging.Log.WithField("path", path).WithError(err).Warn("resource hot-reload: added entry failed to classify")
		return
	}
	e := &Entry{ID: newEntryID(), Kind: kind, TypeName: typeName, Name: path, Path: path, Group: w.provider.group}
	w.provider.index.register(e)
	w.provider.notifyEntryAvailable(e)
	metrics.HotReloadEvents.WithLabelValues("added").Inc()
}

func (w *Watcher) onModified(ctx context.Context, path string) {
	old, ok := w.provider.index.byPathEntry(path)
	if !ok {
		w.onAdded(ctx, path)
		return
	}

	kind, typeName, err := classify(ctx, w.provider.store, path)
	if err != nil {
		logging.Log.WithField("path", path).WithError(err).Warn("resource hot-reload: modified entry failed to classify")
		return
	}

	w.invalidateContainers(old)

	fresh := &Entry{ID: newEntryID(), Kind: kind, TypeName: typeName, Name: old.Name, Path: path, Group: w.provider.group}
	w.provider.index.register(fresh)

	w.provider.mu.Lock()
	for _, r := range w.provider.requests {
		if r.Name != fresh.Name {
			continue
		}
		if fresh.Kind == EntryNative && r.TypeName != "" && r.TypeName != fresh.TypeName {
			continue
		}
		r.state = RequestAwaiting
		r.outcome = Outcome{}
	}
	w.provider.mu.Unlock()

	metrics.HotReloadEvents.WithLabelValues("modified").Inc()
}

func (w *Watcher) onRemoved(path string) {
	old, ok := w.provider.index.removeByPath(path)
	if !ok {
		return
	}
	w.invalidateContainers(old)

	w.provider.mu.Lock()
	for _, r := range w.provider.requests {
		if r.Name != old.Name {
			continue
		}
		r.state = RequestAwaiting
		r.outcome = Outcome{}
	}
	w.provider.mu.Unlock()

	metrics.HotReloadEvents.WithLabelValues("removed").Inc()
}

// invalidateContainers drops any container currently serving old's
// requests, so the next serve tick re-loads from scratch.
func (w *Watcher) invalidateContainers(old *Entry) {
	w.provider.mu.Lock()
	defer w.provider.mu.Unlock()
	for _, r := range w.provider.requests {
		if r.Name != old.Name || r.outcome.ContainerID == "" {
			continue
		}
		delete(w.provider.containers, r.outcome.ContainerID)
	}
	metrics.ContainersLive.Set(float64(len(w.provider.containers)))
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
