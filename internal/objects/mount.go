package objects

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MountedStore composes independently-backed stores under virtual path
// prefixes: the resource layer's "mounted prefixes resolve to either a
// real filesystem directory, a read-only pack, or a virtual directory"
// contract. Resolution is longest-matching-prefix, so a more specific
// mount shadows a broader one covering the same key.
type MountedStore struct {
	mu     sync.RWMutex
	mounts map[string]ObjectStore
}

// NewMountedStore returns an empty mount table. Callers attach backing
// stores with Mount before routing any keys through it.
func NewMountedStore() *MountedStore {
	return &MountedStore{mounts: make(map[string]ObjectStore)}
}

// Mount attaches store at prefix, replacing whatever was previously
// mounted there. Mounting can fail only on an invalid store; the prefix
// itself is always accepted.
func (m *MountedStore) Mount(prefix string, store ObjectStore) error {
	if store == nil {
		return ErrInvalidKey
	}
	prefix = normalizeMountPrefix(prefix)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mounts[prefix] = store
	return nil
}

// Unmount detaches whatever is mounted at prefix. It only removes the
// overlay's routing entry — the underlying store (a real filesystem
// directory, an open pack) is left untouched and can be remounted later
// without losing data.
func (m *MountedStore) Unmount(prefix string) error {
	prefix = normalizeMountPrefix(prefix)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mounts[prefix]; !ok {
		return ErrNotFound
	}
	delete(m.mounts, prefix)
	return nil
}

func normalizeMountPrefix(p string) string {
	return strings.Trim(p, "/")
}

// resolve finds the mount whose prefix is the longest match for key,
// returning the store and the key with that prefix stripped.
func (m *MountedStore) resolve(key string) (store ObjectStore, rel string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bestLen := -1
	for prefix, s := range m.mounts {
		if !mountMatches(prefix, key) {
			continue
		}
		if len(prefix) > bestLen {
			bestLen = len(prefix)
			store = s
			rel = strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
			ok = true
		}
	}
	return store, rel, ok
}

func mountMatches(prefix, key string) bool {
	if prefix == "" {
		return true
	}
	return key == prefix || strings.HasPrefix(key, prefix+"/")
}

// BasePath satisfies RealPathReporter when the store mounted at the root
// prefix ("") is itself real-path-reporting (typically a
// FilesystemObjectStore), so a hot-reload watcher can find a root to
// watch even when the provider's store is a mount composing a pack
// alongside a real directory.
func (m *MountedStore) BasePath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rp, ok := m.mounts[""].(RealPathReporter); ok {
		return rp.BasePath()
	}
	return ""
}

func (m *MountedStore) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	store, rel, ok := m.resolve(key)
	if !ok {
		return ErrNotFound
	}
	return store.Put(ctx, rel, data, contentType)
}

func (m *MountedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	store, rel, ok := m.resolve(key)
	if !ok {
		return nil, ErrNotFound
	}
	return store.Get(ctx, rel)
}

func (m *MountedStore) GetURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	store, rel, ok := m.resolve(key)
	if !ok {
		return "", ErrNotFound
	}
	return store.GetURL(ctx, rel, expires)
}

func (m *MountedStore) Delete(ctx context.Context, key string) error {
	store, rel, ok := m.resolve(key)
	if !ok {
		return ErrNotFound
	}
	return store.Delete(ctx, rel)
}

func (m *MountedStore) Exists(ctx context.Context, key string) (bool, error) {
	store, rel, ok := m.resolve(key)
	if !ok {
		return false, nil
	}
	return store.Exists(ctx, rel)
}

// List merges results from every mount that can contain entries under
// prefix, re-qualifying each entry's key with its mount's prefix so
// callers see one flat virtual namespace regardless of how many stores
// back it.
func (m *MountedStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	prefix = normalizeMountPrefix(prefix)

	m.mu.RLock()
	mounts := make(map[string]ObjectStore, len(m.mounts))
	for p, s := range m.mounts {
		mounts[p] = s
	}
	m.mu.RUnlock()

	var out []ObjectInfo
	for mountPrefix, store := range mounts {
		switch {
		case mountPrefix == prefix, prefix == "", strings.HasPrefix(mountPrefix, prefix+"/"):
			infos, err := store.List(ctx, "")
			if err != nil {
				return nil, err
			}
			out = append(out, rekey(infos, mountPrefix)...)
		case strings.HasPrefix(prefix, mountPrefix+"/"):
			rel := strings.TrimPrefix(prefix, mountPrefix+"/")
			infos, err := store.List(ctx, rel)
			if err != nil {
				return nil, err
			}
			out = append(out, rekey(infos, mountPrefix)...)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func rekey(infos []ObjectInfo, mountPrefix string) []ObjectInfo {
	if mountPrefix == "" {
		return infos
	}
	for i := range infos {
		infos[i].Key = mountPrefix + "/" + infos[i].Key
	}
	return infos
}
