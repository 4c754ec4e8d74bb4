package resource

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/catalystcommunity/enginecore/internal/alloc"
	"github.com/catalystcommunity/enginecore/internal/metrics"
	"github.com/catalystcommunity/enginecore/internal/objects"
	"github.com/google/uuid"
)

// index is the provider's registry of resource entries, keyed by
// (type,name)/(name) for lookup, by id, and by store path for reverse
// lookup during hot-reload invalidation.
type index struct {
	mu      sync.RWMutex
	byKey   map[entryKey]*Entry
	byID    map[string]*Entry
	byPath  map[string]*Entry
	group   *alloc.Group
}

func newIndex(group *alloc.Group) *index {
	return &index{
		byKey:  make(map[entryKey]*Entry),
		byID:   make(map[string]*Entry),
		byPath: make(map[string]*Entry),
		group:  group,
	}
}

func (ix *index) register(e *Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.byKey[e.key()] = e
	ix.byID[e.ID] = e
	ix.byPath[e.Path] = e
}

func (ix *index) removeByPath(p string) (*Entry, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.byPath[p]
	if !ok {
		return nil, false
	}
	delete(ix.byPath, p)
	delete(ix.byID, e.ID)
	delete(ix.byKey, e.key())
	return e, true
}

func (ix *index) lookup(typeName, name string) (*Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	k := entryKey{typeName: typeName, name: name}
	e, ok := ix.byKey[k]
	if !ok {
		// Third-party entries are keyed by name alone.
		e, ok = ix.byKey[entryKey{name: name}]
	}
	return e, ok
}

func (ix *index) byPathEntry(p string) (*Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.byPath[p]
	return e, ok
}

// classify determines the entry kind and, for natives, the declared type
// name, from a resource file's extension and (for *.rd) its leading
// sentinel line.
//
//   *.bin -> native binary; real implementations peek an interned-string
//            or registry-index type header. Without the binary
//            serialization format (out of scope) this
//            implementation uses the file's base name (sans extension) as
//            a stand-in type name, which a real header-peek would refine.
//   *.rd  -> native readable-data; type name is the first
//            "//! type_name" sentinel line, read from the object's bytes.
//   other -> third-party; entry name is the full filename.
func classify(ctx context.Context, store objects.ObjectStore, key string) (kind EntryKind, typeName string, err error) {
	ext := strings.ToLower(path.Ext(key))
	switch ext {
	case ".bin":
		return EntryNative, strings.TrimSuffix(path.Base(key), ext), nil
	case ".rd":
		rc, err := store.Get(ctx, key)
		if err != nil {
			return EntryThirdParty, "", err
		}
		defer rc.Close()
		tn, err := readReadableDataSentinel(rc)
		if err != nil {
			return EntryThirdParty, "", err
		}
		return EntryNative, tn, nil
	default:
		return EntryThirdParty, "", nil
	}
}

func readReadableDataSentinel(r interface{ Read([]byte) (int, error) }) (string, error) {
	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	content := string(buf[:n])
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") && !strings.HasPrefix(line, "//!") {
			continue
		}
		if strings.HasPrefix(line, "//!") {
			return strings.TrimSpace(strings.TrimPrefix(line, "//!")), nil
		}
		break
	}
	return "", nil
}

// newEntryID mints a fresh entry id. Scanning re-registers entries with a
// new id on modification so hot-reload consumers can detect the change.
func newEntryID() string { return uuid.NewString() }

func (ix *index) recordScan(kind EntryKind) {
	label := "third_party"
	if kind == EntryNative {
		label = "native"
	}
	metrics.ResourceEntriesScanned.WithLabelValues(label).Inc()
}
