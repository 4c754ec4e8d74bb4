package render

import (
	"fmt"
	"hash/fnv"

	"github.com/catalystcommunity/enginecore/internal/metrics"
)

// SetLayoutID identifies a descriptor-set layout by its structural
// identity (a real backend would use the layout object's pointer; this
// Go port uses an arbitrary comparable id assigned once per distinct
// layout).
type SetLayoutID uint64

// layoutKey is the structural identity a pipeline layout is deduplicated
// on: push-constant size plus the ordered list of set-layout ids.
type layoutKey struct {
	pushConstantSize uint32
	setLayouts       string // set-layout ids joined, so layoutKey stays comparable/mappable
}

func makeLayoutKey(pushConstantSize uint32, setLayouts []SetLayoutID) layoutKey {
	ids := make([]uint64, len(setLayouts))
	for i, id := range setLayouts {
		ids[i] = uint64(id)
	}
	return layoutKey{pushConstantSize: pushConstantSize, setLayouts: fmt.Sprint(ids)}
}

func hashLayoutKey(k layoutKey) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s", k.pushConstantSize, k.setLayouts)
	return h.Sum64()
}

// PipelineLayoutHandle is an opaque, reference-counted pipeline layout.
type PipelineLayoutHandle uint64

type pipelineLayoutEntry struct {
	handle   PipelineLayoutHandle
	key      layoutKey
	refCount int
}

// EmptySetLayout is the registry-wide empty layout substituted for any
// nil/zero set-layout slot, per "empty set layouts are substituted with
// a registry-wide empty layout".
const EmptySetLayout SetLayoutID = 0

// PipelineLayoutCache deduplicates pipeline layouts by structural
// identity, guarded by an atomic-int spin lock around the hash table
// per the shared-resources contract.
type PipelineLayoutCache struct {
	lock    spinLock
	buckets map[uint64][]*pipelineLayoutEntry
	nextID  uint64
}

// NewPipelineLayoutCache creates an empty cache.
func NewPipelineLayoutCache() *PipelineLayoutCache {
	return &PipelineLayoutCache{buckets: make(map[uint64][]*pipelineLayoutEntry)}
}

func normalizeSetLayouts(setLayouts []SetLayoutID) []SetLayoutID {
	out := make([]SetLayoutID, len(setLayouts))
	for i, id := range setLayouts {
		if id == 0 {
			out[i] = EmptySetLayout
		} else {
			out[i] = id
		}
	}
	return out
}

// Register finds or creates a pipeline layout for (pushConstantSize,
// setLayouts): computes a combined hash, probes the bucket for an exact
// structural match (incrementing its use count and returning it), or
// creates and inserts a new entry.
func (c *PipelineLayoutCache) Register(pushConstantSize uint32, setLayouts []SetLayoutID) PipelineLayoutHandle {
	normalized := normalizeSetLayouts(setLayouts)
	key := makeLayoutKey(pushConstantSize, normalized)
	hash := hashLayoutKey(key)

	c.lock.Lock()
	defer c.lock.Unlock()

	for _, e := range c.buckets[hash] {
		if e.key == key {
			e.refCount++
			return e.handle
		}
	}

	c.nextID++
	e := &pipelineLayoutEntry{handle: PipelineLayoutHandle(c.nextID), key: key, refCount: 1}
	c.buckets[hash] = append(c.buckets[hash], e)
	metrics.PipelineLayoutCacheSize.Set(float64(c.size()))
	return e.handle
}

// Release decrements the entry's reference count; at zero, the entry is
// destroyed and removed from the cache.
func (c *PipelineLayoutCache) Release(handle PipelineLayoutHandle) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for hash, entries := range c.buckets {
		for i, e := range entries {
			if e.handle != handle {
				continue
			}
			e.refCount--
			if e.refCount <= 0 {
				c.buckets[hash] = append(entries[:i], entries[i+1:]...)
				metrics.PipelineLayoutCacheSize.Set(float64(c.size()))
			}
			return
		}
	}
}

// size must be called with c.lock held.
func (c *PipelineLayoutCache) size() int {
	n := 0
	for _, entries := range c.buckets {
		n += len(entries)
	}
	return n
}

// Size reports the number of distinct pipeline layouts currently cached.
func (c *PipelineLayoutCache) Size() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.size()
}
