// Package alloc implements the allocation-group accounting contract: a
// process-wide tree of named byte counters, a general allocator that
// records (group, bytes) per allocation, a batched small-object pool keyed
// by size class, and a scoped stack allocator.
//
// Go's garbage collector makes a manual allocator unnecessary, so this
// package models the accounting and pooling contracts rather than raw
// memory management — the same advisory-accounting shape the engine's
// process telemetry already uses for gopsutil totals.
package alloc

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/process"
)

// Group is a named node in the process-wide allocation-group tree. The pair
// (parent, name) is unique among siblings. Profiling is advisory: nothing
// here affects correctness of the allocations it describes.
type Group struct {
	name   string
	parent *Group

	mu       sync.Mutex
	children map[string]*Group

	bytes atomic.Int64
	count atomic.Int64
}

var (
	rootOnce sync.Once
	root     *Group
)

// Root returns the process-wide root group, created lazily on first access.
func Root() *Group {
	rootOnce.Do(func() {
		root = &Group{name: "root", children: make(map[string]*Group)}
	})
	return root
}

// Child returns the named child group, creating it if necessary.
func (g *Group) Child(name string) *Group {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.children == nil {
		g.children = make(map[string]*Group)
	}
	if c, ok := g.children[name]; ok {
		return c
	}
	c := &Group{name: name, parent: g}
	g.children[name] = c
	return c
}

// Name returns the group's name.
func (g *Group) Name() string { return g.name }

// Parent returns the group's parent, or nil for the root.
func (g *Group) Parent() *Group { return g.parent }

// recordAlloc attributes size bytes to g and every ancestor. Totals are
// approximate under contention by design (spec §5): lock-free counter
// updates, no cross-group atomicity.
func (g *Group) recordAlloc(size int64) {
	for n := g; n != nil; n = n.parent {
		n.bytes.Add(size)
		n.count.Add(1)
	}
}

// recordFree removes size bytes previously attributed via recordAlloc.
func (g *Group) recordFree(size int64) {
	for n := g; n != nil; n = n.parent {
		n.bytes.Add(-size)
		n.count.Add(-1)
	}
}

// Bytes returns the current byte count attributed to this group,
// including everything recorded against its descendants.
func (g *Group) Bytes() int64 { return g.bytes.Load() }

// AllocCount returns the number of outstanding allocations attributed to
// this group.
func (g *Group) AllocCount() int64 { return g.count.Load() }

// Snapshot is a point-in-time summary of a group plus, for the root group,
// the process RSS as reported by gopsutil — an operator-facing
// cross-check against the in-process byte counters, not part of the
// correctness contract.
type Snapshot struct {
	Name       string
	Bytes      int64
	AllocCount int64
	ProcessRSS uint64 // non-zero only when taken from Root()
}

// Snapshot captures the group's current counters. When called on Root(),
// it also folds in the process's resident set size via gopsutil; a failure
// to read process stats is swallowed (the RSS field stays zero) since this
// is advisory data only.
func (g *Group) Snapshot() Snapshot {
	s := Snapshot{Name: g.name, Bytes: g.bytes.Load(), AllocCount: g.count.Load()}
	if g.parent == nil {
		if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
			if info, err := p.MemoryInfo(); err == nil && info != nil {
				s.ProcessRSS = info.RSS
			}
		}
	}
	return s
}
