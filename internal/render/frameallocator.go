package render

import (
	"github.com/catalystcommunity/enginecore/internal/alloc"
	"github.com/catalystcommunity/enginecore/internal/metrics"
)

// chunkState is a frame-lifetime chunk's ownership state.
type chunkState int

const (
	chunkFree chunkState = iota
	chunkOwned
)

// chunk is one free-list/owned node within a page. Chunks are
// threaded through nextFree the way the allocator's free-chunk list is
// described: offset/size describe the chunk's byte range, frame records
// which frame-in-flight owns it once allocated.
type chunk struct {
	offset uint64
	size   uint64
	state  chunkState
	frame  int

	nextFree *chunk
	next     *chunk // whole-page ordering, for coalescing with neighbours
	prev     *chunk
}

// page is one page-sized backing allocation plus its chunk list.
type page struct {
	data      []byte
	firstFree *chunk
	head      *chunk // first chunk in byte-offset order
}

// FrameLifetimeAllocator is the per-frame sub-allocator described in
// spec §4.8: pages are allocated on demand, sub-allocated per request,
// and chunks tagged with the current frame-in-flight are retired (freed
// and coalesced) when that frame-in-flight index comes back around.
type FrameLifetimeAllocator struct {
	lock        spinLock
	pageSize    uint64
	framesInFl  int
	currentFITF int
	pages       []*page
	group       *alloc.Group

	// oneShot tracks one-shot staging buffers allocated for
	// larger-than-page-size requests, scheduled for destruction rather
	// than retired with the page pool.
	oneShot []OneShotAllocation
}

// OneShotAllocation is a request that exceeded the page size and was
// served by a dedicated, one-shot allocation instead of page
// sub-allocation.
type OneShotAllocation struct {
	Data  []byte
	Frame int
}

// NewFrameLifetimeAllocator creates an allocator with the given page
// size and number of frames-in-flight tracked before a frame index
// recycles.
func NewFrameLifetimeAllocator(pageSize uint64, framesInFlight int, group *alloc.Group) *FrameLifetimeAllocator {
	if group == nil {
		group = alloc.Root().Child("render").Child("frame_lifetime")
	}
	return &FrameLifetimeAllocator{pageSize: pageSize, framesInFl: framesInFlight, group: group}
}

// Allocation is a successful sub-allocation: the byte range within a
// page, or nil Page/OneShot set for a one-shot allocation.
type Allocation struct {
	Page    *page
	Offset  uint64
	Size    uint64
	OneShot *OneShotAllocation
}

// Bytes returns the allocation's backing byte slice.
func (a Allocation) Bytes() []byte {
	if a.OneShot != nil {
		return a.OneShot.Data
	}
	return a.Page.data[a.Offset : a.Offset+a.Size]
}

const defaultAlign = 16

// Alloc sub-allocates size bytes aligned to align (0 means defaultAlign)
// for the current frame-in-flight, walking pages and their free-chunk
// lists, splitting the first chunk that fits. Requests larger than the
// page size get a dedicated one-shot allocation instead.
func (f *FrameLifetimeAllocator) Alloc(size uint64, align uint64) Allocation {
	if align == 0 {
		align = defaultAlign
	}
	if size > f.pageSize {
		data := make([]byte, size)
		oneShot := OneShotAllocation{Data: data, Frame: f.currentFITF}
		f.lock.Lock()
		f.oneShot = append(f.oneShot, oneShot)
		f.lock.Unlock()
		return Allocation{OneShot: &f.oneShot[len(f.oneShot)-1]}
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	for _, p := range f.pages {
		if off, ok := f.tryAllocInPage(p, size, align); ok {
			return Allocation{Page: p, Offset: off, Size: size}
		}
	}

	p := f.newPageLocked()
	off, ok := f.tryAllocInPage(p, size, align)
	if !ok {
		// size <= pageSize was checked above so this only happens with a
		// pathological alignment request; surface it as a zero allocation.
		return Allocation{}
	}
	return Allocation{Page: p, Offset: off, Size: size}
}

func (f *FrameLifetimeAllocator) newPageLocked() *page {
	p := &page{data: make([]byte, f.pageSize)}
	root := &chunk{offset: 0, size: f.pageSize, state: chunkFree}
	p.head = root
	p.firstFree = root
	f.pages = append(f.pages, p)
	f.group.Snapshot()
	metrics.FrameLifetimePages.Set(float64(len(f.pages)))
	return p
}

func (f *FrameLifetimeAllocator) tryAllocInPage(p *page, size, align uint64) (uint64, bool) {
	for c := p.firstFree; c != nil; c = c.nextFree {
		if c.state != chunkFree {
			continue
		}
		alignedOffset := alignUp(c.offset, align)
		padding := alignedOffset - c.offset
		if padding+size > c.size {
			continue
		}

		f.splitChunk(p, c, padding, size)
		return alignedOffset, true
	}
	return 0, false
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// splitChunk carves [padding | allocation | remainder] out of c. The
// padding merges into the previous chunk if that chunk already belongs
// to the current frame-in-flight; otherwise it stays a small free chunk.
func (f *FrameLifetimeAllocator) splitChunk(p *page, c *chunk, padding, size uint64) {
	allocStart := c.offset + padding
	allocEnd := allocStart + size
	chunkEnd := c.offset + c.size

	if padding > 0 && c.prev != nil && c.prev.state == chunkOwned && c.prev.frame == f.currentFITF {
		c.prev.size += padding
		c.offset = allocStart
		c.size = chunkEnd - allocStart
	} else if padding > 0 {
		pad := &chunk{offset: c.offset, size: padding, state: chunkFree}
		f.insertBefore(p, c, pad)
		c.offset = allocStart
		c.size = chunkEnd - allocStart
	}

	c.state = chunkOwned
	c.frame = f.currentFITF

	remainderSize := chunkEnd - allocEnd
	if remainderSize > 0 {
		rem := &chunk{offset: allocEnd, size: remainderSize, state: chunkFree}
		c.size = size
		f.insertAfter(p, c, rem)
	}

	f.rebuildFreeList(p)
}

func (f *FrameLifetimeAllocator) insertBefore(p *page, at, n *chunk) {
	n.prev = at.prev
	n.next = at
	if at.prev != nil {
		at.prev.next = n
	} else {
		p.head = n
	}
	at.prev = n
}

func (f *FrameLifetimeAllocator) insertAfter(p *page, at, n *chunk) {
	n.next = at.next
	n.prev = at
	if at.next != nil {
		at.next.prev = n
	}
	at.next = n
}

// rebuildFreeList re-threads the free-chunk linked list from the
// byte-order chunk list. Simpler than maintaining it incrementally and
// cheap relative to the CPU-bound matching this allocator is meant to
// avoid doing (none of this runs on a hot path more than once per frame
// per resource).
func (f *FrameLifetimeAllocator) rebuildFreeList(p *page) {
	var head, tail *chunk
	for c := p.head; c != nil; c = c.next {
		if c.state != chunkFree {
			continue
		}
		c.nextFree = nil
		if head == nil {
			head = c
		} else {
			tail.nextFree = c
		}
		tail = c
	}
	p.firstFree = head
}

// Retire advances the frame-in-flight index and frees/coalesces every
// chunk tagged with the (now current) frame index, per spec's retirement
// rule: "retires all chunks tagged with the new current frame-in-flight
// index".
func (f *FrameLifetimeAllocator) Retire(newFrameInFlight int) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.currentFITF = newFrameInFlight % max(f.framesInFl, 1)

	for _, p := range f.pages {
		for c := p.head; c != nil; c = c.next {
			if c.state == chunkOwned && c.frame == f.currentFITF {
				c.state = chunkFree
			}
		}
		f.coalescePage(p)
		f.rebuildFreeList(p)
	}

	var kept []OneShotAllocation
	for _, o := range f.oneShot {
		if o.Frame != f.currentFITF {
			kept = append(kept, o)
		}
	}
	f.oneShot = kept
}

func (f *FrameLifetimeAllocator) coalescePage(p *page) {
	for c := p.head; c != nil; {
		if c.state == chunkFree && c.next != nil && c.next.state == chunkFree {
			merged := c.next
			c.size += merged.size
			c.next = merged.next
			if merged.next != nil {
				merged.next.prev = c
			}
			continue // re-check c against its new next
		}
		c = c.next
	}
}

// CleanEmptyPages releases pages that are a single free chunk spanning
// the whole page.
func (f *FrameLifetimeAllocator) CleanEmptyPages() {
	f.lock.Lock()
	defer f.lock.Unlock()

	kept := f.pages[:0]
	for _, p := range f.pages {
		if p.head.state == chunkFree && p.head.next == nil {
			continue
		}
		kept = append(kept, p)
	}
	f.pages = kept
	metrics.FrameLifetimePages.Set(float64(len(f.pages)))
}

// PageCount reports the current number of backing pages, for tests and
// diagnostics.
func (f *FrameLifetimeAllocator) PageCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.pages)
}
