package alloc

// MaxRationalItemSize is the largest request the batched pool will serve;
// larger requests fall through to the caller's general allocator instead.
const MaxRationalItemSize = 256

// sizeClassStep is the granularity between adjacent free lists.
const sizeClassStep = 8

// pageBytes is the nominal page size backing each size class's pool. It is
// tracked for accounting only — Go's allocator does not expose raw pages —
// so "reserve" capacity (pages minus items actually handed out) stays
// visible the way spec §4.1 describes.
const pageBytes = 64 * 1024

// Item is a handle to a batched allocation. Free derives its size class
// from the handle itself (the Go analogue of "pool derived from the
// page-aligned item address": Go has no raw pointer arithmetic over GC'd
// memory, so the class travels with the handle instead of the address).
type Item struct {
	Data  []byte
	class int
}

// Batched is a pooled small-object allocator: one free list per size
// class, stepping by sizeClassStep up to MaxRationalItemSize.
type Batched struct {
	classes []batchClass
	reserve *Group
}

type batchClass struct {
	itemSize  int
	lock      spinLock
	free      [][]byte
	items     int // items ever created for this class
	pagePages int // number of pageBytes-sized pages "reserved" for this class
}

// NewBatched creates a batched allocator. reserve is the allocation group
// that tracks unused pool capacity, matching spec's "group metadata is
// profiled separately in a reserve group so unused pool capacity is
// visible".
func NewBatched(reserve *Group) *Batched {
	numClasses := MaxRationalItemSize / sizeClassStep
	b := &Batched{classes: make([]batchClass, numClasses), reserve: reserve}
	for i := range b.classes {
		b.classes[i].itemSize = (i + 1) * sizeClassStep
	}
	return b
}

func classIndexFor(size int) (int, bool) {
	if size <= 0 || size > MaxRationalItemSize {
		return 0, false
	}
	idx := (size + sizeClassStep - 1) / sizeClassStep
	return idx - 1, true
}

// Alloc returns an Item sized to the smallest size class ≥ size, or
// reports ok=false if size exceeds MaxRationalItemSize (caller should fall
// back to General.Alloc).
func (b *Batched) Alloc(group *Group, size int) (Item, bool) {
	idx, ok := classIndexFor(size)
	if !ok {
		return Item{}, false
	}
	c := &b.classes[idx]

	c.lock.Lock()
	var data []byte
	n := len(c.free)
	if n > 0 {
		data = c.free[n-1]
		c.free = c.free[:n-1]
	}
	c.lock.Unlock()

	if data == nil {
		data = make([]byte, c.itemSize)
		itemsPerPage := pageBytes / c.itemSize
		if itemsPerPage < 1 {
			itemsPerPage = 1
		}
		c.lock.Lock()
		newPage := c.items%itemsPerPage == 0
		c.items++
		if newPage {
			c.pagePages++
		}
		c.lock.Unlock()
		if newPage {
			b.reserve.recordAlloc(int64(pageBytes))
		}
	}

	group.recordAlloc(int64(c.itemSize))
	return Item{Data: data[:size], class: idx}, true
}

// Free returns item's backing buffer to its size class's free list.
func (b *Batched) Free(group *Group, item Item) {
	c := &b.classes[item.class]
	group.recordFree(int64(c.itemSize))

	c.lock.Lock()
	c.free = append(c.free, item.Data[:cap(item.Data)])
	c.lock.Unlock()
}
