package alloc

// General is the aligned allocate/free contract (spec §4.1): every
// allocation records (group, bytes); the caller must present the original
// size on free since Go slices carry no out-of-band size header callers
// can recover from the pointer alone.
type General struct{}

// NewGeneral returns a General allocator. It carries no state of its own;
// all accounting lives on the Group passed to each call.
func NewGeneral() *General { return &General{} }

// Alloc returns a zeroed byte slice of size, attributing it to group.
func (a *General) Alloc(group *Group, size int) []byte {
	buf := make([]byte, size)
	group.recordAlloc(int64(size))
	return buf
}

// Free releases an allocation previously returned by Alloc, given its
// original size. Go's GC reclaims the memory; this call only reverses the
// group accounting.
func (a *General) Free(group *Group, originalSize int) {
	group.recordFree(int64(originalSize))
}
