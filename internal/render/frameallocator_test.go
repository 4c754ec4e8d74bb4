package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocCreatesPageOnDemand(t *testing.T) {
	f := NewFrameLifetimeAllocator(1024, 2, nil)
	require.Equal(t, 0, f.PageCount())

	a := f.Alloc(64, 16)
	require.Equal(t, 1, f.PageCount())
	require.Len(t, a.Bytes(), 64)
}

func TestAllocReusesExistingPageChunks(t *testing.T) {
	f := NewFrameLifetimeAllocator(1024, 2, nil)
	f.Alloc(64, 16)
	f.Alloc(64, 16)
	require.Equal(t, 1, f.PageCount())
}

func TestOversizeRequestGetsOneShotAllocation(t *testing.T) {
	f := NewFrameLifetimeAllocator(128, 2, nil)
	a := f.Alloc(256, 16)
	require.Equal(t, 0, f.PageCount())
	require.NotNil(t, a.OneShot)
	require.Len(t, a.Bytes(), 256)
}

func TestRetireFreesChunksTaggedWithCurrentFrame(t *testing.T) {
	f := NewFrameLifetimeAllocator(1024, 2, nil)
	f.Alloc(64, 16) // tagged frame 0

	f.Retire(1) // frame 1 has nothing tagged yet
	f.Retire(0) // now retiring frame 0 frees the original allocation

	// a full-page request fits the existing page only if the frame-0 chunk
	// was freed and coalesced back into one page-sized free chunk
	a := f.Alloc(1024, 16)
	require.NotNil(t, a.Page)
	require.Equal(t, 1, f.PageCount())
}

func TestCleanEmptyPagesReleasesFullyFreePages(t *testing.T) {
	f := NewFrameLifetimeAllocator(64, 1, nil)
	f.Alloc(64, 1)
	require.Equal(t, 1, f.PageCount())

	f.Retire(0)
	f.CleanEmptyPages()
	require.Equal(t, 0, f.PageCount())
}
