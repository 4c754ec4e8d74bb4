package alloc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupTreeAttributesToAncestors(t *testing.T) {
	root := &Group{name: "root", children: make(map[string]*Group)}
	child := root.Child("resources")
	grandchild := child.Child("textures")

	grandchild.recordAlloc(100)
	assert.Equal(t, int64(100), grandchild.Bytes())
	assert.Equal(t, int64(100), child.Bytes())
	assert.Equal(t, int64(100), root.Bytes())

	grandchild.recordFree(40)
	assert.Equal(t, int64(60), grandchild.Bytes())
	assert.Equal(t, int64(60), root.Bytes())
}

func TestGroupChildIsStableAcrossCalls(t *testing.T) {
	root := &Group{name: "root", children: make(map[string]*Group)}
	a := root.Child("dispatch")
	b := root.Child("dispatch")
	assert.Same(t, a, b)
}

func TestGeneralAllocRecordsBytes(t *testing.T) {
	root := &Group{name: "root", children: make(map[string]*Group)}
	g := NewGeneral()
	buf := g.Alloc(root, 128)
	require.Len(t, buf, 128)
	assert.Equal(t, int64(128), root.Bytes())

	g.Free(root, 128)
	assert.Equal(t, int64(0), root.Bytes())
}

func TestBatchedAllocRejectsOversizeRequests(t *testing.T) {
	root := &Group{name: "root", children: make(map[string]*Group)}
	reserve := root.Child("reserve")
	b := NewBatched(reserve)

	_, ok := b.Alloc(root, MaxRationalItemSize+1)
	assert.False(t, ok)
}

func TestBatchedAllocFreeRoundTrips(t *testing.T) {
	root := &Group{name: "root", children: make(map[string]*Group)}
	reserve := &Group{name: "reserve", children: make(map[string]*Group)}
	b := NewBatched(reserve)

	item, ok := b.Alloc(root, 10)
	require.True(t, ok)
	require.Len(t, item.Data, 10)
	assert.Equal(t, int64(16), root.Bytes()) // rounds up to the 16B class

	b.Free(root, item)
	assert.Equal(t, int64(0), root.Bytes())
}

func TestBatchedAllocConcurrentReuseIsRaceFree(t *testing.T) {
	root := &Group{name: "root", children: make(map[string]*Group)}
	reserve := &Group{name: "reserve", children: make(map[string]*Group)}
	b := NewBatched(reserve)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, ok := b.Alloc(root, 32)
			if !ok {
				t.Error("expected batched alloc to succeed for in-range size")
				return
			}
			b.Free(root, item)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(0), root.Bytes())
}

func TestStackSaveLoadTop(t *testing.T) {
	s := NewStack(64)
	a := s.Alloc(16)
	require.NotNil(t, a)

	marker := s.SaveTop()
	b := s.Alloc(16)
	require.NotNil(t, b)

	s.LoadTop(marker)
	c := s.Alloc(32)
	require.NotNil(t, c)
}

func TestStackOverflowReturnsNil(t *testing.T) {
	s := NewStack(16)
	a := s.Alloc(16)
	require.NotNil(t, a)

	b := s.Alloc(1)
	assert.Nil(t, b)
}
