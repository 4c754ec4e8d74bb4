package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterReturnsSameHandleForStructuralMatch(t *testing.T) {
	c := NewPipelineLayoutCache()

	h1 := c.Register(64, []SetLayoutID{1, 2})
	h2 := c.Register(64, []SetLayoutID{1, 2})
	require.Equal(t, h1, h2)
	require.Equal(t, 1, c.Size())
}

func TestRegisterDistinguishesByPushConstantSize(t *testing.T) {
	c := NewPipelineLayoutCache()

	h1 := c.Register(64, []SetLayoutID{1})
	h2 := c.Register(128, []SetLayoutID{1})
	require.NotEqual(t, h1, h2)
	require.Equal(t, 2, c.Size())
}

func TestRegisterDistinguishesBySetLayoutOrder(t *testing.T) {
	c := NewPipelineLayoutCache()

	h1 := c.Register(0, []SetLayoutID{1, 2})
	h2 := c.Register(0, []SetLayoutID{2, 1})
	require.NotEqual(t, h1, h2)
}

func TestReleaseDestroysEntryAtZeroRefCount(t *testing.T) {
	c := NewPipelineLayoutCache()

	h := c.Register(32, []SetLayoutID{1})
	c.Register(32, []SetLayoutID{1}) // ref count 2
	require.Equal(t, 1, c.Size())

	c.Release(h)
	require.Equal(t, 1, c.Size()) // still referenced once

	c.Release(h)
	require.Equal(t, 0, c.Size())
}

func TestEmptySetLayoutSubstitution(t *testing.T) {
	c := NewPipelineLayoutCache()

	h1 := c.Register(0, []SetLayoutID{0})
	h2 := c.Register(0, []SetLayoutID{EmptySetLayout})
	require.Equal(t, h1, h2)
}
