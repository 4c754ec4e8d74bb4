package objects

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMountedStoreRoutesByLongestPrefix(t *testing.T) {
	root := NewMemoryObjectStore()
	require.NoError(t, root.Put(context.Background(), "readme.txt", strings.NewReader("root"), ""))

	packs := NewMemoryObjectStore()
	require.NoError(t, packs.Put(context.Background(), "hero.bin", strings.NewReader("packed"), ""))

	m := NewMountedStore()
	require.NoError(t, m.Mount("", root))
	require.NoError(t, m.Mount("packs", packs))

	rc, err := m.Get(context.Background(), "readme.txt")
	require.NoError(t, err)
	defer rc.Close()

	rc2, err := m.Get(context.Background(), "packs/hero.bin")
	require.NoError(t, err)
	defer rc2.Close()
}

func TestMountedStoreListMergesAcrossMounts(t *testing.T) {
	root := NewMemoryObjectStore()
	require.NoError(t, root.Put(context.Background(), "readme.txt", strings.NewReader("root"), ""))

	packs := NewMemoryObjectStore()
	require.NoError(t, packs.Put(context.Background(), "hero.bin", strings.NewReader("packed"), ""))

	m := NewMountedStore()
	require.NoError(t, m.Mount("", root))
	require.NoError(t, m.Mount("packs", packs))

	infos, err := m.List(context.Background(), "")
	require.NoError(t, err)

	var keys []string
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	require.ElementsMatch(t, []string{"readme.txt", "packs/hero.bin"}, keys)

	scoped, err := m.List(context.Background(), "packs")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	require.Equal(t, "packs/hero.bin", scoped[0].Key)
}

func TestMountedStoreUnmountLeavesUnderlyingStoreIntact(t *testing.T) {
	packs := NewMemoryObjectStore()
	require.NoError(t, packs.Put(context.Background(), "hero.bin", strings.NewReader("packed"), ""))

	m := NewMountedStore()
	require.NoError(t, m.Mount("packs", packs))
	require.NoError(t, m.Unmount("packs"))

	_, err := m.Get(context.Background(), "packs/hero.bin")
	require.ErrorIs(t, err, ErrNotFound)

	exists, err := packs.Exists(context.Background(), "hero.bin")
	require.NoError(t, err)
	require.True(t, exists)

	require.ErrorIs(t, m.Unmount("packs"), ErrNotFound)
}

func TestMountedStoreBasePathDelegatesToRootMount(t *testing.T) {
	fsStore := NewFilesystemObjectStore("/tmp/resources")
	m := NewMountedStore()
	require.NoError(t, m.Mount("", fsStore))
	require.Equal(t, "/tmp/resources", m.BasePath())

	m2 := NewMountedStore()
	require.NoError(t, m2.Mount("", NewMemoryObjectStore()))
	require.Equal(t, "", m2.BasePath())
}
