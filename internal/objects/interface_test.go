package objects

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewObjectStoreMountsPackAlongsidePrimaryStore(t *testing.T) {
	packPath := buildTestPack(t)

	store, err := NewObjectStore(ObjectStoreConfig{
		Type: "memory",
		Config: map[string]string{
			"pack_path": packPath,
		},
	})
	require.NoError(t, err)

	_, ok := store.(*MountedStore)
	require.True(t, ok, "expected a MountedStore when pack_path is set")

	require.NoError(t, store.Put(context.Background(), "live.txt", strings.NewReader("hi"), ""))

	rc, err := store.Get(context.Background(), "packs/models/hero.bin")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hero-bytes", string(data))
}

func TestNewObjectStoreWithoutPackPathReturnsBareStore(t *testing.T) {
	store, err := NewObjectStore(ObjectStoreConfig{Type: "memory"})
	require.NoError(t, err)
	_, ok := store.(*MemoryObjectStore)
	require.True(t, ok)
}
