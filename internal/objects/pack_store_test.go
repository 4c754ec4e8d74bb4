package objects

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/catalystcommunity/enginecore/internal/resource/pack"
	"github.com/stretchr/testify/require"
)

func buildTestPack(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.kanpack")
	b, err := pack.Create(path, pack.EncodingRegular)
	require.NoError(t, err)
	require.NoError(t, b.Add("models/hero.bin", []byte("hero-bytes")))
	require.NoError(t, b.Add("config/settings.rd", []byte("//! settings\nvalue=1\n")))
	require.NoError(t, b.Finish())
	return path
}

func TestPackObjectStoreGetReadsPayload(t *testing.T) {
	s, err := NewPackObjectStore(buildTestPack(t))
	require.NoError(t, err)
	defer s.Close()

	rc, err := s.Get(context.Background(), "models/hero.bin")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hero-bytes", string(data))
}

func TestPackObjectStoreIsReadOnly(t *testing.T) {
	s, err := NewPackObjectStore(buildTestPack(t))
	require.NoError(t, err)
	defer s.Close()

	err = s.Put(context.Background(), "new.bin", nil, "")
	require.ErrorIs(t, err, ErrNotSupported)
	require.ErrorIs(t, s.Delete(context.Background(), "models/hero.bin"), ErrNotSupported)
}

func TestPackObjectStoreExistsAndList(t *testing.T) {
	s, err := NewPackObjectStore(buildTestPack(t))
	require.NoError(t, err)
	defer s.Close()

	exists, err := s.Exists(context.Background(), "config/settings.rd")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = s.Exists(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, exists)

	infos, err := s.List(context.Background(), "models/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "models/hero.bin", infos[0].Key)
	require.Equal(t, int64(len("hero-bytes")), infos[0].Size)
}
