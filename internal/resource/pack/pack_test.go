package pack

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildAndMountRoundTrips(t *testing.T) {
	dir := t.TempDir()
	packPath := filepath.Join(dir, "test.kanpack")

	b, err := Create(packPath, EncodingRegular)
	require.NoError(t, err)
	require.NoError(t, b.Add("models/hero.bin", []byte("hero-bytes")))
	require.NoError(t, b.Add("config/settings.rd", []byte("//! settings\nvalue=1\n")))
	require.NoError(t, b.Finish())

	p, err := Open(packPath)
	require.NoError(t, err)
	defer p.Close()

	data, err := p.Read("models/hero.bin")
	require.NoError(t, err)
	require.Equal(t, "hero-bytes", string(data))

	data, err = p.Read("config/settings.rd")
	require.NoError(t, err)
	require.Equal(t, "//! settings\nvalue=1\n", string(data))

	require.Equal(t, []string{"config/settings.rd", "models/hero.bin"}, p.List())
}

func TestMountMissingPathReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	packPath := filepath.Join(dir, "empty.kanpack")

	b, err := Create(packPath, EncodingRegular)
	require.NoError(t, err)
	require.NoError(t, b.Finish())

	p, err := Open(packPath)
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Read("nope")
	require.Error(t, err)
}

func buildPack(t *testing.T, path string, encoding Encoding) []string {
	t.Helper()
	b, err := Create(path, encoding)
	require.NoError(t, err)

	var paths []string
	for i := 0; i < 40; i++ {
		p := fmt.Sprintf("textures/characters/npc/variant/%03d.png", i)
		paths = append(paths, p)
		require.NoError(t, b.Add(p, []byte(fmt.Sprintf("pixels-%03d", i))))
	}
	require.NoError(t, b.Finish())
	return paths
}

func TestInternedEncodingRoundTrips(t *testing.T) {
	dir := t.TempDir()
	packPath := filepath.Join(dir, "interned.kanpack")
	paths := buildPack(t, packPath, EncodingInterned)

	p, err := Open(packPath)
	require.NoError(t, err)
	defer p.Close()

	require.ElementsMatch(t, paths, p.List())

	data, err := p.Read("textures/characters/npc/variant/007.png")
	require.NoError(t, err)
	require.Equal(t, "pixels-007", string(data))
}

func TestInternedEncodingProducesASmallerFileThanRegular(t *testing.T) {
	dir := t.TempDir()
	regularPath := filepath.Join(dir, "regular.kanpack")
	internedPath := filepath.Join(dir, "interned.kanpack")
	buildPack(t, regularPath, EncodingRegular)
	buildPack(t, internedPath, EncodingInterned)

	regularInfo, err := os.Stat(regularPath)
	require.NoError(t, err)
	internedInfo, err := os.Stat(internedPath)
	require.NoError(t, err)

	// The four directory segments shared by all 40 entries are interned
	// once instead of repeated inline per entry, so the interned pack is
	// smaller even though payload bytes are identical between the two.
	require.Less(t, internedInfo.Size(), regularInfo.Size())
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	packPath := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(packPath, make([]byte, footerSize), 0o644))

	_, err := Open(packPath)
	require.Error(t, err)
}
