package resource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/catalystcommunity/enginecore/internal/objects"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestHotReloadAddedEntrySatisfiesWaitingRequest(t *testing.T) {
	dir := t.TempDir()
	store := objects.NewFilesystemObjectStore(dir)

	p := New(store, nil, echoLoader(), nil, nil)
	req, err := p.InsertRequest(context.Background(), "", "new.txt", 10)
	require.NoError(t, err)
	require.Equal(t, RequestNew, req.State())

	w, err := WatchFilesystem(p, dir)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("content"), 0o644))

	waitFor(t, 2*time.Second, func() bool { return req.State() == RequestAwaiting })

	p.ServeTick(context.Background())
	require.Equal(t, RequestThirdPartyProvided, req.State())
}

func TestHotReloadRemovedEntryRevertsRequestToAwaiting(t *testing.T) {
	dir := t.TempDir()
	store := objects.NewFilesystemObjectStore(dir)
	target := filepath.Join(dir, "gone.txt")
	require.NoError(t, os.WriteFile(target, []byte("content"), 0o644))

	p := New(store, nil, echoLoader(), nil, nil)
	require.NoError(t, p.Scan(context.Background(), time.Second))

	req, err := p.InsertRequest(context.Background(), "", "gone.txt", 10)
	require.NoError(t, err)
	p.ServeTick(context.Background())
	require.Equal(t, RequestThirdPartyProvided, req.State())

	w, err := WatchFilesystem(p, dir)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.Remove(target))

	waitFor(t, 2*time.Second, func() bool { return req.State() == RequestAwaiting })
}

func TestWatchProviderDerivesRootFromFilesystemStore(t *testing.T) {
	dir := t.TempDir()
	store := objects.NewFilesystemObjectStore(dir)

	p := New(store, nil, echoLoader(), nil, nil)
	req, err := p.InsertRequest(context.Background(), "", "new.txt", 10)
	require.NoError(t, err)
	require.Equal(t, RequestNew, req.State())

	w, err := WatchProvider(p)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("content"), 0o644))

	waitFor(t, 2*time.Second, func() bool { return req.State() == RequestAwaiting })
}

func TestWatchProviderRejectsNonFilesystemStore(t *testing.T) {
	store := objects.NewMemoryObjectStore()
	p := New(store, nil, echoLoader(), nil, nil)

	_, err := WatchProvider(p)
	require.Error(t, err)
}

func TestWatcherKeyStripsRoot(t *testing.T) {
	w := &Watcher{root: "/tmp/resources"}
	require.Equal(t, "models/hero.bin", w.key("/tmp/resources/models/hero.bin"))
	require.True(t, strings.HasSuffix(w.key("/tmp/resources/a.bin"), "a.bin"))
}
