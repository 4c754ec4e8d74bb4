package resource

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/catalystcommunity/enginecore/internal/objects"
	"github.com/stretchr/testify/require"
)

func echoLoader() Loader {
	return LoaderFunc(func(_ context.Context, typeName string, data []byte) (interface{}, error) {
		return string(data), nil
	})
}

func TestScanThenServeProvidesNativeContainer(t *testing.T) {
	store := objects.NewMemoryObjectStore()
	require.NoError(t, store.Put(context.Background(), "hero.bin", strings.NewReader("hero-payload"), ""))

	p := New(store, nil, echoLoader(), nil, nil)
	require.NoError(t, p.Scan(context.Background(), time.Second))
	require.True(t, p.ScanDone())

	req, err := p.InsertRequest(context.Background(), "hero", "hero.bin", 50)
	require.NoError(t, err)
	require.Equal(t, RequestAwaiting, req.State())

	p.ServeTick(context.Background())
	require.Equal(t, RequestContainerProvided, req.State())

	c, ok := p.GetContainer(req.Outcome().ContainerID)
	require.True(t, ok)
	require.Equal(t, "hero-payload", c.Payload)
}

func TestInsertRequestBeforeScanStaysNewUntilEntryAppears(t *testing.T) {
	store := objects.NewMemoryObjectStore()
	p := New(store, nil, echoLoader(), nil, nil)

	req, err := p.InsertRequest(context.Background(), "", "sound.ogg", 10)
	require.NoError(t, err)
	require.Equal(t, RequestNew, req.State())

	require.NoError(t, store.Put(context.Background(), "sound.ogg", strings.NewReader("raw-bytes"), ""))
	require.NoError(t, p.Scan(context.Background(), time.Second))
	require.Equal(t, RequestAwaiting, req.State())

	p.ServeTick(context.Background())
	require.Equal(t, RequestThirdPartyProvided, req.State())
	require.Equal(t, "raw-bytes", string(req.Outcome().ThirdPartyData))
}

func TestInsertRequestRejectsPriorityOutOfRange(t *testing.T) {
	store := objects.NewMemoryObjectStore()
	p := New(store, nil, echoLoader(), nil, nil)

	_, err := p.InsertRequest(context.Background(), "", "x", -1)
	require.Error(t, err)

	_, err = p.InsertRequest(context.Background(), "", "x", UserPriorityMax+1)
	require.Error(t, err)
}

func TestDeleteRequestFreesLastReferencingContainer(t *testing.T) {
	store := objects.NewMemoryObjectStore()
	require.NoError(t, store.Put(context.Background(), "hero.bin", strings.NewReader("payload"), ""))

	p := New(store, nil, echoLoader(), nil, nil)
	require.NoError(t, p.Scan(context.Background(), time.Second))

	req, err := p.InsertRequest(context.Background(), "hero", "hero.bin", 50)
	require.NoError(t, err)
	p.ServeTick(context.Background())

	containerID := req.Outcome().ContainerID
	require.NoError(t, p.DeleteRequest(req.ID))

	_, ok := p.GetContainer(containerID)
	require.False(t, ok)
}

func TestGroupedRequestsShareOneLoadAndPublishTogether(t *testing.T) {
	store := objects.NewMemoryObjectStore()
	require.NoError(t, store.Put(context.Background(), "hero.bin", strings.NewReader("payload"), ""))

	p := New(store, nil, echoLoader(), nil, nil)
	require.NoError(t, p.Scan(context.Background(), time.Second))

	r1, err := p.InsertRequest(context.Background(), "hero", "hero.bin", 10)
	require.NoError(t, err)
	r2, err := p.InsertRequest(context.Background(), "hero", "hero.bin", 90)
	require.NoError(t, err)

	p.ServeTick(context.Background())

	require.Equal(t, RequestContainerProvided, r1.State())
	require.Equal(t, RequestContainerProvided, r2.State())
	require.Equal(t, r1.Outcome().ContainerID, r2.Outcome().ContainerID)
}
