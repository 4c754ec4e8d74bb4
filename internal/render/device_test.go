package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeDeviceBufferRoundTrip(t *testing.T) {
	dev := NewFakeDevice(DeviceSeparate, nil)

	h, err := dev.CreateBuffer(128, MemoryHostVisibleMapped)
	require.NoError(t, err)

	mapped := dev.MappedPointer(h)
	require.Len(t, mapped, 128)

	copy(mapped, []byte("hello"))
	require.Equal(t, "hello", string(dev.MappedPointer(h)[:5]))

	dev.DestroyBuffer(h)
	require.Nil(t, dev.MappedPointer(h))
}

func TestFakeDeviceDeviceLocalBufferHasNoMappedPointer(t *testing.T) {
	dev := NewFakeDevice(DeviceSeparate, nil)
	h, err := dev.CreateBuffer(64, MemoryDeviceLocal)
	require.NoError(t, err)
	require.Nil(t, dev.MappedPointer(h))
}

func TestFakeDeviceImageUploadAndDestroy(t *testing.T) {
	dev := NewFakeDevice(DeviceSeparate, nil)
	h, err := dev.CreateImage(32, 32, 1)
	require.NoError(t, err)

	require.NoError(t, dev.UploadImageRegion(h, 0, 0, []byte("pixels")))
	require.NoError(t, dev.ClearImageColor(h, [4]float32{1, 0, 0, 1}))
	require.NoError(t, dev.GenerateMips(h))

	dev.DestroyImage(h)
	require.Error(t, dev.UploadImageRegion(h, 0, 0, []byte("x")))
}
