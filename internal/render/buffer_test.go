package render

import (
	"errors"
	"testing"

	"github.com/catalystcommunity/enginecore/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestMemoryTypeForUnifiedDeviceIsAlwaysHostVisible(t *testing.T) {
	require.Equal(t, MemoryHostVisibleMapped, MemoryTypeFor(DeviceUnified, BufferUsageResource))
	require.Equal(t, MemoryHostVisibleMapped, MemoryTypeFor(DeviceUnifiedCoherent, BufferUsageReadBackStorage))
}

func TestMemoryTypeForSeparateDeviceFollowsUsage(t *testing.T) {
	require.Equal(t, MemoryDeviceLocal, MemoryTypeFor(DeviceSeparate, BufferUsageResource))
	require.Equal(t, MemoryDeviceLocal, MemoryTypeFor(DeviceSeparate, BufferUsageDeviceFrameLifetime))
	require.Equal(t, MemoryHostVisibleMapped, MemoryTypeFor(DeviceSeparate, BufferUsageStagingFrameLifetime))
	require.Equal(t, MemoryHostVisibleMapped, MemoryTypeFor(DeviceSeparate, BufferUsageHostFrameLifetime))
	require.Equal(t, MemoryHostVisibleRandomAccessMapped, MemoryTypeFor(DeviceSeparate, BufferUsageReadBackStorage))
}

func TestPatchOnResourceBufferSchedulesBufferFlush(t *testing.T) {
	dev := NewFakeDevice(DeviceSeparate, nil)
	staging := NewFrameLifetimeAllocator(4096, 2, nil)
	schedule := NewSchedule()

	buf, err := CreateBuffer(dev, BufferUsageResource, 256)
	require.NoError(t, err)

	data, err := buf.Patch(staging, schedule, 0, 64)
	require.NoError(t, err)
	require.Len(t, data, 64)
	require.Equal(t, 1, schedule.Len(ScheduleBufferFlush))

	require.NoError(t, schedule.Flush(dev, ScheduleBufferFlush))
	require.Equal(t, 0, schedule.Len(ScheduleBufferFlush))
}

func TestPatchOnHostFrameLifetimeBufferReturnsMappedRangeDirectly(t *testing.T) {
	dev := NewFakeDevice(DeviceSeparate, nil)
	staging := NewFrameLifetimeAllocator(4096, 2, nil)
	schedule := NewSchedule()

	buf, err := CreateBuffer(dev, BufferUsageHostFrameLifetime, 256)
	require.NoError(t, err)

	data, err := buf.Patch(staging, schedule, 10, 20)
	require.NoError(t, err)
	require.Len(t, data, 20)
}

func TestReadOnlyValidForReadBackStorageBuffers(t *testing.T) {
	dev := NewFakeDevice(DeviceSeparate, nil)
	buf, err := CreateBuffer(dev, BufferUsageResource, 64)
	require.NoError(t, err)

	_, err = buf.Read(0, 16)
	require.Error(t, err)
}

func TestPatchOnHostFrameLifetimeBufferRaisesCriticalWhenUnmapped(t *testing.T) {
	dev := NewFakeDevice(DeviceSeparate, nil)
	staging := NewFrameLifetimeAllocator(4096, 2, nil)
	schedule := NewSchedule()

	buf, err := CreateBuffer(dev, BufferUsageHostFrameLifetime, 256)
	require.NoError(t, err)

	// Simulate device loss underneath the buffer without going through
	// Buffer.Destroy: the buffer still declares itself mapped, but the
	// device no longer reports a mapped pointer for it.
	dev.DestroyBuffer(buf.handle)

	_, err = buf.Patch(staging, schedule, 0, 16)
	require.Error(t, err)
	var critical *errs.CriticalError
	require.True(t, errors.As(err, &critical))
	require.ErrorIs(t, err, errs.ErrDevice)
}

func TestReadOnReadBackStorageBufferRaisesCriticalWhenUnmapped(t *testing.T) {
	dev := NewFakeDevice(DeviceSeparate, nil)
	buf, err := CreateBuffer(dev, BufferUsageReadBackStorage, 64)
	require.NoError(t, err)

	dev.DestroyBuffer(buf.handle)

	_, err = buf.Read(0, 16)
	require.Error(t, err)
	var critical *errs.CriticalError
	require.True(t, errors.As(err, &critical))
	require.ErrorIs(t, err, errs.ErrDevice)
}

func TestDestroyDefersToScheduleAndIsIdempotent(t *testing.T) {
	dev := NewFakeDevice(DeviceSeparate, nil)
	schedule := NewSchedule()

	buf, err := CreateBuffer(dev, BufferUsageResource, 64)
	require.NoError(t, err)

	buf.Destroy(schedule)
	buf.Destroy(schedule) // idempotent: second call does not double-schedule
	require.Equal(t, 1, schedule.Len(ScheduleDestruction))

	require.NoError(t, schedule.Flush(dev, ScheduleDestruction))
}
