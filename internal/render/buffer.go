package render

import (
	"fmt"

	"github.com/catalystcommunity/enginecore/internal/errs"
	"github.com/catalystcommunity/enginecore/internal/metrics"
)

// Buffer is a device-backed buffer with the lifecycle the render backend
// gives every buffer: creation picks a memory type from its usage and
// the device class; patch/read route through the appropriate mapped
// memory or staging path; destruction always defers to the owning
// frame's schedule.
type Buffer struct {
	handle  DeviceBufferHandle
	usage   BufferUsage
	memType MemoryType
	size    uint64
	device  Device
	destroyed bool
}

// CreateBuffer creates a device buffer for usage, resolving its memory
// type from the device's class, and registers its "transfer-src always
// on" usage flag implicitly (read-back is always possible; this
// implementation tracks no explicit flag bits since FakeDevice has no
// flag-gated behavior to model).
func CreateBuffer(dev Device, usage BufferUsage, size uint64) (*Buffer, error) {
	memType := MemoryTypeFor(dev.Class(), usage)
	h, err := dev.CreateBuffer(size, memType)
	if err != nil {
		return nil, fmt.Errorf("render: create buffer: %w", err)
	}
	metrics.BuffersLive.WithLabelValues(bufferFamily(usage)).Inc()
	return &Buffer{handle: h, usage: usage, memType: memType, size: size, device: dev}, nil
}

func bufferFamily(u BufferUsage) string {
	switch u {
	case BufferUsageResource:
		return "resource"
	case BufferUsageDeviceFrameLifetime:
		return "device_frame_lifetime"
	case BufferUsageStagingFrameLifetime:
		return "staging_frame_lifetime"
	case BufferUsageHostFrameLifetime:
		return "host_frame_lifetime"
	case BufferUsageReadBackStorage:
		return "read_back_storage"
	default:
		return "unknown"
	}
}

// Patch returns a writable range for [offset, offset+size) and schedules
// whatever device-side work is needed to make the write visible:
//   - resource/device frame-lifetime buffers stage through a staging
//     frame-lifetime allocation and schedule a "buffer flush transfer".
//   - host frame-lifetime buffers are mapped directly; a flush is
//     scheduled only if the memory type isn't coherent (every device
//     class except DeviceUnifiedCoherent).
func (b *Buffer) Patch(staging *FrameLifetimeAllocator, schedule *Schedule, offset, size uint64) ([]byte, error) {
	if b.destroyed {
		return nil, fmt.Errorf("render: patch destroyed buffer: %w", errs.ErrValidation)
	}

	switch b.usage {
	case BufferUsageResource, BufferUsageDeviceFrameLifetime:
		alloc := staging.Alloc(size, defaultAlign)
		dst := b
		schedule.Append(ScheduleItem{
			Category: ScheduleBufferFlush,
			Run: func(dev Device) error {
				stagingHandle, err := dev.CreateBuffer(size, MemoryHostVisibleMapped)
				if err != nil {
					return err
				}
				defer dev.DestroyBuffer(stagingHandle)
				copy(dev.MappedPointer(stagingHandle), alloc.Bytes())
				return dev.CopyBuffer(stagingHandle, dst.handle, 0, offset, size)
			},
		})
		return alloc.Bytes(), nil

	case BufferUsageHostFrameLifetime:
		mapped := b.device.MappedPointer(b.handle)
		if mapped == nil {
			// Host frame-lifetime buffers are created with a mapped memory
			// type; losing the mapping is a must-succeed path failure.
			return nil, errs.NewCritical(fmt.Errorf("render: host frame-lifetime buffer not mapped: %w", errs.ErrDevice))
		}
		if b.device.Class() != DeviceUnifiedCoherent {
			dst := b
			schedule.Append(ScheduleItem{
				Category: ScheduleBufferFlush,
				Run: func(dev Device) error { return dev.FlushBuffer(dst.handle, offset, size) },
			})
		}
		return mapped[offset : offset+size], nil

	default:
		return nil, fmt.Errorf("render: patch not supported for buffer usage %d: %w", b.usage, errs.ErrValidation)
	}
}

// Read returns the mapped range for a read-back-storage buffer. Callers
// must only call Read after the frame that wrote it has completed; this
// package has no automatic fence tracking (out of scope), so it is the
// caller's responsibility, matching the contract's own phrasing.
func (b *Buffer) Read(offset, size uint64) ([]byte, error) {
	if b.usage != BufferUsageReadBackStorage {
		return nil, fmt.Errorf("render: read only valid on read-back-storage buffers: %w", errs.ErrValidation)
	}
	mapped := b.device.MappedPointer(b.handle)
	if mapped == nil {
		// Read-back-storage buffers are created with a mapped memory type;
		// losing the mapping is a must-succeed path failure.
		return nil, errs.NewCritical(fmt.Errorf("render: read-back buffer not mapped: %w", errs.ErrDevice))
	}
	return mapped[offset : offset+size], nil
}

// Destroy defers the buffer's destruction to schedule, which runs it
// after the device has finished using the object.
func (b *Buffer) Destroy(schedule *Schedule) {
	if b.destroyed {
		return
	}
	b.destroyed = true
	metrics.BuffersLive.WithLabelValues(bufferFamily(b.usage)).Dec()
	h := b.handle
	schedule.Append(ScheduleItem{
		Category: ScheduleDestruction,
		Run:      func(dev Device) error { dev.DestroyBuffer(h); return nil },
	})
}
