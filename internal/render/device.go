// Package render implements the render backend's resource layer: a
// frame-lifetime page/chunk allocator (I), buffer/image lifecycle state
// machines with patch/read-back/upload scheduling (J), and a pipeline-
// layout dedup cache (K). None of it talks to a real GPU API — no
// Vulkan/Metal/D3D binding exists anywhere in the reference pack — so
// everything here is built against a narrow Device interface, with
// FakeDevice as the in-memory test double standing in for a real driver.
package render

import "github.com/catalystcommunity/enginecore/internal/alloc"

// DeviceClass determines which memory type a buffer of a given usage
// lands in.
type DeviceClass int

const (
	// DeviceUnified is a device where host and GPU memory are the same
	// pool; buffers are always host-visible and mapped for sequential
	// write.
	DeviceUnified DeviceClass = iota
	// DeviceUnifiedCoherent is DeviceUnified with coherent mapped memory
	// (no explicit flush needed).
	DeviceUnifiedCoherent
	// DeviceSeparate is a discrete device with distinct host and device
	// memory pools.
	DeviceSeparate
)

// MemoryType is the resolved memory placement for a buffer or image.
type MemoryType int

const (
	MemoryDeviceLocal MemoryType = iota
	MemoryHostVisibleMapped
	MemoryHostVisibleRandomAccessMapped
)

// BufferUsage names the logical role a buffer plays, which determines its
// memory type and usage flags.
type BufferUsage int

const (
	BufferUsageResource BufferUsage = iota
	BufferUsageDeviceFrameLifetime
	BufferUsageStagingFrameLifetime
	BufferUsageHostFrameLifetime
	BufferUsageReadBackStorage
)

// MemoryTypeFor resolves a buffer usage to a memory type given the
// device class, per the buffer-creation memory-type rules.
func MemoryTypeFor(class DeviceClass, usage BufferUsage) MemoryType {
	if class == DeviceUnified || class == DeviceUnifiedCoherent {
		return MemoryHostVisibleMapped
	}

	switch usage {
	case BufferUsageResource, BufferUsageDeviceFrameLifetime:
		return MemoryDeviceLocal
	case BufferUsageStagingFrameLifetime, BufferUsageHostFrameLifetime:
		return MemoryHostVisibleMapped
	case BufferUsageReadBackStorage:
		return MemoryHostVisibleRandomAccessMapped
	default:
		return MemoryDeviceLocal
	}
}

// DeviceBufferHandle and DeviceImageHandle are opaque device-side
// resource identities. A real backend would hand back a driver handle;
// FakeDevice hands back an incrementing id.
type DeviceBufferHandle uint64
type DeviceImageHandle uint64

// Device is the narrow seam between this package's scheduling/lifecycle
// logic and an actual GPU driver.
type Device interface {
	Class() DeviceClass

	CreateBuffer(size uint64, memType MemoryType) (DeviceBufferHandle, error)
	DestroyBuffer(DeviceBufferHandle)
	// MappedPointer returns a stable byte slice aliasing the buffer's
	// mapped memory, or nil if the buffer's memory type isn't mapped.
	MappedPointer(DeviceBufferHandle) []byte
	FlushBuffer(h DeviceBufferHandle, offset, size uint64) error
	CopyBuffer(src, dst DeviceBufferHandle, srcOffset, dstOffset, size uint64) error

	CreateImage(width, height uint32, mips uint32) (DeviceImageHandle, error)
	DestroyImage(DeviceImageHandle)
	UploadImageRegion(h DeviceImageHandle, layer, mip uint32, data []byte) error
	ClearImageColor(h DeviceImageHandle, rgba [4]float32) error
	GenerateMips(h DeviceImageHandle) error
}

// FakeDevice is an in-memory Device used for tests and for hosts with no
// real GPU backend wired in.
type FakeDevice struct {
	class   DeviceClass
	group   *alloc.Group
	nextID  uint64
	buffers map[DeviceBufferHandle]*fakeBuffer
	images  map[DeviceImageHandle]*fakeImage
}

type fakeBuffer struct {
	size    uint64
	memType MemoryType
	data    []byte
}

type fakeImage struct {
	width, height, mips uint32
	regions             map[[2]uint32][]byte // (layer,mip) -> bytes
}

// NewFakeDevice creates a FakeDevice of the given class.
func NewFakeDevice(class DeviceClass, group *alloc.Group) *FakeDevice {
	if group == nil {
		group = alloc.Root().Child("render")
	}
	return &FakeDevice{
		class:   class,
		group:   group,
		buffers: make(map[DeviceBufferHandle]*fakeBuffer),
		images:  make(map[DeviceImageHandle]*fakeImage),
	}
}

func (d *FakeDevice) Class() DeviceClass { return d.class }

func (d *FakeDevice) CreateBuffer(size uint64, memType MemoryType) (DeviceBufferHandle, error) {
	d.nextID++
	h := DeviceBufferHandle(d.nextID)
	d.buffers[h] = &fakeBuffer{size: size, memType: memType, data: make([]byte, size)}
	return h, nil
}

func (d *FakeDevice) DestroyBuffer(h DeviceBufferHandle) { delete(d.buffers, h) }

func (d *FakeDevice) MappedPointer(h DeviceBufferHandle) []byte {
	b, ok := d.buffers[h]
	if !ok || b.memType == MemoryDeviceLocal {
		return nil
	}
	return b.data
}

func (d *FakeDevice) FlushBuffer(h DeviceBufferHandle, offset, size uint64) error { return nil }

func (d *FakeDevice) CopyBuffer(src, dst DeviceBufferHandle, srcOffset, dstOffset, size uint64) error {
	s, ok := d.buffers[src]
	if !ok {
		return errNoSuchBuffer
	}
	t, ok := d.buffers[dst]
	if !ok {
		return errNoSuchBuffer
	}
	copy(t.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	return nil
}

func (d *FakeDevice) CreateImage(width, height, mips uint32) (DeviceImageHandle, error) {
	d.nextID++
	h := DeviceImageHandle(d.nextID)
	d.images[h] = &fakeImage{width: width, height: height, mips: mips, regions: make(map[[2]uint32][]byte)}
	return h, nil
}

func (d *FakeDevice) DestroyImage(h DeviceImageHandle) { delete(d.images, h) }

func (d *FakeDevice) UploadImageRegion(h DeviceImageHandle, layer, mip uint32, data []byte) error {
	img, ok := d.images[h]
	if !ok {
		return errNoSuchImage
	}
	img.regions[[2]uint32{layer, mip}] = append([]byte(nil), data...)
	return nil
}

func (d *FakeDevice) ClearImageColor(h DeviceImageHandle, rgba [4]float32) error {
	if _, ok := d.images[h]; !ok {
		return errNoSuchImage
	}
	return nil
}

func (d *FakeDevice) GenerateMips(h DeviceImageHandle) error {
	if _, ok := d.images[h]; !ok {
		return errNoSuchImage
	}
	return nil
}
