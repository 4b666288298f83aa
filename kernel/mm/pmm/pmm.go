// Package pmm implements the physical frame allocator and the FrameTracker
// handles through which the rest of the kernel owns frames.
package pmm

import (
	"rvos/kernel"
	"rvos/kernel/mm"
)

var (
	// bitmapAllocator is the standard allocator used by the kernel.
	bitmapAllocator BitmapAllocator
)

// Init sets up the kernel physical memory allocation sub-system so that it
// manages every whole frame inside [start, end).
func Init(start, end mm.PhysAddr) *kernel.Error {
	if err := bitmapAllocator.init(start.Ceil(), end.Floor()); err != nil {
		return err
	}

	bitmapAllocator.printStats()
	return nil
}

// FrameTracker is the exclusive handle for an allocated frame. The holder is
// responsible for calling Free exactly once.
type FrameTracker struct {
	PPN mm.PhysPageNum
}

// AllocFrame reserves a frame and clears its contents.
func AllocFrame() (FrameTracker, *kernel.Error) {
	ppn, err := bitmapAllocator.AllocFrame()
	if err != nil {
		return FrameTracker{}, err
	}

	ppn.Zero()
	return FrameTracker{PPN: ppn}, nil
}

// Free returns the frame to the allocator. Freeing a frame twice or a frame
// that the allocator does not manage is a kernel bug and causes a panic.
func (f FrameTracker) Free() {
	if err := bitmapAllocator.FreeFrame(f.PPN); err != nil {
		panic(err)
	}
}

// FreeFrames returns the number of frames that are currently available.
func FreeFrames() uint32 {
	return bitmapAllocator.pool.freeCount
}
