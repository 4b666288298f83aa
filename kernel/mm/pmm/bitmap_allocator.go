package pmm

import (
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mm"
	"unsafe"
)

var (
	errBitmapAllocOutOfMemory     = &kernel.Error{Module: "bitmap_alloc", Message: "out of memory"}
	errBitmapAllocFrameNotManaged = &kernel.Error{Module: "bitmap_alloc", Message: "frame not managed by this allocator"}
	errBitmapAllocDoubleFree      = &kernel.Error{Module: "bitmap_alloc", Message: "frame is already free"}
	errBitmapAllocRegionTooSmall  = &kernel.Error{Module: "bitmap_alloc", Message: "region too small to hold the allocator bitmap"}

	log = kfmt.Logger{Module: "pmm"}
)

type markAs bool

const (
	markReserved markAs = false
	markFree     markAs = true
)

type framePool struct {
	// startFrame is the frame number for the first page in this pool.
	// each free bitmap entry i corresponds to frame (startFrame + i).
	startFrame mm.PhysPageNum

	// endFrame is the first frame past the end of the pool. The total
	// number of frames is given by: endFrame - startFrame
	endFrame mm.PhysPageNum

	// freeCount tracks the available pages in this pool. The allocator
	// can use this field to fail fast without scanning the free bitmap.
	freeCount uint32

	// freeBitmap tracks used/free pages in the pool. A set bit marks a
	// reserved frame.
	freeBitmap []uint64
}

// BitmapAllocator implements a physical frame allocator that tracks frame
// reservations across a contiguous range of frames using a bitmap.
type BitmapAllocator struct {
	// totalPages tracks the total number of pages in the pool.
	totalPages uint32

	// reservedPages tracks the number of reserved pages in the pool,
	// including the pages holding the bitmap itself.
	reservedPages uint32

	pool framePool
}

// init sets up the allocator to manage the frames in [start, end). The free
// bitmap is stored at the beginning of the range and the frames that hold it
// are flagged as reserved.
func (alloc *BitmapAllocator) init(start, end mm.PhysPageNum) *kernel.Error {
	if end <= start {
		return errBitmapAllocRegionTooSmall
	}

	var (
		pageCount = uint32(end - start)

		// To represent the free page bitmap we need pageCount bits. Since our
		// slice uses uint64 for storing the bitmap we need to round up the
		// required bits so they are a multiple of 64 bits
		bitmapWords = int((pageCount + 63) >> 6)
		bitmapPages = (uintptr(bitmapWords<<mm.PointerShift) + mm.PageSize - 1) >> mm.PageShift
	)

	if uintptr(pageCount) <= bitmapPages {
		return errBitmapAllocRegionTooSmall
	}

	bitmapMem := start.Span(int(bitmapPages))
	kernel.Memset(bitmapMem, 0)

	*alloc = BitmapAllocator{
		totalPages: pageCount,
		pool: framePool{
			startFrame: start,
			endFrame:   end,
			freeCount:  pageCount,
			freeBitmap: unsafe.Slice((*uint64)(unsafe.Pointer(&bitmapMem[0])), bitmapWords),
		},
	}

	for frame := start; frame < start+mm.PhysPageNum(bitmapPages); frame++ {
		alloc.markFrame(frame, markReserved)
	}

	return nil
}

// markFrame updates the reservation flag for the bitmap entry that
// corresponds to the supplied frame. Frames outside the pool are ignored.
func (alloc *BitmapAllocator) markFrame(frame mm.PhysPageNum, flag markAs) {
	if !alloc.managesFrame(frame) {
		return
	}

	// The offset in the block is given by: frame % 64. As the bitmap uses a
	// big-ending representation we need to set the bit at index: 63 - offset
	relFrame := frame - alloc.pool.startFrame
	block := relFrame >> 6
	mask := uint64(1 << (63 - (relFrame - block<<6)))

	switch flag {
	case markFree:
		alloc.pool.freeBitmap[block] &^= mask
		alloc.pool.freeCount++
		alloc.reservedPages--
	case markReserved:
		alloc.pool.freeBitmap[block] |= mask
		alloc.pool.freeCount--
		alloc.reservedPages++
	}
}

// managesFrame returns true if the frame belongs to the pool.
func (alloc *BitmapAllocator) managesFrame(frame mm.PhysPageNum) bool {
	return frame >= alloc.pool.startFrame && frame < alloc.pool.endFrame
}

// AllocFrame reserves and returns the lowest free frame.
func (alloc *BitmapAllocator) AllocFrame() (mm.PhysPageNum, *kernel.Error) {
	if alloc.pool.freeCount == 0 {
		return 0, errBitmapAllocOutOfMemory
	}

	for blockIndex, block := range alloc.pool.freeBitmap {
		if block == ^uint64(0) {
			continue
		}

		for blockOffset, mask := 0, uint64(1<<63); mask > 0; blockOffset, mask = blockOffset+1, mask>>1 {
			if block&mask != 0 {
				continue
			}

			frame := alloc.pool.startFrame + mm.PhysPageNum(blockIndex<<6+blockOffset)
			if !alloc.managesFrame(frame) {
				// padding bits past the end of the pool
				return 0, errBitmapAllocOutOfMemory
			}

			alloc.markFrame(frame, markReserved)
			return frame, nil
		}
	}

	return 0, errBitmapAllocOutOfMemory
}

// FreeFrame releases a frame previously allocated via a call to AllocFrame.
func (alloc *BitmapAllocator) FreeFrame(frame mm.PhysPageNum) *kernel.Error {
	if !alloc.managesFrame(frame) {
		return errBitmapAllocFrameNotManaged
	}

	relFrame := frame - alloc.pool.startFrame
	block := relFrame >> 6
	mask := uint64(1 << (63 - (relFrame - block<<6)))

	if alloc.pool.freeBitmap[block]&mask == 0 {
		return errBitmapAllocDoubleFree
	}

	alloc.markFrame(frame, markFree)
	return nil
}

// printStats logs the size of the managed range.
func (alloc *BitmapAllocator) printStats() {
	log.Infof("managing frames [0x%x, 0x%x): %d total, %d reserved",
		uintptr(alloc.pool.startFrame), uintptr(alloc.pool.endFrame),
		alloc.totalPages, alloc.reservedPages,
	)
}
