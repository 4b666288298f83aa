package mm

import (
	"rvos/kernel"
	"unsafe"
)

var (
	// physMem is the window through which the kernel accesses physical
	// memory; physBase is the frame that corresponds to physMem[0]. On the
	// target the window overlays the identity-mapped RAM; tests install a
	// page-aligned Go byte arena instead.
	physMem  []byte
	physBase PhysPageNum

	errFrameOutsideWindow = &kernel.Error{Module: "mm", Message: "physical page is outside the physical memory window"}
)

// MapPhysicalMemory overlays the physical memory window on top of the
// identity-mapped RAM range [start, end).
func MapPhysicalMemory(start, end PhysAddr) {
	startPPN, endPPN := start.Floor(), end.Floor()
	size := uintptr(endPPN-startPPN) << PageShift
	window := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(startPPN.Addr()))), size)
	SetPhysicalMemory(window, startPPN)
}

// SetPhysicalMemory installs mem as the physical memory window with mem[0]
// holding the first byte of frame base. The length of mem is truncated to a
// whole number of pages.
func SetPhysicalMemory(mem []byte, base PhysPageNum) {
	physMem = mem[:uintptr(len(mem))&^(PageSize-1)]
	physBase = base
}

// PhysicalWindow returns the range of frames reachable through the physical
// memory window.
func PhysicalWindow() (start, end PhysPageNum) {
	return physBase, physBase + PhysPageNum(uintptr(len(physMem))>>PageShift)
}

// Bytes returns the contents of the frame. Writes to the returned slice
// modify physical memory.
func (ppn PhysPageNum) Bytes() []byte {
	start, end := PhysicalWindow()
	if ppn < start || ppn >= end {
		panic(errFrameOutsideWindow)
	}

	offset := uintptr(ppn-start) << PageShift
	return physMem[offset : offset+PageSize : offset+PageSize]
}

// Span returns the contents of count consecutive frames starting at ppn.
func (ppn PhysPageNum) Span(count int) []byte {
	start, end := PhysicalWindow()
	if count <= 0 || ppn < start || ppn+PhysPageNum(count) > end {
		panic(errFrameOutsideWindow)
	}

	offset := uintptr(ppn-start) << PageShift
	limit := offset + uintptr(count)<<PageShift
	return physMem[offset:limit:limit]
}

// Zero clears the contents of the frame.
func (ppn PhysPageNum) Zero() {
	kernel.Memset(ppn.Bytes(), 0)
}

// PTEs returns the frame contents as an array of machine words. Page-table
// pages are accessed through this view.
func (ppn PhysPageNum) PTEs() *[EntriesPerTable]uint64 {
	return (*[EntriesPerTable]uint64)(unsafe.Pointer(&ppn.Bytes()[0]))
}
