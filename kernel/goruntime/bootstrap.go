// Package goruntime contains code for bootstrapping Go runtime features such
// as the memory allocator.
package goruntime

import (
	"rvos/kernel"
	"rvos/kernel/mm"
	"rvos/kernel/timer"
	"unsafe"
)

var (
	mallocInitFn    = mallocInit
	algInitFn       = algInit
	modulesInitFn   = modulesInit
	typeLinksInitFn = typeLinksInit
	itabsInitFn     = itabsInit

	// region is the physical window handed to the Go allocator.
	region heapRegion

	// A seed for the pseudo-random number generator used by getRandomData
	prngSeed = 0xdeadc0de

	errHeapExhausted   = &kernel.Error{Module: "goruntime", Message: "kernel heap window exhausted"}
	errInvalidHeapSize = &kernel.Error{Module: "goruntime", Message: "kernel heap window is empty or not page-aligned"}
)

//go:linkname algInit runtime.alginit
func algInit()

//go:linkname modulesInit runtime.modulesinit
func modulesInit()

//go:linkname typeLinksInit runtime.typelinksinit
func typeLinksInit()

//go:linkname itabsInit runtime.itabsinit
func itabsInit()

//go:linkname mallocInit runtime.mallocinit
func mallocInit()

// heapRegion manages a window of identity-mapped physical memory. Heap
// arenas are reserved and committed upwards from start while off-heap
// allocations are carved downwards from end.
type heapRegion struct {
	start, end uintptr

	// reserveNext is the address handed out by the next reservation.
	reserveNext uintptr

	// committed is the end of the highest committed arena range.
	committed uintptr

	// allocFloor is the lowest address handed out for an off-heap
	// allocation.
	allocFloor uintptr
}

func pageAlign(size uintptr) uintptr {
	return (size + mm.PageSize - 1) &^ (mm.PageSize - 1)
}

func (r *heapRegion) reset(start, end uintptr) {
	*r = heapRegion{
		start:       start,
		end:         end,
		reserveNext: start,
		committed:   start,
		allocFloor:  end,
	}
}

// reserve hands out address space. Only the range that is eventually
// committed needs to fit in the window, so reservations may extend past its
// end. A hint is honored only if it matches the next free address.
func (r *heapRegion) reserve(hint, size uintptr) uintptr {
	addr := r.reserveNext
	if hint != 0 && hint != addr {
		return 0
	}

	r.reserveNext = addr + pageAlign(size)
	return addr
}

// commit makes [addr, addr+size) usable by clearing it.
func (r *heapRegion) commit(addr, size uintptr) {
	end := addr + pageAlign(size)
	if addr < r.start || end > r.allocFloor || end < addr {
		panic(errHeapExhausted)
	}

	kernel.Memset(unsafe.Slice((*byte)(unsafe.Pointer(addr)), end-addr), 0)
	r.committed = max(r.committed, end)
}

// alloc returns zeroed memory from the top of the window or 0 if the window
// is exhausted.
func (r *heapRegion) alloc(size uintptr) uintptr {
	size = pageAlign(size)
	if r.allocFloor-r.committed < size {
		return 0
	}

	r.allocFloor -= size
	kernel.Memset(unsafe.Slice((*byte)(unsafe.Pointer(r.allocFloor)), size), 0)
	return r.allocFloor
}

// sysReserveOS reserves address space without committing any memory.
//
// This function replaces runtime.sysReserveOS and is required for
// initializing the Go allocator.
//
//go:redirect-from runtime.sysReserveOS
//go:nosplit
func sysReserveOS(v unsafe.Pointer, size uintptr) unsafe.Pointer {
	return unsafe.Pointer(region.reserve(uintptr(v), size))
}

// sysMapOS commits a previously reserved range. The window is
// identity-mapped, so committing only needs to clear the memory.
//
// This function replaces runtime.sysMapOS and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysMapOS
//go:nosplit
func sysMapOS(v unsafe.Pointer, size uintptr) {
	region.commit(uintptr(v), size)
}

// sysAllocOS returns zeroed off-heap memory for the runtime's internal
// bookkeeping.
//
// This function replaces runtime.sysAllocOS.
//
//go:redirect-from runtime.sysAllocOS
//go:nosplit
func sysAllocOS(size uintptr) unsafe.Pointer {
	return unsafe.Pointer(region.alloc(size))
}

// sysNoop replaces the runtime hooks that return memory to the host OS or
// change its paging policy. Memory in the window is never given back.
//
//go:redirect-from runtime.sysFreeOS
//go:redirect-from runtime.sysUnusedOS
//go:redirect-from runtime.sysUsedOS
//go:redirect-from runtime.sysHugePageOS
//go:nosplit
func sysNoop(_ unsafe.Pointer, _ uintptr) {}

// nanotime returns a monotonically increasing clock value derived from the
// time CSR.
//
// This function replaces runtime.nanotime1 and is invoked by the Go allocator
// when a span allocation is performed.
//
//go:redirect-from runtime.nanotime1
//go:nosplit
func nanotime() int64 {
	return int64(timer.GetTimeUs()) * 1000
}

// getRandomData populates the given slice with random data. The implementation
// is the runtime package reads a random stream from /dev/random but since this
// is not available, we use a prng instead.
//
//go:redirect-from runtime.getRandomData
func getRandomData(r []byte) {
	for i := 0; i < len(r); i++ {
		prngSeed = (prngSeed * 58321) + 11113
		r[i] = byte((prngSeed >> 16) & 255)
	}
}

// Init hands the physical window [start, end) to the Go allocator and enables
// support for various Go runtime features. After a call to init the
// following runtime features become available for use:
//   - heap memory allocation (new, make e.t.c)
//   - map primitives
//   - interfaces
func Init(start, end mm.PhysAddr) *kernel.Error {
	if start >= end || !start.Aligned() || !end.Aligned() {
		return errInvalidHeapSize
	}

	region.reset(uintptr(start), uintptr(end))

	mallocInitFn()
	algInitFn()       // setup hash implementation for map keys
	modulesInitFn()   // provides activeModules
	typeLinksInitFn() // uses maps, activeModules
	itabsInitFn()     // uses activeModules

	return nil
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	var zeroPtr = unsafe.Pointer(uintptr(0))

	sysReserveOS(zeroPtr, 0)
	sysMapOS(zeroPtr, 0)
	sysAllocOS(0)
	sysNoop(zeroPtr, 0)
	getRandomData(nil)
	_ = nanotime()
}
