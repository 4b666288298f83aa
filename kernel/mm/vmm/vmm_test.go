package vmm

import (
	"rvos/kernel"
	"rvos/kernel/mm"
	"rvos/kernel/mm/pmm"
	"testing"
)

const testBasePPN = mm.PhysPageNum(0x80000)

// setupPhysicalMemory installs a fresh arena of the requested number of
// pages as physical memory and hands it to the frame allocator. The first
// arena page holds the allocator bitmap.
func setupPhysicalMemory(t *testing.T, pages int) {
	t.Helper()

	mm.SetPhysicalMemory(make([]byte, pages*int(mm.PageSize)), testBasePPN)
	if err := pmm.Init(testBasePPN.Addr(), (testBasePPN + mm.PhysPageNum(pages)).Addr()); err != nil {
		t.Fatal(err)
	}

	origFlush, origAlloc, origActivate := flushTLBEntryFn, allocFrameFn, activateFn
	flushTLBEntryFn = func(uintptr) {}
	t.Cleanup(func() {
		flushTLBEntryFn, allocFrameFn, activateFn = origFlush, origAlloc, origActivate
	})
}

// failAllocAfter makes the frame allocator fail once count more frames
// have been handed out.
func failAllocAfter(count int) {
	allocFrameFn = func() (pmm.FrameTracker, *kernel.Error) {
		if count == 0 {
			return pmm.FrameTracker{}, &kernel.Error{Module: "test", Message: "out of frames"}
		}
		count--
		return pmm.AllocFrame()
	}
}

func expectPanic(t *testing.T, expErr *kernel.Error, fn func()) {
	t.Helper()
	defer func() {
		if err, ok := recover().(*kernel.Error); !ok || err != expErr {
			t.Fatalf("expected panic with %v; got %v", expErr, err)
		}
	}()
	fn()
}
