package vmm

import (
	"rvos/kernel"
	"rvos/kernel/mm"
	"rvos/kernel/mm/pmm"
	"testing"
)

const pageSize = uintptr(mm.PageSize)

func newTestSpace(t *testing.T) *AddressSpace {
	t.Helper()

	space, err := NewBareAddressSpace()
	if err != nil {
		t.Fatal(err)
	}
	return space
}

func expectAreas(t *testing.T, space *AddressSpace, exp ...mm.VPNRange) {
	t.Helper()

	if len(space.areas) != len(exp) {
		t.Fatalf("expected %d areas; got %d", len(exp), len(space.areas))
	}
	for i, area := range space.areas {
		if area.Range() != exp[i] {
			t.Errorf("expected area %d to cover %+v; got %+v", i, exp[i], area.Range())
		}
	}
}

func TestMmapPreconditions(t *testing.T) {
	setupPhysicalMemory(t, 64)
	space := newTestSpace(t)

	if err := space.Mmap(0x10000, pageSize, 0b011); err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		start, length, port uintptr
		expErr              *kernel.Error
	}{
		{0x20001, pageSize, 0b011, errUnaligned},
		{0x20000, pageSize, 0, errEmptyPort},
		{0x20000, pageSize, 0b1000, errInvalidPort},
		{0x20000, pageSize, 0b1001, errInvalidPort},
		{0x10000, pageSize, 0b001, errRangeConflict},
		{0xf000, 2 * pageSize, 0b001, errRangeConflict},
		{0x10000, 1, 0b001, errRangeConflict},
		{0x20000, 0, 0b001, nil},
		{1 << mm.VAWidth, pageSize, 0b001, errInvalidRange},
		{^uintptr(0) &^ (pageSize - 1), 2 * pageSize, 0b001, errInvalidRange},
	}

	for specIndex, spec := range specs {
		if err := space.Mmap(spec.start, spec.length, spec.port); err != spec.expErr {
			t.Errorf("[spec %d] expected error %v; got %v", specIndex, spec.expErr, err)
		}
	}

	// Only the first successful call mapped anything.
	expectAreas(t, space, mm.NewVPNRange(0x10, 0x11))
	if _, ok := space.Translate(0x20); ok {
		t.Fatal("expected zero-length mmap to leave the page unmapped")
	}
}

func TestMmapPermissions(t *testing.T) {
	setupPhysicalMemory(t, 64)
	space := newTestSpace(t)

	specs := []struct {
		port     uintptr
		expFlags PageTableEntryFlag
	}{
		{0b001, FlagRead},
		{0b010, FlagWrite},
		{0b100, FlagExec},
		{0b011, FlagRead | FlagWrite},
		{0b111, FlagRead | FlagWrite | FlagExec},
	}

	for specIndex, spec := range specs {
		start := uintptr(0x100000) + uintptr(specIndex)*0x10000
		if err := space.Mmap(start, pageSize+1, spec.port); err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}

		// length is rounded up to two pages
		for vpn := mm.VirtAddr(start).Floor(); vpn < mm.VirtAddr(start).Floor()+2; vpn++ {
			pte, ok := space.Translate(vpn)
			if !ok {
				t.Fatalf("[spec %d] expected vpn 0x%x to be mapped", specIndex, vpn)
			}

			if exp, got := spec.expFlags|FlagUser|FlagValid, pte.Flags(); got != exp {
				t.Errorf("[spec %d] expected flags 0x%x; got 0x%x", specIndex, exp, got)
			}
		}
	}
}

func TestMmapAllocationFailureLeavesNothingMapped(t *testing.T) {
	setupPhysicalMemory(t, 64)
	space := newTestSpace(t)
	initialFree := pmm.FreeFrames()

	// 2 directory frames and 2 data frames succeed, the third data frame fails
	failAllocAfter(4)
	if err := space.Mmap(0x10000, 4*pageSize, 0b011); err == nil {
		t.Fatal("expected mmap to fail")
	}

	for vpn := mm.VirtPageNum(0x10); vpn < 0x14; vpn++ {
		if _, ok := space.Translate(vpn); ok {
			t.Fatalf("expected vpn 0x%x to be unmapped after the failed mmap", vpn)
		}
	}
	expectAreas(t, space)

	// only the two directory frames stay with the page table
	if exp, got := initialFree-2, pmm.FreeFrames(); got != exp {
		t.Fatalf("expected %d free frames; got %d", exp, got)
	}
}

func TestMunmap(t *testing.T) {
	setupPhysicalMemory(t, 64)
	space := newTestSpace(t)

	if err := space.Mmap(0x10000, 2*pageSize, 0b011); err != nil {
		t.Fatal(err)
	}

	t.Run("range with unmapped page", func(t *testing.T) {
		if err := space.Munmap(0x10000, 3*pageSize); err != errRangeNotMapped {
			t.Fatalf("expected errRangeNotMapped; got %v", err)
		}

		for vpn := mm.VirtPageNum(0x10); vpn < 0x12; vpn++ {
			if _, ok := space.Translate(vpn); !ok {
				t.Fatalf("expected vpn 0x%x to remain mapped", vpn)
			}
		}
	})

	t.Run("unaligned start", func(t *testing.T) {
		if err := space.Munmap(0x10001, pageSize); err != errUnaligned {
			t.Fatalf("expected errUnaligned; got %v", err)
		}
	})

	t.Run("kernel-only page", func(t *testing.T) {
		trapCx := mm.NewVirtAddr(TrapContextBase)
		if err := space.InsertFramedArea(trapCx, trapCx+mm.VirtAddr(pageSize), PermRead|PermWrite); err != nil {
			t.Fatal(err)
		}

		if err := space.Munmap(uintptr(trapCx), pageSize); err != errRangeNotMapped {
			t.Fatalf("expected errRangeNotMapped; got %v", err)
		}
	})

	t.Run("success", func(t *testing.T) {
		freeBefore := pmm.FreeFrames()
		if err := space.Munmap(0x10000, 2*pageSize); err != nil {
			t.Fatal(err)
		}

		for vpn := mm.VirtPageNum(0x10); vpn < 0x12; vpn++ {
			if _, ok := space.Translate(vpn); ok {
				t.Fatalf("expected vpn 0x%x to be unmapped", vpn)
			}
		}

		if exp, got := freeBefore+2, pmm.FreeFrames(); got != exp {
			t.Fatalf("expected %d free frames; got %d", exp, got)
		}

		if err := space.Munmap(0x10000, 0); err != nil {
			t.Fatalf("expected zero-length munmap to succeed; got %v", err)
		}
	})
}

func TestFreeTrimsAndSplitsAreas(t *testing.T) {
	setupPhysicalMemory(t, 64)
	space := newTestSpace(t)

	if err := space.Mmap(0x10000, 8*pageSize, 0b011); err != nil {
		t.Fatal(err)
	}
	if err := space.Mmap(0x20000, 2*pageSize, 0b001); err != nil {
		t.Fatal(err)
	}

	// hole in the middle
	space.Free(0x12, 0x14, false)
	expectAreas(t, space,
		mm.NewVPNRange(0x10, 0x12),
		mm.NewVPNRange(0x14, 0x18),
		mm.NewVPNRange(0x20, 0x22),
	)

	// front of the tail
	space.Free(0x14, 0x15, false)
	// back of the head
	space.Free(0x11, 0x12, false)
	expectAreas(t, space,
		mm.NewVPNRange(0x10, 0x11),
		mm.NewVPNRange(0x15, 0x18),
		mm.NewVPNRange(0x20, 0x22),
	)

	for vpn, expMapped := range map[mm.VirtPageNum]bool{
		0x10: true, 0x11: false, 0x12: false, 0x13: false, 0x14: false, 0x15: true, 0x17: true, 0x21: true,
	} {
		if _, ok := space.Translate(vpn); ok != expMapped {
			t.Errorf("expected vpn 0x%x mapped=%t; got %t", vpn, expMapped, ok)
		}
	}

	// A range spanning several areas drops the covered ones.
	space.Free(0x10, 0x21, true)
	expectAreas(t, space, mm.NewVPNRange(0x21, 0x22))

	expectPanic(t, errRangeCrossesAreas, func() { space.Free(0x20, 0x22, false) })
}

func TestIsConflictAndIsVMMMapped(t *testing.T) {
	setupPhysicalMemory(t, 64)
	space := newTestSpace(t)

	if err := space.InsertFramedArea(0x10000, 0x12000, PermRead|PermUser); err != nil {
		t.Fatal(err)
	}
	if err := space.InsertFramedArea(0x12000, 0x13000, PermRead); err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		start, end  mm.VirtPageNum
		expConflict bool
		expMapped   bool
	}{
		{0x0, 0x10, false, false},
		{0x10, 0x12, true, true},
		{0x11, 0x12, true, true},
		{0x11, 0x13, true, false},
		{0x13, 0x20, false, false},
		{0x15, 0x15, false, true},
	}

	for specIndex, spec := range specs {
		if got := space.IsConflict(spec.start, spec.end); got != spec.expConflict {
			t.Errorf("[spec %d] expected IsConflict to be %t; got %t", specIndex, spec.expConflict, got)
		}
		if got := space.IsVMMMapped(spec.start, spec.end); got != spec.expMapped {
			t.Errorf("[spec %d] expected IsVMMMapped to be %t; got %t", specIndex, spec.expMapped, got)
		}
	}
}

func TestAppendAndShrink(t *testing.T) {
	setupPhysicalMemory(t, 64)
	space := newTestSpace(t)

	heap := mm.VirtAddr(0x10000)
	if err := space.InsertFramedArea(heap, heap, PermRead|PermWrite|PermUser); err != nil {
		t.Fatal(err)
	}
	expectAreas(t, space, mm.NewVPNRange(0x10, 0x10))

	if err := space.AppendTo(heap, heap+0x2001); err != nil {
		t.Fatal(err)
	}
	expectAreas(t, space, mm.NewVPNRange(0x10, 0x13))
	if !space.IsVMMMapped(0x10, 0x13) {
		t.Fatal("expected grown heap pages to be mapped")
	}

	if err := space.ShrinkTo(heap, heap+0x1000); err != nil {
		t.Fatal(err)
	}
	expectAreas(t, space, mm.NewVPNRange(0x10, 0x11))
	if _, ok := space.Translate(0x11); ok {
		t.Fatal("expected released heap page to be unmapped")
	}

	if err := space.ShrinkTo(heap, heap+0x3000); err != errRangeOutsideArea {
		t.Fatalf("expected errRangeOutsideArea; got %v", err)
	}
	if err := space.AppendTo(heap+0x1000, heap+0x3000); err != errAreaNotFound {
		t.Fatalf("expected errAreaNotFound; got %v", err)
	}
}

func TestAddressSpaceReleaseAndActivate(t *testing.T) {
	setupPhysicalMemory(t, 64)
	initialFree := pmm.FreeFrames()
	space := newTestSpace(t)

	if err := space.Mmap(0x10000, 3*pageSize, 0b011); err != nil {
		t.Fatal(err)
	}
	if err := space.mapTrampoline(testBasePPN + 10); err != nil {
		t.Fatal(err)
	}

	var activated uint64
	activateFn = func(satp uint64) { activated = satp }
	space.Activate()
	if activated != space.Token() {
		t.Fatalf("expected satp 0x%x to be activated; got 0x%x", space.Token(), activated)
	}

	space.Release()
	if got := pmm.FreeFrames(); got != initialFree {
		t.Fatalf("expected %d free frames after release; got %d", initialFree, got)
	}
}
