package vmm

import (
	"rvos/kernel"
	"rvos/kernel/cpu"
	"rvos/kernel/mm"
	"rvos/kernel/mm/pmm"
)

var (
	// allocFrameFn is used by tests to simulate running out of frames.
	allocFrameFn = pmm.AllocFrame

	// flushTLBEntryFn is used by tests to override calls to flushTLBEntry
	// which will cause a fault if called in user-mode.
	flushTLBEntryFn = cpu.FlushTLBEntry

	errAlreadyMapped = &kernel.Error{Module: "vmm", Message: "virtual page is already mapped"}
	errReadOnlyView  = &kernel.Error{Module: "vmm", Message: "page table view built from a token cannot be modified"}
)

// PageTable is an SV39 translation tree. It owns the frames backing its root
// and intermediate directory tables; data frames are owned by the map areas
// of the enclosing address space.
type PageTable struct {
	rootPPN mm.PhysPageNum
	frames  []pmm.FrameTracker

	// view is set for tables reconstructed from a token.
	view bool
}

// NewPageTable allocates a zeroed root table.
func NewPageTable() (*PageTable, *kernel.Error) {
	frame, err := allocFrameFn()
	if err != nil {
		return nil, err
	}

	return &PageTable{
		rootPPN: frame.PPN,
		frames:  []pmm.FrameTracker{frame},
	}, nil
}

// PageTableFromToken returns a non-owning view over the table whose root is
// encoded in satp. Views are used for translating pointers that belong to
// another address space and may not be modified.
func PageTableFromToken(satp uint64) *PageTable {
	return &PageTable{
		rootPPN: mm.PhysPageNum(satp & ptePPNMask),
		view:    true,
	}
}

// RootPPN returns the frame that holds the root table.
func (pt *PageTable) RootPPN() mm.PhysPageNum { return pt.rootPPN }

// Token returns the satp value that activates this table.
func (pt *PageTable) Token() uint64 {
	return satpModeSV39<<satpModeShift | uint64(pt.rootPPN)&ptePPNMask
}

// findPTE returns the leaf slot for vpn. When create is set, missing
// intermediate tables are allocated, cleared and linked with FlagValid only.
// Without create, a nil entry is returned if an intermediate level is absent.
func (pt *PageTable) findPTE(vpn mm.VirtPageNum, create bool) (*PageTableEntry, *kernel.Error) {
	var (
		err  *kernel.Error
		leaf *PageTableEntry
	)

	walk(pt.rootPPN, vpn, func(pteLevel uint8, pte *PageTableEntry) bool {
		if pteLevel == mm.PageLevels-1 {
			leaf = pte
			return true
		}

		if pte.Valid() {
			return true
		}

		if !create {
			return false
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it and link it as a directory.
		var frame pmm.FrameTracker
		if frame, err = allocFrameFn(); err != nil {
			return false
		}

		pt.frames = append(pt.frames, frame)
		*pte = NewPageTableEntry(frame.PPN, FlagValid)
		return true
	})

	return leaf, err
}

// Map establishes a mapping between a virtual page and a physical frame.
// FlagValid is always added to the supplied flags. Mapping a page that is
// already mapped is a kernel bug and causes a panic. An error is returned if
// an intermediate table could not be allocated.
func (pt *PageTable) Map(vpn mm.VirtPageNum, ppn mm.PhysPageNum, flags PageTableEntryFlag) *kernel.Error {
	if pt.view {
		panic(errReadOnlyView)
	}

	pte, err := pt.findPTE(vpn, true)
	if err != nil {
		return err
	}

	if pte.Valid() {
		panic(errAlreadyMapped)
	}

	*pte = NewPageTableEntry(ppn, flags|FlagValid)
	flushTLBEntryFn(uintptr(vpn.Addr()))
	return nil
}

// Unmap removes a mapping previously installed via a call to Map. Unmapping
// a page that is not mapped is a kernel bug and causes a panic.
func (pt *PageTable) Unmap(vpn mm.VirtPageNum) {
	if pt.view {
		panic(errReadOnlyView)
	}

	pte, _ := pt.findPTE(vpn, false)
	if pte == nil || !pte.Valid() {
		panic(ErrInvalidMapping)
	}

	*pte = 0
	flushTLBEntryFn(uintptr(vpn.Addr()))
}

// Translate returns the leaf entry for vpn. The second return value is false
// if the page is not mapped.
func (pt *PageTable) Translate(vpn mm.VirtPageNum) (PageTableEntry, bool) {
	pte, _ := pt.findPTE(vpn, false)
	if pte == nil || !pte.Valid() {
		return 0, false
	}

	return *pte, true
}

// TranslateVA returns the physical address that corresponds to the supplied
// virtual address.
func (pt *PageTable) TranslateVA(va mm.VirtAddr) (mm.PhysAddr, bool) {
	pte, ok := pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}

	return pte.PPN().Addr() + mm.PhysAddr(va.PageOffset()), true
}

// Release frees the frames holding the tables. Views own nothing.
func (pt *PageTable) Release() {
	for _, frame := range pt.frames {
		frame.Free()
	}
	pt.frames = nil
}
