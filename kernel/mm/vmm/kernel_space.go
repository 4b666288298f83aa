package vmm

import (
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mm"
)

var (
	// kernelSpace is the address space the kernel runs in once Init
	// activates it.
	kernelSpace *AddressSpace

	log = kfmt.Logger{Module: "vmm"}
)

// KernelLayout describes the sections of the kernel image and the physical
// memory that the kernel address space identity-maps.
type KernelLayout struct {
	TextStart, TextEnd     uintptr
	RodataStart, RodataEnd uintptr
	DataStart, DataEnd     uintptr
	BssStart, BssEnd       uintptr

	// KernelEnd is the first byte past the kernel image. Everything from
	// here up to MemoryEnd is identity-mapped, covering both the frame
	// allocator pool and the Go heap window.
	KernelEnd uintptr
	MemoryEnd uintptr

	// Trampoline is the physical address of the trap entry/exit page.
	Trampoline uintptr

	MMIO []MMIORegion
}

// NewKernelSpace builds an address space that identity-maps the kernel
// sections, the remaining physical memory and the device windows, plus the
// trampoline at the top of the address space.
func NewKernelSpace(layout *KernelLayout) (*AddressSpace, *kernel.Error) {
	space, err := NewBareAddressSpace()
	if err != nil {
		return nil, err
	}

	sections := []struct {
		name       string
		start, end uintptr
		perm       MapPermission
	}{
		{".text", layout.TextStart, layout.TextEnd, PermRead | PermExec},
		{".rodata", layout.RodataStart, layout.RodataEnd, PermRead},
		{".data", layout.DataStart, layout.DataEnd, PermRead | PermWrite},
		{".bss", layout.BssStart, layout.BssEnd, PermRead | PermWrite},
		{"physical memory", layout.KernelEnd, layout.MemoryEnd, PermRead | PermWrite},
	}

	for _, section := range sections {
		log.Debugf("mapping %s [0x%x, 0x%x)", section.name, section.start, section.end)
		area := NewMapArea(mm.VirtAddr(section.start), mm.VirtAddr(section.end), MapIdentical, section.perm)
		if err = space.push(area, nil, 0); err != nil {
			space.Release()
			return nil, err
		}
	}

	for _, region := range layout.MMIO {
		log.Debugf("mapping mmio [0x%x, 0x%x)", region.Base, region.Base+region.Size)
		area := NewMapArea(mm.VirtAddr(region.Base), mm.VirtAddr(region.Base+region.Size), MapIdentical, PermRead|PermWrite)
		if err = space.push(area, nil, 0); err != nil {
			space.Release()
			return nil, err
		}
	}

	if err = space.mapTrampoline(mm.PhysAddr(layout.Trampoline).Floor()); err != nil {
		space.Release()
		return nil, err
	}

	return space, nil
}

// mapTrampoline maps the trampoline frame at the top of the address space.
// The trampoline is not accessible from user mode; it runs with the
// supervisor privileges the trap leaves the hart in.
func (as *AddressSpace) mapTrampoline(ppn mm.PhysPageNum) *kernel.Error {
	startVA := mm.NewVirtAddr(Trampoline)
	area := NewLinearArea(startVA, startVA+mm.VirtAddr(mm.PageSize), ppn, PermRead|PermExec)
	return as.push(area, nil, 0)
}

// Init builds the kernel address space and activates it.
func Init(layout *KernelLayout) *kernel.Error {
	if kernelSpace != nil {
		panic(&kernel.Error{Module: "vmm", Message: "kernel address space already initialized"})
	}

	space, err := NewKernelSpace(layout)
	if err != nil {
		return err
	}

	kernelSpace = space
	kernelSpace.Activate()
	log.Infof("kernel address space active (satp 0x%x)", kernelSpace.Token())
	return nil
}

// KernelSpace returns the kernel address space built by Init.
func KernelSpace() *AddressSpace { return kernelSpace }
