package vmm

import "rvos/kernel/mm"

const (
	// Trampoline is the virtual address of the page holding the trap
	// entry/exit code. It is the highest page of every address space.
	Trampoline = ^uintptr(0) - mm.PageSize + 1

	// TrapContextBase is the virtual address of the per-task trap context
	// page, immediately below the trampoline.
	TrapContextBase = Trampoline - mm.PageSize

	// UserStackSize is the size of the user stack mapped for every task.
	UserStackSize = 2 * mm.PageSize

	// KernelStackSize is the size of every per-task kernel stack.
	KernelStackSize = 2 * mm.PageSize
)

// MMIORegion describes a device register window identity-mapped into the
// kernel address space.
type MMIORegion struct {
	Base, Size uintptr
}

// MMIO lists the device windows of the qemu virt board.
var MMIO = []MMIORegion{
	{0x0010_0000, 0x00_2000}, // VIRT_TEST/RTC
	{0x0200_0000, 0x01_0000}, // CLINT
	{0x0c00_0000, 0x21_0000}, // PLIC
	{0x1000_0000, 0x00_9000}, // UART + VIRTIO
}

// KernelStackPosition returns the bounds of the kernel stack for the given
// application. Stacks are placed below the trampoline with an unmapped guard
// page between each pair.
func KernelStackPosition(appID int) (bottom, top uintptr) {
	top = Trampoline - uintptr(appID)*(KernelStackSize+mm.PageSize)
	bottom = top - KernelStackSize
	return bottom, top
}
