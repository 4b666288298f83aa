package vmm

import "rvos/kernel/mm"

const (
	// ptePPNShift is the bit position of the physical page number inside
	// a page table entry. Bits 0-9 hold the flags and the RSW field.
	ptePPNShift = 10

	// ptePPNMask extracts the physical page number after shifting an entry
	// right by ptePPNShift.
	ptePPNMask = uint64(1<<mm.PPNWidth - 1)

	// pteFlagMask covers the hardware-defined flag bits of an entry.
	pteFlagMask = uint64(0xff)

	// satpModeSV39 is the satp MODE value that enables 3-level translation.
	satpModeSV39 = uint64(8)

	// satpModeShift is the bit position of the MODE field in satp.
	satpModeShift = 60
)

const (
	// FlagValid is set when the entry holds a translation.
	FlagValid PageTableEntryFlag = 1 << iota

	// FlagRead is set if the page can be read.
	FlagRead

	// FlagWrite is set if the page can be written to.
	FlagWrite

	// FlagExec is set if instructions can be fetched from the page.
	FlagExec

	// FlagUser is set if user-mode code can access this page. If not set
	// only kernel code can access this page.
	FlagUser

	// FlagGlobal is set for mappings that exist in every address space.
	FlagGlobal

	// FlagAccessed is set by the hardware when the page is accessed.
	FlagAccessed

	// FlagDirty is set by the hardware when the page is written to.
	FlagDirty
)
