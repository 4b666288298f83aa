package vmm

import (
	"rvos/kernel"
	"rvos/kernel/mm"
	"unsafe"
)

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}
)

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uint64

// PageTableEntry describes an SV39 page table entry. Bits 10-53 encode a
// physical page number and bits 0-7 a set of flags. An entry without
// FlagValid carries no meaningful page number.
type PageTableEntry uint64

// NewPageTableEntry returns an entry pointing to ppn with the supplied flags.
func NewPageTableEntry(ppn mm.PhysPageNum, flags PageTableEntryFlag) PageTableEntry {
	return PageTableEntry((uint64(ppn)&ptePPNMask)<<ptePPNShift | uint64(flags)&pteFlagMask)
}

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) == uint64(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte PageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *PageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uint64(*pte) | uint64(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *PageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uint64(*pte) &^ uint64(flags))
}

// Flags returns the flag bits of the entry.
func (pte PageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uint64(pte) & pteFlagMask)
}

// PPN returns the physical page that this page table entry points to.
func (pte PageTableEntry) PPN() mm.PhysPageNum {
	return mm.PhysPageNum((uint64(pte) >> ptePPNShift) & ptePPNMask)
}

// SetPPN updates the page table entry to point to the given physical page.
func (pte *PageTableEntry) SetPPN(ppn mm.PhysPageNum) {
	*pte = (PageTableEntry)((uint64(*pte) &^ (ptePPNMask << ptePPNShift)) | (uint64(ppn)&ptePPNMask)<<ptePPNShift)
}

// Valid returns true if the entry holds a translation.
func (pte PageTableEntry) Valid() bool { return pte.HasFlags(FlagValid) }

// tableEntries returns the entries stored in a page-table page.
func tableEntries(ppn mm.PhysPageNum) *[mm.EntriesPerTable]PageTableEntry {
	return (*[mm.EntriesPerTable]PageTableEntry)(unsafe.Pointer(ppn.PTEs()))
}
