package vmm

import (
	"rvos/kernel"
	"rvos/kernel/cpu"
	"rvos/kernel/mm"
)

var (
	// activateFn is used by tests to observe address space switches.
	activateFn = cpu.ActivateSatp

	errUnaligned         = &kernel.Error{Module: "vmm", Message: "start address is not page-aligned"}
	errInvalidPort       = &kernel.Error{Module: "vmm", Message: "port has bits outside of R/W/X"}
	errEmptyPort         = &kernel.Error{Module: "vmm", Message: "port grants no access"}
	errInvalidRange      = &kernel.Error{Module: "vmm", Message: "range is outside of the virtual address space"}
	errRangeConflict     = &kernel.Error{Module: "vmm", Message: "range overlaps an existing map area"}
	errRangeNotMapped    = &kernel.Error{Module: "vmm", Message: "range contains pages that are not mapped to user space"}
	errAreaNotFound      = &kernel.Error{Module: "vmm", Message: "no map area starts at the requested address"}
	errRangeCrossesAreas = &kernel.Error{Module: "vmm", Message: "range is not contained in a single map area"}
)

// AddressSpace is a page table together with the map areas that own every
// translation installed in it.
type AddressSpace struct {
	pageTable *PageTable
	areas     []*MapArea
}

// NewBareAddressSpace returns an address space without any areas.
func NewBareAddressSpace() (*AddressSpace, *kernel.Error) {
	pt, err := NewPageTable()
	if err != nil {
		return nil, err
	}

	return &AddressSpace{pageTable: pt}, nil
}

// PageTable returns the table backing the address space.
func (as *AddressSpace) PageTable() *PageTable { return as.pageTable }

// Token returns the satp value that activates this address space.
func (as *AddressSpace) Token() uint64 { return as.pageTable.Token() }

// Translate returns the leaf entry for vpn.
func (as *AddressSpace) Translate(vpn mm.VirtPageNum) (PageTableEntry, bool) {
	return as.pageTable.Translate(vpn)
}

// Activate switches the MMU to this address space.
func (as *AddressSpace) Activate() {
	activateFn(as.Token())
}

// push maps the area, copies data into it and starts tracking it. Nothing
// stays mapped if the area cannot be mapped in full.
func (as *AddressSpace) push(area *MapArea, data []byte, offset uintptr) *kernel.Error {
	if err := area.mapRange(as.pageTable, area.vpnRange); err != nil {
		return err
	}

	if len(data) != 0 {
		area.copyData(data, offset)
	}

	as.areas = append(as.areas, area)
	return nil
}

// InsertFramedArea registers a frame-backed area covering the pages that
// overlap [startVA, endVA) and maps a fresh frame for each of them.
func (as *AddressSpace) InsertFramedArea(startVA, endVA mm.VirtAddr, perm MapPermission) *kernel.Error {
	return as.push(NewMapArea(startVA, endVA, MapFramed, perm), nil, 0)
}

// IsConflict returns true if any area overlaps [start, end).
func (as *AddressSpace) IsConflict(start, end mm.VirtPageNum) bool {
	r := mm.NewVPNRange(start, end)
	for _, area := range as.areas {
		if area.vpnRange.Overlaps(r) {
			return true
		}
	}
	return false
}

// IsVMMMapped returns true if every page in [start, end) is mapped and
// accessible from user mode.
func (as *AddressSpace) IsVMMMapped(start, end mm.VirtPageNum) bool {
	for vpn := start; vpn < end; vpn.Step() {
		pte, ok := as.pageTable.Translate(vpn)
		if !ok || !pte.HasFlags(FlagUser) {
			return false
		}
	}
	return true
}

// Free unmaps the pages in [start, end) and releases their frames. Areas
// that are fully covered are dropped, partially covered areas are trimmed
// and an area with a hole in the middle is split in two. Unless
// crossesAreaBoundary is set, the range must lie inside a single area.
func (as *AddressSpace) Free(start, end mm.VirtPageNum, crossesAreaBoundary bool) {
	target := mm.NewVPNRange(start, end)
	if target.Empty() {
		return
	}

	if !crossesAreaBoundary && as.areaCovering(target) == nil {
		panic(errRangeCrossesAreas)
	}

	areas := make([]*MapArea, 0, len(as.areas)+1)
	for _, area := range as.areas {
		r := area.vpnRange
		if !r.Overlaps(target) {
			areas = append(areas, area)
			continue
		}

		hole := mm.NewVPNRange(max(r.Start, target.Start), min(r.End, target.End))
		switch {
		case hole == r:
			area.unmapRange(as.pageTable, hole)
		case hole.Start == r.Start:
			area.unmapRange(as.pageTable, hole)
			area.vpnRange.Start = hole.End
			areas = append(areas, area)
		case hole.End == r.End:
			_ = area.shrinkTo(as.pageTable, hole.Start)
			areas = append(areas, area)
		default:
			tail := area.splitAt(hole.End)
			_ = area.shrinkTo(as.pageTable, hole.Start)
			areas = append(areas, area, tail)
		}
	}
	as.areas = areas
}

// areaCovering returns the area that contains every page of r.
func (as *AddressSpace) areaCovering(r mm.VPNRange) *MapArea {
	for _, area := range as.areas {
		if area.vpnRange.Covers(r) {
			return area
		}
	}
	return nil
}

// areaStartingAt returns the area whose first page is vpn.
func (as *AddressSpace) areaStartingAt(vpn mm.VirtPageNum) *MapArea {
	for _, area := range as.areas {
		if area.vpnRange.Start == vpn {
			return area
		}
	}
	return nil
}

// AppendTo grows the area that starts at start so that it covers every page
// below newEnd.
func (as *AddressSpace) AppendTo(start, newEnd mm.VirtAddr) *kernel.Error {
	area := as.areaStartingAt(start.Floor())
	if area == nil {
		return errAreaNotFound
	}
	return area.appendTo(as.pageTable, newEnd.Ceil())
}

// ShrinkTo shrinks the area that starts at start so that it ends at the
// page boundary at or above newEnd.
func (as *AddressSpace) ShrinkTo(start, newEnd mm.VirtAddr) *kernel.Error {
	area := as.areaStartingAt(start.Floor())
	if area == nil {
		return errAreaNotFound
	}
	return area.shrinkTo(as.pageTable, newEnd.Ceil())
}

// userPageRange validates a user supplied [start, start+length) range and
// converts it to pages. The length is rounded up to a whole page.
func userPageRange(start, length uintptr) (mm.VPNRange, *kernel.Error) {
	if !mm.VirtAddr(start).Aligned() {
		return mm.VPNRange{}, errUnaligned
	}

	end := start + length
	if end < start || end > 1<<mm.VAWidth {
		return mm.VPNRange{}, errInvalidRange
	}

	return mm.NewVPNRange(mm.VirtAddr(start).Floor(), mm.VirtAddr(end).Ceil()), nil
}

// Mmap maps fresh frames over [start, start+length) with the access rights
// encoded in port (bit 0 read, bit 1 write, bit 2 exec). The range must not
// overlap any area. On error nothing is left mapped.
func (as *AddressSpace) Mmap(start, length, port uintptr) *kernel.Error {
	r, err := userPageRange(start, length)
	switch {
	case err != nil:
		return err
	case port&^0x7 != 0:
		return errInvalidPort
	case port&0x7 == 0:
		return errEmptyPort
	case r.Empty():
		return nil
	case as.IsConflict(r.Start, r.End):
		return errRangeConflict
	}

	perm := MapPermission(port<<1) | PermUser
	return as.InsertFramedArea(r.Start.Addr(), r.End.Addr(), perm)
}

// Munmap unmaps [start, start+length) and frees the backing frames. Every
// page in the range must be mapped to user space; the range is validated
// before anything is unmapped.
func (as *AddressSpace) Munmap(start, length uintptr) *kernel.Error {
	r, err := userPageRange(start, length)
	switch {
	case err != nil:
		return err
	case r.Empty():
		return nil
	case !as.IsVMMMapped(r.Start, r.End):
		return errRangeNotMapped
	}

	as.Free(r.Start, r.End, true)
	return nil
}

// Release frees every frame owned by the address space, including the
// frames of its page table.
func (as *AddressSpace) Release() {
	for _, area := range as.areas {
		area.release()
	}
	as.areas = nil
	as.pageTable.Release()
}
