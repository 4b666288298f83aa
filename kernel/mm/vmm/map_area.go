package vmm

import (
	"rvos/kernel"
	"rvos/kernel/mm"
	"rvos/kernel/mm/pmm"
)

// MapType describes how the pages of a MapArea are backed.
type MapType uint8

const (
	// MapIdentical maps every page to the frame with the same number.
	MapIdentical MapType = iota

	// MapFramed backs every page with a freshly allocated frame owned by
	// the area.
	MapFramed

	// MapLinear maps the area onto a contiguous run of frames starting at
	// a fixed frame. The frames are not owned by the area.
	MapLinear
)

// MapPermission is the subset of entry flags an area may request.
type MapPermission uint8

// The permission bits share their positions with the matching entry flags.
const (
	PermRead  = MapPermission(FlagRead)
	PermWrite = MapPermission(FlagWrite)
	PermExec  = MapPermission(FlagExec)
	PermUser  = MapPermission(FlagUser)
)

var errRangeOutsideArea = &kernel.Error{Module: "vmm", Message: "page range is outside the map area"}

// MapArea is a contiguous range of virtual pages that share a backing
// discipline and a permission set.
type MapArea struct {
	vpnRange mm.VPNRange
	frames   map[mm.VirtPageNum]pmm.FrameTracker
	mapType  MapType
	perm     MapPermission

	// ppnDelta is added to a page number to get the frame of a
	// MapLinear area; it is invariant under shrinking and splitting.
	ppnDelta uintptr
}

// NewMapArea returns an unmapped area covering the pages that overlap
// [startVA, endVA).
func NewMapArea(startVA, endVA mm.VirtAddr, mapType MapType, perm MapPermission) *MapArea {
	area := &MapArea{
		vpnRange: mm.NewVPNRange(startVA.Floor(), endVA.Ceil()),
		mapType:  mapType,
		perm:     perm,
	}
	if mapType == MapFramed {
		area.frames = make(map[mm.VirtPageNum]pmm.FrameTracker)
	}
	return area
}

// NewLinearArea returns an unmapped area covering the pages that overlap
// [startVA, endVA) backed by the frames starting at basePPN.
func NewLinearArea(startVA, endVA mm.VirtAddr, basePPN mm.PhysPageNum, perm MapPermission) *MapArea {
	area := NewMapArea(startVA, endVA, MapLinear, perm)
	area.ppnDelta = uintptr(basePPN) - uintptr(area.vpnRange.Start)
	return area
}

// Range returns the pages covered by the area.
func (a *MapArea) Range() mm.VPNRange { return a.vpnRange }

// Type returns the backing discipline of the area.
func (a *MapArea) Type() MapType { return a.mapType }

// Perm returns the permissions of the area.
func (a *MapArea) Perm() MapPermission { return a.perm }

// mapOne maps a single page of the area.
func (a *MapArea) mapOne(pt *PageTable, vpn mm.VirtPageNum) *kernel.Error {
	var ppn mm.PhysPageNum

	switch a.mapType {
	case MapIdentical:
		ppn = mm.PhysPageNum(vpn)
	case MapLinear:
		ppn = mm.PhysPageNum(uintptr(vpn) + a.ppnDelta)
	case MapFramed:
		frame, err := allocFrameFn()
		if err != nil {
			return err
		}
		ppn = frame.PPN
		a.frames[vpn] = frame
	}

	if err := pt.Map(vpn, ppn, PageTableEntryFlag(a.perm)); err != nil {
		if frame, ok := a.frames[vpn]; ok {
			frame.Free()
			delete(a.frames, vpn)
		}
		return err
	}

	return nil
}

// unmapOne unmaps a single page of the area and frees its frame if the area
// owns it.
func (a *MapArea) unmapOne(pt *PageTable, vpn mm.VirtPageNum) {
	pt.Unmap(vpn)
	if frame, ok := a.frames[vpn]; ok {
		frame.Free()
		delete(a.frames, vpn)
	}
}

// mapRange maps every page in r. If a page cannot be mapped, the pages that
// this call already mapped are unmapped again before the error is returned.
func (a *MapArea) mapRange(pt *PageTable, r mm.VPNRange) *kernel.Error {
	for vpn := r.Start; vpn < r.End; vpn.Step() {
		if err := a.mapOne(pt, vpn); err != nil {
			a.unmapRange(pt, mm.NewVPNRange(r.Start, vpn))
			return err
		}
	}
	return nil
}

// unmapRange unmaps every page in r.
func (a *MapArea) unmapRange(pt *PageTable, r mm.VPNRange) {
	for vpn := r.Start; vpn < r.End; vpn.Step() {
		a.unmapOne(pt, vpn)
	}
}

// copyData copies data into the pages of a framed area starting at the
// supplied offset inside the first page. The area must already be mapped.
func (a *MapArea) copyData(data []byte, offset uintptr) {
	for vpn := a.vpnRange.Start; len(data) > 0 && vpn < a.vpnRange.End; vpn.Step() {
		n := copy(a.frames[vpn].PPN.Bytes()[offset:], data)
		data, offset = data[n:], 0
	}
}

// appendTo grows the area so that it ends at newEnd.
func (a *MapArea) appendTo(pt *PageTable, newEnd mm.VirtPageNum) *kernel.Error {
	if newEnd < a.vpnRange.End {
		return errRangeOutsideArea
	}

	if err := a.mapRange(pt, mm.NewVPNRange(a.vpnRange.End, newEnd)); err != nil {
		return err
	}
	a.vpnRange.End = newEnd
	return nil
}

// shrinkTo shrinks the area so that it ends at newEnd.
func (a *MapArea) shrinkTo(pt *PageTable, newEnd mm.VirtPageNum) *kernel.Error {
	if newEnd < a.vpnRange.Start || newEnd > a.vpnRange.End {
		return errRangeOutsideArea
	}

	a.unmapRange(pt, mm.NewVPNRange(newEnd, a.vpnRange.End))
	a.vpnRange.End = newEnd
	return nil
}

// splitAt detaches the pages at and above vpn into a new area which takes
// over their frames.
func (a *MapArea) splitAt(vpn mm.VirtPageNum) *MapArea {
	tail := &MapArea{
		vpnRange: mm.NewVPNRange(vpn, a.vpnRange.End),
		mapType:  a.mapType,
		perm:     a.perm,
		ppnDelta: a.ppnDelta,
	}

	if a.frames != nil {
		tail.frames = make(map[mm.VirtPageNum]pmm.FrameTracker)
		for page, frame := range a.frames {
			if page >= vpn {
				tail.frames[page] = frame
				delete(a.frames, page)
			}
		}
	}

	a.vpnRange.End = vpn
	return tail
}

// release frees every frame owned by the area without touching the page
// table. It is used when the whole address space is torn down.
func (a *MapArea) release() {
	for vpn, frame := range a.frames {
		frame.Free()
		delete(a.frames, vpn)
	}
}
