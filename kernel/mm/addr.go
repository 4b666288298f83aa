// Package mm defines the page-granular address types shared by the physical
// and virtual memory managers together with the window the kernel uses to
// reach physical memory.
package mm

// PhysAddr is a physical memory address.
type PhysAddr uintptr

// VirtAddr is an SV39 virtual memory address. Only the low VAWidth bits are
// significant.
type VirtAddr uintptr

// PhysPageNum describes a physical page (frame) index.
type PhysPageNum uintptr

// VirtPageNum describes a virtual page index.
type VirtPageNum uintptr

// NewPhysAddr truncates v to the physical address width.
func NewPhysAddr(v uintptr) PhysAddr {
	return PhysAddr(v & (1<<PAWidth - 1))
}

// NewVirtAddr truncates v to the virtual address width.
func NewVirtAddr(v uintptr) VirtAddr {
	return VirtAddr(v & (1<<VAWidth - 1))
}

// Floor returns the frame that contains this address.
func (pa PhysAddr) Floor() PhysPageNum { return PhysPageNum(uintptr(pa) >> PageShift) }

// Ceil returns the first frame that starts at or after this address.
func (pa PhysAddr) Ceil() PhysPageNum {
	return PhysPageNum((uintptr(pa) + PageSize - 1) >> PageShift)
}

// PageOffset returns the offset of this address inside its frame.
func (pa PhysAddr) PageOffset() uintptr { return uintptr(pa) & (PageSize - 1) }

// Aligned returns true if the address is page-aligned.
func (pa PhysAddr) Aligned() bool { return pa.PageOffset() == 0 }

// Floor returns the page that contains this address.
func (va VirtAddr) Floor() VirtPageNum { return VirtPageNum(uintptr(va) >> PageShift) }

// Ceil returns the first page that starts at or after this address.
func (va VirtAddr) Ceil() VirtPageNum {
	return VirtPageNum((uintptr(va) + PageSize - 1) >> PageShift)
}

// PageOffset returns the offset of this address inside its page.
func (va VirtAddr) PageOffset() uintptr { return uintptr(va) & (PageSize - 1) }

// Aligned returns true if the address is page-aligned.
func (va VirtAddr) Aligned() bool { return va.PageOffset() == 0 }

// Addr returns the physical address of the first byte of the frame.
func (ppn PhysPageNum) Addr() PhysAddr { return PhysAddr(uintptr(ppn) << PageShift) }

// Addr returns the virtual address of the first byte of the page.
func (vpn VirtPageNum) Addr() VirtAddr { return VirtAddr(uintptr(vpn) << PageShift) }

// Step advances vpn to the next page.
func (vpn *VirtPageNum) Step() { *vpn++ }

// Indexes splits the page number into the per-level table indices used by
// the translation walk, most significant level first.
func (vpn VirtPageNum) Indexes() [PageLevels]uintptr {
	var (
		idx [PageLevels]uintptr
		v   = uintptr(vpn)
	)
	for level := PageLevels - 1; level >= 0; level-- {
		idx[level] = v & (EntriesPerTable - 1)
		v >>= PageLevelBits
	}
	return idx
}

// VPNRange is a half-open range of virtual pages [Start, End).
type VPNRange struct {
	Start, End VirtPageNum
}

// NewVPNRange returns the range [start, end). An inverted range is treated as
// empty.
func NewVPNRange(start, end VirtPageNum) VPNRange {
	if end < start {
		end = start
	}
	return VPNRange{Start: start, End: end}
}

// Len returns the number of pages in the range.
func (r VPNRange) Len() int { return int(r.End - r.Start) }

// Empty returns true if the range holds no pages.
func (r VPNRange) Empty() bool { return r.End <= r.Start }

// Contains returns true if vpn lies within the range.
func (r VPNRange) Contains(vpn VirtPageNum) bool { return vpn >= r.Start && vpn < r.End }

// Overlaps returns true if both ranges share at least one page.
func (r VPNRange) Overlaps(other VPNRange) bool {
	return !r.Empty() && !other.Empty() && r.Start < other.End && other.Start < r.End
}

// Covers returns true if every page of other lies within r.
func (r VPNRange) Covers(other VPNRange) bool {
	return other.Start >= r.Start && other.End <= r.End
}
