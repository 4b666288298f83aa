package vmm

import "rvos/kernel/mm"

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments.  If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *PageTableEntry) bool

// walk performs a page table walk for the given virtual page starting at the
// table stored in rootPPN. It calls the suppplied walkFn with the page table
// entry that corresponds to each page table level. The entry at the last level
// is the leaf slot for vpn. Intermediate entries are followed after walkFn
// returns, so walkFn may link a freshly allocated table into an invalid entry.
func walk(rootPPN mm.PhysPageNum, vpn mm.VirtPageNum, walkFn pageTableWalker) {
	var (
		tablePPN = rootPPN
		indexes  = vpn.Indexes()
		pte      *PageTableEntry
	)

	for level := uint8(0); level < mm.PageLevels; level++ {
		pte = &tableEntries(tablePPN)[indexes[level]]
		if !walkFn(level, pte) {
			return
		}

		tablePPN = pte.PPN()
	}
}
