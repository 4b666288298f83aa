package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = uintptr(3)

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = uintptr(12)

	// PageSize defines the system's page size in bytes.
	PageSize = uintptr(1 << PageShift)

	// PAWidth is the number of significant physical address bits in SV39.
	PAWidth = 56

	// VAWidth is the number of significant virtual address bits in SV39.
	VAWidth = 39

	// PPNWidth is the number of bits of a physical page number.
	PPNWidth = PAWidth - PageShift

	// VPNWidth is the number of bits of a virtual page number.
	VPNWidth = VAWidth - PageShift

	// PageLevels is the number of translation levels walked by the MMU.
	PageLevels = 3

	// PageLevelBits is the number of virtual page number bits consumed by
	// each translation level; each table holds 1 << PageLevelBits entries.
	PageLevelBits = 9

	// EntriesPerTable is the number of entries in a page-table page.
	EntriesPerTable = 1 << PageLevelBits
)

const (
	// KernelBase is the physical (and identity-mapped virtual) address
	// where the kernel image is loaded by the firmware.
	KernelBase = uintptr(0x80000000)

	// MemoryEnd is the end of the RAM window the kernel manages (128MiB of
	// the qemu virt board).
	MemoryEnd = uintptr(0x88000000)

	// HeapStart is the start of the physical window [HeapStart, MemoryEnd)
	// backing the Go allocator. It is aligned to the runtime's 64MiB arena
	// size and is never handed to the frame allocator.
	HeapStart = uintptr(0x84000000)
)
