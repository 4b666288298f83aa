package vmm

import (
	"bytes"
	"debug/elf"
	"rvos/kernel"
	"rvos/kernel/mm"
)

var (
	errInvalidELF     = &kernel.Error{Module: "vmm", Message: "application image is not a valid riscv64 ELF executable"}
	errSegmentOverlap = &kernel.Error{Module: "vmm", Message: "application segments overlap"}
)

// UserImage describes an address space built from an application image.
type UserImage struct {
	Space *AddressSpace

	// UserSP is the initial user stack pointer.
	UserSP uintptr

	// Entry is the program entry point.
	Entry uintptr

	// HeapBottom is the address where the (initially empty) heap area
	// starts.
	HeapBottom uintptr
}

// NewAddressSpaceFromELF builds a user address space from an ELF image. It
// maps every loadable segment, a user stack above the highest segment
// (separated by a guard page), an empty heap area right above the stack, the
// trap context page and the trampoline.
func NewAddressSpaceFromELF(image []byte, trampolinePPN mm.PhysPageNum) (UserImage, *kernel.Error) {
	f, parseErr := elf.NewFile(bytes.NewReader(image))
	if parseErr != nil || f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return UserImage{}, errInvalidELF
	}

	space, err := NewBareAddressSpace()
	if err != nil {
		return UserImage{}, err
	}

	if err = space.mapTrampoline(trampolinePPN); err != nil {
		space.Release()
		return UserImage{}, err
	}

	var maxEndVPN mm.VirtPageNum
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}

		if prog.Off+prog.Filesz > uint64(len(image)) || prog.Filesz > prog.Memsz {
			space.Release()
			return UserImage{}, errInvalidELF
		}

		perm := PermUser
		if prog.Flags&elf.PF_R != 0 {
			perm |= PermRead
		}
		if prog.Flags&elf.PF_W != 0 {
			perm |= PermWrite
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= PermExec
		}

		startVA := mm.VirtAddr(prog.Vaddr)
		area := NewMapArea(startVA, startVA+mm.VirtAddr(prog.Memsz), MapFramed, perm)
		if space.IsConflict(area.vpnRange.Start, area.vpnRange.End) {
			space.Release()
			return UserImage{}, errSegmentOverlap
		}

		if err = space.push(area, image[prog.Off:prog.Off+prog.Filesz], startVA.PageOffset()); err != nil {
			space.Release()
			return UserImage{}, err
		}
		maxEndVPN = max(maxEndVPN, area.vpnRange.End)
	}

	// guard page
	userStackBottom := maxEndVPN.Addr() + mm.VirtAddr(mm.PageSize)
	userStackTop := userStackBottom + mm.VirtAddr(UserStackSize)

	if err = space.InsertFramedArea(userStackBottom, userStackTop, PermRead|PermWrite|PermUser); err != nil {
		space.Release()
		return UserImage{}, err
	}

	// The heap starts out empty and is grown through sbrk.
	if err = space.InsertFramedArea(userStackTop, userStackTop, PermRead|PermWrite|PermUser); err != nil {
		space.Release()
		return UserImage{}, err
	}

	trapCxVA := mm.NewVirtAddr(TrapContextBase)
	if err = space.InsertFramedArea(trapCxVA, trapCxVA+mm.VirtAddr(mm.PageSize), PermRead|PermWrite); err != nil {
		space.Release()
		return UserImage{}, err
	}

	return UserImage{
		Space:      space,
		UserSP:     uintptr(userStackTop),
		Entry:      uintptr(f.Entry),
		HeapBottom: uintptr(userStackTop),
	}, nil
}
