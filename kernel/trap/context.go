package trap

import (
	"rvos/kernel/cpu"
	"rvos/kernel/kfmt"
)

var readSstatusFn = cpu.ReadSstatus

// Context contains the user register state saved by the trap entry code
// when a task traps into the kernel, together with the values the entry code
// needs to switch into the kernel address space. The field layout is shared
// with the trampoline assembly and must not be reordered.
type Context struct {
	// X holds the general purpose registers x0-x31.
	X [32]uintptr

	Sstatus uint64
	Sepc    uintptr

	// KernelSatp is the token of the kernel address space.
	KernelSatp uint64

	// KernelSP is the top of the task's kernel stack.
	KernelSP uintptr

	// TrapHandler is the kernel address the entry code jumps to once it
	// has switched address spaces.
	TrapHandler uintptr
}

// Register aliases used by the syscall ABI.
const (
	RegSP = 2
	RegA0 = 10
	RegA1 = 11
	RegA2 = 12
	RegA7 = 17
)

// SetSP sets the user stack pointer.
func (cx *Context) SetSP(sp uintptr) {
	cx.X[RegSP] = sp
}

// AppInitContext returns the trap context that makes the trap return path
// enter a freshly loaded application in user mode at entry with its stack
// pointer set to sp.
func AppInitContext(entry, sp uintptr, kernelSatp uint64, kernelSP, trapHandler uintptr) Context {
	cx := Context{
		Sstatus:     readSstatusFn() &^ cpu.SstatusSPP,
		Sepc:        entry,
		KernelSatp:  kernelSatp,
		KernelSP:    kernelSP,
		TrapHandler: trapHandler,
	}
	cx.SetSP(sp)
	return cx
}

// Print outputs a dump of the most relevant register values to the active
// console.
func (cx *Context) Print() {
	kfmt.Printf("sepc = %16x sstatus = %16x\n", cx.Sepc, cx.Sstatus)
	kfmt.Printf("ra   = %16x sp      = %16x\n", cx.X[1], cx.X[RegSP])
	kfmt.Printf("a0   = %16x a1      = %16x\n", cx.X[RegA0], cx.X[RegA1])
	kfmt.Printf("a2   = %16x a7      = %16x\n", cx.X[RegA2], cx.X[RegA7])
}
