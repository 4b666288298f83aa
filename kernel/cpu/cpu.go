// Package cpu exposes the handful of privileged RISC-V operations the kernel
// needs: CSR access, address translation control, the register context switch
// and SBI calls.
package cpu

// Context holds the callee-saved register state of a kernel execution flow.
// The field order is relied upon by SwitchContext.
type Context struct {
	// RA is the address SwitchContext returns to when this context is resumed.
	RA uintptr

	// SP is the kernel stack pointer.
	SP uintptr

	// S holds the callee-saved registers s0-s11.
	S [12]uintptr
}

const (
	// SstatusSPP is the sstatus bit recording the privilege level the hart
	// trapped from; clearing it makes sret return to user mode.
	SstatusSPP = uint64(1 << 8)

	// ScauseInterrupt is set in scause when the trap was caused by an
	// interrupt rather than an exception.
	ScauseInterrupt = uint64(1 << 63)
)

// Exception codes reported in scause (interrupt bit clear).
const (
	ExcInstructionMisaligned = 0
	ExcInstructionFault      = 1
	ExcIllegalInstruction    = 2
	ExcBreakpoint            = 3
	ExcLoadFault             = 5
	ExcStoreFault            = 7
	ExcUserEnvCall           = 8
	ExcInstructionPageFault  = 12
	ExcLoadPageFault         = 13
	ExcStorePageFault        = 15
)
