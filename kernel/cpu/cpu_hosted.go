//go:build !riscv64

package cpu

import "time"

// The hosted variants let the rest of the kernel build and run its tests on a
// development machine. Operations that only make sense on the target hart
// panic.

var (
	bootTime   = time.Now()
	activeSatp uint64
)

// Halt stops instruction execution.
func Halt() {
	panic("cpu: halt")
}

// ReadTime returns the number of 12.5MHz ticks elapsed since the process
// started, matching the qemu virt board's time CSR.
func ReadTime() uint64 {
	return uint64(time.Since(bootTime).Nanoseconds() / 80)
}

// ReadSstatus returns the value of the sstatus CSR.
func ReadSstatus() uint64 { return 0 }

// ReadScause returns the value of the scause CSR.
func ReadScause() uint64 { return 0 }

// ReadStval returns the value of the stval CSR.
func ReadStval() uint64 { return 0 }

// WriteStvec installs the supervisor trap vector (direct mode).
func WriteStvec(uintptr) {}

// ActivateSatp records the supplied token as the active translation root.
func ActivateSatp(satp uint64) { activeSatp = satp }

// ActiveSatp returns the token recorded by the last ActivateSatp call.
func ActiveSatp() uint64 { return activeSatp }

// FlushTLBEntry flushes the TLB entries for the page containing virtAddr.
func FlushTLBEntry(virtAddr uintptr) {}

// SwitchContext saves the callee-saved registers into cur and resumes the
// flow described by next.
func SwitchContext(cur, next *Context) {
	panic("cpu: context switch requires the riscv64 target")
}

// JumpTo transfers control to pc with a0 and a1 loaded into the argument
// registers.
func JumpTo(pc, a0, a1 uintptr) {
	panic("cpu: jump requires the riscv64 target")
}

// SBICall performs an ecall into the supervisor binary interface.
func SBICall(eid, fid, a0, a1, a2 uintptr) (errno, value uintptr) {
	return ^uintptr(1), 0 // SBI_ERR_NOT_SUPPORTED
}
