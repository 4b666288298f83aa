package cpu

// Halt stops instruction execution.
func Halt()

// ReadTime returns the value of the time CSR.
func ReadTime() uint64

// ReadSstatus returns the value of the sstatus CSR.
func ReadSstatus() uint64

// ReadScause returns the value of the scause CSR.
func ReadScause() uint64

// ReadStval returns the value of the stval CSR.
func ReadStval() uint64

// WriteStvec installs the supervisor trap vector (direct mode).
func WriteStvec(addr uintptr)

// ActivateSatp loads satp with the supplied token and flushes the TLB.
func ActivateSatp(satp uint64)

// FlushTLBEntry flushes the TLB entries for the page containing virtAddr.
func FlushTLBEntry(virtAddr uintptr)

// SwitchContext saves the callee-saved registers into cur and resumes the
// flow described by next. It returns only when some later SwitchContext call
// resumes cur.
func SwitchContext(cur, next *Context)

// JumpTo transfers control to pc with a0 and a1 loaded into the argument
// registers. It never returns.
func JumpTo(pc, a0, a1 uintptr)

// SBICall performs an ecall into the supervisor binary interface.
func SBICall(eid, fid, a0, a1, a2 uintptr) (errno, value uintptr)
