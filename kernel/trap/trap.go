// Package trap dispatches the exceptions raised while a task runs in user
// mode and implements the return path back into user mode.
package trap

import (
	"rvos/kernel"
	"rvos/kernel/cpu"
	"rvos/kernel/kfmt"
	"rvos/kernel/mm/vmm"
)

// Handler processes an exception raised by the running task. stval carries
// the faulting address for memory faults and the offending instruction for
// illegal instruction exceptions.
type Handler func(cx *Context, stval uintptr)

// Config describes the trap entry code provided by the boot assembly and the
// hooks used to locate the running task's state.
type Config struct {
	// AllTraps and Restore are the link addresses of the user trap entry
	// and exit routines. Both live in the trampoline page.
	AllTraps, Restore uintptr

	// KernelTrapEntry is installed in stvec while the kernel runs.
	KernelTrapEntry uintptr

	// CurrentContext returns the trap context of the running task.
	CurrentContext func() *Context

	// CurrentUserToken returns the satp token of the running task.
	CurrentUserToken func() uint64
}

var (
	errUnsupportedTrap = &kernel.Error{Module: "trap", Message: "unsupported trap"}
	errKernelTrap      = &kernel.Error{Module: "trap", Message: "trap raised while running in supervisor mode"}
	errInvalidCode     = &kernel.Error{Module: "trap", Message: "exception code out of range"}

	log = kfmt.Logger{Module: "trap"}

	handlers [16]Handler
	config   Config

	readScauseFn = cpu.ReadScause
	readStvalFn  = cpu.ReadStval
	writeStvecFn = cpu.WriteStvec
	jumpToFn     = cpu.JumpTo
)

// Init records the trap configuration and points stvec at the kernel trap
// entry.
func Init(cfg Config) {
	config = cfg
	writeStvecFn(cfg.KernelTrapEntry)
}

// HandleException registers handler for the exception identified by code.
// A later registration for the same code replaces the earlier one.
func HandleException(code uint64, handler Handler) {
	if code >= uint64(len(handlers)) {
		panic(errInvalidCode)
	}
	handlers[code] = handler
}

// Dispatch invokes the handler registered for scause. Interrupts and
// exceptions without a handler are fatal.
func Dispatch(scause uint64, stval uintptr, cx *Context) {
	if scause&cpu.ScauseInterrupt == 0 && scause < uint64(len(handlers)) {
		if handler := handlers[scause]; handler != nil {
			handler(cx, stval)
			return
		}
	}

	log.Errorf("scause = %x, stval = %x", scause, stval)
	cx.Print()
	panic(errUnsupportedTrap)
}

// Handle is invoked by the trap entry code once it has saved the user
// registers and switched to the kernel address space. It never returns; the
// task that is current after dispatching resumes through Return.
func Handle() {
	defer kfmt.HandlePanic()

	writeStvecFn(config.KernelTrapEntry)
	Dispatch(readScauseFn(), uintptr(readStvalFn()), config.CurrentContext())
	Return()
}

// HandleKernelTrap is invoked for traps raised in supervisor mode.
func HandleKernelTrap() {
	defer kfmt.HandlePanic()

	log.Errorf("scause = %x, stval = %x", readScauseFn(), readStvalFn())
	panic(errKernelTrap)
}

// Return enters user mode for the current task. It points stvec at the user
// trap entry and jumps to the restore routine through its trampoline alias,
// passing the trap context address and the user token.
func Return() {
	writeStvecFn(vmm.Trampoline)
	restore := config.Restore - config.AllTraps + vmm.Trampoline
	jumpToFn(restore, vmm.TrapContextBase, uintptr(config.CurrentUserToken()))
}
