package kfmt

import (
	"rvos/kernel"
	"rvos/kernel/cpu"
)

var (
	// cpuHaltFn is invoked after the panic banner is printed. kmain swaps
	// it for an SBI shutdown; tests replace it to observe the call.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// SetHaltFn replaces the function that stops the machine after a panic.
func SetHaltFn(fn func()) {
	if fn != nil {
		cpuHaltFn = fn
	}
}

// Panic outputs the supplied error (if not nil) to the console and halts the
// CPU. Calls to Panic never return.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		throw(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

// throw replaces runtime.throw so fatal runtime errors, such as heap
// exhaustion, print the kernel panic banner instead of using the host
// runtime's output path.
//
//go:redirect-from runtime.throw
func throw(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}

// HandlePanic must be deferred at the top of every kernel entry point (boot
// and trap handling). It turns a Go panic raised by an invariant check into a
// kernel panic.
func HandlePanic() {
	if r := recover(); r != nil {
		Panic(r)
	}
}
