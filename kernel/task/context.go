package task

import "rvos/kernel/cpu"

// TaskContext is the kernel register state saved for a task that is not
// running.
type TaskContext cpu.Context

// gotoTrapReturn returns a context that, once switched to, starts executing
// trapReturn on the kernel stack ending at kstackTop.
func gotoTrapReturn(trapReturn, kstackTop uintptr) TaskContext {
	return TaskContext{RA: trapReturn, SP: kstackTop}
}
