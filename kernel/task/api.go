package task

import (
	"rvos/kernel"
	"rvos/kernel/trap"
)

var (
	manager *TaskManager

	errAlreadyInitialized = &kernel.Error{Module: "task", Message: "task manager already initialized"}
	errUnreachable        = &kernel.Error{Module: "task", Message: "control returned to the boot flow"}
)

// InitManager loads apps and installs the task manager used by the package
// level functions. It must be called exactly once.
func InitManager(cfg Config, apps [][]byte) *kernel.Error {
	if manager != nil {
		panic(errAlreadyInitialized)
	}

	m, err := NewTaskManager(cfg, apps)
	if err != nil {
		return err
	}
	manager = m
	return nil
}

// Manager returns the task manager installed by InitManager.
func Manager() *TaskManager { return manager }

// RunFirstTask starts executing task 0. It never returns.
func RunFirstTask() {
	manager.RunFirstTask()
	panic(errUnreachable)
}

// NumApps returns the number of loaded tasks.
func NumApps() int { return manager.NumApps() }

// SuspendCurrentAndRunNext yields the CPU to the next runnable task.
func SuspendCurrentAndRunNext() { manager.SuspendCurrentAndRunNext() }

// ExitCurrentAndRunNext terminates the current task and runs the next one.
func ExitCurrentAndRunNext() { manager.ExitCurrentAndRunNext() }

// UpdateSyscallCount records an invocation of syscall id by the current task.
func UpdateSyscallCount(id uintptr) { manager.UpdateSyscallCount(id) }

// CurrentTaskInfo returns the task_info snapshot of the current task.
func CurrentTaskInfo() TaskInfo { return manager.CurrentTaskInfo() }

// CurrentUserToken returns the satp token of the current task.
func CurrentUserToken() uint64 { return manager.CurrentUserToken() }

// CurrentTrapContext returns the trap context of the current task.
func CurrentTrapContext() *trap.Context { return manager.CurrentTrapContext() }

// ChangeProgramBrk moves the program break of the current task.
func ChangeProgramBrk(delta int32) (uintptr, bool) { return manager.ChangeProgramBrk(delta) }

// Mmap maps memory into the current task.
func Mmap(start, length, port uintptr) *kernel.Error { return manager.Mmap(start, length, port) }

// Munmap unmaps memory from the current task.
func Munmap(start, length uintptr) *kernel.Error { return manager.Munmap(start, length) }

// KillOnFault returns a trap handler that reports a fault raised by the
// current task and terminates it.
func KillOnFault(reason string) trap.Handler {
	return func(cx *trap.Context, stval uintptr) {
		log.Warnf("%s in application, bad addr = 0x%x, bad instruction = 0x%x, kernel killed it", reason, stval, cx.Sepc)
		ExitCurrentAndRunNext()
	}
}
