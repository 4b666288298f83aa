// Package syscall implements the system calls available to user tasks.
package syscall

import (
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

// Syscall ids.
const (
	SysWrite    = 64
	SysExit     = 93
	SysYield    = 124
	SysGetTime  = 169
	SysSbrk     = 214
	SysMunmap   = 215
	SysMmap     = 222
	SysTaskInfo = 410
)

// TaskManager is the part of the scheduler the syscalls operate on.
type TaskManager interface {
	SuspendCurrentAndRunNext()
	ExitCurrentAndRunNext()
	UpdateSyscallCount(id uintptr)
	CurrentTaskInfo() task.TaskInfo
	CurrentUserToken() uint64
	ChangeProgramBrk(delta int32) (uintptr, bool)
	Mmap(start, length, port uintptr) *kernel.Error
	Munmap(start, length uintptr) *kernel.Error
}

var _ TaskManager = (*task.TaskManager)(nil)

var (
	tasks TaskManager

	log = kfmt.Logger{Module: "syscall"}

	errUnsupportedSyscall = &kernel.Error{Module: "syscall", Message: "unsupported syscall id"}
)

// Init sets the task manager the syscalls operate on.
func Init(m TaskManager) {
	tasks = m
}

// Dispatch executes syscall id with the supplied arguments on behalf of the
// current task and returns the value handed back to user space.
func Dispatch(id uintptr, args [3]uintptr) int64 {
	tasks.UpdateSyscallCount(id)

	switch id {
	case SysWrite:
		return sysWrite(args[0], args[1], args[2])
	case SysExit:
		return sysExit(int32(args[0]))
	case SysYield:
		return sysYield()
	case SysGetTime:
		return sysGetTime(args[0], args[1])
	case SysSbrk:
		return sysSbrk(int32(args[0]))
	case SysMunmap:
		return sysMunmap(args[0], args[1])
	case SysMmap:
		return sysMmap(args[0], args[1], args[2])
	case SysTaskInfo:
		return sysTaskInfo(args[0])
	}

	log.Errorf("unsupported syscall id %d", id)
	panic(errUnsupportedSyscall)
}

// HandleEnvCall is the trap handler for environment calls issued from user
// mode. It skips the ecall instruction and stores the result in a0.
func HandleEnvCall(cx *trap.Context, _ uintptr) {
	cx.Sepc += 4
	ret := Dispatch(cx.X[trap.RegA7], [3]uintptr{cx.X[trap.RegA0], cx.X[trap.RegA1], cx.X[trap.RegA2]})
	cx.X[trap.RegA0] = uintptr(ret)
}
