package syscall

import (
	"rvos/kernel"
	"rvos/kernel/mm/vmm"
	"rvos/kernel/timer"
)

var errExitReturned = &kernel.Error{Module: "syscall", Message: "exited task was scheduled again"}

func sysExit(code int32) int64 {
	log.Infof("application exited with code %d", code)
	tasks.ExitCurrentAndRunNext()
	panic(errExitReturned)
}

func sysYield() int64 {
	tasks.SuspendCurrentAndRunNext()
	return 0
}

// sysGetTime stores the current time at the user address ts. The timezone
// argument is ignored.
func sysGetTime(ts, _ uintptr) int64 {
	now := timer.Now()
	vmm.WriteTranslated(tasks.CurrentUserToken(), ts, &now)
	return 0
}

// sysTaskInfo stores the status, syscall histogram and running time of the
// calling task at the user address ti.
func sysTaskInfo(ti uintptr) int64 {
	info := tasks.CurrentTaskInfo()
	vmm.WriteTranslated(tasks.CurrentUserToken(), ti, &info)
	return 0
}

func sysMmap(start, length, port uintptr) int64 {
	if err := tasks.Mmap(start, length, port); err != nil {
		log.Debugf("mmap(0x%x, 0x%x, 0x%x): %s", start, length, port, err.Message)
		return -1
	}
	return 0
}

func sysMunmap(start, length uintptr) int64 {
	if err := tasks.Munmap(start, length); err != nil {
		log.Debugf("munmap(0x%x, 0x%x): %s", start, length, err.Message)
		return -1
	}
	return 0
}

// sysSbrk moves the program break by delta bytes and returns the previous
// break.
func sysSbrk(delta int32) int64 {
	oldBrk, ok := tasks.ChangeProgramBrk(delta)
	if !ok {
		return -1
	}
	return int64(oldBrk)
}
