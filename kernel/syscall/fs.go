package syscall

import (
	"io"
	"math"
	"rvos/kernel/mm/vmm"
	"rvos/kernel/sbi"
)

const fdStdout = 1

// stdout receives the bytes tasks write to fdStdout.
var stdout io.Writer = sbi.Console{}

// sysWrite copies length bytes at the user address buf to the console. Only
// fdStdout is supported.
func sysWrite(fd, buf, length uintptr) int64 {
	if fd != fdStdout {
		log.Warnf("write to unsupported fd %d", fd)
		return -1
	}
	if length > math.MaxInt {
		return -1
	}

	n, err := vmm.NewUserBuffer(tasks.CurrentUserToken(), buf, int(length)).WriteTo(stdout)
	if err != nil {
		return -1
	}
	return n
}
