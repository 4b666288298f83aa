package task

const (
	// MaxAppNum is the capacity of the task table.
	MaxAppNum = 16

	// MaxSyscallNum bounds the syscall ids tracked by the per-task
	// histogram.
	MaxSyscallNum = 500
)
