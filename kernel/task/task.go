package task

import (
	"rvos/kernel"
	"rvos/kernel/mm"
	"rvos/kernel/mm/vmm"
	"rvos/kernel/timer"
	"rvos/kernel/trap"
	"unsafe"
)

// TaskStatus describes the scheduling state of a task.
type TaskStatus uint32

const (
	// UnInit marks an unused task slot.
	UnInit TaskStatus = iota

	// Init marks a loaded task that has never run.
	Init

	// Ready marks a task that has run and is waiting for the CPU.
	Ready

	// Running marks the task that currently owns the CPU.
	Running

	// Exited marks a task that will never run again.
	Exited
)

// String implements fmt.Stringer for TaskStatus.
func (s TaskStatus) String() string {
	switch s {
	case UnInit:
		return "UnInit"
	case Init:
		return "Init"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Exited:
		return "Exited"
	default:
		return "unknown"
	}
}

// TaskInfo is the snapshot returned by the task_info syscall. Its layout is
// shared with user space.
type TaskInfo struct {
	Status       TaskStatus
	SyscallTimes [MaxSyscallNum]uint32

	// Time is the number of milliseconds since the task first ran.
	Time uint64
}

var (
	errKernelStackInUse = &kernel.Error{Module: "task", Message: "kernel stack slot is already mapped"}
	errTaskExited       = &kernel.Error{Module: "task", Message: "exited task has no address space"}
)

// TaskControlBlock holds everything the kernel tracks for one application.
type TaskControlBlock struct {
	status TaskStatus
	cx     TaskContext

	space     *vmm.AddressSpace
	trapCxPPN mm.PhysPageNum

	// baseSize is the top of the initial user image (including the stack).
	baseSize   uintptr
	heapBottom uintptr
	programBrk uintptr

	syscallTimes [MaxSyscallNum]uint32
	startTime    timer.TimeVal
}

// newTaskControlBlock loads image as application appID. The task's kernel
// stack is mapped into cfg.KernelSpace and its trap context is prepared so
// that the first trap return enters the program entry point.
func newTaskControlBlock(cfg *Config, image []byte, appID int) (TaskControlBlock, *kernel.Error) {
	img, err := vmm.NewAddressSpaceFromELF(image, cfg.TrampolinePPN)
	if err != nil {
		return TaskControlBlock{}, err
	}

	pte, ok := img.Space.Translate(mm.NewVirtAddr(vmm.TrapContextBase).Floor())
	if !ok {
		panic(vmm.ErrInvalidMapping)
	}

	kstackBottom, kstackTop := vmm.KernelStackPosition(appID)
	startVA, endVA := mm.NewVirtAddr(kstackBottom), mm.NewVirtAddr(kstackTop)
	if cfg.KernelSpace.IsConflict(startVA.Floor(), endVA.Ceil()) {
		img.Space.Release()
		return TaskControlBlock{}, errKernelStackInUse
	}
	if err = cfg.KernelSpace.InsertFramedArea(startVA, endVA, vmm.PermRead|vmm.PermWrite); err != nil {
		img.Space.Release()
		return TaskControlBlock{}, err
	}

	tcb := TaskControlBlock{
		status:     Init,
		cx:         gotoTrapReturn(cfg.TrapReturn, kstackTop),
		space:      img.Space,
		trapCxPPN:  pte.PPN(),
		baseSize:   img.UserSP,
		heapBottom: img.HeapBottom,
		programBrk: img.HeapBottom,
	}

	*tcb.trapContext() = trap.AppInitContext(
		img.Entry,
		img.UserSP,
		cfg.KernelSpace.Token(),
		kstackTop,
		cfg.TrapHandler,
	)

	return tcb, nil
}

// trapContext returns the task's trap context through the physical window.
func (t *TaskControlBlock) trapContext() *trap.Context {
	return (*trap.Context)(unsafe.Pointer(&t.trapCxPPN.Bytes()[0]))
}

// addressSpace returns the task's address space. Exited tasks no longer own
// one; asking for it is a scheduler bug.
func (t *TaskControlBlock) addressSpace() *vmm.AddressSpace {
	if t.space == nil {
		panic(errTaskExited)
	}
	return t.space
}

// userToken returns the satp token of the task's address space.
func (t *TaskControlBlock) userToken() uint64 {
	return t.addressSpace().Token()
}

// changeProgramBrk moves the program break by delta bytes and returns the
// previous break. The break never drops below the heap bottom and the heap
// never grows over another area.
func (t *TaskControlBlock) changeProgramBrk(delta int32) (uintptr, bool) {
	oldBrk := t.programBrk
	newBrk := int64(oldBrk) + int64(delta)
	if newBrk < int64(t.heapBottom) {
		return 0, false
	}

	heapStart, newEnd := mm.VirtAddr(t.heapBottom), mm.VirtAddr(newBrk)
	space := t.addressSpace()

	var err *kernel.Error
	if delta < 0 {
		err = space.ShrinkTo(heapStart, newEnd)
	} else {
		if space.IsConflict(mm.VirtAddr(oldBrk).Ceil(), newEnd.Ceil()) {
			return 0, false
		}
		err = space.AppendTo(heapStart, newEnd)
	}

	if err != nil {
		return 0, false
	}

	t.programBrk = uintptr(newBrk)
	return oldBrk, true
}

// info returns the task_info snapshot of the task as of now.
func (t *TaskControlBlock) info(now timer.TimeVal) TaskInfo {
	return TaskInfo{
		Status:       t.status,
		SyscallTimes: t.syscallTimes,
		Time:         now.MillisSince(t.startTime),
	}
}

// release frees the task's address space.
func (t *TaskControlBlock) release() {
	if t.space != nil {
		t.space.Release()
		t.space = nil
	}
}
