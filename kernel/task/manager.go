package task

import (
	"rvos/kernel"
	"rvos/kernel/cpu"
	"rvos/kernel/kfmt"
	"rvos/kernel/mm"
	"rvos/kernel/mm/vmm"
	"rvos/kernel/sbi"
	"rvos/kernel/sync"
	"rvos/kernel/timer"
	"rvos/kernel/trap"
)

var (
	// the following functions are mocked by tests.
	switchFn   = switchContext
	shutdownFn = sbi.Shutdown

	log = kfmt.Logger{Module: "task"}

	errTooManyApps = &kernel.Error{Module: "task", Message: "number of applications exceeds the task table capacity"}
	errNoApps      = &kernel.Error{Module: "task", Message: "no applications to run"}
)

func switchContext(cur, next *TaskContext) {
	cpu.SwitchContext((*cpu.Context)(cur), (*cpu.Context)(next))
}

// Config describes the kernel facilities every task is wired to.
type Config struct {
	// KernelSpace receives the kernel stack of every task.
	KernelSpace *vmm.AddressSpace

	// TrampolinePPN is the frame holding the trap entry/exit code.
	TrampolinePPN mm.PhysPageNum

	// TrapHandler is the kernel entry the trampoline jumps to after
	// saving the user registers.
	TrapHandler uintptr

	// TrapReturn is where a task starts executing in supervisor mode the
	// first time it is switched to.
	TrapReturn uintptr
}

type taskManagerInner struct {
	tasks   [MaxAppNum]TaskControlBlock
	current int
}

// TaskManager multiplexes a fixed set of tasks on the hart using round robin
// scheduling. Tasks give up the CPU only by yielding, exiting or being
// killed.
type TaskManager struct {
	numApp int
	inner  *sync.Exclusive[taskManagerInner]
}

// NewTaskManager loads every image in apps as a task.
func NewTaskManager(cfg Config, apps [][]byte) (*TaskManager, *kernel.Error) {
	if len(apps) > MaxAppNum {
		return nil, errTooManyApps
	}

	var inner taskManagerInner
	for appID, image := range apps {
		tcb, err := newTaskControlBlock(&cfg, image, appID)
		if err != nil {
			log.Errorf("unable to load app %d: %s", appID, err.Message)
			for i := 0; i < appID; i++ {
				inner.tasks[i].release()
			}
			return nil, err
		}

		inner.tasks[appID] = tcb
		log.Debugf("loaded app %d: brk 0x%x", appID, tcb.programBrk)
	}

	log.Infof("loaded %d applications", len(apps))
	return &TaskManager{
		numApp: len(apps),
		inner:  sync.NewExclusive(inner),
	}, nil
}

// NumApps returns the number of tasks.
func (m *TaskManager) NumApps() int {
	return m.numApp
}

// RunFirstTask switches from the boot flow to task 0. The boot context is
// discarded, so on the target the call does not return.
func (m *TaskManager) RunFirstTask() {
	if m.numApp == 0 {
		panic(errNoApps)
	}

	inner := m.inner.Borrow()
	first := &inner.tasks[0]
	first.status = Running
	first.startTime = timer.Now()
	next := &first.cx
	m.inner.Release()

	var unused TaskContext
	switchFn(&unused, next)
}

// findNextTask scans the task table circularly, starting after the current
// task, for a task that can run. The current task is considered last.
func (m *TaskManager) findNextTask(inner *taskManagerInner) (int, bool) {
	for i := 1; i <= m.numApp; i++ {
		id := (inner.current + i) % m.numApp
		if status := inner.tasks[id].status; status == Ready || status == Init {
			return id, true
		}
	}
	return 0, false
}

// runNextTask switches to the next runnable task. If no task can run the
// machine is shut down.
func (m *TaskManager) runNextTask() {
	inner := m.inner.Borrow()
	next, ok := m.findNextTask(inner)
	if !ok {
		m.inner.Release()
		log.Infof("all applications completed")
		shutdownFn(false)
		return
	}

	nextTask := &inner.tasks[next]
	if nextTask.status == Init {
		nextTask.startTime = timer.Now()
	}
	nextTask.status = Running

	current := inner.current
	inner.current = next
	cur, nxt := &inner.tasks[current].cx, &nextTask.cx
	m.inner.Release()

	switchFn(cur, nxt)
}

func (m *TaskManager) markCurrentSuspended() {
	m.inner.Do(func(inner *taskManagerInner) {
		inner.tasks[inner.current].status = Ready
	})
}

// markCurrentExited releases the current task's address space. The slot stays
// current until runNextTask picks another task, so nothing may ask it for its
// address space in between.
func (m *TaskManager) markCurrentExited() {
	m.inner.Do(func(inner *taskManagerInner) {
		task := &inner.tasks[inner.current]
		task.status = Exited
		task.release()
	})
}

// SuspendCurrentAndRunNext makes the current task Ready and switches to the
// next runnable task.
func (m *TaskManager) SuspendCurrentAndRunNext() {
	m.markCurrentSuspended()
	m.runNextTask()
}

// ExitCurrentAndRunNext terminates the current task, releases its address
// space and switches to the next runnable task.
func (m *TaskManager) ExitCurrentAndRunNext() {
	m.markCurrentExited()
	m.runNextTask()
}

// UpdateSyscallCount records an invocation of syscall id by the current task.
func (m *TaskManager) UpdateSyscallCount(id uintptr) {
	if id >= MaxSyscallNum {
		return
	}
	m.inner.Do(func(inner *taskManagerInner) {
		inner.tasks[inner.current].syscallTimes[id]++
	})
}

// CurrentTaskInfo returns the status, syscall histogram and running time of
// the current task.
func (m *TaskManager) CurrentTaskInfo() (info TaskInfo) {
	now := timer.Now()
	m.inner.Do(func(inner *taskManagerInner) {
		info = inner.tasks[inner.current].info(now)
	})
	return info
}

// CurrentUserToken returns the satp token of the current task.
func (m *TaskManager) CurrentUserToken() (token uint64) {
	m.inner.Do(func(inner *taskManagerInner) {
		token = inner.tasks[inner.current].userToken()
	})
	return token
}

// CurrentTrapContext returns the trap context of the current task.
func (m *TaskManager) CurrentTrapContext() (cx *trap.Context) {
	m.inner.Do(func(inner *taskManagerInner) {
		cx = inner.tasks[inner.current].trapContext()
	})
	return cx
}

// ChangeProgramBrk moves the current task's program break by delta bytes and
// returns the previous break.
func (m *TaskManager) ChangeProgramBrk(delta int32) (oldBrk uintptr, ok bool) {
	m.inner.Do(func(inner *taskManagerInner) {
		oldBrk, ok = inner.tasks[inner.current].changeProgramBrk(delta)
	})
	return oldBrk, ok
}

// Mmap maps [start, start+length) into the current task's address space.
func (m *TaskManager) Mmap(start, length, port uintptr) (err *kernel.Error) {
	m.inner.Do(func(inner *taskManagerInner) {
		err = inner.tasks[inner.current].addressSpace().Mmap(start, length, port)
	})
	return err
}

// Munmap unmaps [start, start+length) from the current task's address space.
func (m *TaskManager) Munmap(start, length uintptr) (err *kernel.Error) {
	m.inner.Do(func(inner *taskManagerInner) {
		err = inner.tasks[inner.current].addressSpace().Munmap(start, length)
	})
	return err
}
