package kmain

import (
	"rvos/kernel"
	"rvos/kernel/cpu"
	"rvos/kernel/goruntime"
	"rvos/kernel/kfmt"
	"rvos/kernel/loader"
	"rvos/kernel/mm"
	"rvos/kernel/mm/pmm"
	"rvos/kernel/mm/vmm"
	"rvos/kernel/sbi"
	"rvos/kernel/syscall"
	"rvos/kernel/task"
	"rvos/kernel/trap"
)

var (
	log = kfmt.Logger{Module: "kmain"}

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// BootInfo is filled in by the rt0 code with the addresses of the linker
// symbols the kernel needs.
type BootInfo struct {
	// Layout describes the kernel image sections, the end of physical
	// memory and the physical address of the trampoline page.
	Layout vmm.KernelLayout

	// AllTraps and Restore are the user trap entry and exit routines
	// inside the trampoline page.
	AllTraps, Restore uintptr

	// TrapEntry is the kernel routine the trampoline jumps to after
	// saving the user registers; it calls trap.Handle.
	TrapEntry uintptr

	// KernelTrapEntry handles traps raised in supervisor mode; it calls
	// trap.HandleKernelTrap.
	KernelTrapEntry uintptr

	// TrapReturn calls trap.Return on a fresh kernel stack. Every task
	// starts there the first time it is scheduled.
	TrapReturn uintptr

	// AppTable points to the application table linked into the image.
	AppTable uintptr

	// LogLevel is the name of the initial log level.
	LogLevel string
}

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. It is invoked by the rt0 assembly code on the boot
// stack with the MMU disabled.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(info *BootInfo) {
	defer kfmt.HandlePanic()

	kfmt.SetOutputSink(sbi.Console{})
	kfmt.SetHaltFn(func() { sbi.Shutdown(true) })
	if level, ok := kfmt.ParseLevel(info.LogLevel); ok {
		kfmt.SetLogLevel(level)
	} else {
		log.Warnf("unknown log level \"%s\"", info.LogLevel)
	}

	log.Infof("starting rvos")

	layout := &info.Layout
	mm.MapPhysicalMemory(mm.PhysAddr(mm.KernelBase), mm.PhysAddr(layout.MemoryEnd))

	var err *kernel.Error
	if err = pmm.Init(mm.PhysAddr(layout.KernelEnd), mm.PhysAddr(mm.HeapStart)); err != nil {
		panic(err)
	} else if err = goruntime.Init(mm.PhysAddr(mm.HeapStart), mm.PhysAddr(layout.MemoryEnd)); err != nil {
		panic(err)
	} else if err = vmm.Init(layout); err != nil {
		panic(err)
	}

	trap.Init(trap.Config{
		AllTraps:         info.AllTraps,
		Restore:          info.Restore,
		KernelTrapEntry:  info.KernelTrapEntry,
		CurrentContext:   task.CurrentTrapContext,
		CurrentUserToken: task.CurrentUserToken,
	})
	installTrapHandlers()

	loader.InitFromTable(info.AppTable)
	apps := make([][]byte, loader.NumApps())
	for i := range apps {
		apps[i] = loader.AppData(i)
	}

	if err = task.InitManager(task.Config{
		KernelSpace:   vmm.KernelSpace(),
		TrampolinePPN: mm.PhysAddr(layout.Trampoline).Floor(),
		TrapHandler:   info.TrapEntry,
		TrapReturn:    info.TrapReturn,
	}, apps); err != nil {
		panic(err)
	}
	syscall.Init(task.Manager())

	task.RunFirstTask()

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	kfmt.Panic(errKmainReturned)
}

// installTrapHandlers routes user environment calls to the syscall layer and
// kills tasks that fault.
func installTrapHandlers() {
	trap.HandleException(cpu.ExcUserEnvCall, syscall.HandleEnvCall)

	for _, code := range []uint64{
		cpu.ExcInstructionFault,
		cpu.ExcLoadFault,
		cpu.ExcStoreFault,
		cpu.ExcInstructionPageFault,
		cpu.ExcLoadPageFault,
		cpu.ExcStorePageFault,
	} {
		trap.HandleException(code, task.KillOnFault("PageFault"))
	}
	trap.HandleException(cpu.ExcIllegalInstruction, task.KillOnFault("IllegalInstruction"))
}
