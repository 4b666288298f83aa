package task

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"rvos/kernel"
	"rvos/kernel/mm"
	"rvos/kernel/mm/pmm"
	"rvos/kernel/mm/vmm"
	"rvos/kernel/timer"
	"testing"
)

const (
	testBasePPN    = mm.PhysPageNum(0x80000)
	testEntry      = 0x10000
	testUserSP     = 0x14000
	testTrapReturn = 0x80201800
	testTrapEntry  = 0x80201000
	pageSize       = mm.PageSize
)

// testImage returns a riscv64 executable with a single one-page text segment
// at testEntry. The resulting layout puts the guard page at 0x11000, the user
// stack at [0x12000, 0x14000) and the heap bottom at testUserSP.
func testImage() []byte {
	var (
		buf  bytes.Buffer
		text = []byte{0x13, 0x00, 0x00, 0x00} // nop
	)

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     testEntry,
		Phoff:     64,
		Ehsize:    64,
		Phentsize: 56,
		Phnum:     1,
	}
	copy(hdr.Ident[:], []byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS64), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	_ = binary.Write(&buf, binary.LittleEndian, &hdr)
	_ = binary.Write(&buf, binary.LittleEndian, &elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    64 + 56,
		Vaddr:  testEntry,
		Paddr:  testEntry,
		Filesz: uint64(len(text)),
		Memsz:  uint64(len(text)),
		Align:  0x1000,
	})
	buf.Write(text)
	return buf.Bytes()
}

func testImages(count int) [][]byte {
	images := make([][]byte, count)
	for i := range images {
		images[i] = testImage()
	}
	return images
}

// testClock drives the timer in microseconds.
type testClock struct{ us uint64 }

func (c *testClock) set(us uint64) { c.us = us }

// setupTest installs a fresh physical memory arena and returns a
// configuration wired to a new kernel address space. The clock starts at 0.
func setupTest(t *testing.T) (Config, *testClock) {
	t.Helper()

	mm.SetPhysicalMemory(make([]byte, 256*int(pageSize)), testBasePPN)
	if err := pmm.Init(testBasePPN.Addr(), (testBasePPN + 256).Addr()); err != nil {
		t.Fatal(err)
	}

	kernelSpace, err := vmm.NewBareAddressSpace()
	if err != nil {
		t.Fatal(err)
	}

	trampoline, err := pmm.AllocFrame()
	if err != nil {
		t.Fatal(err)
	}

	clock := &testClock{}
	timer.SetTimeSource(func() uint64 { return clock.us * timer.ClockFreq / timer.MicrosPerSec })
	t.Cleanup(func() { timer.SetTimeSource(nil) })

	return Config{
		KernelSpace:   kernelSpace,
		TrampolinePPN: trampoline.PPN,
		TrapHandler:   testTrapEntry,
		TrapReturn:    testTrapReturn,
	}, clock
}

func expectPanic(t *testing.T, expErr *kernel.Error, fn func()) {
	t.Helper()
	defer func() {
		if err, ok := recover().(*kernel.Error); !ok || err != expErr {
			t.Fatalf("expected panic with %v; got %v", expErr, err)
		}
	}()
	fn()
}

func TestNewTaskControlBlock(t *testing.T) {
	cfg, _ := setupTest(t)

	tcb, err := newTaskControlBlock(&cfg, testImage(), 1)
	if err != nil {
		t.Fatal(err)
	}

	if tcb.status != Init {
		t.Errorf("expected status Init; got %s", tcb.status)
	}

	kstackBottom, kstackTop := vmm.KernelStackPosition(1)
	if tcb.cx.RA != testTrapReturn || tcb.cx.SP != kstackTop {
		t.Errorf("expected task context to enter trap return on the kernel stack; got %+v", tcb.cx)
	}

	if tcb.baseSize != testUserSP || tcb.heapBottom != testUserSP || tcb.programBrk != testUserSP {
		t.Errorf("expected base size, heap bottom and brk at 0x%x; got 0x%x, 0x%x, 0x%x",
			testUserSP, tcb.baseSize, tcb.heapBottom, tcb.programBrk)
	}

	cx := tcb.trapContext()
	if cx.Sepc != testEntry || cx.X[2] != testUserSP {
		t.Errorf("expected trap context to enter 0x%x with sp 0x%x; got sepc 0x%x sp 0x%x",
			testEntry, testUserSP, cx.Sepc, cx.X[2])
	}
	if cx.KernelSatp != cfg.KernelSpace.Token() || cx.KernelSP != kstackTop || cx.TrapHandler != testTrapEntry {
		t.Errorf("unexpected kernel fields in trap context: %+v", *cx)
	}

	for va := kstackBottom; va != kstackTop; va += pageSize {
		if _, ok := cfg.KernelSpace.Translate(mm.NewVirtAddr(va).Floor()); !ok {
			t.Errorf("expected kernel stack page 0x%x to be mapped", va)
		}
	}

	if _, ok := tcb.space.Translate(mm.NewVirtAddr(vmm.TrapContextBase).Floor()); !ok {
		t.Error("expected the trap context page to be mapped in the user space")
	}

	t.Run("kernel stack slot in use", func(t *testing.T) {
		freeBefore := pmm.FreeFrames()
		if _, err := newTaskControlBlock(&cfg, testImage(), 1); err != errKernelStackInUse {
			t.Fatalf("expected errKernelStackInUse; got %v", err)
		}
		if got := pmm.FreeFrames(); got != freeBefore {
			t.Fatalf("expected every frame to be released; free frames %d, want %d", got, freeBefore)
		}
	})

	t.Run("invalid image", func(t *testing.T) {
		if _, err := newTaskControlBlock(&cfg, []byte("not an elf"), 2); err == nil {
			t.Fatal("expected an error")
		}
	})

	tcb.release()
	if tcb.space != nil {
		t.Fatal("expected release to drop the address space")
	}
	tcb.release()
}

func TestChangeProgramBrk(t *testing.T) {
	cfg, _ := setupTest(t)

	tcb, err := newTaskControlBlock(&cfg, testImage(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer tcb.release()

	heapPage := func(va uintptr) bool {
		pte, ok := tcb.space.Translate(mm.VirtAddr(va).Floor())
		return ok && pte.HasFlags(vmm.FlagUser|vmm.FlagRead|vmm.FlagWrite)
	}

	specs := []struct {
		descr     string
		setup     func()
		delta     int32
		expOK     bool
		expOldBrk uintptr
		expBrk    uintptr
		mapped    []uintptr
		unmapped  []uintptr
	}{
		{"query", nil, 0, true, 0x14000, 0x14000, nil, []uintptr{0x14000}},
		{"grow by a page", nil, 0x1000, true, 0x14000, 0x15000, []uintptr{0x14000}, []uintptr{0x15000}},
		{"grow within a page", nil, 0x64, true, 0x15000, 0x15064, []uintptr{0x14000, 0x15000}, nil},
		{"shrink below heap bottom", nil, -0x1065, false, 0, 0x15064, []uintptr{0x14000, 0x15000}, nil},
		{"shrink to page boundary", nil, -0x64, true, 0x15064, 0x15000, []uintptr{0x14000}, []uintptr{0x15000}},
		{
			"grow into mmap area",
			func() {
				if err := tcb.space.Mmap(0x16000, pageSize, 0x3); err != nil {
					t.Fatal(err)
				}
			},
			0x2000, false, 0, 0x15000, []uintptr{0x14000, 0x16000}, []uintptr{0x15000},
		},
		{"grow up to mmap area", nil, 0x1000, true, 0x15000, 0x16000, []uintptr{0x14000, 0x15000}, nil},
		{"shrink to heap bottom", nil, -0x2000, true, 0x16000, 0x14000, []uintptr{0x16000}, []uintptr{0x14000, 0x15000}},
	}

	for specIndex, spec := range specs {
		if spec.setup != nil {
			spec.setup()
		}

		oldBrk, ok := tcb.changeProgramBrk(spec.delta)
		if ok != spec.expOK {
			t.Errorf("[spec %d: %s] expected ok %t; got %t", specIndex, spec.descr, spec.expOK, ok)
			continue
		}
		if ok && oldBrk != spec.expOldBrk {
			t.Errorf("[spec %d: %s] expected old brk 0x%x; got 0x%x", specIndex, spec.descr, spec.expOldBrk, oldBrk)
		}
		if tcb.programBrk != spec.expBrk {
			t.Errorf("[spec %d: %s] expected brk 0x%x; got 0x%x", specIndex, spec.descr, spec.expBrk, tcb.programBrk)
		}
		for _, va := range spec.mapped {
			if !heapPage(va) {
				t.Errorf("[spec %d: %s] expected page 0x%x to be mapped", specIndex, spec.descr, va)
			}
		}
		for _, va := range spec.unmapped {
			if heapPage(va) {
				t.Errorf("[spec %d: %s] expected page 0x%x to be unmapped", specIndex, spec.descr, va)
			}
		}
	}
}

func TestTaskStatusString(t *testing.T) {
	for status, exp := range map[TaskStatus]string{
		UnInit:  "UnInit",
		Init:    "Init",
		Ready:   "Ready",
		Running: "Running",
		Exited:  "Exited",
		42:      "unknown",
	} {
		if got := status.String(); got != exp {
			t.Errorf("expected %q; got %q", exp, got)
		}
	}
}
