package mm

import "testing"

func TestAddressRounding(t *testing.T) {
	specs := []struct {
		addr     uintptr
		expFloor uintptr
		expCeil  uintptr
		expOff   uintptr
	}{
		{0x0, 0x0, 0x0, 0},
		{0x1000, 0x1, 0x1, 0},
		{0x1001, 0x1, 0x2, 1},
		{0x1fff, 0x1, 0x2, 0xfff},
		{0x80200000, 0x80200, 0x80200, 0},
	}

	for specIndex, spec := range specs {
		va := NewVirtAddr(spec.addr)
		if got := va.Floor(); got != VirtPageNum(spec.expFloor) {
			t.Errorf("[spec %d] expected va floor to be %x; got %x", specIndex, spec.expFloor, got)
		}
		if got := va.Ceil(); got != VirtPageNum(spec.expCeil) {
			t.Errorf("[spec %d] expected va ceil to be %x; got %x", specIndex, spec.expCeil, got)
		}
		if got := va.PageOffset(); got != spec.expOff {
			t.Errorf("[spec %d] expected va offset to be %x; got %x", specIndex, spec.expOff, got)
		}
		if exp, got := spec.expOff == 0, va.Aligned(); got != exp {
			t.Errorf("[spec %d] expected va aligned to be %t; got %t", specIndex, exp, got)
		}

		pa := NewPhysAddr(spec.addr)
		if got := pa.Floor(); got != PhysPageNum(spec.expFloor) {
			t.Errorf("[spec %d] expected pa floor to be %x; got %x", specIndex, spec.expFloor, got)
		}
		if got := pa.Ceil(); got != PhysPageNum(spec.expCeil) {
			t.Errorf("[spec %d] expected pa ceil to be %x; got %x", specIndex, spec.expCeil, got)
		}
		if got := pa.PageOffset(); got != spec.expOff {
			t.Errorf("[spec %d] expected pa offset to be %x; got %x", specIndex, spec.expOff, got)
		}
	}
}

func TestVirtAddrTruncation(t *testing.T) {
	// The top page of the 64-bit space folds onto the last SV39 page.
	va := NewVirtAddr(^uintptr(0) - PageSize + 1)
	if exp, got := VirtAddr(0x7ffffff000), va; got != exp {
		t.Fatalf("expected truncated address to be %x; got %x", exp, got)
	}

	if exp, got := [PageLevels]uintptr{511, 511, 511}, va.Floor().Indexes(); got != exp {
		t.Fatalf("expected indexes %v; got %v", exp, got)
	}
}

func TestVirtPageNumIndexes(t *testing.T) {
	specs := []struct {
		vpn VirtPageNum
		exp [PageLevels]uintptr
	}{
		{0, [PageLevels]uintptr{0, 0, 0}},
		{1, [PageLevels]uintptr{0, 0, 1}},
		{0x200, [PageLevels]uintptr{0, 1, 0}},
		{0x40000, [PageLevels]uintptr{1, 0, 0}},
		{0x10, [PageLevels]uintptr{0, 0, 0x10}},
		{VirtPageNum(3<<18 | 5<<9 | 7), [PageLevels]uintptr{3, 5, 7}},
	}

	for specIndex, spec := range specs {
		if got := spec.vpn.Indexes(); got != spec.exp {
			t.Errorf("[spec %d] expected indexes for vpn %x to be %v; got %v", specIndex, spec.vpn, spec.exp, got)
		}
	}
}

func TestPageNumStepAndAddr(t *testing.T) {
	vpn := VirtPageNum(0x10)
	vpn.Step()
	if exp := VirtPageNum(0x11); vpn != exp {
		t.Fatalf("expected vpn to be %x after step; got %x", exp, vpn)
	}

	if exp, got := VirtAddr(0x11000), vpn.Addr(); got != exp {
		t.Fatalf("expected vpn address to be %x; got %x", exp, got)
	}

	if exp, got := PhysAddr(0x80001000), PhysPageNum(0x80001).Addr(); got != exp {
		t.Fatalf("expected ppn address to be %x; got %x", exp, got)
	}
}

func TestVPNRange(t *testing.T) {
	r := NewVPNRange(0x10, 0x14)
	if exp, got := 4, r.Len(); got != exp {
		t.Fatalf("expected range len to be %d; got %d", exp, got)
	}

	if !r.Contains(0x10) || !r.Contains(0x13) || r.Contains(0x14) || r.Contains(0xf) {
		t.Fatal("range containment does not honor half-open bounds")
	}

	if inverted := NewVPNRange(0x20, 0x10); !inverted.Empty() || inverted.Len() != 0 {
		t.Fatalf("expected inverted range to be empty; got %+v", inverted)
	}

	specs := []struct {
		other      VPNRange
		expOverlap bool
		expCovers  bool
	}{
		{NewVPNRange(0x0, 0x10), false, false},
		{NewVPNRange(0x14, 0x20), false, false},
		{NewVPNRange(0x0, 0x11), true, false},
		{NewVPNRange(0x13, 0x20), true, false},
		{NewVPNRange(0x11, 0x13), true, true},
		{NewVPNRange(0x10, 0x14), true, true},
		{NewVPNRange(0x12, 0x12), false, true},
	}

	for specIndex, spec := range specs {
		if got := r.Overlaps(spec.other); got != spec.expOverlap {
			t.Errorf("[spec %d] expected Overlaps(%+v) to be %t; got %t", specIndex, spec.other, spec.expOverlap, got)
		}
		if got := r.Covers(spec.other); got != spec.expCovers {
			t.Errorf("[spec %d] expected Covers(%+v) to be %t; got %t", specIndex, spec.other, spec.expCovers, got)
		}
	}
}
