package kernel

import "testing"

func TestMemset(t *testing.T) {
	// memset with a 0 size should be a no-op
	Memset(nil, 0x00)

	for pageCount := uint32(1); pageCount <= 10; pageCount++ {
		buf := make([]byte, 4096<<pageCount)
		for i := 0; i < len(buf); i++ {
			buf[i] = 0xFE
		}

		Memset(buf, 0x00)

		for i := 0; i < len(buf); i++ {
			if got := buf[i]; got != 0x00 {
				t.Errorf("[block with %d pages] expected byte: %d to be 0x00; got 0x%x", pageCount, i, got)
			}
		}
	}

	// odd sizes must not spill past the target
	buf := []byte{1, 2, 3, 4, 5, 6, 7}
	Memset(buf[:5], 0xAA)
	for i, exp := range []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 6, 7} {
		if buf[i] != exp {
			t.Errorf("expected byte %d to be 0x%x; got 0x%x", i, exp, buf[i])
		}
	}
}
