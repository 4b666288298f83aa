package vmm

import (
	"io"
	"rvos/kernel"
	"rvos/kernel/mm"
	"unsafe"
)

var errShortTranslatedBuffer = &kernel.Error{Module: "vmm", Message: "translated buffer is smaller than the requested value"}

// TranslatedByteBuffer resolves the user range [ptr, ptr+length) of the
// address space identified by token into an ordered list of windows over the
// backing physical pages. No window crosses a page boundary. Touching an
// unmapped page is a kernel bug and causes a panic with ErrInvalidMapping.
func TranslatedByteBuffer(token uint64, ptr uintptr, length int) [][]byte {
	var (
		pt      = PageTableFromToken(token)
		start   = ptr
		end     = ptr + uintptr(length)
		windows [][]byte
	)

	if length < 0 || end < start {
		panic(ErrInvalidMapping)
	}

	for start < end {
		pte, ok := pt.Translate(mm.NewVirtAddr(start).Floor())
		if !ok {
			panic(ErrInvalidMapping)
		}

		offset := start & (mm.PageSize - 1)
		next := min((start&^(mm.PageSize-1))+mm.PageSize, end)
		windows = append(windows, pte.PPN().Bytes()[offset:offset+(next-start)])
		start = next
	}

	return windows
}

// UserBuffer is a capability for a range of user memory. The kernel reads
// and writes user memory exclusively through values of this type.
type UserBuffer struct {
	buffers [][]byte
}

// NewUserBuffer translates [ptr, ptr+length) in the address space identified
// by token.
func NewUserBuffer(token uint64, ptr uintptr, length int) UserBuffer {
	return UserBuffer{buffers: TranslatedByteBuffer(token, ptr, length)}
}

// Len returns the number of bytes covered by the buffer.
func (ub UserBuffer) Len() int {
	total := 0
	for _, buf := range ub.buffers {
		total += len(buf)
	}
	return total
}

// Buffers returns the per-page windows backing the buffer.
func (ub UserBuffer) Buffers() [][]byte { return ub.buffers }

// CopyIn copies src into user memory and returns the number of bytes copied.
func (ub UserBuffer) CopyIn(src []byte) int {
	copied := 0
	for _, buf := range ub.buffers {
		if copied == len(src) {
			break
		}
		copied += copy(buf, src[copied:])
	}
	return copied
}

// CopyOut copies user memory into dst and returns the number of bytes copied.
func (ub UserBuffer) CopyOut(dst []byte) int {
	copied := 0
	for _, buf := range ub.buffers {
		if copied == len(dst) {
			break
		}
		copied += copy(dst[copied:], buf)
	}
	return copied
}

// ReadAt implements io.ReaderAt.
func (ub UserBuffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}

	n := 0
	for _, buf := range ub.buffers {
		if off >= int64(len(buf)) {
			off -= int64(len(buf))
			continue
		}

		n += copy(p[n:], buf[off:])
		off = 0
		if n == len(p) {
			return n, nil
		}
	}

	return n, io.EOF
}

// WriteTo implements io.WriterTo.
func (ub UserBuffer) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, buf := range ub.buffers {
		n, err := w.Write(buf)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// rawBytes returns the in-memory representation of *val.
func rawBytes[T any](val *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(val)), unsafe.Sizeof(*val))
}

// WriteTranslated copies the raw bytes of *val to the user address ptr of
// the address space identified by token.
func WriteTranslated[T any](token uint64, ptr uintptr, val *T) {
	src := rawBytes(val)
	NewUserBuffer(token, ptr, len(src)).CopyIn(src)
}

// ReadTranslated reads a T from the user address ptr of the address space
// identified by token.
func ReadTranslated[T any](token uint64, ptr uintptr) T {
	var val T
	dst := rawBytes(&val)
	if NewUserBuffer(token, ptr, len(dst)).CopyOut(dst) < len(dst) {
		panic(errShortTranslatedBuffer)
	}
	return val
}

// TranslatedStr reads the NUL-terminated string that starts at the user
// address ptr of the address space identified by token.
func TranslatedStr(token uint64, ptr uintptr) string {
	var (
		pt  = PageTableFromToken(token)
		str []byte
	)

	for va := ptr; ; {
		pte, ok := pt.Translate(mm.NewVirtAddr(va).Floor())
		if !ok {
			panic(ErrInvalidMapping)
		}

		page := pte.PPN().Bytes()
		for offset := va & (mm.PageSize - 1); offset < mm.PageSize; offset++ {
			if page[offset] == 0 {
				return string(str)
			}
			str = append(str, page[offset])
		}
		va = (va &^ (mm.PageSize - 1)) + mm.PageSize
	}
}
