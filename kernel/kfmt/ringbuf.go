package kfmt

import "io"

// bootLogSize is the capacity of the buffer holding output produced before
// the SBI console is attached. It must be a power of 2.
const bootLogSize = 4096

// bootLog keeps the most recent bootLogSize bytes written to it. Older bytes
// are overwritten and counted in dropped.
type bootLog struct {
	buf [bootLogSize]byte

	// head is the index of the oldest byte and size the number of
	// buffered bytes.
	head, size int

	dropped int
}

func (l *bootLog) reset() {
	l.head, l.size, l.dropped = 0, 0, 0
}

// Write appends p, overwriting the oldest bytes once the buffer is full. It
// never fails.
func (l *bootLog) Write(p []byte) (int, error) {
	for _, b := range p {
		l.buf[(l.head+l.size)&(bootLogSize-1)] = b
		if l.size < bootLogSize {
			l.size++
			continue
		}

		l.head = (l.head + 1) & (bootLogSize - 1)
		l.dropped++
	}

	return len(p), nil
}

// Read drains buffered bytes in the order they were written. Each call copies
// at most the bytes up to the physical end of the buffer.
func (l *bootLog) Read(p []byte) (int, error) {
	if l.size == 0 {
		return 0, io.EOF
	}

	n := min(len(p), l.size, bootLogSize-l.head)
	copy(p, l.buf[l.head:l.head+n])
	l.head = (l.head + n) & (bootLogSize - 1)
	l.size -= n

	return n, nil
}
