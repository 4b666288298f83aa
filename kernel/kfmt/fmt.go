// Package kfmt provides the kernel's formatted output, logging and panic
// facilities. None of the printing functions allocate, so they can be used
// from trap handlers and before the console is attached.
package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numFmtBuf = []byte("012345678901234567890123456789012")

	// singleByte is used as a shared buffer for passing single characters
	// to doWrite.
	singleByte = []byte(" ")

	// earlyPrintBuffer stores Printf output produced before the SBI console
	// is attached via SetOutputSink.
	earlyPrintBuffer bootLog

	// outputSink is where Printf sends its output. When nil, the output is
	// kept in earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and flushes
// any output accumulated in the early print buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w == nil {
		return
	}

	dropped := earlyPrintBuffer.dropped
	_, _ = io.Copy(w, &earlyPrintBuffer)
	earlyPrintBuffer.reset()
	if dropped != 0 {
		Fprintf(w, "\n[kfmt] %d bytes of early output were lost\n", dropped)
	}
}

// Printf provides a minimal Printf implementation that does not allocate
// memory. It supports the following subset of the fmt verbs:
//
//	%s  string or []byte
//	%c  a single byte or rune (only the low 8 bits are printed)
//	%d  base 10 integer
//	%o  base 8 integer
//	%x  base 16 integer, lower-case digits
//	%t  "true" or "false"
//
// An optional decimal width may precede the verb. Strings and base-10
// integers are left-padded with spaces; base-8 and base-16 integers are
// left-padded with zeroes.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		nextArg int
		padLen  int
		ch      byte
		i       int
		fmtLen  = len(format)
	)

	for i < fmtLen {
		ch = format[i]
		if ch != '%' {
			writeByte(w, ch)
			i++
			continue
		}

		// Consume the width prefix (if any) and locate the verb
		padLen = 0
		for i++; i < fmtLen && format[i] >= '0' && format[i] <= '9'; i++ {
			padLen = (padLen * 10) + int(format[i]-'0')
		}

		if i == fmtLen {
			doWrite(w, errNoVerb)
			break
		}

		switch ch = format[i]; ch {
		case '%':
			writeByte(w, '%')
		case 'd', 'o', 'x', 's', 't', 'c':
			if nextArg >= len(args) {
				doWrite(w, errMissingArg)
				break
			}

			switch ch {
			case 'd':
				fmtInt(w, args[nextArg], 10, padLen)
			case 'o':
				fmtInt(w, args[nextArg], 8, padLen)
			case 'x':
				fmtInt(w, args[nextArg], 16, padLen)
			case 's':
				fmtString(w, args[nextArg], padLen)
			case 't':
				fmtBool(w, args[nextArg])
			case 'c':
				fmtChar(w, args[nextArg])
			}
			nextArg++
		default:
			doWrite(w, errNoVerb)
		}
		i++
	}

	for ; nextArg < len(args); nextArg++ {
		doWrite(w, errExtraArg)
	}
}

func writeByte(w io.Writer, ch byte) {
	singleByte[0] = ch
	doWrite(w, singleByte)
}

// fmtBool prints a formatted version of boolean value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtChar prints v as a single character.
func fmtChar(w io.Writer, v interface{}) {
	switch c := v.(type) {
	case byte:
		writeByte(w, c)
	case rune:
		writeByte(w, byte(c))
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by padLen.
func fmtString(w io.Writer, v interface{}, padLen int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		// converting the string to a byte slice triggers a memory allocation
		// so we need to do this one byte at a time.
		for i := 0; i < len(castedVal); i++ {
			writeByte(w, castedVal[i])
		}
	case []byte:
		fmtRepeat(w, ' ', padLen-len(castedVal))
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	for i := 0; i < count; i++ {
		writeByte(w, ch)
	}
}

// toUint64 splits an integer argument into its magnitude and sign.
func toUint64(v interface{}) (mag uint64, neg, ok bool) {
	var sval int64
	switch val := v.(type) {
	case uint8:
		return uint64(val), false, true
	case uint16:
		return uint64(val), false, true
	case uint32:
		return uint64(val), false, true
	case uint64:
		return val, false, true
	case uint:
		return uint64(val), false, true
	case uintptr:
		return uint64(val), false, true
	case int8:
		sval = int64(val)
	case int16:
		sval = int64(val)
	case int32:
		sval = int64(val)
	case int64:
		sval = val
	case int:
		sval = int64(val)
	default:
		return 0, false, false
	}

	if sval < 0 {
		return uint64(-sval), true, true
	}
	return uint64(sval), false, true
}

// fmtInt prints out a formatted version of v in the requested base, applying
// the padding specified by padLen.
func fmtInt(w io.Writer, v interface{}, base uint64, padLen int) {
	uval, neg, ok := toUint64(v)
	if !ok {
		doWrite(w, errWrongArgType)
		return
	}

	if padLen >= maxBufSize {
		padLen = maxBufSize - 1
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	// Digits are generated in reverse order and flipped at the end
	right := 0
	for right < maxBufSize {
		digit := uval % base
		if digit < 10 {
			numFmtBuf[right] = byte(digit) + '0'
		} else {
			numFmtBuf[right] = byte(digit-10) + 'a'
		}
		right++

		if uval /= base; uval == 0 {
			break
		}
	}

	for ; right < padLen; right++ {
		numFmtBuf[right] = padCh
	}

	// The sign replaces the rightmost blank pad character or gets appended
	// when there is no room left.
	if neg {
		end := right - 1
		for ; end >= 0 && numFmtBuf[end] == ' '; end-- {
		}
		if end == right-1 {
			right++
		}
		numFmtBuf[end+1] = '-'
	}

	for left, last := 0, right-1; left < last; left, last = left+1, last-1 {
		numFmtBuf[left], numFmtBuf[last] = numFmtBuf[last], numFmtBuf[left]
	}

	doWrite(w, numFmtBuf[:right])
}

// doWrite hides p from the compiler's escape analysis. Without this, the call
// to the yet unknown outputSink makes the compiler flag p as escaping and
// every Printf call would allocate.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		_, _ = w.Write(p)
	} else {
		_, _ = earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
