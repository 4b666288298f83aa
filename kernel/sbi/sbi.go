// Package sbi wraps the supervisor binary interface calls the kernel relies
// on: console I/O and system reset.
package sbi

import "rvos/kernel/cpu"

const (
	eidConsolePutchar = 0x01
	eidConsoleGetchar = 0x02
	eidSystemReset    = 0x53525354 // "SRST"

	resetTypeShutdown  = 0
	resetReasonNone    = 0
	resetReasonFailure = 1
)

var (
	// the following functions are mocked by tests.
	sbiCallFn = cpu.SBICall
	haltFn    = cpu.Halt
)

// ConsolePutchar writes a single byte to the debug console.
func ConsolePutchar(c byte) {
	sbiCallFn(eidConsolePutchar, 0, uintptr(c), 0, 0)
}

// ConsoleGetchar reads a byte from the debug console. It returns false if no
// input is pending.
func ConsoleGetchar() (byte, bool) {
	// The legacy extension returns the character (or -1) in a0.
	ret, _ := sbiCallFn(eidConsoleGetchar, 0, 0, 0, 0)
	if int(ret) < 0 {
		return 0, false
	}
	return byte(ret), true
}

// Shutdown asks the SBI implementation to power off the machine. If the
// request is rejected the hart is halted instead. Shutdown never returns on
// real hardware.
func Shutdown(failure bool) {
	reason := uintptr(resetReasonNone)
	if failure {
		reason = resetReasonFailure
	}

	sbiCallFn(eidSystemReset, 0, resetTypeShutdown, reason, 0)
	haltFn()
}

// Console is an io.Writer backed by the SBI debug console.
type Console struct{}

// Write sends p to the debug console one byte at a time.
func (Console) Write(p []byte) (int, error) {
	for _, b := range p {
		ConsolePutchar(b)
	}
	return len(p), nil
}
