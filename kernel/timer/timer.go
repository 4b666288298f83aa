// Package timer provides the monotonic clock the kernel derives from the
// time CSR.
package timer

import "rvos/kernel/cpu"

const (
	// ClockFreq is the frequency of the time CSR on the qemu virt board.
	ClockFreq = uint64(12_500_000)

	// MicrosPerSec is the number of microseconds in a second.
	MicrosPerSec = uint64(1_000_000)

	// MillisPerSec is the number of milliseconds in a second.
	MillisPerSec = uint64(1_000)
)

// readTimeFn is used by tests to drive the clock.
var readTimeFn = cpu.ReadTime

// SetTimeSource overrides the tick source. Passing nil restores the time
// CSR.
func SetTimeSource(fn func() uint64) {
	if fn == nil {
		fn = cpu.ReadTime
	}
	readTimeFn = fn
}

// GetTime returns the raw tick count.
func GetTime() uint64 {
	return readTimeFn()
}

// GetTimeUs returns the time since boot in microseconds.
func GetTimeUs() uint64 {
	ticks := readTimeFn()
	return ticks/ClockFreq*MicrosPerSec + ticks%ClockFreq*MicrosPerSec/ClockFreq
}

// GetTimeMs returns the time since boot in milliseconds.
func GetTimeMs() uint64 {
	return GetTimeUs() / (MicrosPerSec / MillisPerSec)
}

// TimeVal is a point in time split into whole seconds and microseconds. Its
// layout is shared with user space.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// Now returns the current time.
func Now() TimeVal {
	return FromMicros(GetTimeUs())
}

// FromMicros splits a microsecond timestamp.
func FromMicros(us uint64) TimeVal {
	return TimeVal{Sec: us / MicrosPerSec, Usec: us % MicrosPerSec}
}

// Micros returns the timestamp in microseconds.
func (tv TimeVal) Micros() uint64 {
	return tv.Sec*MicrosPerSec + tv.Usec
}

// Millis returns the timestamp truncated to whole milliseconds.
func (tv TimeVal) Millis() uint64 {
	return tv.Micros() / (MicrosPerSec / MillisPerSec)
}

// MillisSince returns the number of whole milliseconds between earlier and
// tv. Both timestamps are truncated to milliseconds before subtracting.
func (tv TimeVal) MillisSince(earlier TimeVal) uint64 {
	now, then := tv.Millis(), earlier.Millis()
	if now < then {
		return 0
	}
	return now - then
}
