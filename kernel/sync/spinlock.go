// Package sync provides the kernel's mutual exclusion primitives: a spinlock
// and a checked exclusive-access cell for single-hart kernel state.
package sync

import "sync/atomic"

// spinAttemptsBeforeYield is the number of failed acquisition attempts after
// which Acquire calls yieldFn.
const spinAttemptsBeforeYield = 64

var (
	// yieldFn is invoked while spinning. The kernel never preempts itself,
	// so the default is a no-op; tests substitute runtime.Gosched.
	yieldFn = func() {}
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for attempt := uint32(1); !l.TryToAcquire(); attempt++ {
		if attempt%spinAttemptsBeforeYield == 0 {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// Held returns true if the lock is currently acquired.
func (l *Spinlock) Held() bool {
	return atomic.LoadUint32(&l.state) == 1
}
