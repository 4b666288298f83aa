package sync

import "rvos/kernel"

var (
	errAlreadyBorrowed = &kernel.Error{Module: "sync", Message: "exclusive cell is already borrowed"}
	errNotBorrowed     = &kernel.Error{Module: "sync", Message: "release of an exclusive cell that is not borrowed"}
)

// Exclusive guards a value that may only be accessed by one execution flow at
// a time. On a single hart with no kernel preemption the only way to observe
// contention is re-entrancy, so a second Borrow before Release panics instead
// of spinning.
//
// Callers must Release before any register context switch: the resumed flow
// may need to borrow the same cell.
type Exclusive[T any] struct {
	lock  Spinlock
	value T
}

// NewExclusive returns a cell holding v.
func NewExclusive[T any](v T) *Exclusive[T] {
	return &Exclusive[T]{value: v}
}

// Borrow grants exclusive access to the guarded value until Release is called.
func (c *Exclusive[T]) Borrow() *T {
	if !c.lock.TryToAcquire() {
		panic(errAlreadyBorrowed)
	}
	return &c.value
}

// Release ends the access granted by Borrow. Pointers obtained from Borrow
// must not be used afterwards.
func (c *Exclusive[T]) Release() {
	if !c.lock.Held() {
		panic(errNotBorrowed)
	}
	c.lock.Release()
}

// Borrowed returns true while a borrow is outstanding.
func (c *Exclusive[T]) Borrowed() bool {
	return c.lock.Held()
}

// Do borrows the cell for the duration of fn.
func (c *Exclusive[T]) Do(fn func(*T)) {
	v := c.Borrow()
	defer c.Release()
	fn(v)
}
