// Package lock implements the kernel's spin mutex: a single 32-bit word
// toggled with an atomic swap. It carries no fairness, priority
// inheritance, or timeout — sections it guards must be short and must
// never call into the scheduler.
package lock

import "sync/atomic"

const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

// Spinlock_t is a copyable one-bit lock. Its zero value is unlocked, so
// arrays of Spinlock_t (one per hart, one per chopstick) need no explicit
// initialization.
type Spinlock_t struct {
	word uint32
}

// TryLock attempts to acquire the lock without blocking. It returns true
// iff it swapped in a 0, i.e. iff the caller now holds the lock.
func (l *Spinlock_t) TryLock() bool {
	return atomic.SwapUint32(&l.word, locked) == unlocked
}

// Lock spins until the lock is acquired.
func (l *Spinlock_t) Lock() {
	for !l.TryLock() {
	}
}

// Unlock releases the lock. The caller must hold it.
func (l *Spinlock_t) Unlock() {
	atomic.StoreUint32(&l.word, unlocked)
}
