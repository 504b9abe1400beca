// Package clint simulates the core-local interruptor: per-hart mtime/
// mtimecmp timer comparators and msip software-interrupt bits. Real tongOS
// harts would memory-map this at a fixed physical address; since harts here
// are goroutines rather than cores, Controller is just the shared register
// file the scheduler and trap dispatcher poll and write directly.
package clint

import (
	"sync/atomic"

	"lock"
)

// Controller is the simulated CLINT for an NHarts-hart machine.
type Controller struct {
	mu       lock.Spinlock_t
	mtime    uint64
	mtimecmp []uint64
	msip     []uint32
}

// New allocates a Controller for nHarts harts, mtime starting at zero.
func New(nHarts int) *Controller {
	return &Controller{
		mtimecmp: make([]uint64, nHarts),
		msip:     make([]uint32, nHarts),
	}
}

// Tick advances mtime by delta and reports the new mtime plus which harts'
// mtimecmp it just passed — the timer-interrupt-pending condition a real
// hart's trap dispatcher would see on mcause=7 (machine timer interrupt).
func (c *Controller) Tick(delta uint64) (uint64, []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.mtime
	c.mtime += delta
	var fired []int
	for h, cmp := range c.mtimecmp {
		if before < cmp && c.mtime >= cmp {
			fired = append(fired, h)
		}
	}
	return c.mtime, fired
}

// Mtime reads the current simulated time.
func (c *Controller) Mtime() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mtime
}

// SetTimer programs hart's next timer interrupt deadline — the
// scheduler's quantum-arming step.
func (c *Controller) SetTimer(hart int, deadline uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mtimecmp[hart] = deadline
}

// RaiseSoftware sets hart's msip bit, the mechanism used to wake a hart
// parked in wfi when another hart migrates work onto its ready queue.
func (c *Controller) RaiseSoftware(hart int) {
	atomic.StoreUint32(&c.msip[hart], 1)
}

// ClearSoftware clears hart's msip bit; the trap dispatcher does this
// immediately after observing it pending, per the usual CLINT contract.
func (c *Controller) ClearSoftware(hart int) {
	atomic.StoreUint32(&c.msip[hart], 0)
}

// SoftwarePending reports whether hart has a software interrupt latched.
func (c *Controller) SoftwarePending(hart int) bool {
	return atomic.LoadUint32(&c.msip[hart]) != 0
}

// TimerPending reports whether hart's programmed deadline has passed.
// A hart with no deadline armed (mtimecmp still zero) never reports
// pending, matching a CLINT that has not yet been programmed.
func (c *Controller) TimerPending(hart int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mtimecmp[hart] != 0 && c.mtime >= c.mtimecmp[hart]
}
