// Package accnt tracks per-process CPU-time accounting, adapted from the
// teacher's accnt package. The scheduler adds to a process's user/system
// counters around every quantum and every trap-handling interval; Fetch
// produces a consistent snapshot under the embedded lock.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Accnt_t accumulates per-process accounting information. Both Userns and
// Sysns are nanoseconds; the embedded mutex lets callers take a
// consistent snapshot when exporting usage data.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// Now returns the current time in nanoseconds since the Unix epoch.
func (a *Accnt_t) Now() int64 {
	return time.Now().UnixNano()
}

// Finish finalizes accounting by adding the time elapsed since since to
// system time.
func (a *Accnt_t) Finish(since int64) {
	a.Systadd(a.Now() - since)
}

// Add merges another accounting record into this one.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.Lock()
	a.Userns += n.Userns
	a.Sysns += n.Sysns
	a.Unlock()
}

// Snapshot_t is a consistent point-in-time copy of the two counters.
type Snapshot_t struct {
	Userns int64
	Sysns  int64
}

// Fetch returns a consistent snapshot of the accounting information.
func (a *Accnt_t) Fetch() Snapshot_t {
	a.Lock()
	defer a.Unlock()
	return Snapshot_t{Userns: a.Userns, Sysns: a.Sysns}
}
