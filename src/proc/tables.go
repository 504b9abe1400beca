package proc

import (
	"hashtable"
	"lock"
	"mem"

	"limits"
)

// HartState_t is one hart's private partition: its running slot, its ready
// FIFO, and its idle stub. Every field is guarded by Mu, matching the
// teacher's per-CPU-array-of-locked-records idiom (e.g. Physmem_t.percpu)
// rather than a package-level global.
type HartState_t struct {
	Mu      lock.Spinlock_t
	Running *Process
	Ready   []*Process
	Idle    *Process
}

// Tables_t is the complete process model: the per-hart partitions plus the
// global blocked/sleeping queues and the PID registry. Lock ordering
// (acquire low to high, release in reverse) is: PID registry < per-hart
// ready < blocked < sleeping, matching Invariant 7.
type Tables_t struct {
	Harts []*HartState_t

	pidMu    lock.Spinlock_t
	pidOrder []uint64 // FIFO order, diagnostics only
	pidIndex *hashtable.PidIndex_t
	nextPid  uint64

	blockedMu lock.Spinlock_t
	blocked   []*Process

	sleepingMu lock.Spinlock_t
	sleeping   []*Process

	tun *limits.Tunables_t
	rr  uint64 // round-robin migration counter
}

// NewTables allocates the process tables for a kernel with tun.NHarts
// harts.
func NewTables(tun *limits.Tunables_t) *Tables_t {
	t := &Tables_t{
		tun:      tun,
		pidIndex: hashtable.NewPidIndex(256),
	}
	t.Harts = make([]*HartState_t, tun.NHarts)
	for i := range t.Harts {
		t.Harts[i] = &HartState_t{}
	}
	return t
}

// FreshPid allocates a monotonically increasing PID. The counter is
// guarded by the PID registry's lock (pidMu); it has no lock of its own.
func (t *Tables_t) FreshPid() uint64 {
	t.pidMu.Lock()
	defer t.pidMu.Unlock()
	p := t.nextPid
	t.nextPid++
	return p
}

// ProcessListAdd registers p's PID and appends it to hart's ready queue —
// the first queue operation of §4.E, always called with p.State == Ready.
func (t *Tables_t) ProcessListAdd(p *Process, hart int) {
	t.registerPid(p.Pid, -1)
	h := t.Harts[hart]
	h.Mu.Lock()
	p.State = ProcessState{Kind: Ready}
	h.Ready = append(h.Ready, p)
	h.Mu.Unlock()
}

func (t *Tables_t) registerPid(pid uint64, blocker int64) {
	t.pidMu.Lock()
	defer t.pidMu.Unlock()
	t.pidOrder = append(t.pidOrder, pid)
	t.pidIndex.Set(int(pid), int(blocker))
}

func (t *Tables_t) unregisterPid(pid uint64) {
	t.pidMu.Lock()
	defer t.pidMu.Unlock()
	for i, p := range t.pidOrder {
		if p == pid {
			t.pidOrder = append(t.pidOrder[:i], t.pidOrder[i+1:]...)
			break
		}
	}
	t.pidIndex.Del(int(pid))
}

// PidListContains is Invariant 3's membership test.
func (t *Tables_t) PidListContains(pid uint64) bool {
	return t.pidIndex.Contains(int(pid))
}

// SetBlocker records that blocker is now the PID waiting to be woken when
// pid exits (used by the join syscall).
func (t *Tables_t) SetBlocker(pid uint64, blocker int64) {
	t.pidMu.Lock()
	t.pidIndex.Set(int(pid), int(blocker))
	t.pidMu.Unlock()
}

// Blocker returns the PID (if any) waiting on pid's exit.
func (t *Tables_t) Blocker(pid uint64) (int64, bool) {
	b, ok := t.pidIndex.Get(int(pid))
	if !ok {
		return -1, false
	}
	return int64(b), true
}

// popReady pops the front of hart's ready queue, or nil if empty. Caller
// must hold hart's Mu.
func popReady(h *HartState_t) *Process {
	if len(h.Ready) == 0 {
		return nil
	}
	p := h.Ready[0]
	h.Ready = h.Ready[1:]
	return p
}

// pickMigrationTarget selects a hart for a process re-entering Ready,
// per the configured MigrationPolicy. self is the hart the process is
// migrating from (or -1 if none, e.g. at creation time it stays local).
func (t *Tables_t) pickMigrationTarget(self int) int {
	switch t.tun.Migration {
	case limits.NextHart:
		base := self
		if base < 0 {
			base = 0
		}
		return (base + 1) % len(t.Harts)
	case limits.RoundRobin:
		t.pidMu.Lock()
		n := t.rr
		t.rr++
		t.pidMu.Unlock()
		return int(n % uint64(len(t.Harts)))
	default: // LeastBusy
		best := 0
		bestLen := -1
		for i, h := range t.Harts {
			h.Mu.Lock()
			idle := h.Running != nil && h.Running.Pid == IdlePid
			qlen := len(h.Ready)
			h.Mu.Unlock()
			if idle {
				return i
			}
			if bestLen == -1 || qlen < bestLen {
				bestLen = qlen
				best = i
			}
		}
		return best
	}
}

// PickHart chooses a hart per the configured migration policy without
// moving any process — used by create_thread, which has no "from" hart
// for a brand new process (pass -1 for self in that case).
func (t *Tables_t) PickHart(self int) int {
	return t.pickMigrationTarget(self)
}

// Migrate enqueues p onto a hart chosen by the migration policy and
// returns that hart's index, so the caller can raise the software
// interrupt that wakes it from wfi.
func (t *Tables_t) Migrate(p *Process, self int) int {
	target := t.pickMigrationTarget(self)
	p.PreviousHart = target
	h := t.Harts[target]
	h.Mu.Lock()
	p.State = ProcessState{Kind: Ready}
	h.Ready = append(h.Ready, p)
	h.Mu.Unlock()
	return target
}

// BlockProcess moves the running process on hart into the global blocked
// queue (used by the join syscall before a reschedule).
func (t *Tables_t) BlockProcess(p *Process) {
	t.blockedMu.Lock()
	p.State = ProcessState{Kind: Blocked}
	t.blocked = append(t.blocked, p)
	t.blockedMu.Unlock()
}

// UnblockProcessByPid moves the matching process out of the blocked queue
// and migrates it to a ready hart. It returns the target hart, or -1 if
// no blocked process with that PID was found.
func (t *Tables_t) UnblockProcessByPid(pid uint64) int {
	t.blockedMu.Lock()
	var found *Process
	for i, p := range t.blocked {
		if p.Pid == pid {
			found = p
			t.blocked = append(t.blocked[:i], t.blocked[i+1:]...)
			break
		}
	}
	t.blockedMu.Unlock()
	if found == nil {
		return -1
	}
	return t.Migrate(found, -1)
}

// PutProcessToSleep moves the running process into the global sleeping
// queue with the given absolute mtime deadline.
func (t *Tables_t) PutProcessToSleep(p *Process, until uint64) {
	t.sleepingMu.Lock()
	p.State = ProcessState{Kind: Sleeping, Until: until}
	t.sleeping = append(t.sleeping, p)
	t.sleepingMu.Unlock()
}

// TryWakeSleeping moves every sleeper whose deadline has passed back to
// Ready on a migrated hart. It returns the set of harts that received new
// work, so callers can raise their software interrupts.
func (t *Tables_t) TryWakeSleeping(mtime uint64) []int {
	t.sleepingMu.Lock()
	var woken []*Process
	remaining := t.sleeping[:0]
	for _, p := range t.sleeping {
		if p.State.Until <= mtime {
			woken = append(woken, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	t.sleeping = remaining
	t.sleepingMu.Unlock()

	var harts []int
	for _, p := range woken {
		harts = append(harts, t.Migrate(p, -1))
	}
	return harts
}

// DeleteRunningProcess drops the process currently running on hart,
// returning its frames to pager and removing it from the PID registry.
// If it has a blocker (another process joined on it), that blocker is
// unblocked first. It returns the unblocked hart, if any, or -1.
func (t *Tables_t) DeleteRunningProcess(hart int, pager mem.Page_i) int {
	h := t.Harts[hart]
	h.Mu.Lock()
	p := h.Running
	h.Running = nil
	h.Mu.Unlock()
	if p == nil {
		panic("proc: delete of no running process")
	}

	woken := -1
	if blocker, ok := t.Blocker(p.Pid); ok && blocker >= 0 {
		woken = t.UnblockProcessByPid(uint64(blocker))
	}
	t.unregisterPid(p.Pid)
	p.Drop(pager)
	return woken
}

// YieldRunning moves the process running on hart back to Ready, migrating
// it per policy, and clears the hart's running slot. It returns the
// target hart.
func (t *Tables_t) YieldRunning(hart int) int {
	h := t.Harts[hart]
	h.Mu.Lock()
	p := h.Running
	h.Running = nil
	h.Mu.Unlock()
	if p == nil {
		panic("proc: yield of no running process")
	}
	return t.Migrate(p, hart)
}

// PopLocalReady pops hart's own ready queue for the scheduler, returning
// nil if empty.
func (t *Tables_t) PopLocalReady(hart int) *Process {
	h := t.Harts[hart]
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return popReady(h)
}

// SetRunning installs p in hart's running slot.
func (t *Tables_t) SetRunning(hart int, p *Process) {
	h := t.Harts[hart]
	h.Mu.Lock()
	p.State = ProcessState{Kind: Running, Hart: hart}
	p.ScheduledAt = p.Accnt.Now()
	h.Running = p
	h.Mu.Unlock()
}

// ReadyLen reports hart's ready-queue depth, for tests and diagnostics
// (S6's imbalance property).
func (t *Tables_t) ReadyLen(hart int) int {
	h := t.Harts[hart]
	h.Mu.Lock()
	defer h.Mu.Unlock()
	return len(h.Ready)
}

// LiveCount returns the number of live non-idle PIDs registered, for
// Invariant 1/3's end-to-end checks.
func (t *Tables_t) LiveCount() int {
	t.pidMu.Lock()
	defer t.pidMu.Unlock()
	return len(t.pidOrder)
}
