package sched

import (
	"fault"
	"proc"
)

// mcause codes, matching §4.F's taxonomy exactly. Async codes only use
// the low bits here since Kernel_t.HandleTrap takes the async flag
// separately rather than packing it into the interrupt bit of a real
// mcause CSR.
const (
	CauseSoftware = 3
	CauseTimer    = 7
	CauseExternal = 11
	CauseEcall    = 8
)

// HandleTrap dispatches one trap per §4.F: async on the timer/software/
// external codes, sync (ecall) through the syscall table. It is called
// once per trap taken on hart, with mcause/mtval as the hardware (or the
// entry stub standing in for it) would report them.
//
// Around the dispatch, it credits the process that was running on hart
// with the user time it spent since it was last scheduled in, and with
// the system time spent handling this trap, per §3's accounting
// expansion: Utadd for the quantum just spent, Finish (Systadd) for the
// trap-handling interval itself.
func (k *Kernel_t) HandleTrap(hart int, async bool, mcause, mtval uint64) {
	defer k.recoverFault(hart)

	p := k.creditUserTime(hart)
	if p != nil {
		trapStart := p.Accnt.Now()
		defer p.Accnt.Finish(trapStart)
	}

	if async {
		k.handleAsync(hart, mcause)
		return
	}
	if mcause != CauseEcall {
		k.Fatal(&fault.Fault{Cause: fault.UnknownTrap, Hart: hart, Mtval: mcause})
		return
	}
	k.Stats.Syscalls.Inc()
	k.handleSyscall(hart)
}

// recoverFault catches a *fault.Fault panic raised by mem/vm/proc while
// servicing this trap (allocator exhaustion, double free, a bad unmap) and
// routes it through Fatal so every fault, regardless of which layer
// detected it, gets the same Callerdump-backed diagnostic. Anything else
// that unwinds through here is a programmer error, not a modeled fault, and
// is re-raised unchanged.
func (k *Kernel_t) recoverFault(hart int) {
	r := recover()
	if r == nil {
		return
	}
	f, ok := r.(*fault.Fault)
	if !ok {
		panic(r)
	}
	f.Hart = hart
	k.Fatal(f)
}

// creditUserTime adds the wall-clock time since hart's current Running
// process was installed there to its user-time counter, and returns that
// process (nil for an idle hart, which has nothing to account).
func (k *Kernel_t) creditUserTime(hart int) *proc.Process {
	hs := k.Tables.Harts[hart]
	hs.Mu.Lock()
	p := hs.Running
	hs.Mu.Unlock()
	if p == nil || p.Pid == proc.IdlePid {
		return nil
	}
	p.Accnt.Utadd(p.Accnt.Now() - p.ScheduledAt)
	return p
}

func (k *Kernel_t) handleAsync(hart int, mcause uint64) {
	switch mcause {
	case CauseSoftware:
		k.Stats.SoftwareIrqs.Inc()
		k.Clint.ClearSoftware(hart)
		// A softint only ever means "something became runnable somewhere"
		// (create_thread, exit's join-wake, sleep-wake, console byte). It
		// is never a promise that this hart is idle: Spawn/Migrate/the
		// console handler raise a hart's softint without checking what
		// it is currently running. Rescheduling here unconditionally
		// would clobber a busy hart's Running process (never
		// re-enqueued, permanently lost), violating invariant 1. Only
		// reschedule if the hart is actually parked in its idle stub.
		hs := k.Tables.Harts[hart]
		hs.Mu.Lock()
		idle := hs.Running == nil || hs.Running.Pid == proc.IdlePid
		hs.Mu.Unlock()
		if idle {
			k.Schedule(hart)
		}
	case CauseTimer:
		k.Stats.TimerIrqs.Inc()
		k.preempt(hart)
	case CauseExternal:
		k.Stats.ExternalIrqs.Inc()
		if src, ok := k.Plic.Claim(hart); ok {
			k.Plic.Complete(hart, src)
		}
	default:
		k.Fatal(&fault.Fault{Cause: fault.UnknownTrap, Hart: hart, Mtval: mcause})
	}
}

// preempt is the quantum-expiry path: the running process's remaining
// quantum is spent, so it goes back to Ready (migrated per policy) and
// the hart picks its next process. With preemption disabled, a running
// process keeps the hart and its timer is disarmed instead.
func (k *Kernel_t) preempt(hart int) {
	hs := k.Tables.Harts[hart]
	hs.Mu.Lock()
	running := hs.Running
	hs.Mu.Unlock()
	if running == nil || running.Pid == proc.IdlePid {
		k.Schedule(hart)
		return
	}
	if !k.Tun.EnablePreemption {
		k.Clint.SetTimer(hart, ^uint64(0))
		return
	}
	target := k.Tables.YieldRunning(hart)
	if target != hart {
		k.Stats.Migrations.Inc()
		k.Clint.RaiseSoftware(target)
	}
	k.Schedule(hart)
}
