// Package sched implements component F: the preemptive round-robin
// scheduler, the trap dispatcher, and the syscall table. It ties
// together proc's tables, clint's timer/software-interrupt registers,
// plic's external-interrupt claim/complete, and mem's allocator/heap
// into the single Kernel_t a hart's trap loop drives.
package sched

import (
	"fmt"

	"caller"
	"clint"
	"fault"
	"lock"
	"mem"
	"plic"
	"proc"
	"stats"

	"limits"
)

// Kernel_t is the shared state every hart's trap loop operates on.
type Kernel_t struct {
	Tables *proc.Tables_t
	Clint  *clint.Controller
	Plic   *plic.Controller
	Pager  mem.Page_i
	Heap   *mem.Kheap_t
	Tun    *limits.Tunables_t
	Stats  stats.Counters_t

	printMu lock.Spinlock_t

	sections  proc.Sections
	consoleMu lock.Spinlock_t // guards readWait, set by sysReadLine, cleared by onByte
	readWait  *readWaiter
	line      *lineBuffer
	console   *plic.FakeUART
}

// readWaiter is the one outstanding read_line call the console can be
// servicing at a time, per §4.F.
type readWaiter struct {
	proc  *proc.Process
	bufVA uint64
	cap   uint64
}

// consoleSource is the index this kernel's single external interrupt
// source (the console UART) is registered at.
const consoleSource = 0

// NewKernel wires a Kernel_t together, including a simulated console
// UART as the sole PLIC source, enabled on every hart at priority 1.
func NewKernel(tun *limits.Tunables_t, pager mem.Page_i, heap *mem.Kheap_t, sections proc.Sections) *Kernel_t {
	k := &Kernel_t{
		Tables:   proc.NewTables(tun),
		Clint:    clint.New(tun.NHarts),
		Pager:    pager,
		Heap:     heap,
		Tun:      tun,
		sections: sections,
		line:     newLineBuffer(256),
	}
	k.console = plic.NewFakeUART(func(b byte) { k.onByte(b) })
	k.Plic = plic.New([]plic.Source{k.console}, tun.NHarts)
	k.Plic.SetPriority(consoleSource, 1)
	for h := 0; h < tun.NHarts; h++ {
		k.Plic.SetEnabled(consoleSource, h, true)
	}
	return k
}

// Console returns the simulated UART, for tests and demos to type input
// at.
func (k *Kernel_t) Console() *plic.FakeUART {
	return k.console
}

// ReadPending reports whether a process is currently blocked in
// sysReadLine, waiting on the console. Callers scripting console input
// (see demo.Harness.DeliverConsole) should wait for this before typing,
// or a newline arriving with no reader drains and discards the line.
func (k *Kernel_t) ReadPending() bool {
	k.consoleMu.Lock()
	defer k.consoleMu.Unlock()
	return k.readWait != nil
}

// Boot builds each hart's idle stub and installs it as that hart's
// initial running process, matching real tongOS's per-hart idle-at-reset
// convention.
func (k *Kernel_t) Boot(idleFn uint64) {
	for h := 0; h < k.Tun.NHarts; h++ {
		idle := proc.NewIdle(k.Pager, idleFn, h)
		hs := k.Tables.Harts[h]
		hs.Mu.Lock()
		hs.Idle = idle
		hs.Running = idle
		hs.Mu.Unlock()
	}
}

// Spawn creates a fresh process at entry with arguments a0..a2, placing
// it on the hart chosen by the migration policy, and returns it. It is
// used both for the initial workload processes and by the create_thread
// syscall handler.
func (k *Kernel_t) Spawn(entry, a0, a1, a2 uint64, preferredHart int) *proc.Process {
	pid := k.Tables.FreshPid()
	hart := k.Tables.PickHart(preferredHart)
	p := proc.New(k.Pager, pid, entry, a0, a1, a2, k.sections, hart, k.Tun.DefaultQuantum)
	k.Tables.ProcessListAdd(p, hart)
	k.Clint.RaiseSoftware(hart)
	return p
}

// Schedule installs the next runnable process on hart: its own ready
// queue first, falling back to its idle stub, and arms the timer either
// way: a full quantum for a process, a single tick for the idle stub.
func (k *Kernel_t) Schedule(hart int) {
	next := k.Tables.PopLocalReady(hart)
	if next == nil {
		next = k.Tables.Harts[hart].Idle
		k.Tables.SetRunning(hart, next)
		k.Clint.SetTimer(hart, k.Clint.Mtime()+k.Tun.ContextSwitchTime)
		return
	}
	k.Tables.SetRunning(hart, next)
	k.Stats.ContextSwitches.Inc()
	deadline := k.Clint.Mtime() + next.Quantum*k.Tun.ContextSwitchTime
	k.Clint.SetTimer(hart, deadline)
}

// Fatal reports a Fault with a call-stack dump and panics, the Go
// analogue of the teacher's panic-and-park-in-wfi fatal path.
func (k *Kernel_t) Fatal(f *fault.Fault) {
	trace := caller.Callerdump(2)
	panic(fmt.Sprintf("tongos: fatal on hart %d: %s (mtval=%#x)\n%s", f.Hart, f.Cause, f.Mtval, trace))
}
