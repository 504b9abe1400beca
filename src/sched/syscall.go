package sched

import (
	"fmt"

	"cpu"
	"fault"
	"mem"
	"proc"
)

// Syscall numbers, carried in A7 per the standard RISC-V calling
// convention; arguments follow in A0..A3.
const (
	SysExit         = 0
	SysCreateThread = 1
	SysJoin         = 2
	SysSleep        = 3
	SysReadLine     = 4
	SysPrintStr     = 5
	SysTimeNow      = 6
)

// syscallNo is the register a process's ecall carries its syscall number
// in.
const syscallNo = cpu.A7

// syscallFn handles one syscall for the process currently running on
// hart. It returns whether the hart now needs a fresh Schedule call
// because the running process is no longer runnable.
type syscallFn func(k *Kernel_t, hart int, p *proc.Process) bool

var syscallTable = map[uint64]syscallFn{
	SysExit:         (*Kernel_t).sysExit,
	SysCreateThread: (*Kernel_t).sysCreateThread,
	SysJoin:         (*Kernel_t).sysJoin,
	SysSleep:        (*Kernel_t).sysSleep,
	SysReadLine:     (*Kernel_t).sysReadLine,
	SysPrintStr:     (*Kernel_t).sysPrintStr,
	SysTimeNow:      (*Kernel_t).sysTimeNow,
}

func (k *Kernel_t) handleSyscall(hart int) {
	hs := k.Tables.Harts[hart]
	hs.Mu.Lock()
	p := hs.Running
	hs.Mu.Unlock()
	if p == nil {
		k.Fatal(&fault.Fault{Cause: fault.UnknownSyscall, Hart: hart})
		return
	}

	no := p.TF.Regs[syscallNo]
	fn, ok := syscallTable[no]
	if !ok {
		k.Fatal(&fault.Fault{Cause: fault.UnknownSyscall, Hart: hart, Mtval: no})
		return
	}
	if fn(k, hart, p) {
		k.Schedule(hart)
	}
}

// sysExit drops the calling process and unblocks any joiner (Invariant
// 2), then always needs a reschedule.
func (k *Kernel_t) sysExit(hart int, p *proc.Process) bool {
	if woken := k.Tables.DeleteRunningProcess(hart, k.Pager); woken >= 0 {
		k.Clint.RaiseSoftware(woken)
	}
	return true
}

// sysCreateThread spawns a new process at entry with up to three
// arguments, per §4.F: A0=entry, A1..A3=args. It returns the new PID in
// A0 and never blocks the caller.
func (k *Kernel_t) sysCreateThread(hart int, p *proc.Process) bool {
	entry := p.TF.Arg(0)
	a0 := p.TF.Arg(1)
	a1 := p.TF.Arg(2)
	a2 := p.TF.Arg(3)
	child := k.Spawn(entry, a0, a1, a2, hart)
	p.TF.SetArg(0, child.Pid)
	return false
}

// sysJoin blocks the caller on target's exit, or returns immediately if
// target has already exited.
func (k *Kernel_t) sysJoin(hart int, p *proc.Process) bool {
	target := p.TF.Arg(0)
	if !k.Tables.PidListContains(target) {
		p.TF.SetArg(0, 0)
		return false
	}
	k.Tables.SetBlocker(target, int64(p.Pid))
	k.Tables.BlockProcess(p)
	return true
}

// sysSleep puts the caller to sleep for the given number of mtime ticks.
// With preemption disabled it busy-waits on mtime instead, keeping the
// caller running.
func (k *Kernel_t) sysSleep(hart int, p *proc.Process) bool {
	ticks := p.TF.Arg(0)
	until := k.Clint.Mtime() + ticks
	if !k.Tun.EnablePreemption {
		for k.Clint.Mtime() < until {
		}
		return false
	}
	k.Tables.PutProcessToSleep(p, until)
	return true
}

// sysReadLine blocks the caller until a newline completes the console
// line buffer, then copies up to A1 bytes into the buffer at A0.
func (k *Kernel_t) sysReadLine(hart int, p *proc.Process) bool {
	k.consoleMu.Lock()
	if k.readWait != nil {
		k.consoleMu.Unlock()
		k.Fatal(&fault.Fault{Cause: fault.UnknownSyscall, Hart: hart, Mtval: p.Pid})
		return true
	}
	k.readWait = &readWaiter{proc: p, bufVA: p.TF.Arg(0), cap: p.TF.Arg(1)}
	k.consoleMu.Unlock()
	k.Tables.BlockProcess(p)
	return true
}

// sysPrintStr writes A1 bytes starting at physical address A0 to the
// kernel console, under the kernel-wide print lock, and never blocks.
func (k *Kernel_t) sysPrintStr(hart int, p *proc.Process) bool {
	va := p.TF.Arg(0)
	n := p.TF.Arg(1)
	buf := k.Pager.Bytes(mem.Pa_t(va), int(n))

	k.printMu.Lock()
	fmt.Print(string(buf))
	k.printMu.Unlock()

	p.TF.SetArg(0, n)
	return false
}

// sysTimeNow returns the current simulated mtime in A0.
func (k *Kernel_t) sysTimeNow(hart int, p *proc.Process) bool {
	p.TF.SetArg(0, k.Clint.Mtime())
	return false
}
