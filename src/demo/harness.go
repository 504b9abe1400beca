// Package demo provides the scenario fixtures (dining philosophers and
// the console greeter) that exercise sched.Kernel_t end to end, grounded
// on original_source/src/app's
// philosopher.rs and input_example.rs. There is no RISC-V instruction
// interpreter (user-mode ELF loading is an explicit non-goal), so a
// "process" here is a Go goroutine that issues syscalls through Syscalls
// instead of executing fetched machine code; a role's entry argument to
// create_thread selects a registered closure rather than a program
// counter, and Harness stages print_str/read_line payloads through a
// small scratch buffer in the simulated arena.
package demo

import (
	"runtime"
	"sync"

	"cpu"
	"mem"
	"proc"
	"sched"
)

// request is one syscall a user goroutine wants the kernel to perform.
type request struct {
	sysno   uint64
	args    [4]uint64
	text    string
	lineCap int
	exit    bool
}

// result is what a completed syscall hands back to the role closure.
type result struct {
	ret  uint64
	line string
}

// procChan is the harness's side of one running process: the channel
// pair used to hand control back and forth with its goroutine.
type procChan struct {
	toUser   chan result
	fromUser chan request
}

// Syscalls is the handle a role closure uses to make kernel calls. Every
// call blocks until the harness has driven it through sched.Kernel_t and
// produced a result, mirroring a real ecall's synchronous return.
type Syscalls struct {
	p *procChan
}

func (s *Syscalls) call(req request) result {
	s.p.fromUser <- req
	return <-s.p.toUser
}

// Exit ends this process; the goroutine returns shortly after.
func (s *Syscalls) Exit() {
	s.p.fromUser <- request{sysno: sched.SysExit, exit: true}
}

// CreateThread spawns a process running the given role with arguments
// a0..a2, returning its PID.
func (s *Syscalls) CreateThread(role, a0, a1, a2 uint64) uint64 {
	return s.call(request{sysno: sched.SysCreateThread, args: [4]uint64{role, a0, a1, a2}}).ret
}

// Join blocks until pid exits.
func (s *Syscalls) Join(pid uint64) uint64 {
	return s.call(request{sysno: sched.SysJoin, args: [4]uint64{pid, 0, 0, 0}}).ret
}

// Sleep blocks for the given number of simulated mtime ticks.
func (s *Syscalls) Sleep(ticks uint64) {
	s.call(request{sysno: sched.SysSleep, args: [4]uint64{ticks, 0, 0, 0}})
}

// TimeNow returns the current simulated mtime.
func (s *Syscalls) TimeNow() uint64 {
	return s.call(request{sysno: sched.SysTimeNow}).ret
}

// PrintStr writes msg to the kernel console.
func (s *Syscalls) PrintStr(msg string) {
	s.call(request{sysno: sched.SysPrintStr, text: msg})
}

// ReadLine blocks until a newline completes at the console, retaining up
// to cap bytes, and returns the typed line without its newline.
func (s *Syscalls) ReadLine(cap int) string {
	return s.call(request{sysno: sched.SysReadLine, lineCap: cap}).line
}

// Role is a user-mode entry point: a goroutine body driven entirely
// through Syscalls. a0..a2 are the arguments passed to create_thread.
type Role func(sys *Syscalls, a0, a1, a2 uint64)

// waiter records a blocked syscall's bookkeeping, needed to synthesize
// its result once the process is scheduled running again.
type waiter struct {
	sysno   uint64
	bufVA   mem.Pa_t
	lineCap int
}

// Harness drives a sched.Kernel_t through a scripted workload: it plays
// the part of both "hardware" (feeding trap events) and "userland"
// (running role goroutines), one syscall round-trip at a time.
type Harness struct {
	K     *sched.Kernel_t
	roles map[uint64]Role

	mu    sync.Mutex
	procs map[uint64]*procChan
	wait  map[uint64]waiter

	scratch mem.Pa_t
}

const scratchPages = 1
const printScratchOff = 0
const lineScratchOff = mem.PGSIZE / 2

// NewHarness carves a scratch page from the kernel's pager for staging
// print_str/read_line payloads.
func NewHarness(k *sched.Kernel_t) *Harness {
	base, ok := k.Pager.Zalloc(scratchPages)
	if !ok {
		panic("demo: out of pages for syscall staging scratch")
	}
	return &Harness{
		K:       k,
		roles:   make(map[uint64]Role),
		procs:   make(map[uint64]*procChan),
		wait:    make(map[uint64]waiter),
		scratch: base,
	}
}

// Register associates a role ID with the closure create_thread calls
// naming it should run.
func (h *Harness) Register(role uint64, fn Role) {
	h.roles[role] = fn
}

// SpawnInitial starts a top-level process running role, outside of any
// create_thread call.
func (h *Harness) SpawnInitial(role, a0, a1, a2 uint64) uint64 {
	p := h.K.Spawn(role, a0, a1, a2, -1)
	h.start(p.Pid, role, a0, a1, a2)
	return p.Pid
}

func (h *Harness) start(pid, role, a0, a1, a2 uint64) {
	fn, ok := h.roles[role]
	if !ok {
		panic("demo: unregistered role")
	}
	pr := &procChan{toUser: make(chan result), fromUser: make(chan request)}
	h.mu.Lock()
	h.procs[pid] = pr
	h.mu.Unlock()
	go func() {
		sys := &Syscalls{p: pr}
		fn(sys, a0, a1, a2)
	}()
}

// Live reports how many role goroutines have not yet exited.
func (h *Harness) Live() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.procs)
}

func (h *Harness) lookupProc(pid uint64) (*procChan, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.procs[pid]
	return p, ok
}

func (h *Harness) dropProc(pid uint64) {
	h.mu.Lock()
	delete(h.procs, pid)
	h.mu.Unlock()
}

func (h *Harness) takeWait(pid uint64) (waiter, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.wait[pid]
	if ok {
		delete(h.wait, pid)
	}
	return w, ok
}

func (h *Harness) setWait(pid uint64, w waiter) {
	h.mu.Lock()
	h.wait[pid] = w
	h.mu.Unlock()
}

// Run drives every hart concurrently, one goroutine apiece, until every
// tracked process has exited. Each hart's own goroutine is the only
// caller of HandleTrap for that hart — software/timer/external pending
// bits are polled and serviced locally rather than injected cross-hart,
// so two goroutines never race to trap the same hart. A separate
// timekeeper goroutine only advances the shared clock and wakes
// sleepers, both already synchronized by clint/proc's own locks.
//
// Real parallelism across these goroutines is what lets spin-mutex
// contention between diner goroutines (see philosopher.go) actually
// resolve, the same way real hart parallelism would; a single-threaded
// stepper could deadlock on that lock contention, since Step blocks until
// the running process issues its next syscall.
func (h *Harness) Run(tick uint64) {
	var wg sync.WaitGroup
	for hart := 0; hart < h.K.Tun.NHarts; hart++ {
		wg.Add(1)
		go func(hart int) {
			defer wg.Done()
			for h.Live() > 0 {
				switch {
				case h.K.Clint.SoftwarePending(hart):
					h.K.HandleTrap(hart, true, sched.CauseSoftware, 0)
				case h.K.Clint.TimerPending(hart):
					h.K.HandleTrap(hart, true, sched.CauseTimer, 0)
				case h.K.Plic.Pending(hart):
					h.K.HandleTrap(hart, true, sched.CauseExternal, 0)
				case !h.Step(hart):
					runtime.Gosched()
				}
			}
		}(hart)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for h.Live() > 0 {
			h.TickTimer(tick)
			runtime.Gosched()
		}
	}()
	wg.Wait()
}

// Step advances whichever process is Running on hart by one syscall
// round-trip. It returns false if hart has no tracked user process
// running (idle, or a process this harness does not know about).
func (h *Harness) Step(hart int) bool {
	hs := h.K.Tables.Harts[hart]
	hs.Mu.Lock()
	running := hs.Running
	hs.Mu.Unlock()
	if running == nil || running.Pid == proc.IdlePid {
		return false
	}
	pr, ok := h.lookupProc(running.Pid)
	if !ok {
		return false
	}

	if w, pending := h.takeWait(running.Pid); pending {
		pr.toUser <- h.resultFor(w, running)
	}

	req := <-pr.fromUser
	if req.exit {
		running.TF.Regs[cpu.A7] = sched.SysExit
		h.K.HandleTrap(hart, false, sched.CauseEcall, 0)
		h.dropProc(running.Pid)
		return true
	}

	switch req.sysno {
	case sched.SysPrintStr:
		buf := h.K.Pager.Bytes(h.scratch+printScratchOff, len(req.text))
		copy(buf, req.text)
		running.TF.Regs[cpu.A7] = req.sysno
		running.TF.SetArg(0, uint64(h.scratch)+printScratchOff)
		running.TF.SetArg(1, uint64(len(req.text)))
		h.K.HandleTrap(hart, false, sched.CauseEcall, 0)
		pr.toUser <- result{}
	case sched.SysReadLine:
		va := h.scratch + mem.Pa_t(lineScratchOff)
		running.TF.Regs[cpu.A7] = req.sysno
		running.TF.SetArg(0, uint64(va))
		running.TF.SetArg(1, uint64(req.lineCap))
		h.K.HandleTrap(hart, false, sched.CauseEcall, 0)
		h.setWait(running.Pid, waiter{sysno: req.sysno, bufVA: va, lineCap: req.lineCap})
	case sched.SysJoin, sched.SysSleep:
		running.TF.Regs[cpu.A7] = req.sysno
		for i, a := range req.args {
			running.TF.SetArg(i, a)
		}
		h.K.HandleTrap(hart, false, sched.CauseEcall, 0)
		h.setWait(running.Pid, waiter{sysno: req.sysno})
	default: // create_thread, time_now: synchronous, no blocking
		running.TF.Regs[cpu.A7] = req.sysno
		for i, a := range req.args {
			running.TF.SetArg(i, a)
		}
		h.K.HandleTrap(hart, false, sched.CauseEcall, 0)
		ret := running.TF.Arg(0)
		if req.sysno == sched.SysCreateThread {
			h.start(ret, req.args[0], req.args[1], req.args[2], req.args[3])
		}
		pr.toUser <- result{ret: ret}
	}
	return true
}

func (h *Harness) resultFor(w waiter, p *proc.Process) result {
	switch w.sysno {
	case sched.SysReadLine:
		n := int(p.TF.Arg(0))
		buf := h.K.Pager.Bytes(w.bufVA, n)
		return result{line: string(buf)}
	default:
		return result{}
	}
}

// DeliverConsole simulates a line typed at the console: it waits for a
// process to actually be blocked in read_line (a newline arriving with no
// reader is discarded, same as a real line discipline with nobody
// foregrounded), then enqueues data+"\n" on the kernel's UART and waits
// for it to drain. The actual PLIC claim/complete happens on whichever
// hart's own Run loop next observes Plic.Pending — DeliverConsole never
// traps a hart it does not own, to avoid racing that hart's dedicated
// goroutine.
func (h *Harness) DeliverConsole(servicingHart int, data string) {
	for !h.K.ReadPending() {
		runtime.Gosched()
	}
	h.K.Console().Deliver([]byte(data + "\n"))
	for h.K.Console().Pending() {
		runtime.Gosched()
	}
}

// TickTimer advances the simulated clock by delta and wakes any sleepers
// whose deadline has passed. It only raises msip for a woken hart and
// leaves the actual timer/software trap to that hart's own Run loop,
// which polls Clint.TimerPending/SoftwarePending itself — TickTimer must
// never call HandleTrap directly on a hart it does not own.
func (h *Harness) TickTimer(delta uint64) {
	mtime, _ := h.K.Clint.Tick(delta)
	for _, hart := range h.K.Tables.TryWakeSleeping(mtime) {
		h.K.Clint.RaiseSoftware(hart)
	}
}
