// Package proc implements the process model and tables of component E:
// Process objects, per-hart running/ready state, the global blocked/
// sleeping queues, and the PID registry. Grounded on
// original_source/src/process.rs's Process/new/Drop and the teacher
// corpus's accnt/stats embedding conventions.
package proc

import (
	"unsafe"

	"accnt"
	"cpu"
	"fault"
	"mem"
	"vm"
)

// IdlePid is the reserved sentinel PID for per-hart idle processes: the
// largest representable value, per Invariant 5.
const IdlePid = ^uint64(0)

// StateKind is the tag of a ProcessState.
type StateKind int

const (
	Ready StateKind = iota
	Running
	Blocked
	Sleeping
)

// ProcessState is the sum type of §3: Ready, Running(hart), Blocked, or
// Sleeping(until_mtime). Hart and Until are only meaningful for the
// matching Kind.
type ProcessState struct {
	Kind  StateKind
	Hart  int
	Until uint64
}

func (s ProcessState) String() string {
	switch s.Kind {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Sleeping:
		return "sleeping"
	default:
		return "?"
	}
}

// Sections describes the identity-mapped kernel regions consumed from the
// (out of scope) linker script: start/end of TEXT, RODATA, DATA, BSS, and
// the HEAP area the page allocator draws from.
type Sections struct {
	TextStart, TextEnd         uint64
	RodataStart, RodataEnd     uint64
	DataStart, DataEnd         uint64
	BssStart, BssEnd           uint64
	HeapStart, HeapEnd         uint64
}

// stackPages is the fixed stack size new processes receive: 12 pages.
const stackPages = 12

// Process is a single schedulable unit: its trap frame (which lives at the
// top of its own stack, per the ABI), its root page table, and its
// scheduling/accounting state.
type Process struct {
	TF           *cpu.TrapFrame
	StackBase    mem.Pa_t
	State        ProcessState
	PageTable    *vm.Table_t
	Quantum      uint64
	Pid          uint64
	BlockingPid  int64 // set to -1 at construction and not updated; joiners are recorded in the PID registry (Tables_t.SetBlocker)
	SleepUntil   uint64
	PreviousHart int
	Accnt        *accnt.Accnt_t
	ScheduledAt  int64 // Accnt.Now() at the moment this process was last installed Running
}

// New builds a fresh user process per §4.E's construction steps 1-6:
// allocates a PID and root page table, allocates and identity-maps a
// 12-page stack R/W for user, identity-maps every linker section (TEXT
// R/X, the rest R/W, all for user), and builds a trap frame at the top of
// the stack with pc=start, a0..a2 set, satp built for this PID, user mode,
// and global interrupts initially disabled (trap return re-enables them
// via the saved mstatus.MPIE bit).
func New(pager mem.Page_i, pid uint64, start, a0, a1, a2 uint64, sec Sections, hart int, quantum uint64) *Process {
	table, err := vm.New(pager)
	if err != nil {
		panic(&fault.Fault{Cause: fault.AllocExhausted, Hart: hart, Mtval: start})
	}

	stackBase, ok := pager.Zalloc(stackPages)
	if !ok {
		panic(&fault.Fault{Cause: fault.AllocExhausted, Hart: hart, Mtval: uint64(stackPages)})
	}
	stackTop := uint64(stackBase) + uint64(stackPages*mem.PGSIZE)

	for va := uint64(stackBase); va < stackTop; va += uint64(mem.PGSIZE) {
		table.Map(va, mem.Pa_t(va), vm.UserReadWrite, 0)
	}
	mapSection(table, sec.TextStart, sec.TextEnd, vm.UserReadExec)
	mapSection(table, sec.RodataStart, sec.RodataEnd, vm.UserReadWrite)
	mapSection(table, sec.DataStart, sec.DataEnd, vm.UserReadWrite)
	mapSection(table, sec.BssStart, sec.BssEnd, vm.UserReadWrite)
	mapSection(table, sec.HeapStart, sec.HeapEnd, vm.UserReadWrite)

	tfOff := stackTop - uint64(unsafe.Sizeof(cpu.TrapFrame{}))
	tfBytes := pager.Bytes(mem.Pa_t(tfOff), int(unsafe.Sizeof(cpu.TrapFrame{})))
	tf := (*cpu.TrapFrame)(unsafe.Pointer(&tfBytes[0]))
	*tf = cpu.TrapFrame{}
	tf.Pc = start
	tf.SetArg(0, a0)
	tf.SetArg(1, a1)
	tf.SetArg(2, a2)
	tf.Satp = cpu.BuildSatp(pid, uint64(table.Root()))
	tf.Mode = uint64(cpu.ModeUser)
	tf.Gie = 0

	return &Process{
		TF:           tf,
		StackBase:    stackBase,
		State:        ProcessState{Kind: Ready},
		PageTable:    table,
		Quantum:      quantum,
		Pid:          pid,
		BlockingPid:  -1,
		PreviousHart: hart,
		Accnt:        &accnt.Accnt_t{},
	}
}

func mapSection(table *vm.Table_t, start, end uint64, flags vm.Pte_t) {
	for va := start; va < end; va += uint64(mem.PGSIZE) {
		table.Map(va, mem.Pa_t(va), flags, 0)
	}
}

// NewIdle builds a hart's idle process: machine mode, its own small
// stack, pc set to the idle loop entry, and the reserved idle PID. Idle
// processes are per-hart singletons and are never enqueued (Invariant 5).
func NewIdle(pager mem.Page_i, idleFn uint64, hart int) *Process {
	stackBase, ok := pager.Zalloc(1)
	if !ok {
		panic(&fault.Fault{Cause: fault.AllocExhausted, Hart: hart, Mtval: 1})
	}
	stackTop := uint64(stackBase) + uint64(mem.PGSIZE)
	tfOff := stackTop - uint64(unsafe.Sizeof(cpu.TrapFrame{}))
	tfBytes := pager.Bytes(mem.Pa_t(tfOff), int(unsafe.Sizeof(cpu.TrapFrame{})))
	tf := (*cpu.TrapFrame)(unsafe.Pointer(&tfBytes[0]))
	*tf = cpu.TrapFrame{}
	tf.Pc = idleFn
	tf.Mode = uint64(cpu.ModeMachine)
	tf.Gie = 1

	return &Process{
		TF:           tf,
		StackBase:    stackBase,
		State:        ProcessState{Kind: Running, Hart: hart},
		Quantum:      0,
		Pid:          IdlePid,
		BlockingPid:  -1,
		PreviousHart: hart,
		Accnt:        &accnt.Accnt_t{},
	}
}

// Drop returns every frame this process owns back to pager: its stack and
// every frame reachable from its page table (Invariant 6: nothing is
// freed until the owning process exits).
func (p *Process) Drop(pager mem.Page_i) {
	if p.Pid == IdlePid {
		return
	}
	if err := pager.Dealloc(p.StackBase); err != nil {
		panic(&fault.Fault{Cause: fault.BadUnmap, Hart: -1, Mtval: uint64(p.StackBase)})
	}
	p.PageTable.Unmap()
	if err := pager.Dealloc(p.PageTable.Root()); err != nil {
		panic(&fault.Fault{Cause: fault.BadUnmap, Hart: -1, Mtval: uint64(p.PageTable.Root())})
	}
}
