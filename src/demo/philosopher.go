package demo

import (
	"fmt"
	"sync"

	"lock"
)

// Philosopher scenario roles, grounded on original_source/src/app/
// philosopher.rs: NUM_PHILOSOPHERS threads share NUM_PHILOSOPHERS
// chopsticks guarded by spin mutexes, each picking up its left and right
// chopstick before eating.
const (
	RolePhilosopherMain = 100
	RolePhilosopherDiner = 101
)

const (
	philosopherCount = 5
	philosopherIters  = 3
)

// philosopherTable is the shared state create_thread's raw-pointer
// argument would reference in the original; here it is an ordinary Go
// value every diner goroutine closes over, since all processes in this
// simulation already share one address space (identity-mapped
// sections), matching the original's single flat memory model.
type philosopherTable struct {
	print      lock.Spinlock_t
	chopsticks [philosopherCount]lock.Spinlock_t
}

var philosopherTables sync.Map // harness-scoped table registry, keyed by a synthetic handle

var philosopherHandleSeq uint64
var philosopherHandleMu sync.Mutex

func newPhilosopherHandle(t *philosopherTable) uint64 {
	philosopherHandleMu.Lock()
	philosopherHandleSeq++
	h := philosopherHandleSeq
	philosopherHandleMu.Unlock()
	philosopherTables.Store(h, t)
	return h
}

func lookupPhilosopherTable(h uint64) *philosopherTable {
	v, ok := philosopherTables.Load(h)
	if !ok {
		panic("demo: unknown philosopher table handle")
	}
	return v.(*philosopherTable)
}

// RegisterPhilosophers wires the dining-philosophers roles into h.
func RegisterPhilosophers(h *Harness) {
	h.Register(RolePhilosopherMain, philosopherMain)
	h.Register(RolePhilosopherDiner, philosopherDiner)
}

// RunPhilosophers spawns the dinner's main process and returns its PID.
// It does not drive any hart; Harness.Run runs the dinner to completion.
func RunPhilosophers(h *Harness) uint64 {
	return h.SpawnInitial(RolePhilosopherMain, 0, 0, 0)
}

func philosopherMain(sys *Syscalls, _, _, _ uint64) {
	start := sys.TimeNow()
	table := &philosopherTable{}
	handle := newPhilosopherHandle(table)

	sys.PrintStr("The Philosopher's Dinner!")

	var pids [philosopherCount]uint64
	for i := 0; i < philosopherCount; i++ {
		sys.PrintStr(fmt.Sprintf("Creating philosopher: %d", i))
		pids[i] = sys.CreateThread(RolePhilosopherDiner, uint64(i), handle, 0)
	}

	sys.PrintStr("Philosophers are alive and hungry!")
	sys.PrintStr("The dinner is served ...")

	for i := 0; i < philosopherCount; i++ {
		sys.Join(pids[i])
		sys.PrintStr(fmt.Sprintf("Philosopher %d ate %d times!", i, philosopherIters))
	}

	elapsed := sys.TimeNow() - start
	sys.PrintStr(fmt.Sprintf("Finished philosophers dinner! mtime elapsed %d.", elapsed))
	philosopherTables.Delete(handle)
	sys.Exit()
}

func philosopherDiner(sys *Syscalls, n, handle, _ uint64) {
	table := lookupPhilosopherTable(handle)
	first := n
	second := (n + 1) % philosopherCount
	if n == philosopherCount-1 {
		first, second = 0, philosopherCount-1
	}

	for i := philosopherIters; i > 0; i-- {
		table.print.Lock()
		sys.PrintStr(fmt.Sprintf("Philosopher %d is thinking. Iteration=%d", n, i))
		table.print.Unlock()

		sys.Sleep(1)

		table.print.Lock()
		sys.PrintStr(fmt.Sprintf("Philosopher %d is hungry. Iteration=%d", n, i))
		table.print.Unlock()

		table.chopsticks[first].Lock()
		table.chopsticks[second].Lock()

		table.print.Lock()
		sys.PrintStr(fmt.Sprintf("Philosopher %d is eating. Iteration=%d", n, i))
		table.print.Unlock()

		sys.Sleep(1)

		table.print.Lock()
		sys.PrintStr(fmt.Sprintf("Philosopher %d is sated. Iteration=%d", n, i))
		table.print.Unlock()

		table.chopsticks[first].Unlock()
		table.chopsticks[second].Unlock()
	}

	table.print.Lock()
	sys.PrintStr(fmt.Sprintf("Philosopher %d is done!", n))
	table.print.Unlock()
	sys.Exit()
}
