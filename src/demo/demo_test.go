package demo

import (
	"testing"
	"time"

	"limits"
	"mem"
	"proc"
	"sched"
)

func newTestHarness(t *testing.T, nHarts int) *Harness {
	t.Helper()
	tun := limits.NewTunables()
	tun.NHarts = nHarts
	pager := mem.NewAllocator(16 << 20)
	heap := mem.NewKheap(pager)
	k := sched.NewKernel(tun, pager, heap, proc.Sections{})
	k.Boot(0)
	return NewHarness(k)
}

// runWithDeadline runs fn in its own goroutine and fails the test if it
// has not returned within d, so a regression that deadlocks the harness
// fails fast instead of hanging the test suite.
func runWithDeadline(t *testing.T, d time.Duration, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("harness did not finish within the deadline")
	}
}

func TestPhilosophersDinnerCompletes(t *testing.T) {
	h := newTestHarness(t, 4)
	RegisterPhilosophers(h)
	RunPhilosophers(h)

	runWithDeadline(t, 10*time.Second, func() {
		h.Run(1)
	})

	if h.Live() != 0 {
		t.Fatalf("expected every philosopher to have exited, %d still live", h.Live())
	}
}

func TestGreeterReadsTwoLinesAndSleeps(t *testing.T) {
	h := newTestHarness(t, 2)
	RegisterGreeter(h)
	RunGreeter(h)

	go func() {
		h.DeliverConsole(0, "Ada")
		h.DeliverConsole(0, "1990")
	}()

	runWithDeadline(t, 10*time.Second, func() {
		h.Run(1)
	})

	if h.Live() != 0 {
		t.Fatalf("expected the greeter to have exited, %d still live", h.Live())
	}
}
