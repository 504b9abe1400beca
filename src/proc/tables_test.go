package proc

import (
	"testing"

	"limits"
	"mem"
)

func newTestTables(nHarts int) *Tables_t {
	tun := limits.NewTunables()
	tun.NHarts = nHarts
	return NewTables(tun)
}

func newTestProcess(t *testing.T, pager mem.Page_i, pid uint64, hart int) *Process {
	t.Helper()
	return New(pager, pid, 0, 0, 0, 0, Sections{}, hart, 1)
}

func TestFreshPidMonotonic(t *testing.T) {
	tb := newTestTables(1)
	seen := map[uint64]bool{}
	var prev uint64
	for i := 0; i < 100; i++ {
		pid := tb.FreshPid()
		if seen[pid] {
			t.Fatalf("duplicate pid %d", pid)
		}
		if i > 0 && pid <= prev {
			t.Fatalf("expected pid %d to exceed the previous pid %d", pid, prev)
		}
		seen[pid] = true
		prev = pid
	}
}

func TestProcessListAddRegistersPidAndEnqueues(t *testing.T) {
	pager := mem.NewAllocator(4 << 20)
	tb := newTestTables(2)
	p := newTestProcess(t, pager, tb.FreshPid(), 0)

	tb.ProcessListAdd(p, 0)
	if !tb.PidListContains(p.Pid) {
		t.Fatal("expected pid registered after ProcessListAdd")
	}
	if got := tb.ReadyLen(0); got != 1 {
		t.Fatalf("expected ready length 1, got %d", got)
	}
	if tb.PopLocalReady(0) != p {
		t.Fatal("expected PopLocalReady to return the enqueued process")
	}
	if tb.PopLocalReady(0) != nil {
		t.Fatal("expected ready queue empty after pop")
	}
}

func TestLeastBusyMigrationPrefersIdleHart(t *testing.T) {
	pager := mem.NewAllocator(4 << 20)
	tb := newTestTables(3)
	// Harts start with Running == nil, which does not count as idle;
	// install idle stubs so LeastBusy has an explicit idle target.
	for h := range tb.Harts {
		tb.Harts[h].Running = NewIdle(pager, 0, h)
	}
	busy := newTestProcess(t, pager, tb.FreshPid(), 1)
	tb.Harts[1].Running = busy

	target := tb.pickMigrationTarget(-1)
	if target == 1 {
		t.Fatalf("expected LeastBusy to avoid the busy hart 1, got %d", target)
	}
}

func TestRoundRobinMigrationCycles(t *testing.T) {
	pager := mem.NewAllocator(4 << 20)
	_ = pager
	tun := limits.NewTunables()
	tun.NHarts = 3
	tun.Migration = limits.RoundRobin
	tb := NewTables(tun)

	first := tb.pickMigrationTarget(-1)
	second := tb.pickMigrationTarget(-1)
	third := tb.pickMigrationTarget(-1)
	fourth := tb.pickMigrationTarget(-1)
	if (second-first+3)%3 != 1 || (third-second+3)%3 != 1 || (fourth-third+3)%3 != 1 {
		t.Fatalf("expected round robin to cycle through harts in order, got %d %d %d %d", first, second, third, fourth)
	}
}

func TestJoinThenExitUnblocksJoiner(t *testing.T) {
	pager := mem.NewAllocator(4 << 20)
	tb := newTestTables(2)

	target := newTestProcess(t, pager, tb.FreshPid(), 0)
	tb.ProcessListAdd(target, 0)
	tb.SetRunning(0, target)

	joiner := newTestProcess(t, pager, tb.FreshPid(), 1)
	tb.ProcessListAdd(joiner, 1)
	tb.SetRunning(1, joiner)

	tb.SetBlocker(target.Pid, int64(joiner.Pid))
	tb.BlockProcess(joiner)

	tb.Harts[1].Running = NewIdle(pager, 0, 1) // simulate the join path rescheduling hart 1 onto its idle stub
	woken := tb.DeleteRunningProcess(0, pager)
	if woken != 1 {
		t.Fatalf("expected joiner's hart (1) to be woken, got %d", woken)
	}
	if tb.PidListContains(target.Pid) {
		t.Fatal("expected target pid removed from the registry after exit")
	}
}

func TestSleepWakesOnlyPassedDeadlines(t *testing.T) {
	pager := mem.NewAllocator(4 << 20)
	tb := newTestTables(2)

	early := newTestProcess(t, pager, tb.FreshPid(), 0)
	tb.ProcessListAdd(early, 0)
	tb.SetRunning(0, early)
	tb.Harts[0].Running = nil
	tb.PutProcessToSleep(early, 10)

	late := newTestProcess(t, pager, tb.FreshPid(), 0)
	tb.ProcessListAdd(late, 0)
	tb.SetRunning(0, late)
	tb.Harts[0].Running = nil
	tb.PutProcessToSleep(late, 100)

	woken := tb.TryWakeSleeping(10)
	if len(woken) != 1 {
		t.Fatalf("expected exactly one hart woken at mtime 10, got %v", woken)
	}
	if early.State.Kind != Ready {
		t.Fatalf("expected early sleeper back to Ready, got %v", early.State)
	}
	if late.State.Kind != Sleeping {
		t.Fatalf("expected late sleeper to remain Sleeping, got %v", late.State)
	}
}
