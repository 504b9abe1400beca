package clint

import "testing"

func TestTickFiresOnlyPassedDeadlines(t *testing.T) {
	c := New(4)
	c.SetTimer(0, 10)
	c.SetTimer(1, 100)

	mtime, fired := c.Tick(10)
	if mtime != 10 {
		t.Fatalf("expected mtime 10, got %d", mtime)
	}
	if len(fired) != 1 || fired[0] != 0 {
		t.Fatalf("expected only hart 0 to fire, got %v", fired)
	}

	_, fired = c.Tick(90)
	if len(fired) != 1 || fired[0] != 1 {
		t.Fatalf("expected only hart 1 to fire on the second tick, got %v", fired)
	}
}

func TestTickDoesNotRefireAPassedDeadline(t *testing.T) {
	c := New(1)
	c.SetTimer(0, 5)
	if _, fired := c.Tick(5); len(fired) != 1 {
		t.Fatalf("expected hart 0 to fire once, got %v", fired)
	}
	if _, fired := c.Tick(5); len(fired) != 0 {
		t.Fatalf("expected no refire without reprogramming the timer, got %v", fired)
	}
}

func TestSoftwareInterruptLatchAndClear(t *testing.T) {
	c := New(2)
	if c.SoftwarePending(0) {
		t.Fatal("expected no software interrupt pending initially")
	}
	c.RaiseSoftware(0)
	if !c.SoftwarePending(0) {
		t.Fatal("expected software interrupt pending after RaiseSoftware")
	}
	if c.SoftwarePending(1) {
		t.Fatal("RaiseSoftware on hart 0 must not affect hart 1")
	}
	c.ClearSoftware(0)
	if c.SoftwarePending(0) {
		t.Fatal("expected software interrupt cleared after ClearSoftware")
	}
}

func TestTimerPendingUnarmedHart(t *testing.T) {
	c := New(1)
	if c.TimerPending(0) {
		t.Fatal("expected an unprogrammed timer to never report pending")
	}
	c.Tick(1_000_000)
	if c.TimerPending(0) {
		t.Fatal("expected an unprogrammed timer to stay unpending regardless of elapsed time")
	}
}
