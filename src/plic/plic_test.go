package plic

import "testing"

func TestFakeUARTDeliversOneByteAtATime(t *testing.T) {
	var got []byte
	u := NewFakeUART(func(b byte) { got = append(got, b) })
	u.Deliver([]byte("hi"))

	if !u.Pending() {
		t.Fatal("expected source pending after Deliver")
	}
	u.Service()
	if len(got) != 1 || got[0] != 'h' {
		t.Fatalf("expected exactly one byte serviced, got %v", got)
	}
	if !u.Pending() {
		t.Fatal("expected still-pending with one byte left")
	}
	u.Service()
	if u.Pending() {
		t.Fatal("expected not pending once drained")
	}
	if string(got) != "hi" {
		t.Fatalf("expected bytes delivered in order, got %q", got)
	}
}

func TestControllerPendingRespectsEnableAndPriority(t *testing.T) {
	u := NewFakeUART(func(byte) {})
	c := New([]Source{u}, 2)
	u.Deliver([]byte("x"))

	if c.Pending(0) {
		t.Fatal("expected not pending: source disabled for hart 0")
	}
	c.SetEnabled(0, 0, true)
	if c.Pending(0) {
		t.Fatal("expected not pending: priority still zero")
	}
	c.SetPriority(0, 1)
	if !c.Pending(0) {
		t.Fatal("expected pending once enabled with nonzero priority")
	}
	if c.Pending(1) {
		t.Fatal("hart 1 never enabled this source")
	}
}

func TestClaimCompleteCycle(t *testing.T) {
	u := NewFakeUART(func(byte) {})
	c := New([]Source{u}, 1)
	c.SetEnabled(0, 0, true)
	c.SetPriority(0, 1)
	u.Deliver([]byte("z"))

	if _, ok := c.Claim(0); !ok {
		t.Fatal("expected a claim while the source is pending")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected a second Claim before Complete to panic")
		}
	}()
	c.Claim(0)
}

func TestCompleteServicesAndReleasesClaim(t *testing.T) {
	var serviced bool
	u := NewFakeUART(func(byte) { serviced = true })
	c := New([]Source{u}, 1)
	c.SetEnabled(0, 0, true)
	c.SetPriority(0, 1)
	u.Deliver([]byte("z"))

	src, ok := c.Claim(0)
	if !ok {
		t.Fatal("expected claim to succeed")
	}
	c.Complete(0, src)
	if !serviced {
		t.Fatal("expected Complete to service the claimed source")
	}

	// A fresh claim must now be possible again.
	if _, ok := c.Claim(0); ok {
		t.Fatal("expected nothing pending after the single queued byte was serviced")
	}
}

func TestHigherPrioritySourceWinsClaim(t *testing.T) {
	lo := NewFakeUART(func(byte) {})
	hi := NewFakeUART(func(byte) {})
	c := New([]Source{lo, hi}, 1)
	c.SetEnabled(0, 0, true)
	c.SetEnabled(1, 0, true)
	c.SetPriority(0, 1)
	c.SetPriority(1, 2)
	lo.Deliver([]byte("a"))
	hi.Deliver([]byte("b"))

	src, ok := c.Claim(0)
	if !ok || src != 1 {
		t.Fatalf("expected the higher-priority source (1) to win claim, got src=%d ok=%v", src, ok)
	}
}
