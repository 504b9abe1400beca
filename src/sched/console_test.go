package sched

import (
	"testing"

	"cpu"
)

func TestOnByteDelActsAsBackspace(t *testing.T) {
	k := newTestKernel(t, 1)
	p := spawnRunning(k, 0)

	scratch, ok := k.Pager.Zalloc(1)
	if !ok {
		t.Fatal("expected a scratch page to allocate")
	}
	p.TF.Regs[cpu.A7] = SysReadLine
	p.TF.SetArg(0, uint64(scratch))
	p.TF.SetArg(1, 16)
	k.HandleTrap(0, false, CauseEcall, 0)

	for _, b := range []byte("abc") {
		k.onByte(b)
	}
	k.onByte(asciiDel) // drop the trailing 'c'
	k.onByte('c')
	k.onByte(asciiNewline)

	n := p.TF.Arg(0)
	got := string(k.Pager.Bytes(scratch, int(n)))
	if got != "abc" {
		t.Fatalf("expected %q after DEL removed and re-typed the last byte, got %q", "abc", got)
	}
}

func TestOnByteCRCompletesLikeNewline(t *testing.T) {
	k := newTestKernel(t, 1)
	p := spawnRunning(k, 0)

	scratch, ok := k.Pager.Zalloc(1)
	if !ok {
		t.Fatal("expected a scratch page to allocate")
	}
	p.TF.Regs[cpu.A7] = SysReadLine
	p.TF.SetArg(0, uint64(scratch))
	p.TF.SetArg(1, 16)
	k.HandleTrap(0, false, CauseEcall, 0)

	for _, b := range []byte("abc") {
		k.onByte(b)
	}
	k.onByte(asciiCR)

	if k.ReadPending() {
		t.Fatal("expected CR to complete the pending read, same as newline")
	}
	n := p.TF.Arg(0)
	got := string(k.Pager.Bytes(scratch, int(n)))
	if got != "abc" {
		t.Fatalf("expected %q, got %q", "abc", got)
	}
}
