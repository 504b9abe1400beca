// Package cpu defines the trap-frame ABI and the CSR-level constants the
// scheduler and the (externally supplied) trap entry/exit stubs must agree
// on bit-for-bit. This is the one place the spec calls out as inherent to
// real machine-mode traps and therefore not abstractable away: offsets
// here are part of the ABI, not an implementation detail.
package cpu

// Freq is QEMU's fixed clock rate for this platform.
const Freq uint64 = 10_000_000

// ContextSwitchTime is how many mtime ticks make up one scheduling quantum
// tick: 500 preemptions per second at Freq.
const ContextSwitchTime uint64 = Freq / 500

// Mode is the RISC-V privilege level recorded in a trap frame.
type Mode uintptr

const (
	ModeUser       Mode = 0b00
	ModeSupervisor Mode = 0b01
	ModeMachine    Mode = 0b11
)

// GPR names the 32 general-purpose registers by their RISC-V calling
// convention role, in trap-frame order.
type GPR int

const (
	Zero GPR = iota
	Ra
	Sp
	Gp
	Tp
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

// TrapFrame is a fixed-layout structure of 32 general-purpose registers, 32
// floating registers, satp, pc, the saved global-interrupt-enable flag,
// and the privilege mode. It lives at the top of the owning process's
// stack and must be binary-compatible with the (out of scope) save/restore
// assembly stub: the field order below IS the ABI.
type TrapFrame struct {
	Regs  [32]uint64
	Fregs [32]uint64
	Satp  uint64
	Pc    uint64
	Gie   uint64 // saved global-interrupt-enable flag
	Mode  uint64
}

// Arg returns argument register Ai. Syscalls take their arguments in
// A0..A3 and return in A0; the syscall number travels in A7, not A0.
func (tf *TrapFrame) Arg(i int) uint64 {
	return tf.Regs[A0+GPR(i)]
}

// SetArg writes argument/return register Ai.
func (tf *TrapFrame) SetArg(i int, v uint64) {
	tf.Regs[A0+GPR(i)] = v
}

// SatpModeSv39 is the mode field value (bits 63..60) for Sv39 paging.
const SatpModeSv39 uint64 = 8

// BuildSatp packs an Sv39 satp value: mode (8) in bits 63..60, a 16-bit
// ASID (here always the owning PID, truncated) in bits 59..44, and the
// 44-bit root page-table PPN in bits 43..0.
func BuildSatp(asid uint64, rootPA uint64) uint64 {
	const asidMask = 0xffff
	const ppnMask = (uint64(1) << 44) - 1
	mode := SatpModeSv39 << 60
	a := (asid & asidMask) << 44
	ppn := (rootPA >> 12) & ppnMask
	return mode | a | ppn
}
