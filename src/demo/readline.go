package demo

import (
	"fmt"
	"strconv"
)

// Read-line scenario role, grounded on original_source/src/app/
// input_example.rs: exercises the external-interrupt-driven console path
// (FakeUART -> PLIC -> sysReadLine) rather than chopstick contention.
const RoleGreeter = 200

const readLineCap = 64

// RegisterGreeter wires the read_line/print_str demo into h.
func RegisterGreeter(h *Harness) {
	h.Register(RoleGreeter, greeterMain)
}

// RunGreeter spawns the greeter. The caller still has to feed it input
// with Harness.DeliverConsole at the right moments, same as the original
// test harness driving external interrupts from outside the kernel.
func RunGreeter(h *Harness) uint64 {
	return h.SpawnInitial(RoleGreeter, 0, 0, 0)
}

func greeterMain(sys *Syscalls, _, _, _ uint64) {
	sys.PrintStr("Welcome to the simple external interrupt tester!")
	sys.PrintStr("What is your name?")
	name := sys.ReadLine(readLineCap)

	sys.PrintStr("What year were you born?")
	yearStr := sys.ReadLine(readLineCap)

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		sys.PrintStr(fmt.Sprintf("Couldn't parse birth year %q.", yearStr))
		sys.Exit()
		return
	}
	age := 2020 - year
	sys.PrintStr(fmt.Sprintf("Hello %s, who has born in %d.\nYou are now %d years old!", name, year, age))

	sys.PrintStr("I'm going to sleep now!")
	sys.Sleep(uint64(age))
	sys.PrintStr("I'm back.")
	sys.Exit()
}
