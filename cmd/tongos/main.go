// Command tongos boots the simulated kernel and runs one of the demo
// workloads to completion, standing in for the hardware bring-up the
// teacher's boot.go performs on real hart reset.
package main

import (
	"flag"
	"fmt"
	"os"

	"demo"
	"limits"
	"mem"
	"proc"
	"sched"
)

// idleRole is never dispatched through a role lookup; idle harts run
// entirely inside Kernel_t.Schedule rather than as a tracked process, so
// this is only a placeholder entry value recorded in HartState_t.Idle.
const idleRole = 0

const arenaSize = 64 << 20 // 64 MiB simulated RAM arena

func main() {
	scenario := flag.String("scenario", "philosophers", "demo workload: philosophers or greeter")
	ticks := flag.Uint64("tick", 1, "mtime ticks advanced per timekeeper step")
	config := flag.String("config", "tongos.yaml", "YAML file overriding the default tunables")
	flag.Parse()

	tun, err := limits.LoadTunables(*config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tongos: loading %s: %v\n", *config, err)
		os.Exit(1)
	}
	pager := mem.NewAllocator(arenaSize)
	heap := mem.NewKheap(pager)
	sections := proc.Sections{} // identity-mapped sections: out of scope without a real linker script

	k := sched.NewKernel(tun, pager, heap, sections)
	k.Boot(idleRole)

	h := demo.NewHarness(k)

	switch *scenario {
	case "philosophers":
		demo.RegisterPhilosophers(h)
		demo.RunPhilosophers(h)
		h.Run(*ticks)
	case "greeter":
		demo.RegisterGreeter(h)
		demo.RunGreeter(h)
		runGreeterScripted(h, *ticks)
	default:
		fmt.Fprintf(os.Stderr, "tongos: unknown scenario %q\n", *scenario)
		os.Exit(1)
	}
}

// runGreeterScripted drives the greeter scenario, typing its two answers
// at the console once the kernel has had a chance to block it on each
// read_line, then lets Run finish the rest (the sleep and final print).
func runGreeterScripted(h *demo.Harness, tick uint64) {
	go func() {
		h.DeliverConsole(0, "Ada")
		h.DeliverConsole(0, "1990")
	}()
	h.Run(tick)
}
