// Package stats implements the teacher's compile-time-gated counter
// idiom: when the Stats const is false, every counter method compiles
// down to a no-op, so instrumentation can stay wired into hot scheduler
// and trap paths without runtime cost in the normal build.
package stats

import (
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
)

// Stats gates whether Counter_t.Inc actually touches memory. Flip to true
// locally to get live scheduler/trap counters; the default build pays
// nothing for the instrumentation.
const Stats = false

// Counter_t is a statistical counter.
type Counter_t int64

// Inc increments the counter when Stats is enabled.
func (c *Counter_t) Inc() {
	if Stats {
		atomic.AddInt64((*int64)(c), 1)
	}
}

// Get reads the counter's current value. It does not consult the Stats
// switch; with Stats=false nothing increments the counter, so Get always
// reads 0.
func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// Stats2String renders every Counter_t field of st as a printable report.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Interface().(Counter_t)
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(int64(n), 10)
		}
	}
	return s + "\n"
}

// Kernel-wide counters, adapted from the teacher's package-level Nirqs/
// Irqs pair: one tally per trap cause (all external interrupts share one)
// plus the scheduler's context-switch and migration counts.
type Counters_t struct {
	ContextSwitches Counter_t
	Migrations      Counter_t
	TimerIrqs       Counter_t
	SoftwareIrqs    Counter_t
	ExternalIrqs    Counter_t
	Syscalls        Counter_t
}
