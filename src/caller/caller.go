// Package caller prints call-stack diagnostics on the kernel's fatal
// paths. Adapted from the teacher's caller package: every invariant
// violation, allocation exhaustion, or unknown trap/syscall panic goes
// through Callerdump, whose trace sched.Kernel_t.Fatal puts into its panic
// message, so a fatal path always leaves a reconstructable stack trace.
// No hart parks in a wfi loop; the panic unwinds the calling goroutine.
package caller

import (
	"fmt"
	"runtime"
)

// Callerdump prints the call stack starting at the given frame depth.
func Callerdump(start int) string {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d\n", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d\n", f, l)
		}
	}
	return s
}
