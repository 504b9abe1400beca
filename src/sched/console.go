package sched

import (
	"circbuf"
	"mem"
)

const (
	asciiBackspace = 8
	asciiDel       = 127
	asciiNewline   = '\n'
	asciiCR        = '\r'
)

// lineBuffer wraps the line-editing buffer with the backspace/newline
// handling a real UART driver would do in its receive-interrupt handler.
type lineBuffer struct {
	buf *circbuf.Linebuf_t
}

func newLineBuffer(capacity int) *lineBuffer {
	return &lineBuffer{buf: circbuf.NewLinebuf(capacity)}
}

// onByte is the console's receive-interrupt callback: it edits the line
// buffer and, on a newline, completes any outstanding read_line call.
func (k *Kernel_t) onByte(b byte) {
	switch b {
	case asciiBackspace, asciiDel:
		k.line.buf.Backspace()
	case asciiNewline, asciiCR:
		line := k.line.buf.Drain()
		k.consoleMu.Lock()
		w := k.readWait
		if w == nil {
			k.consoleMu.Unlock()
			return
		}
		k.readWait = nil
		k.consoleMu.Unlock()
		n := int(w.cap)
		if len(line) < n {
			n = len(line)
		}
		dst := k.Pager.Bytes(mem.Pa_t(w.bufVA), n)
		copy(dst, line[:n])
		w.proc.TF.SetArg(0, uint64(n))
		if hart := k.Tables.UnblockProcessByPid(w.proc.Pid); hart >= 0 {
			k.Clint.RaiseSoftware(hart)
		}
	default:
		k.line.buf.Push(b)
	}
}
