package mem

import (
	"fmt"
	"unsafe"

	"fault"
)

// kheapPages is the size, in pages, of the arena backing the kernel heap —
// the same 2048-page (8 MiB) figure the teacher's kmem.rs hardcodes as
// KMEM_ALLOC.
const kheapPages = 2048

const takenBit = uint64(1) << 63

// header_t is the in-place free-list header: size (including the header
// itself) in the low 63 bits, Taken in the top bit. Headers chain forward
// through the arena by walking size bytes at a time.
type header_t struct {
	flagsSize uint64
}

func (h *header_t) taken() bool   { return h.flagsSize&takenBit != 0 }
func (h *header_t) size() uint64  { return h.flagsSize &^ takenBit }
func (h *header_t) setTaken(v bool) {
	if v {
		h.flagsSize |= takenBit
	} else {
		h.flagsSize &^= takenBit
	}
}
func (h *header_t) setSize(sz uint64) {
	t := h.taken()
	h.flagsSize = sz &^ takenBit
	h.setTaken(t)
}

const headerSize = uint64(unsafe.Sizeof(header_t{}))

// Kheap_t is the sub-page malloc carved from a single page-allocator arena,
// component B. kmalloc/kfree operate on a chain of (flags, size) headers
// laid out in-place in that arena, exactly as the teacher's kmem.rs does.
type Kheap_t struct {
	pager Page_i
	base  Pa_t
	bytes int
}

// NewKheap reserves a kheapPages arena from pager and installs one free
// header spanning the whole thing.
func NewKheap(pager Page_i) *Kheap_t {
	p, ok := pager.Zalloc(kheapPages)
	if !ok {
		panic(&fault.Fault{Cause: fault.AllocExhausted, Hart: -1, Mtval: uint64(kheapPages)})
	}
	k := &Kheap_t{pager: pager, base: p, bytes: kheapPages * PGSIZE}
	h := k.headerAt(0)
	h.setTaken(false)
	h.setSize(uint64(k.bytes))
	return k
}

func (k *Kheap_t) arena() []byte {
	return k.pager.Bytes(k.base, k.bytes)
}

func (k *Kheap_t) headerAt(off uint64) *header_t {
	arena := k.arena()
	return (*header_t)(unsafe.Pointer(&arena[off]))
}

func (k *Kheap_t) payload(h *header_t, off uint64) []byte {
	arena := k.arena()
	return arena[off+headerSize : off+h.size()]
}

// Kmalloc rounds size up to 8-byte alignment, reserves header space, and
// first-fit scans the header chain. It splits the matched block only when
// the remainder exceeds one header's worth of space; it returns nil on
// exhaustion.
func (k *Kheap_t) Kmalloc(size int) []byte {
	if size <= 0 {
		panic("mem: kmalloc of non-positive size")
	}
	want := roundup8(uint64(size)) + headerSize

	var off uint64
	for off < uint64(k.bytes) {
		h := k.headerAt(off)
		if h.size() == 0 {
			panic("mem: corrupt kernel heap (zero-size header)")
		}
		if !h.taken() && h.size() >= want {
			remaining := h.size() - want
			if remaining > headerSize {
				next := k.headerAt(off + want)
				next.flagsSize = 0
				next.setSize(remaining)
				h.setSize(want)
			}
			h.setTaken(true)
			return k.payload(h, off)
		}
		off += h.size()
	}
	return nil
}

// Kzmalloc allocates like Kmalloc and zeroes the payload.
func (k *Kheap_t) Kzmalloc(size int) []byte {
	b := k.Kmalloc(size)
	if b == nil {
		return nil
	}
	for i := range b {
		b[i] = 0
	}
	return b
}

// Kfree clears the Taken bit on the header preceding p, then runs a
// forward coalesce pass merging adjacent free headers. A size==0 header
// encountered mid-pass aborts the coalesce (best-effort double-free
// detection, matching the teacher's source comment on kfree).
func (k *Kheap_t) Kfree(p []byte) {
	if len(p) == 0 {
		panic("mem: kfree of empty slice")
	}
	hdrPtr := unsafe.Add(unsafe.Pointer(&p[0]), -int(headerSize))
	h := (*header_t)(hdrPtr)
	if !h.taken() {
		panic(&fault.Fault{Cause: fault.DoubleFree, Hart: -1, Mtval: uint64(uintptr(hdrPtr) - uintptr(unsafe.Pointer(&k.arena()[0])))})
	}
	h.setTaken(false)
	k.coalesce()
}

func (k *Kheap_t) coalesce() {
	var off uint64
	for off < uint64(k.bytes) {
		h := k.headerAt(off)
		sz := h.size()
		if sz == 0 {
			return
		}
		if h.taken() {
			off += sz
			continue
		}
		next := off + sz
		for next < uint64(k.bytes) {
			nh := k.headerAt(next)
			if nh.size() == 0 || nh.taken() {
				break
			}
			sz += nh.size()
			next += nh.size()
		}
		h.setSize(sz)
		off += sz
	}
}

func roundup8(v uint64) uint64 {
	return (v + 7) &^ 7
}

// String dumps the header chain for diagnostics, the Go analogue of the
// teacher's kmem print_table.
func (k *Kheap_t) String() string {
	s := ""
	var off uint64
	for off < uint64(k.bytes) {
		h := k.headerAt(off)
		if h.size() == 0 {
			break
		}
		s += fmt.Sprintf("off=%d size=%d taken=%v\n", off, h.size(), h.taken())
		off += h.size()
	}
	return s
}
