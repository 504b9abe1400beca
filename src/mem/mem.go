// Package mem implements the page-grained physical allocator (component A)
// and the sub-page kernel heap carved from it (component B).
//
// There is no real physical RAM backing this kernel: HEAP_BASE..HEAP_BASE+
// HEAP_SIZE is a single Go byte arena allocated once at boot, and Pa_t is an
// offset into that arena rather than a hardware address. This mirrors the
// teacher's Physmem_t, whose Dmap reinterprets a physical address as a
// direct-mapped virtual one; here the "direct map" is just the arena slice
// itself, so Dmap never needs an out-of-process page table of its own.
package mem

import (
	"unsafe"

	"fault"
	"lock"
)

// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

// PGMASK masks the page number out of an address.
const PGMASK Pa_t = ^(PGOFFSET)

// Pa_t represents a physical address: an offset into the simulated RAM
// arena, never a real hardware address.
type Pa_t uintptr

// Pg_t is a page-sized, page-aligned chunk of the arena, viewed as 512
// 64-bit words — the same granularity the Sv39 page-table builder and the
// trap frame expect.
type Pg_t [512]uint64

// Bytepg_t is the same page viewed as raw bytes.
type Bytepg_t [PGSIZE]uint8

// Page_i abstracts physical page allocation so higher layers (the page
// table builder, the process constructor) can be handed a small fixed
// arena in tests instead of the global allocator.
type Page_i interface {
	Zalloc(n int) (Pa_t, bool)
	Alloc(n int) (Pa_t, bool)
	Dealloc(p Pa_t) error
	Dmap(p Pa_t) *Pg_t
	// Bytes returns a raw byte window of n bytes starting at p, for
	// callers (the process constructor's trap frame placement) that
	// need a view spanning more than one page.
	Bytes(p Pa_t, n int) []byte
}

// descFlags is the per-page descriptor: two bits, Taken and Last, packed
// into one byte exactly as the spec requires (1/4096th overhead).
type descFlags uint8

const (
	flagTaken descFlags = 1 << 0
	flagLast  descFlags = 1 << 1
)

func (d descFlags) taken() bool { return d&flagTaken != 0 }
func (d descFlags) last() bool  { return d&flagLast != 0 }

// Allocator_t is the page-grained physical allocator of component A. The
// descriptor array lives at the head of the arena; the remainder, aligned
// up to a page boundary, is the allocation area.
type Allocator_t struct {
	mu lock.Spinlock_t

	arena    []byte
	descs    []descFlags
	areaBase int // byte offset of the first allocatable page within arena
	npages   int
}

// NewAllocator carves an allocator out of a freshly allocated arena of at
// least size bytes. The arena is simulated RAM: a real Go byte slice, never
// OS-mapped pages.
func NewAllocator(size int) *Allocator_t {
	if size <= 0 {
		panic("mem: bad heap size")
	}
	arena := make([]byte, size)
	a := &Allocator_t{arena: arena}

	// Reserve one descriptor byte per page that could possibly fit,
	// then trim the descriptor count down once we know how many whole
	// pages remain after the descriptor array itself.
	maxPages := size / PGSIZE
	descBytes := maxPages
	areaBase := roundup(descBytes, PGSIZE)
	npages := (size - areaBase) / PGSIZE
	if npages <= 0 {
		panic(&fault.Fault{Cause: fault.AllocExhausted, Hart: -1, Mtval: uint64(size)})
	}

	a.descs = make([]descFlags, npages)
	a.areaBase = areaBase
	a.npages = npages
	return a
}

func roundup(v, b int) int {
	return (v + b - 1) / b * b
}

// Alloc scans for the first run of n consecutive free pages, marks them
// Taken (the last also Last), and returns the physical address of the
// first page. It fails by returning (0, false) when no such run exists.
func (a *Allocator_t) Alloc(n int) (Pa_t, bool) {
	if n <= 0 {
		panic(&fault.Fault{Cause: fault.AllocExhausted, Hart: -1, Mtval: uint64(n)})
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i+n <= a.npages; i++ {
		if a.descs[i].taken() {
			continue
		}
		run := true
		for j := i + 1; j < i+n; j++ {
			if a.descs[j].taken() {
				run = false
				break
			}
		}
		if !run {
			continue
		}
		for j := i; j < i+n-1; j++ {
			a.descs[j] = flagTaken
		}
		a.descs[i+n-1] = flagTaken | flagLast
		return a.pa(i), true
	}
	return 0, false
}

// Zalloc allocates like Alloc and additionally zeroes the returned pages
// in 8-byte writes.
func (a *Allocator_t) Zalloc(n int) (Pa_t, bool) {
	p, ok := a.Alloc(n)
	if !ok {
		return 0, false
	}
	bs := a.bytes(p, n*PGSIZE)
	words := unsafe.Slice((*uint64)(unsafe.Pointer(&bs[0])), len(bs)/8)
	for i := range words {
		words[i] = 0
	}
	return p, true
}

// Dealloc requires p to address a Taken page within the allocation area and
// walks forward clearing descriptors until (and including) the one marked
// Last. Freeing an address that is not Taken, or that falls outside the
// allocation area, is a fatal invariant violation — callers must not race
// a dealloc with an overlapping alloc/dealloc on the same run.
func (a *Allocator_t) Dealloc(p Pa_t) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.idx(p)
	if !ok {
		panic(&fault.Fault{Cause: fault.DoubleFree, Hart: -1, Mtval: uint64(p)})
	}
	if !a.descs[idx].taken() {
		panic(&fault.Fault{Cause: fault.DoubleFree, Hart: -1, Mtval: uint64(p)})
	}
	for a.descs[idx].taken() && !a.descs[idx].last() {
		a.descs[idx] = 0
		idx++
	}
	if idx >= a.npages || !a.descs[idx].last() {
		panic(&fault.Fault{Cause: fault.DoubleFree, Hart: -1, Mtval: uint64(p)})
	}
	a.descs[idx] = 0
	return nil
}

// Dmap reinterprets a physical address as a typed page view into the
// arena. It is the direct map: there is no separate virtual address space
// to walk because the arena itself stands in for all of physical RAM.
func (a *Allocator_t) Dmap(p Pa_t) *Pg_t {
	bs := a.bytes(p, PGSIZE)
	return (*Pg_t)(unsafe.Pointer(&bs[0]))
}

// Dmap8 returns a byte-addressed view of the page at p.
func (a *Allocator_t) Dmap8(p Pa_t) []uint8 {
	return a.bytes(p, PGSIZE)
}

// Bytes returns a raw byte window of n bytes starting at p, which may span
// multiple pages as long as they fall within the arena.
func (a *Allocator_t) Bytes(p Pa_t, n int) []byte {
	return a.bytes(p, n)
}

func (a *Allocator_t) pa(descIdx int) Pa_t {
	return Pa_t(a.areaBase + descIdx*PGSIZE)
}

func (a *Allocator_t) idx(p Pa_t) (int, bool) {
	off := int(p) - a.areaBase
	if off < 0 || off%PGSIZE != 0 {
		return 0, false
	}
	idx := off / PGSIZE
	if idx < 0 || idx >= a.npages {
		return 0, false
	}
	return idx, true
}

func (a *Allocator_t) bytes(p Pa_t, n int) []byte {
	if int(p)+n > len(a.arena) || int(p) < 0 {
		panic("mem: address out of arena bounds")
	}
	return a.arena[int(p) : int(p)+n]
}

// Pg2bytes reinterprets a page-of-words view as a page of bytes.
func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}
