// Package vm implements the Sv39 page-table builder (component C): three
// levels, 512 entries per table, 9-bit VPNs at levels 2/1/0 and a 12-bit
// page offset. Entry bit layout and the map/unmap/translate algorithms
// follow the teacher's mem.Pmap_t naming and original_source/page.rs's
// Sv39PageTable semantics one-for-one; only the allocator underneath is
// swapped for the simulated arena in package mem.
package vm

import (
	"unsafe"

	"fault"
	"mem"
)

// Pte_t is a single Sv39 page-table entry.
type Pte_t uint64

// Entry flag bits.
const (
	Valid Pte_t = 1 << 0
	Read  Pte_t = 1 << 1
	Write Pte_t = 1 << 2
	Exec  Pte_t = 1 << 3
	User  Pte_t = 1 << 4
	Globl Pte_t = 1 << 5
	Acc   Pte_t = 1 << 6
	Dirty Pte_t = 1 << 7

	ReadWrite        = Read | Write
	ReadExec         = Read | Exec
	ReadWriteExec    = Read | Write | Exec
	UserReadWrite    = Read | Write | User
	UserReadExec     = Read | Exec | User
	UserReadWriteExe = Read | Write | Exec | User
)

func (e Pte_t) valid() bool { return e&Valid != 0 }
func (e Pte_t) read() bool  { return e&Read != 0 }
func (e Pte_t) write() bool { return e&Write != 0 }
func (e Pte_t) leaf() bool  { return e.read() || e.write() || e&Exec != 0 }

// ppn extracts the packed PPN[2..0] field (bits 53..10) of the entry.
func (e Pte_t) ppn() uint64 {
	return (uint64(e) >> 10) & ((1 << 44) - 1)
}

// Pmap_t is one level of the page table: 512 Sv39 entries, exactly one
// page in size.
type Pmap_t [512]Pte_t

const levels = 3

// vpn splits a virtual address into its three 9-bit Sv39 indices,
// ordered level 2 (top) down to level 0 (leaf).
func vpn(va uint64) [3]int {
	return [3]int{
		int((va >> 30) & 0x1ff),
		int((va >> 21) & 0x1ff),
		int((va >> 12) & 0x1ff),
	}
}

// Table_t is a root Sv39 page table plus the allocator it draws branch
// pages from.
type Table_t struct {
	pager mem.Page_i
	root  mem.Pa_t
}

// New allocates a fresh, zeroed root table.
func New(pager mem.Page_i) (*Table_t, error) {
	p, ok := pager.Zalloc(1)
	if !ok {
		panic(&fault.Fault{Cause: fault.AllocExhausted, Hart: -1, Mtval: 1})
	}
	return &Table_t{pager: pager, root: p}, nil
}

// Root returns the physical address of the root table, for build_satp.
func (t *Table_t) Root() mem.Pa_t { return t.root }

func (t *Table_t) pmap(p mem.Pa_t) *Pmap_t {
	pg := t.pager.Dmap(p)
	return (*Pmap_t)(unsafe.Pointer(pg))
}

// Map installs a translation from va to pa at the given leaf level
// (0 = 4KiB page, 1 = 2MiB megapage, 2 = 1GiB gigapage), allocating any
// missing intermediate branch table along the way. flags must set at
// least one of Read/Write/Exec or the mapping would always fault.
func (t *Table_t) Map(va uint64, pa mem.Pa_t, flags Pte_t, level int) {
	if flags&(Read|Write|Exec) == 0 {
		panic("vm: map requires at least one of R/W/X")
	}
	v := vpn(va)
	pm := t.pmap(t.root)
	idx := v[0]

	for i := 0; i < levels-1-level; i++ {
		e := pm[idx]
		var next mem.Pa_t
		if !e.valid() {
			np, ok := t.pager.Zalloc(1)
			if !ok {
				panic(&fault.Fault{Cause: fault.AllocExhausted, Hart: -1, Mtval: va})
			}
			next = np
			pm[idx] = Pte_t((uint64(next)>>12)<<10) | Valid
		} else {
			next = mem.Pa_t(e.ppn() << 12)
		}
		pm = t.pmap(next)
		idx = v[i+1]
	}

	ppn := uint64(pa) >> 12
	pm[idx] = Pte_t(ppn<<10) | flags | Valid | Acc | Dirty
}

// Unmap frees every branch frame reachable from the root via a post-order
// DFS. Leaves are never freed individually — they alias identity-mapped
// kernel regions the process did not own.
func (t *Table_t) Unmap() {
	t.unmapLevel(t.root, levels)
}

func (t *Table_t) unmapLevel(tablePA mem.Pa_t, level int) {
	pm := t.pmap(tablePA)
	for i := range pm {
		e := pm[i]
		if e.valid() && !e.leaf() {
			child := mem.Pa_t(e.ppn() << 12)
			t.unmapLevel(child, level-1)
			if err := t.pager.Dealloc(child); err != nil {
				panic(&fault.Fault{Cause: fault.BadUnmap, Hart: -1, Mtval: uint64(child)})
			}
		}
	}
}

// Translate walks the table exactly as the hardware would, returning the
// resolved physical address or false on a page fault: an invalid entry, or
// the reserved write-without-read pattern. On a leaf it recombines the
// leaf's PPN with the correct page-offset mask for the level at which the
// leaf was found, so megapage/gigapage leaves translate correctly too.
func (t *Table_t) Translate(va uint64) (mem.Pa_t, bool) {
	v := vpn(va)
	pm := t.pmap(t.root)
	idx := v[0]

	for i := 0; i <= levels-1; i++ {
		e := pm[idx]
		if !e.valid() || (!e.read() && e.write()) {
			return 0, false
		}
		if e.leaf() {
			level := levels - 1 - i
			offsetMask := uint64(1)<<(12+level*9) - 1
			pgoff := va & offsetMask
			addr := (e.ppn() << 12) &^ offsetMask
			return mem.Pa_t(addr | pgoff), true
		}
		next := mem.Pa_t(e.ppn() << 12)
		pm = t.pmap(next)
		idx = v[i+1]
	}
	return 0, false
}
