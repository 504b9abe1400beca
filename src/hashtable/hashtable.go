// Package hashtable implements a lock-free-read hash index, adapted from
// the teacher's generic hashtable for one specific purpose: giving the PID
// registry O(1) membership lookups (Invariant 3) while the registry's FIFO
// slice remains the ordering source of truth. Reads walk bucket chains via
// atomic pointer loads and take no lock; writes (insert/delete) take the
// owning bucket's mutex.
package hashtable

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

type elem_t struct {
	pid     int
	blocker int // blocking PID, or -1 if none
	next    *elem_t
}

type bucket_t struct {
	sync.Mutex
	first *elem_t
}

// PidIndex_t maps live PIDs to their current blocking_pid (-1 if none).
type PidIndex_t struct {
	table []*bucket_t
}

// NewPidIndex allocates a PID index with nbuckets buckets.
func NewPidIndex(nbuckets int) *PidIndex_t {
	if nbuckets <= 0 {
		nbuckets = 64
	}
	ht := &PidIndex_t{table: make([]*bucket_t, nbuckets)}
	for i := range ht.table {
		ht.table[i] = &bucket_t{}
	}
	return ht
}

func (ht *PidIndex_t) bucket(pid int) *bucket_t {
	h := uint32(pid) * 2654435761
	return ht.table[h%uint32(len(ht.table))]
}

// Get reports whether pid is registered, and its blocking PID if any.
func (ht *PidIndex_t) Get(pid int) (blocker int, ok bool) {
	b := ht.bucket(pid)
	for e := loadptr(&b.first); e != nil; e = loadptr(&e.next) {
		if e.pid == pid {
			return e.blocker, true
		}
	}
	return -1, false
}

// Contains is Invariant 3/Testable-property-1's membership test.
func (ht *PidIndex_t) Contains(pid int) bool {
	_, ok := ht.Get(pid)
	return ok
}

// Set inserts pid with the given blocker, or updates its blocker if
// already present.
func (ht *PidIndex_t) Set(pid, blocker int) {
	b := ht.bucket(pid)
	b.Lock()
	defer b.Unlock()
	for e := b.first; e != nil; e = e.next {
		if e.pid == pid {
			e.blocker = blocker
			return
		}
	}
	n := &elem_t{pid: pid, blocker: blocker, next: b.first}
	storeptr(&b.first, n)
}

// Del removes pid from the index. It panics if pid was not present,
// mirroring the teacher's del-of-nonexistent-key invariant check.
func (ht *PidIndex_t) Del(pid int) {
	b := ht.bucket(pid)
	b.Lock()
	defer b.Unlock()

	var last *elem_t
	for e := b.first; e != nil; e = e.next {
		if e.pid == pid {
			if last == nil {
				storeptr(&b.first, e.next)
			} else {
				storeptr(&last.next, e.next)
			}
			return
		}
		last = e
	}
	panic("hashtable: delete of unregistered pid")
}

func loadptr(e **elem_t) *elem_t {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(e))
	return (*elem_t)(atomic.LoadPointer(ptr))
}

func storeptr(p **elem_t, n *elem_t) {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(p))
	atomic.StorePointer(ptr, unsafe.Pointer(n))
}
