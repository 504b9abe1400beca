package mem

import "testing"

func TestAllocZallocZeroesPages(t *testing.T) {
	a := NewAllocator(64 * PGSIZE)

	p, ok := a.Alloc(1)
	if !ok {
		t.Fatal("expected Alloc to succeed on a fresh allocator")
	}
	bs := a.Bytes(p, PGSIZE)
	for i := range bs {
		bs[i] = 0xff
	}
	if err := a.Dealloc(p); err != nil {
		t.Fatalf("Dealloc: %v", err)
	}

	z, ok := a.Zalloc(1)
	if !ok {
		t.Fatal("expected Zalloc to succeed after freeing the only page")
	}
	for i, b := range a.Bytes(z, PGSIZE) {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %#x", i, b)
		}
	}
}

func TestAllocRunsAreContiguousAndDisjoint(t *testing.T) {
	a := NewAllocator(16 * PGSIZE)

	first, ok := a.Alloc(3)
	if !ok {
		t.Fatal("expected first alloc to succeed")
	}
	second, ok := a.Alloc(2)
	if !ok {
		t.Fatal("expected second alloc to succeed")
	}
	if second >= first && second < first+Pa_t(3*PGSIZE) {
		t.Fatalf("second run %#x overlaps first run starting at %#x", second, first)
	}
}

func TestDeallocRejectsDoubleFree(t *testing.T) {
	a := NewAllocator(8 * PGSIZE)
	p, ok := a.Alloc(1)
	if !ok {
		t.Fatal("expected alloc to succeed")
	}
	if err := a.Dealloc(p); err != nil {
		t.Fatalf("first Dealloc: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected second Dealloc of the same page to panic")
		}
	}()
	a.Dealloc(p)
}

func TestDeallocRejectsNonTakenAddress(t *testing.T) {
	a := NewAllocator(8 * PGSIZE)
	defer func() {
		if recover() == nil {
			t.Fatal("expected Dealloc of a never-allocated page to panic")
		}
	}()
	a.Dealloc(Pa_t(a.areaBase))
}

func TestAllocExhaustion(t *testing.T) {
	a := NewAllocator(4 * PGSIZE)
	for i := 0; i < a.npages; i++ {
		if _, ok := a.Alloc(1); !ok {
			t.Fatalf("expected page %d to allocate", i)
		}
	}
	if _, ok := a.Alloc(1); ok {
		t.Fatal("expected allocator to be exhausted")
	}
}

func TestDmapReflectsWrites(t *testing.T) {
	a := NewAllocator(8 * PGSIZE)
	p, ok := a.Zalloc(1)
	if !ok {
		t.Fatal("expected zalloc to succeed")
	}
	pg := a.Dmap(p)
	pg[0] = 0xdeadbeef
	if got := a.Dmap(p)[0]; got != 0xdeadbeef {
		t.Fatalf("expected Dmap to alias the same backing memory, got %#x", got)
	}
}
