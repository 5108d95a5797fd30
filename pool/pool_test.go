package pool

import (
	"testing"

	"ember/kheap"
)

func TestAllocFreeRoundTrip(t *testing.T) {
	h := kheap.Mkheap()
	p := Mkpool(h, []int{16, 64, 256}, 4)

	a, err := p.Alloc(0, 40)
	if err != 0 {
		t.Fatalf("Alloc failed: %d", err)
	}
	if len(a.Data) < 40 {
		t.Fatalf("Data len = %d, want >= 40", len(a.Data))
	}
	if err := p.Free(0, 40, a); err != 0 {
		t.Fatalf("Free failed: %d", err)
	}
}

func TestClassForPromotesToSmallestCovering(t *testing.T) {
	p := Mkpool(kheap.Mkheap(), []int{16, 64, 256}, 4)
	c := p.classFor(40)
	if c == nil || c.size != 64 {
		t.Fatalf("classFor(40) = %+v, want size 64", c)
	}
}

func TestClassForRejectsOversizeRequest(t *testing.T) {
	p := Mkpool(kheap.Mkheap(), []int{16, 64}, 4)
	if c := p.classFor(1024); c != nil {
		t.Fatalf("expected no covering class for 1024, got %+v", c)
	}
}

func TestMagazineSpillsOnOverflow(t *testing.T) {
	h := kheap.Mkheap()
	p := Mkpool(h, []int{16}, 2)
	if err := p.Preload(0, 16); err != 0 {
		t.Fatalf("Preload failed: %d", err)
	}
	c := p.classFor(16)
	if len(c.mags[0].free) != c.capacity {
		t.Fatalf("Preload left %d free, want capacity %d", len(c.mags[0].free), c.capacity)
	}
	extra, err := h.Kmalloc(16, 8)
	if err != 0 {
		t.Fatalf("Kmalloc failed: %d", err)
	}
	if err := p.Free(0, 16, extra); err != 0 {
		t.Fatalf("Free failed: %d", err)
	}
	if len(c.mags[0].free) != c.capacity {
		t.Fatalf("magazine grew past capacity: %d > %d", len(c.mags[0].free), c.capacity)
	}
}
