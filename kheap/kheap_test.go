package kheap

import "testing"

func TestKmallocKfreeRoundTrip(t *testing.T) {
	h := Mkheap()
	a, err := h.Kmalloc(64, 8)
	if err != 0 {
		t.Fatalf("Kmalloc failed: %d", err)
	}
	if len(a.Data) != 64 {
		t.Fatalf("Data len = %d, want 64", len(a.Data))
	}
	if err := h.Kfree(a); err != 0 {
		t.Fatalf("Kfree failed: %d", err)
	}
	if a.Data != nil {
		t.Fatal("Kfree should clear the handle's Data slice")
	}
}

func TestKmallocRejectsOversize(t *testing.T) {
	h := Mkheap()
	if _, err := h.Kmalloc(ChunkMaxSize+1, 8); err == 0 {
		t.Fatal("expected an error for a request over ChunkMaxSize")
	}
}

func TestKfreeRejectsForeignHandle(t *testing.T) {
	h := Mkheap()
	if err := h.Kfree(&Alloc_t{}); err == 0 {
		t.Fatal("expected EINVAL for a handle with no chunk")
	}
}

func TestKmallocReusesFreedChunk(t *testing.T) {
	h := Mkheap()
	a, _ := h.Kmalloc(128, 1)
	frontierAfterFirst := h.frontier
	if err := h.Kfree(a); err != 0 {
		t.Fatalf("Kfree failed: %d", err)
	}
	b, err := h.Kmalloc(128, 1)
	if err != 0 {
		t.Fatalf("Kmalloc failed: %d", err)
	}
	if h.frontier != frontierAfterFirst {
		t.Fatalf("expected the freed chunk to be reused without bumping the frontier, frontier=%d want=%d", h.frontier, frontierAfterFirst)
	}
	_ = b
}
