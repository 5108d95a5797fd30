// Package kheap implements §4.C: a single contiguous kernel-heap VA
// window carved at boot, serving kmalloc/kfree off a best-fit free list
// without coalescing.
//
// Grounded on original_source/kernel/mm/vmalloc.h and
// include/kernel/mm/mm.h's chunk-list allocator; written in the teacher's
// struct-with-embedded-mutex idiom (klock.Spinmutex_t, matching
// vm.Vm_t/fs.Bdev_block_t's own embedded-lock style).
package kheap

import (
	"ember/defs"
	"ember/klock"
)

// ChunkMagic marks a live chunk header; Kfree rejects anything else.
const ChunkMagic = 0xb0b0cafe

// ChunkMaxSize bounds a single kmalloc request, per §4.C "caller-provided
// size must not exceed CHUNK_MAX_SIZE".
const ChunkMaxSize = 1 << 20

// HeapSize is the size of the VA window carved at boot, matching §4.C's
// "≈6 MiB".
const HeapSize = 6 << 20

const sentinel = uint16(0xa5a5)

// chunk is the free-list node kept alongside each allocation, matching
// §4.C's {magic, size, prev_offset, free, list_link}.
type chunk struct {
	magic  uint32
	size   int
	free   bool
	off    int
	prev   *chunk
	next   *chunk
}

// Alloc_t is the opaque handle Kmalloc returns. Go slices carry no inline
// header the way a C pointer-minus-header cast does, so Kfree validates
// against this handle's own magic rather than reading backward from
// Data's address — the one deliberate deviation from a byte-exact port of
// kmalloc/kfree's chunk-header layout.
type Alloc_t struct {
	c    *chunk
	Data []byte
}

// Heap_t is one kernel-heap arena.
type Heap_t struct {
	mu       klock.Spinmutex_t
	arena    []byte
	frontier int
	freelist *chunk
}

// Mkheap carves a new HeapSize arena, matching kheap_init's "single
// contiguous VA window ... carved at boot".
func Mkheap() *Heap_t {
	return &Heap_t{arena: make([]byte, HeapSize)}
}

func align(off, a int) int {
	if a <= 1 {
		return off
	}
	return (off + a - 1) &^ (a - 1)
}

// Kmalloc picks the best-fit free chunk whose post-alignment payload base
// meets align; otherwise bumps the high-water frontier. Padding inserted
// to satisfy alignment carries a sentinel so a debug walk of the arena can
// skip it, per §4.C.
func (h *Heap_t) Kmalloc(size, alignment int) (*Alloc_t, defs.Err_t) {
	if size <= 0 || size > ChunkMaxSize {
		return nil, -defs.EINVAL
	}
	h.mu.Lock(0)
	defer h.mu.Unlock()

	var best *chunk
	for c := h.freelist; c != nil; c = c.next {
		if !c.free || c.size < size || align(c.off, alignment) != c.off {
			continue
		}
		if best == nil || c.size < best.size {
			best = c
		}
	}
	if best != nil {
		best.free = false
		return &Alloc_t{c: best, Data: h.arena[best.off : best.off+size]}, 0
	}

	base := align(h.frontier, alignment)
	if base+2+size > len(h.arena) {
		return nil, -defs.ENOMEM
	}
	if base != h.frontier {
		// record the alignment gap as a skippable 2-byte-sentinel hole
		for i := h.frontier; i+1 < base; i += 2 {
			h.arena[i] = byte(sentinel >> 8)
			h.arena[i+1] = byte(sentinel & 0xff)
		}
	}
	c := &chunk{magic: ChunkMagic, size: size, off: base}
	c.next = h.freelist
	if h.freelist != nil {
		h.freelist.prev = c
	}
	h.freelist = c
	h.frontier = base + size
	return &Alloc_t{c: c, Data: h.arena[base : base+size]}, 0
}

// Kfree validates the chunk magic, marks it free, and links it onto the
// free list without coalescing, per §4.C.
func (h *Heap_t) Kfree(a *Alloc_t) defs.Err_t {
	if a == nil || a.c == nil || a.c.magic != ChunkMagic {
		return -defs.EINVAL
	}
	h.mu.Lock(0)
	defer h.mu.Unlock()
	a.c.free = true
	a.Data = nil
	return 0
}
