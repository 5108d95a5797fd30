// Package pool implements §4.D: a size-classed slab allocator for
// short-lived fixed-size objects (ventries, vnodes, pages, threads), with
// a per-CPU magazine in front of each size class so the common case never
// takes the slab lock.
//
// Grounded on original_source/include/kernel/mm/pool.h for the size-class
// and magazine layout, built on top of kheap for slab backing storage
// (the teacher's pack has no slab allocator of its own; kheap.Kmalloc
// plays the role a real slab page's bump allocator would).
package pool

import (
	"ember/defs"
	"ember/kheap"
	"ember/klock"
	"ember/mem"
)

// magazine is a per-CPU LIFO stack of free objects for one size class,
// matching "a per-CPU magazine of free objects with capacity
// cache_capacity".
type magazine struct {
	free []*kheap.Alloc_t
}

// class is one size class: its object size, its slab source, and one
// magazine per CPU.
type class struct {
	size     int
	mags     [mem.MaxCPUs]magazine
	capacity int

	mu    klock.Spinmutex_t
	slabs []*kheap.Alloc_t // outstanding allocations not yet in any magazine
}

// Pool_t owns a slice of size classes, per §4.D.
type Pool_t struct {
	heap    *kheap.Heap_t
	classes []*class
}

// Mkpool builds a pool over sizes (ascending, e.g. {16, 32, 64, 128}),
// each magazine holding up to capacity objects, backed by heap for slab
// storage.
func Mkpool(heap *kheap.Heap_t, sizes []int, capacity int) *Pool_t {
	p := &Pool_t{heap: heap}
	for _, s := range sizes {
		p.classes = append(p.classes, &class{size: s, capacity: capacity})
	}
	return p
}

// classFor promotes size to the smallest covering class, per §4.D
// "promotes the request to the smallest covering class".
func (p *Pool_t) classFor(size int) *class {
	for _, c := range p.classes {
		if c.size >= size {
			return c
		}
	}
	return nil
}

// Preload warms cpu's magazine for size's class before first use, per
// pool_preload_cache.
func (p *Pool_t) Preload(cpu int, size int) defs.Err_t {
	c := p.classFor(size)
	if c == nil {
		return -defs.EINVAL
	}
	return p.refill(c, cpu)
}

func (p *Pool_t) refill(c *class, cpu int) defs.Err_t {
	c.mu.Lock(0)
	defer c.mu.Unlock()
	m := &c.mags[cpu]
	for len(m.free) < c.capacity {
		a, err := p.heap.Kmalloc(c.size, 8)
		if err != 0 {
			if len(m.free) > 0 {
				return 0
			}
			return err
		}
		m.free = append(m.free, a)
	}
	return 0
}

// Alloc pops from cpu's local magazine with interrupts disabled, refilling
// from the slab heap when empty, per §4.D pool_alloc.
func (p *Pool_t) Alloc(cpu int, size int) (*kheap.Alloc_t, defs.Err_t) {
	c := p.classFor(size)
	if c == nil {
		return nil, -defs.EINVAL
	}
	saved := klock.Irqsave()
	defer klock.Irqrestore(saved)

	c.mu.Lock(0)
	m := &c.mags[cpu]
	if len(m.free) == 0 {
		c.mu.Unlock()
		if err := p.refill(c, cpu); err != 0 {
			return nil, err
		}
		c.mu.Lock(0)
	}
	if len(m.free) == 0 {
		c.mu.Unlock()
		return nil, -defs.ENOMEM
	}
	a := m.free[len(m.free)-1]
	m.free = m.free[:len(m.free)-1]
	c.mu.Unlock()
	return a, 0
}

// Free mirrors Alloc: pushes a back onto cpu's local magazine, per §4.D
// pool_free. A magazine that overflows capacity spills the oldest entries
// back to the slab heap so a single CPU's free list cannot grow without
// bound.
func (p *Pool_t) Free(cpu int, size int, a *kheap.Alloc_t) defs.Err_t {
	c := p.classFor(size)
	if c == nil {
		return -defs.EINVAL
	}
	saved := klock.Irqsave()
	defer klock.Irqrestore(saved)

	c.mu.Lock(0)
	defer c.mu.Unlock()
	m := &c.mags[cpu]
	if len(m.free) >= c.capacity {
		spill := m.free[0]
		m.free = m.free[1:]
		p.heap.Kfree(spill)
	}
	m.free = append(m.free, a)
	return 0
}
