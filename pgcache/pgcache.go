// Package pgcache implements §4.E: a per-file radix tree keyed by byte
// offset, fanout 64, with leaves holding pages. The tree itself is
// reference-counted so multiple mappings (and multiple fds) can share one
// cache.
//
// Grounded on original_source/include/kernel/mm/mm.h's page-cache
// description and the teacher's own fs/blk.go block-list traversal for
// the visit/writeback idiom (VisitPages below plays the role blk.go's
// linked BlkList_t walk plays for dirty-block writeback).
package pgcache

import (
	"sync/atomic"

	"ember/klock"
	"ember/mem"
)

const bitsPerLevel = 6
const fanout = 1 << bitsPerLevel // 64, per §4.E

// Page_t is one cached page: the physical backing plus its own refcount,
// since Clone shares pages across trees rather than copying them.
type Page_t struct {
	Pg     mem.Pg_t
	Pa     mem.Pa_t
	refcnt int32
}

func (p *Page_t) ref()  { atomic.AddInt32(&p.refcnt, 1) }
func (p *Page_t) Refcnt() int32 { return atomic.LoadInt32(&p.refcnt) }

// node is one radix level: either an interior node fanning out to fanout
// children, or (when leaf is set) a leaf holding up to fanout pages
// directly.
type node struct {
	leaf  bool
	kids  [fanout]*node
	pages [fanout]*Page_t
}

// levels is how many 6-bit digits of the page index this tree indexes
// before reaching a leaf; chosen generously so a multi-gigabyte file's
// offsets all fit (64^4 pages ≈ 16M pages ≈ 64GiB at a 4KiB page size).
const levels = 4

// Tree_t is one file's page cache, reference-counted so page_cache_clone
// can hand out a shared view.
type Tree_t struct {
	mu      klock.Spinmutex_t
	root    *node
	refcnt  int32
}

// Mktree allocates an empty page-cache tree with one reference.
func Mktree() *Tree_t {
	return &Tree_t{root: &node{}, refcnt: 1}
}

func pageIndex(off int64) uint64 {
	return uint64(off) / uint64(mem.PGSIZE)
}

func digit(idx uint64, level int) int {
	shift := uint((levels - 1 - level) * bitsPerLevel)
	return int((idx >> shift) & (fanout - 1))
}

// descend walks from root to the leaf node owning idx, creating interior
// nodes along the way when create is set; returns nil if create is false
// and the path doesn't exist yet.
func descend(root *node, idx uint64, create bool) *node {
	n := root
	for level := 0; level < levels-1; level++ {
		d := digit(idx, level)
		if n.kids[d] == nil {
			if !create {
				return nil
			}
			n.kids[d] = &node{}
		}
		n = n.kids[d]
	}
	return n
}

// Lookup returns the page cached at off, or nil, per pgcache_lookup.
func (t *Tree_t) Lookup(off int64) *Page_t {
	t.mu.Lock(0)
	defer t.mu.Unlock()
	idx := pageIndex(off)
	leaf := descend(t.root, idx, false)
	if leaf == nil {
		return nil
	}
	return leaf.pages[digit(idx, levels-1)]
}

// Insert atomically replaces whatever page was cached at off with p,
// returning the page it displaced (nil if none), per pgcache_insert.
func (t *Tree_t) Insert(off int64, p *Page_t) *Page_t {
	t.mu.Lock(0)
	defer t.mu.Unlock()
	idx := pageIndex(off)
	leaf := descend(t.root, idx, true)
	d := digit(idx, levels-1)
	old := leaf.pages[d]
	leaf.pages[d] = p
	return old
}

// Remove clears off's slot and returns the page that was there, per the
// round-trip law in §8: after pgcache_remove(off,&q), q==p and
// pgcache_lookup(off)==null.
func (t *Tree_t) Remove(off int64) *Page_t {
	t.mu.Lock(0)
	defer t.mu.Unlock()
	idx := pageIndex(off)
	leaf := descend(t.root, idx, false)
	if leaf == nil {
		return nil
	}
	d := digit(idx, levels-1)
	old := leaf.pages[d]
	leaf.pages[d] = nil
	return old
}

// VisitPages walks every cached page whose offset falls in [start, end)
// in increasing-offset order, invoking fn, per pgcache_visit_pages.
func (t *Tree_t) VisitPages(start, end int64, fn func(off int64, p *Page_t)) {
	t.mu.Lock(0)
	defer t.mu.Unlock()
	first := pageIndex(start)
	last := pageIndex(end)
	var walk func(n *node, level int, prefix uint64)
	walk = func(n *node, level int, prefix uint64) {
		if n == nil {
			return
		}
		if level == levels-1 {
			for d, p := range n.pages {
				if p == nil {
					continue
				}
				idx := prefix<<bitsPerLevel | uint64(d)
				if idx < first || idx >= last {
					continue
				}
				fn(int64(idx)*int64(mem.PGSIZE), p)
			}
			return
		}
		for d, k := range n.kids {
			walk(k, level+1, prefix<<bitsPerLevel|uint64(d))
		}
	}
	walk(t.root, 0, 0)
}

// Clone produces a new tree sharing every page with t, each page's
// refcount incremented, per pgcache_clone. The returned tree starts with
// one reference of its own.
func (t *Tree_t) Clone() *Tree_t {
	t.mu.Lock(0)
	defer t.mu.Unlock()
	nt := &Tree_t{root: &node{}, refcnt: 1}
	var walk func(src *node, level int) *node
	walk = func(src *node, level int) *node {
		if src == nil {
			return nil
		}
		dst := &node{}
		if level == levels-1 {
			for d, p := range src.pages {
				if p != nil {
					p.ref()
				}
				dst.pages[d] = p
			}
			return dst
		}
		for d, k := range src.kids {
			dst.kids[d] = walk(k, level+1)
		}
		return dst
	}
	nt.root = walk(t.root, 0)
	return nt
}

// Ref/Unref implement the tree-level refcounting §4.E calls for ("the
// tree itself is reference-counted so multiple mappings can share one
// cache"). Unref returns true once the last reference drops.
func (t *Tree_t) Ref()   { atomic.AddInt32(&t.refcnt, 1) }
func (t *Tree_t) Unref() bool {
	return atomic.AddInt32(&t.refcnt, -1) == 0
}
