package pgcache

import (
	"testing"

	"ember/mem"
)

func TestInsertLookupRemoveRoundTrip(t *testing.T) {
	tr := Mktree()
	p := &Page_t{}
	off := int64(3 * mem.PGSIZE)

	if old := tr.Insert(off, p); old != nil {
		t.Fatalf("Insert into empty slot returned %v, want nil", old)
	}
	if got := tr.Lookup(off); got != p {
		t.Fatalf("Lookup = %v, want %v", got, p)
	}
	if old := tr.Remove(off); old != p {
		t.Fatalf("Remove = %v, want %v", old, p)
	}
	if got := tr.Lookup(off); got != nil {
		t.Fatalf("Lookup after Remove = %v, want nil", got)
	}
}

func TestVisitPagesRangeAndOrder(t *testing.T) {
	tr := Mktree()
	var offs []int64
	for i := int64(0); i < 5; i++ {
		off := i * int64(mem.PGSIZE)
		tr.Insert(off, &Page_t{})
		offs = append(offs, off)
	}
	var seen []int64
	tr.VisitPages(offs[1], offs[4], func(off int64, p *Page_t) {
		seen = append(seen, off)
	})
	want := offs[1:4]
	if len(seen) != len(want) {
		t.Fatalf("VisitPages saw %d pages, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("VisitPages[%d] = %d, want %d", i, seen[i], want[i])
		}
	}
}

func TestCloneSharesPagesAndBumpsRefcount(t *testing.T) {
	tr := Mktree()
	p := &Page_t{}
	tr.Insert(0, p)

	clone := tr.Clone()
	if got := clone.Lookup(0); got != p {
		t.Fatalf("clone Lookup(0) = %v, want shared page %v", got, p)
	}
	if p.Refcnt() != 1 {
		t.Fatalf("Refcnt after Clone = %d, want 1", p.Refcnt())
	}
}

func TestTreeRefUnref(t *testing.T) {
	tr := Mktree()
	tr.Ref()
	if tr.Unref() {
		t.Fatal("Unref should not report last-reference after an extra Ref")
	}
	if !tr.Unref() {
		t.Fatal("Unref should report last-reference once the extra ref is dropped")
	}
}
