package mem

import "testing"

func TestPhysInitReservesPages(t *testing.T) {
	phys := Phys_init()
	Dmap_init()
	if phys.freelen <= 0 {
		t.Fatalf("expected a non-empty free list, got freelen=%d", phys.freelen)
	}
	if !phys.Dmapinit {
		t.Fatal("expected Dmapinit to be set after Dmap_init")
	}
	if len(arena) == 0 {
		t.Fatal("expected Phys_init to allocate the simulated arena")
	}
}

func TestRefpgNewZeroesPage(t *testing.T) {
	pg, p_pg, ok := Physmem.Refpg_new()
	if !ok {
		t.Fatal("Refpg_new failed")
	}
	for i, w := range pg {
		if w != 0 {
			t.Fatalf("word %d not zeroed: %v", i, w)
		}
	}
	if p_pg == 0 {
		t.Fatal("expected a non-zero physical address")
	}
}

func TestDmapRoundTrip(t *testing.T) {
	_, p_pg, ok := Physmem.Refpg_new()
	if !ok {
		t.Fatal("Refpg_new failed")
	}
	pg := Physmem.Dmap(p_pg)
	back := Physmem.Dmap_v2p(pg)
	if back != p_pg {
		t.Fatalf("Dmap_v2p(Dmap(%v)) = %v, want %v", p_pg, back, p_pg)
	}
}

func TestRefupRefdown(t *testing.T) {
	_, p_pg, ok := Physmem.Refpg_new()
	if !ok {
		t.Fatal("Refpg_new failed")
	}
	Physmem.Refup(p_pg)
	if got := Physmem.Refcnt(p_pg); got != 1 {
		t.Fatalf("Refcnt = %d, want 1", got)
	}
	if freed := Physmem.Refdown(p_pg); !freed {
		t.Fatal("expected the page to be freed once its only ref is dropped")
	}
	if got := Physmem.Refcnt(p_pg); got != 0 {
		t.Fatalf("Refcnt after free = %d, want 0", got)
	}
}

func TestDmaplenSpansBytes(t *testing.T) {
	_, p_pg, ok := Physmem.Refpg_new()
	if !ok {
		t.Fatal("Refpg_new failed")
	}
	bs := Dmaplen(p_pg, PGSIZE)
	if len(bs) != PGSIZE {
		t.Fatalf("Dmaplen returned %d bytes, want %d", len(bs), PGSIZE)
	}
	bs[0] = 0xab
	bpg := Physmem.Dmap8(p_pg)
	if bpg[0] != 0xab {
		t.Fatal("Dmaplen and Dmap8 should view the same backing page")
	}
}
