package mem

import "unsafe"

// VREC/VDIRECT/VEND/VUSER describe the kernel virtual-address slot layout
// that the rest of the kernel (vm/as.go in particular) reasons about.
// The teacher installs these as literal PML4 slots backed by a hardware
// direct map; this implementation simulates physical memory as a
// Go-managed arena (see Phys_init, Dmap) and has no page tables of its
// own to install, so only the slot numbers that leak into address
// arithmetic elsewhere (USERMIN) are load-bearing here. The others are
// kept for documentation parity with the address space the ELF loader
// and vm package assume.

/// VREC is the recursive mapping slot used by the kernel.
const VREC int = 0x42

/// VDIRECT is the direct-map slot.
const VDIRECT int = 0x44

/// VEND marks the end of kernel virtual space.
const VEND int = 0x50

/// VUSER is the first user-space slot.
const VUSER int = 0x59

/// USERMIN is the lowest user virtual address.
const USERMIN int = VUSER << 39

/// DMAPLEN is the length of the direct map in bytes.
const DMAPLEN int = 1 << 39

// simBase is the simulated physical base address of arena[0]. Chosen
// away from zero so a nil/zero Pa_t is never mistaken for a live page,
// the way a real boot loader reserves low memory.
const simBase Pa_t = 0x100000

// arena is the Go-managed backing store standing in for physical
// memory. Every Pa_t this package hands out is simBase-relative offset
// into it; Dmap/Dmap_v2p translate between the two.
var arena []Bytepg_t

func arenaBytes() []byte {
	if len(arena) == 0 {
		return nil
	}
	n := len(arena) * PGSIZE
	return (*[1 << 40]byte)(unsafe.Pointer(&arena[0]))[:n:n]
}

/// Dmaplen returns a slice over the arena starting at physical address p
/// for l bytes.
func Dmaplen(p Pa_t, l int) []uint8 {
	off := int(p - simBase)
	b := arenaBytes()
	return b[off : off+l]
}

/// Dmaplen32 is like Dmaplen but operates on 32-bit units.
/// p and l must be multiples of 4.
func Dmaplen32(p uintptr, l int) []uint32 {
	if p%4 != 0 || l%4 != 0 {
		panic("not 32bit aligned")
	}
	bs := Dmaplen(Pa_t(p), l)
	n := l / 4
	return (*[1 << 38]uint32)(unsafe.Pointer(&bs[0]))[:n:n]
}

/// Zerobpg is a byte representation of the zero page.
var Zerobpg *Bytepg_t

/// P_zeropg is the physical address of Zerobpg.
var P_zeropg Pa_t

/// Dmap_init brings up the zero page that Refpg_new depends on. The
/// teacher's version of this step walks CPUID/CR4 and writes PML4
/// entries to install a hardware direct map; this implementation has no
/// hardware page tables, since Dmap already resolves any Pa_t by
/// indexing the simulated arena, so marking the allocator live and
/// zeroing one page is all that remains.
func Dmap_init() {
	Physmem.Dmapinit = true
	var ok bool
	Zeropg, P_zeropg, ok = Physmem._refpg_new()
	if !ok {
		panic("oom in dmap init")
	}
	for i := range Zeropg {
		Zeropg[i] = 0
	}
	Physmem.Refup(P_zeropg)
	Zerobpg = Pg2bytes(Zeropg)
}
