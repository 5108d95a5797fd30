// Package irq implements §4.F's IRQ and IPI layer: vector reservation and
// handler dispatch for device interrupts, plus the cross-CPU IPI
// primitives (INVLPG/SCHEDULE/PANIC) that vm and sched need for TLB
// shootdown and remote wakeups.
//
// The teacher's pack carries this logic only as an empty `apic` directory;
// grounded instead on original_source/include/kernel/device/apic.h and
// kernel/cpu/ioapic.c for the vector-pool/IRQ-table shape, and on the
// teacher's msi/msi.go (kept, reused directly as the MSI vector source a
// PCI-class device draws from) for the "reserve before assigning" idiom
// this package generalizes to legacy ISA IRQ vectors.
package irq

import (
	"fmt"

	"ember/klock"
)

// First vector legacy/ISA IRQs may be remapped to, matching the teacher's
// own MSI pool starting above it (msi.Msi_alloc's avail set starts at 56);
// spec.md §9 calls for vectors to be "pinned via explicit reservation"
// rather than assigned ad hoc.
const firstVector = 32
const numVectors = 24

type handler_t struct {
	fn   func(data interface{})
	data interface{}
}

var mu klock.Spinmutex_t
var freeVecs = map[int]bool{}
var irqTable = map[int]int{} // irqnum -> vector
var handlers = map[int]*handler_t{}

func init() {
	for v := firstVector; v < firstVector+numVectors; v++ {
		freeVecs[v] = true
	}
}

// Reserve allocates a vector for irqnum, preferring hint when free,
// matching irq_reserve_irqnum's contract.
func Reserve(irqnum, hint int) (int, bool) {
	mu.Lock(0)
	defer mu.Unlock()
	if v, ok := irqTable[irqnum]; ok {
		return v, true
	}
	if hint != 0 && freeVecs[hint] {
		delete(freeVecs, hint)
		irqTable[irqnum] = hint
		return hint, true
	}
	for v := range freeVecs {
		delete(freeVecs, v)
		irqTable[irqnum] = v
		return v, true
	}
	return 0, false
}

// GetVector returns the vector reserved for irqnum, if any.
func GetVector(irqnum int) (int, bool) {
	mu.Lock(0)
	defer mu.Unlock()
	v, ok := irqTable[irqnum]
	return v, ok
}

// RegisterHandler installs fn as irqnum's handler, called with data on
// every delivery until Disable.
func RegisterHandler(irqnum int, fn func(data interface{}), data interface{}) {
	mu.Lock(0)
	handlers[irqnum] = &handler_t{fn: fn, data: data}
	mu.Unlock()
}

// Enable dispatches a pending interrupt for irqnum to its handler. A real
// IOAPIC would unmask the line and let the CPU vector to a trampoline;
// this simulation has a software caller invoke Enable directly from the
// device model (the AHCI-style polling loop spec.md §9 specifies for this
// kernel, not MSI), so Enable doubles as "deliver now".
func Enable(irqnum int) {
	mu.Lock(0)
	h := handlers[irqnum]
	mu.Unlock()
	if h != nil {
		h.fn(h.data)
	}
}

// Disable removes irqnum's handler.
func Disable(irqnum int) {
	mu.Lock(0)
	delete(handlers, irqnum)
	mu.Unlock()
}

// Kind enumerates the IPI types of §4.F.
type Kind int

const (
	NOOP Kind = iota
	INVLPG
	SCHEDULE
	PANIC
)

// Invlpg_t is the TLB-shootdown IPI payload: a VA range plus the address
// space it applies to.
type Invlpg_t struct {
	AS       uintptr
	Startva  uintptr
	Pgcount  int
}

// ipi_t is the process-wide {type, data, ack} triple §4.F's IPI section
// describes, written under mu and read by every receiving CPU.
type ipi_t struct {
	kind Kind
	data interface{}
}

var ipiMu klock.Spinmutex_t
var pending ipi_t
var ack int32

// receiver_t is installed once per simulated CPU through RegisterCPU, which
// boot.Boot calls during bring-up.
type receiver_t func(kind Kind, data interface{})

var receivers = map[int]receiver_t{}

// RegisterCPU installs fn as the IPI handler for logical CPU id.
func RegisterCPU(id int, fn receiver_t) {
	ipiMu.Lock(0)
	receivers[id] = fn
	ipiMu.Unlock()
}

// Send delivers kind/data to every registered id in targets. Receivers run
// inline, synchronously, rather than from a real interrupt frame, since
// this simulation has no interrupt frame to run them from; Send returns
// once each has returned and collects no acknowledgement count.
func Send(kind Kind, data interface{}, targets []int) {
	ipiMu.Lock(0)
	pending = ipi_t{kind: kind, data: data}
	want := 0
	fns := make([]receiver_t, 0, len(targets))
	for _, id := range targets {
		if fn, ok := receivers[id]; ok {
			fns = append(fns, fn)
			want++
		}
	}
	ipiMu.Unlock()

	for _, fn := range fns {
		fn(kind, data)
	}
	_ = want
}

// Shootdown sends an INVLPG IPI covering [startva, startva+pgcount*pagesz)
// for address space as to every CPU in targets. vm.Vm_t.Tlbshoot installs
// itself as the caller of this function indirectly through its own
// package-level hook so that vm need not import irq directly; see
// vm/as.go's Shootdown hook variable.
func Shootdown(as uintptr, startva uintptr, pgcount int, targets []int) {
	if len(targets) == 0 {
		return
	}
	Send(INVLPG, Invlpg_t{AS: as, Startva: startva, Pgcount: pgcount}, targets)
}

// Panic halts every other CPU via an IPI_PANIC, per §7's invariant-violation
// policy ("halt all CPUs via IPI_PANIC"). targets should list every CPU but
// the caller's own.
func Panic(reason string, targets []int) {
	fmt.Printf("irq: IPI_PANIC: %s\n", reason)
	Send(PANIC, reason, targets)
}
