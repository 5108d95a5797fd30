// Package percpu implements the one-struct-per-CPU model of §4.H: a small,
// cache-line-sized record per CPU holding the pointers that would otherwise
// live behind a segment-relative "curcpu" access on real hardware.
//
// The teacher's own per-CPU current-thread access goes through a patched Go
// runtime's goroutine-local slot (runtime.Gptr/Setgptr, see tinfo.go's
// doc comment) — unavailable on a stock toolchain and out of scope per
// spec.md §1's "architecture-specific assembly ... specified only by the
// semantics it must uphold". This package replaces that implicit access
// with an explicit CPU_t handle looked up by CPU id (sched stores its run
// queue in each one); proc and klock take no CPU_t.
package percpu

import (
	"sync/atomic"

	"ember/defs"
	"ember/mem"
	"ember/tinfo"
)

// CPU_t is one CPU's current-execution bookkeeping.
type CPU_t struct {
	ID int

	CurTid  defs.Tid_t
	CurNote *tinfo.Tnote_t
	CurPid  defs.Pid_t

	// Sched holds the owning sched.Runqueue_t, stored as interface{} to
	// avoid an import cycle (sched needs percpu.CPU_t; percpu cannot
	// import sched back).
	Sched interface{}

	// InIrq is nonzero while this CPU is running an interrupt handler. No
	// package in this tree reads it; klock does not check it.
	InIrq int32

	// Critical is the nesting depth of preemption-disabled sections
	// (§4.I "td->critical_level > 0 defers preemption").
	Critical int32
}

var cpus [mem.MaxCPUs]CPU_t
var numCPU int32
var rr int32

// Init brings up n logical CPUs' bookkeeping and installs this package as
// mem's CurCPU hint source. n is clamped to mem.MaxCPUs.
func Init(n int) {
	if n > mem.MaxCPUs {
		n = mem.MaxCPUs
	}
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		cpus[i] = CPU_t{ID: i}
	}
	atomic.StoreInt32(&numCPU, int32(n))
	mem.CurCPU = pick
}

// pick returns a round-robin CPU index. Unlike real hardware, a goroutine
// has no fixed CPU affinity to report, so this is a sharding hint for
// mem's per-CPU free lists, not an identity query; mem already falls back
// to the global free list on a miss.
func pick() int {
	n := atomic.LoadInt32(&numCPU)
	if n <= 0 {
		return 0
	}
	v := atomic.AddInt32(&rr, 1)
	return int(v) % int(n)
}

// NumCPU reports how many logical CPUs were brought up by Init.
func NumCPU() int {
	return int(atomic.LoadInt32(&numCPU))
}

// CPU returns the bookkeeping record for logical CPU id.
func CPU(id int) *CPU_t {
	return &cpus[id]
}

// Enter marks this CPU as running note on behalf of tid/pid, mirroring
// the per-CPU current-thread pointer update a real context switch makes.
func (c *CPU_t) Enter(tid defs.Tid_t, pid defs.Pid_t, note *tinfo.Tnote_t) {
	c.CurTid = tid
	c.CurPid = pid
	c.CurNote = note
}

// Leave clears this CPU's current-thread bookkeeping, as happens when the
// scheduler switches to the idle thread.
func (c *CPU_t) Leave() {
	c.CurTid = defs.NOTID
	c.CurPid = defs.NOPID
	c.CurNote = nil
}
