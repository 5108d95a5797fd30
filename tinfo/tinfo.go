// Package tinfo tracks per-thread kill/signal state in a global table keyed
// by thread id. The teacher's version additionally exposed Current/SetCurrent/
// ClearCurrent, backed by a patched Go runtime's segment-register-backed
// goroutine-local slot (runtime.Gptr/Setgptr); that hook does not exist on a
// stock toolchain, so this package drops it. Callers that need "the calling
// thread's" note now take a *Tnote_t explicitly, usually the one handed to
// them by package sched when it switched them onto a CPU (see percpu.CPU_t).
package tinfo

import (
	"sync"

	"ember/defs"
)

// Killnaps_t bundles the different ways a thread may be woken up early to
// notice it has been killed: a channel close, a condition variable, or
// (once woken) the error it should return to whatever syscall it was
// blocked in.
type Killnaps_t struct {
	Killch chan bool
	Cond   *sync.Cond
	Kerr   defs.Err_t
}

// Tnote_t is the per-thread note visible to the rest of the kernel for
// killing and reaping a thread; it does not carry scheduling state, which
// lives in sched.Thread_t.
type Tnote_t struct {
	sync.Mutex
	State    interface{}
	Alive    bool
	Killed   bool
	Isdoomed bool
	Killnaps Killnaps_t
}

// Doomed reports whether the note is marked doomed (Isdoomed), which the
// thread checks at its next checkpoint (syscall return, page fault,
// voluntary yield) without being interrupted. It does not set the mark.
func (tn *Tnote_t) Doomed() bool {
	tn.Lock()
	d := tn.Isdoomed
	tn.Unlock()
	return d
}

// Kill marks the thread as killed and wakes it if it is parked on Killnaps.
func (tn *Tnote_t) Kill(err defs.Err_t) {
	tn.Lock()
	tn.Killed = true
	tn.Killnaps.Kerr = err
	if tn.Killnaps.Killch != nil {
		close(tn.Killnaps.Killch)
		tn.Killnaps.Killch = nil
	}
	if tn.Killnaps.Cond != nil {
		tn.Killnaps.Cond.Broadcast()
	}
	tn.Unlock()
}

// Threadinfo_t is the system-wide table of live thread notes, indexed by
// thread id, matching the teacher's map-of-notes shape.
type Threadinfo_t struct {
	sync.Mutex
	Notes map[defs.Tid_t]*Tnote_t
}

// Mk_threadinfo allocates an empty thread table.
func Mk_threadinfo() *Threadinfo_t {
	return &Threadinfo_t{Notes: map[defs.Tid_t]*Tnote_t{}}
}

// Add allocates a new live thread note and registers it under tid.
func (ti *Threadinfo_t) Add(tid defs.Tid_t) *Tnote_t {
	ti.Lock()
	defer ti.Unlock()
	tn := &Tnote_t{Alive: true}
	ti.Notes[tid] = tn
	return tn
}

// Get looks up a thread's note; ok is false if the thread has already
// been reaped.
func (ti *Threadinfo_t) Get(tid defs.Tid_t) (*Tnote_t, bool) {
	ti.Lock()
	defer ti.Unlock()
	tn, ok := ti.Notes[tid]
	return tn, ok
}

// Del removes a thread's note once it has exited and been reaped.
func (ti *Threadinfo_t) Del(tid defs.Tid_t) {
	ti.Lock()
	delete(ti.Notes, tid)
	ti.Unlock()
}
