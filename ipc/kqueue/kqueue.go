// Package kqueue implements §4.L's event-notification core and §6's
// kqueue wire format: `struct kevent{ident, filter, flags, fflags, data,
// udata}` over EVFILT_{READ,WRITE,VNODE,PROC,SIGNAL,TIMER,USER}, plus the
// EVFILT_USER/NOTE_TRIGGER supplemented feature from
// include/abi/kevent.h's full filter set (SPEC_FULL §C).
//
// Grounded on original_source/include/abi/kevent.h for the filter/flag
// bit layout and vfs.Knlist_t (kept, this package is its primary
// consumer) for the notification fan-in a vnode's knlist performs.
package kqueue

import (
	"ember/defs"
	"ember/klock"
)

// Filter enumerates the event sources a knote can watch, per §6.
type Filter int16

const (
	EVFILT_READ Filter = -iota - 1
	EVFILT_WRITE
	EVFILT_VNODE
	EVFILT_PROC
	EVFILT_SIGNAL
	EVFILT_TIMER
	EVFILT_USER
)

// kevent flags.
const (
	EV_ADD     = 0x0001
	EV_DELETE  = 0x0002
	EV_ENABLE  = 0x0004
	EV_DISABLE = 0x0008
	EV_ONESHOT = 0x0010
	EV_CLEAR   = 0x0020
	EV_ERROR   = 0x4000
)

// NOTE_* fflags, the vnode/user filter note bits spec.md and SPEC_FULL §C
// call out.
const (
	NOTE_WRITE   = 0x0002
	NOTE_EXTEND  = 0x0004
	NOTE_DELETE  = 0x0001
	NOTE_TRIGGER = 0x01000000 // EVFILT_USER: force the note active
	NOTE_FFNOP   = 0x00000000
	NOTE_FFAND   = 0x40000000
	NOTE_FFOR    = 0x80000000
	NOTE_FFCOPY  = 0xc0000000
	NOTE_FFCTRLMASK = 0xc0000000
	NOTE_FFLAGSMASK = 0x00ffffff
)

// Kevent_t is the wire struct, per §6.
type Kevent_t struct {
	Ident  uint64
	Filter Filter
	Flags  uint16
	Fflags uint32
	Data   int64
	Udata  uintptr
}

// Knote_t is one registered watch: the filter/ident pair, its pending
// fflags accumulator, and whether EV_CLEAR should zero Data after a read.
type Knote_t struct {
	Ident  uint64
	Filter Filter
	Flags  uint16
	Fflags uint32
	Data   int64

	active bool
}

// Kqueue_t aggregates activations across every object a process has
// registered knotes against, per §4.L "a process's kqueue aggregates
// activations across objects."
type Kqueue_t struct {
	mu     klock.Spinmutex_t
	cond   klock.Cond_t
	notes  map[uint64]map[Filter]*Knote_t
}

func Mkqueue() *Kqueue_t {
	return &Kqueue_t{notes: map[uint64]map[Filter]*Knote_t{}}
}

// Register installs or updates a knote per ev's flags: EV_ADD inserts,
// EV_DELETE removes, EV_ENABLE/EV_DISABLE toggle delivery.
func (kq *Kqueue_t) Register(ev Kevent_t) defs.Err_t {
	kq.mu.Lock(0)
	defer kq.mu.Unlock()

	byFilter, ok := kq.notes[ev.Ident]
	if !ok {
		byFilter = map[Filter]*Knote_t{}
		kq.notes[ev.Ident] = byFilter
	}

	if ev.Flags&EV_DELETE != 0 {
		delete(byFilter, ev.Filter)
		return 0
	}

	kn, ok := byFilter[ev.Filter]
	if !ok {
		if ev.Flags&EV_ADD == 0 {
			return -defs.ENOENT
		}
		kn = &Knote_t{Ident: ev.Ident, Filter: ev.Filter}
		byFilter[ev.Filter] = kn
	}
	if ev.Flags&EV_ADD != 0 {
		kn.Fflags = ev.Fflags
		kn.Flags |= ev.Flags & (EV_ONESHOT | EV_CLEAR)
	}
	if ev.Flags&EV_DISABLE != 0 {
		kn.Flags |= EV_DISABLE
	}
	if ev.Flags&EV_ENABLE != 0 {
		kn.Flags &^= EV_DISABLE
	}
	return 0
}

// Activate marks every knote on ident whose filter matches the hint bits
// as active and bumps Data, matching vfs.Knlist_t.Activate's caller
// contract (a vnode calls this through the knlist it owns) and
// EVFILT_USER's NOTE_TRIGGER ("force the note active" regardless of
// hint).
func (kq *Kqueue_t) Activate(ident uint64, hint int) {
	kq.mu.Lock(0)
	defer kq.mu.Unlock()
	byFilter, ok := kq.notes[ident]
	if !ok {
		return
	}
	for _, kn := range byFilter {
		if kn.Flags&EV_DISABLE != 0 {
			continue
		}
		if kn.Filter == EVFILT_USER && hint&NOTE_TRIGGER != 0 {
			kn.active = true
			kn.Data++
			continue
		}
		if int(kn.Fflags)&hint != 0 || hint == 0 {
			kn.active = true
			kn.Data++
		}
	}
	kq.cond.Broadcast()
}

// Wait blocks until at least one registered knote is active, then drains
// up to len(out) of them into out (clearing EV_ONESHOT/EV_CLEAR notes per
// their flags), returning the count filled.
func (kq *Kqueue_t) Wait(out []Kevent_t) int {
	kq.mu.Lock(0)
	defer kq.mu.Unlock()
	for {
		n := kq.drainLocked(out)
		if n > 0 {
			return n
		}
		kq.cond.Wait(defs.NOTID, &kq.mu)
	}
}

func (kq *Kqueue_t) drainLocked(out []Kevent_t) int {
	n := 0
	for _, byFilter := range kq.notes {
		for filt, kn := range byFilter {
			if !kn.active || n >= len(out) {
				continue
			}
			out[n] = Kevent_t{Ident: kn.Ident, Filter: kn.Filter, Data: kn.Data}
			n++
			if kn.Flags&EV_CLEAR != 0 {
				kn.active = false
				kn.Data = 0
			}
			if kn.Flags&EV_ONESHOT != 0 {
				delete(byFilter, filt)
			}
		}
	}
	return n
}
