package klock

import (
	"fmt"
	"sync"

	"ember/defs"
	"ember/hashtable"
)

// waiter_t is one thread's registration on a Waitq_t: a channel it blocks
// receiving from, plus the waiting tid and its wait tag for postmortem
// debugging.
type waiter_t struct {
	tid    defs.Tid_t
	wakeup chan struct{}
	tag    string
}

// Waitq_t is a FIFO of parked waiters. Waking is not guaranteed FIFO across
// distinct policies elsewhere in the kernel (the scheduler's run-queue
// insertion order governs actual resumption), but within one Waitq_t wakeup
// order matches arrival order.
type Waitq_t struct {
	sync.Mutex
	ident   interface{}
	waiters []*waiter_t
}

// Wait parks the calling thread (identified by tid, used only for
// diagnostics and invariant 6's t ∈ t.waitq.waiters check) on the queue
// under tag, returning once woken by Signal/Broadcast.
func (wq *Waitq_t) Wait(tid defs.Tid_t, tag string) {
	w := &waiter_t{tid: tid, wakeup: make(chan struct{}), tag: tag}
	wq.Lock()
	wq.waiters = append(wq.waiters, w)
	wq.Unlock()
	<-w.wakeup
}

// remove drops w from the waiter list; called once a waiter has been woken
// so a stale entry can't be woken twice.
func (wq *Waitq_t) remove(w *waiter_t) {
	for i, o := range wq.waiters {
		if o == w {
			wq.waiters = append(wq.waiters[:i], wq.waiters[i+1:]...)
			return
		}
	}
}

// Signal wakes the single longest-waiting thread, if any.
func (wq *Waitq_t) Signal() {
	wq.Lock()
	defer wq.Unlock()
	if len(wq.waiters) == 0 {
		return
	}
	w := wq.waiters[0]
	wq.remove(w)
	close(w.wakeup)
}

// Broadcast wakes every currently-parked waiter.
func (wq *Waitq_t) Broadcast() {
	wq.Lock()
	defer wq.Unlock()
	for _, w := range wq.waiters {
		close(w.wakeup)
	}
	wq.waiters = nil
}

// Empty reports whether no thread is currently parked, used by callers
// (Sema_t.Up, Rwmutex_t.WUnlock) to decide whether waking is useful.
func (wq *Waitq_t) Empty() bool {
	wq.Lock()
	defer wq.Unlock()
	return len(wq.waiters) == 0
}

// waitqmap is the process-wide hash from ident to Waitq_t (§4.J "Waitqueue
// map"), guarded by one global spin mutex as the spec requires; the
// individual Waitq_t is protected by its own mutex thereafter, matching
// §5's "the individual waitqueue is protected by its associated lock."
var (
	waitqmapLock Spinmutex_t
	waitqmap     = hashtable.MkHash(512)
)

// identKey turns an arbitrary ident pointer into a hashtable-compatible key;
// Hashtable_t only accepts a handful of concrete key types, so pointers are
// rendered through their address.
func identKey(ident interface{}) string {
	return fmt.Sprintf("%p", ident)
}

// Waitq_lookup_or_make returns the waitqueue registered for ident, creating
// and installing one the first time it is asked for. self is the queue a
// thread already owns (its "own_waitq" in the source's terms); when non-nil
// it is installed instead of a freshly allocated one so a thread always has
// one available without an allocation on the common path.
func Waitq_lookup_or_make(ident interface{}, self *Waitq_t) *Waitq_t {
	key := identKey(ident)
	waitqmapLock.Lock(0)
	defer waitqmapLock.Unlock()
	if v, ok := waitqmap.Get(key); ok {
		return v.(*Waitq_t)
	}
	wq := self
	if wq == nil {
		wq = &Waitq_t{ident: ident}
	} else {
		wq.ident = ident
	}
	waitqmap.Set(key, wq)
	return wq
}

// Waitq_forget removes ident's waitqueue once nothing can still be waiting
// on it (e.g. the object it named was freed).
func Waitq_forget(ident interface{}) {
	key := identKey(ident)
	waitqmapLock.Lock(0)
	defer waitqmapLock.Unlock()
	if _, ok := waitqmap.Get(key); ok {
		waitqmap.Del(key)
	}
}
