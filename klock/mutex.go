package klock

import (
	"sync/atomic"

	"ember/defs"
)

// Sleepmutex_t is the blocking mutex of §4.J: a fast test-and-set, falling
// back to the waitqueue looked up by the mutex's own address on contention.
// Recursive acquire by the owning thread is supported.
type Sleepmutex_t struct {
	locked int32
	owner  defs.Tid_t
	count  int32
	ownq   Waitq_t
}

// Lock blocks until the mutex is held by who, recursing if who already
// owns it.
func (mu *Sleepmutex_t) Lock(who defs.Tid_t) {
	if atomic.LoadInt32(&mu.locked) != 0 && mu.owner == who {
		mu.count++
		return
	}
	for !atomic.CompareAndSwapInt32(&mu.locked, 0, 1) {
		wq := Waitq_lookup_or_make(mu, &mu.ownq)
		wq.Wait(who, "sleepmutex")
	}
	mu.owner = who
	mu.count = 1
}

// Unlock releases one level of recursion, waking one waiter once the mutex
// is actually freed.
func (mu *Sleepmutex_t) Unlock() {
	mu.count--
	if mu.count > 0 {
		return
	}
	mu.owner = 0
	atomic.StoreInt32(&mu.locked, 0)
	Waitq_lookup_or_make(mu, nil).Signal()
}

// Rwmutex_t is the shared-mode variant: many readers, or one writer, never
// both, matching §4.J's "Shared mode is a separate rwlock with
// reader/writer counts."
type Rwmutex_t struct {
	state   int32 // 0 free, -1 write-held, >0 reader count
	writers Waitq_t
	readers Waitq_t
	mu      Spinmutex_t
}

// RLock blocks until a read lock is granted.
func (rw *Rwmutex_t) RLock(who defs.Tid_t) {
	for {
		rw.mu.Lock(who)
		if rw.state >= 0 {
			rw.state++
			rw.mu.Unlock()
			return
		}
		rw.mu.Unlock()
		rw.readers.Wait(who, "rwmutex-r")
	}
}

// RUnlock releases a read lock, waking a pending writer once no readers
// remain.
func (rw *Rwmutex_t) RUnlock(who defs.Tid_t) {
	rw.mu.Lock(who)
	rw.state--
	wake := rw.state == 0
	rw.mu.Unlock()
	if wake {
		rw.writers.Signal()
	}
}

// WLock blocks until an exclusive write lock is granted.
func (rw *Rwmutex_t) WLock(who defs.Tid_t) {
	for {
		rw.mu.Lock(who)
		if rw.state == 0 {
			rw.state = -1
			rw.mu.Unlock()
			return
		}
		rw.mu.Unlock()
		rw.writers.Wait(who, "rwmutex-w")
	}
}

// WUnlock releases a write lock, preferring to wake a waiting writer over
// readers, matching the teacher's writer-starvation-avoidance bias implicit
// in its waitqueue FIFO order.
func (rw *Rwmutex_t) WUnlock(who defs.Tid_t) {
	rw.mu.Lock(who)
	rw.state = 0
	rw.mu.Unlock()
	if !rw.writers.Empty() {
		rw.writers.Signal()
	} else {
		rw.readers.Broadcast()
	}
}
