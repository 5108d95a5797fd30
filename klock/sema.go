package klock

import (
	"sync/atomic"

	"ember/defs"
)

// Sema_t is a counting semaphore: Down with count==0 blocks on the
// semaphore's waitqueue; Up prefers to wake a waiter over incrementing the
// count, matching §4.J's "up prefers to wake a waiter over incrementing the
// count."
type Sema_t struct {
	count int64
	wq    Waitq_t
}

// Mksema constructs a semaphore with the given initial count.
func Mksema(n int64) *Sema_t {
	return &Sema_t{count: n}
}

// Down blocks until the semaphore's count is positive, then consumes one
// unit.
func (s *Sema_t) Down(who defs.Tid_t) {
	for {
		if atomic.AddInt64(&s.count, -1) >= 0 {
			return
		}
		// oversubtracted; put it back and park until woken
		atomic.AddInt64(&s.count, 1)
		s.wq.Wait(who, "sema")
		// Up handed its unit directly to this waiter
		return
	}
}

// Trydown attempts a non-blocking Down, returning whether it succeeded.
func (s *Sema_t) Trydown() bool {
	for {
		c := atomic.LoadInt64(&s.count)
		if c <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&s.count, c, c-1) {
			return true
		}
	}
}

// Up releases one unit, waking a waiter if any is parked rather than
// letting the count simply climb.
func (s *Sema_t) Up() {
	if !s.wq.Empty() {
		s.wq.Signal()
		return
	}
	atomic.AddInt64(&s.count, 1)
}
