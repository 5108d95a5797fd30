package klock

import "ember/defs"

// Locker_i is whatever Cond_t.Wait drops and reacquires around a sleep:
// either a Sleepmutex_t or (less commonly) a Spinmutex_t, matching §4.J's
// "cond_wait atomically drops lock ... re-acquires lock on wake."
type Locker_i interface {
	Lock(defs.Tid_t)
	Unlock()
}

// Cond_t is a condition variable: cond_wait enqueues on the cv's own
// waitqueue (tagged by Name), cond_signal/cond_broadcast wake one or all.
//
// The source's cond_wait has a latent bug noted in spec.md's design notes:
// its non-timeout, non-signal path never decrements `waiters` on return,
// only cond_wait_timeout does. This implementation always decrements on
// every return path instead, per the spec's explicit "treat as a bug"
// resolution.
type Cond_t struct {
	Name    string
	waiters int
	wq      Waitq_t
}

// Wait drops lock, blocks until signaled, then reacquires lock before
// returning.
func (c *Cond_t) Wait(who defs.Tid_t, lock Locker_i) {
	c.waiters++
	lock.Unlock()
	c.wq.Wait(who, c.Name)
	c.waiters--
	lock.Lock(who)
}

// Signal wakes a single waiter, if any are parked.
func (c *Cond_t) Signal() {
	c.wq.Signal()
}

// Broadcast wakes every parked waiter.
func (c *Cond_t) Broadcast() {
	c.wq.Broadcast()
}

// Waiters reports the number of threads currently parked on the condition,
// used by Destroy-style assertions (a cond with outstanding waiters cannot
// be torn down).
func (c *Cond_t) Waiters() int {
	return c.waiters
}
