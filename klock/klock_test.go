package klock

import (
	"testing"
	"time"

	"ember/defs"
)

func TestSpinmutexRecursive(t *testing.T) {
	var sm Spinmutex_t
	sm.Lock(1)
	sm.Lock(1)
	if !sm.Held(1) {
		t.Fatal("expected lock held by tid 1")
	}
	sm.Unlock()
	if !sm.Held(1) {
		t.Fatal("recursive unlock should not release the lock yet")
	}
	sm.Unlock()
	if sm.Held(1) {
		t.Fatal("lock should be released after matching unlocks")
	}
}

func TestSleepmutexExcludes(t *testing.T) {
	var mu Sleepmutex_t
	mu.Lock(1)
	done := make(chan bool)
	go func() {
		mu.Lock(2)
		done <- true
		mu.Unlock()
	}()
	select {
	case <-done:
		t.Fatal("second locker should have blocked")
	case <-time.After(20 * time.Millisecond):
	}
	mu.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second locker never acquired the mutex")
	}
}

func TestCondSignal(t *testing.T) {
	var mu Sleepmutex_t
	var cv Cond_t
	ready := false
	woke := make(chan bool)

	go func() {
		mu.Lock(2)
		for !ready {
			cv.Wait(2, &mu)
		}
		mu.Unlock()
		woke <- true
	}()

	time.Sleep(10 * time.Millisecond)
	mu.Lock(1)
	ready = true
	mu.Unlock()
	cv.Signal()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}
}

func TestSemaDownUp(t *testing.T) {
	s := Mksema(0)
	released := make(chan bool)
	go func() {
		s.Down(defs.Tid_t(1))
		released <- true
	}()
	select {
	case <-released:
		t.Fatal("Down should block while count is zero")
	case <-time.After(20 * time.Millisecond):
	}
	s.Up()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("Down never returned after Up")
	}
}

func TestWaitqLookupReuse(t *testing.T) {
	ident := new(int)
	wq1 := Waitq_lookup_or_make(ident, nil)
	wq2 := Waitq_lookup_or_make(ident, nil)
	if wq1 != wq2 {
		t.Fatal("expected the same waitqueue for the same ident")
	}
	Waitq_forget(ident)
}
