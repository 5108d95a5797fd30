package kqueue

import (
	"testing"
	"time"
)

func TestRegisterAddThenActivateMatchesByFflag(t *testing.T) {
	kq := Mkqueue()
	if err := kq.Register(Kevent_t{Ident: 1, Filter: EVFILT_VNODE, Flags: EV_ADD, Fflags: NOTE_WRITE}); err != 0 {
		t.Fatalf("Register failed: %d", err)
	}
	kq.Activate(1, NOTE_WRITE)

	out := make([]Kevent_t, 1)
	n := kq.Wait(out)
	if n != 1 || out[0].Ident != 1 {
		t.Fatalf("Wait = (%d, %+v), want one event for ident 1", n, out[:n])
	}
}

func TestEventUserNoteTriggerForcesActiveRegardlessOfFflags(t *testing.T) {
	kq := Mkqueue()
	kq.Register(Kevent_t{Ident: 2, Filter: EVFILT_USER, Flags: EV_ADD})
	kq.Activate(2, NOTE_TRIGGER)

	out := make([]Kevent_t, 1)
	n := kq.Wait(out)
	if n != 1 || out[0].Filter != EVFILT_USER {
		t.Fatalf("Wait after NOTE_TRIGGER = (%d, %+v), want one EVFILT_USER event", n, out[:n])
	}
}

func TestDisabledKnoteDoesNotActivate(t *testing.T) {
	kq := Mkqueue()
	kq.Register(Kevent_t{Ident: 3, Filter: EVFILT_VNODE, Flags: EV_ADD | EV_DISABLE, Fflags: NOTE_WRITE})
	kq.Activate(3, NOTE_WRITE)

	done := make(chan int, 1)
	go func() {
		out := make([]Kevent_t, 1)
		done <- kq.Wait(out)
	}()
	select {
	case n := <-done:
		t.Fatalf("Wait returned %d events for a disabled knote, want it to keep blocking", n)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestOneshotKnoteIsRemovedAfterDelivery(t *testing.T) {
	kq := Mkqueue()
	kq.Register(Kevent_t{Ident: 4, Filter: EVFILT_VNODE, Flags: EV_ADD | EV_ONESHOT, Fflags: NOTE_WRITE})
	kq.Activate(4, NOTE_WRITE)
	out := make([]Kevent_t, 1)
	kq.Wait(out)

	kq.Activate(4, NOTE_WRITE) // no-op: the oneshot knote should already be gone
	if byFilter, ok := kq.notes[4]; ok {
		if _, stillThere := byFilter[EVFILT_VNODE]; stillThere {
			t.Fatal("oneshot knote was not removed after delivery")
		}
	}
}
