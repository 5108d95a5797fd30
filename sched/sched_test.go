package sched

import (
	"testing"
	"time"

	"ember/accnt"
	"ember/defs"
	"ember/klock"
	"ember/percpu"
)

func freshRunqueue(t *testing.T) *Runqueue_t {
	t.Helper()
	percpu.Init(1)
	return Init(0)
}

func TestDriverPolicyPreemptsSystemPolicy(t *testing.T) {
	rq := freshRunqueue(t)
	sysThread := &Thread_t{Tid: 1, Policy: POLICY_SYSTEM, Priority: 10, Accnt: &accnt.Accnt_t{}}
	drvThread := &Thread_t{Tid: 2, Policy: POLICY_DRIVER, Accnt: &accnt.Accnt_t{}}
	rq.AddThread(sysThread)
	rq.AddThread(drvThread)

	next := rq.Reschedule("preempt", 0)
	if next != drvThread {
		t.Fatalf("Reschedule picked %+v, want the driver-policy thread", next)
	}
}

func TestRescheduleFallsBackToIdle(t *testing.T) {
	rq := freshRunqueue(t)
	next := rq.Reschedule("preempt", 0)
	if next != rq.idle {
		t.Fatalf("Reschedule with an empty run queue = %+v, want idle", next)
	}
}

func TestAddRemoveThreadUpdatesReadyCount(t *testing.T) {
	rq := freshRunqueue(t)
	th := &Thread_t{Tid: 1, Policy: POLICY_SYSTEM}
	rq.AddThread(th)
	if rq.readyCount != 1 {
		t.Fatalf("readyCount = %d, want 1", rq.readyCount)
	}
	rq.RemoveThread(th)
	if rq.readyCount != 0 {
		t.Fatalf("readyCount after remove = %d, want 0", rq.readyCount)
	}
}

func TestWakeReturnsBlockedThreadToReady(t *testing.T) {
	rq := freshRunqueue(t)
	th := &Thread_t{Tid: 1, Policy: POLICY_SYSTEM}
	var wq klock.Waitq_t
	rq.Block(th, &wq)
	if rq.blockedCount != 1 {
		t.Fatalf("blockedCount = %d, want 1", rq.blockedCount)
	}
	Wake(th)
	if rq.blockedCount != 0 {
		t.Fatalf("blockedCount after Wake = %d, want 0", rq.blockedCount)
	}
	if th.state != READY {
		t.Fatalf("state after Wake = %v, want READY", th.state)
	}
}

func TestPlaceCPUPrefersAffinityMask(t *testing.T) {
	th := &Thread_t{Affinity: 1 << 2}
	if got := PlaceCPU(th, 4); got != 2 {
		t.Fatalf("PlaceCPU = %d, want 2 (the only CPU in the affinity mask)", got)
	}
}

func TestSleepWakesOnTimeout(t *testing.T) {
	rq := freshRunqueue(t)
	th := &Thread_t{Tid: 1, Policy: POLICY_SYSTEM}
	reason := Sleep(th, &klock.Waitq_t{}, uint64(20*time.Millisecond), nil)
	if reason != WOKE_NORMAL {
		t.Fatalf("Sleep timeout reason = %v, want WOKE_NORMAL", reason)
	}
	_ = defs.NOTID
	_ = rq
}

func TestSleepWakesOnSignal(t *testing.T) {
	rq := freshRunqueue(t)
	th := &Thread_t{Tid: 1, Policy: POLICY_SYSTEM}
	var wq klock.Waitq_t
	done := make(chan WakeReason, 1)
	go func() {
		done <- Sleep(th, &wq, 0, func() bool { return true })
	}()
	time.Sleep(10 * time.Millisecond)
	wq.Broadcast()
	select {
	case reason := <-done:
		if reason != WOKE_SIGNAL {
			t.Fatalf("Sleep reason = %v, want WOKE_SIGNAL", reason)
		}
	case <-time.After(time.Second):
		t.Fatal("Sleep never woke")
	}
	_ = rq
}
