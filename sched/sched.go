// Package sched implements §4.I: a per-CPU scheduler instance with one
// run queue per policy (SYSTEM priority-FIFO, DRIVER strictly above it),
// a single sched_reschedule entry point, affinity-aware placement, and
// the cancellation/timeout semantics cond_wait-style blocking needs.
//
// spec.md §1 scopes the context-switch trampoline itself out ("specified
// only by the semantics it must uphold"): there is no assembly TCB swap
// here. Reschedule instead updates bookkeeping (active/ready/blocked
// sets, usage stats, last-run timestamps) that models which goroutine
// *should* be running; the goroutines themselves keep running under the
// Go runtime's own scheduler.
//
// Grounded on original_source/include/kernel/sched/sched.h for the
// policy-table shape, and the teacher's percpu-array idiom
// (mem/mem.go's old percpu[MAXCPUS] field) for per-CPU run queues.
package sched

import (
	"ember/accnt"
	"ember/clock"
	"ember/defs"
	"ember/klock"
	"ember/mem"
	"ember/percpu"
	"ember/tinfo"
)

// Policy enumerates §4.I's two scheduling classes.
type Policy int

const (
	POLICY_SYSTEM Policy = iota
	POLICY_DRIVER
)

// State is a thread's run-queue membership state.
type State int

const (
	READY State = iota
	RUNNING
	BLOCKED
	SLEEPING
	KILLED
)

// warmthWindowNs is the "≈50ms" cache-warmth bonus window of §4.I's
// affinity rule.
const warmthWindowNs = 50 * 1000 * 1000

// Thread_t is one schedulable thread, separate from tinfo.Tnote_t (kill
// bookkeeping) and accnt.Accnt_t (usage accounting), matching the
// teacher's own split between thread identity and scheduling state.
type Thread_t struct {
	Tid      defs.Tid_t
	Note     *tinfo.Tnote_t
	Accnt    *accnt.Accnt_t
	Priority int
	Policy   Policy
	Affinity uint64

	state     State
	lastCPU   int
	lastRanNs int64
	waitq     *klock.Waitq_t
}

// policyQueue is one policy's queue implementation, matching §4.I's
// "{init, add_thread, remove_thread, get_next_thread}" contract.
type policyQueue interface {
	add(*Thread_t)
	remove(*Thread_t)
	next() *Thread_t
	empty() bool
}

// fifoByPriority implements POLICY_SYSTEM: a priority-FIFO with
// per-priority queues.
type fifoByPriority struct {
	queues map[int][]*Thread_t
}

func newFifoByPriority() *fifoByPriority { return &fifoByPriority{queues: map[int][]*Thread_t{}} }

func (f *fifoByPriority) add(t *Thread_t) {
	f.queues[t.Priority] = append(f.queues[t.Priority], t)
}
func (f *fifoByPriority) remove(t *Thread_t) {
	q := f.queues[t.Priority]
	for i, o := range q {
		if o == t {
			f.queues[t.Priority] = append(q[:i], q[i+1:]...)
			return
		}
	}
}
func (f *fifoByPriority) next() *Thread_t {
	best := -1
	for p, q := range f.queues {
		if len(q) == 0 {
			continue
		}
		if p > best {
			best = p
		}
	}
	if best == -1 {
		return nil
	}
	q := f.queues[best]
	t := q[0]
	f.queues[best] = q[1:]
	return t
}
func (f *fifoByPriority) empty() bool {
	for _, q := range f.queues {
		if len(q) > 0 {
			return false
		}
	}
	return true
}

// driverFifo implements POLICY_DRIVER: plain FIFO, but always consulted
// before POLICY_SYSTEM so it has "strictly higher absolute priority".
type driverFifo struct{ q []*Thread_t }

func (d *driverFifo) add(t *Thread_t) { d.q = append(d.q, t) }
func (d *driverFifo) remove(t *Thread_t) {
	for i, o := range d.q {
		if o == t {
			d.q = append(d.q[:i], d.q[i+1:]...)
			return
		}
	}
}
func (d *driverFifo) next() *Thread_t {
	if len(d.q) == 0 {
		return nil
	}
	t := d.q[0]
	d.q = d.q[1:]
	return t
}
func (d *driverFifo) empty() bool { return len(d.q) == 0 }

// Runqueue_t is one CPU's scheduler instance, matching §4.I's
// {ready_count, blocked_count, active, idle}.
type Runqueue_t struct {
	mu           klock.Spinmutex_t
	cpu          int
	policies     map[Policy]policyQueue
	readyCount   int
	blockedCount int
	active       *Thread_t
	idle         *Thread_t
}

var cpus [mem.MaxCPUs]*Runqueue_t

// Init brings up the per-CPU run queue for logical CPU id and registers it
// with percpu so locks/affinity code can reach it.
func Init(id int) *Runqueue_t {
	rq := &Runqueue_t{
		cpu: id,
		policies: map[Policy]policyQueue{
			POLICY_SYSTEM: newFifoByPriority(),
			POLICY_DRIVER: &driverFifo{},
		},
		idle: &Thread_t{Tid: defs.NOTID, state: RUNNING},
	}
	cpus[id] = rq
	percpu.CPU(id).Sched = rq
	return rq
}

// RunqueueOf returns the run queue installed for CPU id by Init.
func RunqueueOf(id int) *Runqueue_t { return cpus[id] }

// AddThread puts t on cpu's run queue in READY state, per add_thread.
func (rq *Runqueue_t) AddThread(t *Thread_t) {
	rq.mu.Lock(0)
	defer rq.mu.Unlock()
	t.state = READY
	rq.policies[t.Policy].add(t)
	rq.readyCount++
}

// RemoveThread removes t from whichever queue it's on, per remove_thread.
func (rq *Runqueue_t) RemoveThread(t *Thread_t) {
	rq.mu.Lock(0)
	defer rq.mu.Unlock()
	if t.state == READY {
		rq.policies[t.Policy].remove(t)
		rq.readyCount--
	} else if t.state == BLOCKED || t.state == SLEEPING {
		rq.blockedCount--
	}
}

// Block moves t out of the run set onto waitq, per "blocked threads live
// on waitqueues and are not in any run queue."
func (rq *Runqueue_t) Block(t *Thread_t, waitq *klock.Waitq_t) {
	rq.mu.Lock(0)
	t.state = BLOCKED
	t.waitq = waitq
	rq.blockedCount++
	rq.mu.Unlock()
}

// Wake moves a blocked thread back to READY on its last CPU's run queue.
func Wake(t *Thread_t) {
	rq := cpus[t.lastCPU]
	if rq == nil {
		rq = cpus[0]
	}
	rq.mu.Lock(0)
	rq.blockedCount--
	t.waitq = nil
	rq.mu.Unlock()
	rq.AddThread(t)
}

// getNext asks each policy in priority order for a successor (DRIVER
// first, matching "strictly higher absolute priority"), falling back to
// the CPU's idle thread.
func (rq *Runqueue_t) getNext() *Thread_t {
	if t := rq.policies[POLICY_DRIVER].next(); t != nil {
		return t
	}
	if t := rq.policies[POLICY_SYSTEM].next(); t != nil {
		return t
	}
	return rq.idle
}

// Reschedule is the single entry point of §4.I's sched_reschedule,
// called from timer expiry, block, yield, wake, or terminate.
//
//  1. removes active from the run set if cause warrants it (the caller
//     has already called Block/RemoveThread beforehand for block/exit;
//     Reschedule itself only handles the yield/preempt case of "still
//     runnable, but giving up its slot")
//  2. updates active's usage stats via its accnt.Accnt_t
//  3. asks each policy for a successor
//  4. if the successor differs from active, updates bookkeeping for both
//     (lastCPU/lastRanNs and percpu's current-thread pointers) — there is
//     no TCB/page-table swap to perform here; see the package doc.
func (rq *Runqueue_t) Reschedule(cause string, now int64) *Thread_t {
	rq.mu.Lock(0)
	defer rq.mu.Unlock()

	if rq.active != nil && rq.active != rq.idle {
		if cause == "yield" || cause == "preempt" {
			rq.active.state = READY
			rq.policies[rq.active.Policy].add(rq.active)
			rq.readyCount++
		}
		if rq.active.Accnt != nil {
			rq.active.Accnt.Finish(int(rq.active.lastRanNs))
		}
	}

	next := rq.getNext()
	if next != rq.active {
		if next != rq.idle {
			rq.readyCount--
			next.state = RUNNING
			next.lastCPU = rq.cpu
			next.lastRanNs = now
		}
		cpu := percpu.CPU(rq.cpu)
		if next.Tid != defs.NOTID {
			cpu.Enter(next.Tid, defs.NOPID, next.Note)
		} else {
			cpu.Leave()
		}
	}
	rq.active = next
	return next
}

// score implements the affinity placement rule of §4.I: "a score
// combining affinity mask ∧ cpu_id and a cache-warmth bonus for
// last_cpu_id == cpu_id when the thread last ran within the warmth
// window."
func score(t *Thread_t, cpuID int) int {
	s := 0
	if t.Affinity&(1<<uint(cpuID)) != 0 {
		s += 100
	}
	if t.lastCPU == cpuID && clock.Now()-uint64(t.lastRanNs) < warmthWindowNs {
		s += 10
	}
	return s
}

// PlaceCPU picks the best-scoring CPU among the first n for t, per §4.I's
// "placement scans CPUs by a score". Migration per that rule happens only
// at block/wake boundaries; callers should not call PlaceCPU on a running
// thread.
func PlaceCPU(t *Thread_t, n int) int {
	best, bestScore := 0, -1
	for c := 0; c < n; c++ {
		if s := score(t, c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

// WakeReason distinguishes why sched_sleep returned, per §4.I
// cancellation/timeout rules.
type WakeReason int

const (
	WOKE_NORMAL WakeReason = iota
	WOKE_SIGNAL
	WOKE_CANCELLED
)

// Sleep blocks t on waitq until woken, a pending signal becomes
// deliverable, or until an alarm-driven timeout, matching cond_wait +
// §4.I's "sleeping thread is woken early by either a deliverable signal
// or its timeout alarm."
func Sleep(t *Thread_t, waitq *klock.Waitq_t, timeoutNs uint64, sigPending func() bool) WakeReason {
	rq := cpus[t.lastCPU]
	if rq == nil {
		rq = cpus[0]
	}
	rq.Block(t, waitq)

	done := make(chan WakeReason, 1)
	var alarm *clock.Alarm_t
	if timeoutNs != 0 {
		alarm = clock.Register(&clock.Alarm_t{
			ExpiresNs: clock.Now() + timeoutNs,
			Callback: func([3]uintptr) {
				select {
				case done <- WOKE_NORMAL:
				default:
				}
			},
		})
	}
	go func() {
		waitq.Wait(t.Tid, "sched")
		if sigPending != nil && sigPending() {
			select {
			case done <- WOKE_SIGNAL:
			default:
			}
			return
		}
		select {
		case done <- WOKE_NORMAL:
		default:
		}
	}()

	reason := <-done
	if alarm != nil {
		clock.Cancel(alarm)
	}
	Wake(t)
	return reason
}
