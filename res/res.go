// Package res implements the per-call-site resource/budget admission check
// used by long-running copy loops (vm.K2user, vm.User2k, the Userbuf_t and
// Useriovec_t paths) to bound how much work they do before checking back in
// with the scheduler. It merges the teacher's `bounds` and `res` packages,
// both empty stubs in the retrieval pack; the call sites in vm/as.go and
// vm/userbuf.go (`res.Bounds(id)`, `res.Resadd_noblock(gimme)`) are the
// contract this package fills in.
package res

import "sync/atomic"

// Bound_id_t names a call site that periodically asks for more budget while
// copying user memory a page at a time.
type Bound_id_t int

const (
	B_ASPACE_T_K2USER_INNER Bound_id_t = iota
	B_ASPACE_T_USER2K_INNER
	B_USERBUF_T__TX
	B_USERIOVEC_T_IOV_INIT
	B_USERIOVEC_T__TX
)

// Bound_t is one admission request: cost is the number of bytes (or
// equivalent work units) the call site is about to spend before its next
// check-in.
type Bound_t struct {
	id   Bound_id_t
	cost int64
}

// perPageCost estimates the work a single iteration of each loop does; all
// of the bounded call sites copy one page (or one iovec element capped at a
// page) per iteration.
const perPageCost = 4096

// Bounds constructs the budget request for one iteration at the named call
// site. Kept as a function (not a constant table lookup) so a call site can
// be given a different cost in the future without changing its signature.
func Bounds(id Bound_id_t) Bound_t {
	return Bound_t{id: id, cost: perPageCost}
}

// ledger is the global outstanding-work counter; Resadd_noblock admits work
// up to a ceiling so that no single thread can starve the rest of the
// system by looping over an enormous user buffer without ever yielding its
// locks. It is intentionally coarse: a single global counter, not a
// per-thread one, matching the teacher's lack of per-thread resource
// accounting anywhere else in the pack.
var ledger int64

// Ceiling bounds the total outstanding (unacknowledged) budget across all
// threads; once hit, Resadd_noblock starts refusing until some thread pays
// its debt back via Resdone.
const Ceiling = 64 << 20 // 64MiB of in-flight copy work

// Resadd_noblock attempts to admit one iteration's worth of work without
// blocking. A caller that gets false must stop its loop and return
// defs.ENOHEAP rather than spin waiting for budget.
func Resadd_noblock(b Bound_t) bool {
	n := atomic.AddInt64(&ledger, b.cost)
	if n > Ceiling {
		atomic.AddInt64(&ledger, -b.cost)
		return false
	}
	return true
}

// Resdone releases the budget an admitted iteration consumed. Call sites in
// vm call this once their page-at-a-time copy loop actually finishes the
// iteration (successfully or not).
func Resdone(b Bound_t) {
	atomic.AddInt64(&ledger, -b.cost)
}
