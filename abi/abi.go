// Package abi implements §4.O/§6: the syscall entry point, argument
// validation, dispatch table, and negative-errno-to-userspace-errno
// translation for the x86-64 syscall ABI (call number in RAX; args in
// RDI, RSI, RDX, R8, R9, R10; return in RAX).
//
// Grounded on original_source/include/common/syscalls.h for the call
// surface and the teacher's defs.Err_t negative-errno convention, which
// this package's Dispatch already speaks natively — per §7 "system calls
// translate internal negative codes to userspace errnos unchanged", no
// translation step is needed beyond widening Err_t to the return register.
package abi

import (
	"fmt"

	"ember/caller"
	"ember/defs"
)

// Args is the six-register argument vector the syscall trampoline hands
// to Dispatch, mirroring RDI, RSI, RDX, R8, R9, R10.
type Args [6]uintptr

// Handler_t is one syscall's implementation; it receives the calling
// thread's context opaquely (a *percpu.CPU_t in practice, boxed as
// interface{} so abi need not import percpu/proc and risk a cycle) plus
// the raw argument vector, and returns a value for RAX (nonnegative on
// success, -errno on failure).
type Handler_t func(ctx interface{}, a Args) int64

var table = map[int]Handler_t{}

// Register installs fn as the handler for syscall number nr. Called by
// proc/vfs/sched/etc. during boot wiring, each package registering the
// calls it owns rather than abi importing all of them directly.
func Register(nr int, fn Handler_t) {
	table[nr] = fn
}

// Dispatch is the syscall entry point: it validates nr is in range,
// looks up the handler, and invokes it. Per §7's policy, there is no
// exception mechanism — a handler that detects a bad argument simply
// returns -EFAULT/-EINVAL, which Dispatch passes through to RAX
// unchanged, matching "system calls translate internal negative codes to
// userspace errnos unchanged."
func Dispatch(nr int, ctx interface{}, a Args) int64 {
	fn, ok := table[nr]
	if !ok {
		return int64(-defs.ENOSYS)
	}
	return fn(ctx, a)
}

// Panic reports a fatal kernel-mode error: it prints the reason and a
// backtrace from the current frame via caller.Callerdump, the teacher's own
// disassembly-free backtrace printer. It does not halt other CPUs.
func Panic(reason string) {
	fmt.Printf("abi: fatal: %s\n", reason)
	caller.Callerdump(1)
}

// Errno translates an internal defs.Err_t to the int64 RAX value a
// syscall trampoline returns; since Err_t is already a negative errno,
// this is a direct widen, kept as a named step so call sites read as
// "translate for userspace" rather than a bare cast.
func Errno(e defs.Err_t) int64 {
	return int64(e)
}
