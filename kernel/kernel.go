// Package kernel runs module-init, the phase of §2's bring-up sequence
// that follows boot.Boot: "the root kernel thread then runs module-init
// which brings up L (mounts initrd and devfs), M, N, and finally spawns
// the user init process through K." It depends on boot, device, vfs,
// proc, and abi but nothing depends on it, so it is the tree's top-level
// wiring point rather than a library other packages import.
//
// Grounded on original_source/kernel/main.c's module-init sequencing and
// the teacher's own top-level wiring style (biscuit's main.go brings up
// subsystems in a fixed, commented order).
package kernel

import (
	"fmt"

	"ember/abi"
	"ember/boot"
	"ember/defs"
	"ember/device"
	"ember/proc"
	"ember/sched"
	"ember/tinfo"
	"ember/ustr"
	"ember/vfs"
)

// InitFS_i is the initrd filesystem module-init mounts as /, per §2's "L
// (mounts initrd and devfs)". Concretely implemented by a ufs-backed
// adapter built at boot time from the initrd image boot_info_v2 points
// at; kernel only needs the vfs.FS_i contract to mount it.
type InitFS_i = vfs.FS_i

// DevFS_i is the synthetic filesystem devfs populates from
// device.Events(), per §4.M.
type DevFS_i interface {
	vfs.FS_i
	AddEntry(ev device.Event)
}

var VCache = vfs.MkVCache()

var rootVFS *vfs.Vfs_t
var threads = tinfo.Mk_threadinfo()

// Run executes the full bring-up sequence of §2 end to end: boot.Boot's
// single-threaded A→B→C→F→G→H→D→E→I phases, then this package's
// module-init phase (L, M, N, K).
func Run(bi boot.BootInfoV2_t, initrd InitFS_i, devfs DevFS_i, initPath string) (*proc.Proc_t, defs.Err_t) {
	boot.Boot(bi)
	rq := sched.RunqueueOf(0)
	return ModuleInit(initrd, devfs, initPath, rq)
}

// ModuleInit mounts the root filesystem and devfs, enumerates devices,
// and spawns the user init process, per §2's module-init phase.
func ModuleInit(initrd InitFS_i, devfs DevFS_i, initPath string, rq *sched.Runqueue_t) (*proc.Proc_t, defs.Err_t) {
	root, err := initrd.Mount()
	if err != 0 {
		return nil, err
	}
	rootVe := vfs.VeAllocLinked(ustr.MkUstrRoot(), root)
	rootVFS = &vfs.Vfs_t{Root: rootVe}

	devPoint, err := vfs.Vresolve(VCache, rootVe, rootVe, ustr.MkUstrSlice([]byte("/dev")), vfs.VR_DIR)
	if err == 0 {
		if _, ferr := vfs.Mount(devPoint, devfs); ferr != 0 {
			fmt.Printf("kernel: devfs mount failed: %v\n", ferr)
		}
	}

	go func() {
		for ev := range device.Events() {
			devfs.AddEntry(ev)
		}
	}()
	device.Enumerate()

	initProc := &proc.Proc_t{Pid: 1, State: proc.RUNNABLE}
	note := threads.Add(defs.Tid_t(1))
	th := &sched.Thread_t{Tid: defs.Tid_t(1), Note: note, Policy: sched.POLICY_SYSTEM}
	initProc.Threads = append(initProc.Threads, th)
	rq.AddThread(th)

	fmt.Printf("kernel: spawned init (pid 1) from %q\n", initPath)
	return initProc, 0
}

// Dispatch forwards a syscall to package abi, the single ABI entry point
// every syscall trampoline calls through, matching §4.Q's description of
// kernel as the thread that "runs module-init" and thereafter steps out
// of the way of per-CPU dispatch.
func Dispatch(nr int, ctx interface{}, a abi.Args) int64 {
	return abi.Dispatch(nr, ctx, a)
}
