package proc

import (
	"testing"

	"ember/accnt"
	"ember/defs"
	"ember/fd"
	"ember/percpu"
	"ember/sched"
	"ember/tinfo"
	"ember/vm"
)

// newParent builds a minimal registered process to fork from. AS is left as
// a zero vm.Vm_t: Fork only shallow-copies it via CloneAS and never calls
// into vm.Vmregion_t's methods directly. The package still imports vm, so
// it does not build while vm.Vmregion_t is undefined (see DESIGN.md's
// Known issues section).
func newParent(t *testing.T) (*Proc_t, *sched.Runqueue_t) {
	t.Helper()
	percpu.Init(1)
	rq := sched.Init(0)
	p := &Proc_t{
		Pid:   allocPid(),
		AS:    &vm.Vm_t{},
		Accnt: &accnt.Accnt_t{},
	}
	register(p)
	return p, rq
}

func TestForkRegistersChildAndThread(t *testing.T) {
	parent, rq := newParent(t)
	ti := tinfo.Mk_threadinfo()
	child, err := Fork(parent, 0, ti, rq)
	if err != 0 {
		t.Fatalf("Fork failed: %d", err)
	}
	if child.Parent != parent {
		t.Fatal("child.Parent != parent")
	}
	if got, ok := Lookup(child.Pid); !ok || got != child {
		t.Fatal("forked child was not registered")
	}
	if len(child.Threads) != 1 {
		t.Fatalf("len(child.Threads) = %d, want 1", len(child.Threads))
	}
	if len(parent.Children) != 1 || parent.Children[0] != child {
		t.Fatal("parent.Children was not updated")
	}
}

func TestForkShareFdsSharesTheSameMap(t *testing.T) {
	parent, rq := newParent(t)
	parent.Fds = map[int]*fd.Fd_t{}
	ti := tinfo.Mk_threadinfo()
	child, err := Fork(parent, SHARE_FDS, ti, rq)
	if err != 0 {
		t.Fatalf("Fork failed: %d", err)
	}
	if len(child.Threads) != 1 {
		t.Fatalf("len(child.Threads) = %d, want 1", len(child.Threads))
	}
	child.Fds[3] = nil
	if _, ok := parent.Fds[3]; !ok {
		t.Fatal("SHARE_FDS child does not share the parent's fd map")
	}
}

func TestSignalMarksPendingAndKillsThreadNotes(t *testing.T) {
	parent, _ := newParent(t)
	ti := tinfo.Mk_threadinfo()
	note := ti.Add(defs.Tid_t(parent.Pid))
	parent.Threads = []*sched.Thread_t{{Tid: defs.Tid_t(parent.Pid), Note: note}}

	if err := parent.Signal(defs.SIGTERM); err != 0 {
		t.Fatalf("Signal failed: %d", err)
	}
	if parent.SigPending&(1<<uint(defs.SIGTERM)) == 0 {
		t.Fatal("SigPending bit for SIGTERM not set")
	}
	if !note.Killed {
		t.Fatal("thread note was not killed by Signal")
	}
}

func TestWait4ReturnsECHILDWithNoChildren(t *testing.T) {
	parent, _ := newParent(t)
	if _, _, err := parent.Wait4(-1); err != -defs.ECHILD {
		t.Fatalf("Wait4 with no children = %d, want -ECHILD", err)
	}
}
