package kernel

import (
	"testing"

	"ember/boot"
	"ember/defs"
	"ember/device"
	"ember/pgcache"
	"ember/sched"
	"ember/ustr"
	"ember/vfs"
)

// fakeVnode is a bare-bones vfs.Vnode_i, just enough to let ModuleInit walk
// to /dev and mount a devfs stand-in, matching vfs_test.go's fixture style.
type fakeVnode struct {
	typ      vfs.Vtype
	children map[string]*vfs.Vnode_t
}

func (f *fakeVnode) Type() vfs.Vtype { return f.typ }
func (f *fakeVnode) Lookup(name ustr.Ustr) (*vfs.Vnode_t, defs.Err_t) {
	vn, ok := f.children[name.String()]
	if !ok {
		return nil, -defs.ENOENT
	}
	return vn, 0
}
func (f *fakeVnode) Readdir(off int) (ustr.Ustr, int, bool, defs.Err_t) {
	return nil, 0, true, 0
}
func (f *fakeVnode) Readlink() (ustr.Ustr, defs.Err_t)             { return nil, -defs.EINVAL }
func (f *fakeVnode) Read(off int, dst []byte) (int, defs.Err_t)    { return 0, 0 }
func (f *fakeVnode) Write(off int, src []byte) (int, defs.Err_t)   { return len(src), 0 }
func (f *fakeVnode) Getpage(off int) (*pgcache.Page_t, defs.Err_t) { return nil, 0 }
func (f *fakeVnode) Load() defs.Err_t                              { return 0 }
func (f *fakeVnode) Save() defs.Err_t                              { return 0 }

// fakeInitFS plays initrd: its root holds one empty "dev" directory for
// devfs to mount onto.
type fakeInitFS struct{}

func (fakeInitFS) Mount() (*vfs.Vnode_t, defs.Err_t) {
	dev := &vfs.Vnode_t{Impl: &fakeVnode{typ: vfs.VDIR, children: map[string]*vfs.Vnode_t{}}}
	root := &vfs.Vnode_t{Impl: &fakeVnode{typ: vfs.VDIR, children: map[string]*vfs.Vnode_t{
		"dev": dev,
	}}}
	return root, 0
}
func (fakeInitFS) Unmount() defs.Err_t { return 0 }

// fakeDevFS plays devfs: it records every device.Event ModuleInit forwards.
type fakeDevFS struct {
	entries []device.Event
}

func (d *fakeDevFS) Mount() (*vfs.Vnode_t, defs.Err_t) {
	return &vfs.Vnode_t{Impl: &fakeVnode{typ: vfs.VDIR, children: map[string]*vfs.Vnode_t{}}}, 0
}
func (d *fakeDevFS) Unmount() defs.Err_t            { return 0 }
func (d *fakeDevFS) AddEntry(ev device.Event)       { d.entries = append(d.entries, ev) }

func TestModuleInitMountsDevfsAndSpawnsInit(t *testing.T) {
	boot.Boot(boot.BootInfoV2_t{NumCPUs: 1})
	rq := sched.RunqueueOf(0)

	initProc, err := ModuleInit(fakeInitFS{}, &fakeDevFS{}, "/sbin/init", rq)
	if err != 0 {
		t.Fatalf("ModuleInit failed: %d", err)
	}
	if initProc.Pid != 1 {
		t.Fatalf("init pid = %d, want 1", initProc.Pid)
	}
	if len(initProc.Threads) != 1 {
		t.Fatalf("init proc has %d threads, want 1", len(initProc.Threads))
	}
}
