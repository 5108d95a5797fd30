package vfs

import (
	"testing"

	"ember/defs"
	"ember/pgcache"
	"ember/ustr"
)

// fakeVnode is a minimal in-memory Vnode_i: a directory holding named
// children, or a leaf of some Vtype. Good enough to drive Vresolve without
// a real filesystem (ufs is Non-goal scope per spec.md).
type fakeVnode struct {
	typ      Vtype
	children map[string]*Vnode_t
	target   ustr.Ustr // symlink target, if typ == VLNK
}

func dirVnode() *Vnode_t {
	return &Vnode_t{Impl: &fakeVnode{typ: VDIR, children: map[string]*Vnode_t{}}}
}

func (f *fakeVnode) Type() Vtype { return f.typ }
func (f *fakeVnode) Lookup(name ustr.Ustr) (*Vnode_t, defs.Err_t) {
	vn, ok := f.children[name.String()]
	if !ok {
		return nil, -defs.ENOENT
	}
	return vn, 0
}
func (f *fakeVnode) Readdir(off int) (ustr.Ustr, int, bool, defs.Err_t) {
	return nil, 0, true, 0
}
func (f *fakeVnode) Readlink() (ustr.Ustr, defs.Err_t) { return f.target, 0 }
func (f *fakeVnode) Read(off int, dst []byte) (int, defs.Err_t)  { return 0, 0 }
func (f *fakeVnode) Write(off int, src []byte) (int, defs.Err_t) { return len(src), 0 }
func (f *fakeVnode) Getpage(off int) (*pgcache.Page_t, defs.Err_t) { return nil, 0 }
func (f *fakeVnode) Load() defs.Err_t { return 0 }
func (f *fakeVnode) Save() defs.Err_t { return 0 }

func addChild(dir *Vnode_t, name string, vn *Vnode_t) {
	dir.Impl.(*fakeVnode).children[name] = vn
}

func newRoot() *Ventry_t {
	root := dirVnode()
	return VeAllocLinked(ustr.MkUstrRoot(), root)
}

func TestVresolveWalksNestedDirectory(t *testing.T) {
	root := newRoot()
	sub := dirVnode()
	addChild(root.Vn, "sub", sub)
	leaf := &Vnode_t{Impl: &fakeVnode{typ: VREG}}
	addChild(sub, "file", leaf)

	vc := MkVCache()
	ve, err := Vresolve(vc, root, root, ustr.MkUstrSlice([]byte("/sub/file")), VR_UNLOCKED)
	if err != 0 {
		t.Fatalf("Vresolve failed: %d", err)
	}
	if ve.Vn.Impl.Type() != VREG {
		t.Fatalf("resolved vnode type = %v, want VREG", ve.Vn.Impl.Type())
	}
}

func TestVresolveMissingComponentReturnsENOENT(t *testing.T) {
	root := newRoot()
	vc := MkVCache()
	_, err := Vresolve(vc, root, root, ustr.MkUstrSlice([]byte("/nope")), VR_UNLOCKED)
	if err != -defs.ENOENT {
		t.Fatalf("Vresolve(missing) = %d, want -ENOENT", err)
	}
}

func TestVresolveVRDirRejectsNonDirectory(t *testing.T) {
	root := newRoot()
	leaf := &Vnode_t{Impl: &fakeVnode{typ: VREG}}
	addChild(root.Vn, "file", leaf)

	vc := MkVCache()
	_, err := Vresolve(vc, root, root, ustr.MkUstrSlice([]byte("/file")), VR_UNLOCKED|VR_DIR)
	if err != -defs.ENOTDIR {
		t.Fatalf("Vresolve with VR_DIR on a regular file = %d, want -ENOTDIR", err)
	}
}

func TestVresolveFollowsRelativeSymlink(t *testing.T) {
	root := newRoot()
	target := &Vnode_t{Impl: &fakeVnode{typ: VREG}}
	addChild(root.Vn, "real", target)
	link := &Vnode_t{Impl: &fakeVnode{typ: VLNK, target: ustr.MkUstrSlice([]byte("real"))}}
	addChild(root.Vn, "link", link)

	vc := MkVCache()
	ve, err := Vresolve(vc, root, root, ustr.MkUstrSlice([]byte("/link")), VR_UNLOCKED)
	if err != 0 {
		t.Fatalf("Vresolve through symlink failed: %d", err)
	}
	if ve.Vn.Impl.Type() != VREG {
		t.Fatalf("resolved-through-symlink type = %v, want VREG", ve.Vn.Impl.Type())
	}
}

func TestVresolveCachesAbsolutePathHit(t *testing.T) {
	root := newRoot()
	leaf := &Vnode_t{Impl: &fakeVnode{typ: VREG}}
	addChild(root.Vn, "file", leaf)

	vc := MkVCache()
	first, err := Vresolve(vc, root, root, ustr.MkUstrSlice([]byte("/file")), VR_UNLOCKED)
	if err != 0 {
		t.Fatalf("first Vresolve failed: %d", err)
	}
	if _, ok := vc.lookup("/file"); !ok {
		t.Fatal("Vresolve did not cache the absolute path")
	}
	second, err := Vresolve(vc, root, root, ustr.MkUstrSlice([]byte("/file")), VR_UNLOCKED)
	if err != 0 {
		t.Fatalf("second Vresolve failed: %d", err)
	}
	if second != first {
		t.Fatal("cached Vresolve returned a different ventry than the first walk")
	}
}

func TestFtableAllocAddClose(t *testing.T) {
	ft := MkFtable()
	fd, err := ft.AllocFd()
	if err != 0 || fd != 0 {
		t.Fatalf("AllocFd = (%d, %d), want (0, 0)", fd, err)
	}
	vn := &Vnode_t{Impl: &fakeVnode{typ: VREG}}
	ft.AddFile(fd, vn)
	if err := ft.Close(fd); err != 0 {
		t.Fatalf("Close failed: %d", err)
	}
	if err := ft.Close(fd); err != -defs.EBADF {
		t.Fatalf("double Close = %d, want -EBADF", err)
	}
}

func TestKnlistActivateInvokesRegisteredCallbacks(t *testing.T) {
	var kn Knlist_t
	var gotHint int
	kn.Register(func(hint int) { gotHint = hint })
	kn.Activate(7)
	if gotHint != 7 {
		t.Fatalf("registered callback saw hint=%d, want 7", gotHint)
	}
}
