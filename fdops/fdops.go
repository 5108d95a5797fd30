// Package fdops defines the descriptor-operations contract a vnode, pipe,
// console, or other open-file implementation must satisfy to be installed
// in a process's file descriptor table (package fd). The pack's own
// retrieval of this package was empty; the shape below is reconstructed
// from its call sites (fd/fd.go's Fops.Close/Reopen, ufs/ufs.go's
// Fops.Write/Read/Lseek/Close, ufs/driver.go's Cons_poll/Cons_read/
// Cons_write) and original_source/include/kernel/vfs/ventry.h's fops
// contract for the methods neither call site exercises directly.
package fdops

import "ember/defs"

// Userio_i abstracts a user- or kernel-memory buffer so block/char device
// code, pipes, and the page cache can move bytes without caring whether
// the other end lives in a process's address space (vm.Userbuf_t/
// Useriovec_t) or in a kernel buffer (a plain []uint8 wrapper).
type Userio_i interface {
	// Uioread copies into dst, returning bytes copied.
	Uioread(dst []uint8) (int, defs.Err_t)
	// Uiowrite copies from src, returning bytes copied.
	Uiowrite(src []uint8) (int, defs.Err_t)
	// Remain returns the number of bytes left to transfer.
	Remain() int
	// Totalsz returns the buffer's original total size.
	Totalsz() int
}

// Pollmsg_t carries a poll/select request: which events the caller cares
// about, and (for blocking polls) how to wake it when one becomes ready.
type Pollmsg_t struct {
	Events  int
	Dowait  bool
	Tid     defs.Tid_t
}

// Ready_t is a bitmask of the events found ready, using the same bit
// positions as Pollmsg_t.Events (defs.POLLIN et al).
type Ready_t int

// Fdops_i is implemented by every kind of open file a descriptor can name:
// vnodes, pipes, sockets (UNIX-domain only, per spec.md's networking
// Non-goal), the console, and synthetic devices.
type Fdops_i interface {
	// Close releases the underlying resource; called when the last
	// descriptor referencing it is closed.
	Close() defs.Err_t
	// Reopen increments whatever reference count this kind of file keeps,
	// called when a descriptor is duplicated (dup2, fork).
	Reopen() defs.Err_t
	// Read/Write transfer data via a Userio_i at the file's current offset.
	Read(dst Userio_i) (int, defs.Err_t)
	Write(src Userio_i) (int, defs.Err_t)
	// Fullpath returns the canonical path this file was opened from, used
	// by getcwd-style syscalls; not all file kinds (pipes, sockets) have one.
	Fullpath() (string, defs.Err_t)
	// Lseek repositions the file's offset per defs.SEEK_* whence values.
	Lseek(off, whence int) (int, defs.Err_t)
	// Fstat fills in a stat buffer describing the open file.
	Fstat(st StatTarget) defs.Err_t
	// Mmap maps the file (or a portion of it) into the calling process's
	// address space; file kinds that cannot be mapped return -defs.ENODEV.
	Mmap(offset, len, perms int) (uintptr, defs.Err_t)
	// Pread/Pwrite are the positioned variants that do not disturb the
	// file's current offset.
	Pread(dst Userio_i, offset int) (int, defs.Err_t)
	Pwrite(src Userio_i, offset int) (int, defs.Err_t)
	// Poll reports which of the requested events are currently ready,
	// optionally registering the caller's thread to be woken later.
	Poll(pm Pollmsg_t) (Ready_t, defs.Err_t)
	// Truncate resizes the underlying file; unsupported kinds return
	// -defs.EINVAL.
	Truncate(newlen uint) defs.Err_t
}

// StatTarget is the minimal contract Fstat needs from package stat's
// Stat_t, kept here to avoid an import cycle between fdops and stat.
type StatTarget interface {
	Wdev(uint)
	Wino(uint)
	Wmode(uint)
	Wsize(uint)
	Wrdev(uint)
}
