package defs

// Open(2) flags, as accepted by the O component and threaded through fs_open
// call sites (e.g. ufs's `Fs_open(p, defs.O_CREAT, ...)`).
const (
	O_RDONLY int = 0
	O_WRONLY int = 1
	O_RDWR   int = 2
	O_CREAT  int = 0x40
	O_EXCL   int = 0x80
	O_TRUNC  int = 0x200
	O_APPEND int = 0x400
	O_NONBLOCK int = 0x800
	O_DIRECTORY int = 0x10000
	O_CLOEXEC int = 0x80000
)

// lseek(2) whence values.
const (
	SEEK_SET int = 0
	SEEK_CUR int = 1
	SEEK_END int = 2
)

// mmap(2) prot bits.
const (
	PROT_NONE  int = 0x0
	PROT_READ  int = 0x1
	PROT_WRITE int = 0x2
	PROT_EXEC  int = 0x4
)

// mmap(2) flag bits; MAP_ANON|MAP_PRIVATE is the only combination component
// B's Vmadd_anon path needs, MAP_SHARED drives Vmadd_shareanon/sharefile.
const (
	MAP_SHARED    int = 0x01
	MAP_PRIVATE   int = 0x02
	MAP_FIXED     int = 0x10
	MAP_ANON      int = 0x20
	MAP_POPULATE  int = 0x8000
)

// poll(2) event bits, shared by fdops.Pollmsg_t and kqueue's legacy-poll
// emulation.
const (
	POLLIN   int = 0x001
	POLLOUT  int = 0x004
	POLLERR  int = 0x008
	POLLHUP  int = 0x010
	POLLNVAL int = 0x020
)

// File mode bits relevant to the vnode layer; full permission bit meaning is
// left to the mounted filesystem, the VFS only inspects the type bits.
const (
	S_IFMT  uint = 0xf000
	S_IFDIR uint = 0x4000
	S_IFREG uint = 0x8000
	S_IFLNK uint = 0xa000
	S_IFCHR uint = 0x2000
	S_IFBLK uint = 0x6000
	S_IFIFO uint = 0x1000
)

// Signal numbers, standard POSIX numbering. Used by proc's per-process
// pending queue/action table and tty's line-discipline special-character
// handling (tty_signal_pgrp).
const (
	SIGHUP  int = 1
	SIGINT  int = 2
	SIGQUIT int = 3
	SIGILL  int = 4
	SIGABRT int = 6
	SIGFPE  int = 8
	SIGKILL int = 9
	SIGSEGV int = 11
	SIGPIPE int = 13
	SIGALRM int = 14
	SIGTERM int = 15
	SIGCHLD int = 17
	SIGCONT int = 18
	SIGSTOP int = 19
	SIGTSTP int = 20
	SIGTTIN int = 21
	SIGTTOU int = 22
)
