// Package pipe implements §4.P's pipe half: a one-page ring buffer with
// read/write positions, reader/writer counters, and two conds, raising
// SIGPIPE on a writer with no readers.
//
// Grounded on original_source/include/kernel/vfs/pipe.h; the ring itself
// reuses the teacher's circbuf/circbuf.go directly (kept, unmodified)
// rather than reimplementing a byte ring.
package pipe

import (
	"ember/circbuf"
	"ember/defs"
	"ember/klock"
	"ember/mem"
)

// ringPages is 16, but the ring Mkpipe builds is one page, not
// ringPages*PGSIZE: the teacher's circbuf.Cb_init backs a buffer with a
// single lazily-allocated page and panics on any larger request (see
// circbuf/circbuf.go).
const ringPages = 16

// Pipe_t is one pipe's shared state between its read and write ends.
type Pipe_t struct {
	mu klock.Spinmutex_t

	ring *circbuf.Circbuf_t

	readers int
	writers int

	readCond  klock.Cond_t
	writeCond klock.Cond_t

	kn Knlist_i
}

// Knlist_i lets pipe notify a listener such as a kqueue of
// readable/writable transitions without importing package kqueue.
type Knlist_i interface {
	Activate(hint int)
}

const (
	NOTE_READABLE = 1 << iota
	NOTE_WRITABLE
)

// Mkpipe allocates a pipe's ring buffer and registers one reader and one
// writer (the two ends the creating syscall hands back).
func Mkpipe(m mem.Page_i, kn Knlist_i) (*Pipe_t, defs.Err_t) {
	p := &Pipe_t{ring: &circbuf.Circbuf_t{}, readers: 1, writers: 1, kn: kn}
	if err := p.ring.Cb_init(mem.PGSIZE, m); err != 0 {
		return nil, err
	}
	return p, 0
}

// AddReader/AddWriter register another fd referencing this end (dup/fork).
func (p *Pipe_t) AddReader() { p.mu.Lock(0); p.readers++; p.mu.Unlock() }
func (p *Pipe_t) AddWriter() { p.mu.Lock(0); p.writers++; p.mu.Unlock() }

// CloseReader drops a reader reference, waking any blocked writer once
// the last reader is gone (so it can observe EPIPE).
func (p *Pipe_t) CloseReader() {
	p.mu.Lock(0)
	p.readers--
	if p.readers == 0 {
		p.writeCond.Broadcast()
	}
	p.mu.Unlock()
}

// CloseWriter drops a writer reference, waking any blocked reader once
// the last writer is gone (so it observes EOF, not a hang).
func (p *Pipe_t) CloseWriter() {
	p.mu.Lock(0)
	p.writers--
	if p.writers == 0 {
		p.readCond.Broadcast()
	}
	p.mu.Unlock()
}

// Read implements §4.P: empty with writers present blocks; empty with no
// writers returns 0 (EOF).
func (p *Pipe_t) Read(dst []byte) (int, defs.Err_t) {
	p.mu.Lock(0)
	for p.ring.Used() == 0 {
		if p.writers == 0 {
			p.mu.Unlock()
			return 0, 0
		}
		p.readCond.Wait(defs.NOTID, &p.mu)
	}
	n, err := p.ring.Copyout(rawIO(dst))
	wasFull := p.ring.Full()
	_ = wasFull
	p.writeCond.Broadcast()
	p.mu.Unlock()
	if p.kn != nil {
		p.kn.Activate(NOTE_WRITABLE)
	}
	return n, err
}

// Write implements §4.P: full with readers present blocks; full (or any)
// write with no readers raises SIGPIPE and returns -EPIPE.
func (p *Pipe_t) Write(src []byte, raiseSigpipe func()) (int, defs.Err_t) {
	p.mu.Lock(0)
	if p.readers == 0 {
		p.mu.Unlock()
		if raiseSigpipe != nil {
			raiseSigpipe()
		}
		return 0, -defs.EPIPE
	}
	for p.ring.Full() {
		if p.readers == 0 {
			p.mu.Unlock()
			if raiseSigpipe != nil {
				raiseSigpipe()
			}
			return 0, -defs.EPIPE
		}
		p.writeCond.Wait(defs.NOTID, &p.mu)
	}
	n, err := p.ring.Copyin(rawIO(src))
	p.readCond.Broadcast()
	p.mu.Unlock()
	if p.kn != nil {
		p.kn.Activate(NOTE_READABLE)
	}
	return n, err
}

// rawIO adapts a plain []byte to fdops.Userio_i, matching circbuf's own
// caller contract (fdops.Userio_i) for kernel-side (non-user-memory)
// buffers.
type rawIO []byte

func (r rawIO) Uioread(dst []uint8) (int, defs.Err_t)  { return copy(dst, r), 0 }
func (r rawIO) Uiowrite(src []uint8) (int, defs.Err_t) { return copy(r, src), 0 }
func (r rawIO) Remain() int                            { return len(r) }
func (r rawIO) Totalsz() int                           { return len(r) }
