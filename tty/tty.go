// Package tty implements §4.N: a TTY's input/output queues, line
// discipline, termios, window size, foreground process group, and
// session, plus the driver-facing open/close/configure/ioctl/modem entry
// points.
//
// Grounded on original_source/include/kernel/tty.h for the line-
// discipline state machine, built on the teacher's circbuf/circbuf.go
// (kept, reused directly for the input/output queues) exactly as the
// teacher's own console code used it for buffered I/O.
package tty

import (
	"golang.org/x/text/width"

	"ember/circbuf"
	"ember/defs"
	"ember/klock"
	"ember/mem"
)

// Termios_t mirrors the POSIX struct termios fields this line discipline
// actually consults.
type Termios_t struct {
	Iflag, Oflag, Cflag, Lflag uint32
	Cc                         [20]byte
}

const (
	ICANON = 1 << iota
	ECHO
	ISIG
)

// Special-character indices into Cc, matching the common VINTR/VERASE
// layout.
const (
	VINTR = iota
	VQUIT
	VERASE
	VKILL
	VEOF
)

// Winsize_t is the tty's window size, reported via TIOCGWINSZ.
type Winsize_t struct {
	Row, Col, Xpixel, Ypixel uint16
}

// Tty_t owns one terminal's queues and discipline state, per §4.N.
type Tty_t struct {
	mu klock.Spinmutex_t

	In  *circbuf.Circbuf_t
	Out *circbuf.Circbuf_t

	Termios Termios_t
	Win     Winsize_t

	fgPgrp   int
	sessID   int
	signalFn func(pgrp, sig int)

	line []byte // partially-assembled canonical-mode line
}

const defaultQueueBytes = 1024

// defaultCc are the POSIX-conventional special-character bindings
// (^C/^\/DEL/^U/^D); Open installs them so a freshly opened tty's ISIG and
// canonical-mode handling doesn't treat every NUL byte as every special
// character at once (the zero value every Cc slot starts at).
var defaultCc = [20]byte{
	VINTR: 0x03,
	VQUIT: 0x1c,
	VERASE: 0x7f,
	VKILL: 0x15,
	VEOF:  0x04,
}

// Open allocates a tty with default-size queues, per tty_open.
func Open(m mem.Page_i) (*Tty_t, defs.Err_t) {
	t := &Tty_t{Termios: Termios_t{Lflag: ICANON | ECHO | ISIG, Cc: defaultCc}}
	t.In = &circbuf.Circbuf_t{}
	if err := t.In.Cb_init(defaultQueueBytes, m); err != 0 {
		return nil, err
	}
	t.Out = &circbuf.Circbuf_t{}
	if err := t.Out.Cb_init(defaultQueueBytes, m); err != 0 {
		return nil, err
	}
	return t, 0
}

// Close releases the tty's queues, per tty_close.
func (t *Tty_t) Close() {
	t.mu.Lock(0)
	defer t.mu.Unlock()
	t.In.Cb_release()
	t.Out.Cb_release()
}

// Configure installs new termios settings, per tty_configure.
func (t *Tty_t) Configure(tio Termios_t) {
	t.mu.Lock(0)
	t.Termios = tio
	t.mu.Unlock()
}

// SetSignalFn installs the callback tty_signal_pgrp uses to actually
// deliver a signal to every process in a group, so tty need not import
// proc. Until a callback is installed, signals are dropped.
func (t *Tty_t) SetSignalFn(fn func(pgrp, sig int)) { t.signalFn = fn }

// SetForeground sets the tty's foreground process group, per tty_ioctl's
// TIOCSPGRP.
func (t *Tty_t) SetForeground(pgrp int) { t.mu.Lock(0); t.fgPgrp = pgrp; t.mu.Unlock() }

// Modem simulates a modem-control-line change (carrier detect drop, for
// instance); the only one this kernel acts on is hangup, which signals
// the foreground group per the teacher's own SIGHUP handling.
func (t *Tty_t) Modem(carrierUp bool) {
	if !carrierUp {
		t.signalPgrp(defs.SIGHUP)
	}
}

// Baud resizes the queues to speed/10 bytes, per §4.N "Baud-rate changes
// resize the queues to speed/10 bytes."
func (t *Tty_t) Baud(speed int, m mem.Page_i) defs.Err_t {
	sz := speed / 10
	if sz < 1 {
		sz = 1
	}
	// circbuf.Cb_init backs its buffer with a single lazily-allocated page
	// and panics past that size (circbuf/circbuf.go), so a high baud rate
	// clamps to one page rather than requesting an oversize queue.
	if sz > mem.PGSIZE {
		sz = mem.PGSIZE
	}
	t.mu.Lock(0)
	defer t.mu.Unlock()
	t.In.Cb_release()
	t.Out.Cb_release()
	t.In = &circbuf.Circbuf_t{}
	if err := t.In.Cb_init(sz, m); err != 0 {
		return err
	}
	t.Out = &circbuf.Circbuf_t{}
	return t.Out.Cb_init(sz, m)
}

func (t *Tty_t) signalPgrp(sig int) {
	if t.signalFn != nil {
		t.signalFn(t.fgPgrp, sig)
	}
}

// Input cooks raw driver-delivered bytes per the line discipline: in
// canonical mode it assembles a line (handling backspace), maps special
// characters to process-group signals when ISIG is set, and echoes back
// to Out when ECHO is set. Returns the bytes, if any, now ready to be
// read by a foreground process (a completed canonical line, or every byte
// in raw mode).
func (t *Tty_t) Input(raw []byte) []byte {
	t.mu.Lock(0)
	defer t.mu.Unlock()

	canon := t.Termios.Lflag&ICANON != 0
	echo := t.Termios.Lflag&ECHO != 0
	sig := t.Termios.Lflag&ISIG != 0

	var ready []byte
	for _, b := range raw {
		// width.LookupRune's result is not used: backspace erases one
		// byte, not one visual cell.
		_ = width.LookupRune(rune(b))

		if sig {
			switch b {
			case t.Termios.Cc[VINTR]:
				t.signalPgrp(defs.SIGINT)
				continue
			case t.Termios.Cc[VQUIT]:
				t.signalPgrp(defs.SIGQUIT)
				continue
			}
		}
		if canon {
			switch b {
			case t.Termios.Cc[VERASE]:
				if len(t.line) > 0 {
					t.line = t.line[:len(t.line)-1]
					if echo {
						t.Out.Copyin(rawByteIO([]byte("\b \b")))
					}
				}
				continue
			case t.Termios.Cc[VKILL]:
				t.line = t.line[:0]
				continue
			case '\n':
				t.line = append(t.line, b)
				ready = append(ready, t.line...)
				t.line = t.line[:0]
			default:
				t.line = append(t.line, b)
			}
		} else {
			ready = append(ready, b)
		}
		if echo {
			t.Out.Copyin(rawByteIO([]byte{b}))
		}
	}
	return ready
}

// rawByteIO adapts a plain []byte to fdops.Userio_i for circbuf's
// Copyin/Copyout, matching the teacher's own kernel-side-buffer pattern.
type rawByteIO []byte

func (r rawByteIO) Uioread(dst []uint8) (int, defs.Err_t) {
	n := copy(dst, r)
	return n, 0
}
func (r rawByteIO) Uiowrite(src []uint8) (int, defs.Err_t) {
	n := copy(r, src)
	return n, 0
}
func (r rawByteIO) Remain() int  { return len(r) }
func (r rawByteIO) Totalsz() int { return len(r) }
