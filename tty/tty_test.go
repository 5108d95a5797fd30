package tty

import (
	"testing"

	"ember/defs"
	"ember/mem"
)

func openTestTty(t *testing.T) *Tty_t {
	t.Helper()
	mem.Phys_init()
	mem.Dmap_init()
	tt, err := Open(mem.Physmem)
	if err != 0 {
		t.Fatalf("Open failed: %d", err)
	}
	return tt
}

func TestInputRawModePassesBytesThrough(t *testing.T) {
	tt := openTestTty(t)
	tt.Configure(Termios_t{Lflag: 0, Cc: defaultCc}) // no ICANON, no ECHO, no ISIG
	got := tt.Input([]byte("ab"))
	if string(got) != "ab" {
		t.Fatalf("Input raw mode = %q, want %q", got, "ab")
	}
}

func TestInputCanonicalModeBuffersUntilNewline(t *testing.T) {
	tt := openTestTty(t)
	tt.Configure(Termios_t{Lflag: ICANON, Cc: defaultCc})
	if got := tt.Input([]byte("hi")); len(got) != 0 {
		t.Fatalf("Input before newline = %q, want no ready bytes yet", got)
	}
	got := tt.Input([]byte("\n"))
	if string(got) != "hi\n" {
		t.Fatalf("Input at newline = %q, want %q", got, "hi\n")
	}
}

func TestInputErasePopsLastBufferedByte(t *testing.T) {
	tt := openTestTty(t)
	tt.Configure(Termios_t{Lflag: ICANON, Cc: defaultCc})
	tt.Input([]byte("hix"))
	tt.Input([]byte{defaultCc[VERASE]})
	got := tt.Input([]byte("\n"))
	if string(got) != "hi\n" {
		t.Fatalf("Input after erase = %q, want %q", got, "hi\n")
	}
}

func TestInputSignalCharDoesNotBufferAndInvokesSignalFn(t *testing.T) {
	tt := openTestTty(t)
	tt.Configure(Termios_t{Lflag: ICANON | ISIG, Cc: defaultCc})
	var gotSig int
	tt.SetSignalFn(func(pgrp, sig int) { gotSig = sig })
	tt.SetForeground(7)
	ready := tt.Input([]byte{defaultCc[VINTR]})
	if len(ready) != 0 {
		t.Fatalf("Input of an interrupt char produced ready bytes %q, want none", ready)
	}
	if gotSig != defs.SIGINT {
		t.Fatalf("signalFn got sig=%d, want SIGINT(%d)", gotSig, defs.SIGINT)
	}
}
