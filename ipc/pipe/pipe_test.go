package pipe

import (
	"testing"
	"time"

	"ember/defs"
	"ember/mem"
)

type noopKn struct{ activated chan int }

func (k *noopKn) Activate(hint int) {
	if k.activated != nil {
		select {
		case k.activated <- hint:
		default:
		}
	}
}

func newTestPipe(t *testing.T) *Pipe_t {
	t.Helper()
	mem.Phys_init()
	mem.Dmap_init()
	p, err := Mkpipe(mem.Physmem, &noopKn{})
	if err != 0 {
		t.Fatalf("Mkpipe failed: %d", err)
	}
	return p
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	p := newTestPipe(t)
	n, err := p.Write([]byte("hello"), nil)
	if err != 0 || n != 5 {
		t.Fatalf("Write = (%d, %d), want (5, 0)", n, err)
	}
	buf := make([]byte, 5)
	n, err = p.Read(buf)
	if err != 0 || n != 5 || string(buf) != "hello" {
		t.Fatalf("Read = (%q, %d, %d), want (hello, 5, 0)", buf[:n], n, err)
	}
}

func TestReadReturnsEOFOnceWritersGone(t *testing.T) {
	p := newTestPipe(t)
	p.CloseWriter()
	buf := make([]byte, 4)
	n, err := p.Read(buf)
	if err != 0 || n != 0 {
		t.Fatalf("Read after last writer closed = (%d, %d), want (0, 0) EOF", n, err)
	}
}

func TestWriteWithNoReadersRaisesSigpipe(t *testing.T) {
	p := newTestPipe(t)
	p.CloseReader()
	var raised bool
	_, err := p.Write([]byte("x"), func() { raised = true })
	if err != -defs.EPIPE {
		t.Fatalf("Write with no readers = %d, want -EPIPE", err)
	}
	if !raised {
		t.Fatal("expected raiseSigpipe to be called")
	}
}

func TestReadBlocksUntilDataWritten(t *testing.T) {
	p := newTestPipe(t)
	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 3)
		n, _ := p.Read(buf)
		done <- buf[:n]
	}()
	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Read returned before any data was written")
	default:
	}
	p.Write([]byte("abc"), nil)
	select {
	case got := <-done:
		if string(got) != "abc" {
			t.Fatalf("Read returned %q, want abc", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Read never returned after Write")
	}
}
