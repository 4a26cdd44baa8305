package descriptor

import (
	"errors"
	"testing"

	"code.hybscloud.com/arpc/rpcerr"
)

func TestPipePairReadWrite(t *testing.T) {
	r, w, err := PipePair()
	if err != nil {
		t.Fatalf("PipePair: %v", err)
	}
	defer r.Close()
	defer w.Close()

	n, err := w.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = %d, %v", n, err)
	}

	buf := make([]byte, 5)
	n, err = r.Read(buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("Read = %d, %q, %v", n, buf, err)
	}
}

func TestMoveEmptiesSource(t *testing.T) {
	r, w, err := PipePair()
	if err != nil {
		t.Fatalf("PipePair: %v", err)
	}
	defer w.Close()

	moved := r.Move()
	if r.Valid() {
		t.Fatalf("source descriptor should be empty after Move")
	}
	if !moved.Valid() {
		t.Fatalf("moved descriptor should own the resource")
	}
	moved.Close()
}

func TestCloseIdempotent(t *testing.T) {
	r, w, err := PipePair()
	if err != nil {
		t.Fatalf("PipePair: %v", err)
	}
	defer w.Close()

	if err := r.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestNonBlockingReadWithNoDataFailsTryAgain(t *testing.T) {
	r, w, err := PipePair()
	if err != nil {
		t.Fatalf("PipePair: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if err := r.SetBlocking(false); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}

	buf := make([]byte, 1)
	_, err = r.Read(buf)
	var rerr *rpcerr.Error
	if !errors.As(err, &rerr) || rerr.Kind != rpcerr.TryAgain {
		t.Fatalf("Read on empty nonblocking pipe = %v, want TryAgain", err)
	}
}

func TestReadOnEmptyDescriptor(t *testing.T) {
	d := Empty()
	_, err := d.Read(make([]byte, 1))
	if rpcerr.KindOf(err) != rpcerr.InvalidState {
		t.Fatalf("Read on empty descriptor = %v, want InvalidState", err)
	}
}

func TestSocketPairIsFullDuplex(t *testing.T) {
	a, b, err := SocketPair()
	if err != nil {
		t.Fatalf("SocketPair: %v", err)
	}
	defer a.Close()
	defer b.Close()

	if _, err := a.Write([]byte("ping")); err != nil {
		t.Fatalf("a.Write: %v", err)
	}
	buf := make([]byte, 4)
	if n, err := b.Read(buf); err != nil || string(buf[:n]) != "ping" {
		t.Fatalf("b.Read = %d, %q, %v", n, buf[:n], err)
	}

	if _, err := b.Write([]byte("pong")); err != nil {
		t.Fatalf("b.Write: %v", err)
	}
	if n, err := a.Read(buf); err != nil || string(buf[:n]) != "pong" {
		t.Fatalf("a.Read = %d, %q, %v", n, buf[:n], err)
	}
}

func TestDuplicate(t *testing.T) {
	r, w, err := PipePair()
	if err != nil {
		t.Fatalf("PipePair: %v", err)
	}
	defer r.Close()
	defer w.Close()

	dup, err := r.Duplicate()
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	defer dup.Close()
	if dup.FD() == r.FD() {
		t.Fatalf("duplicate should have a distinct fd")
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := dup.Read(buf); err != nil {
		t.Fatalf("Read via dup: %v", err)
	}
}
