package selectio

import (
	"context"
	"testing"
	"time"

	"code.hybscloud.com/arpc/descriptor"
	"code.hybscloud.com/arpc/rpcerr"
)

func TestSelectTimeoutFires(t *testing.T) {
	r, w, err := descriptor.PipePair()
	if err != nil {
		t.Fatalf("PipePair: %v", err)
	}
	defer r.Close()
	defer w.Close()

	start := time.Now()
	fired, err := Select(context.Background(), ReadableOf(r), Timeout(30*time.Millisecond))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if fired[0] || !fired[1] {
		t.Fatalf("fired = %v, want [false true]", fired)
	}
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Fatalf("returned too early: %v", elapsed)
	}
}

func TestSelectReadableFiresImmediately(t *testing.T) {
	r, w, err := descriptor.PipePair()
	if err != nil {
		t.Fatalf("PipePair: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	fired, err := Select(context.Background(), ReadableOf(r), Timeout(time.Second))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !fired[0] {
		t.Fatalf("fired = %v, want readable entry true", fired)
	}
}

func TestSelectAlwaysFires(t *testing.T) {
	fired, err := Select(context.Background(), Always())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !fired[0] {
		t.Fatalf("Always() should always fire")
	}
}

func TestSelectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Select(ctx, Timeout(time.Hour))
	if rpcerr.KindOf(err) != rpcerr.Cancelled {
		t.Fatalf("Select on cancelled ctx = %v, want Cancelled", err)
	}
}

func TestAwaitableThen(t *testing.T) {
	r, w, err := descriptor.PipePair()
	if err != nil {
		t.Fatalf("PipePair: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if _, err := w.Write([]byte("z")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	aw := Then(ReadableOf(r), func() (byte, error) {
		buf := make([]byte, 1)
		if _, err := r.Read(buf); err != nil {
			return 0, err
		}
		return buf[0], nil
	})

	got, err := Await(context.Background(), aw)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got != 'z' {
		t.Fatalf("got %q, want 'z'", got)
	}
}
