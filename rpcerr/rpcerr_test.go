package rpcerr

import (
	"errors"
	"testing"
)

func TestKindStringRoundTrip(t *testing.T) {
	for k := EOF; k <= UnknownError; k++ {
		name := k.String()
		if name == "" {
			t.Fatalf("kind %d has empty name", k)
		}
		if got := ParseKind(name); got != k {
			t.Fatalf("ParseKind(%q) = %d, want %d", name, got, k)
		}
	}
}

func TestParseKindUnknown(t *testing.T) {
	if got := ParseKind("not-a-real-kind"); got != UnknownError {
		t.Fatalf("ParseKind(unregistered) = %d, want UnknownError", got)
	}
}

func TestErrorIs(t *testing.T) {
	a := New(TryAgain, "no data yet")
	b := New(TryAgain, "different message")
	c := New(IOError, "no data yet")

	if !errors.Is(a, b) {
		t.Fatalf("expected errors of the same kind to match via errors.Is")
	}
	if errors.Is(a, c) {
		t.Fatalf("expected errors of different kinds not to match")
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	wrapped := Wrap(DataMismatch, cause, "tag mismatch")
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected Unwrap to expose cause")
	}
	if KindOf(wrapped) != DataMismatch {
		t.Fatalf("KindOf = %v, want DataMismatch", KindOf(wrapped))
	}
}

func TestKindOfNonRPCError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != UnknownError {
		t.Fatalf("KindOf(plain) = %v, want UnknownError", got)
	}
}

func TestRegistryDuplicateRejected(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("my.Error", func(string) error { return New(InvalidState, "x") }); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	err := r.Register("my.Error", func(string) error { return New(InvalidState, "x") })
	if KindOf(err) != InvalidState {
		t.Fatalf("duplicate registration should fail with InvalidState, got %v", err)
	}
}

func TestRegistryFromWireKnownAndUnknown(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("myapp.NotFound", func(msg string) error { return New(KeyError, "%s", msg) })

	err := r.FromWire("myapp.NotFound", "missing widget")
	if KindOf(err) != KeyError {
		t.Fatalf("FromWire known name: KindOf = %v, want KeyError", KindOf(err))
	}

	err = r.FromWire("myapp.NeverRegistered", "boom")
	if KindOf(err) != UnknownError {
		t.Fatalf("FromWire unregistered name: KindOf = %v, want UnknownError", KindOf(err))
	}
}

func TestDefaultRegistryKnowsBuiltinKinds(t *testing.T) {
	err := Default().FromWire("shutting-down", "bye")
	if KindOf(err) != ShuttingDown {
		t.Fatalf("Default().FromWire(shutting-down) = %v, want ShuttingDown", KindOf(err))
	}
}

func TestClassName(t *testing.T) {
	if got := ClassName(New(KeyError, "x")); got != "key-error" {
		t.Fatalf("ClassName = %q, want key-error", got)
	}
	if got := ClassName(errors.New("plain")); got != "unknown-error" {
		t.Fatalf("ClassName(plain) = %q, want unknown-error", got)
	}
}
