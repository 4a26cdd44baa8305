// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rpcerr defines the portable error taxonomy shared by every layer
// of the RPC runtime (codec, packet protocols, connection, dispatch) and a
// process-wide registry mapping portable error-class names to constructors,
// so a peer's reported error can be re-raised locally as the matching kind.
package rpcerr

import (
	"errors"
	"fmt"
	"sync"
)

// Kind is a portable error classification that crosses the wire as a string
// (see Kind.String / ParseKind). It never carries peer-specific detail.
type Kind uint8

const (
	EOF Kind = iota
	IOError
	TryAgain
	ShuttingDown
	Cancelled
	InvalidState
	KeyError
	OutOfRange
	DataMismatch
	Unavailable
	UnknownError
)

var kindNames = [...]string{
	EOF:          "eof",
	IOError:      "io-error",
	TryAgain:     "try-again",
	ShuttingDown: "shutting-down",
	Cancelled:    "cancelled",
	InvalidState: "invalid-state",
	KeyError:     "key-error",
	OutOfRange:   "out-of-range",
	DataMismatch: "data-mismatch",
	Unavailable:  "unavailable",
	UnknownError: "unknown-error",
}

// String returns the portable wire name for k, or "unknown-error" if k is
// not one of the defined constants.
func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return kindNames[UnknownError]
}

// ParseKind maps a portable wire name back to a Kind. Unrecognized names
// resolve to UnknownError, matching spec: "defaulting to unknown-error if
// the name is unregistered".
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return Kind(k)
		}
	}
	return UnknownError
}

// Error is the concrete error type used across the runtime. It carries a
// Kind (the portable classification), a message, and an optional numeric
// code (used by IOError to embed the underlying OS errno-equivalent).
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, rpcerr.New(rpcerr.TryAgain, "")).
func (e *Error) Is(target error) bool {
	var o *Error
	if errors.As(target, &o) {
		return o.Kind == e.Kind
	}
	return false
}

// New constructs an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WrapIO constructs an IOError carrying the numeric OS error code, matching
// spec §7: "io-error: Any underlying OS I/O failure with numeric code
// attached."
func WrapIO(cause error, code int, format string, args ...any) *Error {
	return &Error{Kind: IOError, Message: fmt.Sprintf(format, args...), Code: code, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, otherwise
// returns UnknownError.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnknownError
}

// Factory constructs a local error of a registered portable kind from a
// peer-supplied message. Used by Registry.FromWire.
type Factory func(message string) error

// Registry is a process-wide, write-once-then-read-only map from portable
// error-class name to a Factory, grounded on arpc/errors.cpp's
// error_factory: RPC responses carry a portable class name and a message;
// the receiving side looks the name up to re-raise a local error of the
// matching kind.
type Registry struct {
	mu    sync.RWMutex
	named map[string]Factory
}

// NewRegistry returns a Registry pre-populated with a Factory for every
// built-in Kind, so FromWire never needs a special default case for them.
func NewRegistry() *Registry {
	r := &Registry{named: make(map[string]Factory, len(kindNames))}
	for k, name := range kindNames {
		kind := Kind(k)
		r.named[name] = func(message string) error { return New(kind, "%s", message) }
	}
	return r
}

// Register inserts name -> factory. Duplicate registration under the same
// name is rejected with InvalidState, matching spec §6.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.named[name]; ok {
		return New(InvalidState, "error class %q already registered", name)
	}
	r.named[name] = factory
	return nil
}

// FromWire reconstructs a local error from a portable class name and
// message, defaulting to UnknownError when name is unregistered (spec §7).
func (r *Registry) FromWire(name, message string) error {
	r.mu.RLock()
	factory, ok := r.named[name]
	r.mu.RUnlock()
	if !ok {
		return New(UnknownError, "%s", message)
	}
	return factory(message)
}

// ClassName returns the portable class name to put on the wire for err: the
// Kind's wire name if err is an *Error, else "unknown-error".
func ClassName(err error) string {
	return KindOf(err).String()
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide default registry, populated at package
// init with every built-in Kind.
func Default() *Registry { return defaultRegistry }
