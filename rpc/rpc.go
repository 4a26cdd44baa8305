// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rpc implements the dispatch layer on top of conn.Connection and
// packet: a Server exports named methods on named objects, a Client calls
// them. Grounded on spec.md §6's RPC call shape and tested against §8
// scenario 6.
//
// Wire shape per call (§6): request payload is (object_name: string,
// method_ordinal: varint, args: tuple<...>); response payload is
// (status: enum{ok, error}, body) where body is the return tuple on ok or
// (error_class_name: string, message: string) on error. A method's args and
// return arity is per-registration information a Go generic type cannot
// name once and for all, so only the fixed header portion of each envelope
// (object/method on the request side, status on the response side) carries
// a schema fingerprint; args and the ok-body are encoded immediately after
// with no additional framing, the same convention codec.Pair/Tuple3/Tuple4
// already use for their own elements.
package rpc

import (
	"bytes"
	"context"
	"io"

	"code.hybscloud.com/arpc/codec"
	"code.hybscloud.com/arpc/conn"
	"code.hybscloud.com/arpc/rpcerr"
)

// Status reports whether a response carries a return value or an error.
type Status uint8

const (
	StatusOK Status = iota
	StatusError
)

// requestHeader and responseHeader exist only to give the fixed portion of
// each envelope a schema fingerprint; their fields are never encoded via
// codec.Encode[requestHeader]/codec.Encode[responseHeader] directly (the
// object/method/status fields are written manually so args/body can follow
// inline).
type requestHeader struct {
	Object string
	Method uint32
}

type responseHeader struct {
	Status uint8
}

// errorBody is the response body's shape on StatusError, matching §6
// exactly: "(error_class_name: string, message: string)".
type errorBody struct {
	Class   string
	Message string
}

var (
	requestFingerprint  = codec.TypeFingerprint[requestHeader]()
	responseFingerprint = codec.TypeFingerprint[responseHeader]()
)

// Handler decodes a method's args from d, does the work, and encodes the
// result into e. Returning an error aborts the ok-response and causes the
// caller to receive a StatusError response instead.
type Handler func(ctx context.Context, d *codec.Decoder, e *codec.Encoder) error

// Method adapts a typed Go function into a Handler, decoding A from the
// wire, invoking fn, and encoding its result. This is the one generic
// instantiation point that gives each registered method its own concrete
// arity.
func Method[A, R any](fn func(ctx context.Context, args A) (R, error)) Handler {
	return func(ctx context.Context, d *codec.Decoder, e *codec.Encoder) error {
		args, err := codec.Decode[A](d)
		if err != nil {
			return err
		}
		result, err := fn(ctx, args)
		if err != nil {
			return err
		}
		return codec.Encode(e, result)
	}
}

// connReader adapts Connection.Read to io.Reader by binding a fixed ctx,
// letting packet.NewReader wrap a conn.Connection directly. A Connection
// constructed with the default (blocking) RetryDelay never surfaces
// rpcerr.TryAgain here, so packet's own would-block retry handling is
// never exercised on this path — cancellation and disconnect aside, Read
// behaves like a plain blocking io.Reader.
type connReader struct {
	ctx context.Context
	c   *conn.Connection
}

// Read bridges Connection.Read's descriptor-level semantics (a clean peer
// close surfaces as (0, nil), mirroring read(2)) to io.Reader's contract,
// which reserves (0, nil) for "nothing happened yet" and requires io.EOF to
// signal end of stream.
func (r connReader) Read(p []byte) (int, error) {
	n, err := r.c.Read(r.ctx, p)
	if n == 0 && err == nil && len(p) != 0 {
		return 0, io.EOF
	}
	return n, err
}

// connWriter is connReader's write-side counterpart. Connection.Write may
// report a short write without an error (a single non-blocking descriptor
// write syscall can write less than requested), so unlike connReader this
// adapter loops to satisfy io.Writer's all-or-error contract.
type connWriter struct {
	ctx context.Context
	c   *conn.Connection
}

func (w connWriter) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := w.c.Write(w.ctx, p[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// errorDetail extracts the message to report on the wire for err: an
// *rpcerr.Error's Message field, or err.Error() for anything else.
func errorDetail(err error) string {
	if rerr, ok := err.(*rpcerr.Error); ok {
		return rerr.Message
	}
	return err.Error()
}

// writeOK encodes a StatusOK response whose body is the bytes already
// produced by a Handler, and writes the framed envelope to w.
func writeOK(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	e := codec.NewEncoder(&buf, codec.Native())
	if err := e.PutFingerprint(responseFingerprint); err != nil {
		return err
	}
	if err := e.PutUint8(uint8(StatusOK)); err != nil {
		return err
	}
	buf.Write(body)
	_, err := w.Write(buf.Bytes())
	return err
}

// writeError encodes a StatusError response carrying err's portable class
// name and message, and writes the framed envelope to w.
func writeError(w io.Writer, err error) error {
	var buf bytes.Buffer
	e := codec.NewEncoder(&buf, codec.Native())
	if ferr := e.PutFingerprint(responseFingerprint); ferr != nil {
		return ferr
	}
	if serr := e.PutUint8(uint8(StatusError)); serr != nil {
		return serr
	}
	if eerr := codec.Encode(e, errorBody{Class: rpcerr.ClassName(err), Message: errorDetail(err)}); eerr != nil {
		return eerr
	}
	_, werr := w.Write(buf.Bytes())
	return werr
}
