// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpc

import (
	"bytes"
	"context"
	"sync"

	"code.hybscloud.com/arpc/codec"
	"code.hybscloud.com/arpc/conn"
	"code.hybscloud.com/arpc/packet"
	"code.hybscloud.com/arpc/rpcerr"
)

// Client issues calls against a single Connection. §5's ordering
// guarantees serialize reads and writes per connection already; Client
// additionally serializes whole request/response round trips with a
// mutex, so at most one Call is ever in flight on a given Connection.
type Client struct {
	opts Options
	mu   sync.Mutex
	c    *conn.Connection
}

// NewClient wraps c for RPC calls.
func NewClient(c *conn.Connection, opts ...Option) *Client {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Client{opts: o, c: c}
}

// Call invokes method on object, encoding args as the request body and
// decoding a value of type R from the response body. A StatusError
// response re-raises a local error looked up by the Client's error
// registry (rpcerr.Default() unless overridden via WithErrorRegistry).
func Call[A, R any](ctx context.Context, cl *Client, object string, method uint32, args A) (R, error) {
	var zero R

	cl.mu.Lock()
	defer cl.mu.Unlock()

	var req bytes.Buffer
	e := codec.NewEncoder(&req, codec.Native())
	if err := e.PutFingerprint(requestFingerprint); err != nil {
		return zero, err
	}
	if err := e.PutString(object); err != nil {
		return zero, err
	}
	if err := e.PutVarint(uint64(method)); err != nil {
		return zero, err
	}
	if err := codec.Encode(e, args); err != nil {
		return zero, err
	}

	writer := packet.NewWriter(connWriter{ctx, cl.c})
	if _, err := writer.Write(req.Bytes()); err != nil {
		cl.opts.Logger.Debug().Str("object", object).Err(err).Msg("rpc: call write failed")
		return zero, err
	}

	reader := packet.NewReader(connReader{ctx, cl.c})
	msg := make([]byte, cl.opts.MaxMessage)
	n, err := reader.Read(msg)
	if err != nil {
		cl.opts.Logger.Debug().Str("object", object).Err(err).Msg("rpc: call read failed")
		return zero, err
	}

	d := codec.NewDecoder(bytes.NewReader(msg[:n]), codec.Native())
	fp, err := d.GetFingerprint()
	if err != nil {
		return zero, err
	}
	if fp != responseFingerprint {
		return zero, rpcerr.New(rpcerr.DataMismatch, "response header fingerprint mismatch")
	}
	status, err := d.GetUint8()
	if err != nil {
		return zero, err
	}

	switch Status(status) {
	case StatusOK:
		return codec.Decode[R](d)
	case StatusError:
		eb, err := codec.Decode[errorBody](d)
		if err != nil {
			return zero, err
		}
		return zero, cl.opts.Errors.FromWire(eb.Class, eb.Message)
	default:
		return zero, rpcerr.New(rpcerr.DataMismatch, "unknown response status %d", status)
	}
}
