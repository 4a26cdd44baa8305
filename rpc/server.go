// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpc

import (
	"bytes"
	"context"
	"io"
	"sync"

	"code.hybscloud.com/arpc/codec"
	"code.hybscloud.com/arpc/conn"
	"code.hybscloud.com/arpc/packet"
	"code.hybscloud.com/arpc/rpcerr"
)

// Server holds a table of registered methods, keyed by object name then
// method ordinal, and dispatches incoming requests against it.
type Server struct {
	opts Options

	mu      sync.RWMutex
	objects map[string]map[uint32]Handler
}

// NewServer returns an empty Server.
func NewServer(opts ...Option) *Server {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}
	return &Server{opts: o, objects: make(map[string]map[uint32]Handler)}
}

// Register exports h as object's method. Registering the same
// (object, method) pair twice fails with rpcerr.InvalidState, matching
// §6's "duplicate registration under the same name is rejected with
// invalid-state" for the dynamic-class registry (the same discipline
// applies here to the method table).
func (s *Server) Register(object string, method uint32, h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	methods, ok := s.objects[object]
	if !ok {
		methods = make(map[uint32]Handler)
		s.objects[object] = methods
	}
	if _, exists := methods[method]; exists {
		return rpcerr.New(rpcerr.InvalidState, "object %q method %d already registered", object, method)
	}
	methods[method] = h
	return nil
}

func (s *Server) lookup(object string, method uint32) (Handler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	methods, ok := s.objects[object]
	if !ok {
		return nil, rpcerr.New(rpcerr.KeyError, "no such object %q", object)
	}
	h, ok := methods[method]
	if !ok {
		return nil, rpcerr.New(rpcerr.KeyError, "object %q has no method %d", object, method)
	}
	return h, nil
}

// Serve reads and dispatches requests from c until a read fails. A clean
// eof (the peer disconnected after its last request) returns nil; any
// other read failure, including shutting-down from a concurrent
// c.Disconnect, is returned to the caller.
func (s *Server) Serve(ctx context.Context, c *conn.Connection) error {
	reader := packet.NewReader(connReader{ctx, c})
	writer := packet.NewWriter(connWriter{ctx, c})
	buf := make([]byte, s.opts.MaxMessage)

	for {
		n, err := reader.Read(buf)
		if err != nil {
			if err == io.EOF || rpcerr.KindOf(err) == rpcerr.EOF {
				return nil
			}
			s.opts.Logger.Debug().Err(err).Msg("rpc: server read failed")
			return err
		}
		if err := s.dispatch(ctx, buf[:n], writer); err != nil {
			s.opts.Logger.Error().Err(err).Msg("rpc: server write failed")
			return err
		}
	}
}

// dispatch decodes one request out of msg, runs its handler, and writes the
// response envelope to w. Only a write failure (the connection is no
// longer usable) is returned to the caller; a handler error or an unknown
// object/method is reported to the peer as a StatusError response.
func (s *Server) dispatch(ctx context.Context, msg []byte, w io.Writer) error {
	d := codec.NewDecoder(bytes.NewReader(msg), codec.Native())

	fp, err := d.GetFingerprint()
	if err != nil {
		return writeError(w, err)
	}
	if fp != requestFingerprint {
		return writeError(w, rpcerr.New(rpcerr.DataMismatch, "request header fingerprint mismatch"))
	}
	object, err := d.GetString()
	if err != nil {
		return writeError(w, err)
	}
	method, err := d.GetVarint()
	if err != nil {
		return writeError(w, err)
	}

	handler, err := s.lookup(object, uint32(method))
	if err != nil {
		s.opts.Logger.Debug().Str("object", object).Uint64("method", method).Err(err).Msg("rpc: lookup failed")
		return writeError(w, err)
	}

	var body bytes.Buffer
	e := codec.NewEncoder(&body, codec.Native())
	if err := handler(ctx, d, e); err != nil {
		return writeError(w, err)
	}
	return writeOK(w, body.Bytes())
}
