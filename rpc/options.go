// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rpc

import (
	"github.com/rs/zerolog"

	"code.hybscloud.com/arpc/rpcerr"
)

// Options configures a Server or Client.
type Options struct {
	// MaxMessage bounds the size of a single encoded request or response
	// envelope. packet's ProtectedStream framing requires the reader's
	// scratch buffer to already fit the whole message (io.ErrShortBuffer
	// otherwise), so this also sizes that buffer.
	MaxMessage int

	// Errors resolves a peer-reported (error_class_name, message) pair back
	// into a local error on the Client side. Defaults to rpcerr.Default().
	Errors *rpcerr.Registry

	// Logger receives dispatch-error and call-failure events. Defaults to
	// a no-op logger.
	Logger zerolog.Logger
}

var defaultOptions = Options{
	MaxMessage: 64 * 1024,
	Errors:     rpcerr.Default(),
	Logger:     zerolog.Nop(),
}

// Option configures a Server or Client at construction time.
type Option func(*Options)

// WithMaxMessage overrides the maximum encoded envelope size.
func WithMaxMessage(n int) Option {
	return func(o *Options) { o.MaxMessage = n }
}

// WithErrorRegistry overrides the registry a Client uses to reconstruct
// errors reported by a peer.
func WithErrorRegistry(r *rpcerr.Registry) Option {
	return func(o *Options) { o.Errors = r }
}

// WithLogger attaches a logger for dispatch and call events.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
