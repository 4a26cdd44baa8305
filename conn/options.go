// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conn

import (
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Connection.
type Options struct {
	// RetryDelay governs how Read/Write behave when the data descriptor
	// reports try-again: <0 means return rpcerr.TryAgain immediately
	// (nonblocking, with no select on the self-pipe); any value >=0 means
	// wait in selectio.Select on the descriptor's readiness and the
	// self-pipe, then retry. Only the sign is used: a positive value
	// behaves the same as 0.
	RetryDelay time.Duration

	// Logger receives disconnect events. Defaults to a no-op logger; leaf
	// packages below this one (descriptor, selectio) stay silent, but a
	// long-lived Connection is worth tracing.
	Logger zerolog.Logger
}

var defaultOptions = Options{RetryDelay: 0, Logger: zerolog.Nop()}

// Option configures a Connection at construction time.
type Option func(*Options)

// WithRetryDelay sets RetryDelay; only its sign affects behaviour (see
// Options.RetryDelay).
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithNonblock makes Read/Write return rpcerr.TryAgain immediately instead
// of waiting for readiness; no select on the self-pipe is made.
func WithNonblock() Option {
	return func(o *Options) { o.RetryDelay = -1 }
}

// WithLogger attaches a logger for this Connection's lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
