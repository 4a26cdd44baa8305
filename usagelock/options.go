// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package usagelock

import "code.hybscloud.com/arpc/rpcerr"

// Options configures a Lock.
type Options struct {
	// DisarmedKind is the rpcerr.Kind a Get call fails with while the lock
	// is disarmed. Defaults to rpcerr.Unavailable, matching the source's
	// default template parameter (errors::unavailable).
	DisarmedKind rpcerr.Kind
	// Message is included in the error returned while disarmed.
	Message string
}

var defaultOptions = Options{DisarmedKind: rpcerr.Unavailable}

// Option configures a Lock at construction time.
type Option func(*Options)

// WithDisarmedKind overrides the Kind returned by Get while disarmed.
func WithDisarmedKind(kind rpcerr.Kind) Option {
	return func(o *Options) { o.DisarmedKind = kind }
}

// WithMessage sets the message attached to the disarmed error.
func WithMessage(message string) Option {
	return func(o *Options) { o.Message = message }
}
