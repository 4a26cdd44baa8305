// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import "github.com/rs/zerolog"

// Options configures a Pool.
type Options struct {
	// Logger receives a warning event whenever a submitted Task panics, and
	// an info event when Close joins every worker. Defaults to a no-op
	// logger.
	Logger zerolog.Logger
}

var defaultOptions = Options{Logger: zerolog.Nop()}

// Option configures a Pool at construction time.
type Option func(*Options)

// WithLogger attaches a logger for this Pool's lifecycle and task-panic
// events.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}
