// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package packet

import (
	"time"

	"code.hybscloud.com/arpc/mac"
)

// Protocol describes the expected message-boundary behavior of the
// underlying transport and which framing algorithm packet must apply.
//
//   - ProtectedStream: boundaries are not preserved (e.g., TCP, a Unix
//     stream socket). packet prefixes each message with a varint length.
//   - SerialLine: a byte-oriented link with no length-prefix framing of
//     its own (e.g., a UART). packet authenticates the payload with a MAC,
//     stuffs it with COBS so the result never contains a zero byte, and
//     terminates the frame with a single NUL.
//   - SeqPacket / Datagram: boundaries are preserved by the transport
//     itself. packet is pass-through.
type Protocol uint8

const (
	ProtectedStream Protocol = 1
	SerialLine      Protocol = 2
	SeqPacket       Protocol = 3
	Datagram        Protocol = 4
)

func (p Protocol) preserveBoundary() bool {
	switch p {
	case SeqPacket, Datagram:
		return true
	default:
		return false
	}
}

// Options configures framing behavior.
type Options struct {
	ReadProto  Protocol
	WriteProto Protocol

	// ReadLimit caps the maximum allowed payload size (bytes). Zero means no limit.
	// For SerialLine the cap applies to the raw frame received before its NUL
	// terminator (the COBS-stuffed payload plus its 8-byte MAC tag), which is
	// longer than the payload it carries.
	ReadLimit int

	// MACKey is the 256-bit key used by the SerialLine protocol's
	// authentication codec. Unused by every other Protocol.
	MACKey [4]uint64

	// RetryDelay controls how the framer handles iox.ErrWouldBlock from the underlying transport:
	//   - negative: nonblock, return ErrWouldBlock immediately
	//   - zero: yield (runtime.Gosched) and retry
	//   - positive: sleep for the duration and retry
	RetryDelay time.Duration
}

var defaultOptions = Options{
	ReadProto:  ProtectedStream,
	WriteProto: ProtectedStream,
	ReadLimit:  0,
	MACKey:     mac.DefaultKey,
	RetryDelay: -1, // default: nonblock
}

type Option func(*Options)

func WithProtocol(proto Protocol) Option {
	return func(o *Options) {
		o.ReadProto = proto
		o.WriteProto = proto
	}
}

func WithReadProtocol(proto Protocol) Option {
	return func(o *Options) { o.ReadProto = proto }
}

func WithWriteProtocol(proto Protocol) Option {
	return func(o *Options) { o.WriteProto = proto }
}

func WithReadLimit(limit int) Option {
	return func(o *Options) { o.ReadLimit = limit }
}

// WithMACKey overrides the SerialLine protocol's default authentication key.
func WithMACKey(key [4]uint64) Option {
	return func(o *Options) { o.MACKey = key }
}

// WithRetryDelay sets the retry/wait policy used when the underlying transport returns iox.ErrWouldBlock.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Options) { o.RetryDelay = d }
}

// WithBlock enables cooperative blocking (yield-and-retry) on iox.ErrWouldBlock.
func WithBlock() Option {
	return func(o *Options) { o.RetryDelay = 0 }
}

// WithNonblock forces non-blocking behavior (return iox.ErrWouldBlock immediately).
func WithNonblock() Option {
	return func(o *Options) { o.RetryDelay = -1 }
}
