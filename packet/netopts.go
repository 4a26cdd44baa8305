// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package packet

// Transport default mapping, single source of truth — transport → Protocol:
//   - TCP               → ProtectedStream (varint length prefix)
//   - UDP               → Datagram        (boundaries preserved, pass-through)
//   - WebSocket         → SeqPacket       (boundaries preserved)
//   - SCTP              → SeqPacket       (boundaries preserved)
//   - Unix (stream)     → ProtectedStream
//   - UnixPacket        → Datagram
//   - Serial (UART)     → SerialLine      (MAC -> COBS -> NUL)

type netKind uint8

const (
	netTCP netKind = iota
	netUDP
	netWebSocket
	netSCTP
	netUnixStream
	netUnixPacket
	netSerial
)

func defaultsFor(kind netKind) Protocol {
	switch kind {
	case netTCP:
		return ProtectedStream
	case netUDP:
		return Datagram
	case netWebSocket:
		// WebSocket frames preserve boundaries; packet is pass-through.
		return SeqPacket
	case netSCTP:
		// SCTP preserves message boundaries.
		return SeqPacket
	case netUnixStream:
		return ProtectedStream
	case netUnixPacket:
		return Datagram
	case netSerial:
		return SerialLine
	default:
		return ProtectedStream
	}
}

// WithReadTCP configures the reader side for TCP: ProtectedStream (varint length prefix).
func WithReadTCP() Option {
	return func(o *Options) { o.ReadProto = defaultsFor(netTCP) }
}

// WithWriteTCP configures the writer side for TCP: ProtectedStream (varint length prefix).
func WithWriteTCP() Option {
	return func(o *Options) { o.WriteProto = defaultsFor(netTCP) }
}

// WithReadUDP configures the reader side for UDP: Datagram (pass-through).
func WithReadUDP() Option {
	return func(o *Options) { o.ReadProto = defaultsFor(netUDP) }
}

// WithWriteUDP configures the writer side for UDP: Datagram (pass-through).
func WithWriteUDP() Option {
	return func(o *Options) { o.WriteProto = defaultsFor(netUDP) }
}

// WithReadWebSocket configures the reader side for WebSocket: SeqPacket (boundaries preserved).
func WithReadWebSocket() Option {
	return func(o *Options) { o.ReadProto = defaultsFor(netWebSocket) }
}

// WithWriteWebSocket configures the writer side for WebSocket: SeqPacket (boundaries preserved).
func WithWriteWebSocket() Option {
	return func(o *Options) { o.WriteProto = defaultsFor(netWebSocket) }
}

// WithReadSCTP configures the reader side for SCTP: SeqPacket (boundaries preserved).
func WithReadSCTP() Option {
	return func(o *Options) { o.ReadProto = defaultsFor(netSCTP) }
}

// WithWriteSCTP configures the writer side for SCTP: SeqPacket (boundaries preserved).
func WithWriteSCTP() Option {
	return func(o *Options) { o.WriteProto = defaultsFor(netSCTP) }
}

// WithReadUnix configures the reader side for Unix stream sockets: ProtectedStream.
func WithReadUnix() Option {
	return func(o *Options) { o.ReadProto = defaultsFor(netUnixStream) }
}

// WithWriteUnix configures the writer side for Unix stream sockets: ProtectedStream.
func WithWriteUnix() Option {
	return func(o *Options) { o.WriteProto = defaultsFor(netUnixStream) }
}

// WithReadUnixPacket configures the reader side for Unix datagram sockets: Datagram (pass-through).
func WithReadUnixPacket() Option {
	return func(o *Options) { o.ReadProto = defaultsFor(netUnixPacket) }
}

// WithWriteUnixPacket configures the writer side for Unix datagram sockets: Datagram (pass-through).
func WithWriteUnixPacket() Option {
	return func(o *Options) { o.WriteProto = defaultsFor(netUnixPacket) }
}

// WithReadSerial configures the reader side for a serial line: SerialLine (MAC -> COBS -> NUL).
func WithReadSerial() Option {
	return func(o *Options) { o.ReadProto = defaultsFor(netSerial) }
}

// WithWriteSerial configures the writer side for a serial line: SerialLine (MAC -> COBS -> NUL).
func WithWriteSerial() Option {
	return func(o *Options) { o.WriteProto = defaultsFor(netSerial) }
}
