// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package packet

import (
	"io"
	"runtime"
	"time"

	"code.hybscloud.com/arpc/cobs"
	"code.hybscloud.com/arpc/codec"
	"code.hybscloud.com/arpc/mac"
)

const (
	framePayloadMaxLen56 = 1<<56 - 1
	maxVarintHeaderBytes = 10 // enough for a 64-bit varint
)

type framer struct {
	rd  io.Reader
	rpr Protocol
	wr  io.Writer
	wpr Protocol

	readLimit int64
	retryDelay time.Duration
	mac        *mac.Codec

	// ProtectedStream read state: accumulates the varint length header one
	// byte at a time (resumable across ErrWouldBlock), then the payload.
	hdrBuf      []byte
	lengthKnown bool
	length      int64
	offset      int64

	// ProtectedStream write state.
	whdr   []byte
	whdrOf int

	// SerialLine read state: accumulates the raw NUL-terminated frame.
	lineBuf []byte

	// SerialLine write state: the fully MAC+COBS encoded, NUL-terminated frame.
	frameBuf []byte
	frameOff int

	// reusable scratch buffer for Reader.WriteTo fast path
	rbuf []byte

	// WriteTo partial-write resume state: when dst.Write returns a
	// partial result with ErrWouldBlock/ErrMore, wtOff..wtLen marks
	// the unwritten region inside rbuf so the next WriteTo call can
	// finish draining before reading a new message.
	wtOff int
	wtLen int

	// reusable scratch buffer for Writer.ReadFrom fast path
	wbuf []byte
}

func newFramer(r io.Reader, w io.Writer, opts ...Option) *framer {
	o := defaultOptions
	for _, fn := range opts {
		fn(&o)
	}

	fr := &framer{
		rd:         r,
		wr:         w,
		rpr:        o.ReadProto,
		wpr:        o.WriteProto,
		readLimit:  int64(o.ReadLimit),
		retryDelay: o.RetryDelay,
		mac:        mac.New(o.MACKey),
	}
	return fr
}

func (fr *framer) reset() {
	fr.offset = 0
	fr.length = 0
	fr.hdrBuf = fr.hdrBuf[:0]
	fr.lengthKnown = false
}

func (fr *framer) yieldOnce() {
	// Cooperative yield to avoid burning a full core when emulating blocking
	// on top of a non-blocking transport.
	runtime.Gosched()
}

func (fr *framer) read(p []byte) (n int, err error) {
	if fr.rd == nil {
		return 0, ErrInvalidArgument
	}
	switch {
	case fr.rpr.preserveBoundary():
		return fr.readPacket(p)
	case fr.rpr == SerialLine:
		return fr.readSerialLine(p)
	default:
		return fr.readStream(p)
	}
}

func (fr *framer) write(p []byte) (n int, err error) {
	if fr.wr == nil {
		return 0, ErrInvalidArgument
	}
	switch {
	case fr.wpr.preserveBoundary():
		return fr.writePacket(p)
	case fr.wpr == SerialLine:
		return fr.writeSerialLine(p)
	default:
		return fr.writeStream(p)
	}
}

func (fr *framer) waitOnceOnWouldBlock() bool {
	// returns whether the caller should retry
	if fr.retryDelay < 0 {
		return false
	}
	if fr.retryDelay == 0 {
		runtime.Gosched()
		return true
	}
	time.Sleep(fr.retryDelay)
	return true
}

func (fr *framer) readOnce(p []byte) (n int, err error) {
	for {
		n, err = fr.rd.Read(p)
		// Guard against broken Readers that violate the io.Reader contract by
		// returning (0, nil) on a non-empty buffer. Without this, the stream
		// state machine can spin indefinitely.
		if len(p) != 0 && n == 0 && err == nil {
			return 0, io.ErrNoProgress
		}
		if n > 0 {
			return n, err
		}
		if err != ErrWouldBlock {
			return n, err
		}
		if !fr.waitOnceOnWouldBlock() {
			return n, err
		}
	}
}

func (fr *framer) writeOnce(p []byte) (n int, err error) {
	for {
		n, err = fr.wr.Write(p)
		// Guard against broken Writers that violate the io.Writer contract by
		// returning (0, nil) on a non-empty buffer. Without this, the stream
		// writer can spin indefinitely.
		if len(p) != 0 && n == 0 && err == nil {
			return 0, io.ErrShortWrite
		}
		if n > 0 {
			return n, err
		}
		if err != ErrWouldBlock {
			return n, err
		}
		if !fr.waitOnceOnWouldBlock() {
			return n, err
		}
	}
}

func (fr *framer) readPacket(p []byte) (n int, err error) {
	n, err = fr.readOnce(p)
	if fr.readLimit > 0 && int64(n) > fr.readLimit {
		return n, ErrTooLong
	}
	return n, err
}

func (fr *framer) writePacket(p []byte) (n int, err error) {
	if int64(len(p)) > framePayloadMaxLen56 {
		return 0, ErrTooLong
	}
	n, err = fr.writeOnce(p)
	if err != nil {
		return n, err
	}
	if n != len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// readStream implements the ProtectedStreamProtocol: a LEB128 varint byte
// count followed by exactly that many payload bytes.
//
// Stream framing contract: in nonblock mode, partial progress may be
// returned with iox.ErrWouldBlock. The caller must retry with the same
// buffer to preserve already-copied bytes.
func (fr *framer) readStream(p []byte) (n int, err error) {
	// 1) Read the varint length header one byte at a time; resumable.
	for !fr.lengthKnown {
		var b [1]byte
		rn, re := fr.readOnce(b[:])
		if rn == 1 {
			fr.hdrBuf = append(fr.hdrBuf, b[0])
			if len(fr.hdrBuf) > maxVarintHeaderBytes {
				return 0, ErrTooLong
			}
			if b[0] < 0x80 {
				v, n := decodeVarintBytes(fr.hdrBuf)
				if n != len(fr.hdrBuf) {
					return 0, ErrTooLong
				}
				fr.length = int64(v)
				fr.lengthKnown = true
			}
		}
		if re != nil {
			if re == io.EOF {
				if len(fr.hdrBuf) == 0 {
					// Clean EOF at message boundary.
					return 0, io.EOF
				}
				return 0, io.ErrUnexpectedEOF
			}
			return 0, re
		}
	}

	if fr.length < 0 || fr.length > framePayloadMaxLen56 {
		return 0, ErrTooLong
	}
	if fr.readLimit > 0 && fr.length > fr.readLimit {
		return 0, ErrTooLong
	}
	if int64(len(p)) < fr.length {
		return 0, io.ErrShortBuffer
	}

	// 2) Read the payload directly into p.
	for fr.offset < fr.length {
		rn, re := fr.readOnce(p[fr.offset:fr.length])
		fr.offset += int64(rn)
		n += rn
		if re != nil {
			if re == io.EOF {
				if fr.offset < fr.length {
					return n, io.ErrUnexpectedEOF
				}
				break
			}
			return n, re
		}
	}

	fr.reset()
	return n, nil
}

// writeStream implements the ProtectedStreamProtocol write side.
func (fr *framer) writeStream(p []byte) (n int, err error) {
	if int64(len(p)) > framePayloadMaxLen56 {
		return 0, ErrTooLong
	}

	// Initialize per-message state on the first call.
	if fr.offset == 0 && fr.whdrOf == 0 && len(fr.whdr) == 0 {
		fr.length = int64(len(p))
		fr.whdr = codec.PutVarint(fr.whdr[:0], uint64(fr.length))
	}
	if fr.length != int64(len(p)) {
		// The caller changed the message buffer mid-frame.
		return 0, io.ErrShortWrite
	}

	for fr.whdrOf < len(fr.whdr) {
		wn, we := fr.writeOnce(fr.whdr[fr.whdrOf:])
		fr.whdrOf += wn
		if we != nil {
			return 0, we
		}
	}

	for fr.offset < fr.length {
		wn, we := fr.writeOnce(p[fr.offset:])
		fr.offset += int64(wn)
		n += wn
		if we != nil {
			return n, we
		}
	}

	fr.offset = 0
	fr.length = 0
	fr.whdr = fr.whdr[:0]
	fr.whdrOf = 0
	return n, nil
}

// readSerialLine implements the SerialLineProtocol: accumulate raw bytes up
// to a NUL terminator, COBS-decode, then verify and strip the MAC tag.
func (fr *framer) readSerialLine(p []byte) (n int, err error) {
	for {
		var b [1]byte
		rn, re := fr.readOnce(b[:])
		if rn == 1 {
			if b[0] == 0 {
				break
			}
			fr.lineBuf = append(fr.lineBuf, b[0])
			if fr.readLimit > 0 && int64(len(fr.lineBuf)) > fr.readLimit {
				fr.lineBuf = fr.lineBuf[:0]
				return 0, ErrTooLong
			}
		}
		if re != nil {
			if re == io.EOF {
				if len(fr.lineBuf) == 0 {
					return 0, io.EOF
				}
				return 0, io.ErrUnexpectedEOF
			}
			return 0, re
		}
	}

	stuffed := fr.lineBuf
	fr.lineBuf = nil
	decoded, derr := cobs.Decode(stuffed)
	if derr != nil {
		return 0, derr
	}
	payload, merr := fr.mac.Decode(decoded)
	if merr != nil {
		return 0, merr
	}
	if len(payload) > len(p) {
		return 0, io.ErrShortBuffer
	}
	return copy(p, payload), nil
}

// writeSerialLine implements the SerialLineProtocol write side: MAC-tag the
// payload, COBS-stuff it, and terminate the frame with a NUL byte.
func (fr *framer) writeSerialLine(p []byte) (n int, err error) {
	if int64(len(p)) > framePayloadMaxLen56 {
		return 0, ErrTooLong
	}
	if fr.frameBuf == nil {
		tagged := fr.mac.Encode(p)
		fr.frameBuf = append(cobs.Encode(tagged), 0)
		fr.frameOff = 0
	}

	for fr.frameOff < len(fr.frameBuf) {
		wn, we := fr.writeOnce(fr.frameBuf[fr.frameOff:])
		fr.frameOff += wn
		if we != nil {
			return 0, we
		}
	}

	fr.frameBuf = nil
	fr.frameOff = 0
	return len(p), nil
}

// decodeVarintBytes decodes a complete LEB128 varint from buf, returning the
// value and the number of bytes consumed (0 if buf does not hold a
// terminated varint).
func decodeVarintBytes(buf []byte) (uint64, int) {
	var v uint64
	for i, b := range buf {
		if i >= maxVarintHeaderBytes {
			return 0, 0
		}
		v |= uint64(b&0x7f) << (7 * i)
		if b < 0x80 {
			return v, i + 1
		}
	}
	return 0, 0
}
