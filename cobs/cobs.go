// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cobs implements Consistent Overhead Byte Stuffing, grounded on
// original_source/src/lasr/packet_codecs.h's cobs_codec. No example repo in
// the pack depends on a COBS library; this is a small, fully bit-exact
// algorithm implemented directly against the standard, matching the
// teacher's own habit of hand-rolling small framing primitives (its
// length-prefix header logic in internal.go) rather than reaching for a
// dependency.
package cobs

import "code.hybscloud.com/arpc/rpcerr"

// Encode returns the COBS encoding of data: every zero byte is removed and
// replaced by a chain of length-prefix codes, each pointing to the distance
// to the next zero (or to the 254-byte block boundary, whichever comes
// first). The result never contains a zero byte, so callers frame packets
// by appending a single NUL terminator.
func Encode(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/254+1)
	codeIdx := len(out)
	out = append(out, 0) // placeholder for the first code byte
	code := byte(1)

	for _, b := range data {
		if b == 0 {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
			continue
		}
		out = append(out, b)
		code++
		if code == 0xff {
			out[codeIdx] = code
			codeIdx = len(out)
			out = append(out, 0)
			code = 1
		}
	}
	out[codeIdx] = code
	return out
}

// Decode reverses Encode. It fails with rpcerr.DataMismatch if data is not
// a well-formed COBS frame (a code byte of 0, or a code pointing past the
// end of the buffer).
func Decode(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	i := 0
	for i < len(data) {
		code := int(data[i])
		if code == 0 {
			return nil, rpcerr.New(rpcerr.DataMismatch, "cobs: zero code byte at offset %d", i)
		}
		i++
		for k := 1; k < code; k++ {
			if i >= len(data) {
				return nil, rpcerr.New(rpcerr.DataMismatch, "cobs: truncated frame, code %d needs %d more bytes", code, code-k)
			}
			out = append(out, data[i])
			i++
		}
		if code != 0xff && i < len(data) {
			out = append(out, 0)
		}
	}
	return out, nil
}
