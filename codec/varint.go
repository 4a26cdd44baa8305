// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import "code.hybscloud.com/arpc/rpcerr"

// PutVarint appends the base-128 little-endian varint encoding of v to dst
// and returns the extended slice, per spec §4.6/§6: "Unsigned base-128,
// little-endian groups of 7 bits; each byte's high bit is 1 if more bytes
// follow."
func PutVarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// VarintLen returns the number of bytes PutVarint would emit for v.
func VarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// varintByteReader is the minimal input a varint decoder needs: one byte at
// a time, from whatever transport. It serves the decode side only; the Sizer
// counts varint bytes through Encoder.PutVarint.
type varintByteReader interface {
	ReadByte() (byte, error)
}

// ReadVarint decodes a base-128 little-endian varint from r.
func ReadVarint(r varintByteReader) (uint64, error) {
	var v uint64
	var shift uint
	for {
		if shift >= 64 {
			return 0, rpcerr.New(rpcerr.OutOfRange, "varint too long")
		}
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}
