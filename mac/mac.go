// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mac implements a HighwayHash-based message authentication codec
// over a 256-bit shared key, grounded on
// original_source/src/lasr/packet_codecs.h's mac_codec. It provides no
// replay protection of its own; callers needing that should embed a nonce
// in the data before encoding.
package mac

import (
	"encoding/binary"

	"code.hybscloud.com/arpc/rpcerr"
	"github.com/minio/highwayhash"
)

const tagSize = 8

// DefaultKey is the packet_codecs.h mac_codec::default_key convenience
// "random" key, carried over verbatim.
var DefaultKey = [4]uint64{
	0xb6b9bb544bfd7e87, 0xd5c3f7ccc7c7dfd4, 0x807dbb0023c7c781, 0x13473d620bd5426c,
}

// Codec appends (on Encode) and verifies-then-strips (on Decode) an 8-byte
// HighwayHash-64 tag computed over the payload under a 256-bit key.
type Codec struct {
	key [32]byte
}

// New builds a Codec from a 256-bit key given as four big words, matching
// mac_codec's constructor shape.
func New(key [4]uint64) *Codec {
	var c Codec
	for i, w := range key {
		binary.LittleEndian.PutUint64(c.key[i*8:], w)
	}
	return &c
}

// NewDefault builds a Codec using DefaultKey.
func NewDefault() *Codec { return New(DefaultKey) }

func (c *Codec) sum(data []byte) uint64 {
	return highwayhash.Sum64(data, c.key[:])
}

// Encode appends the 8-byte tag to data.
func (c *Codec) Encode(data []byte) []byte {
	tag := c.sum(data)
	out := make([]byte, len(data)+tagSize)
	copy(out, data)
	binary.LittleEndian.PutUint64(out[len(data):], tag)
	return out
}

// Decode verifies and strips the trailing 8-byte tag. A tampered or
// truncated payload fails with rpcerr.DataMismatch.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	if len(data) < tagSize {
		return nil, rpcerr.New(rpcerr.DataMismatch, "mac: payload shorter than tag (%d bytes)", len(data))
	}
	body := data[:len(data)-tagSize]
	want := binary.LittleEndian.Uint64(data[len(data)-tagSize:])
	got := c.sum(body)
	if got != want {
		return nil, rpcerr.New(rpcerr.DataMismatch, "mac: tag mismatch")
	}
	return body, nil
}
