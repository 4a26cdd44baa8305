package cobs

import (
	"bytes"
	"testing"

	"code.hybscloud.com/arpc/rpcerr"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0x11, 0x22, 0x00, 0x33},
		{0x11, 0x22, 0x33, 0x44},
		{0x00, 0x00, 0x00},
		bytes.Repeat([]byte{0x01}, 300), // exercises the 254-byte block split
	}
	for _, c := range cases {
		enc := Encode(c)
		for _, b := range enc {
			if b == 0 {
				t.Fatalf("encoded frame for %v contains a zero byte: %v", c, enc)
			}
		}
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(%v): %v", enc, err)
		}
		if !bytes.Equal(dec, c) {
			t.Fatalf("round trip of %v = %v", c, dec)
		}
	}
}

func TestDecodeRejectsZeroCodeByte(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x00})
	if rpcerr.KindOf(err) != rpcerr.DataMismatch {
		t.Fatalf("Decode with an embedded zero code byte = %v, want DataMismatch", err)
	}
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	_, err := Decode([]byte{0x05, 0x01, 0x02})
	if rpcerr.KindOf(err) != rpcerr.DataMismatch {
		t.Fatalf("Decode of a truncated frame = %v, want DataMismatch", err)
	}
}

func TestWellKnownVector(t *testing.T) {
	// classic COBS worked example from the algorithm's reference table.
	got := Encode([]byte{0x00, 0x00, 0x00})
	want := []byte{0x01, 0x01, 0x01, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("Encode({0,0,0}) = %v, want %v", got, want)
	}
}
