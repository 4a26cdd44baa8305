package mac

import (
	"testing"

	"code.hybscloud.com/arpc/rpcerr"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := NewDefault()
	data := []byte("hello, authenticated world")
	encoded := c.Encode(data)
	if len(encoded) != len(data)+tagSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), len(data)+tagSize)
	}
	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(decoded) != string(data) {
		t.Fatalf("Decode = %q, want %q", decoded, data)
	}
}

func TestTamperedPayloadFailsDataMismatch(t *testing.T) {
	c := NewDefault()
	encoded := c.Encode([]byte("original"))
	encoded[0] ^= 0xff

	_, err := c.Decode(encoded)
	if rpcerr.KindOf(err) != rpcerr.DataMismatch {
		t.Fatalf("Decode of tampered payload = %v, want DataMismatch", err)
	}
}

func TestTruncatedPayloadFails(t *testing.T) {
	c := NewDefault()
	_, err := c.Decode([]byte("short"))
	if rpcerr.KindOf(err) != rpcerr.DataMismatch {
		t.Fatalf("Decode of truncated payload = %v, want DataMismatch", err)
	}
}

func TestDifferentKeysDisagree(t *testing.T) {
	a := NewDefault()
	b := New([4]uint64{1, 2, 3, 4})
	encoded := a.Encode([]byte("payload"))
	if _, err := b.Decode(encoded); rpcerr.KindOf(err) != rpcerr.DataMismatch {
		t.Fatalf("Decode under a different key = %v, want DataMismatch", err)
	}
}
