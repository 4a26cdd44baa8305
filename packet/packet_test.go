package packet

import (
	"bytes"
	"io"
	"testing"
)

// flakyBuffer wraps a bytes.Buffer and returns ErrWouldBlock for the first
// stall calls to Read/Write, to exercise the non-blocking retry loop.
type flakyBuffer struct {
	buf        bytes.Buffer
	readStall  int
	writeStall int
}

func (f *flakyBuffer) Read(p []byte) (int, error) {
	if f.readStall > 0 {
		f.readStall--
		return 0, ErrWouldBlock
	}
	return f.buf.Read(p)
}

func (f *flakyBuffer) Write(p []byte) (int, error) {
	if f.writeStall > 0 {
		f.writeStall--
		return 0, ErrWouldBlock
	}
	return f.buf.Write(p)
}

func TestProtectedStreamRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithProtocol(ProtectedStream))
	msgs := [][]byte{[]byte("hello"), []byte(""), []byte("a longer message body")}
	for _, m := range msgs {
		if _, err := w.Write(m); err != nil {
			t.Fatalf("Write(%q): %v", m, err)
		}
	}

	r := NewReader(&buf, WithProtocol(ProtectedStream))
	for _, want := range msgs {
		got := make([]byte, len(want))
		n, err := r.Read(got)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(got[:n]) != string(want) {
			t.Fatalf("Read = %q, want %q", got[:n], want)
		}
	}
}

func TestProtectedStreamShortBufferOnOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithProtocol(ProtectedStream))
	if _, err := w.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r := NewReader(&buf, WithProtocol(ProtectedStream))
	small := make([]byte, 4)
	if _, err := r.Read(small); err != io.ErrShortBuffer {
		t.Fatalf("Read with undersized buffer = %v, want io.ErrShortBuffer", err)
	}
}

func TestProtectedStreamReadLimitEnforced(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithProtocol(ProtectedStream))
	if _, err := w.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r := NewReader(&buf, WithProtocol(ProtectedStream), WithReadLimit(4))
	got := make([]byte, 10)
	if _, err := r.Read(got); err != ErrTooLong {
		t.Fatalf("Read over ReadLimit = %v, want ErrTooLong", err)
	}
}

func TestSerialLineRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithProtocol(SerialLine))
	msgs := [][]byte{[]byte("ping"), []byte{}, []byte("a longer serial payload with some bytes \x00-adjacent")}
	for _, m := range msgs {
		if _, err := w.Write(m); err != nil {
			t.Fatalf("Write(%q): %v", m, err)
		}
	}

	r := NewReader(&buf, WithProtocol(SerialLine))
	for _, want := range msgs {
		got := make([]byte, 128)
		n, err := r.Read(got)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(got[:n]) != string(want) {
			t.Fatalf("Read = %q, want %q", got[:n], want)
		}
	}
}

func TestSerialLineWireContainsNoZeroExceptTerminators(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithProtocol(SerialLine))
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	wire := buf.Bytes()
	if len(wire) == 0 || wire[len(wire)-1] != 0x00 {
		t.Fatalf("wire frame should end with a single NUL terminator: %v", wire)
	}
	for _, b := range wire[:len(wire)-1] {
		if b == 0x00 {
			t.Fatalf("wire frame contains an interior zero byte: %v", wire)
		}
	}
}

func TestSerialLineWrongKeyFailsDataMismatch(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithProtocol(SerialLine), WithMACKey([4]uint64{1, 2, 3, 4}))
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	r := NewReader(&buf, WithProtocol(SerialLine)) // default key
	got := make([]byte, 32)
	if _, err := r.Read(got); err == nil {
		t.Fatalf("Read under mismatched key should fail")
	}
}

func TestSeqPacketIsPassThrough(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, WithProtocol(SeqPacket))
	if _, err := w.Write([]byte("datagram body")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != "datagram body" {
		t.Fatalf("SeqPacket write should be pass-through, got %q", buf.String())
	}
	r := NewReader(&buf, WithProtocol(SeqPacket))
	got := make([]byte, 32)
	n, err := r.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got[:n]) != "datagram body" {
		t.Fatalf("Read = %q", got[:n])
	}
}

func TestNonBlockingRetryOnProtectedStream(t *testing.T) {
	fb := &flakyBuffer{readStall: 3, writeStall: 2}
	w := NewWriter(fb, WithProtocol(ProtectedStream), WithBlock())
	if _, err := w.Write([]byte("retry me")); err != nil {
		t.Fatalf("Write with retry: %v", err)
	}
	r := NewReader(fb, WithProtocol(ProtectedStream), WithBlock())
	got := make([]byte, 32)
	n, err := r.Read(got)
	if err != nil {
		t.Fatalf("Read with retry: %v", err)
	}
	if string(got[:n]) != "retry me" {
		t.Fatalf("Read = %q", got[:n])
	}
}

func TestNonblockReturnsErrWouldBlockImmediately(t *testing.T) {
	fb := &flakyBuffer{writeStall: 1}
	w := NewWriter(fb, WithProtocol(ProtectedStream), WithNonblock())
	_, err := w.Write([]byte("x"))
	if err != ErrWouldBlock {
		t.Fatalf("Write under nonblock with a stalled transport = %v, want ErrWouldBlock", err)
	}
}

func TestForwarderProtectedStream(t *testing.T) {
	var src bytes.Buffer
	srcWriter := NewWriter(&src, WithProtocol(ProtectedStream))
	if _, err := srcWriter.Write([]byte("forwarded payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var dst bytes.Buffer
	fwd := NewForwarder(&dst, &src, WithProtocol(ProtectedStream))
	if _, err := fwd.ForwardOnce(); err != nil {
		t.Fatalf("ForwardOnce: %v", err)
	}

	dstReader := NewReader(&dst, WithProtocol(ProtectedStream))
	got := make([]byte, 32)
	n, err := dstReader.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got[:n]) != "forwarded payload" {
		t.Fatalf("forwarded = %q", got[:n])
	}
}

func TestForwarderSerialLine(t *testing.T) {
	var src bytes.Buffer
	srcWriter := NewWriter(&src, WithProtocol(SerialLine))
	if _, err := srcWriter.Write([]byte("serial forward")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var dst bytes.Buffer
	fwd := NewForwarder(&dst, &src, WithProtocol(SerialLine))
	if _, err := fwd.ForwardOnce(); err != nil {
		t.Fatalf("ForwardOnce: %v", err)
	}

	dstReader := NewReader(&dst, WithProtocol(SerialLine))
	got := make([]byte, 32)
	n, err := dstReader.Read(got)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got[:n]) != "serial forward" {
		t.Fatalf("forwarded = %q", got[:n])
	}
}

func TestReaderWriteToProtectedStream(t *testing.T) {
	var src bytes.Buffer
	srcWriter := NewWriter(&src, WithProtocol(ProtectedStream))
	for _, m := range []string{"one", "two", "three"} {
		if _, err := srcWriter.Write([]byte(m)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	r := NewReader(&src, WithProtocol(ProtectedStream)).(*Reader)
	var dst bytes.Buffer
	if _, err := r.WriteTo(&dst); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if dst.String() != "onetwothree" {
		t.Fatalf("WriteTo produced %q", dst.String())
	}
}

func TestReaderWriteToSerialLine(t *testing.T) {
	var src bytes.Buffer
	srcWriter := NewWriter(&src, WithProtocol(SerialLine))
	for _, m := range []string{"one", "two"} {
		if _, err := srcWriter.Write([]byte(m)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	r := NewReader(&src, WithProtocol(SerialLine)).(*Reader)
	var dst bytes.Buffer
	if _, err := r.WriteTo(&dst); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if dst.String() != "onetwo" {
		t.Fatalf("WriteTo produced %q", dst.String())
	}
}

func TestNewPipeRoundTrip(t *testing.T) {
	r, w := NewPipe(WithProtocol(ProtectedStream), WithBlock())
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 32)
		n, err := r.Read(buf)
		if err != nil {
			t.Errorf("Read: %v", err)
			return
		}
		if string(buf[:n]) != "piped" {
			t.Errorf("Read = %q", buf[:n])
		}
	}()
	if _, err := w.Write([]byte("piped")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	<-done
}
