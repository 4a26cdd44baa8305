package codec

import (
	"bytes"
	"testing"
)

type dynCircle struct {
	Radius float64
}

func (*dynCircle) PortableName() string { return "test.dynCircle" }

type dynSquare struct {
	Side float64
}

func (*dynSquare) PortableName() string { return "test.dynSquare" }

func init() {
	RegisterDynamic("test.dynCircle", func() DynamicRecord { return &dynCircle{} })
	RegisterDynamic("test.dynSquare", func() DynamicRecord { return &dynSquare{} })
}

func TestDynamicRoundTripDispatchesByRegisteredName(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, LittleEndian)
	if err := EncodeDynamic(enc, &dynCircle{Radius: 2.5}); err != nil {
		t.Fatalf("EncodeDynamic: %v", err)
	}
	if err := EncodeDynamic(enc, &dynSquare{Side: 4}); err != nil {
		t.Fatalf("EncodeDynamic: %v", err)
	}

	dec := NewDecoder(&buf, LittleEndian)
	first, err := DecodeDynamic(dec)
	if err != nil {
		t.Fatalf("DecodeDynamic: %v", err)
	}
	circle, ok := first.(*dynCircle)
	if !ok || circle.Radius != 2.5 {
		t.Fatalf("first decoded record = %#v, want *dynCircle{2.5}", first)
	}

	second, err := DecodeDynamic(dec)
	if err != nil {
		t.Fatalf("DecodeDynamic: %v", err)
	}
	square, ok := second.(*dynSquare)
	if !ok || square.Side != 4 {
		t.Fatalf("second decoded record = %#v, want *dynSquare{4}", second)
	}
}

func TestDynamicDuplicateRegistrationRejected(t *testing.T) {
	err := RegisterDynamic("test.dynCircle", func() DynamicRecord { return &dynCircle{} })
	if err == nil {
		t.Fatalf("expected duplicate dynamic class registration to fail")
	}
}

func TestDynamicBackReferenceReusesClassName(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, LittleEndian)
	if err := EncodeDynamic(enc, &dynCircle{Radius: 1}); err != nil {
		t.Fatal(err)
	}
	sizeAfterFirst := buf.Len()
	if err := EncodeDynamic(enc, &dynCircle{Radius: 2}); err != nil {
		t.Fatal(err)
	}
	sizeAfterSecond := buf.Len() - sizeAfterFirst
	if sizeAfterSecond >= sizeAfterFirst {
		t.Fatalf("second occurrence of the same class should be cheaper than the first (no name repeated): first=%d second=%d", sizeAfterFirst, sizeAfterSecond)
	}
}

func TestDynamicUnregisteredClassFails(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, LittleEndian)
	enc.PutVarint(1)
	enc.PutString("test.neverRegistered")

	_, err := DecodeDynamic(NewDecoder(&buf, LittleEndian))
	if err == nil {
		t.Fatalf("expected decode of an unregistered dynamic class to fail")
	}
}
