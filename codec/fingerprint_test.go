package codec

import "testing"

type fpPointA struct {
	X int32
	Y int32
}

type fpPointB struct {
	X int32
	Y int32
}

// fpPointReordered holds fpPointRetyped's fields in the opposite order.
type fpPointReordered struct {
	Y int32
	X int64
}

type fpPointRetyped struct {
	X int64
	Y int32
}

type fpPointRenamedField struct {
	A int32
	Y int32
}

type fpVersioned struct {
	X int32
}

func (fpVersioned) SerializationVersion() uint32 { return 3 }

type fpUnversioned struct {
	X int32
}

func TestFingerprintIdenticalShapeEqual(t *testing.T) {
	if TypeFingerprint[fpPointA]() != TypeFingerprint[fpPointB]() {
		t.Fatalf("identically-shaped structs across names should fingerprint equal")
	}
}

func TestFingerprintFieldRenameIsIdentical(t *testing.T) {
	// field names are not part of the wire fingerprint, only shapes and order.
	if TypeFingerprint[fpPointA]() != TypeFingerprint[fpPointRenamedField]() {
		t.Fatalf("renaming a field with the same type/position should not change the fingerprint")
	}
}

func TestFingerprintReorderChanges(t *testing.T) {
	// Swapping two fields of the same type leaves the shape unchanged (see
	// the rename test above), so the reordered fields here differ in type.
	if TypeFingerprint[fpPointRetyped]() == TypeFingerprint[fpPointReordered]() {
		t.Fatalf("reordering fields should change the fingerprint")
	}
}

func TestFingerprintRetypeChanges(t *testing.T) {
	if TypeFingerprint[fpPointA]() == TypeFingerprint[fpPointRetyped]() {
		t.Fatalf("retyping a field should change the fingerprint")
	}
}

func TestFingerprintVersionBumpChanges(t *testing.T) {
	base := TypeFingerprint[fpUnversioned]()
	versioned := TypeFingerprint[fpVersioned]()
	if base == versioned {
		t.Fatalf("a struct with a bumped custom serialization version should differ from an unversioned one")
	}
}

func TestFingerprintContainers(t *testing.T) {
	if TypeFingerprint[[]int32]() == TypeFingerprint[[3]int32]() {
		t.Fatalf("sequence and fixed array fingerprints should differ")
	}
	if TypeFingerprint[map[string]int32]() == TypeFingerprint[Set[string]]() {
		t.Fatalf("map and set fingerprints should differ")
	}
}

type fpCycleNode struct {
	Value int32
	Next  UniquePtr[fpCycleNode]
}

func TestFingerprintSelfReferentialTypeTerminates(t *testing.T) {
	fp := TypeFingerprint[fpCycleNode]()
	if fp != TypeFingerprint[fpCycleNode]() {
		t.Fatalf("fingerprint of a self-referential type should be stable across calls")
	}
}

func TestFingerprintOptionalDiffersFromBare(t *testing.T) {
	if TypeFingerprint[Optional[int32]]() == TypeFingerprint[int32]() {
		t.Fatalf("Optional[T] should not fingerprint the same as T")
	}
}

type fpTupleFields struct {
	N uint32
	C Char
}

type fpTupleFieldsExtended struct {
	N uint32
	C Char
	B uint8
}

func TestFingerprintCharDiffersFromUint8(t *testing.T) {
	if TypeFingerprint[Char]() == TypeFingerprint[uint8]() {
		t.Fatalf("Char should fingerprint distinctly from a plain uint8")
	}
}

// Scenario 5: tuple<u32, char> fingerprints the same as an unversioned
// record with a u32 field followed by a char field, and adding a third
// field changes the fingerprint.
func TestFingerprintTupleEqualsEquivalentRecord(t *testing.T) {
	tuple := TypeFingerprint[Pair[uint32, Char]]()
	record := TypeFingerprint[fpTupleFields]()
	if tuple != record {
		t.Fatalf("tuple<u32, char> fingerprint %#x should equal equivalent record fingerprint %#x", tuple, record)
	}
	if record == TypeFingerprint[fpTupleFieldsExtended]() {
		t.Fatalf("adding a third field should change the fingerprint")
	}
}

func TestFingerprintPointerWrappersDiffer(t *testing.T) {
	fps := map[Fingerprint]string{
		TypeFingerprint[UniquePtr[fpPointA]](): "unique",
		TypeFingerprint[SharedPtr[fpPointA]](): "shared",
		TypeFingerprint[WeakPtr[fpPointA]]():   "weak",
	}
	if len(fps) != 3 {
		t.Fatalf("expected 3 distinct fingerprints for the 3 pointer wrappers, got %d: %v", len(fps), fps)
	}
}
