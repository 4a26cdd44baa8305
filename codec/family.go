// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

// Fingerprint is a 32-bit FNV-1 structural hash of a type's encoding shape,
// grounded on original_source/src/arpc/type_hash.h's type_hash_t.
type Fingerprint uint32

// family enumerates the structural categories a fingerprint leaf can
// describe, mirrored from type_hash.h's type_family enum.
type family uint8

const (
	familyVoid family = iota
	familyBoolean
	familyCharacter
	familyInteger
	familyFloat
	familyEnum
	familyArray
	familyTuple
	familySequence
	familySet
	familyMap
	familyOptional
	familyDuration
	familyTimePoint
	familyUniquePtr
	familySharedPtr
	familyWeakPtr
	familyFunction
	familyClass
	familyBaseClass
	familyField
	familyCustomSerialization
	familySeenTypeBackreference
)

const (
	fingerprintSeed Fingerprint = 2166136261
	fnvPrime        Fingerprint = 16777619
)

// composeFingerprint left-folds a sequence of fingerprints starting from the
// spec-mandated seed: base = base*16777619 XOR more, for each more in turn.
func composeFingerprint(parts ...Fingerprint) Fingerprint {
	base := fingerprintSeed
	for _, p := range parts {
		base = base*fnvPrime ^ p
	}
	return base
}

// leafFingerprint packs a family tag, a signedness bit and a size/count
// field into a single fingerprint leaf, mirroring type_hash_leaf's bit
// layout: family at bit 0, signedness at bit 7, size/count from bit 8 up.
func leafFingerprint(f family, signed bool, size uint32) Fingerprint {
	v := uint32(f)
	if signed {
		v |= 1 << 7
	}
	v |= size << 8
	return Fingerprint(v)
}

// Char is a single byte carrying text, not a number: it fingerprints into
// familyCharacter rather than the generic familyInteger every other
// uint8-sized Go type folds into, mirroring type_hash.h's special case for
// std::is_same_v<T, char> ahead of its generic integral branch.
type Char uint8

func (c Char) fingerprintSelf(*seenTypes) Fingerprint { return leafFingerprint(familyCharacter, false, 1) }

func (c Char) encodeSelf(e *Encoder) error { return e.PutUint8(uint8(c)) }

func (c *Char) decodeSelf(d *Decoder) error {
	v, err := d.GetUint8()
	if err != nil {
		return err
	}
	*c = Char(v)
	return nil
}
