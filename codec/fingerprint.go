// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"reflect"
	"sync"
)

var fingerprintCache sync.Map // map[reflect.Type]Fingerprint

// TypeFingerprint computes the 32-bit structural fingerprint of T, caching
// the result per reflect.Type. Field names and package take no part: two
// types whose fields have the same kinds in the same order compose to the
// same fingerprint. Adding, removing or retyping a field, reordering fields
// of differing types, or bumping a custom serialization version changes it.
func TypeFingerprint[T any]() Fingerprint {
	var zero T
	return fingerprintOf(reflect.TypeOf(&zero).Elem())
}

// PutFingerprint writes fp as the 4-byte wire prefix spec §6 requires ahead
// of every top-level encoded value.
func (e *Encoder) PutFingerprint(fp Fingerprint) error { return e.PutUint32(uint32(fp)) }

// GetFingerprint reads the 4-byte wire prefix written by PutFingerprint.
func (d *Decoder) GetFingerprint() (Fingerprint, error) {
	v, err := d.GetUint32()
	return Fingerprint(v), err
}

func fingerprintOf(t reflect.Type) Fingerprint {
	if v, ok := fingerprintCache.Load(t); ok {
		return v.(Fingerprint)
	}
	seen := &seenTypes{index: make(map[reflect.Type]int)}
	fp := fingerprintWalk(t, seen)
	fingerprintCache.Store(t, fp)
	return fp
}

// seenTypes tracks the path of struct and container (array, slice, map)
// types currently being expanded, so a self-referential record (e.g. a tree node holding
// UniquePtr[Node]) terminates with a backreference leaf instead of
// recursing forever, mirroring type_hash.h's SEEN_TYPE_BACKREFERENCE.
type seenTypes struct {
	order []reflect.Type
	index map[reflect.Type]int
}

func (s *seenTypes) push(t reflect.Type) bool {
	if _, ok := s.index[t]; ok {
		return false
	}
	s.index[t] = len(s.order)
	s.order = append(s.order, t)
	return true
}

func (s *seenTypes) pop(t reflect.Type) {
	delete(s.index, t)
	s.order = s.order[:len(s.order)-1]
}

type versioned interface {
	SerializationVersion() uint32
}

// selfFingerprinting lets a type compose its own fingerprint, used by this
// package's generic wrapper types (Optional, Set, Pair, Tuple3/4, the
// pointer wrappers, Duration, TimePoint) whose Go-generic type parameter
// carries the structural information reflect.Type alone cannot name.
type selfFingerprinting interface {
	fingerprintSelf(seen *seenTypes) Fingerprint
}

func fingerprintWalk(t reflect.Type, seen *seenTypes) Fingerprint {
	if idx, ok := seen.index[t]; ok {
		return leafFingerprint(familySeenTypeBackreference, false, uint32(idx))
	}

	if v, ok := reflect.New(t).Interface().(selfFingerprinting); ok {
		return v.fingerprintSelf(seen)
	}

	switch t.Kind() {
	case reflect.Bool:
		return leafFingerprint(familyBoolean, false, 1)
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return leafFingerprint(familyInteger, true, uint32(t.Size()))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return leafFingerprint(familyInteger, false, uint32(t.Size()))
	case reflect.Float32, reflect.Float64:
		return leafFingerprint(familyFloat, true, uint32(t.Size()))
	}

	switch t.Kind() {
	case reflect.String:
		return leafFingerprint(familySequence, false, 0)
	case reflect.Array:
		seen.push(t)
		elem := fingerprintWalk(t.Elem(), seen)
		seen.pop(t)
		return composeFingerprint(leafFingerprint(familyArray, false, uint32(t.Len())), elem)
	case reflect.Slice:
		seen.push(t)
		elem := fingerprintWalk(t.Elem(), seen)
		seen.pop(t)
		return composeFingerprint(leafFingerprint(familySequence, false, 0), elem)
	case reflect.Map:
		seen.push(t)
		pair := composeFingerprint(leafFingerprint(familyTuple, false, 2),
			fingerprintWalk(t.Key(), seen), fingerprintWalk(t.Elem(), seen))
		seen.pop(t)
		return composeFingerprint(leafFingerprint(familyMap, false, 0), pair)
	case reflect.Ptr:
		return fingerprintWalk(t.Elem(), seen)
	case reflect.Interface:
		// dynamic/polymorphic dispatch: the concrete type determines the
		// wire shape; only the family marker is fixed.
		return leafFingerprint(familyClass, true, 0)
	case reflect.Struct:
		return structFingerprint(t, seen)
	default:
		return leafFingerprint(familyVoid, false, 0)
	}
}

// elemFingerprint computes the fingerprint of a wrapper type's generic
// parameter T, for use inside a fingerprintSelf implementation.
func elemFingerprint[T any](seen *seenTypes) Fingerprint {
	var zero T
	return fingerprintWalk(reflect.TypeOf(&zero).Elem(), seen)
}

// tupleFingerprint composes a fixed-arity heterogeneous tuple's fingerprint
// using the same class/base/field/custom-serialization leaf sequence
// structFingerprint uses for a user record with no base classes and no
// custom serialization version, so that a tuple<...> and an equivalent
// unversioned record with the same fields in the same order and type fold
// to the same fingerprint (spec §8's tuple/record equivalence scenario).
func tupleFingerprint(fields ...Fingerprint) Fingerprint {
	parts := []Fingerprint{
		leafFingerprint(familyClass, false, uint32(len(fields))),
		leafFingerprint(familyBaseClass, false, 0),
		leafFingerprint(familyField, false, uint32(len(fields))),
	}
	parts = append(parts, fields...)
	parts = append(parts, leafFingerprint(familyCustomSerialization, false, 0))
	return composeFingerprint(parts...)
}

func structFingerprint(t reflect.Type, seen *seenTypes) Fingerprint {
	seen.push(t)
	defer seen.pop(t)

	var bases, fields []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() && !(f.Anonymous && f.Type.Kind() == reflect.Struct) {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			bases = append(bases, f)
		} else {
			fields = append(fields, f)
		}
	}

	var version uint32
	if v, ok := reflect.New(t).Interface().(versioned); ok {
		version = v.SerializationVersion()
	}

	parts := []Fingerprint{
		leafFingerprint(familyClass, false, uint32(len(bases)+len(fields))+version),
		leafFingerprint(familyBaseClass, false, uint32(len(bases))),
	}
	for _, b := range bases {
		parts = append(parts, fingerprintWalk(b.Type, seen))
	}
	parts = append(parts, leafFingerprint(familyField, false, uint32(len(fields))))
	for _, f := range fields {
		parts = append(parts, fingerprintWalk(f.Type, seen))
	}
	parts = append(parts, leafFingerprint(familyCustomSerialization, false, version))
	return composeFingerprint(parts...)
}
