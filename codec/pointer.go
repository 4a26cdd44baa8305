// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"reflect"
	"weak"

	"code.hybscloud.com/arpc/rpcerr"
)

// UniquePtr owns a single T with no other reference to it possible, encoded
// as a presence flag followed by the value. Unlike SharedPtr it carries no
// per-call identity, so an attempt to reach the same UniquePtr twice during
// one encode can only happen through a cyclic type (caught earlier, at
// fingerprinting time) rather than a cyclic value graph.
type UniquePtr[T any] struct {
	v *T
}

func NewUniquePtr[T any](v T) UniquePtr[T] { return UniquePtr[T]{v: &v} }
func NilUniquePtr[T any]() UniquePtr[T]    { return UniquePtr[T]{} }

func (p UniquePtr[T]) Valid() bool { return p.v != nil }
func (p UniquePtr[T]) Get() *T     { return p.v }

func (p UniquePtr[T]) fingerprintSelf(seen *seenTypes) Fingerprint {
	return composeFingerprint(leafFingerprint(familyUniquePtr, false, 0), elemFingerprint[T](seen))
}

func (p UniquePtr[T]) encodeSelf(e *Encoder) error {
	if p.v == nil {
		return e.PutBool(false)
	}
	if err := e.PutBool(true); err != nil {
		return err
	}
	return Encode(e, *p.v)
}

func (p *UniquePtr[T]) decodeSelf(d *Decoder) error {
	present, err := d.GetBool()
	if err != nil {
		return err
	}
	if !present {
		*p = UniquePtr[T]{}
		return nil
	}
	v, err := Decode[T](d)
	if err != nil {
		return err
	}
	*p = UniquePtr[T]{v: &v}
	return nil
}

// SharedPtr is a reference-counted pointer whose identity is tracked in a
// per-call seen table: the first occurrence of a given target within one
// Encode call carries the full value, later occurrences carry only a
// back-reference id, per spec §4.6's shared-pointer back-reference tables.
type SharedPtr[T any] struct {
	v *T
}

func NewSharedPtr[T any](v T) SharedPtr[T] { return SharedPtr[T]{v: &v} }
func NilSharedPtr[T any]() SharedPtr[T]    { return SharedPtr[T]{} }

func (p SharedPtr[T]) Valid() bool { return p.v != nil }
func (p SharedPtr[T]) Get() *T     { return p.v }

func (p SharedPtr[T]) fingerprintSelf(seen *seenTypes) Fingerprint {
	return composeFingerprint(leafFingerprint(familySharedPtr, false, 0), elemFingerprint[T](seen))
}

func (p SharedPtr[T]) encodeSelf(e *Encoder) error {
	return encodeSharedTarget(e, p.v, func() error { return Encode(e, *p.v) })
}

// encodeSharedTarget writes a shared or weak pointer's target as a pure
// varint reference id: 0 denotes null. A fresh positive id, starting at 1,
// is assigned on first occurrence of a given address within this Encoder's
// call and followed inline by the pointed-to value; later occurrences
// repeat the same id with no further payload. There is no discriminator
// byte — a decoder tells first occurrence from back-reference solely by
// whether it has already seen the id.
func encodeSharedTarget(e *Encoder, v any, encodeValue func() error) error {
	rv := reflect.ValueOf(v)
	if rv.IsNil() {
		return e.PutVarint(0)
	}
	addr := rv.Pointer()
	if id, ok := e.sharedSeen[addr]; ok {
		return e.PutVarint(id)
	}
	id := uint64(len(e.sharedSeen)) + 1
	e.sharedSeen[addr] = id
	if err := e.PutVarint(id); err != nil {
		return err
	}
	return encodeValue()
}

func (p *SharedPtr[T]) decodeSelf(d *Decoder) error {
	v, err := decodeSharedTarget[T](d)
	if err != nil {
		return err
	}
	*p = SharedPtr[T]{v: v}
	return nil
}

func decodeSharedTarget[T any](d *Decoder) (*T, error) {
	id, err := d.GetVarint()
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, nil
	}
	if stored, ok := d.sharedSeen[id]; ok {
		ptr, ok := stored.(*T)
		if !ok {
			return nil, rpcerr.New(rpcerr.DataMismatch, "codec: shared pointer back-reference %d type mismatch", id)
		}
		return ptr, nil
	}
	v, err := Decode[T](d)
	if err != nil {
		return nil, err
	}
	ptr := &v
	d.sharedSeen[id] = ptr
	return ptr, nil
}

// WeakPtr observes a SharedPtr's target without extending its lifetime. It
// is encoded as its locked shared-pointer target, per spec §4.6, sharing the
// Encoder's shared-pointer id table: whichever WeakPtr or SharedPtr to a
// given target is written first carries the value and later ones become
// back-references; one whose target is gone encodes as null, identically to
// an expired weak_ptr.
type WeakPtr[T any] struct {
	w weak.Pointer[T]
}

func NewWeakPtr[T any](p SharedPtr[T]) WeakPtr[T] {
	if p.v == nil {
		return WeakPtr[T]{}
	}
	return WeakPtr[T]{w: weak.Make(p.v)}
}

func (p WeakPtr[T]) Lock() (SharedPtr[T], bool) {
	v := p.w.Value()
	if v == nil {
		return SharedPtr[T]{}, false
	}
	return SharedPtr[T]{v: v}, true
}

func (p WeakPtr[T]) fingerprintSelf(seen *seenTypes) Fingerprint {
	return composeFingerprint(leafFingerprint(familyWeakPtr, false, 0), elemFingerprint[T](seen))
}

func (p WeakPtr[T]) encodeSelf(e *Encoder) error {
	v := p.w.Value()
	return encodeSharedTarget(e, v, func() error { return Encode(e, *v) })
}

func (p *WeakPtr[T]) decodeSelf(d *Decoder) error {
	v, err := decodeSharedTarget[T](d)
	if err != nil {
		return err
	}
	if v == nil {
		*p = WeakPtr[T]{}
		return nil
	}
	*p = WeakPtr[T]{w: weak.Make(v)}
	return nil
}
