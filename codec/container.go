// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import "sort"

// Optional represents a value that may be absent on the wire, encoded as a
// one-byte presence flag followed by the value if present.
type Optional[T any] struct {
	Valid bool
	Value T
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] { return Optional[T]{Valid: true, Value: v} }

// None returns an absent Optional[T].
func None[T any]() Optional[T] { return Optional[T]{} }

func (o Optional[T]) fingerprintSelf(seen *seenTypes) Fingerprint {
	return composeFingerprint(leafFingerprint(familyOptional, false, 0), elemFingerprint[T](seen))
}

func (o Optional[T]) encodeSelf(e *Encoder) error {
	if !o.Valid {
		return e.PutBool(false)
	}
	if err := e.PutBool(true); err != nil {
		return err
	}
	return Encode(e, o.Value)
}

func (o *Optional[T]) decodeSelf(d *Decoder) error {
	present, err := d.GetBool()
	if err != nil {
		return err
	}
	if !present {
		*o = Optional[T]{}
		return nil
	}
	v, err := Decode[T](d)
	if err != nil {
		return err
	}
	*o = Optional[T]{Valid: true, Value: v}
	return nil
}

// Set is an unordered collection of distinct comparable elements, written
// to the wire sorted by encoded element bytes, matching the map ordering
// convention from spec §4.6.
type Set[T comparable] map[T]struct{}

// NewSet builds a Set from the given elements.
func NewSet[T comparable](elems ...T) Set[T] {
	s := make(Set[T], len(elems))
	for _, e := range elems {
		s[e] = struct{}{}
	}
	return s
}

func (s Set[T]) Has(v T) bool { _, ok := s[v]; return ok }
func (s Set[T]) Add(v T)      { s[v] = struct{}{} }
func (s Set[T]) Len() int     { return len(s) }

func (s Set[T]) fingerprintSelf(seen *seenTypes) Fingerprint {
	return composeFingerprint(leafFingerprint(familySet, false, 0), elemFingerprint[T](seen))
}

func (s Set[T]) encodeSelf(e *Encoder) error {
	type keyed struct {
		bytes []byte
		v     T
	}
	entries := make([]keyed, 0, len(s))
	for v := range s {
		var buf countingWriter
		ke := NewEncoder(&buf, e.order)
		if err := Encode(ke, v); err != nil {
			return err
		}
		entries = append(entries, keyed{bytes: buf.b, v: v})
	}
	sort.Slice(entries, func(i, j int) bool { return lessBytes(entries[i].bytes, entries[j].bytes) })
	if err := e.PutVarint(uint64(len(entries))); err != nil {
		return err
	}
	for _, ent := range entries {
		if err := e.write(ent.bytes); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set[T]) decodeSelf(d *Decoder) error {
	n, err := d.GetVarint()
	if err != nil {
		return err
	}
	out := make(Set[T], n)
	for i := uint64(0); i < n; i++ {
		v, err := Decode[T](d)
		if err != nil {
			return err
		}
		out[v] = struct{}{}
	}
	*s = out
	return nil
}

// Pair is a fixed two-element heterogeneous tuple, written field-by-field
// with no length prefix (spec §4.6: "no-length-prefix for tuples").
type Pair[A, B any] struct {
	First  A
	Second B
}

func (p Pair[A, B]) fingerprintSelf(seen *seenTypes) Fingerprint {
	return tupleFingerprint(elemFingerprint[A](seen), elemFingerprint[B](seen))
}

func (p Pair[A, B]) encodeSelf(e *Encoder) error {
	if err := Encode(e, p.First); err != nil {
		return err
	}
	return Encode(e, p.Second)
}

func (p *Pair[A, B]) decodeSelf(d *Decoder) error {
	a, err := Decode[A](d)
	if err != nil {
		return err
	}
	b, err := Decode[B](d)
	if err != nil {
		return err
	}
	*p = Pair[A, B]{First: a, Second: b}
	return nil
}

// Tuple3 is a fixed three-element heterogeneous tuple.
type Tuple3[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

func (t Tuple3[A, B, C]) fingerprintSelf(seen *seenTypes) Fingerprint {
	return tupleFingerprint(elemFingerprint[A](seen), elemFingerprint[B](seen), elemFingerprint[C](seen))
}

func (t Tuple3[A, B, C]) encodeSelf(e *Encoder) error {
	if err := Encode(e, t.First); err != nil {
		return err
	}
	if err := Encode(e, t.Second); err != nil {
		return err
	}
	return Encode(e, t.Third)
}

func (t *Tuple3[A, B, C]) decodeSelf(d *Decoder) error {
	a, err := Decode[A](d)
	if err != nil {
		return err
	}
	b, err := Decode[B](d)
	if err != nil {
		return err
	}
	c, err := Decode[C](d)
	if err != nil {
		return err
	}
	*t = Tuple3[A, B, C]{First: a, Second: b, Third: c}
	return nil
}

// Tuple4 is a fixed four-element heterogeneous tuple.
type Tuple4[A, B, C, D any] struct {
	First  A
	Second B
	Third  C
	Fourth D
}

func (t Tuple4[A, B, C, D]) fingerprintSelf(seen *seenTypes) Fingerprint {
	return tupleFingerprint(elemFingerprint[A](seen), elemFingerprint[B](seen), elemFingerprint[C](seen), elemFingerprint[D](seen))
}

func (t Tuple4[A, B, C, D]) encodeSelf(e *Encoder) error {
	if err := Encode(e, t.First); err != nil {
		return err
	}
	if err := Encode(e, t.Second); err != nil {
		return err
	}
	if err := Encode(e, t.Third); err != nil {
		return err
	}
	return Encode(e, t.Fourth)
}

func (t *Tuple4[A, B, C, D]) decodeSelf(d *Decoder) error {
	a, err := Decode[A](d)
	if err != nil {
		return err
	}
	b, err := Decode[B](d)
	if err != nil {
		return err
	}
	c, err := Decode[C](d)
	if err != nil {
		return err
	}
	e4, err := Decode[D](d)
	if err != nil {
		return err
	}
	*t = Tuple4[A, B, C, D]{First: a, Second: b, Third: c, Fourth: e4}
	return nil
}
