// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package codec implements the binary wire format described by the schema
// fingerprint layer: fixed-width primitives in a chosen byte order, varint
// length prefixes for dynamic-size sequences, and structural encode/decode
// for containers, optionals, smart pointers, and user records. Grounded on
// original_source/src/arpc/type_hash.h for the fingerprint shape and on the
// teacher's internal/bo package for the byte-order split.
package codec

import (
	"encoding/binary"
	"io"
	"math"
	"reflect"
	"sort"

	"code.hybscloud.com/arpc/internal/bo"
	"code.hybscloud.com/arpc/rpcerr"
)

// ByteOrder selects the fixed-width encoding used for multi-byte scalars.
// Sizer performs no writes at all; it only accumulates the byte count an
// Encoder configured the same way would have produced. Like every Encoder it
// adds no 4-byte fingerprint prefix of its own (that prefix is counted only
// when PutFingerprint is called), per spec.md §9's kept convention.
type ByteOrder uint8

const (
	LittleEndian ByteOrder = iota
	BigEndian
	Sizer
)

func (o ByteOrder) stdlib() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Native reports the ByteOrder matching the host's native scalar layout,
// for callers that want to avoid an unnecessary byte swap on local,
// same-machine connections.
func Native() ByteOrder {
	if bo.Native() == binary.BigEndian {
		return BigEndian
	}
	return LittleEndian
}

// Encoder writes values to an underlying io.Writer (or, in Sizer mode, just
// counts bytes without writing any). It also holds the seen tables used to
// back-reference repeated shared pointers and dynamic class names. They are
// scoped to this Encoder, shared by every call made on it, rather than to
// the process.
type Encoder struct {
	w          io.Writer
	order      ByteOrder
	n          int
	sharedSeen map[uintptr]uint64
	classSeen  map[string]uint64
}

// NewEncoder wraps w. Pass a nil w with order Sizer to only measure size.
func NewEncoder(w io.Writer, order ByteOrder) *Encoder {
	return &Encoder{w: w, order: order, sharedSeen: map[uintptr]uint64{}, classSeen: map[string]uint64{}}
}

// Len reports the number of bytes written (or, in Sizer mode, that would
// have been written) so far.
func (e *Encoder) Len() int { return e.n }

func (e *Encoder) write(p []byte) error {
	e.n += len(p)
	if e.order == Sizer || e.w == nil {
		return nil
	}
	_, err := e.w.Write(p)
	if err != nil {
		return rpcerr.WrapIO(err, 0, "codec: write")
	}
	return nil
}

func (e *Encoder) PutBool(v bool) error {
	if v {
		return e.write([]byte{1})
	}
	return e.write([]byte{0})
}

func (e *Encoder) PutUint8(v uint8) error { return e.write([]byte{v}) }

func (e *Encoder) PutUint16(v uint16) error {
	var b [2]byte
	e.order.stdlib().PutUint16(b[:], v)
	return e.write(b[:])
}

func (e *Encoder) PutUint32(v uint32) error {
	var b [4]byte
	e.order.stdlib().PutUint32(b[:], v)
	return e.write(b[:])
}

func (e *Encoder) PutUint64(v uint64) error {
	var b [8]byte
	e.order.stdlib().PutUint64(b[:], v)
	return e.write(b[:])
}

func (e *Encoder) PutInt8(v int8) error   { return e.PutUint8(uint8(v)) }
func (e *Encoder) PutInt16(v int16) error { return e.PutUint16(uint16(v)) }
func (e *Encoder) PutInt32(v int32) error { return e.PutUint32(uint32(v)) }
func (e *Encoder) PutInt64(v int64) error { return e.PutUint64(uint64(v)) }

func (e *Encoder) PutFloat32(v float32) error { return e.PutUint32(math.Float32bits(v)) }
func (e *Encoder) PutFloat64(v float64) error { return e.PutUint64(math.Float64bits(v)) }

// PutVarint writes v as a base-128 LEB128 varint, used for every
// dynamic-length count (sequence/map/set length, string byte length, tuple
// and record field counts are fixed and need none).
func (e *Encoder) PutVarint(v uint64) error {
	var buf [10]byte
	return e.write(PutVarint(buf[:0], v))
}

func (e *Encoder) PutBytes(p []byte) error {
	if err := e.PutVarint(uint64(len(p))); err != nil {
		return err
	}
	return e.write(p)
}

func (e *Encoder) PutString(s string) error { return e.PutBytes([]byte(s)) }

// Decoder reads values out of an underlying io.Reader, mirroring Encoder.
type Decoder struct {
	r          io.Reader
	order      ByteOrder
	sharedSeen map[uint64]any
	classSeen  map[uint64]string
	nextShared uint64
	nextClass  uint64
}

func NewDecoder(r io.Reader, order ByteOrder) *Decoder {
	return &Decoder{r: r, order: order, sharedSeen: map[uint64]any{}, classSeen: map[uint64]string{}}
}

func (d *Decoder) read(p []byte) error {
	if _, err := io.ReadFull(d.r, p); err != nil {
		if err == io.EOF {
			return rpcerr.Wrap(rpcerr.EOF, err, "codec: read")
		}
		return rpcerr.WrapIO(err, 0, "codec: read")
	}
	return nil
}

// ReadByte satisfies varintByteReader so ReadVarint can pull from a Decoder.
func (d *Decoder) ReadByte() (byte, error) {
	var b [1]byte
	if err := d.read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) GetBool() (bool, error) {
	v, err := d.GetUint8()
	return v != 0, err
}

func (d *Decoder) GetUint8() (uint8, error) {
	var b [1]byte
	if err := d.read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) GetUint16() (uint16, error) {
	var b [2]byte
	if err := d.read(b[:]); err != nil {
		return 0, err
	}
	return d.order.stdlib().Uint16(b[:]), nil
}

func (d *Decoder) GetUint32() (uint32, error) {
	var b [4]byte
	if err := d.read(b[:]); err != nil {
		return 0, err
	}
	return d.order.stdlib().Uint32(b[:]), nil
}

func (d *Decoder) GetUint64() (uint64, error) {
	var b [8]byte
	if err := d.read(b[:]); err != nil {
		return 0, err
	}
	return d.order.stdlib().Uint64(b[:]), nil
}

func (d *Decoder) GetInt8() (int8, error) {
	v, err := d.GetUint8()
	return int8(v), err
}
func (d *Decoder) GetInt16() (int16, error) {
	v, err := d.GetUint16()
	return int16(v), err
}
func (d *Decoder) GetInt32() (int32, error) {
	v, err := d.GetUint32()
	return int32(v), err
}
func (d *Decoder) GetInt64() (int64, error) {
	v, err := d.GetUint64()
	return int64(v), err
}

func (d *Decoder) GetFloat32() (float32, error) {
	v, err := d.GetUint32()
	return math.Float32frombits(v), err
}
func (d *Decoder) GetFloat64() (float64, error) {
	v, err := d.GetUint64()
	return math.Float64frombits(v), err
}

func (d *Decoder) GetVarint() (uint64, error) { return ReadVarint(d) }

func (d *Decoder) GetBytes() ([]byte, error) {
	n, err := d.GetVarint()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := d.read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Decoder) GetString() (string, error) {
	b, err := d.GetBytes()
	return string(b), err
}

// selfEncoder and selfDecoder let a type own its wire representation,
// analogous to selfFingerprinting: this package's wrapper types (Optional,
// Set, Pair, Tuple3/4, the pointer wrappers, Duration, TimePoint) and the
// dynamic-record envelope all implement these instead of being walked
// field-by-field by reflection.
type selfEncoder interface {
	encodeSelf(e *Encoder) error
}

type selfDecoder interface {
	decodeSelf(d *Decoder) error
}

// Encode writes v to e, dispatching through selfEncoder for this package's
// wrapper types and falling back to reflection for everything else.
func Encode[T any](e *Encoder, v T) error {
	return encodeValue(e, reflect.ValueOf(v))
}

// Decode reads a value of type T from d.
func Decode[T any](d *Decoder) (T, error) {
	var v T
	rv := reflect.ValueOf(&v).Elem()
	err := decodeValue(d, rv)
	return v, err
}

func encodeValue(e *Encoder, rv reflect.Value) error {
	if enc, ok := rv.Interface().(selfEncoder); ok {
		return enc.encodeSelf(e)
	}
	switch rv.Kind() {
	case reflect.Bool:
		return e.PutBool(rv.Bool())
	case reflect.Int8:
		return e.PutInt8(int8(rv.Int()))
	case reflect.Int16:
		return e.PutInt16(int16(rv.Int()))
	case reflect.Int32:
		return e.PutInt32(int32(rv.Int()))
	case reflect.Int64, reflect.Int:
		return e.PutInt64(rv.Int())
	case reflect.Uint8:
		return e.PutUint8(uint8(rv.Uint()))
	case reflect.Uint16:
		return e.PutUint16(uint16(rv.Uint()))
	case reflect.Uint32:
		return e.PutUint32(uint32(rv.Uint()))
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return e.PutUint64(rv.Uint())
	case reflect.Float32:
		return e.PutFloat32(float32(rv.Float()))
	case reflect.Float64:
		return e.PutFloat64(rv.Float())
	case reflect.String:
		return e.PutString(rv.String())
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(e, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice:
		if err := e.PutVarint(uint64(rv.Len())); err != nil {
			return err
		}
		for i := 0; i < rv.Len(); i++ {
			if err := encodeValue(e, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		return encodeMap(e, rv)
	case reflect.Ptr:
		if rv.IsNil() {
			return rpcerr.New(rpcerr.InvalidState, "codec: cannot encode nil pointer directly; wrap in Optional")
		}
		return encodeValue(e, rv.Elem())
	case reflect.Struct:
		return encodeStruct(e, rv)
	default:
		return rpcerr.New(rpcerr.DataMismatch, "codec: unsupported kind %s", rv.Kind())
	}
}

// encodeMap writes entries sorted by their encoded key bytes so the wire
// form is deterministic regardless of Go's randomized map iteration order.
func encodeMap(e *Encoder, rv reflect.Value) error {
	keys := rv.MapKeys()
	type entry struct {
		keyBytes []byte
		key      reflect.Value
	}
	entries := make([]entry, len(keys))
	for i, k := range keys {
		var buf countingWriter
		ke := NewEncoder(&buf, e.order)
		if err := encodeValue(ke, k); err != nil {
			return err
		}
		entries[i] = entry{keyBytes: buf.b, key: k}
	}
	sort.Slice(entries, func(i, j int) bool {
		return lessBytes(entries[i].keyBytes, entries[j].keyBytes)
	})
	if err := e.PutVarint(uint64(len(entries))); err != nil {
		return err
	}
	for _, ent := range entries {
		if err := e.write(ent.keyBytes); err != nil {
			return err
		}
		if err := encodeValue(e, rv.MapIndex(ent.key)); err != nil {
			return err
		}
	}
	return nil
}

func lessBytes(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

type countingWriter struct{ b []byte }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.b = append(c.b, p...)
	return len(p), nil
}

func encodeStruct(e *Encoder, rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			// An embedded base whose type name is unexported is still
			// written: its exported fields are reachable through it.
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				if err := encodeStruct(e, rv.Field(i)); err != nil {
					return err
				}
			}
			continue
		}
		if err := encodeValue(e, rv.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func decodeValue(d *Decoder, rv reflect.Value) error {
	if rv.CanAddr() {
		if dec, ok := rv.Addr().Interface().(selfDecoder); ok {
			return dec.decodeSelf(d)
		}
	}
	switch rv.Kind() {
	case reflect.Bool:
		v, err := d.GetBool()
		if err == nil {
			rv.SetBool(v)
		}
		return err
	case reflect.Int8:
		v, err := d.GetInt8()
		if err == nil {
			rv.SetInt(int64(v))
		}
		return err
	case reflect.Int16:
		v, err := d.GetInt16()
		if err == nil {
			rv.SetInt(int64(v))
		}
		return err
	case reflect.Int32:
		v, err := d.GetInt32()
		if err == nil {
			rv.SetInt(int64(v))
		}
		return err
	case reflect.Int64, reflect.Int:
		v, err := d.GetInt64()
		if err == nil {
			rv.SetInt(v)
		}
		return err
	case reflect.Uint8:
		v, err := d.GetUint8()
		if err == nil {
			rv.SetUint(uint64(v))
		}
		return err
	case reflect.Uint16:
		v, err := d.GetUint16()
		if err == nil {
			rv.SetUint(uint64(v))
		}
		return err
	case reflect.Uint32:
		v, err := d.GetUint32()
		if err == nil {
			rv.SetUint(uint64(v))
		}
		return err
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		v, err := d.GetUint64()
		if err == nil {
			rv.SetUint(v)
		}
		return err
	case reflect.Float32:
		v, err := d.GetFloat32()
		if err == nil {
			rv.SetFloat(float64(v))
		}
		return err
	case reflect.Float64:
		v, err := d.GetFloat64()
		if err == nil {
			rv.SetFloat(v)
		}
		return err
	case reflect.String:
		v, err := d.GetString()
		if err == nil {
			rv.SetString(v)
		}
		return err
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := decodeValue(d, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice:
		n, err := d.GetVarint()
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(rv.Type(), int(n), int(n))
		for i := 0; i < int(n); i++ {
			if err := decodeValue(d, out.Index(i)); err != nil {
				return err
			}
		}
		rv.Set(out)
		return nil
	case reflect.Map:
		return decodeMap(d, rv)
	case reflect.Ptr:
		elem := reflect.New(rv.Type().Elem())
		if err := decodeValue(d, elem.Elem()); err != nil {
			return err
		}
		rv.Set(elem)
		return nil
	case reflect.Struct:
		return decodeStruct(d, rv)
	default:
		return rpcerr.New(rpcerr.DataMismatch, "codec: unsupported kind %s", rv.Kind())
	}
}

func decodeMap(d *Decoder, rv reflect.Value) error {
	n, err := d.GetVarint()
	if err != nil {
		return err
	}
	out := reflect.MakeMapWithSize(rv.Type(), int(n))
	for i := 0; i < int(n); i++ {
		k := reflect.New(rv.Type().Key()).Elem()
		if err := decodeValue(d, k); err != nil {
			return err
		}
		v := reflect.New(rv.Type().Elem()).Elem()
		if err := decodeValue(d, v); err != nil {
			return err
		}
		out.SetMapIndex(k, v)
	}
	rv.Set(out)
	return nil
}

func decodeStruct(d *Decoder, rv reflect.Value) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				if err := decodeStruct(d, rv.Field(i)); err != nil {
					return err
				}
			}
			continue
		}
		if err := decodeValue(d, rv.Field(i)); err != nil {
			return err
		}
	}
	return nil
}
