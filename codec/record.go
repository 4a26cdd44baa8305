// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

// Static user records are plain Go structs. Declare embedded base-class
// fields before named fields, matching the base-classes-then-fields
// ordering this package's fingerprinting and wire encoding both assume; a
// struct implementing SerializationVersion lets its custom-serialization
// version number participate in the fingerprint, per spec §4.9's
// "static... user records".
//
// 	type Base struct { ID uint64 }
// 	type Widget struct {
// 		Base
// 		Name string
// 	}

// EncodeRecord writes a static user record the same way any struct is
// written; it exists to give record encode call sites a name distinct from
// encoding an arbitrary container.
func EncodeRecord[T any](e *Encoder, v T) error { return Encode(e, v) }

// DecodeRecord reads a static user record.
func DecodeRecord[T any](d *Decoder) (T, error) { return Decode[T](d) }
