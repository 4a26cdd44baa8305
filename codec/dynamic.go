// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package codec

import (
	"reflect"
	"sync"

	"code.hybscloud.com/arpc/rpcerr"
)

// DynamicRecord is implemented by polymorphic record types that can appear
// on the wire as one of several concrete classes, dispatched at decode time
// through the process-wide registry populated by RegisterDynamic.
type DynamicRecord interface {
	PortableName() string
}

type dynamicFactory func() DynamicRecord

var (
	dynamicMu sync.RWMutex
	byName    = map[string]dynamicFactory{}
)

// RegisterDynamic associates a portable class name with a constructor,
// populated once at process start and read-only thereafter; a duplicate
// name is rejected. factory must return a pointer to the concrete type, so
// DecodeDynamic can fill its fields in place.
func RegisterDynamic(name string, factory func() DynamicRecord) error {
	dynamicMu.Lock()
	defer dynamicMu.Unlock()
	if _, exists := byName[name]; exists {
		return rpcerr.New(rpcerr.InvalidState, "codec: dynamic class %q already registered", name)
	}
	byName[name] = factory
	return nil
}

// EncodeDynamic writes v preceded by a class envelope: a varint id, fresh
// and starting at 1 on the first occurrence of v's portable name within
// this Encoder's call, with the name itself following inline; later
// occurrences of the same class carry only the repeated id, with no
// further payload. There is no separate discriminator byte — a decoder
// tells first occurrence from back-reference solely by whether it has
// already seen the id.
func EncodeDynamic(e *Encoder, v DynamicRecord) error {
	name := v.PortableName()
	if id, ok := e.classSeen[name]; ok {
		if err := e.PutVarint(id); err != nil {
			return err
		}
	} else {
		id := uint64(len(e.classSeen)) + 1
		e.classSeen[name] = id
		if err := e.PutVarint(id); err != nil {
			return err
		}
		if err := e.PutString(name); err != nil {
			return err
		}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	return encodeStruct(e, rv)
}

// DecodeDynamic reads a dynamic record's class envelope, resolves it
// against the registry, and decodes the concrete instance's fields.
func DecodeDynamic(d *Decoder) (DynamicRecord, error) {
	id, err := d.GetVarint()
	if err != nil {
		return nil, err
	}
	name, seen := d.classSeen[id]
	if !seen {
		name, err = d.GetString()
		if err != nil {
			return nil, err
		}
		d.classSeen[id] = name
	}

	dynamicMu.RLock()
	factory, ok := byName[name]
	dynamicMu.RUnlock()
	if !ok {
		return nil, rpcerr.New(rpcerr.KeyError, "codec: unregistered dynamic class %q", name)
	}

	rec := factory()
	rv := reflect.ValueOf(rec)
	if rv.Kind() != reflect.Ptr {
		return nil, rpcerr.New(rpcerr.InvalidState, "codec: dynamic factory for %q must return a pointer", name)
	}
	if err := decodeStruct(d, rv.Elem()); err != nil {
		return nil, err
	}
	return rec, nil
}
