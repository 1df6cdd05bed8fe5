package bincode

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"reflect"
	"sort"
	"unicode/utf8"
)

// Serializer writes values in the layout selected by one resolved Options.
//
// A Serializer is created per call and is not safe for concurrent use.
type Serializer struct {
	writer  io.Writer
	written uint64

	limit   SizeLimit
	order   binary.ByteOrder
	strSize SizeType
	arrSize SizeType

	buffer [8]byte
}

func newSerializer(writer io.Writer, opts Options) *Serializer {
	return &Serializer{
		writer:  writer,
		limit:   opts.Limit(),
		order:   opts.Endian(),
		strSize: opts.StringSize(),
		arrSize: opts.ArraySize(),
	}
}

// BytesWritten is the number of bytes pushed to the underlying writer.
func (s *Serializer) BytesWritten() uint64 {
	return s.written
}

// write charges p against the limit as one chunk, then writes it.
func (s *Serializer) write(p []byte) error {
	if err := s.limit.Add(uint64(len(p))); err != nil {
		return err
	}

	n, err := s.writer.Write(p)
	s.written += uint64(n)
	if err != nil {
		return IoError(err)
	}
	if n < len(p) {
		return IoError(io.ErrShortWrite)
	}

	return nil
}

func (s *Serializer) writeLen(size SizeType, n uint64) error {
	width := size.Width()
	if err := size.Put(s.order, s.buffer[:width], n); err != nil {
		return err
	}
	return s.write(s.buffer[:width])
}

func (s *Serializer) WriteBool(v bool) error {
	if v {
		s.buffer[0] = 1
	} else {
		s.buffer[0] = 0
	}
	return s.write(s.buffer[:1])
}

func (s *Serializer) WriteUint8(v uint8) error {
	s.buffer[0] = v
	return s.write(s.buffer[:1])
}

func (s *Serializer) WriteUint16(v uint16) error {
	s.order.PutUint16(s.buffer[:2], v)
	return s.write(s.buffer[:2])
}

func (s *Serializer) WriteUint32(v uint32) error {
	s.order.PutUint32(s.buffer[:4], v)
	return s.write(s.buffer[:4])
}

func (s *Serializer) WriteUint64(v uint64) error {
	s.order.PutUint64(s.buffer[:8], v)
	return s.write(s.buffer[:8])
}

func (s *Serializer) WriteInt8(v int8) error   { return s.WriteUint8(uint8(v)) }
func (s *Serializer) WriteInt16(v int16) error { return s.WriteUint16(uint16(v)) }
func (s *Serializer) WriteInt32(v int32) error { return s.WriteUint32(uint32(v)) }
func (s *Serializer) WriteInt64(v int64) error { return s.WriteUint64(uint64(v)) }

func (s *Serializer) WriteFloat32(v float32) error {
	return s.WriteUint32(math.Float32bits(v))
}

func (s *Serializer) WriteFloat64(v float64) error {
	return s.WriteUint64(math.Float64bits(v))
}

// WriteChar writes r as UTF-8. Invalid scalar values fail with
// InvalidCharEncoding.
func (s *Serializer) WriteChar(r rune) error {
	if !utf8.ValidRune(r) {
		return &Error{Kind: KindInvalidCharEncoding}
	}
	n := utf8.EncodeRune(s.buffer[:4], r)
	return s.write(s.buffer[:n])
}

// WriteString writes the string length prefix followed by the bytes of v.
func (s *Serializer) WriteString(v string) error {
	if err := s.writeLen(s.strSize, uint64(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	return s.write([]byte(v))
}

// WriteBytes writes the collection length prefix followed by v.
func (s *Serializer) WriteBytes(v []byte) error {
	if err := s.writeLen(s.arrSize, uint64(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	return s.write(v)
}

// WriteSeqLen writes the length prefix of a sequence or map. A negative
// length means the element count is unknown, which the format cannot
// represent.
func (s *Serializer) WriteSeqLen(n int) error {
	if n < 0 {
		return &Error{Kind: KindSequenceMustHaveLength}
	}
	return s.writeLen(s.arrSize, uint64(n))
}

// WriteOption writes the tag of an optional value.
func (s *Serializer) WriteOption(present bool) error {
	if present {
		return s.WriteUint8(optionSome)
	}
	return s.WriteUint8(optionNone)
}

// WriteVariant writes the tag of an enum variant.
func (s *Serializer) WriteVariant(tag uint32) error {
	return s.WriteUint32(tag)
}

// Serialize writes v. It is meant to be called from Marshaler
// implementations for nested values.
//
// A pointer is an optional value: it is written as a tag followed by the
// element, so a value serialized through a *T decodes into a **T.
func (s *Serializer) Serialize(v any) error {
	if v == nil {
		return Custom("cannot serialize a nil interface value")
	}
	return s.encode(reflect.ValueOf(v))
}

// implementer returns v, or its address, as an interface value
// implementing iface.
//
// Pointers and interfaces never qualify: a pointer is always an optional
// value, and its element is checked once the option tag is handled.
func implementer(v reflect.Value, iface reflect.Type) (any, bool) {
	if k := v.Kind(); k == reflect.Pointer || k == reflect.Interface {
		return nil, false
	}

	if v.Type().Implements(iface) {
		return v.Interface(), true
	}

	if !reflect.PointerTo(v.Type()).Implements(iface) {
		return nil, false
	}

	if v.CanAddr() {
		return v.Addr().Interface(), true
	}

	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p.Interface(), true
}

func (s *Serializer) encode(val reflect.Value) error {
	if !val.IsValid() {
		return Custom("cannot serialize a nil interface value")
	}

	typ := val.Type()

	if m, ok := implementer(val, interfaceMarshaler); ok {
		return asError(m.(Marshaler).MarshalBincode(s))
	}

	if e, ok := implementer(val, interfaceEnum); ok {
		tag, payload := e.(Enum).BincodeVariant()
		if err := s.WriteVariant(tag); err != nil {
			return err
		}
		if payload == nil {
			return nil
		}

		// A pointer payload is the payload itself, mirroring the pointer
		// SetVariant hands to the decoder.
		pv := reflect.ValueOf(payload)
		if pv.Kind() == reflect.Pointer {
			if pv.IsNil() {
				return Customf("variant %d of %s has a nil payload pointer", tag, typ)
			}
			pv = pv.Elem()
		}

		return s.encode(pv)
	}

	if typ == typeChar {
		return s.WriteChar(rune(val.Int()))
	}

	switch typ.Kind() {
	case reflect.Pointer:
		if val.IsNil() {
			return s.WriteOption(false)
		}

		if err := s.WriteOption(true); err != nil {
			return err
		}

		return s.encode(val.Elem())

	case reflect.Interface:
		if val.IsNil() {
			return Customf("cannot serialize a nil value of interface type %s", typ)
		}

		return s.encode(val.Elem())

	case reflect.Bool:
		return s.WriteBool(val.Bool())

	case reflect.Int8:
		return s.WriteInt8(int8(val.Int()))

	case reflect.Int16:
		return s.WriteInt16(int16(val.Int()))

	case reflect.Int32:
		return s.WriteInt32(int32(val.Int()))

	case reflect.Int, reflect.Int64:
		return s.WriteInt64(val.Int())

	case reflect.Uint8:
		return s.WriteUint8(uint8(val.Uint()))

	case reflect.Uint16:
		return s.WriteUint16(uint16(val.Uint()))

	case reflect.Uint32:
		return s.WriteUint32(uint32(val.Uint()))

	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		return s.WriteUint64(val.Uint())

	case reflect.Float32:
		return s.WriteFloat32(float32(val.Float()))

	case reflect.Float64:
		return s.WriteFloat64(val.Float())

	case reflect.Complex64:
		c := val.Complex()
		if err := s.WriteFloat32(float32(real(c))); err != nil {
			return err
		}
		return s.WriteFloat32(float32(imag(c)))

	case reflect.Complex128:
		c := val.Complex()
		if err := s.WriteFloat64(real(c)); err != nil {
			return err
		}
		return s.WriteFloat64(imag(c))

	case reflect.String:
		return s.WriteString(val.String())

	case reflect.Array:
		ln := val.Len()

		for i := 0; i < ln; i++ {
			if err := s.encode(val.Index(i)); err != nil {
				return err
			}
		}

		return nil

	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 && !isCustom(typ.Elem()) {
			return s.WriteBytes(val.Bytes())
		}

		ln := val.Len()

		if err := s.WriteSeqLen(ln); err != nil {
			return err
		}

		for i := 0; i < ln; i++ {
			if err := s.encode(val.Index(i)); err != nil {
				return err
			}
		}

		return nil

	case reflect.Map:
		if err := s.WriteSeqLen(val.Len()); err != nil {
			return err
		}

		keys, err := s.mapKeys(val)
		if err != nil {
			return err
		}

		for _, key := range keys {
			if err := s.encode(key); err != nil {
				return err
			}

			if err := s.encode(val.MapIndex(key)); err != nil {
				return err
			}
		}

		return nil

	case reflect.Struct:
		if h, ok := implementer(val, interfaceBeforeSerialize); ok {
			if err := h.(BeforeSerialize).BeforeSerialize(); err != nil {
				return asError(err)
			}
		}

		ln := typ.NumField()

		for i := 0; i < ln; i++ {
			field := typ.Field(i)

			if !field.IsExported() || parseFieldInfo(field.Tag.Get("bincode")).ignore {
				continue
			}

			if err := s.encode(val.Field(i)); err != nil {
				return err
			}
		}

		return nil

	case reflect.Chan:
		return &Error{Kind: KindSequenceMustHaveLength}
	}

	if unsupportedKinds[typ.Kind()] {
		return Customf("cannot serialize value of type %s", typ)
	}

	return Customf("unsupported type %s", typ)
}

// isCustom reports whether values of typ bypass the built-in encodings.
func isCustom(typ reflect.Type) bool {
	ptr := reflect.PointerTo(typ)
	return typ.Implements(interfaceMarshaler) || ptr.Implements(interfaceMarshaler) ||
		typ.Implements(interfaceEnum) || ptr.Implements(interfaceEnum)
}

// mapKeys returns the keys of m in a stable order. Keys of ordered kinds
// are sorted by value, any other keys by their encoding.
func (s *Serializer) mapKeys(m reflect.Value) ([]reflect.Value, error) {
	keys := m.MapKeys()

	kind := m.Type().Key().Kind()
	if !sortableKeyKinds[kind] || isCustom(m.Type().Key()) {
		return s.sortEncoded(keys)
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]

		switch kind {
		case reflect.Bool:
			return !a.Bool() && b.Bool()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return a.Int() < b.Int()
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return a.Uint() < b.Uint()
		case reflect.Float32, reflect.Float64:
			return a.Float() < b.Float()
		}

		return a.String() < b.String()
	})

	return keys, nil
}

// sortEncoded sorts keys by their encoding under the same layout. The
// scratch encoding is not metered; the keys are charged when written.
func (s *Serializer) sortEncoded(keys []reflect.Value) ([]reflect.Value, error) {
	if len(keys) < 2 {
		return keys, nil
	}

	var (
		buf     bytes.Buffer
		ends    = make([]int, len(keys))
		scratch = &Serializer{
			writer:  &buf,
			limit:   Infinite{},
			order:   s.order,
			strSize: s.strSize,
			arrSize: s.arrSize,
		}
	)

	for i, key := range keys {
		if err := scratch.encode(key); err != nil {
			return nil, err
		}
		ends[i] = buf.Len()
	}

	type encodedKey struct {
		key     reflect.Value
		encoded []byte
	}

	var (
		all    = buf.Bytes()
		sorted = make([]encodedKey, len(keys))
		begin  = 0
	)

	for i, key := range keys {
		sorted[i] = encodedKey{key: key, encoded: all[begin:ends[i]]}
		begin = ends[i]
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].encoded, sorted[j].encoded) < 0
	})

	for i := range sorted {
		keys[i] = sorted[i].key
	}

	return keys, nil
}
