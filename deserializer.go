package bincode

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"reflect"
	"unicode/utf8"
	"unsafe"
)

// Deserializer reads values in the layout selected by one resolved Options.
//
// Every byte is charged against the limit before it is read, and the
// payload of a length-prefixed value is charged before it is allocated.
type Deserializer struct {
	reader io.Reader
	read   uint64

	limit   SizeLimit
	order   binary.ByteOrder
	strSize SizeType
	arrSize SizeType

	// Reuse existing slices, maps and pointers instead of allocating.
	inPlace bool

	buffer [8]byte
}

func newDeserializer(reader io.Reader, opts Options, inPlace bool) *Deserializer {
	return &Deserializer{
		reader:  reader,
		limit:   opts.Limit(),
		order:   opts.Endian(),
		strSize: opts.StringSize(),
		arrSize: opts.ArraySize(),
		inPlace: inPlace,
	}
}

// BytesRead is the number of bytes pulled from the underlying reader.
func (d *Deserializer) BytesRead() uint64 {
	return d.read
}

// readFull charges n bytes and reads them into the scratch buffer.
func (d *Deserializer) readFull(n int) ([]byte, error) {
	if err := d.limit.Add(uint64(n)); err != nil {
		return nil, err
	}

	read, err := io.ReadFull(d.reader, d.buffer[:n])
	d.read += uint64(read)
	if err != nil {
		return nil, IoError(err)
	}

	return d.buffer[:n], nil
}

// readPayload charges and reads ln bytes into a new slice. Large payloads
// are read in chunks so a forged length only allocates what the reader
// actually delivers.
func (d *Deserializer) readPayload(ln uint64) ([]byte, error) {
	if err := d.limit.Add(ln); err != nil {
		return nil, err
	}

	if ln == 0 {
		return nil, nil
	}

	if ln <= maxDirectRead {
		buf := make([]byte, int(ln))

		n, err := io.ReadFull(d.reader, buf)
		d.read += uint64(n)
		if err != nil {
			return nil, IoError(err)
		}

		return buf, nil
	}

	var buf bytes.Buffer

	n, err := io.CopyN(&buf, d.reader, int64(min(ln, math.MaxInt64)))
	d.read += uint64(n)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, IoError(err)
	}

	return buf.Bytes(), nil
}

func (d *Deserializer) readLen(size SizeType) (uint64, error) {
	b, err := d.readFull(size.Width())
	if err != nil {
		return 0, err
	}
	return size.Get(d.order, b), nil
}

func (d *Deserializer) ReadBool() (bool, error) {
	b, err := d.ReadUint8()
	if err != nil {
		return false, err
	}

	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}

	return false, invalidBool(b)
}

func (d *Deserializer) ReadUint8() (uint8, error) {
	b, err := d.readFull(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Deserializer) ReadUint16() (uint16, error) {
	b, err := d.readFull(2)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

func (d *Deserializer) ReadUint32() (uint32, error) {
	b, err := d.readFull(4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

func (d *Deserializer) ReadUint64() (uint64, error) {
	b, err := d.readFull(8)
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

func (d *Deserializer) ReadInt8() (int8, error) {
	v, err := d.ReadUint8()
	return int8(v), err
}

func (d *Deserializer) ReadInt16() (int16, error) {
	v, err := d.ReadUint16()
	return int16(v), err
}

func (d *Deserializer) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

func (d *Deserializer) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

func (d *Deserializer) ReadFloat32() (float32, error) {
	v, err := d.ReadUint32()
	return math.Float32frombits(v), err
}

func (d *Deserializer) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadChar reads one UTF-8 encoded scalar value. The leading byte decides
// how many more bytes belong to it.
func (d *Deserializer) ReadChar() (rune, error) {
	first, err := d.ReadUint8()
	if err != nil {
		return 0, err
	}

	width := utf8Width(first)
	if width == 0 {
		return 0, &Error{Kind: KindInvalidCharEncoding}
	}

	var encoded [utf8.UTFMax]byte
	encoded[0] = first

	if width > 1 {
		rest, err := d.readFull(width - 1)
		if err != nil {
			return 0, err
		}
		copy(encoded[1:], rest)
	}

	r, size := utf8.DecodeRune(encoded[:width])
	if r == utf8.RuneError && size <= 1 {
		return 0, &Error{Kind: KindInvalidCharEncoding}
	}

	return r, nil
}

func utf8Width(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b&0xe0 == 0xc0:
		return 2
	case b&0xf0 == 0xe0:
		return 3
	case b&0xf8 == 0xf0:
		return 4
	}
	return 0
}

// ReadString reads a string length prefix and that many bytes of UTF-8.
func (d *Deserializer) ReadString() (string, error) {
	buf, err := d.readStringBytes()
	if err != nil {
		return "", err
	}

	if len(buf) == 0 {
		return "", nil
	}

	return unsafe.String(&buf[0], len(buf)), nil
}

func (d *Deserializer) readStringBytes() ([]byte, error) {
	ln, err := d.readLen(d.strSize)
	if err != nil {
		return nil, err
	}

	buf, err := d.readPayload(ln)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(buf) {
		return nil, invalidUtf8(buf)
	}

	return buf, nil
}

// ReadBytes reads a collection length prefix and that many raw bytes.
func (d *Deserializer) ReadBytes() ([]byte, error) {
	ln, err := d.readLen(d.arrSize)
	if err != nil {
		return nil, err
	}
	return d.readPayload(ln)
}

// ReadSeqLen reads the length prefix of a sequence or map.
func (d *Deserializer) ReadSeqLen() (int, error) {
	ln, err := d.readLen(d.arrSize)
	if err != nil {
		return 0, err
	}

	if ln > math.MaxInt {
		return 0, Customf("sequence length %d overflows int", ln)
	}

	return int(ln), nil
}

// ReadOption reads the tag of an optional value.
func (d *Deserializer) ReadOption() (bool, error) {
	tag, err := d.ReadUint8()
	if err != nil {
		return false, err
	}

	switch tag {
	case optionNone:
		return false, nil
	case optionSome:
		return true, nil
	}

	return false, invalidTag(uint64(tag))
}

// ReadVariant reads an enum variant tag.
func (d *Deserializer) ReadVariant() (uint32, error) {
	return d.ReadUint32()
}

// Deserialize decodes into the value v points to. It is meant to be called
// from Unmarshaler and Seed implementations for nested values.
func (d *Deserializer) Deserialize(v any) error {
	rv := reflect.ValueOf(v)

	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return Customf("deserialize target must be a non-nil pointer, got %T", v)
	}

	return d.decode(rv.Elem())
}

func (d *Deserializer) decode(val reflect.Value) error {
	typ := val.Type()

	if u, ok := implementer(val, interfaceUnmarshaler); ok {
		return asError(u.(Unmarshaler).UnmarshalBincode(d))
	}

	if e, ok := implementer(val, interfaceEnumDecoder); ok {
		return d.decodeEnum(e.(EnumDecoder))
	}

	if typ == typeChar {
		r, err := d.ReadChar()
		if err != nil {
			return err
		}
		val.SetInt(int64(r))
		return nil
	}

	switch typ.Kind() {
	case reflect.Pointer:
		present, err := d.ReadOption()
		if err != nil {
			return err
		}

		if !present {
			val.SetZero()
			return nil
		}

		if d.inPlace && !val.IsNil() {
			return d.decode(val.Elem())
		}

		item := reflect.New(typ.Elem())

		if err := d.decode(item.Elem()); err != nil {
			return err
		}

		val.Set(item)

		return nil

	case reflect.Interface:
		// Without type tags there is nothing to tell which concrete type to
		// build. Only a pointer already stored in the interface can be
		// filled, and like any pointer it is preceded by an option tag.
		if val.IsNil() || val.Elem().Kind() != reflect.Pointer || val.Elem().IsNil() {
			return &Error{Kind: KindDeserializeAnyNotSupported}
		}

		ptr := val.Elem()

		present, err := d.ReadOption()
		if err != nil {
			return err
		}

		if !present {
			if val.CanSet() {
				val.Set(reflect.Zero(ptr.Type()))
			}
			return nil
		}

		return d.decode(ptr.Elem())

	case reflect.Bool:
		b, err := d.ReadBool()
		if err != nil {
			return err
		}
		val.SetBool(b)
		return nil

	case reflect.Int8:
		n, err := d.ReadInt8()
		if err != nil {
			return err
		}
		val.SetInt(int64(n))
		return nil

	case reflect.Int16:
		n, err := d.ReadInt16()
		if err != nil {
			return err
		}
		val.SetInt(int64(n))
		return nil

	case reflect.Int32:
		n, err := d.ReadInt32()
		if err != nil {
			return err
		}
		val.SetInt(int64(n))
		return nil

	case reflect.Int, reflect.Int64:
		n, err := d.ReadInt64()
		if err != nil {
			return err
		}
		if val.OverflowInt(n) {
			return Customf("value %d overflows %s", n, typ)
		}
		val.SetInt(n)
		return nil

	case reflect.Uint8:
		n, err := d.ReadUint8()
		if err != nil {
			return err
		}
		val.SetUint(uint64(n))
		return nil

	case reflect.Uint16:
		n, err := d.ReadUint16()
		if err != nil {
			return err
		}
		val.SetUint(uint64(n))
		return nil

	case reflect.Uint32:
		n, err := d.ReadUint32()
		if err != nil {
			return err
		}
		val.SetUint(uint64(n))
		return nil

	case reflect.Uint, reflect.Uint64, reflect.Uintptr:
		n, err := d.ReadUint64()
		if err != nil {
			return err
		}
		if val.OverflowUint(n) {
			return Customf("value %d overflows %s", n, typ)
		}
		val.SetUint(n)
		return nil

	case reflect.Float32:
		f, err := d.ReadFloat32()
		if err != nil {
			return err
		}
		val.SetFloat(float64(f))
		return nil

	case reflect.Float64:
		f, err := d.ReadFloat64()
		if err != nil {
			return err
		}
		val.SetFloat(f)
		return nil

	case reflect.Complex64:
		r, err := d.ReadFloat32()
		if err != nil {
			return err
		}
		i, err := d.ReadFloat32()
		if err != nil {
			return err
		}
		val.SetComplex(complex(float64(r), float64(i)))
		return nil

	case reflect.Complex128:
		r, err := d.ReadFloat64()
		if err != nil {
			return err
		}
		i, err := d.ReadFloat64()
		if err != nil {
			return err
		}
		val.SetComplex(complex(r, i))
		return nil

	case reflect.String:
		str, err := d.ReadString()
		if err != nil {
			return err
		}
		val.SetString(str)
		return nil

	case reflect.Array:
		ln := val.Len()

		for i := 0; i < ln; i++ {
			if err := d.decode(val.Index(i)); err != nil {
				return err
			}
		}

		return nil

	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 && !isCustom(typ.Elem()) {
			return d.decodeBytes(val)
		}

		ln, err := d.ReadSeqLen()
		if err != nil {
			return err
		}

		return d.decodeSlice(val, ln)

	case reflect.Map:
		ln, err := d.ReadSeqLen()
		if err != nil {
			return err
		}

		return d.decodeMap(val, ln)

	case reflect.Struct:
		ln := typ.NumField()

		for i := 0; i < ln; i++ {
			field := typ.Field(i)

			if !field.IsExported() || parseFieldInfo(field.Tag.Get("bincode")).ignore {
				continue
			}

			if err := d.decode(val.Field(i)); err != nil {
				return err
			}
		}

		if h, ok := implementer(val, interfaceAfterDeserialize); ok {
			if err := h.(AfterDeserialize).AfterDeserialize(); err != nil {
				return asError(err)
			}
		}

		return nil

	case reflect.Chan:
		return &Error{Kind: KindSequenceMustHaveLength}
	}

	if unsupportedKinds[typ.Kind()] {
		return Customf("cannot deserialize value of type %s", typ)
	}

	return Customf("unsupported type %s", typ)
}

func (d *Deserializer) decodeEnum(e EnumDecoder) error {
	tag, err := d.ReadVariant()
	if err != nil {
		return err
	}

	if tag >= e.NumVariants() {
		return invalidTag(uint64(tag))
	}

	payload := e.SetVariant(tag)
	if payload == nil {
		return nil
	}

	return d.Deserialize(payload)
}

func (d *Deserializer) decodeBytes(val reflect.Value) error {
	ln, err := d.readLen(d.arrSize)
	if err != nil {
		return err
	}

	if d.inPlace && uint64(val.Cap()) >= ln {
		if err := d.limit.Add(ln); err != nil {
			return err
		}

		val.SetLen(int(ln))

		n, err := io.ReadFull(d.reader, val.Bytes())
		d.read += uint64(n)
		if err != nil {
			return IoError(err)
		}

		return nil
	}

	buf, err := d.readPayload(ln)
	if err != nil {
		return err
	}

	if buf == nil {
		val.SetZero()
		return nil
	}

	// The element type may be a named byte type, so copy through Bytes.
	slice := reflect.MakeSlice(val.Type(), len(buf), len(buf))
	copy(slice.Bytes(), buf)
	val.Set(slice)

	return nil
}

func (d *Deserializer) decodeSlice(val reflect.Value, ln int) error {
	typ := val.Type()

	if ln > 0 {
		if decodesNothing(typ.Elem()) {
			val.Set(reflect.MakeSlice(typ, ln, ln))
			return nil
		}

		if err := d.checkZeroSized(typ.Elem(), ln); err != nil {
			return err
		}
	}

	if d.inPlace && !val.IsNil() && val.Cap() >= ln {
		val.SetLen(ln)

		for i := 0; i < ln; i++ {
			if err := d.decode(val.Index(i)); err != nil {
				return err
			}
		}

		return nil
	}

	if ln == 0 {
		val.SetZero()
		return nil
	}

	var (
		zero  = reflect.Zero(typ.Elem())
		slice = reflect.MakeSlice(typ, 0, min(ln, maxPrealloc))
	)

	for i := 0; i < ln; i++ {
		slice = reflect.Append(slice, zero)

		if err := d.decode(slice.Index(i)); err != nil {
			return err
		}
	}

	val.Set(slice)

	return nil
}

func (d *Deserializer) decodeMap(val reflect.Value, ln int) error {
	typ := val.Type()

	if ln > 0 {
		// Zero sized keys are all equal, so the map ends up with one entry.
		if decodesNothing(typ.Key()) && decodesNothing(typ.Elem()) {
			if d.inPlace && !val.IsNil() {
				val.Clear()
			} else {
				val.Set(reflect.MakeMapWithSize(typ, 1))
			}
			val.SetMapIndex(reflect.New(typ.Key()).Elem(), reflect.New(typ.Elem()).Elem())
			return nil
		}

		if typ.Key().Size() == 0 {
			if err := d.checkZeroSized(typ.Elem(), ln); err != nil {
				return err
			}
		}
	}

	if d.inPlace && !val.IsNil() {
		val.Clear()
	} else if ln == 0 {
		val.SetZero()
		return nil
	} else {
		val.Set(reflect.MakeMapWithSize(typ, min(ln, maxPrealloc)))
	}

	for i := 0; i < ln; i++ {
		key := reflect.New(typ.Key()).Elem()

		if err := d.decode(key); err != nil {
			return err
		}

		item := reflect.New(typ.Elem()).Elem()

		if err := d.decode(item); err != nil {
			return err
		}

		val.SetMapIndex(key, item)
	}

	return nil
}

// checkZeroSized refuses a length that would run hooks on more zero sized
// elements than there are bytes left in the budget. Such elements consume
// no input, so nothing else stops a forged length.
func (d *Deserializer) checkZeroSized(typ reflect.Type, ln int) error {
	if typ.Size() != 0 {
		return nil
	}

	if remaining, bounded := d.limit.Limit(); bounded && uint64(ln) > remaining {
		return &Error{Kind: KindSizeLimit}
	}

	return nil
}

// decodesNothing reports whether decoding a value of typ reads no input and
// calls no user code.
func decodesNothing(typ reflect.Type) bool {
	if typ.Size() != 0 || hasDecodeHook(typ) {
		return false
	}

	switch typ.Kind() {
	case reflect.Array:
		return typ.Len() == 0 || decodesNothing(typ.Elem())

	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			field := typ.Field(i)

			if !field.IsExported() || parseFieldInfo(field.Tag.Get("bincode")).ignore {
				continue
			}

			if !decodesNothing(field.Type) {
				return false
			}
		}

		return true
	}

	return false
}

func hasDecodeHook(typ reflect.Type) bool {
	ptr := reflect.PointerTo(typ)

	for _, iface := range []reflect.Type{interfaceUnmarshaler, interfaceEnumDecoder, interfaceAfterDeserialize} {
		if typ.Implements(iface) || ptr.Implements(iface) {
			return true
		}
	}

	return false
}
