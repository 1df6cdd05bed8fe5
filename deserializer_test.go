package bincode

import (
	"bytes"
	"io"
	"reflect"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
		input  []byte
		target any
		want   error
	}{
		{"bool 2", NewConfig(), []byte{2}, new(bool), ErrInvalidBoolEncoding},
		{"enum tag out of range", NewConfig(), []byte{99, 0, 0, 0}, new(message), ErrInvalidTagEncoding},
		{"option tag 2", NewConfig(), []byte{2, 0}, new(*uint8), ErrInvalidTagEncoding},
		{"empty input", NewConfig(), nil, new(uint32), ErrIo},
		{"truncated u32", NewConfig(), []byte{1, 2}, new(uint32), ErrIo},
		{"truncated string", NewConfig().StringLength(LengthU8), []byte{5, 'a', 'b'}, new(string), ErrIo},
		{"invalid utf8", NewConfig().StringLength(LengthU8), []byte{3, 'a', 0xff, 'b'}, new(string), ErrInvalidUtf8Encoding},
		{"char lead byte", NewConfig(), []byte{0xff}, new(Char), ErrInvalidCharEncoding},
		{"char surrogate", NewConfig(), []byte{0xed, 0xa0, 0x80}, new(Char), ErrInvalidCharEncoding},
		{"char truncated", NewConfig(), []byte{0xe2, 0x82}, new(Char), ErrIo},
		{"interface target", NewConfig(), []byte{1}, new(any), ErrDeserializeAnyNotSupported},
		{"channel target", NewConfig(), []byte{0}, new(chan int), ErrSequenceMustHaveLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Deserialize(tt.input, tt.target)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMalformedInputPayloads(t *testing.T) {
	var b bool
	err := Unmarshal([]byte{2}, &b)

	var bincodeErr *Error
	require.ErrorAs(t, err, &bincodeErr)
	assert.Equal(t, uint8(2), bincodeErr.Byte)

	var m message
	err = Unmarshal([]byte{99, 0, 0, 0}, &m)
	require.ErrorAs(t, err, &bincodeErr)
	assert.Equal(t, uint64(99), bincodeErr.Tag)
	assert.Equal(t, "tag for enum is not valid, found 99", err.Error())

	var p *uint8
	err = Unmarshal([]byte{2}, &p)
	require.ErrorAs(t, err, &bincodeErr)
	assert.Equal(t, uint64(2), bincodeErr.Tag)

	var u uint32
	assert.ErrorIs(t, Unmarshal(nil, &u), io.EOF)
	assert.ErrorIs(t, Unmarshal([]byte{1, 2}, &u), io.ErrUnexpectedEOF)
}

func TestDeserializeTarget(t *testing.T) {
	var v uint8

	assert.ErrorIs(t, Unmarshal([]byte{1}, v), &Error{Kind: KindCustom})
	assert.ErrorIs(t, Unmarshal([]byte{1}, (*uint8)(nil)), &Error{Kind: KindCustom})
	assert.ErrorIs(t, Unmarshal([]byte{1}, nil), &Error{Kind: KindCustom})
}

func TestDeserializeLimit(t *testing.T) {
	input := object{Name: "limited", Scores: []int16{1, 2, 3}, Lookup: map[string]uint32{"k": 1}}

	encoded, err := Marshal(input)
	require.NoError(t, err)

	var out object
	require.NoError(t, NewConfig().Limit(uint64(len(encoded))).Deserialize(encoded, &out))
	assert.Equal(t, input, out)

	out = object{}
	err = NewConfig().Limit(uint64(len(encoded)-1)).Deserialize(encoded, &out)
	assert.ErrorIs(t, err, ErrSizeLimit)
}

func TestDeserializeForgedLength(t *testing.T) {
	// A string claiming 2^40 bytes backed by nothing.
	forged := []byte{0, 0, 0, 0, 0, 1, 0, 0}

	var s string
	err := NewConfig().Limit(1024).Deserialize(forged, &s)
	assert.ErrorIs(t, err, ErrSizeLimit)

	err = NewConfig().Deserialize(forged, &s)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	// Elements are charged one by one, so the limit trips once the budget
	// is spent even though the input holds more bytes.
	var numbers []uint64
	err = NewConfig().Limit(1024).Deserialize(append(forged, make([]byte, 2048)...), &numbers)
	assert.ErrorIs(t, err, ErrSizeLimit)

	err = NewConfig().Deserialize(forged, &numbers)
	assert.ErrorIs(t, err, io.EOF)

	var lookup map[uint32]uint32
	err = NewConfig().Deserialize(forged, &lookup)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDeserializeLargePayload(t *testing.T) {
	payload := bytes.Repeat([]byte("bincode!"), 20_000)

	encoded, err := Marshal(payload)
	require.NoError(t, err)

	var out []byte
	require.NoError(t, Unmarshal(encoded, &out))
	assert.Equal(t, payload, out)

	err = Unmarshal(encoded[:len(encoded)-1], &out)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDeserializeStopsAtValueEnd(t *testing.T) {
	encoded, err := Marshal(uint16(7))
	require.NoError(t, err)

	reader := bytes.NewReader(append(encoded, 0xaa, 0xbb))

	var v uint16
	require.NoError(t, NewConfig().DeserializeFrom(reader, &v))
	assert.Equal(t, uint16(7), v)
	assert.Equal(t, 2, reader.Len())
}

func TestDeserializeInPlace(t *testing.T) {
	type target struct {
		Numbers []uint32
		Raw     []byte
		Lookup  map[string]int8
		Value   *int64
	}

	input := target{
		Numbers: []uint32{1, 2, 3},
		Raw:     []byte("raw"),
		Lookup:  map[string]int8{"x": 1},
		Value:   new(int64),
	}
	*input.Value = 42

	encoded, err := Marshal(input)
	require.NoError(t, err)

	var value int64

	place := target{
		Numbers: make([]uint32, 0, 10),
		Raw:     make([]byte, 0, 10),
		Lookup:  map[string]int8{"stale": 9},
		Value:   &value,
	}

	var (
		numbers = unsafe.SliceData(place.Numbers)
		raw     = unsafe.SliceData(place.Raw)
		lookup  = reflect.ValueOf(place.Lookup).Pointer()
	)

	require.NoError(t, NewConfig().DeserializeInPlace(bytes.NewReader(encoded), &place))

	assert.Equal(t, input.Numbers, place.Numbers)
	assert.Equal(t, input.Raw, place.Raw)
	assert.Equal(t, input.Lookup, place.Lookup)
	assert.Equal(t, int64(42), value)

	assert.Same(t, numbers, unsafe.SliceData(place.Numbers))
	assert.Same(t, raw, unsafe.SliceData(place.Raw))
	assert.Equal(t, lookup, reflect.ValueOf(place.Lookup).Pointer())
	assert.Same(t, &value, place.Value)
}

func TestDeserializeInPlaceGrows(t *testing.T) {
	encoded, err := Marshal([]uint8{1, 2, 3, 4})
	require.NoError(t, err)

	place := make([]uint8, 0, 2)
	require.NoError(t, NewConfig().DeserializeInPlace(bytes.NewReader(encoded), &place))
	assert.Equal(t, []uint8{1, 2, 3, 4}, place)
}

// lengthSeed decodes a u8 count followed by that many u16 values, keeping
// only those above min.
type lengthSeed struct {
	min uint16
}

func (s lengthSeed) DeserializeSeed(d *Deserializer) (any, error) {
	count, err := d.ReadUint8()
	if err != nil {
		return nil, err
	}

	var out []uint16

	for i := 0; i < int(count); i++ {
		v, err := d.ReadUint16()
		if err != nil {
			return nil, err
		}
		if v > s.min {
			out = append(out, v)
		}
	}

	return out, nil
}

func TestDeserializeSeed(t *testing.T) {
	input := []byte{3, 0, 1, 0, 5, 0, 9}

	value, err := NewConfig().BigEndian().DeserializeSeed(lengthSeed{min: 2}, input)
	require.NoError(t, err)
	assert.Equal(t, []uint16{5, 9}, value)

	_, err = NewConfig().BigEndian().Limit(4).DeserializeSeed(lengthSeed{}, input)
	assert.ErrorIs(t, err, ErrSizeLimit)

	_, err = NewConfig().DeserializeFromSeed(SeedFunc(func(d *Deserializer) (any, error) {
		return nil, io.ErrClosedPipe
	}), bytes.NewReader(input))
	assert.ErrorIs(t, err, &Error{Kind: KindCustom})
	assert.EqualError(t, err, io.ErrClosedPipe.Error())
}

func TestWithSerializerAndDeserializer(t *testing.T) {
	var (
		buf    bytes.Buffer
		config = NewConfig().BigEndian().StringLength(LengthU8)
	)

	err := config.WithSerializer(&buf, func(s *Serializer) error {
		if err := s.WriteUint32(0xdeadbeef); err != nil {
			return err
		}
		if err := s.WriteString("hi"); err != nil {
			return err
		}
		return s.Serialize([]bool{true})
	})
	require.NoError(t, err)

	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef, 2, 'h', 'i', 0, 0, 0, 0, 0, 0, 0, 1, 1}, buf.Bytes())

	err = config.WithDeserializer(&buf, func(d *Deserializer) error {
		n, err := d.ReadUint32()
		require.NoError(t, err)
		assert.Equal(t, uint32(0xdeadbeef), n)

		str, err := d.ReadString()
		require.NoError(t, err)
		assert.Equal(t, "hi", str)

		var flags []bool
		require.NoError(t, d.Deserialize(&flags))
		assert.Equal(t, []bool{true}, flags)

		assert.Equal(t, uint64(16), d.BytesRead())

		return nil
	})
	require.NoError(t, err)
}

func TestWithSerializerMetersAsItWrites(t *testing.T) {
	var buf bytes.Buffer

	err := NewConfig().Limit(6).WithSerializer(&buf, func(s *Serializer) error {
		if err := s.WriteUint32(1); err != nil {
			return err
		}
		return s.WriteUint32(2)
	})

	assert.ErrorIs(t, err, ErrSizeLimit)
	assert.Equal(t, 4, buf.Len())
}

// visit is zero sized but runs a hook for every decoded element.
type visit struct{}

var visits int

func (*visit) AfterDeserialize() error {
	visits++
	return nil
}

func TestDeserializeZeroSizedElements(t *testing.T) {
	visits = 0

	// A length of 2^62 backed by no further input.
	forged := []byte{0, 0, 0, 0, 0, 0, 0, 0x40}

	var empty []struct{}
	require.NoError(t, Unmarshal(forged, &empty))
	assert.Len(t, empty, 1<<62)

	var arrays [][0]uint64
	require.NoError(t, Unmarshal(forged, &arrays))
	assert.Len(t, arrays, 1<<62)

	var set map[struct{}]struct{}
	require.NoError(t, Unmarshal(forged, &set))
	assert.Len(t, set, 1)

	// Elements with hooks are bounded by the remaining budget.
	var hooked []visit
	err := NewConfig().Limit(64).Deserialize(forged, &hooked)
	assert.ErrorIs(t, err, ErrSizeLimit)
	assert.Zero(t, visits)

	var hookedSet map[struct{}]visit
	err = NewConfig().Limit(64).Deserialize(forged, &hookedSet)
	assert.ErrorIs(t, err, ErrSizeLimit)

	encoded, err := Marshal([]visit{{}, {}, {}})
	require.NoError(t, err)

	require.NoError(t, NewConfig().Limit(64).Deserialize(encoded, &hooked))
	assert.Len(t, hooked, 3)
	assert.Equal(t, 3, visits)
}

func TestDeserializeNamedByteSlice(t *testing.T) {
	encoded, err := Marshal([]renamedByte{1, 2, 3})
	require.NoError(t, err)

	var out []renamedByte
	require.NoError(t, Unmarshal(encoded, &out))
	assert.Equal(t, []renamedByte{1, 2, 3}, out)

	place := make([]renamedByte, 0, 8)
	require.NoError(t, NewConfig().DeserializeInPlace(bytes.NewReader(encoded), &place))
	assert.Equal(t, []renamedByte{1, 2, 3}, place)
}
