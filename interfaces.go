package bincode

import "reflect"

type BeforeSerialize interface {
	// If a type implements this interface, this function will be called
	// right before it is serialized. Returning an error stops the
	// serialization. Note that a bounded or exact-size serialize traverses
	// the value twice, so the hook may run twice per call.
	BeforeSerialize() error
}

var interfaceBeforeSerialize = reflect.TypeOf((*BeforeSerialize)(nil)).Elem()

type AfterDeserialize interface {
	// If a type implements this interface, this function will be called
	// right after it was deserialized. Returning an error stops the
	// deserialization.
	AfterDeserialize() error
}

var interfaceAfterDeserialize = reflect.TypeOf((*AfterDeserialize)(nil)).Elem()

// Marshaler is implemented by types that describe their own layout.
// Everything written through s is metered like the built-in encodings.
type Marshaler interface {
	MarshalBincode(s *Serializer) error
}

var interfaceMarshaler = reflect.TypeOf((*Marshaler)(nil)).Elem()

// Unmarshaler is the decoding counterpart of Marshaler.
type Unmarshaler interface {
	UnmarshalBincode(d *Deserializer) error
}

var interfaceUnmarshaler = reflect.TypeOf((*Unmarshaler)(nil)).Elem()

// Enum is implemented by tagged unions. The variant index is written as a
// u32 followed by the payload; a nil payload marks a unit variant.
//
// A pointer payload stands for the value it points to, so BincodeVariant
// may return the same field pointers SetVariant does. To write an optional
// payload, return a pointer to the pointer.
type Enum interface {
	BincodeVariant() (tag uint32, payload any)
}

var interfaceEnum = reflect.TypeOf((*Enum)(nil)).Elem()

// EnumDecoder is the decoding counterpart of Enum, usually implemented on
// the pointer type.
type EnumDecoder interface {
	// NumVariants is the number of declared variants. Tags at or above it
	// fail with InvalidTagEncoding.
	NumVariants() uint32

	// SetVariant selects the variant and returns a pointer to decode its
	// payload into, or nil for a unit variant.
	SetVariant(tag uint32) any
}

var interfaceEnumDecoder = reflect.TypeOf((*EnumDecoder)(nil)).Elem()

// Seed decodes one value with caller supplied state, for shapes that
// depend on context the target type cannot carry itself.
type Seed interface {
	DeserializeSeed(d *Deserializer) (any, error)
}

// SeedFunc adapts a function to Seed.
type SeedFunc func(d *Deserializer) (any, error)

func (f SeedFunc) DeserializeSeed(d *Deserializer) (any, error) {
	return f(d)
}
