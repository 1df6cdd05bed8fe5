package bincode

import (
	"encoding/binary"
)

// Options is one fully resolved choice per axis: byte budget, byte order,
// string length width and collection length width.
//
// Only the SizeLimit it returns holds mutable state. The traversal reads
// every axis once when it is created and keeps the values for the whole
// call.
type Options interface {
	Limit() SizeLimit
	Endian() binary.ByteOrder
	StringSize() SizeType
	ArraySize() SizeType
}

type defaultOptions struct {
	limit Infinite
}

// DefaultOptions has no byte limit, little endian byte order and 8 byte
// length prefixes for strings and collections.
func DefaultOptions() Options {
	return defaultOptions{}
}

func (o defaultOptions) Limit() SizeLimit { return o.limit }

func (defaultOptions) Endian() binary.ByteOrder { return binary.LittleEndian }

func (defaultOptions) StringSize() SizeType { return U64{} }

func (defaultOptions) ArraySize() SizeType { return U64{} }

// Each composition step overrides a single axis and inherits every other
// one, including the live limit, from the Options it wraps.

type withLimit struct {
	Options
	limit SizeLimit
}

func (o *withLimit) Limit() SizeLimit { return o.limit }

type withEndian struct {
	Options
	order binary.ByteOrder
}

func (o *withEndian) Endian() binary.ByteOrder { return o.order }

type withStringSize struct {
	Options
	size SizeType
}

func (o *withStringSize) StringSize() SizeType { return o.size }

type withArraySize struct {
	Options
	size SizeType
}

func (o *withArraySize) ArraySize() SizeType { return o.size }

// WithLimit replaces the byte budget of o.
func WithLimit(o Options, limit SizeLimit) Options {
	return &withLimit{Options: o, limit: limit}
}

// WithNoLimit removes the byte budget of o.
func WithNoLimit(o Options) Options {
	return WithLimit(o, Infinite{})
}

// WithBoundedLimit gives o a budget of n bytes.
func WithBoundedLimit(o Options, n uint64) Options {
	return WithLimit(o, NewBounded(n))
}

// WithEndian replaces the byte order of o.
func WithEndian(o Options, order binary.ByteOrder) Options {
	return &withEndian{Options: o, order: order}
}

// WithStringSize replaces the string length width of o.
func WithStringSize(o Options, size SizeType) Options {
	return &withStringSize{Options: o, size: size}
}

// WithArraySize replaces the collection length width of o.
func WithArraySize(o Options, size SizeType) Options {
	return &withArraySize{Options: o, size: size}
}
