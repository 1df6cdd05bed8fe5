package bincode

import "reflect"

// Char is a unicode scalar value. Unlike a plain rune, which is encoded as
// an int32, a Char is written as its UTF-8 encoding.
type Char rune

var typeChar = reflect.TypeOf(Char(0))

// Map keys of these kinds are written in sorted order, so equal maps
// always encode to equal bytes.
var sortableKeyKinds = map[reflect.Kind]bool{
	reflect.Bool:    true,
	reflect.Int:     true,
	reflect.Int8:    true,
	reflect.Int16:   true,
	reflect.Int32:   true,
	reflect.Int64:   true,
	reflect.Uint:    true,
	reflect.Uint8:   true,
	reflect.Uint16:  true,
	reflect.Uint32:  true,
	reflect.Uint64:  true,
	reflect.Uintptr: true,
	reflect.Float32: true,
	reflect.Float64: true,
	reflect.String:  true,
}

// Kinds that can never be part of an encoded value.
var unsupportedKinds = map[reflect.Kind]bool{
	reflect.Func:          true,
	reflect.UnsafePointer: true,
}

const (
	// Option tags written before a pointer's value.
	optionNone byte = 0
	optionSome byte = 1

	// Upper bound on elements allocated up front from a decoded length, so
	// a forged length cannot allocate more than the input backs.
	maxPrealloc = 4096

	// Payloads above this size are read in chunks.
	maxDirectRead = 64 << 10
)
