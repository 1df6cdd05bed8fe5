package bincode

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// SizeType is a fixed-width encoding for the length prefix of strings and
// collections.
type SizeType interface {
	// Width is the number of bytes Put writes.
	Width() int

	// Max is the largest length the width can represent.
	Max() uint64

	// Put writes n into dst[:Width()], or fails with SizeTypeLimit if n
	// does not fit.
	Put(order binary.ByteOrder, dst []byte, n uint64) error

	// Get reads a length from src[:Width()].
	Get(order binary.ByteOrder, src []byte) uint64
}

type (
	// U8 is a 1 byte length prefix.
	U8 struct{}

	// U16 is a 2 byte length prefix.
	U16 struct{}

	// U32 is a 4 byte length prefix.
	U32 struct{}

	// U64 is an 8 byte length prefix.
	U64 struct{}
)

func (U8) Width() int  { return 1 }
func (U16) Width() int { return 2 }
func (U32) Width() int { return 4 }
func (U64) Width() int { return 8 }

func (U8) Max() uint64  { return math.MaxUint8 }
func (U16) Max() uint64 { return math.MaxUint16 }
func (U32) Max() uint64 { return math.MaxUint32 }
func (U64) Max() uint64 { return math.MaxUint64 }

func (s U8) Put(_ binary.ByteOrder, dst []byte, n uint64) error {
	if n > s.Max() {
		return &Error{Kind: KindSizeTypeLimit}
	}
	dst[0] = byte(n)
	return nil
}

func (s U16) Put(order binary.ByteOrder, dst []byte, n uint64) error {
	if n > s.Max() {
		return &Error{Kind: KindSizeTypeLimit}
	}
	order.PutUint16(dst, uint16(n))
	return nil
}

func (s U32) Put(order binary.ByteOrder, dst []byte, n uint64) error {
	if n > s.Max() {
		return &Error{Kind: KindSizeTypeLimit}
	}
	order.PutUint32(dst, uint32(n))
	return nil
}

func (U64) Put(order binary.ByteOrder, dst []byte, n uint64) error {
	order.PutUint64(dst, n)
	return nil
}

func (U8) Get(_ binary.ByteOrder, src []byte) uint64      { return uint64(src[0]) }
func (U16) Get(order binary.ByteOrder, src []byte) uint64 { return uint64(order.Uint16(src)) }
func (U32) Get(order binary.ByteOrder, src []byte) uint64 { return uint64(order.Uint32(src)) }
func (U64) Get(order binary.ByteOrder, src []byte) uint64 { return order.Uint64(src) }

// LengthOption names a SizeType in a Config.
type LengthOption uint8

const (
	LengthU64 LengthOption = iota
	LengthU32
	LengthU16
	LengthU8
)

var lengthNames = [...]string{
	LengthU64: "u64",
	LengthU32: "u32",
	LengthU16: "u16",
	LengthU8:  "u8",
}

// SizeType returns the strategy for the option.
func (l LengthOption) SizeType() SizeType {
	switch l {
	case LengthU32:
		return U32{}
	case LengthU16:
		return U16{}
	case LengthU8:
		return U8{}
	}
	return U64{}
}

func (l LengthOption) String() string {
	if int(l) < len(lengthNames) {
		return lengthNames[l]
	}
	return fmt.Sprintf("LengthOption(%d)", uint8(l))
}

func (l LengthOption) MarshalText() ([]byte, error) {
	if int(l) >= len(lengthNames) {
		return nil, Customf("unknown length option %d", uint8(l))
	}
	return []byte(l.String()), nil
}

func (l *LengthOption) UnmarshalText(text []byte) error {
	return l.Set(string(text))
}

// Set implements pflag.Value.
func (l *LengthOption) Set(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u64", "64":
		*l = LengthU64
	case "u32", "32":
		*l = LengthU32
	case "u16", "16":
		*l = LengthU16
	case "u8", "8":
		*l = LengthU8
	default:
		return Customf("invalid length option %q, expected one of u8, u16, u32, u64", s)
	}
	return nil
}

// Type implements pflag.Value.
func (l *LengthOption) Type() string {
	return "length"
}
