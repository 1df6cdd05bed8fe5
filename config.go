// Package bincode encodes Go values into a compact, non self-describing
// binary format.
//
// A Config selects four independent options: a byte limit, the byte order
// of multi-byte numbers, and the width of the length prefixes written before
// strings and before collections. Every call resolves the Config into one
// Options value that the serializer or deserializer uses for its whole run.
//
// When a byte limit is set, serializing first computes the exact encoded
// size and fails with ErrSizeLimit before writing anything if the value
// does not fit. Deserializing charges every byte read against the limit,
// which stops a hostile length prefix from forcing a large allocation.
package bincode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"go.uber.org/zap"
)

type limitOption struct {
	bounded bool
	n       uint64
}

// EndianOption names a byte order in a Config.
type EndianOption uint8

const (
	EndianLittle EndianOption = iota
	EndianBig
	EndianNative
)

// ByteOrder returns the byte order for the option.
func (e EndianOption) ByteOrder() binary.ByteOrder {
	switch e {
	case EndianBig:
		return binary.BigEndian
	case EndianNative:
		return binary.NativeEndian
	}
	return binary.LittleEndian
}

// Config holds the options used by serialize and deserialize calls.
//
// Setters mutate the Config in place and return it for chaining. A Config
// is only read during a call, so concurrent calls are safe as long as no
// setter runs at the same time.
type Config struct {
	limit      limitOption
	endian     EndianOption
	stringSize LengthOption
	arraySize  LengthOption

	logger *zap.Logger
}

// NewConfig returns a Config with no limit, little endian byte order and
// 8 byte length prefixes.
func NewConfig() *Config {
	return &Config{
		endian:     EndianLittle,
		stringSize: LengthU64,
		arraySize:  LengthU64,
	}
}

// DefaultConfig is an alias for NewConfig.
func DefaultConfig() *Config {
	return NewConfig()
}

// Clone returns an independent copy of c.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// NoLimit removes the byte limit. This is the default.
func (c *Config) NoLimit() *Config {
	c.limit = limitOption{}
	return c
}

// Limit sets the maximum number of bytes one call may read or write.
func (c *Config) Limit(n uint64) *Config {
	c.limit = limitOption{bounded: true, n: n}
	return c
}

// LittleEndian selects little endian byte order. This is the default.
func (c *Config) LittleEndian() *Config {
	c.endian = EndianLittle
	return c
}

// BigEndian selects big endian byte order.
func (c *Config) BigEndian() *Config {
	c.endian = EndianBig
	return c
}

// NativeEndian selects the byte order of the running machine.
func (c *Config) NativeEndian() *Config {
	c.endian = EndianNative
	return c
}

// Endian sets the byte order.
func (c *Config) Endian(e EndianOption) *Config {
	c.endian = e
	return c
}

// StringLength sets the width of string length prefixes.
func (c *Config) StringLength(size LengthOption) *Config {
	c.stringSize = size
	return c
}

// ArrayLength sets the width of slice and map length prefixes.
func (c *Config) ArrayLength(size LengthOption) *Config {
	c.arraySize = size
	return c
}

// WithLogger sets the logger used for debug diagnostics. A nil logger
// disables logging.
func (c *Config) WithLogger(logger *zap.Logger) *Config {
	c.logger = logger
	return c
}

func (c *Config) log() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

// String renders the configuration, e.g. "Config(limit: 1024, little, u64, u64)".
func (c *Config) String() string {
	limit := "unlimited"
	if c.limit.bounded {
		limit = fmt.Sprint(c.limit.n)
	}
	return fmt.Sprintf("Config(limit: %s, %s, %s, %s)", limit, c.endian, c.stringSize, c.arraySize)
}

// Options resolves c into one Options value. Each call returns a fresh
// limit instance.
func (c *Config) Options() Options {
	var opts Options

	c.resolve(func(o Options) error {
		opts = o
		return nil
	})

	return opts
}

// resolve expands the four options, in a fixed order, over the defaults
// and calls fn exactly once with the result.
func (c *Config) resolve(fn func(Options) error) error {
	opts := DefaultOptions()

	if c.limit.bounded {
		opts = WithBoundedLimit(opts, c.limit.n)
	} else {
		opts = WithNoLimit(opts)
	}

	opts = WithEndian(opts, c.endian.ByteOrder())
	opts = WithStringSize(opts, c.stringSize.SizeType())
	opts = WithArraySize(opts, c.arraySize.SizeType())

	c.log().Debug("resolved config", zap.Stringer("config", c))

	return fn(opts)
}

func (c *Config) failed(op string, err error) error {
	if err == nil {
		return nil
	}

	fields := []zap.Field{
		zap.String("op", op),
		zap.Stringer("config", c),
		zap.Error(err),
	}
	if c.limit.bounded {
		fields = append(fields, zap.Uint64("limit", c.limit.n))
	}

	c.log().Debug("bincode call failed", fields...)

	return err
}

// Serialize encodes value into a new slice of exactly the encoded size.
func (c *Config) Serialize(value any) ([]byte, error) {
	var out []byte

	err := c.resolve(func(opts Options) (err error) {
		out, err = serialize(value, opts)
		return err
	})

	return out, c.failed("serialize", err)
}

// SerializedSize returns the number of bytes Serialize would produce. It
// fails with ErrSizeLimit if that exceeds the limit.
func (c *Config) SerializedSize(value any) (uint64, error) {
	var size uint64

	err := c.resolve(func(opts Options) (err error) {
		size, err = serializedSize(value, opts)
		return err
	})

	return size, c.failed("serialized_size", err)
}

// SerializeInto encodes value directly into writer.
//
// If the encoding would exceed the limit, an error is returned and no bytes
// are written.
func (c *Config) SerializeInto(writer io.Writer, value any) error {
	_, err := c.serializeInto(writer, value)
	return err
}

func (c *Config) serializeInto(writer io.Writer, value any) (uint64, error) {
	var written uint64

	err := c.resolve(func(opts Options) (err error) {
		written, err = serializeInto(writer, value, opts)
		return err
	})

	return written, c.failed("serialize_into", err)
}

// Deserialize decodes b into the value pointed to by value.
func (c *Config) Deserialize(b []byte, value any) error {
	return c.DeserializeFrom(bytes.NewReader(b), value)
}

// DeserializeFrom decodes one value from reader into the value pointed to
// by value.
//
// If this returns an error, reader may have been partially consumed.
func (c *Config) DeserializeFrom(reader io.Reader, value any) error {
	_, err := c.deserializeFrom(reader, value, false)
	return err
}

// DeserializeInPlace decodes into place, reusing its existing slices, maps
// and pointers where their capacity allows.
//
// If this returns an error, reader may have been partially consumed and
// place may be partially overwritten.
func (c *Config) DeserializeInPlace(reader io.Reader, place any) error {
	_, err := c.deserializeFrom(reader, place, true)
	return err
}

func (c *Config) deserializeFrom(reader io.Reader, value any, inPlace bool) (uint64, error) {
	var read uint64

	err := c.resolve(func(opts Options) (err error) {
		read, err = deserialize(reader, value, opts, inPlace)
		return err
	})

	return read, c.failed("deserialize", err)
}

// DeserializeSeed decodes b with the state carried by seed.
func (c *Config) DeserializeSeed(seed Seed, b []byte) (any, error) {
	return c.DeserializeFromSeed(seed, bytes.NewReader(b))
}

// DeserializeFromSeed decodes one value from reader with the state carried
// by seed.
//
// If this returns an error, reader may have been partially consumed.
func (c *Config) DeserializeFromSeed(seed Seed, reader io.Reader) (any, error) {
	var value any

	err := c.resolve(func(opts Options) (err error) {
		value, err = deserializeSeed(reader, seed, opts)
		return err
	})

	return value, c.failed("deserialize_seed", err)
}

// WithSerializer calls fn with a serializer writing to writer under this
// configuration. The limit is enforced as bytes are written; nothing is
// precomputed.
func (c *Config) WithSerializer(writer io.Writer, fn func(*Serializer) error) error {
	err := c.resolve(func(opts Options) error {
		return asError(fn(newSerializer(writer, opts)))
	})

	return c.failed("with_serializer", err)
}

// WithDeserializer calls fn with a deserializer reading from reader under
// this configuration.
func (c *Config) WithDeserializer(reader io.Reader, fn func(*Deserializer) error) error {
	err := c.resolve(func(opts Options) error {
		return asError(fn(newDeserializer(reader, opts, false)))
	})

	return c.failed("with_deserializer", err)
}
