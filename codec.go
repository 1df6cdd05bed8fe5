package bincode

import (
	"bytes"
	"io"
	"math"
)

// serializedSize runs the serializer with no output, counting every byte
// it would write. The count goes through a copy of the configured limit,
// so a budget is still enforced but not consumed.
func serializedSize(value any, opts Options) (uint64, error) {
	counter := &countSize{other: opts.Limit().Clone()}

	err := newSerializer(io.Discard, WithLimit(opts, counter)).Serialize(value)
	if err != nil {
		return 0, err
	}

	return counter.total, nil
}

// serializeInto writes value to writer. With a bounded limit the size is
// computed first, so an oversized value fails before any byte is written.
func serializeInto(writer io.Writer, value any, opts Options) (uint64, error) {
	if _, bounded := opts.Limit().Limit(); bounded {
		if _, err := serializedSize(value, opts); err != nil {
			return 0, err
		}
	}

	s := newSerializer(writer, opts)
	err := s.Serialize(value)

	return s.BytesWritten(), err
}

func serialize(value any, opts Options) ([]byte, error) {
	size, err := serializedSize(value, opts)
	if err != nil {
		return nil, err
	}

	if size > math.MaxInt {
		return nil, &Error{Kind: KindSizeLimit}
	}

	buf := bytes.NewBuffer(make([]byte, 0, int(size)))

	// The budget was already checked by the size computation.
	if _, err := serializeInto(buf, value, WithNoLimit(opts)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func deserialize(reader io.Reader, value any, opts Options, inPlace bool) (uint64, error) {
	d := newDeserializer(reader, opts, inPlace)
	err := d.Deserialize(value)

	return d.BytesRead(), err
}

func deserializeSeed(reader io.Reader, seed Seed, opts Options) (any, error) {
	d := newDeserializer(reader, opts, false)

	value, err := seed.DeserializeSeed(d)
	if err != nil {
		return nil, asError(err)
	}

	return value, nil
}
