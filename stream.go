package bincode

import (
	"bufio"
	"bytes"
	"io"
	"sync"
)

type Encoder interface {
	// Encode one value into the stream. The configured limit applies to
	// each value separately.
	//
	// Note: A pointer is encoded as an optional value, so a *T given to
	// Encode must be decoded into a **T.
	Encode(data any) error

	// Total bytes written to the underlying stream
	BytesWritten() uint64
}

type Decoder interface {
	// Decode the next value on the stream into a pointer
	Decode(data any) error

	// Total bytes read from the underlying stream
	BytesRead() uint64
}

type encoder struct {
	mu sync.Mutex

	writer  io.Writer
	config  *Config
	written uint64
}

// NewEncoder returns an Encoder writing to writer with config. A nil config
// uses the defaults.
func NewEncoder(writer io.Writer, config *Config) Encoder {
	if config == nil {
		config = NewConfig()
	}
	return &encoder{writer: writer, config: config}
}

func (e *encoder) Encode(data any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.config.serializeInto(e.writer, data)
	e.written += n
	return err
}

func (e *encoder) BytesWritten() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.written
}

type decoder struct {
	mu sync.Mutex

	reader io.Reader
	config *Config
	read   uint64
}

// NewDecoder returns a Decoder reading from reader with config. A nil
// config uses the defaults.
//
// The decoder never reads past the end of a value, so reader may be
// shared with other consumers between calls.
func NewDecoder(reader io.Reader, config *Config) Decoder {
	if config == nil {
		config = NewConfig()
	}
	return &decoder{reader: reader, config: config}
}

func (d *decoder) Decode(data any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.config.deserializeFrom(d.reader, data, false)
	d.read += n
	return err
}

func (d *decoder) BytesRead() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.read
}

type Stream interface {
	// Read the next value from the stream into a pointer
	Read(data any) error

	// Write a value to the stream
	Write(data any) error

	// Get total bytes read
	BytesRead() uint64

	// Get total bytes written
	BytesWritten() uint64

	// Reset total bytes read
	ResetRead()

	// Reset total bytes written
	ResetWritten()

	// Deallocate write buffer to free memory
	ZeroBuffer()
}

type stream struct {
	writer io.Writer

	writeBuffer    *bytes.Buffer
	bufferedReader *bufio.Reader

	decoder Decoder
	encoder Encoder

	wlock sync.Mutex
	rlock sync.Mutex

	// Values are encoded into writeBuffer first and only written once
	// encoding succeeded, so bytes written may differ from
	// encoder.BytesWritten().
	written uint64
	read    uint64
}

// NewStream exchanges values over rw. Reads and writes are each
// serialized by their own lock, so one goroutine may read while another
// writes.
func NewStream(rw io.ReadWriter, config *Config) Stream {
	var (
		writeBuffer    = bytes.NewBuffer(nil)
		bufferedReader = bufio.NewReader(rw)
	)

	return &stream{
		writer: rw,

		writeBuffer:    writeBuffer,
		bufferedReader: bufferedReader,

		decoder: NewDecoder(bufferedReader, config),
		encoder: NewEncoder(writeBuffer, config),
	}
}

func (s *stream) Read(data any) error {
	s.rlock.Lock()
	defer s.rlock.Unlock()

	before := s.decoder.BytesRead()
	err := s.decoder.Decode(data)
	s.read += s.decoder.BytesRead() - before

	return err
}

func (s *stream) Write(data any) error {
	s.wlock.Lock()
	defer s.wlock.Unlock()

	s.writeBuffer.Reset()

	if err := s.encoder.Encode(data); err != nil {
		return err
	}

	n, err := s.writer.Write(s.writeBuffer.Bytes())
	s.written += uint64(n)
	if err != nil {
		return IoError(err)
	}
	if n < s.writeBuffer.Len() {
		return IoError(io.ErrShortWrite)
	}

	return nil
}

func (s *stream) BytesRead() uint64 {
	s.rlock.Lock()
	defer s.rlock.Unlock()

	return s.read
}

func (s *stream) BytesWritten() uint64 {
	s.wlock.Lock()
	defer s.wlock.Unlock()

	return s.written
}

func (s *stream) ResetRead() {
	s.rlock.Lock()
	defer s.rlock.Unlock()

	s.read = 0
}

func (s *stream) ResetWritten() {
	s.wlock.Lock()
	defer s.wlock.Unlock()

	s.written = 0
}

func (s *stream) ZeroBuffer() {
	s.wlock.Lock()
	defer s.wlock.Unlock()

	s.writeBuffer = bytes.NewBuffer(nil)
	s.encoder = NewEncoder(s.writeBuffer, s.encoder.(*encoder).config)
}
