package bincode

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Kind identifies one failure class of the closed error taxonomy.
type Kind uint8

const (
	// KindIo: the underlying reader or writer reported a failure.
	KindIo Kind = iota + 1

	// KindInvalidUtf8Encoding: decoded string bytes are not valid UTF-8.
	KindInvalidUtf8Encoding

	// KindInvalidBoolEncoding: a decoded bool byte was neither 0 nor 1.
	KindInvalidBoolEncoding

	// KindInvalidCharEncoding: a decoded Char is not a valid codepoint.
	KindInvalidCharEncoding

	// KindInvalidTagEncoding: a decoded variant or option tag is out of range.
	KindInvalidTagEncoding

	// KindDeserializeAnyNotSupported: the target type does not tell the
	// decoder what to read, and the format carries no type information.
	KindDeserializeAnyNotSupported

	// KindSizeLimit: a metered chunk would exceed the configured byte budget.
	KindSizeLimit

	// KindSizeTypeLimit: a length does not fit the configured length-prefix width.
	KindSizeTypeLimit

	// KindSequenceMustHaveLength: a sequence of unknown length was encoded.
	KindSequenceMustHaveLength

	// KindCustom: any other failure, described by a message.
	KindCustom
)

var kindNames = [...]string{
	KindIo:                         "Io",
	KindInvalidUtf8Encoding:        "InvalidUtf8Encoding",
	KindInvalidBoolEncoding:        "InvalidBoolEncoding",
	KindInvalidCharEncoding:        "InvalidCharEncoding",
	KindInvalidTagEncoding:         "InvalidTagEncoding",
	KindDeserializeAnyNotSupported: "DeserializeAnyNotSupported",
	KindSizeLimit:                  "SizeLimit",
	KindSizeTypeLimit:              "SizeTypeLimit",
	KindSequenceMustHaveLength:     "SequenceMustHaveLength",
	KindCustom:                     "Custom",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Sentinels for errors.Is. They only carry a Kind; any *Error of the
// same kind matches them.
var (
	ErrIo                         = &Error{Kind: KindIo}
	ErrInvalidUtf8Encoding        = &Error{Kind: KindInvalidUtf8Encoding}
	ErrInvalidBoolEncoding        = &Error{Kind: KindInvalidBoolEncoding}
	ErrInvalidCharEncoding        = &Error{Kind: KindInvalidCharEncoding}
	ErrInvalidTagEncoding         = &Error{Kind: KindInvalidTagEncoding}
	ErrDeserializeAnyNotSupported = &Error{Kind: KindDeserializeAnyNotSupported}
	ErrSizeLimit                  = &Error{Kind: KindSizeLimit}
	ErrSizeTypeLimit              = &Error{Kind: KindSizeTypeLimit}
	ErrSequenceMustHaveLength     = &Error{Kind: KindSequenceMustHaveLength}
)

// Error is the single error type returned by this package.
//
// Only the payload field matching Kind is meaningful: Err for Io and
// InvalidUtf8Encoding, Byte for InvalidBoolEncoding, Tag for
// InvalidTagEncoding and Msg for Custom.
type Error struct {
	Kind Kind

	Err  error
	Byte uint8
	Tag  uint64
	Msg  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindIo:
		if e.Err == nil {
			return "io error"
		}
		return "io error: " + e.Err.Error()

	case KindInvalidUtf8Encoding:
		if e.Err == nil {
			return "string is not valid utf8"
		}
		return "string is not valid utf8: " + e.Err.Error()

	case KindInvalidBoolEncoding:
		return fmt.Sprintf("invalid u8 while decoding bool, expected 0 or 1, found %d", e.Byte)

	case KindInvalidCharEncoding:
		return "char is not valid"

	case KindInvalidTagEncoding:
		return fmt.Sprintf("tag for enum is not valid, found %d", e.Tag)

	case KindDeserializeAnyNotSupported:
		return "bincode does not support self-describing deserialization, the target type must be known"

	case KindSizeLimit:
		return "the size limit has been reached"

	case KindSizeTypeLimit:
		return "the size is larger than can be represented with this config"

	case KindSequenceMustHaveLength:
		return "bincode can only encode sequences and maps that have a knowable size ahead of time"

	case KindCustom:
		return e.Msg
	}

	return e.Kind.String()
}

// Unwrap returns the underlying cause of Io and InvalidUtf8Encoding errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Format prints the cause with its stack trace for %+v. Every other verb
// prints the message.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') && e.Err != nil {
			fmt.Fprintf(s, "%s: %+v", e.Kind, e.Err)
			return
		}
		io.WriteString(s, e.Error())
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	default:
		io.WriteString(s, e.Error())
	}
}

// IoError lifts a reader or writer failure into the Io kind.
func IoError(err error) *Error {
	var own *Error
	if errors.As(err, &own) {
		return own
	}
	return &Error{Kind: KindIo, Err: errors.WithStack(err)}
}

// Custom returns a Custom error carrying msg.
func Custom(msg string) *Error {
	return &Error{Kind: KindCustom, Msg: msg}
}

// Customf returns a Custom error with a formatted message.
func Customf(format string, args ...any) *Error {
	return Custom(fmt.Sprintf(format, args...))
}

// Utf8Error reports string bytes that are not valid UTF-8, caused by err.
func Utf8Error(err error) *Error {
	return &Error{Kind: KindInvalidUtf8Encoding, Err: err}
}

func invalidBool(b uint8) *Error {
	return &Error{Kind: KindInvalidBoolEncoding, Byte: b}
}

func invalidTag(tag uint64) *Error {
	return &Error{Kind: KindInvalidTagEncoding, Tag: tag}
}

func invalidUtf8(b []byte) *Error {
	valid := 0
	for valid < len(b) {
		r, size := utf8.DecodeRune(b[valid:])
		if r == utf8.RuneError && size <= 1 {
			break
		}
		valid += size
	}
	return Utf8Error(errors.Errorf("invalid utf-8 sequence of 1 bytes from index %d", valid))
}

// asError converts a failure raised by user code (hooks, Marshaler
// implementations) into the taxonomy. Errors that already are *Error pass
// through untouched.
func asError(err error) error {
	if err == nil {
		return nil
	}
	var own *Error
	if errors.As(err, &own) {
		return own
	}
	return Custom(err.Error())
}
