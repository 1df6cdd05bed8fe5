package bincode

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var endianNames = [...]string{
	EndianLittle: "little",
	EndianBig:    "big",
	EndianNative: "native",
}

func (e EndianOption) String() string {
	if int(e) < len(endianNames) {
		return endianNames[e]
	}
	return fmt.Sprintf("EndianOption(%d)", uint8(e))
}

func (e EndianOption) MarshalText() ([]byte, error) {
	if int(e) >= len(endianNames) {
		return nil, Customf("unknown endian option %d", uint8(e))
	}
	return []byte(e.String()), nil
}

func (e *EndianOption) UnmarshalText(text []byte) error {
	return e.Set(string(text))
}

// Set implements pflag.Value.
func (e *EndianOption) Set(s string) error {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "little", "le":
		*e = EndianLittle
	case "big", "be":
		*e = EndianBig
	case "native":
		*e = EndianNative
	default:
		return Customf("invalid endian option %q, expected one of little, big, native", s)
	}
	return nil
}

// Type implements pflag.Value.
func (e *EndianOption) Type() string {
	return "endian"
}

// limitValue is the limit as it appears in files and flags: a byte count
// or "unlimited".
type limitValue struct {
	limit *limitOption
}

func (l limitValue) String() string {
	if l.limit == nil || !l.limit.bounded {
		return "unlimited"
	}
	return strconv.FormatUint(l.limit.n, 10)
}

func (l limitValue) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "", "unlimited", "none", "infinite":
		*l.limit = limitOption{}
		return nil
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Customf("invalid limit %q, expected a byte count or \"unlimited\"", s)
	}

	*l.limit = limitOption{bounded: true, n: n}
	return nil
}

func (l limitValue) Type() string {
	return "bytes"
}

func (l limitValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return Customf("line %d: limit must be a scalar", node.Line)
	}
	return l.Set(node.Value)
}

func (l limitValue) MarshalYAML() (any, error) {
	if !l.limit.bounded {
		return "unlimited", nil
	}
	return l.limit.n, nil
}

type configDocument struct {
	Limit        limitValue   `yaml:"limit"`
	Endian       EndianOption `yaml:"endian"`
	StringLength LengthOption `yaml:"string_length"`
	ArrayLength  LengthOption `yaml:"array_length"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	limit := c.limit

	doc := configDocument{
		Limit:        limitValue{limit: &limit},
		Endian:       c.endian,
		StringLength: c.stringSize,
		ArrayLength:  c.arraySize,
	}

	if err := node.Decode(&doc); err != nil {
		return asError(err)
	}

	c.limit = limit
	c.endian = doc.Endian
	c.stringSize = doc.StringLength
	c.arraySize = doc.ArrayLength

	return nil
}

func (c *Config) MarshalYAML() (any, error) {
	limit := c.limit

	return configDocument{
		Limit:        limitValue{limit: &limit},
		Endian:       c.endian,
		StringLength: c.stringSize,
		ArrayLength:  c.arraySize,
	}, nil
}

// LoadConfig reads a YAML document such as
//
//	limit: 65536
//	endian: big
//	string_length: u16
//	array_length: u32
//
// Missing keys keep their defaults.
func LoadConfig(r io.Reader) (*Config, error) {
	c := NewConfig()

	if err := yaml.NewDecoder(r).Decode(c); err != nil {
		if err == io.EOF {
			return c, nil
		}
		return nil, asError(err)
	}

	return c, nil
}

// BindFlags registers --limit, --endian, --string-length and
// --array-length on fs, writing straight into c.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.Var(limitValue{limit: &c.limit}, "limit", `maximum bytes per message, or "unlimited"`)
	fs.Var(&c.endian, "endian", "byte order: little, big or native")
	fs.Var(&c.stringSize, "string-length", "width of string length prefixes: u8, u16, u32 or u64")
	fs.Var(&c.arraySize, "array-length", "width of collection length prefixes: u8, u16, u32 or u64")
}
