package bincode

// Marshal encodes data with the default configuration.
func Marshal(data any) ([]byte, error) {
	return NewConfig().Serialize(data)
}

// Unmarshal decodes b into data with the default configuration.
func Unmarshal(b []byte, data any) error {
	return NewConfig().Deserialize(b, data)
}

// SerializedSize returns the encoded size of data under the default
// configuration.
func SerializedSize(data any) (uint64, error) {
	return NewConfig().SerializedSize(data)
}
