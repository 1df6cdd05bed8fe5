package bincode

import (
	"bytes"
	"crypto/rand"
	"reflect"
	"testing"
)

type fuzzObject struct {
	Ptr  *[]*string
	Num  map[int][2]complex64
	Msg  message
	Char Char
}

var fuzzReceivers = []reflect.Type{
	reflect.TypeOf(""),
	reflect.TypeOf(0),
	reflect.TypeOf(Char(0)),

	reflect.TypeOf([]string{}),
	reflect.TypeOf(map[string]uint16{}),
	reflect.TypeOf([5]bool{}),

	reflect.TypeOf([]*string{}),
	reflect.TypeOf(map[string]*[]byte{}),
	reflect.TypeOf([5]*message{}),

	reflect.TypeOf(fuzzObject{}),
}

func TestFuzz(t *testing.T) {
	// This test is meant to find any uncaught panics that
	// might happen while decoding untrusted user data.

	var (
		data = make([]byte, 1024)

		buffer = bytes.NewBuffer(nil)

		buf [1]byte

		receiver any

		config = NewConfig().Limit(2048)
	)

	for i := 0; i < 20_000; i++ {
		rand.Read(data)
		rand.Read(buf[:])

		// Vary the layout so every length width gets exercised.
		config.StringLength(LengthOption(buf[0] >> 6)).ArrayLength(LengthOption(buf[0] >> 4 & 3))

		receiver = reflect.New(fuzzReceivers[int(buf[0])%len(fuzzReceivers)]).Interface()

		if err := config.Deserialize(data, receiver); err == nil {
			buffer.Reset()

			if err := config.SerializeInto(buffer, receiver); err != nil {
				t.Errorf("re-encoding a decoded %T: %v", receiver, err)
			}
		}
	}
}

func FuzzDeserialize(f *testing.F) {
	for _, input := range roundTripInputs() {
		encoded, err := Marshal(input)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(encoded, uint8(0))
	}

	f.Fuzz(func(t *testing.T, data []byte, pick uint8) {
		config := NewConfig().Limit(4096)
		receiver := reflect.New(fuzzReceivers[int(pick)%len(fuzzReceivers)]).Interface()

		if err := config.Deserialize(data, receiver); err != nil {
			return
		}

		if _, err := SerializedSize(receiver); err != nil {
			t.Errorf("sizing a decoded %T: %v", receiver, err)
		}
	})
}
