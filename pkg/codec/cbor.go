package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with Core Deterministic Encoding so equal values always
// produce identical bytes.
var encMode cbor.EncMode

// decMode decodes generic values into map[string]any, the shape the
// observable package and encoding/json work with.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) of data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
