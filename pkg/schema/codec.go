package schema

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Codec converts a complex property between its domain value and a
// JSON-compatible form.
type Codec struct {
	// Name identifies the codec in schema files. Optional for codecs built in
	// code.
	Name string

	// Serialize turns the domain value into a JSON-compatible value.
	Serialize func(v any) (any, error)

	// Deserialize turns a JSON-compatible value back into the domain value.
	Deserialize func(v any) (any, error)
}

// ErrCodecExists is returned when registering a codec name twice.
var ErrCodecExists = errors.New("schema: codec already registered")

var (
	codecsMu sync.RWMutex
	codecs   = map[string]Codec{
		"time": TimeCodec,
	}
)

// TimeCodec stores time.Time values and serializes them as RFC 3339 strings.
var TimeCodec = Codec{
	Name: "time",
	Serialize: func(v any) (any, error) {
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("schema: time codec: expected time.Time, got %T", v)
		}
		return t.UTC().Format(time.RFC3339Nano), nil
	},
	Deserialize: func(v any) (any, error) {
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			return time.Parse(time.RFC3339Nano, x)
		default:
			return nil, fmt.Errorf("schema: time codec: expected string, got %T", v)
		}
	},
}

// RegisterCodec makes c available to schema files under c.Name.
func RegisterCodec(c Codec) error {
	if c.Name == "" || c.Serialize == nil || c.Deserialize == nil {
		return fmt.Errorf("schema: codec needs a name and both conversions")
	}

	codecsMu.Lock()
	defer codecsMu.Unlock()
	if _, ok := codecs[c.Name]; ok {
		return fmt.Errorf("%w: %s", ErrCodecExists, c.Name)
	}
	codecs[c.Name] = c
	return nil
}

// LookupCodec returns the codec registered under name.
func LookupCodec(name string) (Codec, bool) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	c, ok := codecs[name]
	return c, ok
}
