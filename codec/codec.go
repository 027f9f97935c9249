// Package codec implements the wire formats crossed by the boundary:
// JSON documents (schemas, row batches, query configs, statistics) and
// Arrow IPC file containers (schema plus record batches).
//
// JSON handling is split in two. Small documents go through the Codec
// interface so callers can swap the JSON engine. Row batches bypass the
// interface and use a number-preserving decoder, because narrowing a
// JSON number into a typed Arrow column needs the original digits, not
// a float64 approximation.
package codec

import "fmt"

// Codec encodes/decodes JSON documents.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
