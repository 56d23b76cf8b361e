// Package codec turns the flat key/value records exchanged by lobby peers
// into transport payloads and back. Records are JSON objects whose values are
// all strings; anything else fails to decode.
package codec

import (
	"errors"
	"fmt"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

var (
	ErrEncode = errors.New("encode failed")
	ErrDecode = errors.New("decode failed")
)

// Well-known field names.
const (
	FieldWho      = "who"
	FieldMessage  = "message"
	FieldRoom     = "room"
	FieldFrontend = "frontend"
	FieldBackend  = "backend"
)

type Fields map[string]string

func Encode(fields Fields) ([]byte, error) {
	if fields == nil {
		fields = Fields{}
	}
	// The JSON encoder would silently replace invalid bytes with U+FFFD.
	for k, v := range fields {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return nil, fmt.Errorf("%w: field %q is not valid UTF-8", ErrEncode, k)
		}
	}
	b, err := json.Marshal(map[string]string(fields))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return b, nil
}

func Decode(data []byte) (Fields, error) {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: not an object", ErrDecode)
	}
	return Fields(m), nil
}

// Get returns the value for key and whether it is present and non-empty.
func (f Fields) Get(key string) (string, bool) {
	v, ok := f[key]
	return v, ok && v != ""
}

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
