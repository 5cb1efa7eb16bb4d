// Package jsoncodec is the JSON codec used for WAMP frames, CRA challenge
// payloads and the statistics API.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

// wire matches encoding/json except that HTML characters are left
// unescaped, so URIs and payloads travel byte for byte.
var wire = sonic.Config{
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
}.Froze()

func Marshal(v any) ([]byte, error) { return wire.Marshal(v) }

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return wire.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error { return wire.Unmarshal(data, v) }

// Valid reports whether data is a well-formed JSON document.
func Valid(data []byte) bool { return wire.Valid(data) }

// Encode writes v to w followed by a newline.
func Encode(w io.Writer, v any) error { return wire.NewEncoder(w).Encode(v) }

func Decode(r io.Reader, v any) error { return wire.NewDecoder(r).Decode(v) }
